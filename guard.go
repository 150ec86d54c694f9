package record

import (
	"strings"
	"sync/atomic"

	"gorm.io/record/utils"
)

var unguarded atomic.Bool

// Unguard disables mass assignment protection process wide
func Unguard() {
	unguarded.Store(true)
}

// Reguard enables mass assignment protection again
func Reguard() {
	unguarded.Store(false)
}

// IsUnguarded reports whether mass assignment protection is disabled
func IsUnguarded() bool {
	return unguarded.Load()
}

// Unguarded runs fn with mass assignment protection disabled
func Unguarded(fn func() error) error {
	if IsUnguarded() {
		return fn()
	}

	Unguard()
	defer Reguard()
	return fn()
}

// Fill sets fillable attributes in key order. Guarded keys are skipped, or fail with a
// *MassAssignmentError when the model is totally guarded
func (m *Model) Fill(attrs map[string]interface{}) error {
	totallyGuarded := m.TotallyGuarded()

	for _, key := range sortedAttributeKeys(attrs) {
		if m.IsFillable(key) {
			if err := m.SetAttribute(key, attrs[key]); err != nil {
				return err
			}
		} else if totallyGuarded {
			return &MassAssignmentError{Class: m.class.Name, Key: key}
		} else {
			m.db.Logger.Warn(m.context(), "discarded guarded attribute [%s] on [%s]", key, m.class.Name)
		}
	}
	return nil
}

// ForceFill sets attributes ignoring mass assignment protection
func (m *Model) ForceFill(attrs map[string]interface{}) error {
	for _, key := range sortedAttributeKeys(attrs) {
		if err := m.SetAttribute(key, attrs[key]); err != nil {
			return err
		}
	}
	return nil
}

// IsFillable reports whether key may be mass assigned
func (m *Model) IsFillable(key string) bool {
	if IsUnguarded() {
		return true
	}

	if utils.Contains(m.class.Fillable, key) {
		return true
	}

	if m.IsGuarded(key) {
		return false
	}

	return len(m.class.Fillable) == 0 && !strings.Contains(key, ".") && !strings.HasPrefix(key, "_")
}

// IsGuarded reports whether key is guarded
func (m *Model) IsGuarded(key string) bool {
	if len(m.class.Guarded) == 0 {
		return false
	}
	if m.guardsEverything() {
		return true
	}
	for _, guarded := range m.class.Guarded {
		if strings.EqualFold(guarded, key) {
			return true
		}
	}
	return false
}

// TotallyGuarded no key is fillable and every key is guarded
func (m *Model) TotallyGuarded() bool {
	return len(m.class.Fillable) == 0 && m.guardsEverything()
}

func (m *Model) guardsEverything() bool {
	return len(m.class.Guarded) == 1 && m.class.Guarded[0] == "*"
}
