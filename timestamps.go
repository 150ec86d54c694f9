package record

import (
	"context"
	"sync"
	"time"

	"gorm.io/record/utils"
)

// FreshTimestamp current time per the DB clock
func (m *Model) FreshTimestamp() time.Time {
	return m.db.NowFunc()
}

// FreshTimestampString current time in the storage format
func (m *Model) FreshTimestampString() string {
	return m.FreshTimestamp().Format(m.dateLayout())
}

// UsesTimestamps reports whether the class maintains created_at and updated_at
func (m *Model) UsesTimestamps() bool {
	return m.class.usesTimestamps()
}

// GetUpdatedAtColumn updated at column, empty without timestamps
func (m *Model) GetUpdatedAtColumn() string {
	return m.class.UpdatedAtColumn
}

// GetCreatedAtColumn created at column, empty without timestamps
func (m *Model) GetCreatedAtColumn() string {
	return m.class.CreatedAtColumn
}

// updateTimestamps sets updated_at, and created_at on new models, unless set explicitly
func (m *Model) updateTimestamps() error {
	t := m.FreshTimestamp()

	if column := m.GetUpdatedAtColumn(); column != "" && !m.IsDirty(column) {
		if err := m.SetAttribute(column, t); err != nil {
			return err
		}
	}

	if column := m.GetCreatedAtColumn(); column != "" && !m.Exists && !m.IsDirty(column) {
		if err := m.SetAttribute(column, t); err != nil {
			return err
		}
	}
	return nil
}

// Touch updates updated_at and saves the model
func (m *Model) Touch(ctx context.Context) (bool, error) {
	if !m.UsesTimestamps() {
		return false, nil
	}
	if err := m.updateTimestamps(); err != nil {
		return false, err
	}
	return m.Save(ctx)
}

// Touches reports whether saving the model touches relation
func (m *Model) Touches(relation string) bool {
	return utils.Contains(m.class.Touches, relation)
}

// TouchOwners touches the relations listed in Class.Touches, recursively. Each model is
// touched at most once per call
func (m *Model) TouchOwners(ctx context.Context) error {
	return m.touchOwners(ctx, map[string]bool{})
}

func (m *Model) touchOwners(ctx context.Context, visited map[string]bool) error {
	identity := m.class.Name + ":" + utils.ToStringKey(m.GetKey())
	if visited[identity] {
		return nil
	}
	visited[identity] = true

	for _, name := range m.class.Touches {
		rel, err := m.Relation(name)
		if err != nil {
			return err
		}
		if err := rel.Touch(ctx); err != nil {
			return err
		}

		value, loaded := m.relations[name]
		if !loaded {
			if value, err = rel.GetResults(ctx); err != nil {
				return err
			}
			m.SetRelation(name, value)
		}

		switch related := value.(type) {
		case *Model:
			if related != nil {
				related.fireModelEvent(ctx, EventSaved, false)
				if err := related.touchOwners(ctx, visited); err != nil {
					return err
				}
			}
		case Collection:
			for _, model := range related {
				if err := model.touchOwners(ctx, visited); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// ignoreTouch classes not touched by relations, counted so that nested calls unwind correctly
var ignoreTouch = struct {
	sync.Mutex
	classes map[*Class]int
}{classes: map[*Class]int{}}

// WithoutTouching runs fn without touching the class through relations
func (c *Class) WithoutTouching(fn func() error) error {
	return WithoutTouchingOn([]*Class{c}, fn)
}

// WithoutTouchingOn runs fn without touching classes through relations
func WithoutTouchingOn(classes []*Class, fn func() error) error {
	ignoreTouch.Lock()
	for _, c := range classes {
		ignoreTouch.classes[c]++
	}
	ignoreTouch.Unlock()

	defer func() {
		ignoreTouch.Lock()
		for _, c := range classes {
			if ignoreTouch.classes[c]--; ignoreTouch.classes[c] <= 0 {
				delete(ignoreTouch.classes, c)
			}
		}
		ignoreTouch.Unlock()
	}()

	return fn()
}

// IsIgnoringTouch reports whether relations skip touching the class, always true without timestamps
func (c *Class) IsIgnoringTouch() bool {
	if !c.usesTimestamps() {
		return true
	}

	ignoreTouch.Lock()
	defer ignoreTouch.Unlock()
	return ignoreTouch.classes[c] > 0
}
