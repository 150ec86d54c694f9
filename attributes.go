package record

import (
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strings"

	"gorm.io/record/utils"
)

// GetAttribute value of key, transformed by its getter, cast or date handling. Keys that are
// not attributes resolve the relation declared under key, unknown keys return nil
func (m *Model) GetAttribute(key string) (interface{}, error) {
	if key == "" {
		return nil, nil
	}

	if _, ok := m.attributes[key]; ok || m.hasGetter(key) {
		return m.getAttributeValue(key)
	}

	if m.class.hasRelation(key) {
		return m.getRelationValue(key)
	}
	return nil, nil
}

// Get attribute value without relation resolution, errors are recorded on the model
func (m *Model) Get(key string) interface{} {
	value, err := m.getAttributeValue(key)
	if err != nil && m.err == nil {
		m.err = err
	}
	return value
}

func (m *Model) getAttributeValue(key string) (interface{}, error) {
	return m.transformModelValue(key, m.attributes[key])
}

// transformModelValue getter > cast > date > raw
func (m *Model) transformModelValue(key string, value interface{}) (interface{}, error) {
	if getter, ok := m.class.Getters[key]; ok {
		return getter(m, value)
	}

	if m.hasCast(key) {
		return m.castAttribute(key, value)
	}

	if value != nil && m.isDateAttribute(key) {
		return m.AsDateTime(value)
	}
	return value, nil
}

func (m *Model) hasGetter(key string) bool {
	_, ok := m.class.Getters[key]
	return ok
}

// SetAttribute sets key through its setter, date handling or JSON cast. `column->a->b` keys
// write into the JSON document stored in column
func (m *Model) SetAttribute(key string, value interface{}) error {
	if setter, ok := m.class.Setters[key]; ok {
		stored, err := setter(m, value)
		if err != nil {
			return err
		}
		m.attributes[key] = stored
		return nil
	}

	if value != nil && m.isDateAttribute(key) {
		stored, err := m.FromDateTime(value)
		if err != nil {
			return err
		}
		value = stored
	}

	if value != nil && m.isJSONCastable(key) {
		stored, err := castAttributeAsJSON(value)
		if err != nil {
			return err
		}
		value = stored
	}

	if strings.Contains(key, "->") {
		return m.fillJSONAttribute(key, value)
	}

	m.attributes[key] = value
	return nil
}

// Set chainable SetAttribute, the first error is kept in Err
func (m *Model) Set(key string, value interface{}) *Model {
	if err := m.SetAttribute(key, value); err != nil && m.err == nil {
		m.err = err
	}
	return m
}

func (m *Model) fillJSONAttribute(key string, value interface{}) error {
	path := strings.Split(key, "->")
	column := path[0]

	document := map[string]interface{}{}
	if current := m.attributes[column]; current != nil {
		decoded, err := fromJSON(current)
		if err != nil {
			return err
		}
		if object, ok := decoded.(map[string]interface{}); ok {
			document = object
		}
	}

	node := document
	for _, segment := range path[1 : len(path)-1] {
		child, ok := node[segment].(map[string]interface{})
		if !ok {
			child = map[string]interface{}{}
			node[segment] = child
		}
		node = child
	}
	node[path[len(path)-1]] = value

	encoded, err := castAttributeAsJSON(document)
	if err != nil {
		return err
	}
	m.attributes[column] = encoded
	return nil
}

// GetAttributes current raw attributes
func (m *Model) GetAttributes() map[string]interface{} {
	return copyAttributes(m.attributes)
}

// SetRawAttributes replaces the attributes without transformation, sync syncs the original
func (m *Model) SetRawAttributes(attrs map[string]interface{}, sync bool) *Model {
	m.attributes = copyAttributes(attrs)
	if sync {
		m.SyncOriginal()
	}
	return m
}

// Only transformed values of keys
func (m *Model) Only(keys ...string) (map[string]interface{}, error) {
	results := make(map[string]interface{}, len(keys))
	for _, key := range keys {
		value, err := m.GetAttribute(key)
		if err != nil {
			return nil, err
		}
		results[key] = value
	}
	return results, nil
}

// GetOriginal transformed original value of key
func (m *Model) GetOriginal(key string) (interface{}, error) {
	return m.transformModelValue(key, m.original[key])
}

// GetRawOriginal raw original value of key, all of them without key
func (m *Model) GetRawOriginal(key ...string) interface{} {
	if len(key) == 0 {
		return copyAttributes(m.original)
	}
	return m.original[key[0]]
}

// SyncOriginal makes the current attributes the original
func (m *Model) SyncOriginal() *Model {
	m.original = copyAttributes(m.attributes)
	return m
}

// SyncOriginalAttributes syncs the original of keys only
func (m *Model) SyncOriginalAttributes(keys ...string) *Model {
	for _, key := range keys {
		if v, ok := m.attributes[key]; ok {
			m.original[key] = v
		} else {
			delete(m.original, key)
		}
	}
	return m
}

// SyncChanges remembers the dirty attributes as the last changes
func (m *Model) SyncChanges() *Model {
	m.changes = m.GetDirty()
	return m
}

// GetDirty attributes not equivalent to their original
func (m *Model) GetDirty() map[string]interface{} {
	dirty := map[string]interface{}{}
	for key, value := range m.attributes {
		if !m.originalIsEquivalent(key) {
			dirty[key] = value
		}
	}
	return dirty
}

// GetChanges attributes changed by the last save
func (m *Model) GetChanges() map[string]interface{} {
	return copyAttributes(m.changes)
}

// IsDirty reports whether any of keys, or any attribute without keys, is dirty
func (m *Model) IsDirty(keys ...string) bool {
	return hasChanges(m.GetDirty(), keys)
}

// IsClean negation of IsDirty
func (m *Model) IsClean(keys ...string) bool {
	return !m.IsDirty(keys...)
}

// WasChanged reports whether any of keys changed in the last save
func (m *Model) WasChanged(keys ...string) bool {
	return hasChanges(m.changes, keys)
}

func hasChanges(changes map[string]interface{}, keys []string) bool {
	if len(keys) == 0 {
		return len(changes) > 0
	}
	for _, key := range keys {
		if _, ok := changes[key]; ok {
			return true
		}
	}
	return false
}

// floatEpsilon tolerance of float cast comparisons
const floatEpsilon = 4 * 2.220446049250313e-16

func (m *Model) originalIsEquivalent(key string) bool {
	original, ok := m.original[key]
	if !ok {
		return false
	}
	current := m.attributes[key]

	switch {
	case utils.AssertEqual(current, original):
		return true
	case current == nil || original == nil:
		return false
	case m.isDateAttribute(key):
		a, err1 := m.FromDateTime(current)
		b, err2 := m.FromDateTime(original)
		return err1 == nil && err2 == nil && a == b
	case m.hasCast(key, "object", "collection", "array", "json"):
		a, err1 := m.castAttribute(key, current)
		b, err2 := m.castAttribute(key, original)
		return err1 == nil && err2 == nil && reflect.DeepEqual(a, b)
	case m.hasCast(key, "real", "float", "double"):
		a, ok1 := utils.ToFloat(current)
		b, ok2 := utils.ToFloat(original)
		return ok1 && ok2 && math.Abs(a-b) < floatEpsilon*math.Max(1, math.Abs(a))
	case m.hasCast(key, primitiveCastTypes...):
		a, err1 := m.castAttribute(key, current)
		b, err2 := m.castAttribute(key, original)
		return err1 == nil && err2 == nil && reflect.DeepEqual(a, b)
	}

	return numericallyEqual(current, original)
}

// numericallyEqual compares numbers and numeric strings by value, 1 and "1.0" are equal
func numericallyEqual(a, b interface{}) bool {
	if !utils.IsNumeric(a) || !utils.IsNumeric(b) {
		return false
	}
	fa, _ := utils.ToFloat(a)
	fb, _ := utils.ToFloat(b)
	return fa == fb
}

// keysEqual compares key values by identity, int64(1) and "1" are equal
func keysEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return utils.ToStringKey(a) == utils.ToStringKey(b)
}

func copyAttributes(attrs map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		result[k] = v
	}
	return result
}

func sortedAttributeKeys(attrs map[string]interface{}) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func castAttributeAsJSON(value interface{}) (string, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func fromJSON(value interface{}) (interface{}, error) {
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return value, nil
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}
