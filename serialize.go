package record

import (
	"encoding/json"
	"time"

	"gorm.io/record/utils"
)

// ToMap attributes and loaded relations, transformed by getters and casts, dates formatted.
// Class.Visible restricts the keys when set, Class.Hidden keys are left out
func (m *Model) ToMap() (map[string]interface{}, error) {
	result, err := m.AttributesToMap()
	if err != nil {
		return nil, err
	}

	relations, err := m.RelationsToMap()
	if err != nil {
		return nil, err
	}
	for key, value := range relations {
		result[key] = value
	}
	return result, nil
}

// AttributesToMap visible attributes, transformed by getters and casts
func (m *Model) AttributesToMap() (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(m.attributes))
	for _, key := range sortedAttributeKeys(m.attributes) {
		if !m.isVisible(key) {
			continue
		}

		value, err := m.transformModelValue(key, m.attributes[key])
		if err != nil {
			return nil, err
		}
		if t, ok := value.(time.Time); ok {
			value = m.serializeDate(key, t)
		}
		result[key] = value
	}
	return result, nil
}

// RelationsToMap visible loaded relations, serialized recursively
func (m *Model) RelationsToMap() (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(m.relations))
	for _, name := range m.GetRelations() {
		if !m.isVisible(name) {
			continue
		}

		switch related := m.relations[name].(type) {
		case *Model:
			if related == nil {
				result[name] = nil
				continue
			}
			value, err := related.ToMap()
			if err != nil {
				return nil, err
			}
			result[name] = value
		case Collection:
			value, err := related.ToMaps()
			if err != nil {
				return nil, err
			}
			result[name] = value
		default:
			result[name] = related
		}
	}
	return result, nil
}

func (m *Model) isVisible(key string) bool {
	if len(m.class.Visible) > 0 && !utils.Contains(m.class.Visible, key) {
		return false
	}
	return !utils.Contains(m.class.Hidden, key)
}

// MarshalJSON implements json.Marshaler with ToMap
func (m *Model) MarshalJSON() ([]byte, error) {
	values, err := m.ToMap()
	if err != nil {
		return nil, err
	}
	return json.Marshal(values)
}

// MarshalJSON implements json.Marshaler, a JSON array of the serialized models
func (c Collection) MarshalJSON() ([]byte, error) {
	values, err := c.ToMaps()
	if err != nil {
		return nil, err
	}
	return json.Marshal(values)
}
