package record

import (
	"context"

	"gorm.io/record/utils"
)

// Collection ordered list of models
type Collection []*Model

// ModelKeys primary keys of the models, nil and duplicates removed, sorted
func (c Collection) ModelKeys() []interface{} {
	keys := make([]interface{}, 0, len(c))
	for _, m := range c {
		keys = append(keys, m.GetKey())
	}
	return utils.UniqueKeys(keys)
}

// Pluck attribute key of every model
func (c Collection) Pluck(key string) []interface{} {
	values := make([]interface{}, 0, len(c))
	for _, m := range c {
		values = append(values, m.Get(key))
	}
	return values
}

// Find model with primary key, nil when missing
func (c Collection) Find(key interface{}) *Model {
	for _, m := range c {
		if keysEqual(m.GetKey(), key) {
			return m
		}
	}
	return nil
}

// Contains reports whether the collection holds the same row as model
func (c Collection) Contains(model *Model) bool {
	for _, m := range c {
		if m.Is(model) {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the collection has no model
func (c Collection) IsEmpty() bool {
	return len(c) == 0
}

// First first model, nil when empty
func (c Collection) First() *Model {
	if len(c) == 0 {
		return nil
	}
	return c[0]
}

// Last last model, nil when empty
func (c Collection) Last() *Model {
	if len(c) == 0 {
		return nil
	}
	return c[len(c)-1]
}

// Filter models fn returns true for
func (c Collection) Filter(fn func(m *Model) bool) Collection {
	filtered := make(Collection, 0, len(c))
	for _, m := range c {
		if fn(m) {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

// Load eager loads relations onto every model with one query per relation
func (c Collection) Load(ctx context.Context, relations ...string) error {
	if len(c) == 0 {
		return nil
	}
	_, err := c[0].newQueryWithoutRelationships().With(relations...).EagerLoadRelations(ctx, c)
	return err
}

// ToMaps serialized models, see Model.ToMap
func (c Collection) ToMaps() ([]map[string]interface{}, error) {
	maps := make([]map[string]interface{}, 0, len(c))
	for _, m := range c {
		v, err := m.ToMap()
		if err != nil {
			return nil, err
		}
		maps = append(maps, v)
	}
	return maps, nil
}
