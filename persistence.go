package record

import (
	"context"

	"github.com/google/uuid"
)

// Save inserts or updates the model. It returns false without error when a hook halts it
func (m *Model) Save(ctx context.Context) (bool, error) {
	var saved bool
	err := m.db.transaction(ctx, func(ctx context.Context) (err error) {
		saved, err = m.save(ctx, true)
		return err
	})
	return saved, err
}

// SaveQuietly saves without touching owners
func (m *Model) SaveQuietly(ctx context.Context) (bool, error) {
	var saved bool
	err := m.db.transaction(ctx, func(ctx context.Context) (err error) {
		saved, err = m.save(ctx, false)
		return err
	})
	return saved, err
}

func (m *Model) save(ctx context.Context, touch bool) (bool, error) {
	if !m.fireModelEvent(ctx, EventSaving, true) {
		return false, nil
	}

	var (
		saved bool
		err   error
	)
	if m.Exists {
		saved = true
		if m.IsDirty() {
			saved, err = m.performUpdate(ctx)
		}
	} else {
		saved, err = m.performInsert(ctx)
	}

	if err != nil || !saved {
		return false, err
	}
	return true, m.finishSave(ctx, touch)
}

func (m *Model) finishSave(ctx context.Context, touch bool) error {
	m.fireModelEvent(ctx, EventSaved, false)

	if touch && m.IsDirty() {
		if err := m.TouchOwners(ctx); err != nil {
			return err
		}
	}

	m.SyncOriginal()
	return nil
}

// setKeysForSaveQuery constrains b to the row of the model
func (m *Model) setKeysForSaveQuery(b *Builder) *Builder {
	return b.Where(m.GetKeyName(), m.getKeyForSaveQuery())
}

func (m *Model) performUpdate(ctx context.Context) (bool, error) {
	if !m.fireModelEvent(ctx, EventUpdating, true) {
		return false, nil
	}

	if m.UsesTimestamps() {
		if err := m.updateTimestamps(); err != nil {
			return false, err
		}
	}

	if dirty := m.GetDirty(); len(dirty) > 0 {
		if _, err := m.setKeysForSaveQuery(m.NewModelQuery()).Update(ctx, dirty); err != nil {
			return false, err
		}
		m.SyncChanges()
		m.fireModelEvent(ctx, EventUpdated, false)
	}
	return true, nil
}

func (m *Model) performInsert(ctx context.Context) (bool, error) {
	if !m.fireModelEvent(ctx, EventCreating, true) {
		return false, nil
	}

	if m.UsesTimestamps() {
		if err := m.updateTimestamps(); err != nil {
			return false, err
		}
	}

	q := m.NewModelQuery()
	switch m.class.KeyType {
	case KeyInt:
		id, err := q.InsertGetID(ctx, m.GetAttributes(), m.GetKeyName())
		if err != nil {
			return false, err
		}
		if m.GetKey() == nil {
			m.attributes[m.GetKeyName()] = id
		}
	default:
		if m.class.KeyType == KeyUUID && m.GetKey() == nil {
			m.attributes[m.GetKeyName()] = uuid.NewString()
		}

		attrs := m.GetAttributes()
		if len(attrs) == 0 {
			return true, nil
		}
		if _, err := q.Insert(ctx, attrs); err != nil {
			return false, err
		}
	}

	m.Exists = true
	m.WasRecentlyCreated = true
	m.fireModelEvent(ctx, EventCreated, false)
	return true, nil
}

// Update fills attrs and saves, false for models not stored yet
func (m *Model) Update(ctx context.Context, attrs map[string]interface{}) (bool, error) {
	if !m.Exists {
		return false, nil
	}
	if err := m.Fill(attrs); err != nil {
		return false, err
	}
	return m.Save(ctx)
}

// Delete deletes the model, soft deleting classes only set deleted_at
func (m *Model) Delete(ctx context.Context) (bool, error) {
	return m.delete(ctx, false)
}

// ForceDelete deletes the row even for soft deleting classes
func (m *Model) ForceDelete(ctx context.Context) (bool, error) {
	return m.delete(ctx, true)
}

func (m *Model) delete(ctx context.Context, force bool) (bool, error) {
	if m.GetKeyName() == "" {
		return false, ErrMissingPrimaryKey
	}
	if !m.Exists {
		return false, nil
	}

	var deleted bool
	err := m.db.transaction(ctx, func(ctx context.Context) error {
		if !m.fireModelEvent(ctx, EventDeleting, true) {
			return nil
		}

		if err := m.TouchOwners(ctx); err != nil {
			return err
		}

		if m.class.SoftDeletes && !force {
			if err := m.runSoftDelete(ctx); err != nil {
				return err
			}
		} else {
			if _, err := m.setKeysForSaveQuery(m.NewModelQuery()).Delete(ctx); err != nil {
				return err
			}
			m.Exists = false
		}

		deleted = true
		m.fireModelEvent(ctx, EventDeleted, false)
		return nil
	})
	return deleted, err
}

// Refresh reloads the attributes and loaded relations from the database
func (m *Model) Refresh(ctx context.Context) error {
	if !m.Exists {
		return nil
	}

	fresh, err := m.setKeysForSaveQuery(m.NewQueryWithoutScopes()).First(ctx)
	if err != nil {
		return err
	}
	if fresh == nil {
		return &ModelNotFoundError{Class: m.class.Name, IDs: []interface{}{m.GetKey()}}
	}
	m.SetRawAttributes(fresh.attributes, true)

	var names []string
	for _, name := range m.GetRelations() {
		if name != pivotAccessor {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return m.Load(ctx, names...)
}

// Fresh reloads the model into a new instance, nil when the row is gone
func (m *Model) Fresh(ctx context.Context, with ...string) (*Model, error) {
	if !m.Exists {
		return nil, nil
	}
	return m.setKeysForSaveQuery(m.NewQueryWithoutScopes()).With(with...).First(ctx)
}

// Replicate unsaved copy without the key and timestamps, except columns are left out too
func (m *Model) Replicate(except ...string) *Model {
	skip := map[string]bool{m.GetKeyName(): true}
	columns := append([]string{m.GetCreatedAtColumn(), m.GetUpdatedAtColumn()}, except...)
	for _, column := range columns {
		if column != "" {
			skip[column] = true
		}
	}

	attrs := map[string]interface{}{}
	for key, value := range m.attributes {
		if !skip[key] {
			attrs[key] = value
		}
	}

	instance := m.db.New(m.class)
	instance.ctx = m.ctx
	instance.SetRawAttributes(attrs, false)
	for name, value := range m.relations {
		instance.relations[name] = value
	}
	return instance
}

// Push saves the model and all loaded relations
func (m *Model) Push(ctx context.Context) (bool, error) {
	var pushed bool
	err := m.db.transaction(ctx, func(ctx context.Context) (err error) {
		pushed, err = m.push(ctx)
		return err
	})
	return pushed, err
}

func (m *Model) push(ctx context.Context) (bool, error) {
	if saved, err := m.save(ctx, true); err != nil || !saved {
		return false, err
	}

	for _, name := range m.GetRelations() {
		if name == pivotAccessor {
			continue
		}

		var models Collection
		switch related := m.relations[name].(type) {
		case *Model:
			if related != nil {
				models = Collection{related}
			}
		case Collection:
			models = related
		}

		for _, model := range models {
			if pushed, err := model.push(ctx); err != nil || !pushed {
				return false, err
			}
		}
	}
	return true, nil
}
