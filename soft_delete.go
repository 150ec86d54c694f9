package record

import "context"

// SoftDeletingScope hides soft deleted rows and turns deletes into deleted_at updates
type SoftDeletingScope struct{}

// Apply implements Scope
func (SoftDeletingScope) Apply(b *Builder, m *Model) {
	b.WhereNull(m.GetQualifiedDeletedAtColumn())
}

// Extend implements ScopeExtender
func (scope SoftDeletingScope) Extend(b *Builder) {
	b.OnDelete(func(ctx context.Context, b *Builder) (int64, error) {
		return b.Update(ctx, map[string]interface{}{
			b.model.GetDeletedAtColumn(): b.model.FreshTimestampString(),
		})
	})

	b.Macro("restore", func(ctx context.Context, b *Builder, args ...interface{}) (interface{}, error) {
		return b.Restore(ctx)
	})
	b.Macro("withTrashed", func(ctx context.Context, b *Builder, args ...interface{}) (interface{}, error) {
		if len(args) > 0 {
			if with, ok := args[0].(bool); ok && !with {
				return b.WithoutTrashed(), nil
			}
		}
		return b.WithTrashed(), nil
	})
	b.Macro("withoutTrashed", func(ctx context.Context, b *Builder, args ...interface{}) (interface{}, error) {
		return b.WithoutTrashed(), nil
	})
	b.Macro("onlyTrashed", func(ctx context.Context, b *Builder, args ...interface{}) (interface{}, error) {
		return b.OnlyTrashed(), nil
	})
}

// WithTrashed includes soft deleted rows
func (b *Builder) WithTrashed() *Builder {
	return b.WithoutGlobalScope(SoftDeletingScope{})
}

// WithoutTrashed excludes soft deleted rows
func (b *Builder) WithoutTrashed() *Builder {
	b.WithoutGlobalScope(SoftDeletingScope{})
	if b.model.class.SoftDeletes {
		b.WhereNull(b.model.GetQualifiedDeletedAtColumn())
	}
	return b
}

// OnlyTrashed only soft deleted rows
func (b *Builder) OnlyTrashed() *Builder {
	b.WithoutGlobalScope(SoftDeletingScope{})
	if b.model.class.SoftDeletes {
		b.WhereNotNull(b.model.GetQualifiedDeletedAtColumn())
	}
	return b
}

// Restore clears deleted_at of the matching rows
func (b *Builder) Restore(ctx context.Context) (int64, error) {
	b.WithTrashed()
	return b.Update(ctx, map[string]interface{}{b.model.GetDeletedAtColumn(): nil})
}

// GetDeletedAtColumn soft delete column
func (m *Model) GetDeletedAtColumn() string {
	return m.class.DeletedAtColumn
}

// GetQualifiedDeletedAtColumn soft delete column qualified with the table
func (m *Model) GetQualifiedDeletedAtColumn() string {
	return m.QualifyColumn(m.GetDeletedAtColumn())
}

// Trashed reports whether the model is soft deleted
func (m *Model) Trashed() bool {
	return m.class.SoftDeletes && m.attributes[m.GetDeletedAtColumn()] != nil
}

func (m *Model) runSoftDelete(ctx context.Context) error {
	t := m.FreshTimestamp()
	column := m.GetDeletedAtColumn()

	if err := m.SetAttribute(column, t); err != nil {
		return err
	}
	columns := map[string]interface{}{column: m.attributes[column]}

	if updatedAt := m.GetUpdatedAtColumn(); m.UsesTimestamps() && updatedAt != "" {
		if err := m.SetAttribute(updatedAt, t); err != nil {
			return err
		}
		columns[updatedAt] = m.attributes[updatedAt]
	}

	if _, err := m.setKeysForSaveQuery(m.NewModelQuery()).Update(ctx, columns); err != nil {
		return err
	}

	m.SyncOriginalAttributes(sortedAttributeKeys(columns)...)
	m.fireModelEvent(ctx, EventTrashed, false)
	return nil
}

// Restore clears deleted_at and saves the model
func (m *Model) Restore(ctx context.Context) (bool, error) {
	if !m.fireModelEvent(ctx, EventRestoring, true) {
		return false, nil
	}

	m.attributes[m.GetDeletedAtColumn()] = nil
	m.Exists = true
	saved, err := m.Save(ctx)
	if err != nil || !saved {
		return saved, err
	}

	m.fireModelEvent(ctx, EventRestored, false)
	return true, nil
}
