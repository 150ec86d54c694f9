package record

import (
	"context"
	"strings"

	"gorm.io/record/utils"
)

// Get runs the query with global scopes applied, hydrates the rows and eager loads
// relations when rows were found
func (b *Builder) Get(ctx context.Context, columns ...string) (Collection, error) {
	builder := b.ApplyScopes()

	models, err := builder.GetModels(ctx, columns...)
	if err != nil || len(models) == 0 {
		return models, err
	}
	return builder.EagerLoadRelations(ctx, models)
}

// GetModels hydrates the rows of the query, scopes and eager loads are not applied
func (b *Builder) GetModels(ctx context.Context, columns ...string) (Collection, error) {
	rows, err := b.query.Get(ctx, columns...)
	if err != nil {
		return nil, err
	}
	return b.hydrate(ctx, rows), nil
}

func (b *Builder) hydrate(ctx context.Context, rows []map[string]interface{}) Collection {
	models := make(Collection, 0, len(rows))
	for _, row := range rows {
		models = append(models, b.model.newFromBuilder(ctx, row))
	}
	return models
}

// First first matching model, nil when there is none
func (b *Builder) First(ctx context.Context, columns ...string) (*Model, error) {
	models, err := b.Clone().Take(1).Get(ctx, columns...)
	if err != nil || len(models) == 0 {
		return nil, err
	}
	return models[0], nil
}

// FirstOrFail first matching model or a *ModelNotFoundError
func (b *Builder) FirstOrFail(ctx context.Context, columns ...string) (*Model, error) {
	model, err := b.First(ctx, columns...)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, &ModelNotFoundError{Class: b.model.class.Name}
	}
	return model, nil
}

// FirstWhere first model matching the condition
func (b *Builder) FirstWhere(ctx context.Context, column interface{}, args ...interface{}) (*Model, error) {
	return b.Where(column, args...).First(ctx)
}

// Find model by primary key, nil when not found
func (b *Builder) Find(ctx context.Context, id interface{}, columns ...string) (*Model, error) {
	return b.Clone().WhereKey(id).First(ctx, columns...)
}

// FindMany models by primary keys
func (b *Builder) FindMany(ctx context.Context, ids []interface{}, columns ...string) (Collection, error) {
	if len(ids) == 0 {
		return Collection{}, nil
	}
	return b.Clone().WhereKey(ids).Get(ctx, columns...)
}

// FindOrFail model by primary key or a *ModelNotFoundError
func (b *Builder) FindOrFail(ctx context.Context, id interface{}, columns ...string) (*Model, error) {
	model, err := b.Find(ctx, id, columns...)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, &ModelNotFoundError{Class: b.model.class.Name, IDs: []interface{}{id}}
	}
	return model, nil
}

// FindManyOrFail models by primary keys, a *ModelNotFoundError with the missing ids unless
// every distinct id was found
func (b *Builder) FindManyOrFail(ctx context.Context, ids []interface{}, columns ...string) (Collection, error) {
	models, err := b.FindMany(ctx, ids, columns...)
	if err != nil {
		return nil, err
	}

	unique := utils.UniqueKeys(ids)
	if len(models) == len(unique) {
		return models, nil
	}

	found := map[string]bool{}
	for _, key := range models.ModelKeys() {
		found[utils.ToStringKey(key)] = true
	}
	var missing []interface{}
	for _, id := range unique {
		if !found[utils.ToStringKey(id)] {
			missing = append(missing, id)
		}
	}
	return nil, &ModelNotFoundError{Class: b.model.class.Name, IDs: missing}
}

// FindOrNew model by primary key, a new model when not found
func (b *Builder) FindOrNew(ctx context.Context, id interface{}, columns ...string) (*Model, error) {
	model, err := b.Find(ctx, id, columns...)
	if err != nil || model != nil {
		return model, err
	}
	return b.newModelInstance(nil)
}

// FirstOrNew first model matching attrs, a new model filled with attrs and values otherwise
func (b *Builder) FirstOrNew(ctx context.Context, attrs map[string]interface{}, values ...map[string]interface{}) (*Model, error) {
	model, err := b.Clone().Where(attrs).First(ctx)
	if err != nil || model != nil {
		return model, err
	}
	return b.newModelInstance(mergeAttributes(attrs, values...))
}

// FirstOrCreate first model matching attrs, a saved model filled with attrs and values otherwise
func (b *Builder) FirstOrCreate(ctx context.Context, attrs map[string]interface{}, values ...map[string]interface{}) (*Model, error) {
	model, err := b.Clone().Where(attrs).First(ctx)
	if err != nil || model != nil {
		return model, err
	}
	return b.Create(ctx, mergeAttributes(attrs, values...))
}

// UpdateOrCreate fills values into the first model matching attrs, or a new one, and saves it
func (b *Builder) UpdateOrCreate(ctx context.Context, attrs map[string]interface{}, values map[string]interface{}) (*Model, error) {
	model, err := b.FirstOrNew(ctx, attrs)
	if err != nil {
		return nil, err
	}
	if err := model.Fill(values); err != nil {
		return nil, err
	}
	if _, err := model.Save(ctx); err != nil {
		return nil, err
	}
	return model, nil
}

func mergeAttributes(attrs map[string]interface{}, values ...map[string]interface{}) map[string]interface{} {
	merged := copyAttributes(attrs)
	for _, v := range values {
		for key, value := range v {
			merged[key] = value
		}
	}
	return merged
}

func (b *Builder) newModelInstance(attrs map[string]interface{}) (*Model, error) {
	return b.model.NewInstance(attrs)
}

// Make new unsaved model filled with attrs
func (b *Builder) Make(attrs map[string]interface{}) (*Model, error) {
	return b.newModelInstance(attrs)
}

// Create saves a new model filled with attrs
func (b *Builder) Create(ctx context.Context, attrs map[string]interface{}) (*Model, error) {
	model, err := b.newModelInstance(attrs)
	if err != nil {
		return nil, err
	}
	if _, err := model.Save(ctx); err != nil {
		return nil, err
	}
	return model, nil
}

// ForceCreate saves a new model with attrs, ignoring mass assignment protection
func (b *Builder) ForceCreate(ctx context.Context, attrs map[string]interface{}) (*Model, error) {
	model, err := b.newModelInstance(nil)
	if err != nil {
		return nil, err
	}
	if err := model.ForceFill(attrs); err != nil {
		return nil, err
	}
	if _, err := model.Save(ctx); err != nil {
		return nil, err
	}
	return model, nil
}

// Value column of the first model, transformed like GetAttribute
func (b *Builder) Value(ctx context.Context, column string) (interface{}, error) {
	model, err := b.First(ctx, column)
	if err != nil || model == nil {
		return nil, err
	}
	return model.GetAttribute(lastSegment(column))
}

// Pluck values of column, transformed when the class has a getter, cast or date for it
func (b *Builder) Pluck(ctx context.Context, column string) ([]interface{}, error) {
	values, err := b.ToBase().Pluck(ctx, column)
	if err != nil {
		return nil, err
	}

	key := lastSegment(column)
	if !b.model.hasGetter(key) && !b.model.hasCast(key) && !utils.Contains(b.model.GetDates(), key) {
		return values, nil
	}

	for idx, value := range values {
		model := b.model.newFromBuilder(ctx, map[string]interface{}{key: value})
		if values[idx], err = model.GetAttribute(key); err != nil {
			return nil, err
		}
	}
	return values, nil
}

func lastSegment(column string) string {
	if idx := strings.LastIndexByte(column, '.'); idx >= 0 {
		return column[idx+1:]
	}
	return column
}

// Count counts matching rows
func (b *Builder) Count(ctx context.Context, column ...string) (int64, error) {
	return b.ToBase().Count(ctx, column...)
}

// Exists reports whether any row matches
func (b *Builder) Exists(ctx context.Context) (bool, error) {
	return b.ToBase().Exists(ctx)
}

// DoesntExist reports whether no row matches
func (b *Builder) DoesntExist(ctx context.Context) (bool, error) {
	return b.ToBase().DoesntExist(ctx)
}

// Update updates matching rows, updated_at included
func (b *Builder) Update(ctx context.Context, values map[string]interface{}) (int64, error) {
	return b.ToBase().Update(ctx, b.addUpdatedAtColumn(values))
}

func (b *Builder) addUpdatedAtColumn(values map[string]interface{}) map[string]interface{} {
	column := b.model.GetUpdatedAtColumn()
	if !b.model.UsesTimestamps() || column == "" {
		return values
	}

	merged := map[string]interface{}{column: b.model.FreshTimestampString()}
	for key, value := range values {
		merged[key] = value
	}
	return merged
}

// Increment adds amount to column of matching rows
func (b *Builder) Increment(ctx context.Context, column string, amount interface{}, extra ...map[string]interface{}) (int64, error) {
	return b.ToBase().Increment(ctx, column, amount, b.addUpdatedAtColumn(mergeAttributes(nil, extra...)))
}

// Decrement subtracts amount from column of matching rows
func (b *Builder) Decrement(ctx context.Context, column string, amount interface{}, extra ...map[string]interface{}) (int64, error) {
	return b.ToBase().Decrement(ctx, column, amount, b.addUpdatedAtColumn(mergeAttributes(nil, extra...)))
}

// Delete deletes matching rows through the replacement delete when one is registered
func (b *Builder) Delete(ctx context.Context) (int64, error) {
	if b.onDelete != nil {
		return b.onDelete(ctx, b)
	}
	return b.ToBase().Delete(ctx)
}

// ForceDelete deletes matching rows, global scopes and the replacement delete ignored
func (b *Builder) ForceDelete(ctx context.Context) (int64, error) {
	return b.query.Delete(ctx)
}

// OnDelete replaces how Delete removes rows
func (b *Builder) OnDelete(fn func(ctx context.Context, b *Builder) (int64, error)) *Builder {
	b.onDelete = fn
	return b
}

// InsertGetID inserts values and returns the generated key
func (b *Builder) InsertGetID(ctx context.Context, values map[string]interface{}, sequence string) (interface{}, error) {
	return b.query.InsertGetID(ctx, values, sequence)
}

// Insert inserts rows
func (b *Builder) Insert(ctx context.Context, rows ...map[string]interface{}) (int64, error) {
	return b.query.Insert(ctx, rows...)
}

// Chunk runs fn over pages of count models, ordered by the key unless ordered already.
// fn returning false stops, Chunk then reports false. A count below one reports false without querying
func (b *Builder) Chunk(ctx context.Context, count int, fn func(models Collection, page int) (bool, error)) (bool, error) {
	if count <= 0 {
		return false, nil
	}

	builder := b.Clone()
	if len(builder.query.Orders) == 0 {
		builder.OrderBy(b.model.GetQualifiedKeyName())
	}

	for page := 1; ; page++ {
		results, err := builder.Clone().ForPage(page, count).Get(ctx)
		if err != nil {
			return false, err
		}
		if len(results) == 0 {
			return true, nil
		}

		if cont, err := fn(results, page); err != nil || !cont {
			return false, err
		}

		if len(results) != count {
			return true, nil
		}
	}
}

// ChunkByID pages by a strictly increasing column instead of offsets. column defaults to
// the primary key, alias names column in the results
func (b *Builder) ChunkByID(ctx context.Context, count int, fn func(models Collection, page int) (bool, error), column, alias string) (bool, error) {
	if count <= 0 {
		return false, nil
	}
	if column == "" {
		column = b.model.GetKeyName()
	}
	if alias == "" {
		alias = column
	}

	var lastID interface{}
	for page := 1; ; page++ {
		results, err := b.Clone().ForPageAfterID(count, lastID, column).Get(ctx)
		if err != nil {
			return false, err
		}
		if len(results) == 0 {
			return true, nil
		}

		if cont, err := fn(results, page); err != nil || !cont {
			return false, err
		}

		if lastID = results[len(results)-1].Get(alias); lastID == nil {
			return false, ErrChunkColumnMissing
		}

		if len(results) != count {
			return true, nil
		}
	}
}

// Each runs fn over every model, loading count models at a time
func (b *Builder) Each(ctx context.Context, count int, fn func(m *Model, idx int) (bool, error)) (bool, error) {
	idx := 0
	return b.Chunk(ctx, count, func(models Collection, _ int) (bool, error) {
		for _, model := range models {
			if cont, err := fn(model, idx); err != nil || !cont {
				return false, err
			}
			idx++
		}
		return true, nil
	})
}
