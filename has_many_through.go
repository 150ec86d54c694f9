package record

import (
	"context"

	"gorm.io/record/utils"
)

// throughKeyAlias alias of the through table parent key selected with related rows
const throughKeyAlias = "record_through_key"

// hasThrough related rows reached through an intermediate class
type hasThrough struct {
	relation
	through *Model
	// firstKey through column pointing to the parent
	firstKey string
	// secondKey related column pointing to the through rows
	secondKey      string
	localKey       string
	secondLocalKey string
}

func (m *Model) newHasThrough(related, through *Class, k Keys) hasThrough {
	base := newRelation(m, related)
	throughModel := m.db.New(through)
	throughModel.ctx = m.ctx

	return hasThrough{
		relation:       base,
		through:        throughModel,
		firstKey:       orDefault(k.FirstKey, m.GetForeignKey()),
		secondKey:      orDefault(k.SecondKey, throughModel.GetForeignKey()),
		localKey:       orDefault(k.LocalKey, m.GetKeyName()),
		secondLocalKey: orDefault(k.SecondLocalKey, throughModel.GetKeyName()),
	}
}

func (r *hasThrough) init(parent *Model) {
	r.performJoin(r.query)
	if !parent.noConstraints {
		r.AddConstraints()
	}
}

func (r *hasThrough) performJoin(query *Builder) {
	query.Join(r.through.GetTable(), r.through.QualifyColumn(r.secondLocalKey), "=", query.model.QualifyColumn(r.secondKey))
	if r.through.class.SoftDeletes {
		query.WhereNull(r.through.GetQualifiedDeletedAtColumn())
	}
}

// GetQualifiedFirstKeyName through column pointing to the parent, qualified
func (r *hasThrough) GetQualifiedFirstKeyName() string {
	return r.through.QualifyColumn(r.firstKey)
}

// AddConstraints implements Relation
func (r *hasThrough) AddConstraints() {
	r.query.Where(r.GetQualifiedFirstKeyName(), r.parent.Get(r.localKey))
}

// AddEagerConstraints implements Relation
func (r *hasThrough) AddEagerConstraints(models Collection) {
	r.query.WhereIn(r.GetQualifiedFirstKeyName(), r.keys(models, r.localKey))
}

// GetEager implements Relation
func (r *hasThrough) GetEager(ctx context.Context) (Collection, error) {
	return r.get(ctx)
}

func (r *hasThrough) get(ctx context.Context) (Collection, error) {
	builder := r.query.ApplyScopes()

	var columns []interface{}
	if !builder.query.HasColumns() {
		columns = append(columns, r.related.GetTable()+".*")
	}
	columns = append(columns, r.GetQualifiedFirstKeyName()+" as "+throughKeyAlias)
	builder.AddSelect(columns...)

	models, err := builder.GetModels(ctx)
	if err != nil || len(models) == 0 {
		return models, err
	}
	return builder.EagerLoadRelations(ctx, models)
}

func (r *hasThrough) buildDictionary(results Collection) map[string]Collection {
	dictionary := map[string]Collection{}
	for _, result := range results {
		key := utils.ToStringKey(result.Get(throughKeyAlias))
		dictionary[key] = append(dictionary[key], result)
	}
	return dictionary
}

// Touch implements Relation
func (r *hasThrough) Touch(ctx context.Context) error {
	if r.related.class.IsIgnoringTouch() {
		return nil
	}

	ids, err := r.query.Clone().WithoutGlobalScopes().ToBase().Pluck(ctx, r.related.GetQualifiedKeyName())
	if err != nil || len(ids) == 0 {
		return err
	}

	_, err = r.related.newQueryWithoutRelationships().WhereKey(ids).Update(ctx, map[string]interface{}{
		r.related.GetUpdatedAtColumn(): r.related.FreshTimestampString(),
	})
	return err
}

// ExistenceQuery implements Relation
func (r *hasThrough) ExistenceQuery(query, _ *Builder, columns interface{}) *Builder {
	r.performJoin(query)
	return query.Select(columns).WhereColumn(r.parent.QualifyColumn(r.localKey), "=", r.GetQualifiedFirstKeyName())
}

// HasManyThrough related rows reached through an intermediate class
type HasManyThrough struct {
	hasThrough
}

// GetResults implements Relation, a Collection
func (r *HasManyThrough) GetResults(ctx context.Context) (interface{}, error) {
	if r.parent.Get(r.localKey) == nil {
		return Collection{}, nil
	}
	return r.get(ctx)
}

// InitRelation implements Relation
func (r *HasManyThrough) InitRelation(models Collection, name string) Collection {
	for _, model := range models {
		model.SetRelation(name, Collection{})
	}
	return models
}

// Match implements Relation
func (r *HasManyThrough) Match(models, results Collection, name string) Collection {
	dictionary := r.buildDictionary(results)
	for _, model := range models {
		if matched, ok := dictionary[utils.ToStringKey(model.Get(r.localKey))]; ok {
			model.SetRelation(name, matched)
		}
	}
	return models
}

// HasOneThrough one related row reached through an intermediate class
type HasOneThrough struct {
	hasThrough
	withDefault defaultModel
}

// WithDefault returns a new related model filled with attrs instead of nil when no row exists
func (r *HasOneThrough) WithDefault(attrs ...map[string]interface{}) *HasOneThrough {
	r.withDefault = withDefaultAttrs(attrs)
	return r
}

// GetResults implements Relation, a *Model
func (r *HasOneThrough) GetResults(ctx context.Context) (interface{}, error) {
	if r.parent.Get(r.localKey) == nil {
		return r.withDefault.defaultFor(r.related, r.parent), nil
	}

	r.query.Limit(1)
	models, err := r.get(ctx)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return r.withDefault.defaultFor(r.related, r.parent), nil
	}
	return models[0], nil
}

// InitRelation implements Relation
func (r *HasOneThrough) InitRelation(models Collection, name string) Collection {
	for _, model := range models {
		model.SetRelation(name, r.withDefault.defaultFor(r.related, model))
	}
	return models
}

// Match implements Relation
func (r *HasOneThrough) Match(models, results Collection, name string) Collection {
	dictionary := r.buildDictionary(results)
	for _, model := range models {
		if matched, ok := dictionary[utils.ToStringKey(model.Get(r.localKey))]; ok {
			model.SetRelation(name, matched[0])
		}
	}
	return models
}
