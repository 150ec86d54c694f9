package record

import (
	"context"

	"gorm.io/record/utils"
)

// hasOneOrMany related rows hold the parent key, optionally with a morph type
type hasOneOrMany struct {
	relation
	// foreignKey qualified related column holding the parent key
	foreignKey string
	localKey   string
	// morphType qualified type column, empty unless polymorphic
	morphType  string
	morphClass string
}

func (m *Model) newHasOneOrMany(related *Class, foreignKey, localKey string) hasOneOrMany {
	base := newRelation(m, related)
	return hasOneOrMany{
		relation:   base,
		foreignKey: base.related.QualifyColumn(orDefault(foreignKey, m.GetForeignKey())),
		localKey:   orDefault(localKey, m.GetKeyName()),
	}
}

func (m *Model) newMorphOneOrMany(related *Class, name string, k Keys) hasOneOrMany {
	r := m.newHasOneOrMany(related, orDefault(k.ID, orDefault(k.ForeignKey, name+"_id")), k.LocalKey)
	r.morphType = r.related.QualifyColumn(orDefault(k.Type, name+"_type"))
	r.morphClass = m.GetMorphClass()
	return r
}

func (r *hasOneOrMany) init(parent *Model) {
	if !parent.noConstraints {
		r.AddConstraints()
	}
}

// AddConstraints implements Relation
func (r *hasOneOrMany) AddConstraints() {
	r.query.Where(r.foreignKey, r.parent.Get(r.localKey))
	r.query.WhereNotNull(r.foreignKey)
	if r.morphType != "" {
		r.query.Where(r.morphType, r.morphClass)
	}
}

// AddEagerConstraints implements Relation
func (r *hasOneOrMany) AddEagerConstraints(models Collection) {
	r.query.WhereIn(r.foreignKey, r.keys(models, r.localKey))
	if r.morphType != "" {
		r.query.Where(r.morphType, r.morphClass)
	}
}

// GetForeignKeyName unqualified foreign key
func (r *hasOneOrMany) GetForeignKeyName() string {
	return unqualified(r.foreignKey)
}

// GetQualifiedForeignKeyName foreign key qualified with the related table
func (r *hasOneOrMany) GetQualifiedForeignKeyName() string {
	return r.foreignKey
}

// GetLocalKeyName parent column the foreign key points to
func (r *hasOneOrMany) GetLocalKeyName() string {
	return r.localKey
}

// GetMorphType unqualified morph type column, empty unless polymorphic
func (r *hasOneOrMany) GetMorphType() string {
	if r.morphType == "" {
		return ""
	}
	return unqualified(r.morphType)
}

func (r *hasOneOrMany) parentKey() interface{} {
	return r.parent.Get(r.localKey)
}

func (r *hasOneOrMany) matchOneOrMany(models, results Collection, name string, one bool) Collection {
	dictionary := map[string]Collection{}
	foreignKey := r.GetForeignKeyName()
	for _, result := range results {
		key := utils.ToStringKey(result.Get(foreignKey))
		dictionary[key] = append(dictionary[key], result)
	}

	for _, model := range models {
		value := model.Get(r.localKey)
		if value == nil {
			continue
		}
		if matched, ok := dictionary[utils.ToStringKey(value)]; ok {
			if one {
				model.SetRelation(name, matched[0])
			} else {
				model.SetRelation(name, matched)
			}
		}
	}
	return models
}

// ExistenceQuery implements Relation
func (r *hasOneOrMany) ExistenceQuery(query, parent *Builder, columns interface{}) *Builder {
	foreignKey := r.foreignKey
	if query.model.GetTable() == parent.model.GetTable() {
		hash := newRelationCountHash()
		query.From(query.model.GetTable() + " as " + hash)
		foreignKey = hash + "." + r.GetForeignKeyName()
	}

	query.Select(columns).WhereColumn(r.parent.QualifyColumn(r.localKey), "=", foreignKey)
	if r.morphType != "" {
		query.Where(r.morphType, r.morphClass)
	}
	return query
}

func (r *hasOneOrMany) setForeignAttributesForCreate(model *Model) error {
	if err := model.SetAttribute(r.GetForeignKeyName(), r.parentKey()); err != nil {
		return err
	}
	if r.morphType != "" {
		return model.SetAttribute(r.GetMorphType(), r.morphClass)
	}
	return nil
}

// Make new related model filled with attrs and pointing to the parent, not saved
func (r *hasOneOrMany) Make(attrs map[string]interface{}) (*Model, error) {
	instance, err := r.related.NewInstance(attrs)
	if err != nil {
		return nil, err
	}
	return instance, r.setForeignAttributesForCreate(instance)
}

// Create saves a new related model filled with attrs and pointing to the parent
func (r *hasOneOrMany) Create(ctx context.Context, attrs map[string]interface{}) (*Model, error) {
	instance, err := r.Make(attrs)
	if err != nil {
		return nil, err
	}
	if _, err := instance.Save(ctx); err != nil {
		return nil, err
	}
	return instance, nil
}

// CreateMany saves a related model per attrs
func (r *hasOneOrMany) CreateMany(ctx context.Context, attrs []map[string]interface{}) (Collection, error) {
	models := make(Collection, 0, len(attrs))
	for _, a := range attrs {
		model, err := r.Create(ctx, a)
		if err != nil {
			return models, err
		}
		models = append(models, model)
	}
	return models, nil
}

// Save points model to the parent and saves it
func (r *hasOneOrMany) Save(ctx context.Context, model *Model) (bool, error) {
	if err := r.setForeignAttributesForCreate(model); err != nil {
		return false, err
	}
	return model.Save(ctx)
}

// SaveMany points models to the parent and saves them
func (r *hasOneOrMany) SaveMany(ctx context.Context, models Collection) error {
	for _, model := range models {
		if _, err := r.Save(ctx, model); err != nil {
			return err
		}
	}
	return nil
}

// HasOne one related row holds the parent key
type HasOne struct {
	hasOneOrMany
	withDefault defaultModel
}

// WithDefault returns a new related model filled with attrs instead of nil when no row exists
func (r *HasOne) WithDefault(attrs ...map[string]interface{}) *HasOne {
	r.withDefault = withDefaultAttrs(attrs)
	return r
}

// WithDefaultFunc returns a new related model prepared by fn instead of nil when no row exists
func (r *HasOne) WithDefaultFunc(fn func(related, parent *Model)) *HasOne {
	r.withDefault = defaultModel{enabled: true, fn: fn}
	return r
}

// GetResults implements Relation, a *Model
func (r *HasOne) GetResults(ctx context.Context) (interface{}, error) {
	if r.parentKey() == nil {
		return r.withDefault.defaultFor(r.related, r.parent), nil
	}

	model, err := r.query.First(ctx)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return r.withDefault.defaultFor(r.related, r.parent), nil
	}
	return model, nil
}

// InitRelation implements Relation
func (r *HasOne) InitRelation(models Collection, name string) Collection {
	for _, model := range models {
		model.SetRelation(name, r.withDefault.defaultFor(r.related, model))
	}
	return models
}

// Match implements Relation
func (r *HasOne) Match(models, results Collection, name string) Collection {
	return r.matchOneOrMany(models, results, name, true)
}

// HasMany related rows hold the parent key
type HasMany struct {
	hasOneOrMany
}

// GetResults implements Relation, a Collection
func (r *HasMany) GetResults(ctx context.Context) (interface{}, error) {
	if r.parentKey() == nil {
		return Collection{}, nil
	}
	return r.query.Get(ctx)
}

// InitRelation implements Relation
func (r *HasMany) InitRelation(models Collection, name string) Collection {
	for _, model := range models {
		model.SetRelation(name, Collection{})
	}
	return models
}

// Match implements Relation
func (r *HasMany) Match(models, results Collection, name string) Collection {
	return r.matchOneOrMany(models, results, name, false)
}

// MorphOne polymorphic HasOne
type MorphOne struct {
	HasOne
}

// MorphMany polymorphic HasMany
type MorphMany struct {
	HasMany
}
