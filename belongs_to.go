package record

import (
	"context"
	"fmt"

	"gorm.io/record/utils"
)

// BelongsTo the parent row holds the key of the related row
type BelongsTo struct {
	relation
	// foreignKey parent column holding the related key
	foreignKey   string
	ownerKey     string
	relationName string
	withDefault  defaultModel
}

func (m *Model) newBelongsTo(related *Class, k Keys) *BelongsTo {
	base := newRelation(m, related)
	name := orDefault(k.Relation, orDefault(m.resolving, related.Name))
	ownerKey := orDefault(k.OwnerKey, base.related.GetKeyName())

	return &BelongsTo{
		relation:     base,
		foreignKey:   orDefault(k.ForeignKey, m.db.NamingStrategy.ForeignKey(name, ownerKey)),
		ownerKey:     ownerKey,
		relationName: name,
	}
}

// WithDefault returns a new related model filled with attrs instead of nil when no row exists
func (r *BelongsTo) WithDefault(attrs ...map[string]interface{}) *BelongsTo {
	r.withDefault = withDefaultAttrs(attrs)
	return r
}

// WithDefaultFunc returns a new related model prepared by fn instead of nil when no row exists
func (r *BelongsTo) WithDefaultFunc(fn func(related, parent *Model)) *BelongsTo {
	r.withDefault = defaultModel{enabled: true, fn: fn}
	return r
}

// AddConstraints implements Relation
func (r *BelongsTo) AddConstraints() {
	r.query.Where(r.related.QualifyColumn(r.ownerKey), r.parent.Get(r.foreignKey))
}

// AddEagerConstraints implements Relation
func (r *BelongsTo) AddEagerConstraints(models Collection) {
	r.query.WhereIn(r.related.QualifyColumn(r.ownerKey), r.keys(models, r.foreignKey))
}

// InitRelation implements Relation
func (r *BelongsTo) InitRelation(models Collection, name string) Collection {
	for _, model := range models {
		model.SetRelation(name, r.withDefault.defaultFor(r.related, model))
	}
	return models
}

// Match implements Relation
func (r *BelongsTo) Match(models, results Collection, name string) Collection {
	dictionary := map[string]*Model{}
	for _, result := range results {
		dictionary[utils.ToStringKey(result.Get(r.ownerKey))] = result
	}

	for _, model := range models {
		value := model.Get(r.foreignKey)
		if value == nil {
			continue
		}
		if result, ok := dictionary[utils.ToStringKey(value)]; ok {
			model.SetRelation(name, result)
		}
	}
	return models
}

// GetResults implements Relation, a *Model
func (r *BelongsTo) GetResults(ctx context.Context) (interface{}, error) {
	if r.parent.Get(r.foreignKey) == nil {
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

// ExistenceQuery implements Relation
func (r *BelongsTo) ExistenceQuery(query, parent *Builder, columns interface{}) *Builder {
	ownerKey := query.model.QualifyColumn(r.ownerKey)
	if query.model.GetTable() == parent.model.GetTable() {
		hash := newRelationCountHash()
		query.From(query.model.GetTable() + " as " + hash)
		ownerKey = hash + "." + r.ownerKey
	}
	return query.Select(columns).WhereColumn(r.parent.QualifyColumn(r.foreignKey), "=", ownerKey)
}

// Associate points the parent to related, a *Model or a key value
func (r *BelongsTo) Associate(related interface{}) *Model {
	if model, ok := related.(*Model); ok {
		r.parent.Set(r.foreignKey, model.Get(r.ownerKey))
		r.parent.SetRelation(r.relationName, model)
		return r.parent
	}

	r.parent.Set(r.foreignKey, related)
	r.parent.UnsetRelation(r.relationName)
	return r.parent
}

// Dissociate clears the foreign key of the parent
func (r *BelongsTo) Dissociate() *Model {
	r.parent.Set(r.foreignKey, nil)
	r.parent.SetRelation(r.relationName, (*Model)(nil))
	return r.parent
}

// GetForeignKeyName parent column holding the related key
func (r *BelongsTo) GetForeignKeyName() string {
	return r.foreignKey
}

// GetOwnerKeyName related column the foreign key points to
func (r *BelongsTo) GetOwnerKeyName() string {
	return r.ownerKey
}

// GetRelationName name of the relation
func (r *BelongsTo) GetRelationName() string {
	return r.relationName
}

// MorphTo the parent row holds the key and the morph type of a related row of any class.
// Eager loading runs one query per distinct morph type
type MorphTo struct {
	BelongsTo
	morphType string
	// explicitOwnerKey owner key given by the declaration, the key of each class otherwise
	explicitOwnerKey string

	dictionary map[string]map[string]Collection
	typeKeys   map[string][]interface{}
	typeOrder  []string
	morphWith  map[string][]string
}

func (m *Model) newMorphTo(k Keys) *MorphTo {
	name := orDefault(k.Relation, m.resolving)
	typeColumn := orDefault(k.Type, name+"_type")
	idColumn := orDefault(k.ID, orDefault(k.ForeignKey, name+"_id"))

	class, morphType := m.class, morphTypeOf(m.Get(typeColumn))
	var err error
	if morphType != "" {
		if resolved, e := ClassForMorph(morphType); e != nil {
			err = e
		} else {
			class = resolved
		}
	}

	r := &MorphTo{
		BelongsTo:        *m.newBelongsTo(class, Keys{ForeignKey: idColumn, OwnerKey: k.OwnerKey, Relation: name}),
		morphType:        typeColumn,
		explicitOwnerKey: k.OwnerKey,
	}

	if morphType == "" {
		r.query.SetEagerLoads(nil)
	}
	if err != nil {
		r.query.AddError(err)
	}
	if !m.noConstraints {
		r.AddConstraints()
	}
	return r
}

func morphTypeOf(value interface{}) string {
	if value == nil {
		return ""
	}
	return toString(value)
}

// MorphWith eager loads relations on the results of a morph type, keyed by class name
func (r *MorphTo) MorphWith(with map[string][]string) *MorphTo {
	if r.morphWith == nil {
		r.morphWith = map[string][]string{}
	}
	for class, relations := range with {
		r.morphWith[class] = append(r.morphWith[class], relations...)
	}
	return r
}

// AddEagerConstraints implements Relation, models are grouped by morph type and key
func (r *MorphTo) AddEagerConstraints(models Collection) {
	r.dictionary = map[string]map[string]Collection{}
	r.typeKeys = map[string][]interface{}{}
	r.typeOrder = nil

	for _, model := range models {
		morphType, id := morphTypeOf(model.Get(r.morphType)), model.Get(r.foreignKey)
		if morphType == "" || id == nil {
			continue
		}

		if _, ok := r.dictionary[morphType]; !ok {
			r.dictionary[morphType] = map[string]Collection{}
			r.typeOrder = append(r.typeOrder, morphType)
		}
		key := utils.ToStringKey(id)
		r.dictionary[morphType][key] = append(r.dictionary[morphType][key], model)
		r.typeKeys[morphType] = append(r.typeKeys[morphType], id)
	}
}

// GetEager implements Relation, results are assigned to their parents while loading
func (r *MorphTo) GetEager(ctx context.Context) (Collection, error) {
	var all Collection
	for _, morphType := range r.typeOrder {
		class, err := ClassForMorph(morphType)
		if err != nil {
			return all, err
		}

		results, err := r.getResultsByType(ctx, class, morphType)
		if err != nil {
			return all, err
		}
		all = append(all, results...)
	}
	return all, nil
}

func (r *MorphTo) getResultsByType(ctx context.Context, class *Class, morphType string) (Collection, error) {
	instance := r.parent.db.New(class)
	instance.ctx = r.parent.ctx
	ownerKey := orDefault(r.explicitOwnerKey, instance.GetKeyName())

	query := instance.NewQuery().mergeConstraintsFrom(r.query)
	for _, load := range r.query.EagerLoads() {
		query.WithFunc(load.Name, load.Constraint)
	}
	query.With(r.morphWith[class.Name]...)

	results, err := query.WhereIn(instance.QualifyColumn(ownerKey), utils.UniqueKeys(r.typeKeys[morphType])).Get(ctx)
	if err != nil {
		return nil, err
	}

	for _, result := range results {
		for _, model := range r.dictionary[morphType][utils.ToStringKey(result.Get(ownerKey))] {
			model.SetRelation(r.relationName, result)
		}
	}
	return results, nil
}

// Match implements Relation, GetEager matched the results already
func (r *MorphTo) Match(models, _ Collection, _ string) Collection {
	return models
}

// GetResults implements Relation, a *Model
func (r *MorphTo) GetResults(ctx context.Context) (interface{}, error) {
	if morphTypeOf(r.parent.Get(r.morphType)) == "" {
		return r.withDefault.defaultFor(r.related, r.parent), nil
	}
	return r.BelongsTo.GetResults(ctx)
}

// ExistenceQuery implements Relation, existence queries need a single related class
func (r *MorphTo) ExistenceQuery(query, _ *Builder, _ interface{}) *Builder {
	query.AddError(fmt.Errorf("%w: existence query on morph to %s", ErrUnsupportedRelation, r.relationName))
	return query
}

// Associate points the parent to model and its morph type
func (r *MorphTo) Associate(related interface{}) *Model {
	model, ok := related.(*Model)
	if !ok || model == nil {
		return r.Dissociate()
	}

	r.parent.Set(r.foreignKey, model.Get(orDefault(r.explicitOwnerKey, model.GetKeyName())))
	r.parent.Set(r.morphType, model.GetMorphClass())
	r.parent.SetRelation(r.relationName, model)
	return r.parent
}

// Dissociate clears the key and morph type of the parent
func (r *MorphTo) Dissociate() *Model {
	r.parent.Set(r.foreignKey, nil)
	r.parent.Set(r.morphType, nil)
	r.parent.SetRelation(r.relationName, (*Model)(nil))
	return r.parent
}

// Touch implements Relation
func (r *MorphTo) Touch(ctx context.Context) error {
	if r.parent.Get(r.foreignKey) == nil || morphTypeOf(r.parent.Get(r.morphType)) == "" {
		return nil
	}
	return r.BelongsTo.Touch(ctx)
}

// GetMorphType parent column holding the morph type
func (r *MorphTo) GetMorphType() string {
	return r.morphType
}
