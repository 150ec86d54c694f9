package record

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"gorm.io/record/utils"
)

// pivotAccessor relation holding the pivot row of many to many results
const pivotAccessor = "pivot"

// Relation relationship descriptor of a parent model
type Relation interface {
	// AddConstraints constrains the query to the single parent
	AddConstraints()
	// AddEagerConstraints constrains the query to every parent of models
	AddEagerConstraints(models Collection)
	// InitRelation seeds the empty value of the relation on every model
	InitRelation(models Collection, name string) Collection
	// Match assigns eagerly loaded results to their parents
	Match(models Collection, results Collection, name string) Collection
	// GetResults loads the relation of the single parent, a *Model or a Collection
	GetResults(ctx context.Context) (interface{}, error)
	// GetEager loads the results of an eager load
	GetEager(ctx context.Context) (Collection, error)
	GetQuery() *Builder
	GetParent() *Model
	GetRelated() *Model
	// Touch updates updated_at of the related rows
	Touch(ctx context.Context) error
	// ExistenceQuery constrains query, a query on the related class, to rows related to
	// the rows of parent, selecting columns
	ExistenceQuery(query, parent *Builder, columns interface{}) *Builder
}

// Keys overrides the conventional keys of a relation, empty fields keep the defaults
type Keys struct {
	// ForeignKey column pointing to the other side, on the related table for has relations
	// and on the parent table for belongs to relations
	ForeignKey string
	// LocalKey parent column the foreign key points to
	LocalKey string
	// OwnerKey related column a belongs to foreign key points to
	OwnerKey string

	// Table pivot table of many to many relations
	Table           string
	ForeignPivotKey string
	RelatedPivotKey string
	ParentKey       string
	RelatedKey      string

	// FirstKey through table column pointing to the parent
	FirstKey string
	// SecondKey related column pointing to the through table
	SecondKey string
	// SecondLocalKey through table column the second key points to
	SecondLocalKey string

	// Type and ID polymorphic type and id columns
	Type string
	ID   string
	// Relation name of the relation, defaults to the name it is declared under
	Relation string
}

func relationKeys(keys []Keys) Keys {
	if len(keys) > 0 {
		return keys[0]
	}
	return Keys{}
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

// relation shared state of every relation
type relation struct {
	query   *Builder
	parent  *Model
	related *Model
}

func newRelation(parent *Model, related *Class) relation {
	instance := parent.db.New(related)
	instance.ctx = parent.ctx
	return relation{query: instance.NewQuery(), parent: parent, related: instance}
}

// GetQuery query of the related rows
func (r *relation) GetQuery() *Builder {
	return r.query
}

// GetParent parent model
func (r *relation) GetParent() *Model {
	return r.parent
}

// GetRelated blank related model
func (r *relation) GetRelated() *Model {
	return r.related
}

// GetEager loads the eager results
func (r *relation) GetEager(ctx context.Context) (Collection, error) {
	return r.query.Get(ctx)
}

// Touch updates updated_at of the related rows unless the related class ignores touches
func (r *relation) Touch(ctx context.Context) error {
	if r.related.class.IsIgnoringTouch() {
		return nil
	}
	_, err := r.rawUpdate(ctx, map[string]interface{}{
		r.related.GetUpdatedAtColumn(): r.related.FreshTimestampString(),
	})
	return err
}

// rawUpdate updates the related rows without firing events
func (r *relation) rawUpdate(ctx context.Context, values map[string]interface{}) (int64, error) {
	return r.query.Clone().WithoutGlobalScopes().Update(ctx, values)
}

// keys distinct sorted values of key on models
func (r *relation) keys(models Collection, key string) []interface{} {
	values := make([]interface{}, 0, len(models))
	for _, model := range models {
		values = append(values, model.Get(key))
	}
	return utils.UniqueKeys(values)
}

var relationCountHash atomic.Int64

// newRelationCountHash table alias of self referencing existence queries
func newRelationCountHash() string {
	return fmt.Sprintf("record_reserved_%d", relationCountHash.Add(1)-1)
}

func unqualified(column string) string {
	return lastSegment(column)
}

func qualifyWith(table, column string) string {
	if strings.Contains(column, ".") {
		return column
	}
	return table + "." + column
}

// defaultModel empty value of singular relations, see WithDefault
type defaultModel struct {
	enabled bool
	attrs   map[string]interface{}
	fn      func(related, parent *Model)
}

func (d *defaultModel) defaultFor(related, parent *Model) *Model {
	if !d.enabled {
		return nil
	}

	instance := related.db.New(related.class)
	instance.ctx = parent.ctx
	if d.fn != nil {
		d.fn(instance, parent)
	} else if len(d.attrs) > 0 {
		_ = instance.ForceFill(d.attrs)
	}
	return instance
}

func withDefaultAttrs(attrs []map[string]interface{}) defaultModel {
	d := defaultModel{enabled: true}
	for _, a := range attrs {
		if d.attrs == nil {
			d.attrs = map[string]interface{}{}
		}
		for key, value := range a {
			d.attrs[key] = value
		}
	}
	return d
}

// HasOne one related row holds the parent key
func (m *Model) HasOne(related *Class, keys ...Keys) *HasOne {
	k := relationKeys(keys)
	r := &HasOne{hasOneOrMany: m.newHasOneOrMany(related, k.ForeignKey, k.LocalKey)}
	r.init(m)
	return r
}

// HasMany related rows hold the parent key
func (m *Model) HasMany(related *Class, keys ...Keys) *HasMany {
	k := relationKeys(keys)
	r := &HasMany{hasOneOrMany: m.newHasOneOrMany(related, k.ForeignKey, k.LocalKey)}
	r.init(m)
	return r
}

// MorphOne one related row holds the parent key and morph type under name, `imageable`
// uses imageable_id and imageable_type
func (m *Model) MorphOne(related *Class, name string, keys ...Keys) *MorphOne {
	k := relationKeys(keys)
	r := &MorphOne{HasOne: HasOne{hasOneOrMany: m.newMorphOneOrMany(related, name, k)}}
	r.init(m)
	return r
}

// MorphMany related rows hold the parent key and morph type under name
func (m *Model) MorphMany(related *Class, name string, keys ...Keys) *MorphMany {
	k := relationKeys(keys)
	r := &MorphMany{HasMany: HasMany{hasOneOrMany: m.newMorphOneOrMany(related, name, k)}}
	r.init(m)
	return r
}

// BelongsTo the parent row holds the key of the related row
func (m *Model) BelongsTo(related *Class, keys ...Keys) *BelongsTo {
	k := relationKeys(keys)
	r := m.newBelongsTo(related, k)
	if !m.noConstraints {
		r.AddConstraints()
	}
	return r
}

// MorphTo the parent row holds the key and morph type of a related row of any class
func (m *Model) MorphTo(keys ...Keys) *MorphTo {
	return m.newMorphTo(relationKeys(keys))
}

// BelongsToMany related rows are joined through a pivot table
func (m *Model) BelongsToMany(related *Class, keys ...Keys) *BelongsToMany {
	k := relationKeys(keys)
	r := m.newBelongsToMany(related, k, m.db.NamingStrategy.JoinTableName(m.class.Name, related.Name))
	r.init(m)
	return r
}

// MorphToMany related rows are joined through a polymorphic pivot table, `taggable` uses
// the taggables table with taggable_id and taggable_type
func (m *Model) MorphToMany(related *Class, name string, keys ...Keys) *BelongsToMany {
	k := relationKeys(keys)
	k.ForeignPivotKey = orDefault(k.ForeignPivotKey, name+"_id")
	r := m.newBelongsToMany(related, k, m.db.NamingStrategy.MorphTableName(name))
	r.morphType = orDefault(k.Type, name+"_type")
	r.morphClass = m.GetMorphClass()
	r.init(m)
	return r
}

// MorphedByMany inverse of MorphToMany, the related rows are the polymorphic side
func (m *Model) MorphedByMany(related *Class, name string, keys ...Keys) *BelongsToMany {
	k := relationKeys(keys)
	k.RelatedPivotKey = orDefault(k.RelatedPivotKey, name+"_id")
	r := m.newBelongsToMany(related, k, m.db.NamingStrategy.MorphTableName(name))
	r.morphType = orDefault(k.Type, name+"_type")
	r.morphClass = r.related.GetMorphClass()
	r.inverse = true
	r.init(m)
	return r
}

// HasManyThrough related rows reached through an intermediate class, a country has many
// posts through users
func (m *Model) HasManyThrough(related, through *Class, keys ...Keys) *HasManyThrough {
	r := &HasManyThrough{hasThrough: m.newHasThrough(related, through, relationKeys(keys))}
	r.init(m)
	return r
}

// HasOneThrough one related row reached through an intermediate class
func (m *Model) HasOneThrough(related, through *Class, keys ...Keys) *HasOneThrough {
	r := &HasOneThrough{hasThrough: m.newHasThrough(related, through, relationKeys(keys))}
	r.init(m)
	return r
}
