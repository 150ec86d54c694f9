package record

import (
	"context"
	"reflect"
	"sort"

	"gorm.io/record/query"
)

// Model one row of a class
type Model struct {
	class *Class
	db    *DB
	ctx   context.Context

	attributes map[string]interface{}
	original   map[string]interface{}
	changes    map[string]interface{}
	relations  map[string]interface{}

	// Exists the model maps to a stored row
	Exists bool
	// WasRecentlyCreated the model was inserted by the last save
	WasRecentlyCreated bool

	// noConstraints relations resolved on this instance skip their single parent constraints
	noConstraints bool
	// resolving name of the relation being resolved, default for BelongsTo and MorphTo names
	resolving string
	err       error
}

// Class class of the model
func (m *Model) Class() *Class {
	return m.class
}

// DB db the model was created on
func (m *Model) DB() *DB {
	return m.db
}

// WithContext sets the context used when attributes resolve relations lazily
func (m *Model) WithContext(ctx context.Context) *Model {
	m.ctx = ctx
	return m
}

func (m *Model) context() context.Context {
	if m.ctx != nil {
		return m.ctx
	}
	return context.Background()
}

// Err first error recorded by Set
func (m *Model) Err() error {
	return m.err
}

// NewInstance blank model of the same class, filled with attrs
func (m *Model) NewInstance(attrs map[string]interface{}) (*Model, error) {
	instance := m.db.New(m.class)
	instance.ctx = m.ctx
	if len(attrs) == 0 {
		return instance, nil
	}
	return instance, instance.Fill(attrs)
}

// newFromBuilder hydrates an existing model from a row
func (m *Model) newFromBuilder(ctx context.Context, row map[string]interface{}) *Model {
	instance := m.db.New(m.class)
	instance.ctx = ctx
	instance.Exists = true
	instance.SetRawAttributes(row, true)
	instance.fireModelEvent(ctx, EventRetrieved, false)
	return instance
}

// GetTable table of the model
func (m *Model) GetTable() string {
	return m.class.TableName(m.db.NamingStrategy)
}

// GetKeyName primary key column
func (m *Model) GetKeyName() string {
	return m.class.PrimaryKey
}

// GetQualifiedKeyName primary key qualified with the table
func (m *Model) GetQualifiedKeyName() string {
	return m.QualifyColumn(m.GetKeyName())
}

// GetKey primary key value
func (m *Model) GetKey() interface{} {
	return m.attributes[m.GetKeyName()]
}

// getKeyForSaveQuery primary key as last synced
func (m *Model) getKeyForSaveQuery() interface{} {
	if v, ok := m.original[m.GetKeyName()]; ok {
		return v
	}
	return m.GetKey()
}

// QualifyColumn prefixes column with the table unless already qualified
func (m *Model) QualifyColumn(column string) string {
	for _, c := range column {
		if c == '.' {
			return column
		}
	}
	return m.GetTable() + "." + column
}

// GetForeignKey default foreign key pointing to the model, `user_id`
func (m *Model) GetForeignKey() string {
	return m.db.NamingStrategy.ForeignKey(m.class.Name, m.GetKeyName())
}

// GetMorphClass type stored in polymorphic type columns
func (m *Model) GetMorphClass() string {
	return m.class.GetMorphClass()
}

// SetRelation caches value, a *Model (nil when empty) or a Collection, under name
func (m *Model) SetRelation(name string, value interface{}) *Model {
	m.relations[name] = value
	return m
}

// UnsetRelation forgets a loaded relation
func (m *Model) UnsetRelation(name string) *Model {
	delete(m.relations, name)
	return m
}

// GetRelation loaded value of name, nil when not loaded
func (m *Model) GetRelation(name string) interface{} {
	return m.relations[name]
}

// RelationLoaded reports whether name was loaded, even when empty
func (m *Model) RelationLoaded(name string) bool {
	_, ok := m.relations[name]
	return ok
}

// GetRelations loaded relation names, sorted
func (m *Model) GetRelations() []string {
	names := make([]string, 0, len(m.relations))
	for name := range m.relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Related loaded relation as a single model, nil when empty or not loaded
func (m *Model) Related(name string) *Model {
	related, _ := m.relations[name].(*Model)
	return related
}

// RelatedMany loaded relation as a collection
func (m *Model) RelatedMany(name string) Collection {
	related, _ := m.relations[name].(Collection)
	return related
}

// Relation resolves the relationship declared under name
func (m *Model) Relation(name string) (Relation, error) {
	fn, ok := m.class.Relations[name]
	if !ok {
		return nil, &RelationNotFoundError{Class: m.class.Name, Relation: name}
	}

	previous := m.resolving
	m.resolving = name
	rel := fn(m)
	m.resolving = previous

	if rel == nil || isNilRelation(rel) {
		return nil, &InvalidRelationError{Class: m.class.Name, Relation: name, Nil: true}
	}
	if rel.GetRelated() == nil || rel.GetQuery() == nil {
		return nil, &InvalidRelationError{Class: m.class.Name, Relation: name}
	}
	if err := rel.GetQuery().Err(); err != nil {
		return nil, err
	}
	return rel, nil
}

func isNilRelation(rel Relation) bool {
	rv := reflect.ValueOf(rel)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}

// relationWithoutConstraints resolves name for eager loading or existence queries
func (m *Model) relationWithoutConstraints(name string) (Relation, error) {
	instance := m.db.New(m.class)
	instance.ctx = m.ctx
	instance.noConstraints = true
	return instance.Relation(name)
}

// getRelationValue loads name on first access and caches the result
func (m *Model) getRelationValue(name string) (interface{}, error) {
	if v, ok := m.relations[name]; ok {
		return v, nil
	}

	if !m.class.hasRelation(name) {
		return nil, nil
	}

	rel, err := m.Relation(name)
	if err != nil {
		return nil, err
	}

	results, err := rel.GetResults(m.context())
	if err != nil {
		return nil, err
	}
	m.SetRelation(name, results)
	return results, nil
}

// Load eager loads relations onto the model
func (m *Model) Load(ctx context.Context, relations ...string) error {
	_, err := m.newQueryWithoutRelationships().With(relations...).EagerLoadRelations(ctx, Collection{m})
	return err
}

// newBaseQuery query builder on the model table
func (m *Model) newBaseQuery() *query.Builder {
	return query.New(m.db.conn).From(m.GetTable())
}

// NewModelQuery builder without global scopes or default eager loads
func (m *Model) NewModelQuery() *Builder {
	return newBuilder(m.db, m.newBaseQuery(), m.db.New(m.class))
}

// newQueryWithoutRelationships builder with global scopes and no default eager loads
func (m *Model) newQueryWithoutRelationships() *Builder {
	return m.registerGlobalScopes(m.NewModelQuery())
}

// NewQuery builder with global scopes and default eager loads
func (m *Model) NewQuery() *Builder {
	return m.newQueryWithoutRelationships().With(m.class.With...)
}

// NewQueryWithoutScopes builder with default eager loads and no global scopes
func (m *Model) NewQueryWithoutScopes() *Builder {
	return m.NewModelQuery().With(m.class.With...)
}

func (m *Model) registerGlobalScopes(b *Builder) *Builder {
	for _, entry := range m.class.scopeEntries() {
		b.WithGlobalScope(entry.id, entry.scope)
	}
	return b
}

// Is reports whether other is the same row
func (m *Model) Is(other *Model) bool {
	return other != nil &&
		m.GetKey() != nil &&
		keysEqual(m.GetKey(), other.GetKey()) &&
		m.GetTable() == other.GetTable() &&
		m.db.conn == other.db.conn
}

// IsNot negation of Is
func (m *Model) IsNot(other *Model) bool {
	return !m.Is(other)
}
