package record

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/record/schema"
)

// KeyType how primary key values are produced on insert
type KeyType int

const (
	// KeyInt auto-increment key read back from the insert
	KeyInt KeyType = iota
	// KeyString caller supplied key
	KeyString
	// KeyUUID random uuid generated when the key is empty
	KeyUUID
)

// RelationFunc declares a relationship of the parent model, see Model.HasMany and friends
type RelationFunc func(m *Model) Relation

// ScopeFunc a local scope, called as Builder.Scope(name, params...)
type ScopeFunc func(b *Builder, params ...interface{})

// Getter transforms the raw attribute value on read
type Getter func(m *Model, value interface{}) (interface{}, error)

// Setter transforms the value on write, the returned value is stored
type Setter func(m *Model, value interface{}) (interface{}, error)

// Macro extension callable through Builder.Call
type Macro func(ctx context.Context, b *Builder, args ...interface{}) (interface{}, error)

// Class model class metadata, shared by every instance of the class
type Class struct {
	// Name class name, `BlogPost`
	Name string
	// Table defaults to the plural snake case of Name
	Table string
	// PrimaryKey defaults to `id`
	PrimaryKey string
	KeyType    KeyType

	// Casts column => cast, `int`, `bool`, `datetime:Y-m-d`, `decimal:2`, `json` ...
	Casts map[string]string
	// Dates columns handled as dates besides the timestamps
	Dates []string
	// DateFormat storage format, defaults to the DB format
	DateFormat string

	Fillable []string
	// Guarded `*` guards everything not fillable
	Guarded []string
	Hidden  []string
	Visible []string

	Timestamps      bool
	CreatedAtColumn string
	UpdatedAtColumn string

	SoftDeletes     bool
	DeletedAtColumn string

	// Touches relations whose parents are touched when the model is saved
	Touches []string
	// MorphClass type stored in polymorphic type columns, defaults to Name
	MorphClass string
	// With relations eager loaded by every query
	With []string

	Relations map[string]RelationFunc
	Scopes    map[string]ScopeFunc
	Getters   map[string]Getter
	Setters   map[string]Setter
	Macros    map[string]Macro

	// Boot runs once before the class is first used
	Boot func(c *Class)

	once         sync.Once
	mu           sync.RWMutex
	globalScopes []scopeEntry
	hooks        map[Event][]Hook
	pivot        bool
}

func (c *Class) boot() {
	c.once.Do(func() {
		if c.PrimaryKey == "" {
			c.PrimaryKey = "id"
		}

		if c.Timestamps {
			if c.CreatedAtColumn == "" {
				c.CreatedAtColumn = "created_at"
			}
			if c.UpdatedAtColumn == "" {
				c.UpdatedAtColumn = "updated_at"
			}
		}

		if c.SoftDeletes {
			if c.DeletedAtColumn == "" {
				c.DeletedAtColumn = "deleted_at"
			}
			c.AddGlobalScope(SoftDeletingScope{})
		}

		if c.Boot != nil {
			c.Boot(c)
		}

		if !c.pivot {
			registry.store(c)
		}
	})
}

// AddGlobalScope registers a scope applied to every query of the class, re-registering an
// identifier replaces the scope. The identifier defaults to the scope type
func (c *Class) AddGlobalScope(scope Scope, id ...string) {
	identifier := scopeIdentifier(scope)
	if len(id) > 0 && id[0] != "" {
		identifier = id[0]
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for idx, entry := range c.globalScopes {
		if entry.id == identifier {
			c.globalScopes[idx].scope = scope
			return
		}
	}
	c.globalScopes = append(c.globalScopes, scopeEntry{id: identifier, scope: scope})
}

// GlobalScopes registered global scope identifiers in registration order
func (c *Class) GlobalScopes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.globalScopes))
	for _, entry := range c.globalScopes {
		ids = append(ids, entry.id)
	}
	return ids
}

func (c *Class) scopeEntries() []scopeEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]scopeEntry(nil), c.globalScopes...)
}

// GetMorphClass type stored in polymorphic type columns
func (c *Class) GetMorphClass() string {
	if c.MorphClass != "" {
		return c.MorphClass
	}
	return c.Name
}

// TableName table of the class under namer
func (c *Class) TableName(namer schema.Namer) string {
	if c.Table != "" {
		return c.Table
	}
	return namer.TableName(c.Name)
}

func (c *Class) usesTimestamps() bool {
	return c.Timestamps
}

func (c *Class) hasRelation(name string) bool {
	_, ok := c.Relations[name]
	return ok
}

func (c *Class) String() string {
	return c.Name
}

// classRegistry process-wide lookup of classes by name and morph type
type classRegistry struct {
	byName  sync.Map
	byMorph sync.Map
}

var registry = &classRegistry{}

func (r *classRegistry) store(c *Class) {
	if c.Name != "" {
		r.byName.Store(c.Name, c)
	}
	r.byMorph.Store(c.GetMorphClass(), c)
}

// Register boots classes and makes them resolvable from polymorphic type columns
func Register(classes ...*Class) {
	for _, c := range classes {
		c.boot()
	}
}

// ClassByName registered class named name
func ClassByName(name string) (*Class, bool) {
	if v, ok := registry.byName.Load(name); ok {
		return v.(*Class), true
	}
	return nil, false
}

// ClassForMorph class stored under morph type, the class name is accepted too
func ClassForMorph(morphType string) (*Class, error) {
	if v, ok := registry.byMorph.Load(morphType); ok {
		return v.(*Class), nil
	}
	if c, ok := ClassByName(morphType); ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownMorphType, morphType)
}
