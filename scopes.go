package record

import (
	"fmt"

	"gorm.io/record/clause"
	"gorm.io/record/utils"
)

// Scope a global scope, applied to every query of a class
type Scope interface {
	Apply(b *Builder, m *Model)
}

// ScopeExtender scopes adding builder macros when registered on a builder
type ScopeExtender interface {
	Extend(b *Builder)
}

// GlobalScopeFunc adapts a function to Scope, it needs an explicit identifier
type GlobalScopeFunc func(b *Builder, m *Model)

// Apply implements Scope
func (fn GlobalScopeFunc) Apply(b *Builder, m *Model) {
	fn(b, m)
}

type scopeEntry struct {
	id    string
	scope Scope
}

// scopeIdentifier identifier of a scope, strings are identifiers already
func scopeIdentifier(scope interface{}) string {
	if id, ok := scope.(string); ok {
		return id
	}
	return fmt.Sprintf("%T", scope)
}

// WithGlobalScope registers scope under id, replacing a scope registered under the same id
func (b *Builder) WithGlobalScope(id string, scope Scope) *Builder {
	if id == "" {
		id = scopeIdentifier(scope)
	}

	replaced := false
	for idx, entry := range b.scopes {
		if entry.id == id {
			b.scopes[idx].scope = scope
			replaced = true
			break
		}
	}
	if !replaced {
		b.scopes = append(b.scopes, scopeEntry{id: id, scope: scope})
	}

	if extender, ok := scope.(ScopeExtender); ok {
		extender.Extend(b)
	}
	return b
}

// WithoutGlobalScope removes a scope by identifier or by the scope value
func (b *Builder) WithoutGlobalScope(scope interface{}) *Builder {
	id := scopeIdentifier(scope)

	scopes := b.scopes[:0:0]
	for _, entry := range b.scopes {
		if entry.id != id {
			scopes = append(scopes, entry)
		}
	}
	b.scopes = scopes

	if !utils.Contains(b.removedScopes, id) {
		b.removedScopes = append(b.removedScopes, id)
	}
	return b
}

// WithoutGlobalScopes removes scopes, all of them when none is given
func (b *Builder) WithoutGlobalScopes(scopes ...interface{}) *Builder {
	if len(scopes) == 0 {
		for _, entry := range b.scopes {
			scopes = append(scopes, entry.id)
		}
	}

	for _, scope := range scopes {
		b.WithoutGlobalScope(scope)
	}
	return b
}

// RemovedScopes identifiers of removed global scopes
func (b *Builder) RemovedScopes() []string {
	return append([]string(nil), b.removedScopes...)
}

// AppliedScopes identifiers of the registered global scopes
func (b *Builder) AppliedScopes() []string {
	ids := make([]string, 0, len(b.scopes))
	for _, entry := range b.scopes {
		ids = append(ids, entry.id)
	}
	return ids
}

// ApplyScopes clone of the builder with every global scope applied, the builder itself
// when there is none
func (b *Builder) ApplyScopes() *Builder {
	if len(b.scopes) == 0 {
		return b
	}

	builder := b.Clone()
	for _, entry := range b.scopes {
		if !builder.hasScope(entry.id) {
			continue
		}

		scope := entry.scope
		builder.CallScope(func(b *Builder, _ ...interface{}) {
			scope.Apply(b, b.model)
		})
	}
	return builder
}

func (b *Builder) hasScope(id string) bool {
	for _, entry := range b.scopes {
		if entry.id == id {
			return true
		}
	}
	return false
}

// CallScope runs scope and, when it added conditions, groups the conditions that existed
// before and the ones it added separately, so that OR conditions of either side stay apart
func (b *Builder) CallScope(scope ScopeFunc, params ...interface{}) *Builder {
	originalWhereCount := len(b.query.Wheres)

	scope(b, params...)

	if len(b.query.Wheres) > originalWhereCount {
		b.addNewWheresWithinGroup(originalWhereCount)
	}
	return b
}

func (b *Builder) addNewWheresWithinGroup(originalWhereCount int) {
	allWheres := b.query.Wheres
	b.query.Wheres = nil

	b.groupWhereSliceForScope(allWheres[:originalWhereCount])
	b.groupWhereSliceForScope(allWheres[originalWhereCount:])
}

// groupWhereSliceForScope nests the slice when it holds an OR condition, merges it flat otherwise
func (b *Builder) groupWhereSliceForScope(slice []clause.Predicate) {
	if len(slice) == 0 {
		return
	}

	if clause.ContainsOr(slice) {
		nested := append([]clause.Predicate(nil), slice...)
		b.query.AddWhere(clause.BooleanAnd, clause.Nested{Predicates: nested})
		return
	}
	b.query.Wheres = append(b.query.Wheres, slice...)
}

// Scope applies the local scope name of the class, `popular` and `Popular` both resolve Popular
func (b *Builder) Scope(name string, params ...interface{}) *Builder {
	fn, ok := b.localScope(name)
	if !ok {
		b.AddError(&MethodNotFoundError{Class: b.model.class.Name, Method: name})
		return b
	}
	return b.CallScope(fn, params...)
}

func (b *Builder) localScope(name string) (ScopeFunc, bool) {
	if fn, ok := b.model.class.Scopes[name]; ok {
		return fn, true
	}
	fn, ok := b.model.class.Scopes[b.db.NamingStrategy.ScopeName(name)]
	return fn, ok
}

// HasNamedScope reports whether the class declares the local scope name
func (b *Builder) HasNamedScope(name string) bool {
	_, ok := b.localScope(name)
	return ok
}
