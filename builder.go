package record

import (
	"context"
	"reflect"

	"gorm.io/record/clause"
	"gorm.io/record/query"
)

// Builder model query builder wrapping a query.Builder
type Builder struct {
	db            *DB
	query         *query.Builder
	model         *Model
	eagerLoad     []EagerLoad
	scopes        []scopeEntry
	removedScopes []string
	localMacros   map[string]Macro
	onDelete      func(ctx context.Context, b *Builder) (int64, error)
}

func newBuilder(db *DB, q *query.Builder, model *Model) *Builder {
	return &Builder{db: db, query: q, model: model}
}

// Model blank model of the queried class
func (b *Builder) Model() *Model {
	return b.model
}

// Base wrapped query builder, global scopes not applied
func (b *Builder) Base() *query.Builder {
	return b.query
}

// SetBase replaces the wrapped query builder
func (b *Builder) SetBase(q *query.Builder) *Builder {
	b.query = q
	return b
}

// ToBase query builder with global scopes applied
func (b *Builder) ToBase() *query.Builder {
	return b.ApplyScopes().query
}

// AddError records err on the wrapped query builder
func (b *Builder) AddError(err error) error {
	return b.query.AddError(err)
}

// Err first error recorded while building
func (b *Builder) Err() error {
	return b.query.Error
}

// Clone deep copies the builder, the clone shares no predicate state
func (b *Builder) Clone() *Builder {
	c := *b
	c.query = b.query.Clone()
	c.eagerLoad = append([]EagerLoad(nil), b.eagerLoad...)
	c.scopes = append([]scopeEntry(nil), b.scopes...)
	c.removedScopes = append([]string(nil), b.removedScopes...)
	if b.localMacros != nil {
		c.localMacros = make(map[string]Macro, len(b.localMacros))
		for name, macro := range b.localMacros {
			c.localMacros[name] = macro
		}
	}
	return &c
}

// ToSQL compiled select with global scopes applied
func (b *Builder) ToSQL() string {
	return b.ToBase().ToSQL()
}

// GetBindings bindings of the compiled select with global scopes applied
func (b *Builder) GetBindings() []interface{} {
	return b.ToBase().GetBindings()
}

// QualifyColumn qualifies column with the model table
func (b *Builder) QualifyColumn(column string) string {
	return b.model.QualifyColumn(column)
}

// From changes the queried table, `users as u` sets an alias
func (b *Builder) From(table string) *Builder {
	b.query.From(table)
	return b
}

// Select replaces the selected columns
func (b *Builder) Select(columns ...interface{}) *Builder {
	b.query.Select(columns...)
	return b
}

// AddSelect appends selected columns
func (b *Builder) AddSelect(columns ...interface{}) *Builder {
	b.query.AddSelect(columns...)
	return b
}

// SelectRaw appends a raw select expression
func (b *Builder) SelectRaw(sql string, vars ...interface{}) *Builder {
	b.query.SelectRaw(sql, vars...)
	return b
}

// Distinct forces distinct results
func (b *Builder) Distinct() *Builder {
	b.query.Distinct()
	return b
}

// Where add an AND condition, see query.Builder.Where. A func(*Builder) groups the
// conditions it adds in parentheses
func (b *Builder) Where(column interface{}, args ...interface{}) *Builder {
	return b.where(clause.BooleanAnd, column, args...)
}

// OrWhere add an OR condition
func (b *Builder) OrWhere(column interface{}, args ...interface{}) *Builder {
	return b.where(clause.BooleanOr, column, args...)
}

func (b *Builder) where(boolean clause.Boolean, column interface{}, args ...interface{}) *Builder {
	if fn, ok := column.(func(*Builder)); ok {
		nested := b.model.newQueryWithoutRelationships()
		fn(nested)
		if err := nested.Err(); err != nil {
			b.AddError(err)
		}
		b.query.AddNestedWhereQuery(nested.query, boolean)
		return b
	}

	if boolean == clause.BooleanOr {
		b.query.OrWhere(column, args...)
	} else {
		b.query.Where(column, args...)
	}
	return b
}

// WhereNested groups the conditions added by fn
func (b *Builder) WhereNested(fn func(*Builder)) *Builder {
	return b.Where(fn)
}

// WhereRaw raw AND condition
func (b *Builder) WhereRaw(sql string, vars ...interface{}) *Builder {
	b.query.WhereRaw(sql, vars...)
	return b
}

// OrWhereRaw raw OR condition
func (b *Builder) OrWhereRaw(sql string, vars ...interface{}) *Builder {
	b.query.OrWhereRaw(sql, vars...)
	return b
}

// WhereIn column IN values
func (b *Builder) WhereIn(column string, values interface{}) *Builder {
	b.query.WhereIn(column, values)
	return b
}

// OrWhereIn OR column IN values
func (b *Builder) OrWhereIn(column string, values interface{}) *Builder {
	b.query.OrWhereIn(column, values)
	return b
}

// WhereNotIn column NOT IN values
func (b *Builder) WhereNotIn(column string, values interface{}) *Builder {
	b.query.WhereNotIn(column, values)
	return b
}

// WhereNull column IS NULL
func (b *Builder) WhereNull(columns ...string) *Builder {
	b.query.WhereNull(columns...)
	return b
}

// OrWhereNull OR column IS NULL
func (b *Builder) OrWhereNull(column string) *Builder {
	b.query.OrWhereNull(column)
	return b
}

// WhereNotNull column IS NOT NULL
func (b *Builder) WhereNotNull(columns ...string) *Builder {
	b.query.WhereNotNull(columns...)
	return b
}

// WhereColumn compares two columns
func (b *Builder) WhereColumn(first, operator, second string) *Builder {
	b.query.WhereColumn(first, operator, second)
	return b
}

// WhereBetween column BETWEEN low AND high
func (b *Builder) WhereBetween(column string, low, high interface{}) *Builder {
	b.query.WhereBetween(column, low, high)
	return b
}

// WhereKey constrains the primary key to id, a slice of ids or a Collection
func (b *Builder) WhereKey(id interface{}) *Builder {
	column := b.model.GetQualifiedKeyName()
	if ids, ok := keyList(id); ok {
		return b.WhereIn(column, ids)
	}
	return b.Where(column, id)
}

// WhereKeyNot excludes id, a slice of ids or a Collection
func (b *Builder) WhereKeyNot(id interface{}) *Builder {
	column := b.model.GetQualifiedKeyName()
	if ids, ok := keyList(id); ok {
		return b.WhereNotIn(column, ids)
	}
	return b.Where(column, "!=", id)
}

// keyList flattens models, collections and slices into key values
func keyList(id interface{}) ([]interface{}, bool) {
	switch v := id.(type) {
	case *Model:
		return nil, false
	case Collection:
		return v.ModelKeys(), true
	case []interface{}:
		return v, true
	case []byte:
		return nil, false
	}

	rv := reflect.ValueOf(id)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	ids := make([]interface{}, rv.Len())
	for i := range ids {
		ids[i] = rv.Index(i).Interface()
	}
	return ids, true
}

// Join inner join
func (b *Builder) Join(table, first, operator, second string) *Builder {
	b.query.Join(table, first, operator, second)
	return b
}

// LeftJoin left join
func (b *Builder) LeftJoin(table, first, operator, second string) *Builder {
	b.query.LeftJoin(table, first, operator, second)
	return b
}

// OrderBy order by column
func (b *Builder) OrderBy(column string, direction ...string) *Builder {
	b.query.OrderBy(column, direction...)
	return b
}

// OrderByDesc order by column descending
func (b *Builder) OrderByDesc(column string) *Builder {
	b.query.OrderByDesc(column)
	return b
}

// Latest order by column descending, created_at by default
func (b *Builder) Latest(column ...string) *Builder {
	b.query.Latest(b.timestampColumn(column))
	return b
}

// Oldest order by column ascending, created_at by default
func (b *Builder) Oldest(column ...string) *Builder {
	b.query.Oldest(b.timestampColumn(column))
	return b
}

func (b *Builder) timestampColumn(column []string) string {
	if len(column) > 0 && column[0] != "" {
		return column[0]
	}
	if created := b.model.GetCreatedAtColumn(); created != "" {
		return created
	}
	return "created_at"
}

// Reorder removes all orders
func (b *Builder) Reorder() *Builder {
	b.query.Reorder()
	return b
}

// GroupBy group by columns
func (b *Builder) GroupBy(columns ...string) *Builder {
	b.query.GroupBy(columns...)
	return b
}

// Having AND having condition
func (b *Builder) Having(column interface{}, args ...interface{}) *Builder {
	b.query.Having(column, args...)
	return b
}

// Limit limit rows
func (b *Builder) Limit(limit int) *Builder {
	b.query.Limit(limit)
	return b
}

// Take alias of Limit
func (b *Builder) Take(limit int) *Builder {
	return b.Limit(limit)
}

// Offset skip rows
func (b *Builder) Offset(offset int) *Builder {
	b.query.Offset(offset)
	return b
}

// Skip alias of Offset
func (b *Builder) Skip(offset int) *Builder {
	return b.Offset(offset)
}

// ForPage limit and offset of a 1-based page
func (b *Builder) ForPage(page, perPage int) *Builder {
	b.query.ForPage(page, perPage)
	return b
}

// ForPageAfterID page of rows whose column is greater than lastID
func (b *Builder) ForPageAfterID(perPage int, lastID interface{}, column string) *Builder {
	b.query.ForPageAfterID(perPage, lastID, column)
	return b
}

// Union appends a UNION with other, scopes of other applied
func (b *Builder) Union(other *Builder, all ...bool) *Builder {
	b.query.Union(other.ToBase(), all...)
	return b
}

// mergeConstraintsFrom copies the conditions and removed scopes of from
func (b *Builder) mergeConstraintsFrom(from *Builder) *Builder {
	b.query.Wheres = append(b.query.Wheres, from.query.Wheres...)
	if from.query.Error != nil {
		b.AddError(from.query.Error)
	}
	for _, id := range from.removedScopes {
		b.WithoutGlobalScope(id)
	}
	return b
}
