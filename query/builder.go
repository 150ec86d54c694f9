package query

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"gorm.io/record/clause"
)

// ErrInvalidOperator unsupported comparison operator
var ErrInvalidOperator = errors.New("invalid operator")

var operators = map[string]bool{
	"=": true, "<": true, ">": true, "<=": true, ">=": true, "<>": true, "!=": true, "<=>": true,
	"like": true, "not like": true, "ilike": true, "not ilike": true,
	"&": true, "|": true, "^": true, "<<": true, ">>": true,
	"rlike": true, "not rlike": true, "regexp": true, "not regexp": true,
}

// Join a join clause
type Join struct {
	Type  string
	Table clause.Table
	On    []clause.Predicate
}

// Order an order by entry, Expr takes precedence over Column
type Order struct {
	Column string
	Desc   bool
	Expr   clause.Expression
}

// Union a query combined with UNION
type Union struct {
	Query *Builder
	All   bool
}

// Builder SQL query builder, mutating methods return the receiver
type Builder struct {
	Connection  Connection
	Table       clause.Table
	FromExpr    clause.Expression
	Columns     []clause.Expression
	IsDistinct  bool
	Joins       []Join
	Wheres      []clause.Predicate
	Groups      []string
	Havings     []clause.Predicate
	Orders      []Order
	Unions      []Union
	LimitValue  *int
	OffsetValue *int
	Error       error
}

// New creates a query builder running on conn
func New(conn Connection) *Builder {
	return &Builder{Connection: conn}
}

// NewQuery creates an empty query builder on the same connection
func (b *Builder) NewQuery() *Builder {
	return New(b.Connection)
}

// Dialector dialector of the underlying connection
func (b *Builder) Dialector() Dialector {
	return b.Connection.Dialector()
}

// AddError records the first error, later errors are joined
func (b *Builder) AddError(err error) error {
	if err == nil {
		return b.Error
	}
	if b.Error == nil {
		b.Error = err
	} else {
		b.Error = fmt.Errorf("%v; %w", b.Error, err)
	}
	return b.Error
}

// Clone copies the builder, slices are not shared with the clone
func (b *Builder) Clone() *Builder {
	c := *b
	c.Columns = append([]clause.Expression(nil), b.Columns...)
	c.Joins = make([]Join, len(b.Joins))
	for idx, join := range b.Joins {
		join.On = append([]clause.Predicate(nil), join.On...)
		c.Joins[idx] = join
	}
	c.Wheres = append([]clause.Predicate(nil), b.Wheres...)
	c.Groups = append([]string(nil), b.Groups...)
	c.Havings = append([]clause.Predicate(nil), b.Havings...)
	c.Orders = append([]Order(nil), b.Orders...)
	c.Unions = append([]Union(nil), b.Unions...)
	if b.LimitValue != nil {
		limit := *b.LimitValue
		c.LimitValue = &limit
	}
	if b.OffsetValue != nil {
		offset := *b.OffsetValue
		c.OffsetValue = &offset
	}
	return &c
}

// From sets the table, `users as u` sets an alias
func (b *Builder) From(table string) *Builder {
	name, alias := splitAlias(table)
	b.Table = clause.Table{Name: name, Alias: alias}
	b.FromExpr = nil
	return b
}

// FromSub selects from a sub query aliased as alias
func (b *Builder) FromSub(sub *Builder, alias string) *Builder {
	b.FromExpr = clause.Expr{SQL: "(?) AS ?", Vars: []interface{}{sub, clause.Table{Name: alias}}}
	return b
}

// TableName table name without alias
func (b *Builder) TableName() string {
	return b.Table.Name
}

// Select replaces the selected columns, strings are quoted, expressions built as is
func (b *Builder) Select(columns ...interface{}) *Builder {
	b.Columns = nil
	return b.AddSelect(columns...)
}

// AddSelect appends selected columns
func (b *Builder) AddSelect(columns ...interface{}) *Builder {
	for _, column := range columns {
		switch v := column.(type) {
		case string:
			if v == "" {
				continue
			}
			name, alias := splitAlias(v)
			b.Columns = append(b.Columns, columnExpr{name: name, alias: alias})
		case []string:
			for _, name := range v {
				b.AddSelect(name)
			}
		case clause.Expression:
			b.Columns = append(b.Columns, v)
		default:
			b.AddError(fmt.Errorf("unsupported select column %T", column))
		}
	}
	return b
}

// SelectRaw appends a raw select expression
func (b *Builder) SelectRaw(sql string, vars ...interface{}) *Builder {
	b.Columns = append(b.Columns, clause.Expr{SQL: sql, Vars: vars})
	return b
}

// Distinct forces distinct results
func (b *Builder) Distinct() *Builder {
	b.IsDistinct = true
	return b
}

// HasColumns reports whether columns were selected explicitly
func (b *Builder) HasColumns() bool {
	return len(b.Columns) > 0
}

// columnExpr a selected column, possibly `table.*` or aliased
type columnExpr struct {
	name, alias string
}

func (c columnExpr) Build(builder clause.Builder) {
	builder.WriteQuoted(c.name)
	if c.alias != "" {
		builder.WriteString(" AS ")
		builder.WriteQuoted(clause.Column{Name: c.alias})
	}
}

// SelectedColumnNames names of plainly selected columns, aliases preferred
func (b *Builder) SelectedColumnNames() []string {
	var names []string
	for _, column := range b.Columns {
		if c, ok := column.(columnExpr); ok {
			if c.alias != "" {
				names = append(names, c.alias)
			} else {
				names = append(names, c.name)
			}
		}
	}
	return names
}

// AddWhere appends a predicate joined with boolean
func (b *Builder) AddWhere(boolean clause.Boolean, expr clause.Expression) *Builder {
	if expr != nil {
		b.Wheres = append(b.Wheres, clause.Predicate{Boolean: boolean, Expr: expr})
	}
	return b
}

// GetWheres current predicates
func (b *Builder) GetWheres() []clause.Predicate {
	return b.Wheres
}

// SetWheres replaces predicates
func (b *Builder) SetWheres(wheres []clause.Predicate) *Builder {
	b.Wheres = wheres
	return b
}

// Where add an AND condition
//
//	Where("votes", 100)
//	Where("votes", ">", 100)
//	Where(map[string]interface{}{"votes": 100, "name": "x"})
//	Where(func(q *Builder) { q.Where("a", 1).OrWhere("b", 2) })
//	Where(clause.Expr{SQL: "votes > ?", Vars: []interface{}{100}})
func (b *Builder) Where(column interface{}, args ...interface{}) *Builder {
	return b.where(clause.BooleanAnd, column, args...)
}

// OrWhere add an OR condition, same arguments as Where
func (b *Builder) OrWhere(column interface{}, args ...interface{}) *Builder {
	return b.where(clause.BooleanOr, column, args...)
}

func (b *Builder) where(boolean clause.Boolean, column interface{}, args ...interface{}) *Builder {
	switch v := column.(type) {
	case func(*Builder):
		return b.WhereNested(v, boolean)
	case clause.Expression:
		return b.AddWhere(boolean, v)
	case map[string]interface{}:
		return b.WhereNested(func(q *Builder) {
			for _, key := range sortedKeys(v) {
				q.Where(key, v[key])
			}
		}, boolean)
	case string:
		switch len(args) {
		case 0:
			return b.AddWhere(boolean, clause.Expr{SQL: v})
		case 1:
			return b.AddWhere(boolean, clause.Eq{Column: v, Value: args[0]})
		default:
			op, ok := args[0].(string)
			if !ok || !operators[strings.ToLower(op)] {
				b.AddError(fmt.Errorf("%w: %v", ErrInvalidOperator, args[0]))
				return b
			}
			return b.AddWhere(boolean, clause.Compare{Column: v, Operator: op, Value: args[1]})
		}
	}
	b.AddError(fmt.Errorf("unsupported where condition %T", column))
	return b
}

// ForNestedWhere an empty builder on the same table used to collect a nested group
func (b *Builder) ForNestedWhere() *Builder {
	return New(b.Connection).From(b.Table.Name)
}

// WhereNested groups the predicates added by fn in parentheses
func (b *Builder) WhereNested(fn func(*Builder), boolean clause.Boolean) *Builder {
	nested := b.ForNestedWhere()
	fn(nested)
	if nested.Error != nil {
		b.AddError(nested.Error)
	}
	return b.AddNestedWhereQuery(nested, boolean)
}

// AddNestedWhereQuery adds the predicates of q as a nested group
func (b *Builder) AddNestedWhereQuery(q *Builder, boolean clause.Boolean) *Builder {
	if len(q.Wheres) > 0 {
		b.AddWhere(boolean, clause.Nested{Predicates: q.Wheres})
	}
	return b
}

// WhereRaw add a raw AND condition
func (b *Builder) WhereRaw(sql string, vars ...interface{}) *Builder {
	return b.AddWhere(clause.BooleanAnd, clause.Expr{SQL: sql, Vars: vars})
}

// OrWhereRaw add a raw OR condition
func (b *Builder) OrWhereRaw(sql string, vars ...interface{}) *Builder {
	return b.AddWhere(clause.BooleanOr, clause.Expr{SQL: sql, Vars: vars})
}

// WhereIn column IN values, values is a slice, a *Builder sub query or an expression
func (b *Builder) WhereIn(column string, values interface{}) *Builder {
	return b.AddWhere(clause.BooleanAnd, inExpr(column, values))
}

// OrWhereIn OR column IN values
func (b *Builder) OrWhereIn(column string, values interface{}) *Builder {
	return b.AddWhere(clause.BooleanOr, inExpr(column, values))
}

// WhereNotIn column NOT IN values
func (b *Builder) WhereNotIn(column string, values interface{}) *Builder {
	return b.AddWhere(clause.BooleanAnd, clause.Not(inExpr(column, values)))
}

// OrWhereNotIn OR column NOT IN values
func (b *Builder) OrWhereNotIn(column string, values interface{}) *Builder {
	return b.AddWhere(clause.BooleanOr, clause.Not(inExpr(column, values)))
}

func inExpr(column string, values interface{}) clause.IN {
	switch v := values.(type) {
	case *Builder:
		return clause.IN{Column: column, Values: []interface{}{v}}
	case clause.Expression:
		return clause.IN{Column: column, Values: []interface{}{v}}
	case []interface{}:
		return clause.IN{Column: column, Values: v}
	case nil:
		return clause.IN{Column: column}
	}

	rv := reflect.ValueOf(values)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		in := clause.IN{Column: column, Values: make([]interface{}, rv.Len())}
		for i := 0; i < rv.Len(); i++ {
			in.Values[i] = rv.Index(i).Interface()
		}
		return in
	}
	return clause.IN{Column: column, Values: []interface{}{values}}
}

// WhereNull column IS NULL
func (b *Builder) WhereNull(columns ...string) *Builder {
	for _, column := range columns {
		b.AddWhere(clause.BooleanAnd, clause.Null{Column: column})
	}
	return b
}

// OrWhereNull OR column IS NULL
func (b *Builder) OrWhereNull(column string) *Builder {
	return b.AddWhere(clause.BooleanOr, clause.Null{Column: column})
}

// WhereNotNull column IS NOT NULL
func (b *Builder) WhereNotNull(columns ...string) *Builder {
	for _, column := range columns {
		b.AddWhere(clause.BooleanAnd, clause.Not(clause.Null{Column: column}))
	}
	return b
}

// OrWhereNotNull OR column IS NOT NULL
func (b *Builder) OrWhereNotNull(column string) *Builder {
	return b.AddWhere(clause.BooleanOr, clause.Not(clause.Null{Column: column}))
}

// WhereColumn compares two columns, operator defaults to `=`
func (b *Builder) WhereColumn(first, operator, second string) *Builder {
	return b.AddWhere(clause.BooleanAnd, clause.ColumnCompare{Left: first, Operator: operator, Right: second})
}

// OrWhereColumn OR compares two columns
func (b *Builder) OrWhereColumn(first, operator, second string) *Builder {
	return b.AddWhere(clause.BooleanOr, clause.ColumnCompare{Left: first, Operator: operator, Right: second})
}

// WhereBetween column BETWEEN low AND high
func (b *Builder) WhereBetween(column string, low, high interface{}) *Builder {
	return b.AddWhere(clause.BooleanAnd, clause.Between{Column: column, Low: low, High: high})
}

// WhereExists EXISTS (sub)
func (b *Builder) WhereExists(sub *Builder) *Builder {
	return b.AddWhere(clause.BooleanAnd, clause.Exists{Query: sub})
}

// OrWhereExists OR EXISTS (sub)
func (b *Builder) OrWhereExists(sub *Builder) *Builder {
	return b.AddWhere(clause.BooleanOr, clause.Exists{Query: sub})
}

// WhereNotExists NOT EXISTS (sub)
func (b *Builder) WhereNotExists(sub *Builder) *Builder {
	return b.AddWhere(clause.BooleanAnd, clause.Not(clause.Exists{Query: sub}))
}

// Join inner join table on first operator second
func (b *Builder) Join(table, first, operator, second string) *Builder {
	return b.join("INNER", table, first, operator, second)
}

// LeftJoin left join table on first operator second
func (b *Builder) LeftJoin(table, first, operator, second string) *Builder {
	return b.join("LEFT", table, first, operator, second)
}

// RightJoin right join table on first operator second
func (b *Builder) RightJoin(table, first, operator, second string) *Builder {
	return b.join("RIGHT", table, first, operator, second)
}

func (b *Builder) join(joinType, table, first, operator, second string) *Builder {
	return b.JoinFunc(joinType, table, func(on *Builder) {
		on.WhereColumn(first, operator, second)
	})
}

// JoinFunc joins table with the predicates added by fn as ON conditions
func (b *Builder) JoinFunc(joinType, table string, fn func(on *Builder)) *Builder {
	on := b.ForNestedWhere()
	fn(on)
	name, alias := splitAlias(table)
	b.Joins = append(b.Joins, Join{
		Type:  strings.ToUpper(joinType),
		Table: clause.Table{Name: name, Alias: alias},
		On:    on.Wheres,
	})
	return b
}

// OrderBy order by column, direction is `asc` or `desc`
func (b *Builder) OrderBy(column string, direction ...string) *Builder {
	desc := len(direction) > 0 && strings.EqualFold(direction[0], "desc")
	b.Orders = append(b.Orders, Order{Column: column, Desc: desc})
	return b
}

// OrderByDesc order by column descending
func (b *Builder) OrderByDesc(column string) *Builder {
	return b.OrderBy(column, "desc")
}

// OrderByRaw raw order expression
func (b *Builder) OrderByRaw(sql string, vars ...interface{}) *Builder {
	b.Orders = append(b.Orders, Order{Expr: clause.Expr{SQL: sql, Vars: vars}})
	return b
}

// Latest order by column descending
func (b *Builder) Latest(column string) *Builder {
	return b.OrderByDesc(column)
}

// Oldest order by column ascending
func (b *Builder) Oldest(column string) *Builder {
	return b.OrderBy(column)
}

// Reorder removes all orders
func (b *Builder) Reorder() *Builder {
	b.Orders = nil
	return b
}

// GroupBy group by columns
func (b *Builder) GroupBy(columns ...string) *Builder {
	b.Groups = append(b.Groups, columns...)
	return b
}

// Having add an AND having condition, same arguments as Where
func (b *Builder) Having(column interface{}, args ...interface{}) *Builder {
	tmp := b.ForNestedWhere().where(clause.BooleanAnd, column, args...)
	b.AddError(tmp.Error)
	b.Havings = append(b.Havings, tmp.Wheres...)
	return b
}

// OrHaving add an OR having condition
func (b *Builder) OrHaving(column interface{}, args ...interface{}) *Builder {
	tmp := b.ForNestedWhere().where(clause.BooleanOr, column, args...)
	b.AddError(tmp.Error)
	b.Havings = append(b.Havings, tmp.Wheres...)
	return b
}

// HavingRaw raw having condition
func (b *Builder) HavingRaw(sql string, vars ...interface{}) *Builder {
	b.Havings = append(b.Havings, clause.Predicate{Boolean: clause.BooleanAnd, Expr: clause.Expr{SQL: sql, Vars: vars}})
	return b
}

// Limit limit rows, negative removes the limit
func (b *Builder) Limit(limit int) *Builder {
	if limit < 0 {
		b.LimitValue = nil
	} else {
		b.LimitValue = &limit
	}
	return b
}

// Take alias of Limit
func (b *Builder) Take(limit int) *Builder {
	return b.Limit(limit)
}

// Offset skip rows
func (b *Builder) Offset(offset int) *Builder {
	if offset <= 0 {
		b.OffsetValue = nil
	} else {
		b.OffsetValue = &offset
	}
	return b
}

// Skip alias of Offset
func (b *Builder) Skip(offset int) *Builder {
	return b.Offset(offset)
}

// ForPage limit and offset for a 1-based page
func (b *Builder) ForPage(page, perPage int) *Builder {
	if page < 1 {
		page = 1
	}
	return b.Offset((page - 1) * perPage).Limit(perPage)
}

// ForPageAfterID page of perPage rows whose column is greater than lastID, ordered by column
func (b *Builder) ForPageAfterID(perPage int, lastID interface{}, column string) *Builder {
	orders := b.Orders[:0:0]
	for _, order := range b.Orders {
		if order.Expr != nil || order.Column != column {
			orders = append(orders, order)
		}
	}
	b.Orders = orders

	if lastID != nil {
		b.groupOrWheres()
		b.Where(column, ">", lastID)
	}
	return b.OrderBy(column).Limit(perPage)
}

// groupOrWheres nests the current predicates when one of them is an OR, so that a
// condition added afterwards applies to all of them
func (b *Builder) groupOrWheres() {
	if !clause.ContainsOr(b.Wheres) {
		return
	}
	nested := append([]clause.Predicate(nil), b.Wheres...)
	b.Wheres = nil
	b.AddWhere(clause.BooleanAnd, clause.Nested{Predicates: nested})
}

// Union appends a UNION, all keeps duplicates
func (b *Builder) Union(q *Builder, all ...bool) *Builder {
	b.Unions = append(b.Unions, Union{Query: q, All: len(all) > 0 && all[0]})
	return b
}

// Raw raw expression usable as a column, value or condition
func Raw(sql string, vars ...interface{}) clause.Expr {
	return clause.Expr{SQL: sql, Vars: vars}
}
