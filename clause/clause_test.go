package clause_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/record/clause"
)

// testBuilder renders `?` placeholders and backtick quoting
type testBuilder struct {
	strings.Builder
	Vars []interface{}
}

func (b *testBuilder) WriteQuoted(field interface{}) {
	switch v := field.(type) {
	case clause.Column:
		if v.Table != "" {
			b.WriteString("`" + v.Table + "`.")
		}
		if v.Raw {
			b.WriteString(v.Name)
		} else {
			b.WriteString("`" + v.Name + "`")
		}
		if v.Alias != "" {
			b.WriteString(" AS `" + v.Alias + "`")
		}
	case clause.Table:
		b.WriteString("`" + v.Name + "`")
	case string:
		b.WriteString("`" + strings.ReplaceAll(v, ".", "`.`") + "`")
	default:
		b.WriteString(fmt.Sprint(v))
	}
}

func (b *testBuilder) AddVar(w clause.Writer, vars ...interface{}) {
	for idx, v := range vars {
		if idx > 0 {
			w.WriteByte(',')
		}
		if expr, ok := v.(clause.Expression); ok {
			expr.Build(b)
			continue
		}
		b.Vars = append(b.Vars, v)
		w.WriteByte('?')
	}
}

func build(expr clause.Expression) (string, []interface{}) {
	b := &testBuilder{}
	expr.Build(b)
	return b.String(), b.Vars
}

func TestExpressions(t *testing.T) {
	var nilPtr *int

	results := []struct {
		Expr   clause.Expression
		Result string
		Vars   []interface{}
	}{
		{clause.Eq{Column: "name", Value: "taylor"}, "`name` = ?", []interface{}{"taylor"}},
		{clause.Eq{Column: "deleted_at", Value: nil}, "`deleted_at` IS NULL", nil},
		{clause.Eq{Column: "deleted_at", Value: nilPtr}, "`deleted_at` IS NULL", nil},
		{clause.Neq{Column: "deleted_at", Value: nil}, "`deleted_at` IS NOT NULL", nil},
		{clause.Gt{Column: "votes", Value: 100}, "`votes` > ?", []interface{}{100}},
		{clause.Lte{Column: "votes", Value: 100}, "`votes` <= ?", []interface{}{100}},
		{clause.Like{Column: "email", Value: "%@x"}, "`email` LIKE ?", []interface{}{"%@x"}},
		{clause.Compare{Column: "age", Operator: ">=", Value: 18}, "`age` >= ?", []interface{}{18}},
		{clause.Compare{Column: "age", Operator: "!=", Value: 18}, "`age` <> ?", []interface{}{18}},
		{clause.ColumnCompare{Left: "posts.user_id", Right: "users.id"}, "`posts`.`user_id` = `users`.`id`", nil},
		{clause.IN{Column: "id", Values: []interface{}{1, 2, 3}}, "`id` IN (?,?,?)", []interface{}{1, 2, 3}},
		{clause.IN{Column: "id"}, "`id` IN (NULL)", nil},
		{clause.Null{Column: clause.Column{Table: "users", Name: "email"}}, "`users`.`email` IS NULL", nil},
		{clause.Between{Column: "age", Low: 1, High: 9}, "`age` BETWEEN ? AND ?", []interface{}{1, 9}},
		{clause.Exists{Query: clause.Expr{SQL: "select 1"}}, "EXISTS (select 1)", nil},
		{clause.Expr{SQL: "id in ? and name = ?", Vars: []interface{}{[]int{1, 2}, "a"}}, "id in ?,? and name = ?", []interface{}{1, 2, "a"}},
		{clause.Expr{SQL: "id in ?", Vars: []interface{}{[]interface{}{1, 2}}}, "id in (?,?)", []interface{}{1, 2}},
		{clause.Expr{SQL: "data = ?", Vars: []interface{}{[]byte("x")}}, "data = ?", []interface{}{[]byte("x")}},
	}

	for idx, result := range results {
		t.Run(fmt.Sprintf("case #%v", idx), func(t *testing.T) {
			sql, vars := build(result.Expr)
			assert.Equal(t, result.Result, sql)
			assert.Equal(t, result.Vars, vars)
		})
	}
}

func TestNot(t *testing.T) {
	results := []struct {
		Expr   clause.Expression
		Result string
	}{
		{clause.Not(clause.Eq{Column: "a", Value: 1}), "`a` <> ?"},
		{clause.Not(clause.Gt{Column: "a", Value: 1}, clause.Like{Column: "b", Value: "x"}), "`a` <= ? AND `b` NOT LIKE ?"},
		{clause.Not(clause.IN{Column: "id", Values: []interface{}{1}}), "`id` NOT IN (?)"},
		{clause.Not(clause.Expr{SQL: "a = 1 or b = 2"}), "NOT (a = 1 or b = 2)"},
		{clause.Not(clause.Expr{SQL: "a = 1"}), "NOT a = 1"},
		{clause.Not(clause.Exists{Query: clause.Expr{SQL: "select 1"}}), "NOT EXISTS (select 1)"},
	}

	for idx, result := range results {
		t.Run(fmt.Sprintf("case #%v", idx), func(t *testing.T) {
			sql, _ := build(result.Expr)
			assert.Equal(t, result.Result, sql)
		})
	}
	assert.Nil(t, clause.Not())
}

func TestWhere(t *testing.T) {
	where := clause.Where{Predicates: []clause.Predicate{
		{Boolean: clause.BooleanOr, Expr: clause.Eq{Column: "a", Value: 1}},
		{Boolean: clause.BooleanAnd, Expr: clause.Nested{Predicates: []clause.Predicate{
			{Boolean: clause.BooleanAnd, Expr: clause.Eq{Column: "b", Value: 2}},
			{Boolean: "OR", Expr: clause.Eq{Column: "c", Value: 3}},
		}}},
		{Boolean: clause.BooleanOr, Expr: clause.Null{Column: "d"}},
	}}

	sql, vars := build(where)
	assert.Equal(t, "`a` = ? AND (`b` = ? OR `c` = ?) OR `d` IS NULL", sql)
	assert.Equal(t, []interface{}{1, 2, 3}, vars)

	sql, _ = build(clause.Or(clause.Eq{Column: "a", Value: 1}, clause.Eq{Column: "b", Value: 2}))
	assert.Equal(t, "(`a` = ? OR `b` = ?)", sql)

	sql, _ = build(clause.And(clause.Eq{Column: "a", Value: 1}))
	assert.Equal(t, "`a` = ?", sql)
}
