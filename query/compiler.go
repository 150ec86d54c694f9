package query

import (
	"sort"
	"strconv"

	"gorm.io/record/clause"
)

// Build writes the select statement into builder, used when the query is a sub query
func (b *Builder) Build(builder clause.Builder) {
	b.compileSelect(builder)
}

// ToSQL compiled select statement
func (b *Builder) ToSQL() string {
	sql, _ := b.Compile()
	return sql
}

// GetBindings values bound to the compiled select statement, in placeholder order
func (b *Builder) GetBindings() []interface{} {
	_, vars := b.Compile()
	return vars
}

// Compile compiles the select statement
func (b *Builder) Compile() (string, []interface{}) {
	stmt := NewStatement(b.Dialector())
	b.compileSelect(stmt)
	return stmt.SQL.String(), stmt.Vars
}

func (b *Builder) compileSelect(w clause.Builder) {
	w.WriteString("SELECT ")
	if b.IsDistinct {
		w.WriteString("DISTINCT ")
	}

	if len(b.Columns) == 0 {
		w.WriteByte('*')
	}
	for idx, column := range b.Columns {
		if idx > 0 {
			w.WriteByte(',')
		}
		column.Build(w)
	}

	w.WriteString(" FROM ")
	b.compileFrom(w)
	b.compileJoins(w)
	b.compileWheres(w)

	if len(b.Groups) > 0 {
		w.WriteString(" GROUP BY ")
		for idx, group := range b.Groups {
			if idx > 0 {
				w.WriteByte(',')
			}
			w.WriteQuoted(group)
		}
	}

	if len(b.Havings) > 0 {
		w.WriteString(" HAVING ")
		clause.Where{Predicates: b.Havings}.Build(w)
	}

	for _, union := range b.Unions {
		if union.All {
			w.WriteString(" UNION ALL ")
		} else {
			w.WriteString(" UNION ")
		}
		union.Query.compileSelect(w)
	}

	b.compileOrders(w)
	b.compileLimit(w)
}

func (b *Builder) compileFrom(w clause.Builder) {
	if b.FromExpr != nil {
		b.FromExpr.Build(w)
		return
	}
	w.WriteQuoted(b.Table)
}

func (b *Builder) compileJoins(w clause.Builder) {
	for _, join := range b.Joins {
		w.WriteByte(' ')
		w.WriteString(join.Type)
		w.WriteString(" JOIN ")
		w.WriteQuoted(join.Table)
		if len(join.On) > 0 {
			w.WriteString(" ON ")
			clause.Where{Predicates: join.On}.Build(w)
		}
	}
}

func (b *Builder) compileWheres(w clause.Builder) {
	if len(b.Wheres) > 0 {
		w.WriteString(" WHERE ")
		clause.Where{Predicates: b.Wheres}.Build(w)
	}
}

func (b *Builder) compileOrders(w clause.Builder) {
	if len(b.Orders) == 0 {
		return
	}

	w.WriteString(" ORDER BY ")
	for idx, order := range b.Orders {
		if idx > 0 {
			w.WriteByte(',')
		}
		if order.Expr != nil {
			order.Expr.Build(w)
			continue
		}
		w.WriteQuoted(order.Column)
		if order.Desc {
			w.WriteString(" DESC")
		}
	}
}

func (b *Builder) compileLimit(w clause.Builder) {
	if b.LimitValue != nil {
		w.WriteString(" LIMIT ")
		w.WriteString(strconv.Itoa(*b.LimitValue))
	} else if b.OffsetValue != nil {
		switch b.Dialector().Name() {
		case "sqlite":
			w.WriteString(" LIMIT -1")
		case "mysql":
			w.WriteString(" LIMIT 18446744073709551615")
		}
	}

	if b.OffsetValue != nil {
		w.WriteString(" OFFSET ")
		w.WriteString(strconv.Itoa(*b.OffsetValue))
	}
}

// CompileInsert compiles an insert of rows, columns are the sorted union of the row keys
func (b *Builder) CompileInsert(rows ...map[string]interface{}) (string, []interface{}) {
	stmt := NewStatement(b.Dialector())
	b.compileInsert(stmt, rows)
	return stmt.SQL.String(), stmt.Vars
}

func (b *Builder) compileInsert(stmt *Statement, rows []map[string]interface{}) {
	stmt.WriteString("INSERT INTO ")
	stmt.WriteQuoted(clause.Table{Name: b.Table.Name})

	columns := map[string]bool{}
	for _, row := range rows {
		for column := range row {
			columns[column] = true
		}
	}

	if len(columns) == 0 {
		if stmt.Dialector.Name() == "mysql" {
			stmt.WriteString(" () VALUES ()")
		} else {
			stmt.WriteString(" DEFAULT VALUES")
		}
		return
	}

	names := sortedKeys(columns)
	stmt.WriteString(" (")
	for idx, name := range names {
		if idx > 0 {
			stmt.WriteByte(',')
		}
		stmt.WriteQuoted(clause.Column{Name: name})
	}
	stmt.WriteString(") VALUES ")

	for ridx, row := range rows {
		if ridx > 0 {
			stmt.WriteByte(',')
		}
		stmt.WriteByte('(')
		for idx, name := range names {
			if idx > 0 {
				stmt.WriteByte(',')
			}
			stmt.AddVar(stmt, row[name])
		}
		stmt.WriteByte(')')
	}
}

// CompileInsertGetID compiles a single row insert returning sequence when the dialect can
func (b *Builder) CompileInsertGetID(values map[string]interface{}, sequence string) (string, []interface{}) {
	stmt := NewStatement(b.Dialector())
	b.compileInsert(stmt, []map[string]interface{}{values})
	if rd, ok := stmt.Dialector.(ReturningDialector); ok && rd.SupportsReturning() && sequence != "" {
		stmt.WriteString(" RETURNING ")
		stmt.WriteQuoted(clause.Column{Name: sequence})
	}
	return stmt.SQL.String(), stmt.Vars
}

// CompileUpdate compiles an update of values, values may hold expressions
func (b *Builder) CompileUpdate(values map[string]interface{}) (string, []interface{}) {
	stmt := NewStatement(b.Dialector())
	stmt.WriteString("UPDATE ")
	stmt.WriteQuoted(b.Table)
	stmt.WriteString(" SET ")
	for idx, column := range sortedKeys(values) {
		if idx > 0 {
			stmt.WriteByte(',')
		}
		stmt.WriteQuoted(column)
		stmt.WriteString(" = ")
		stmt.AddVar(stmt, values[column])
	}
	b.compileWheres(stmt)
	return stmt.SQL.String(), stmt.Vars
}

// CompileDelete compiles a delete of the matching rows
func (b *Builder) CompileDelete() (string, []interface{}) {
	stmt := NewStatement(b.Dialector())
	stmt.WriteString("DELETE FROM ")
	stmt.WriteQuoted(b.Table)
	b.compileWheres(stmt)
	return stmt.SQL.String(), stmt.Vars
}

// CompileExists compiles SELECT EXISTS(...)
func (b *Builder) CompileExists() (string, []interface{}) {
	stmt := NewStatement(b.Dialector())
	stmt.WriteString("SELECT EXISTS(")
	b.compileSelect(stmt)
	stmt.WriteString(") AS ")
	stmt.WriteQuoted(clause.Column{Name: "exists"})
	return stmt.SQL.String(), stmt.Vars
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
