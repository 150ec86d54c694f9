package query

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/record/clause"
)

// Dialector renders the dialect specific parts of a statement
type Dialector interface {
	Name() string
	BindVarTo(writer clause.Writer, stmt *Statement, v interface{})
	QuoteTo(clause.Writer, string)
	Explain(sql string, vars ...interface{}) string
}

// ReturningDialector dialects able to return the generated key from the insert statement
type ReturningDialector interface {
	SupportsReturning() bool
}

// Connection runs compiled statements
type Connection interface {
	Select(ctx context.Context, sql string, bindings []interface{}) ([]map[string]interface{}, error)
	Affecting(ctx context.Context, sql string, bindings []interface{}) (int64, error)
	InsertGetID(ctx context.Context, sql string, bindings []interface{}, sequence string) (interface{}, error)
	Dialector() Dialector
}

// Statement a statement being compiled, implements clause.Builder
type Statement struct {
	SQL       strings.Builder
	Vars      []interface{}
	Dialector Dialector
}

// NewStatement creates an empty statement for dialector
func NewStatement(dialector Dialector) *Statement {
	return &Statement{Dialector: dialector}
}

// WriteString write string
func (stmt *Statement) WriteString(str string) (int, error) {
	return stmt.SQL.WriteString(str)
}

// WriteByte write byte
func (stmt *Statement) WriteByte(c byte) error {
	return stmt.SQL.WriteByte(c)
}

// WriteQuoted write quoted value
func (stmt *Statement) WriteQuoted(value interface{}) {
	stmt.QuoteTo(&stmt.SQL, value)
}

// QuoteTo write quoted value to writer
func (stmt *Statement) QuoteTo(writer clause.Writer, field interface{}) {
	switch v := field.(type) {
	case clause.Table:
		if v.Raw {
			writer.WriteString(v.Name)
		} else {
			stmt.quoteName(writer, v.Name)
		}

		if v.Alias != "" {
			writer.WriteString(" AS ")
			stmt.Dialector.QuoteTo(writer, v.Alias)
		}
	case clause.Column:
		if v.Table != "" {
			stmt.quoteName(writer, v.Table)
			writer.WriteByte('.')
		}

		if v.Raw || v.Name == "*" {
			writer.WriteString(v.Name)
		} else {
			stmt.Dialector.QuoteTo(writer, v.Name)
		}

		if v.Alias != "" {
			writer.WriteString(" AS ")
			stmt.Dialector.QuoteTo(writer, v.Alias)
		}
	case string:
		name, alias := splitAlias(v)
		stmt.quoteName(writer, name)
		if alias != "" {
			writer.WriteString(" AS ")
			stmt.Dialector.QuoteTo(writer, alias)
		}
	case []string:
		writer.WriteByte('(')
		for idx, d := range v {
			if idx > 0 {
				writer.WriteByte(',')
			}
			stmt.QuoteTo(writer, d)
		}
		writer.WriteByte(')')
	case clause.Expression:
		v.Build(stmt)
	default:
		stmt.Dialector.QuoteTo(writer, fmt.Sprint(field))
	}
}

// quoteName quotes each dotted segment, `*` is written as is
func (stmt *Statement) quoteName(writer clause.Writer, name string) {
	for idx, segment := range strings.Split(name, ".") {
		if idx > 0 {
			writer.WriteByte('.')
		}
		if segment == "*" {
			writer.WriteByte('*')
			continue
		}
		stmt.Dialector.QuoteTo(writer, segment)
	}
}

// splitAlias splits `users as u` into `users`, `u`
func splitAlias(name string) (string, string) {
	if idx := strings.Index(strings.ToLower(name), " as "); idx > 0 {
		return strings.TrimSpace(name[:idx]), strings.TrimSpace(name[idx+4:])
	}
	return name, ""
}

// Quote returns quoted value
func (stmt *Statement) Quote(field interface{}) string {
	tmp := &Statement{Dialector: stmt.Dialector}
	tmp.WriteQuoted(field)
	return tmp.SQL.String()
}

// AddVar add var
func (stmt *Statement) AddVar(writer clause.Writer, vars ...interface{}) {
	for idx, v := range vars {
		if idx > 0 {
			writer.WriteByte(',')
		}

		switch v := v.(type) {
		case clause.Column, clause.Table:
			stmt.QuoteTo(writer, v)
		case clause.Expression:
			v.Build(stmt)
		case []interface{}:
			if len(v) > 0 {
				writer.WriteByte('(')
				stmt.AddVar(writer, v...)
				writer.WriteByte(')')
			} else {
				writer.WriteString("(NULL)")
			}
		default:
			stmt.Vars = append(stmt.Vars, v)
			stmt.Dialector.BindVarTo(writer, stmt, v)
		}
	}
}

// String compiled SQL
func (stmt *Statement) String() string {
	return stmt.SQL.String()
}
