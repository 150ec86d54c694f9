package clause

import (
	"database/sql/driver"
	"reflect"
	"strings"
)

// Expr raw expression, `?` in SQL is replaced by the next var
type Expr struct {
	SQL                string
	Vars               []interface{}
	WithoutParentheses bool
}

// Build build raw expression
func (expr Expr) Build(builder Builder) {
	var idx int

	for _, v := range []byte(expr.SQL) {
		if v != '?' || len(expr.Vars) <= idx {
			builder.WriteByte(v)
			continue
		}

		switch value := expr.Vars[idx].(type) {
		case Expression:
			value.Build(builder)
		case driver.Valuer:
			builder.AddVar(builder, value)
		case []interface{}:
			if !expr.WithoutParentheses {
				builder.WriteByte('(')
			}
			builder.AddVar(builder, value...)
			if !expr.WithoutParentheses {
				builder.WriteByte(')')
			}
		default:
			builder.AddVar(builder, expandSlice(value)...)
		}
		idx++
	}
}

// expandSlice turns typed slices (except []byte) into a var list
func expandSlice(value interface{}) []interface{} {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return []interface{}{value}
	}

	values := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		values[i] = rv.Index(i).Interface()
	}
	return values
}

// Eq equal to for where
type Eq struct {
	Column interface{}
	Value  interface{}
}

func (eq Eq) Build(builder Builder) {
	builder.WriteQuoted(eq.Column)

	if eqNil(eq.Value) {
		builder.WriteString(" IS NULL")
		return
	}
	builder.WriteString(" = ")
	builder.AddVar(builder, eq.Value)
}

func (eq Eq) NegationBuild(builder Builder) {
	Neq(eq).Build(builder)
}

// Neq not equal to for where
type Neq Eq

func (neq Neq) Build(builder Builder) {
	builder.WriteQuoted(neq.Column)

	if eqNil(neq.Value) {
		builder.WriteString(" IS NOT NULL")
		return
	}
	builder.WriteString(" <> ")
	builder.AddVar(builder, neq.Value)
}

func (neq Neq) NegationBuild(builder Builder) {
	Eq(neq).Build(builder)
}

// Gt greater than for where
type Gt Eq

func (gt Gt) Build(builder Builder) {
	builder.WriteQuoted(gt.Column)
	builder.WriteString(" > ")
	builder.AddVar(builder, gt.Value)
}

func (gt Gt) NegationBuild(builder Builder) {
	Lte(gt).Build(builder)
}

// Gte greater than or equal to for where
type Gte Eq

func (gte Gte) Build(builder Builder) {
	builder.WriteQuoted(gte.Column)
	builder.WriteString(" >= ")
	builder.AddVar(builder, gte.Value)
}

func (gte Gte) NegationBuild(builder Builder) {
	Lt(gte).Build(builder)
}

// Lt less than for where
type Lt Eq

func (lt Lt) Build(builder Builder) {
	builder.WriteQuoted(lt.Column)
	builder.WriteString(" < ")
	builder.AddVar(builder, lt.Value)
}

func (lt Lt) NegationBuild(builder Builder) {
	Gte(lt).Build(builder)
}

// Lte less than or equal to for where
type Lte Eq

func (lte Lte) Build(builder Builder) {
	builder.WriteQuoted(lte.Column)
	builder.WriteString(" <= ")
	builder.AddVar(builder, lte.Value)
}

func (lte Lte) NegationBuild(builder Builder) {
	Gt(lte).Build(builder)
}

// Like whether string matches regular expression
type Like Eq

func (like Like) Build(builder Builder) {
	builder.WriteQuoted(like.Column)
	builder.WriteString(" LIKE ")
	builder.AddVar(builder, like.Value)
}

func (like Like) NegationBuild(builder Builder) {
	builder.WriteQuoted(like.Column)
	builder.WriteString(" NOT LIKE ")
	builder.AddVar(builder, like.Value)
}

// Compare column compared with a value through an arbitrary operator
type Compare struct {
	Column   interface{}
	Operator string
	Value    interface{}
}

func (cmp Compare) Build(builder Builder) {
	switch strings.ToLower(strings.TrimSpace(cmp.Operator)) {
	case "", "=":
		Eq{Column: cmp.Column, Value: cmp.Value}.Build(builder)
	case "<>", "!=":
		Neq{Column: cmp.Column, Value: cmp.Value}.Build(builder)
	case "like":
		Like{Column: cmp.Column, Value: cmp.Value}.Build(builder)
	default:
		builder.WriteQuoted(cmp.Column)
		builder.WriteByte(' ')
		builder.WriteString(cmp.Operator)
		builder.WriteByte(' ')
		builder.AddVar(builder, cmp.Value)
	}
}

// ColumnCompare compares two columns, `posts`.`user_id` = `users`.`id`
type ColumnCompare struct {
	Left     interface{}
	Operator string
	Right    interface{}
}

func (cmp ColumnCompare) Build(builder Builder) {
	op := cmp.Operator
	if op == "" {
		op = "="
	}
	builder.WriteQuoted(cmp.Left)
	builder.WriteByte(' ')
	builder.WriteString(op)
	builder.WriteByte(' ')
	builder.WriteQuoted(cmp.Right)
}

// IN Whether a value is within a set of values
type IN struct {
	Column interface{}
	Values []interface{}
}

func (in IN) Build(builder Builder) {
	builder.WriteQuoted(in.Column)

	if len(in.Values) == 1 {
		if _, ok := in.Values[0].(Expression); ok {
			builder.WriteString(" IN (")
			builder.AddVar(builder, in.Values...)
			builder.WriteByte(')')
			return
		}
	}

	switch len(in.Values) {
	case 0:
		builder.WriteString(" IN (NULL)")
	default:
		builder.WriteString(" IN (")
		builder.AddVar(builder, in.Values...)
		builder.WriteByte(')')
	}
}

func (in IN) NegationBuild(builder Builder) {
	builder.WriteQuoted(in.Column)
	switch len(in.Values) {
	case 0:
		builder.WriteString(" IS NOT NULL")
	default:
		builder.WriteString(" NOT IN (")
		builder.AddVar(builder, in.Values...)
		builder.WriteByte(')')
	}
}

// Null column IS NULL
type Null struct {
	Column interface{}
}

func (null Null) Build(builder Builder) {
	builder.WriteQuoted(null.Column)
	builder.WriteString(" IS NULL")
}

func (null Null) NegationBuild(builder Builder) {
	builder.WriteQuoted(null.Column)
	builder.WriteString(" IS NOT NULL")
}

// Between column BETWEEN a AND b
type Between struct {
	Column interface{}
	Low    interface{}
	High   interface{}
}

func (between Between) Build(builder Builder) {
	builder.WriteQuoted(between.Column)
	builder.WriteString(" BETWEEN ")
	builder.AddVar(builder, between.Low)
	builder.WriteString(" AND ")
	builder.AddVar(builder, between.High)
}

func (between Between) NegationBuild(builder Builder) {
	builder.WriteQuoted(between.Column)
	builder.WriteString(" NOT BETWEEN ")
	builder.AddVar(builder, between.Low)
	builder.WriteString(" AND ")
	builder.AddVar(builder, between.High)
}

// Exists EXISTS (sub query)
type Exists struct {
	Query Expression
}

func (exists Exists) Build(builder Builder) {
	builder.WriteString("EXISTS (")
	exists.Query.Build(builder)
	builder.WriteByte(')')
}

func (exists Exists) NegationBuild(builder Builder) {
	builder.WriteString("NOT EXISTS (")
	exists.Query.Build(builder)
	builder.WriteByte(')')
}

func eqNil(value interface{}) bool {
	if valuer, ok := value.(driver.Valuer); ok && !eqNilReflect(valuer) {
		value, _ = valuer.Value()
	}

	return value == nil || eqNilReflect(value)
}

func eqNilReflect(value interface{}) bool {
	reflectValue := reflect.ValueOf(value)
	return reflectValue.Kind() == reflect.Ptr && reflectValue.IsNil()
}
