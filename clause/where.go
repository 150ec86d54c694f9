package clause

import "strings"

const (
	AndWithSpace = " AND "
	OrWithSpace  = " OR "
)

// Boolean joins a predicate to the one before it
type Boolean string

const (
	BooleanAnd Boolean = "and"
	BooleanOr  Boolean = "or"
)

// Predicate a where condition and how it is joined to its predecessor
type Predicate struct {
	Boolean Boolean
	Expr    Expression
}

// IsOr reports whether the predicate is joined with OR
func (p Predicate) IsOr() bool {
	return strings.EqualFold(string(p.Boolean), string(BooleanOr))
}

// ContainsOr reports whether any predicate is joined with OR
func ContainsOr(predicates []Predicate) bool {
	for _, predicate := range predicates {
		if predicate.IsOr() {
			return true
		}
	}
	return false
}

// Where where conditions, the leading boolean is ignored
type Where struct {
	Predicates []Predicate
}

// Build build where clause
func (where Where) Build(builder Builder) {
	for idx, predicate := range where.Predicates {
		if idx > 0 {
			if predicate.IsOr() {
				builder.WriteString(OrWithSpace)
			} else {
				builder.WriteString(AndWithSpace)
			}
		}
		predicate.Expr.Build(builder)
	}
}

// Nested parenthesized group of predicates
type Nested struct {
	Predicates []Predicate
}

// Build wraps the group in parentheses
func (nested Nested) Build(builder Builder) {
	builder.WriteByte('(')
	Where(nested).Build(builder)
	builder.WriteByte(')')
}

// NegationBuild NOT (...)
func (nested Nested) NegationBuild(builder Builder) {
	builder.WriteString("NOT ")
	nested.Build(builder)
}

// NotConditions negates each expression, joined with AND
type NotConditions struct {
	Exprs []Expression
}

// Not negates exprs
func Not(exprs ...Expression) Expression {
	if len(exprs) == 0 {
		return nil
	}
	return NotConditions{Exprs: exprs}
}

// Build build not conditions
func (not NotConditions) Build(builder Builder) {
	for idx, c := range not.Exprs {
		if idx > 0 {
			builder.WriteString(AndWithSpace)
		}

		if negationBuilder, ok := c.(NegationExpressionBuilder); ok {
			negationBuilder.NegationBuild(builder)
		} else {
			builder.WriteString("NOT ")
			e, wrapInParentheses := c.(Expr)
			if wrapInParentheses {
				sql := strings.ToUpper(e.SQL)
				wrapInParentheses = strings.Contains(sql, AndWithSpace) || strings.Contains(sql, OrWithSpace)
			}
			if wrapInParentheses {
				builder.WriteByte('(')
			}
			c.Build(builder)
			if wrapInParentheses {
				builder.WriteByte(')')
			}
		}
	}
}

// And all of exprs, parenthesized when more than one
func And(exprs ...Expression) Expression {
	if len(exprs) == 1 {
		return exprs[0]
	}
	return joined(BooleanAnd, exprs)
}

// Or any of exprs, parenthesized when more than one
func Or(exprs ...Expression) Expression {
	if len(exprs) == 1 {
		return exprs[0]
	}
	return joined(BooleanOr, exprs)
}

func joined(boolean Boolean, exprs []Expression) Expression {
	nested := Nested{Predicates: make([]Predicate, 0, len(exprs))}
	for _, expr := range exprs {
		nested.Predicates = append(nested.Predicates, Predicate{Boolean: boolean, Expr: expr})
	}
	return nested
}
