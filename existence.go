package record

import (
	"strings"

	"gorm.io/record/clause"
	"gorm.io/record/query"
)

// Has rows with at least one related row, `posts.comments` checks nested relations
func (b *Builder) Has(relation string) *Builder {
	return b.HasCount(relation, ">=", 1, clause.BooleanAnd, nil)
}

// OrHas OR form of Has
func (b *Builder) OrHas(relation string) *Builder {
	return b.HasCount(relation, ">=", 1, clause.BooleanOr, nil)
}

// DoesntHave rows without related rows
func (b *Builder) DoesntHave(relation string) *Builder {
	return b.HasCount(relation, "<", 1, clause.BooleanAnd, nil)
}

// OrDoesntHave OR form of DoesntHave
func (b *Builder) OrDoesntHave(relation string) *Builder {
	return b.HasCount(relation, "<", 1, clause.BooleanOr, nil)
}

// WhereHas rows with at least one related row matching callback
func (b *Builder) WhereHas(relation string, callback func(q *Builder)) *Builder {
	return b.HasCount(relation, ">=", 1, clause.BooleanAnd, callback)
}

// OrWhereHas OR form of WhereHas
func (b *Builder) OrWhereHas(relation string, callback func(q *Builder)) *Builder {
	return b.HasCount(relation, ">=", 1, clause.BooleanOr, callback)
}

// WhereDoesntHave rows without related rows matching callback
func (b *Builder) WhereDoesntHave(relation string, callback func(q *Builder)) *Builder {
	return b.HasCount(relation, "<", 1, clause.BooleanAnd, callback)
}

// OrWhereDoesntHave OR form of WhereDoesntHave
func (b *Builder) OrWhereDoesntHave(relation string, callback func(q *Builder)) *Builder {
	return b.HasCount(relation, "<", 1, clause.BooleanOr, callback)
}

// HasCount rows whose count of related rows matching callback compares to count with operator.
// `>= 1` and `< 1` compile to EXISTS and NOT EXISTS, other comparisons to a count sub query
func (b *Builder) HasCount(relation, operator string, count int, boolean clause.Boolean, callback func(q *Builder)) *Builder {
	if strings.Contains(relation, ".") {
		return b.hasNested(relation, operator, count, boolean, callback)
	}

	rel, err := b.model.relationWithoutConstraints(relation)
	if err != nil {
		b.AddError(err)
		return b
	}

	exists := canUseExistsForExistenceCheck(operator, count)
	var columns interface{} = "*"
	if !exists {
		columns = query.Raw("count(*)")
	}

	hasQuery := rel.ExistenceQuery(rel.GetRelated().newQueryWithoutRelationships(), b, columns)
	hasQuery.mergeConstraintsFrom(rel.GetQuery())
	if callback != nil {
		hasQuery.CallScope(func(q *Builder, _ ...interface{}) {
			callback(q)
		})
	}
	if err := hasQuery.Err(); err != nil {
		b.AddError(err)
		return b
	}

	sub := hasQuery.ToBase()
	switch {
	case exists && operator == "<":
		b.query.AddWhere(boolean, clause.Not(clause.Exists{Query: sub}))
	case exists:
		b.query.AddWhere(boolean, clause.Exists{Query: sub})
	default:
		b.query.AddWhere(boolean, clause.Expr{SQL: "(?) " + operator + " ?", Vars: []interface{}{sub, count}})
	}
	return b
}

// hasNested `a.b.c` becomes has a where has b where has c
func (b *Builder) hasNested(relations, operator string, count int, boolean clause.Boolean, callback func(q *Builder)) *Builder {
	names := strings.Split(relations, ".")

	doesntHave := operator == "<" && count == 1
	if doesntHave {
		operator, count = ">=", 1
	}

	var nest func(names []string) func(q *Builder)
	nest = func(names []string) func(q *Builder) {
		return func(q *Builder) {
			if len(names) > 1 {
				q.WhereHas(names[0], nest(names[1:]))
			} else {
				q.HasCount(names[0], operator, count, clause.BooleanAnd, callback)
			}
		}
	}

	outerOperator := ">="
	if doesntHave {
		outerOperator = "<"
	}
	return b.HasCount(names[0], outerOperator, 1, boolean, nest(names[1:]))
}

func canUseExistsForExistenceCheck(operator string, count int) bool {
	return (operator == ">=" || operator == "<") && count == 1
}
