package query

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/record/clause"
	"gorm.io/record/utils"
)

// Get runs the select, columns apply only when none were selected
func (b *Builder) Get(ctx context.Context, columns ...string) ([]map[string]interface{}, error) {
	if b.Error != nil {
		return nil, b.Error
	}

	if len(b.Columns) == 0 && len(columns) > 0 {
		original := b.Columns
		b.AddSelect(columns)
		defer func() { b.Columns = original }()
	}

	sql, vars := b.Compile()
	return b.Connection.Select(ctx, sql, vars)
}

// First first row or nil
func (b *Builder) First(ctx context.Context, columns ...string) (map[string]interface{}, error) {
	rows, err := b.Clone().Limit(1).Get(ctx, columns...)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Value single column of the first row
func (b *Builder) Value(ctx context.Context, column string) (interface{}, error) {
	row, err := b.Clone().Select(column).First(ctx)
	if err != nil || row == nil {
		return nil, err
	}
	_, alias := splitAlias(column)
	if alias != "" {
		return row[alias], nil
	}
	return row[lastSegment(column)], nil
}

// Pluck values of column
func (b *Builder) Pluck(ctx context.Context, column string) ([]interface{}, error) {
	rows, err := b.Clone().Select(column).Get(ctx)
	if err != nil {
		return nil, err
	}

	key := lastSegment(column)
	if _, alias := splitAlias(column); alias != "" {
		key = alias
	}

	values := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		values = append(values, row[key])
	}
	return values, nil
}

func lastSegment(column string) string {
	if idx := strings.LastIndexByte(column, '.'); idx >= 0 {
		return column[idx+1:]
	}
	return column
}

// Aggregate runs function over column, `*` or empty counts rows
func (b *Builder) Aggregate(ctx context.Context, function, column string) (interface{}, error) {
	if b.Error != nil {
		return nil, b.Error
	}

	var target clause.Expression = clause.Expr{SQL: "*"}
	if column != "" && column != "*" {
		target = columnExpr{name: column}
	}
	aggregate := clause.Expr{SQL: strings.ToUpper(function) + "(?) AS aggregate", Vars: []interface{}{target}}

	q := b.Clone()
	if len(q.Groups) > 0 || len(q.Unions) > 0 || q.IsDistinct {
		outer := q.NewQuery().FromSub(q, "aggregate_table")
		outer.Columns = []clause.Expression{aggregate}
		q = outer
	} else {
		q.Columns = []clause.Expression{aggregate}
		q.Orders = nil
		q.LimitValue, q.OffsetValue = nil, nil
	}

	rows, err := q.Get(ctx)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0]["aggregate"], nil
}

// Count counts matching rows
func (b *Builder) Count(ctx context.Context, column ...string) (int64, error) {
	var target string
	if len(column) > 0 {
		target = column[0]
	}

	value, err := b.Aggregate(ctx, "count", target)
	if err != nil {
		return 0, err
	}
	f, _ := utils.ToFloat(value)
	return int64(f), nil
}

// Min minimum of column
func (b *Builder) Min(ctx context.Context, column string) (interface{}, error) {
	return b.Aggregate(ctx, "min", column)
}

// Max maximum of column
func (b *Builder) Max(ctx context.Context, column string) (interface{}, error) {
	return b.Aggregate(ctx, "max", column)
}

// Sum sum of column
func (b *Builder) Sum(ctx context.Context, column string) (interface{}, error) {
	return b.Aggregate(ctx, "sum", column)
}

// Avg average of column
func (b *Builder) Avg(ctx context.Context, column string) (interface{}, error) {
	return b.Aggregate(ctx, "avg", column)
}

// Exists reports whether any row matches
func (b *Builder) Exists(ctx context.Context) (bool, error) {
	if b.Error != nil {
		return false, b.Error
	}

	sql, vars := b.CompileExists()
	rows, err := b.Connection.Select(ctx, sql, vars)
	if err != nil || len(rows) == 0 {
		return false, err
	}

	switch v := rows[0]["exists"].(type) {
	case bool:
		return v, nil
	case nil:
		return false, nil
	default:
		f, ok := utils.ToFloat(v)
		return ok && f != 0, nil
	}
}

// DoesntExist reports whether no row matches
func (b *Builder) DoesntExist(ctx context.Context) (bool, error) {
	exists, err := b.Exists(ctx)
	return !exists, err
}

// Insert inserts rows
func (b *Builder) Insert(ctx context.Context, rows ...map[string]interface{}) (int64, error) {
	if b.Error != nil {
		return 0, b.Error
	}
	if len(rows) == 0 {
		return 0, nil
	}

	sql, vars := b.CompileInsert(rows...)
	return b.Connection.Affecting(ctx, sql, vars)
}

// InsertGetID inserts one row and returns the generated sequence value
func (b *Builder) InsertGetID(ctx context.Context, values map[string]interface{}, sequence string) (interface{}, error) {
	if b.Error != nil {
		return nil, b.Error
	}

	sql, vars := b.CompileInsertGetID(values, sequence)
	return b.Connection.InsertGetID(ctx, sql, vars, sequence)
}

// Update updates matching rows
func (b *Builder) Update(ctx context.Context, values map[string]interface{}) (int64, error) {
	if b.Error != nil {
		return 0, b.Error
	}
	if len(values) == 0 {
		return 0, nil
	}

	sql, vars := b.CompileUpdate(values)
	return b.Connection.Affecting(ctx, sql, vars)
}

// Increment adds amount to column, extra columns are updated alongside
func (b *Builder) Increment(ctx context.Context, column string, amount interface{}, extra ...map[string]interface{}) (int64, error) {
	return b.step(ctx, column, "+", amount, extra)
}

// Decrement subtracts amount from column
func (b *Builder) Decrement(ctx context.Context, column string, amount interface{}, extra ...map[string]interface{}) (int64, error) {
	return b.step(ctx, column, "-", amount, extra)
}

func (b *Builder) step(ctx context.Context, column, op string, amount interface{}, extra []map[string]interface{}) (int64, error) {
	if !utils.IsNumeric(amount) {
		return 0, fmt.Errorf("non-numeric value passed to increment method: %v", amount)
	}

	values := map[string]interface{}{
		column: clause.Expr{SQL: "? " + op + " ?", Vars: []interface{}{clause.Column{Name: column}, amount}},
	}
	for _, e := range extra {
		for k, v := range e {
			values[k] = v
		}
	}
	return b.Update(ctx, values)
}

// Delete deletes matching rows
func (b *Builder) Delete(ctx context.Context) (int64, error) {
	if b.Error != nil {
		return 0, b.Error
	}

	sql, vars := b.CompileDelete()
	return b.Connection.Affecting(ctx, sql, vars)
}
