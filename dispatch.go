package record

import (
	"context"
	"fmt"
	"sync"
)

var globalMacros sync.Map

// RegisterMacro registers a macro callable on every builder
func RegisterMacro(name string, fn Macro) {
	globalMacros.Store(name, fn)
}

// Macro registers a macro on this builder only
func (b *Builder) Macro(name string, fn Macro) *Builder {
	if b.localMacros == nil {
		b.localMacros = map[string]Macro{}
	}
	b.localMacros[name] = fn
	return b
}

// HasMacro reports whether name resolves to a local, class or global macro
func (b *Builder) HasMacro(name string) bool {
	_, ok := b.macro(name)
	return ok
}

func (b *Builder) macro(name string) (Macro, bool) {
	if fn, ok := b.localMacros[name]; ok {
		return fn, true
	}
	if fn, ok := b.model.class.Macros[name]; ok {
		return fn, true
	}
	if v, ok := globalMacros.Load(name); ok {
		return v.(Macro), true
	}
	return nil, false
}

// passthru methods answered by the base query with global scopes applied
var passthru = map[string]func(ctx context.Context, b *Builder, args []interface{}) (interface{}, error){
	"toSql": func(_ context.Context, b *Builder, _ []interface{}) (interface{}, error) {
		return b.ToSQL(), nil
	},
	"getBindings": func(_ context.Context, b *Builder, _ []interface{}) (interface{}, error) {
		return b.GetBindings(), nil
	},
	"exists": func(ctx context.Context, b *Builder, _ []interface{}) (interface{}, error) {
		return b.Exists(ctx)
	},
	"doesntExist": func(ctx context.Context, b *Builder, _ []interface{}) (interface{}, error) {
		return b.DoesntExist(ctx)
	},
	"count": func(ctx context.Context, b *Builder, args []interface{}) (interface{}, error) {
		columns, err := stringArgs(args)
		if err != nil {
			return nil, err
		}
		return b.Count(ctx, columns...)
	},
	"min": aggregateCall("min"),
	"max": aggregateCall("max"),
	"sum": aggregateCall("sum"),
	"avg": aggregateCall("avg"),
	"insert": func(ctx context.Context, b *Builder, args []interface{}) (interface{}, error) {
		rows := make([]map[string]interface{}, 0, len(args))
		for _, arg := range args {
			row, ok := arg.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("insert expects map[string]interface{} rows, got %T", arg)
			}
			rows = append(rows, row)
		}
		return b.ToBase().Insert(ctx, rows...)
	},
	"insertGetId": func(ctx context.Context, b *Builder, args []interface{}) (interface{}, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("insertGetId expects the values to insert")
		}
		values, ok := args[0].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("insertGetId expects map[string]interface{} values, got %T", args[0])
		}
		sequence := ""
		if len(args) > 1 {
			sequence, _ = args[1].(string)
		}
		return b.ToBase().InsertGetID(ctx, values, sequence)
	},
}

func aggregateCall(function string) func(ctx context.Context, b *Builder, args []interface{}) (interface{}, error) {
	return func(ctx context.Context, b *Builder, args []interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s expects one column", function)
		}
		column, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("%s expects a column name, got %T", function, args[0])
		}
		return b.ToBase().Aggregate(ctx, function, column)
	}
}

func stringArgs(args []interface{}) ([]string, error) {
	values := make([]string, 0, len(args))
	for _, arg := range args {
		s, ok := arg.(string)
		if !ok {
			return nil, fmt.Errorf("expected string argument, got %T", arg)
		}
		values = append(values, s)
	}
	return values, nil
}

// arg the idx-th argument of method as a T
func arg[T any](method string, args []interface{}, idx int) (T, error) {
	var zero T
	if idx >= len(args) {
		return zero, fmt.Errorf("%s expects at least %d arguments, got %d", method, idx+1, len(args))
	}
	v, ok := args[idx].(T)
	if !ok {
		return zero, fmt.Errorf("%s expects a %T as argument %d, got %T", method, zero, idx+1, args[idx])
	}
	return v, nil
}

func columnArg(method string, args []interface{}) (interface{}, []interface{}, error) {
	if len(args) == 0 {
		return nil, nil, fmt.Errorf("%s expects a column", method)
	}
	return args[0], args[1:], nil
}

func rawArgs(method string, args []interface{}) (string, []interface{}, error) {
	sql, err := arg[string](method, args, 0)
	if err != nil {
		return "", nil, err
	}
	return sql, args[1:], nil
}

func columnValuesArgs(method string, args []interface{}) (string, interface{}, error) {
	column, err := arg[string](method, args, 0)
	if err != nil {
		return "", nil, err
	}
	if len(args) != 2 {
		return "", nil, fmt.Errorf("%s expects a column and values", method)
	}
	return column, args[1], nil
}

func fourStringArgs(method string, args []interface{}) (a, b, c, d string, err error) {
	values, err := stringArgs(args)
	if err != nil || len(values) != 4 {
		return "", "", "", "", fmt.Errorf("%s expects four string arguments", method)
	}
	return values[0], values[1], values[2], values[3], nil
}

func threeStringArgs(method string, args []interface{}) (a, b, c string, err error) {
	values, err := stringArgs(args)
	if err != nil || len(values) != 3 {
		return "", "", "", fmt.Errorf("%s expects three string arguments", method)
	}
	return values[0], values[1], values[2], nil
}

func intForward(method string, fn func(b *Builder, v int)) func(b *Builder, args []interface{}) error {
	return func(b *Builder, args []interface{}) error {
		v, err := arg[int](method, args, 0)
		if err != nil {
			return err
		}
		fn(b, v)
		return nil
	}
}

func conditionForward(method string, fn func(b *Builder, column interface{}, args ...interface{})) func(b *Builder, args []interface{}) error {
	return func(b *Builder, args []interface{}) error {
		column, rest, err := columnArg(method, args)
		if err != nil {
			return err
		}
		fn(b, column, rest...)
		return nil
	}
}

func rawForward(method string, fn func(b *Builder, sql string, vars ...interface{})) func(b *Builder, args []interface{}) error {
	return func(b *Builder, args []interface{}) error {
		sql, vars, err := rawArgs(method, args)
		if err != nil {
			return err
		}
		fn(b, sql, vars...)
		return nil
	}
}

func inForward(method string, fn func(b *Builder, column string, values interface{})) func(b *Builder, args []interface{}) error {
	return func(b *Builder, args []interface{}) error {
		column, values, err := columnValuesArgs(method, args)
		if err != nil {
			return err
		}
		fn(b, column, values)
		return nil
	}
}

func columnsForward(method string, fn func(b *Builder, columns ...string)) func(b *Builder, args []interface{}) error {
	return func(b *Builder, args []interface{}) error {
		columns, err := stringArgs(args)
		if err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
		fn(b, columns...)
		return nil
	}
}

func columnForward(method string, fn func(b *Builder, column string)) func(b *Builder, args []interface{}) error {
	return func(b *Builder, args []interface{}) error {
		column, err := arg[string](method, args, 0)
		if err != nil {
			return err
		}
		fn(b, column)
		return nil
	}
}

func joinForward(method string, fn func(b *Builder, table, first, operator, second string)) func(b *Builder, args []interface{}) error {
	return func(b *Builder, args []interface{}) error {
		table, first, operator, second, err := fourStringArgs(method, args)
		if err != nil {
			return err
		}
		fn(b, table, first, operator, second)
		return nil
	}
}

func compareColumnsForward(method string, fn func(b *Builder, first, operator, second string)) func(b *Builder, args []interface{}) error {
	return func(b *Builder, args []interface{}) error {
		first, operator, second, err := threeStringArgs(method, args)
		if err != nil {
			return err
		}
		fn(b, first, operator, second)
		return nil
	}
}

// forwarded the chainable query builder methods reachable by name, the builder itself is returned
var forwarded = map[string]func(b *Builder, args []interface{}) error{
	"select": func(b *Builder, args []interface{}) error {
		b.Select(args...)
		return nil
	},
	"addSelect": func(b *Builder, args []interface{}) error {
		b.AddSelect(args...)
		return nil
	},
	"selectRaw": rawForward("selectRaw", func(b *Builder, sql string, vars ...interface{}) { b.SelectRaw(sql, vars...) }),
	"distinct": func(b *Builder, _ []interface{}) error {
		b.Distinct()
		return nil
	},
	"from":       columnForward("from", func(b *Builder, table string) { b.From(table) }),
	"where":      conditionForward("where", func(b *Builder, column interface{}, args ...interface{}) { b.Where(column, args...) }),
	"orWhere":    conditionForward("orWhere", func(b *Builder, column interface{}, args ...interface{}) { b.OrWhere(column, args...) }),
	"whereRaw":   rawForward("whereRaw", func(b *Builder, sql string, vars ...interface{}) { b.WhereRaw(sql, vars...) }),
	"orWhereRaw": rawForward("orWhereRaw", func(b *Builder, sql string, vars ...interface{}) { b.OrWhereRaw(sql, vars...) }),
	"whereIn":    inForward("whereIn", func(b *Builder, column string, values interface{}) { b.WhereIn(column, values) }),
	"orWhereIn":  inForward("orWhereIn", func(b *Builder, column string, values interface{}) { b.OrWhereIn(column, values) }),
	"whereNotIn": inForward("whereNotIn", func(b *Builder, column string, values interface{}) { b.WhereNotIn(column, values) }),
	"orWhereNotIn": inForward("orWhereNotIn", func(b *Builder, column string, values interface{}) {
		b.query.OrWhereNotIn(column, values)
	}),
	"whereNull":      columnsForward("whereNull", func(b *Builder, columns ...string) { b.WhereNull(columns...) }),
	"orWhereNull":    columnForward("orWhereNull", func(b *Builder, column string) { b.OrWhereNull(column) }),
	"whereNotNull":   columnsForward("whereNotNull", func(b *Builder, columns ...string) { b.WhereNotNull(columns...) }),
	"orWhereNotNull": columnForward("orWhereNotNull", func(b *Builder, column string) { b.query.OrWhereNotNull(column) }),
	"whereColumn": compareColumnsForward("whereColumn", func(b *Builder, first, operator, second string) {
		b.WhereColumn(first, operator, second)
	}),
	"orWhereColumn": compareColumnsForward("orWhereColumn", func(b *Builder, first, operator, second string) {
		b.query.OrWhereColumn(first, operator, second)
	}),
	"whereBetween": func(b *Builder, args []interface{}) error {
		column, err := arg[string]("whereBetween", args, 0)
		if err != nil {
			return err
		}
		if len(args) != 3 {
			return fmt.Errorf("whereBetween expects a column and two bounds")
		}
		b.WhereBetween(column, args[1], args[2])
		return nil
	},
	"whereKey": func(b *Builder, args []interface{}) error {
		if len(args) != 1 {
			return fmt.Errorf("whereKey expects one id")
		}
		b.WhereKey(args[0])
		return nil
	},
	"whereKeyNot": func(b *Builder, args []interface{}) error {
		if len(args) != 1 {
			return fmt.Errorf("whereKeyNot expects one id")
		}
		b.WhereKeyNot(args[0])
		return nil
	},
	"join":      joinForward("join", func(b *Builder, table, first, operator, second string) { b.Join(table, first, operator, second) }),
	"leftJoin":  joinForward("leftJoin", func(b *Builder, table, first, operator, second string) { b.LeftJoin(table, first, operator, second) }),
	"rightJoin": joinForward("rightJoin", func(b *Builder, table, first, operator, second string) { b.query.RightJoin(table, first, operator, second) }),
	"orderBy": func(b *Builder, args []interface{}) error {
		values, err := stringArgs(args)
		if err != nil || len(values) == 0 {
			return fmt.Errorf("orderBy expects a column")
		}
		b.OrderBy(values[0], values[1:]...)
		return nil
	},
	"orderByDesc": columnForward("orderByDesc", func(b *Builder, column string) { b.OrderByDesc(column) }),
	"orderByRaw":  rawForward("orderByRaw", func(b *Builder, sql string, vars ...interface{}) { b.query.OrderByRaw(sql, vars...) }),
	"latest":      columnsForward("latest", func(b *Builder, columns ...string) { b.Latest(columns...) }),
	"oldest":      columnsForward("oldest", func(b *Builder, columns ...string) { b.Oldest(columns...) }),
	"reorder": func(b *Builder, _ []interface{}) error {
		b.Reorder()
		return nil
	},
	"groupBy":   columnsForward("groupBy", func(b *Builder, columns ...string) { b.GroupBy(columns...) }),
	"having":    conditionForward("having", func(b *Builder, column interface{}, args ...interface{}) { b.Having(column, args...) }),
	"orHaving":  conditionForward("orHaving", func(b *Builder, column interface{}, args ...interface{}) { b.query.OrHaving(column, args...) }),
	"havingRaw": rawForward("havingRaw", func(b *Builder, sql string, vars ...interface{}) { b.query.HavingRaw(sql, vars...) }),
	"limit":     intForward("limit", func(b *Builder, v int) { b.Limit(v) }),
	"take":      intForward("take", func(b *Builder, v int) { b.Take(v) }),
	"offset":    intForward("offset", func(b *Builder, v int) { b.Offset(v) }),
	"skip":      intForward("skip", func(b *Builder, v int) { b.Skip(v) }),
	"forPage": func(b *Builder, args []interface{}) error {
		page, err := arg[int]("forPage", args, 0)
		if err != nil {
			return err
		}
		perPage, err := arg[int]("forPage", args, 1)
		if err != nil {
			return err
		}
		b.ForPage(page, perPage)
		return nil
	},
	"with": columnsForward("with", func(b *Builder, relations ...string) { b.With(relations...) }),
}

// Call dispatches method by name: macros first (local, class, global), then local scopes,
// then the passthrough methods answered by the base query, then chainable methods.
// Anything else fails with a *MethodNotFoundError
func (b *Builder) Call(ctx context.Context, method string, args ...interface{}) (interface{}, error) {
	if fn, ok := b.macro(method); ok {
		return fn(ctx, b, args...)
	}

	if fn, ok := b.localScope(method); ok {
		return b.CallScope(fn, args...), nil
	}

	if fn, ok := passthru[method]; ok {
		return fn(ctx, b, args)
	}

	if fn, ok := forwarded[method]; ok {
		if err := fn(b, args); err != nil {
			return nil, err
		}
		return b, nil
	}

	return nil, &MethodNotFoundError{Class: b.model.class.Name, Method: method}
}
