package record

import (
	"context"
	"strings"

	"gorm.io/record/utils"
)

// EagerConstraint constrains the query of an eager loaded relation
type EagerConstraint func(b *Builder)

// EagerLoad a relation path to eager load and its constraint
type EagerLoad struct {
	Name       string
	Constraint EagerConstraint
}

func noConstraint(*Builder) {}

// With eager loads relations. `a.b.c` loads a, a.b and a.b.c; `posts:id,title` selects
// only the listed columns of posts
func (b *Builder) With(relations ...string) *Builder {
	for _, name := range relations {
		if name == "" {
			continue
		}

		constraint := EagerConstraint(noConstraint)
		if idx := strings.IndexByte(name, ':'); idx >= 0 {
			name, constraint = name[:idx], selectConstraint(name[idx+1:])
		}
		b.addEagerLoad(name, constraint)
	}
	return b
}

// WithFunc eager loads relation with constraint
func (b *Builder) WithFunc(relation string, constraint EagerConstraint) *Builder {
	if constraint == nil {
		constraint = noConstraint
	}
	b.addEagerLoad(relation, constraint)
	return b
}

// selectConstraint restricts the columns of the relation to the identifiers in columns,
// unqualified columns are qualified with the related table
func selectConstraint(columns string) EagerConstraint {
	return func(b *Builder) {
		var selected []interface{}
		for _, column := range strings.FieldsFunc(columns, utils.IsValidDBNameChar) {
			selected = append(selected, b.QualifyColumn(column))
		}
		b.Select(selected...)
	}
}

// addEagerLoad registers name with no-op entries for each missing parent path
func (b *Builder) addEagerLoad(name string, constraint EagerConstraint) {
	segments := strings.Split(name, ".")
	for idx := 1; idx < len(segments); idx++ {
		parent := strings.Join(segments[:idx], ".")
		if b.eagerLoadIndex(parent) < 0 {
			b.eagerLoad = append(b.eagerLoad, EagerLoad{Name: parent, Constraint: noConstraint})
		}
	}

	if idx := b.eagerLoadIndex(name); idx >= 0 {
		b.eagerLoad[idx].Constraint = constraint
	} else {
		b.eagerLoad = append(b.eagerLoad, EagerLoad{Name: name, Constraint: constraint})
	}
}

func (b *Builder) eagerLoadIndex(name string) int {
	for idx, load := range b.eagerLoad {
		if load.Name == name {
			return idx
		}
	}
	return -1
}

// Without stops eager loading relations
func (b *Builder) Without(relations ...string) *Builder {
	loads := b.eagerLoad[:0:0]
	for _, load := range b.eagerLoad {
		remove := false
		for _, name := range relations {
			if load.Name == name {
				remove = true
				break
			}
		}
		if !remove {
			loads = append(loads, load)
		}
	}
	b.eagerLoad = loads
	return b
}

// EagerLoads registered eager loads in registration order
func (b *Builder) EagerLoads() []EagerLoad {
	return append([]EagerLoad(nil), b.eagerLoad...)
}

// SetEagerLoads replaces the eager loads
func (b *Builder) SetEagerLoads(loads []EagerLoad) *Builder {
	b.eagerLoad = append([]EagerLoad(nil), loads...)
	return b
}

// EagerLoadRelations loads every top level eager load onto models, in registration order
func (b *Builder) EagerLoadRelations(ctx context.Context, models Collection) (Collection, error) {
	for _, load := range b.eagerLoad {
		if strings.Contains(load.Name, ".") {
			continue
		}

		var err error
		if models, err = b.EagerLoadRelation(ctx, models, load.Name, load.Constraint); err != nil {
			return models, err
		}
	}
	return models, nil
}

// EagerLoadRelation loads relation onto models with one query
func (b *Builder) EagerLoadRelation(ctx context.Context, models Collection, name string, constraint EagerConstraint) (Collection, error) {
	relation, err := b.GetRelation(name)
	if err != nil {
		return models, err
	}

	relation.AddEagerConstraints(models)
	if constraint != nil {
		constraint(relation.GetQuery())
	}

	models = relation.InitRelation(models, name)
	results, err := relation.GetEager(ctx)
	if err != nil {
		return models, err
	}
	return relation.Match(models, results, name), nil
}

// GetRelation resolves name without its single parent constraints, nested eager loads
// are forwarded to the relation query
func (b *Builder) GetRelation(name string) (Relation, error) {
	relation, err := b.model.relationWithoutConstraints(name)
	if err != nil {
		return nil, err
	}

	for _, nested := range b.relationsNestedUnder(name) {
		relation.GetQuery().WithFunc(nested.Name, nested.Constraint)
	}
	return relation, nil
}

// relationsNestedUnder eager loads below relation with the relation prefix stripped
func (b *Builder) relationsNestedUnder(relation string) []EagerLoad {
	var nested []EagerLoad
	prefix := relation + "."
	for _, load := range b.eagerLoad {
		if strings.HasPrefix(load.Name, prefix) {
			nested = append(nested, EagerLoad{Name: load.Name[len(prefix):], Constraint: load.Constraint})
		}
	}
	return nested
}
