package record

import (
	"context"
	"sort"
	"strings"

	"github.com/jinzhu/inflection"

	"gorm.io/record/clause"
	"gorm.io/record/query"
	"gorm.io/record/utils"
)

// pivotColumnPrefix alias prefix of pivot columns selected with related rows
const pivotColumnPrefix = "pivot_"

// BelongsToMany related rows joined through a pivot table. MorphToMany and MorphedByMany
// add a morph type column to the pivot table
type BelongsToMany struct {
	relation
	table           string
	foreignPivotKey string
	relatedPivotKey string
	parentKey       string
	relatedKey      string
	relationName    string

	pivotColumns   []string
	pivotWheres    []pivotWhere
	withTimestamps bool
	pivotCreatedAt string
	pivotUpdatedAt string

	// morphType pivot column holding morphClass, empty unless polymorphic
	morphType  string
	morphClass string
	inverse    bool
}

type pivotWhere struct {
	boolean clause.Boolean
	column  string
	args    []interface{}
}

// SyncResult keys attached, detached and updated by Sync
type SyncResult struct {
	Attached []interface{}
	Detached []interface{}
	Updated  []interface{}
}

// PivotRecords related keys mapped to the pivot attributes stored with them
type PivotRecords map[interface{}]map[string]interface{}

func (m *Model) newBelongsToMany(related *Class, k Keys, table string) *BelongsToMany {
	base := newRelation(m, related)
	return &BelongsToMany{
		relation:        base,
		table:           orDefault(k.Table, table),
		foreignPivotKey: orDefault(k.ForeignPivotKey, m.GetForeignKey()),
		relatedPivotKey: orDefault(k.RelatedPivotKey, base.related.GetForeignKey()),
		parentKey:       orDefault(k.ParentKey, m.GetKeyName()),
		relatedKey:      orDefault(k.RelatedKey, base.related.GetKeyName()),
		relationName:    orDefault(k.Relation, m.resolving),
	}
}

func (r *BelongsToMany) init(parent *Model) {
	r.performJoin(r.query, r.related.GetTable())
	if r.morphType != "" {
		r.query.Where(r.qualifyPivotColumn(r.morphType), r.morphClass)
	}
	if !parent.noConstraints {
		r.AddConstraints()
	}
}

func (r *BelongsToMany) performJoin(query *Builder, relatedTable string) {
	query.Join(r.table, qualifyWith(relatedTable, r.relatedKey), "=", r.qualifyPivotColumn(r.relatedPivotKey))
}

func (r *BelongsToMany) qualifyPivotColumn(column string) string {
	return qualifyWith(r.table, column)
}

// AddConstraints implements Relation
func (r *BelongsToMany) AddConstraints() {
	r.query.Where(r.qualifyPivotColumn(r.foreignPivotKey), r.parent.Get(r.parentKey))
}

// AddEagerConstraints implements Relation
func (r *BelongsToMany) AddEagerConstraints(models Collection) {
	r.query.WhereIn(r.qualifyPivotColumn(r.foreignPivotKey), r.keys(models, r.parentKey))
}

// InitRelation implements Relation
func (r *BelongsToMany) InitRelation(models Collection, name string) Collection {
	for _, model := range models {
		model.SetRelation(name, Collection{})
	}
	return models
}

// Match implements Relation, results are grouped by the parent key stored on their pivot
func (r *BelongsToMany) Match(models, results Collection, name string) Collection {
	dictionary := map[string]Collection{}
	for _, result := range results {
		if pivot := result.Related(pivotAccessor); pivot != nil {
			key := utils.ToStringKey(pivot.Get(r.foreignPivotKey))
			dictionary[key] = append(dictionary[key], result)
		}
	}

	for _, model := range models {
		if matched, ok := dictionary[utils.ToStringKey(model.Get(r.parentKey))]; ok {
			model.SetRelation(name, matched)
		}
	}
	return models
}

// GetResults implements Relation, a Collection
func (r *BelongsToMany) GetResults(ctx context.Context) (interface{}, error) {
	if r.parent.Get(r.parentKey) == nil {
		return Collection{}, nil
	}
	return r.get(ctx)
}

// GetEager implements Relation
func (r *BelongsToMany) GetEager(ctx context.Context) (Collection, error) {
	return r.get(ctx)
}

func (r *BelongsToMany) get(ctx context.Context) (Collection, error) {
	builder := r.query.ApplyScopes()

	var columns []interface{}
	if !builder.query.HasColumns() {
		columns = append(columns, r.related.GetTable()+".*")
	}
	for _, column := range r.aliasedPivotColumns() {
		columns = append(columns, column)
	}
	builder.AddSelect(columns...)

	models, err := builder.GetModels(ctx)
	if err != nil {
		return nil, err
	}
	r.hydratePivotRelation(models)

	if len(models) > 0 {
		return builder.EagerLoadRelations(ctx, models)
	}
	return models, nil
}

// aliasedPivotColumns pivot columns selected as pivot_<column>
func (r *BelongsToMany) aliasedPivotColumns() []string {
	columns := append([]string{r.foreignPivotKey, r.relatedPivotKey}, r.pivotColumns...)

	seen := map[string]bool{}
	aliased := make([]string, 0, len(columns))
	for _, column := range columns {
		if seen[column] {
			continue
		}
		seen[column] = true
		aliased = append(aliased, r.qualifyPivotColumn(column)+" as "+pivotColumnPrefix+column)
	}
	return aliased
}

// hydratePivotRelation moves pivot_ attributes of models into their pivot relation
func (r *BelongsToMany) hydratePivotRelation(models Collection) {
	for _, model := range models {
		values := map[string]interface{}{}
		for key, value := range model.attributes {
			if strings.HasPrefix(key, pivotColumnPrefix) {
				values[strings.TrimPrefix(key, pivotColumnPrefix)] = value
				delete(model.attributes, key)
				delete(model.original, key)
			}
		}
		model.SetRelation(pivotAccessor, r.newExistingPivot(values))
	}
}

// pivotClass class of the pivot rows, not registered for morph resolution
func (r *BelongsToMany) pivotClass() *Class {
	class := &Class{Name: "Pivot", Table: r.table, PrimaryKey: r.foreignPivotKey, KeyType: KeyString, pivot: true}
	if r.withTimestamps {
		class.Timestamps = true
		class.CreatedAtColumn = r.createdAt()
		class.UpdatedAtColumn = r.updatedAt()
	}
	return class
}

func (r *BelongsToMany) newExistingPivot(values map[string]interface{}) *Model {
	pivot := r.parent.db.New(r.pivotClass())
	pivot.ctx = r.parent.ctx
	pivot.SetRawAttributes(values, true)
	pivot.Exists = true
	return pivot
}

// WithPivot selects columns of the pivot table into the pivot relation
func (r *BelongsToMany) WithPivot(columns ...string) *BelongsToMany {
	r.pivotColumns = append(r.pivotColumns, columns...)
	return r
}

// WithTimestamps maintains created_at and updated_at on the pivot table
func (r *BelongsToMany) WithTimestamps(columns ...string) *BelongsToMany {
	r.withTimestamps = true
	if len(columns) > 0 {
		r.pivotCreatedAt = columns[0]
	}
	if len(columns) > 1 {
		r.pivotUpdatedAt = columns[1]
	}
	return r.WithPivot(r.createdAt(), r.updatedAt())
}

func (r *BelongsToMany) createdAt() string {
	return orDefault(r.pivotCreatedAt, orDefault(r.parent.GetCreatedAtColumn(), "created_at"))
}

func (r *BelongsToMany) updatedAt() string {
	return orDefault(r.pivotUpdatedAt, orDefault(r.parent.GetUpdatedAtColumn(), "updated_at"))
}

// WherePivot constrains the related rows, and the pivot rows Detach and Sync act on, by a
// pivot column
func (r *BelongsToMany) WherePivot(column string, args ...interface{}) *BelongsToMany {
	r.pivotWheres = append(r.pivotWheres, pivotWhere{boolean: clause.BooleanAnd, column: column, args: args})
	r.query.Where(r.qualifyPivotColumn(column), args...)
	return r
}

// OrWherePivot OR form of WherePivot
func (r *BelongsToMany) OrWherePivot(column string, args ...interface{}) *BelongsToMany {
	r.pivotWheres = append(r.pivotWheres, pivotWhere{boolean: clause.BooleanOr, column: column, args: args})
	r.query.OrWhere(r.qualifyPivotColumn(column), args...)
	return r
}

// newPivotQuery query on the pivot rows of the parent
func (r *BelongsToMany) newPivotQuery() *query.Builder {
	q := query.New(r.parent.db.conn).From(r.table).Where(r.foreignPivotKey, r.parent.Get(r.parentKey))
	if r.morphType != "" {
		q.Where(r.morphType, r.morphClass)
	}
	for _, where := range r.pivotWheres {
		if where.boolean == clause.BooleanOr {
			q.OrWhere(where.column, where.args...)
		} else {
			q.Where(where.column, where.args...)
		}
	}
	return q
}

// AllRelatedIDs related keys stored in the pivot rows of the parent
func (r *BelongsToMany) AllRelatedIDs(ctx context.Context) ([]interface{}, error) {
	return r.newPivotQuery().Pluck(ctx, r.relatedPivotKey)
}

type pivotRecord struct {
	id    interface{}
	attrs map[string]interface{}
}

// parseIDs flattens models, collections, slices, PivotRecords and single keys
func (r *BelongsToMany) parseIDs(ids interface{}) []pivotRecord {
	switch v := ids.(type) {
	case nil:
		return nil
	case *Model:
		return []pivotRecord{{id: v.Get(r.relatedKey)}}
	case Collection:
		records := make([]pivotRecord, 0, len(v))
		for _, model := range v {
			records = append(records, pivotRecord{id: model.Get(r.relatedKey)})
		}
		return records
	case PivotRecords:
		records := make([]pivotRecord, 0, len(v))
		for id, attrs := range v {
			records = append(records, pivotRecord{id: id, attrs: attrs})
		}
		sort.Slice(records, func(i, j int) bool {
			return utils.ToStringKey(records[i].id) < utils.ToStringKey(records[j].id)
		})
		return records
	}

	if list, ok := keyList(ids); ok {
		records := make([]pivotRecord, 0, len(list))
		for _, id := range list {
			records = append(records, pivotRecord{id: id})
		}
		return records
	}
	return []pivotRecord{{id: ids}}
}

func (r *BelongsToMany) pivotRow(id interface{}, attrs ...map[string]interface{}) map[string]interface{} {
	row := map[string]interface{}{
		r.foreignPivotKey: r.parent.Get(r.parentKey),
		r.relatedPivotKey: id,
	}
	if r.morphType != "" {
		row[r.morphType] = r.morphClass
	}
	if r.withTimestamps {
		now := r.parent.FreshTimestampString()
		row[r.createdAt()] = now
		row[r.updatedAt()] = now
	}
	for _, a := range attrs {
		for key, value := range a {
			row[key] = value
		}
	}
	return row
}

// Attach inserts pivot rows linking the parent to ids, attrs are stored on every row
func (r *BelongsToMany) Attach(ctx context.Context, ids interface{}, attrs ...map[string]interface{}) error {
	records := r.parseIDs(ids)
	if len(records) == 0 {
		return nil
	}

	rows := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		rows = append(rows, r.pivotRow(record.id, append([]map[string]interface{}{record.attrs}, attrs...)...))
	}
	if _, err := r.newPivotQuery().Insert(ctx, rows...); err != nil {
		return err
	}
	return r.touchIfTouching(ctx)
}

// Detach deletes the pivot rows of ids, every pivot row of the parent when ids is nil
func (r *BelongsToMany) Detach(ctx context.Context, ids interface{}) (int64, error) {
	q := r.newPivotQuery()
	if ids != nil {
		records := r.parseIDs(ids)
		if len(records) == 0 {
			return 0, nil
		}
		keys := make([]interface{}, 0, len(records))
		for _, record := range records {
			keys = append(keys, record.id)
		}
		q.WhereIn(r.relatedPivotKey, keys)
	}

	affected, err := q.Delete(ctx)
	if err != nil {
		return affected, err
	}
	return affected, r.touchIfTouching(ctx)
}

// UpdateExistingPivot updates the pivot row of id
func (r *BelongsToMany) UpdateExistingPivot(ctx context.Context, id interface{}, attrs map[string]interface{}) (int64, error) {
	values := copyAttributes(attrs)
	if r.withTimestamps {
		if _, ok := values[r.updatedAt()]; !ok {
			values[r.updatedAt()] = r.parent.FreshTimestampString()
		}
	}

	affected, err := r.newPivotQuery().Where(r.relatedPivotKey, id).Update(ctx, values)
	if err != nil {
		return affected, err
	}
	return affected, r.touchIfTouching(ctx)
}

// Sync makes ids the exact set of related keys, detaching the others. PivotRecords attributes
// update the pivot rows of keys attached already
func (r *BelongsToMany) Sync(ctx context.Context, ids interface{}) (*SyncResult, error) {
	return r.sync(ctx, ids, true)
}

// SyncWithoutDetaching attaches the missing ids, keeping the other pivot rows
func (r *BelongsToMany) SyncWithoutDetaching(ctx context.Context, ids interface{}) (*SyncResult, error) {
	return r.sync(ctx, ids, false)
}

func (r *BelongsToMany) sync(ctx context.Context, ids interface{}, detaching bool) (*SyncResult, error) {
	result := &SyncResult{}

	current, err := r.AllRelatedIDs(ctx)
	if err != nil {
		return nil, err
	}
	currentKeys := map[string]bool{}
	for _, id := range current {
		currentKeys[utils.ToStringKey(id)] = true
	}

	records := r.parseIDs(ids)
	wanted := map[string]bool{}
	for _, record := range records {
		wanted[utils.ToStringKey(record.id)] = true
	}

	if detaching {
		for _, id := range current {
			if !wanted[utils.ToStringKey(id)] {
				result.Detached = append(result.Detached, id)
			}
		}
		if len(result.Detached) > 0 {
			if _, err := r.Detach(ctx, result.Detached); err != nil {
				return nil, err
			}
		}
	}

	for _, record := range records {
		if !currentKeys[utils.ToStringKey(record.id)] {
			if err := r.Attach(ctx, record.id, record.attrs); err != nil {
				return nil, err
			}
			result.Attached = append(result.Attached, record.id)
			currentKeys[utils.ToStringKey(record.id)] = true
		} else if len(record.attrs) > 0 {
			affected, err := r.UpdateExistingPivot(ctx, record.id, record.attrs)
			if err != nil {
				return nil, err
			}
			if affected > 0 {
				result.Updated = append(result.Updated, record.id)
			}
		}
	}
	return result, nil
}

// Touch implements Relation, updated_at of every related row is updated
func (r *BelongsToMany) Touch(ctx context.Context) error {
	if r.related.class.IsIgnoringTouch() {
		return nil
	}

	ids, err := r.AllRelatedIDs(ctx)
	if err != nil || len(ids) == 0 {
		return err
	}

	_, err = r.related.newQueryWithoutRelationships().WhereKey(ids).Update(ctx, map[string]interface{}{
		r.related.GetUpdatedAtColumn(): r.related.FreshTimestampString(),
	})
	return err
}

// touchIfTouching touches the parent when the related class touches it back, and the related
// rows when the parent touches this relation
func (r *BelongsToMany) touchIfTouching(ctx context.Context) error {
	if r.related.Touches(r.guessInverseRelation()) {
		if _, err := r.parent.Touch(ctx); err != nil {
			return err
		}
	}
	if r.parent.Touches(r.relationName) {
		return r.Touch(ctx)
	}
	return nil
}

// guessInverseRelation name the related class likely declares this relation under, `users`
func (r *BelongsToMany) guessInverseRelation() string {
	name := inflection.Plural(r.parent.class.Name)
	if name == "" {
		return name
	}
	return strings.ToLower(name[:1]) + name[1:]
}

// ExistenceQuery implements Relation
func (r *BelongsToMany) ExistenceQuery(query, parent *Builder, columns interface{}) *Builder {
	relatedTable := r.related.GetTable()
	if query.model.GetTable() == parent.model.GetTable() {
		relatedTable = newRelationCountHash()
		query.From(r.related.GetTable() + " as " + relatedTable)
	}

	r.performJoin(query, relatedTable)
	return query.Select(columns).WhereColumn(r.parent.QualifyColumn(r.parentKey), "=", r.qualifyPivotColumn(r.foreignPivotKey))
}

// GetTable pivot table
func (r *BelongsToMany) GetTable() string {
	return r.table
}

// GetForeignPivotKeyName pivot column pointing to the parent
func (r *BelongsToMany) GetForeignPivotKeyName() string {
	return r.foreignPivotKey
}

// GetRelatedPivotKeyName pivot column pointing to the related rows
func (r *BelongsToMany) GetRelatedPivotKeyName() string {
	return r.relatedPivotKey
}

// GetMorphType pivot morph type column, empty unless polymorphic
func (r *BelongsToMany) GetMorphType() string {
	return r.morphType
}

// GetMorphClass type stored in the pivot morph type column
func (r *BelongsToMany) GetMorphClass() string {
	return r.morphClass
}

// IsInverse reports whether the related rows are the polymorphic side
func (r *BelongsToMany) IsInverse() bool {
	return r.inverse
}
