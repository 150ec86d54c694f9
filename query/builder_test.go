package query_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gorm.io/record/clause"
	"gorm.io/record/dialects/mysql"
	"gorm.io/record/dialects/sqlite"
	"gorm.io/record/query"
)

func TestWhereVariants(t *testing.T) {
	conn := newConn(sqlite.Dialector{})

	tests := []struct {
		name  string
		build func(q *query.Builder)
		sql   string
		vars  []interface{}
	}{
		{"empty in", func(q *query.Builder) { q.WhereIn("id", []int{}) }, "SELECT * FROM `t` WHERE `id` IN (NULL)", nil},
		{"not in", func(q *query.Builder) { q.WhereNotIn("id", []int{1, 2}) }, "SELECT * FROM `t` WHERE `id` NOT IN (?,?)", []interface{}{1, 2}},
		{"nil equals", func(q *query.Builder) { q.Where("parent_id", nil) }, "SELECT * FROM `t` WHERE `parent_id` IS NULL", nil},
		{"not null", func(q *query.Builder) { q.Where("a", 1).OrWhereNotNull("b") }, "SELECT * FROM `t` WHERE `a` = ? OR `b` IS NOT NULL", []interface{}{1}},
		{"between", func(q *query.Builder) { q.WhereBetween("age", 18, 30) }, "SELECT * FROM `t` WHERE `age` BETWEEN ? AND ?", []interface{}{18, 30}},
		{"map", func(q *query.Builder) { q.Where(map[string]interface{}{"b": 2, "a": 1}) }, "SELECT * FROM `t` WHERE (`a` = ? AND `b` = ?)", []interface{}{1, 2}},
		{"raw", func(q *query.Builder) { q.WhereRaw("lower(name) = ?", "jo").OrWhereRaw("id = ?", 3) }, "SELECT * FROM `t` WHERE lower(name) = ? OR id = ?", []interface{}{"jo", 3}},
		{"expression", func(q *query.Builder) { q.Where(clause.Gte{Column: "score", Value: 5}) }, "SELECT * FROM `t` WHERE `score` >= ?", []interface{}{5}},
		{"distinct", func(q *query.Builder) { q.Distinct().Select("kind") }, "SELECT DISTINCT `kind` FROM `t`", nil},
		{"page", func(q *query.Builder) { q.ForPage(3, 15) }, "SELECT * FROM `t` LIMIT 15 OFFSET 30", nil},
		{"latest", func(q *query.Builder) { q.Latest("created_at").Reorder().Oldest("id") }, "SELECT * FROM `t` ORDER BY `id`", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := query.New(conn).From("t")
			tt.build(q)
			require.NoError(t, q.Error)

			sql, vars := q.Compile()
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.vars, vars)
		})
	}
}

func TestInvalidOperator(t *testing.T) {
	conn := newConn(sqlite.Dialector{})

	q := query.New(conn).From("t").Where("a", "=>", 1)
	assert.ErrorIs(t, q.Error, query.ErrInvalidOperator)

	_, err := q.Get(context.Background())
	assert.ErrorIs(t, err, query.ErrInvalidOperator)
	conn.AssertNotCalled(t, "Select", mock.Anything, mock.Anything, mock.Anything)
}

func TestForPageAfterID(t *testing.T) {
	conn := newConn(sqlite.Dialector{})

	q := query.New(conn).From("users").OrderBy("id", "desc").OrderBy("name").ForPageAfterID(15, 30, "id")

	sql, vars := q.Compile()
	assert.Equal(t, "SELECT * FROM `users` WHERE `id` > ? ORDER BY `name`,`id` LIMIT 15", sql)
	assert.Equal(t, []interface{}{30}, vars)
}

func TestForPageAfterIDGroupsOrConditions(t *testing.T) {
	conn := newConn(sqlite.Dialector{})

	q := query.New(conn).From("users").Where("name", "a").OrWhere("name", "b").ForPageAfterID(2, 4, "id")

	sql, vars := q.Compile()
	assert.Equal(t, "SELECT * FROM `users` WHERE (`name` = ? OR `name` = ?) AND `id` > ? ORDER BY `id` LIMIT 2", sql)
	assert.Equal(t, []interface{}{"a", "b", 4}, vars)

	q = query.New(conn).From("users").Where("name", "a").Where("votes", ">", 1).ForPageAfterID(2, 4, "id")
	sql, _ = q.Compile()
	assert.Equal(t, "SELECT * FROM `users` WHERE `name` = ? AND `votes` > ? AND `id` > ? ORDER BY `id` LIMIT 2", sql)
}

func TestCloneIsIndependent(t *testing.T) {
	conn := newConn(sqlite.Dialector{})

	q := query.New(conn).From("users").Where("a", 1).Limit(5)
	c := q.Clone().Where("b", 2).Limit(1)

	assert.Equal(t, "SELECT * FROM `users` WHERE `a` = ? LIMIT 5", q.ToSQL())
	assert.Equal(t, "SELECT * FROM `users` WHERE `a` = ? AND `b` = ? LIMIT 1", c.ToSQL())
	assert.Equal(t, []interface{}{1, 2}, c.GetBindings())
}

func TestCount(t *testing.T) {
	ctx := context.Background()
	conn := newConn(sqlite.Dialector{})

	conn.On("Select", ctx, "SELECT COUNT(*) AS aggregate FROM `users` WHERE `active` = ?", []interface{}{true}).
		Return([]map[string]interface{}{{"aggregate": int64(3)}}, nil).Once()
	conn.On("Select", ctx, "SELECT COUNT(*) AS aggregate FROM (SELECT * FROM `users` GROUP BY `role`) AS `aggregate_table`", []interface{}(nil)).
		Return([]map[string]interface{}{{"aggregate": "2"}}, nil).Once()

	count, err := query.New(conn).From("users").Where("active", true).OrderBy("id").Limit(3).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	count, err = query.New(conn).From("users").GroupBy("role").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	conn.AssertExpectations(t)
}

func TestMaxQuotesDottedColumn(t *testing.T) {
	ctx := context.Background()
	conn := newConn(mysql.Dialector{})

	conn.On("Select", ctx, "SELECT MAX(`posts`.`votes`) AS aggregate FROM `posts`", []interface{}(nil)).
		Return([]map[string]interface{}{{"aggregate": int64(9)}}, nil)

	max, err := query.New(conn).From("posts").Max(ctx, "posts.votes")
	require.NoError(t, err)
	assert.Equal(t, int64(9), max)
}

func TestFirstValueAndPluck(t *testing.T) {
	ctx := context.Background()
	conn := newConn(sqlite.Dialector{})

	conn.On("Select", ctx, "SELECT * FROM `users` WHERE `id` = ? LIMIT 1", []interface{}{1}).
		Return([]map[string]interface{}{{"id": int64(1), "name": "jo"}}, nil)
	conn.On("Select", ctx, "SELECT `users`.`name` FROM `users` WHERE `id` = ? LIMIT 1", []interface{}{1}).
		Return([]map[string]interface{}{{"name": "jo"}}, nil)
	conn.On("Select", ctx, "SELECT `name` AS `n` FROM `users`", []interface{}(nil)).
		Return([]map[string]interface{}{{"n": "jo"}, {"n": "al"}}, nil)
	conn.On("Select", ctx, "SELECT * FROM `users` WHERE `id` = ? LIMIT 1", []interface{}{2}).
		Return([]map[string]interface{}{}, nil)

	row, err := query.New(conn).From("users").Where("id", 1).First(ctx)
	require.NoError(t, err)
	assert.Equal(t, "jo", row["name"])

	value, err := query.New(conn).From("users").Where("id", 1).Value(ctx, "users.name")
	require.NoError(t, err)
	assert.Equal(t, "jo", value)

	names, err := query.New(conn).From("users").Pluck(ctx, "name as n")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"jo", "al"}, names)

	row, err = query.New(conn).From("users").Where("id", 2).First(ctx)
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	conn := newConn(sqlite.Dialector{})

	conn.On("Select", ctx, "SELECT EXISTS(SELECT * FROM `users` WHERE `id` = ?) AS `exists`", []interface{}{1}).
		Return([]map[string]interface{}{{"exists": int64(1)}}, nil)

	exists, err := query.New(conn).From("users").Where("id", 1).Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	missing, err := query.New(conn).From("users").Where("id", 1).DoesntExist(ctx)
	require.NoError(t, err)
	assert.False(t, missing)
}

func TestWrites(t *testing.T) {
	ctx := context.Background()
	conn := newConn(sqlite.Dialector{})

	conn.On("Affecting", ctx, "INSERT INTO `users` (`name`) VALUES (?),(?)", []interface{}{"a", "b"}).Return(int64(2), nil)
	conn.On("Affecting", ctx, "UPDATE `users` SET `updated_at` = ?,`votes` = `votes` + ? WHERE `id` = ?", []interface{}{"now", 2, 7}).Return(int64(1), nil)
	conn.On("Affecting", ctx, "DELETE FROM `users` WHERE `id` = ?", []interface{}{7}).Return(int64(1), nil)
	conn.On("InsertGetID", ctx, "INSERT INTO `users` (`name`) VALUES (?)", []interface{}{"c"}, "id").Return(int64(8), nil)

	users := query.New(conn).From("users")

	affected, err := users.Insert(ctx, map[string]interface{}{"name": "a"}, map[string]interface{}{"name": "b"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	affected, err = users.Insert(ctx)
	require.NoError(t, err)
	assert.Zero(t, affected)

	id, err := users.InsertGetID(ctx, map[string]interface{}{"name": "c"}, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(8), id)

	byID := query.New(conn).From("users").Where("id", 7)
	affected, err = byID.Increment(ctx, "votes", 2, map[string]interface{}{"updated_at": "now"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	_, err = byID.Decrement(ctx, "votes", "many")
	assert.ErrorContains(t, err, "non-numeric value")

	affected, err = byID.Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	conn.AssertExpectations(t)
}
