package database_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm.io/record/database"
	"gorm.io/record/dialects/sqlite"
	"gorm.io/record/logger"
)

func openSQLite(t *testing.T, opts ...database.Option) (*database.Connection, string) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db")
	opts = append([]database.Option{
		database.WithLogger(logger.Discard),
		database.WithPoolSetup(func(db *sql.DB) { db.SetMaxOpenConns(1) }),
	}, opts...)

	conn, err := database.Open(sqlite.Open(dsn), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.Statement(context.Background(), "CREATE TABLE items (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT, qty INTEGER DEFAULT 0)"))
	return conn, dsn
}

func names(t *testing.T, conn *database.Connection) []interface{} {
	t.Helper()

	values, err := conn.Query("items").OrderBy("id").Pluck(context.Background(), "name")
	require.NoError(t, err)
	return values
}

func TestStatements(t *testing.T) {
	ctx := context.Background()
	conn, _ := openSQLite(t)

	id, err := conn.InsertGetID(ctx, "INSERT INTO items (name) VALUES (?)", []interface{}{"apple"}, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	affected, err := conn.Affecting(ctx, "UPDATE items SET qty = ? WHERE name = ?", []interface{}{3, "apple"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	rows, err := conn.Select(ctx, "SELECT name, qty FROM items WHERE id = ?", []interface{}{id})
	require.NoError(t, err)
	assert.Equal(t, []map[string]interface{}{{"name": "apple", "qty": int64(3)}}, rows)

	rows, err = conn.Select(ctx, "SELECT name FROM items WHERE id = ?", []interface{}{42})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestQueryErrorCarriesStatement(t *testing.T) {
	conn, _ := openSQLite(t)

	_, err := conn.Select(context.Background(), "SELECT * FROM missing WHERE id = ?", []interface{}{1})

	var queryErr *database.QueryError
	require.ErrorAs(t, err, &queryErr)
	assert.Equal(t, "SELECT * FROM missing WHERE id = ?", queryErr.SQL)
	assert.Equal(t, []interface{}{1}, queryErr.Bindings)
	assert.Contains(t, err.Error(), "(SQL: SELECT * FROM missing WHERE id = ?)")
}

func TestStatementCache(t *testing.T) {
	ctx := context.Background()
	conn, _ := openSQLite(t, database.WithStatementCache(10, 0))

	for _, name := range []string{"a", "b"} {
		require.NoError(t, conn.Statement(ctx, "INSERT INTO items (name) VALUES (?)", name))
	}

	err := conn.Transaction(ctx, func(ctx context.Context) error {
		return conn.Statement(ctx, "INSERT INTO items (name) VALUES (?)", "c")
	})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "b", "c"}, names(t, conn))
}

func TestTransactionCommits(t *testing.T) {
	ctx := context.Background()
	conn, _ := openSQLite(t)

	var events []string
	conn.OnTransaction(func(_ context.Context, event database.TransactionEvent, level int) {
		events = append(events, string(event)+":"+string(rune('0'+level)))
	})

	err := conn.Transaction(ctx, func(ctx context.Context) error {
		assert.Equal(t, 1, conn.TransactionLevel())
		return conn.Statement(ctx, "INSERT INTO items (name) VALUES (?)", "apple")
	})
	require.NoError(t, err)

	assert.Equal(t, 0, conn.TransactionLevel())
	assert.Equal(t, []interface{}{"apple"}, names(t, conn))
	assert.Equal(t, []string{"began:1", "committed:0"}, events)
}

func TestTransactionResult(t *testing.T) {
	conn, _ := openSQLite(t)

	id, err := database.TransactionResult(context.Background(), conn, func(ctx context.Context) (interface{}, error) {
		return conn.InsertGetID(ctx, "INSERT INTO items (name) VALUES (?)", []interface{}{"pear"}, "id")
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestNestedTransactionRollsBackToSavepoint(t *testing.T) {
	ctx := context.Background()
	conn, _ := openSQLite(t)

	var events []string
	conn.OnTransaction(func(_ context.Context, event database.TransactionEvent, level int) {
		events = append(events, string(event)+":"+string(rune('0'+level)))
	})

	err := conn.Transaction(ctx, func(ctx context.Context) error {
		require.NoError(t, conn.Statement(ctx, "INSERT INTO items (name) VALUES (?)", "outer"))

		inner := conn.Transaction(ctx, func(ctx context.Context) error {
			assert.Equal(t, 2, conn.TransactionLevel())
			require.NoError(t, conn.Statement(ctx, "INSERT INTO items (name) VALUES (?)", "inner"))
			return assert.AnError
		})
		assert.ErrorIs(t, inner, assert.AnError)
		assert.Equal(t, 1, conn.TransactionLevel())
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []interface{}{"outer"}, names(t, conn))
	assert.Equal(t, []string{"began:1", "began:2", "rolled back:1", "committed:0"}, events)
}

func TestRollBackToLevel(t *testing.T) {
	ctx := context.Background()
	conn, _ := openSQLite(t)

	require.NoError(t, conn.BeginTransaction(ctx))
	require.NoError(t, conn.Statement(ctx, "INSERT INTO items (name) VALUES ('one')"))
	require.NoError(t, conn.BeginTransaction(ctx))
	require.NoError(t, conn.BeginTransaction(ctx))
	assert.Equal(t, 3, conn.TransactionLevel())

	// out of range levels are ignored
	require.NoError(t, conn.RollBack(ctx, 3))
	require.NoError(t, conn.RollBack(ctx, -1))
	assert.Equal(t, 3, conn.TransactionLevel())

	require.NoError(t, conn.RollBack(ctx, 0))
	assert.Equal(t, 0, conn.TransactionLevel())
	assert.Empty(t, names(t, conn))

	require.NoError(t, conn.RollBack(ctx))
	assert.Equal(t, 0, conn.TransactionLevel())
}

func TestDeadlockIsRetried(t *testing.T) {
	ctx := context.Background()
	conn, _ := openSQLite(t)

	calls := 0
	err := conn.Transaction(ctx, func(ctx context.Context) error {
		calls++
		require.NoError(t, conn.Statement(ctx, "INSERT INTO items (name) VALUES (?)", "attempt"))
		if calls < 3 {
			return database.ErrDeadlock
		}
		return nil
	}, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, calls)
	assert.Equal(t, []interface{}{"attempt"}, names(t, conn))
}

func TestDeadlockAttemptsExhausted(t *testing.T) {
	ctx := context.Background()
	conn, _ := openSQLite(t)

	calls := 0
	err := conn.Transaction(ctx, func(ctx context.Context) error {
		calls++
		return database.ErrDeadlock
	}, 2)

	assert.ErrorIs(t, err, database.ErrDeadlock)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, conn.TransactionLevel())
}

func TestNestedDeadlockIsNotRetried(t *testing.T) {
	ctx := context.Background()
	conn, _ := openSQLite(t)

	outer, inner := 0, 0
	err := conn.Transaction(ctx, func(ctx context.Context) error {
		outer++
		err := conn.Transaction(ctx, func(ctx context.Context) error {
			inner++
			return database.ErrDeadlock
		}, 5)
		assert.Equal(t, 1, conn.TransactionLevel())
		return err
	}, 2)

	assert.ErrorIs(t, err, database.ErrDeadlock)
	assert.Equal(t, 2, outer)
	assert.Equal(t, 2, inner)
	assert.Equal(t, 0, conn.TransactionLevel())
}

func TestPanicRollsBack(t *testing.T) {
	ctx := context.Background()
	conn, _ := openSQLite(t)

	assert.PanicsWithValue(t, "boom", func() {
		_ = conn.Transaction(ctx, func(ctx context.Context) error {
			require.NoError(t, conn.Statement(ctx, "INSERT INTO items (name) VALUES ('lost')"))
			panic("boom")
		})
	})

	assert.Equal(t, 0, conn.TransactionLevel())
	assert.Empty(t, names(t, conn))
}

func TestReconnectsAfterLostConnection(t *testing.T) {
	ctx := context.Background()

	reconnects := 0
	var dsn string
	conn, dsn := openSQLite(t, database.WithReconnector(func(context.Context) (*sql.DB, error) {
		reconnects++
		return sqlite.Open(dsn).Open()
	}))
	require.NoError(t, conn.Statement(ctx, "INSERT INTO items (name) VALUES ('kept')"))

	require.NoError(t, conn.DB().Close())

	assert.Equal(t, []interface{}{"kept"}, names(t, conn))
	assert.Equal(t, 1, reconnects)
}

func TestLostConnectionInsideTransactionIsNotRetried(t *testing.T) {
	ctx := context.Background()
	conn, _ := openSQLite(t, database.WithReconnector(func(context.Context) (*sql.DB, error) {
		t.Fatal("reconnected inside a transaction")
		return nil, nil
	}))

	err := conn.Transaction(ctx, func(ctx context.Context) error {
		return &database.QueryError{SQL: "SELECT 1", Err: database.ErrLostConnection}
	})
	assert.ErrorIs(t, err, database.ErrLostConnection)
	assert.Equal(t, 0, conn.TransactionLevel())
}
