package database

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"gorm.io/record/internal/stmt_store"
	"gorm.io/record/logger"
	"gorm.io/record/query"
)

var defaultWriter = log.New(os.Stdout, "\r\n", log.LstdFlags)

// Option configures a Connection
type Option func(*Connection)

// WithLogger sets the logger tracing statements and transactions
func WithLogger(l logger.Interface) Option {
	return func(c *Connection) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStatementCache prepares statements once and keeps at most size of them for ttl
func WithStatementCache(size int, ttl time.Duration) Option {
	return func(c *Connection) {
		c.stmts = stmt_store.New(size, ttl)
	}
}

// WithReconnector replaces how a lost connection pool is reopened
func WithReconnector(fn func(ctx context.Context) (*sql.DB, error)) Option {
	return func(c *Connection) {
		c.reconnector = fn
	}
}

// WithPoolSetup runs fn on every pool opened by the connection
func WithPoolSetup(fn func(*sql.DB)) Option {
	return func(c *Connection) {
		c.poolSetup = fn
	}
}

// executor what statements run on, *sql.DB or *sql.Tx
type executor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Connection a database connection with a nestable transaction
type Connection struct {
	dialector   Dialector
	logger      logger.Interface
	stmts       *stmt_store.Store
	reconnector func(ctx context.Context) (*sql.DB, error)
	poolSetup   func(*sql.DB)

	mu           sync.Mutex
	db           *sql.DB
	tx           *sql.Tx
	transactions int
	listeners    []TransactionListener
}

// Open opens the dialector's pool
func Open(dialector Dialector, opts ...Option) (*Connection, error) {
	c := &Connection{dialector: dialector, logger: logger.Default}
	for _, opt := range opts {
		opt(c)
	}

	db, err := dialector.Open()
	if err != nil {
		return nil, err
	}
	c.setup(db)
	c.db = db
	return c, nil
}

// New wraps an opened pool
func New(dialector Dialector, db *sql.DB, opts ...Option) *Connection {
	c := &Connection{dialector: dialector, logger: logger.Default, db: db}
	for _, opt := range opts {
		opt(c)
	}
	c.setup(db)
	return c
}

func (c *Connection) setup(db *sql.DB) {
	if c.poolSetup != nil && db != nil {
		c.poolSetup(db)
	}
}

// Dialector implements query.Connection
func (c *Connection) Dialector() query.Dialector {
	return c.dialector
}

// Logger logger in use
func (c *Connection) Logger() logger.Interface {
	return c.logger
}

// DB underlying pool
func (c *Connection) DB() *sql.DB {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db
}

// Query starts a query builder on table
func (c *Connection) Query(table string) *query.Builder {
	return query.New(c).From(table)
}

// Close closes cached statements and the pool
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stmts != nil {
		c.stmts.Close()
	}
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Select runs a select statement returning rows as column maps, []byte values become strings
func (c *Connection) Select(ctx context.Context, sql string, bindings []interface{}) ([]map[string]interface{}, error) {
	var results []map[string]interface{}
	err := c.run(ctx, sql, bindings, func(exec executor) (int64, error) {
		rows, err := c.query(ctx, exec, sql, bindings)
		if err != nil {
			return -1, err
		}
		defer rows.Close()

		results, err = scanRows(rows)
		return int64(len(results)), err
	})
	return results, err
}

// Affecting runs a statement returning the number of affected rows
func (c *Connection) Affecting(ctx context.Context, sql string, bindings []interface{}) (int64, error) {
	var affected int64
	err := c.run(ctx, sql, bindings, func(exec executor) (int64, error) {
		result, err := c.exec(ctx, exec, sql, bindings)
		if err != nil {
			return -1, err
		}
		affected, err = result.RowsAffected()
		return affected, err
	})
	return affected, err
}

// Statement runs a statement ignoring its result
func (c *Connection) Statement(ctx context.Context, sql string, bindings ...interface{}) error {
	_, err := c.Affecting(ctx, sql, bindings)
	return err
}

// InsertGetID runs an insert and returns the generated key, read from RETURNING when the
// dialect supports it and from LastInsertId otherwise
func (c *Connection) InsertGetID(ctx context.Context, sql string, bindings []interface{}, sequence string) (interface{}, error) {
	if rd, ok := c.dialector.(query.ReturningDialector); ok && rd.SupportsReturning() && sequence != "" {
		rows, err := c.Select(ctx, sql, bindings)
		if err != nil || len(rows) == 0 {
			return nil, err
		}
		return rows[0][sequence], nil
	}

	var id interface{}
	err := c.run(ctx, sql, bindings, func(exec executor) (int64, error) {
		result, err := c.exec(ctx, exec, sql, bindings)
		if err != nil {
			return -1, err
		}
		lastID, err := result.LastInsertId()
		if err != nil {
			return -1, err
		}
		id = lastID
		return result.RowsAffected()
	})
	return id, err
}

// run executes fn on the current executor, traces it, translates driver errors and re-runs it
// once after reconnecting when the connection was lost outside a transaction
func (c *Connection) run(ctx context.Context, sql string, bindings []interface{}, fn func(executor) (int64, error)) error {
	err := c.runQueryCallback(ctx, sql, bindings, fn)
	if err == nil || !IsLostConnection(err) || c.TransactionLevel() > 0 {
		return err
	}

	c.logger.Warn(ctx, "lost connection, reconnecting: %v", err)
	if rerr := c.Reconnect(ctx); rerr != nil {
		return err
	}
	return c.runQueryCallback(ctx, sql, bindings, fn)
}

func (c *Connection) runQueryCallback(ctx context.Context, sql string, bindings []interface{}, fn func(executor) (int64, error)) (err error) {
	begin := time.Now()
	exec := c.executor()
	rows := int64(-1)

	defer func() {
		c.logger.Trace(ctx, begin, func() (string, int64) {
			vars := bindings
			if filter, ok := c.logger.(logger.ParamsFilter); ok {
				_, vars = filter.ParamsFilter(ctx, sql, bindings...)
			}
			if vars == nil {
				return sql, rows
			}
			return c.dialector.Explain(sql, vars...), rows
		}, err)
	}()

	if exec == nil {
		return &QueryError{SQL: sql, Bindings: bindings, Err: ErrLostConnection}
	}

	rows, err = fn(exec)
	if err != nil {
		if translator, ok := c.dialector.(ErrorTranslator); ok {
			err = translator.Translate(err)
		}
		err = &QueryError{SQL: sql, Bindings: bindings, Err: err}
	}
	return err
}

func (c *Connection) executor() executor {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tx != nil {
		return c.tx
	}
	if c.db != nil {
		return c.db
	}
	return nil
}

func (c *Connection) query(ctx context.Context, exec executor, sql string, bindings []interface{}) (*sql.Rows, error) {
	if c.stmts == nil {
		return exec.QueryContext(ctx, sql, bindings...)
	}

	stmt, err := c.prepare(ctx, exec, sql)
	if err != nil {
		return nil, err
	}
	return stmt.QueryContext(ctx, bindings...)
}

func (c *Connection) exec(ctx context.Context, exec executor, sql string, bindings []interface{}) (sql.Result, error) {
	if c.stmts == nil {
		return exec.ExecContext(ctx, sql, bindings...)
	}

	stmt, err := c.prepare(ctx, exec, sql)
	if err != nil {
		return nil, err
	}
	return stmt.ExecContext(ctx, bindings...)
}

// prepare returns the cached statement, bound to the transaction when exec is one
func (c *Connection) prepare(ctx context.Context, exec executor, query string) (*sql.Stmt, error) {
	db := c.DB()
	if db == nil {
		return nil, ErrLostConnection
	}

	cached, err := c.stmts.Prepare(ctx, db, query)
	if err != nil {
		return nil, err
	}

	if tx, ok := exec.(*sql.Tx); ok {
		return tx.StmtContext(ctx, cached.Stmt), nil
	}
	return cached.Stmt, nil
}

// Reconnect reopens the pool, any open transaction is discarded
func (c *Connection) Reconnect(ctx context.Context) error {
	var (
		db  *sql.DB
		err error
	)
	if c.reconnector != nil {
		db, err = c.reconnector(ctx)
	} else {
		db, err = c.dialector.Open()
	}
	if err != nil {
		c.logger.Error(ctx, "reconnect failed: %v", err)
		return err
	}
	c.setup(db)

	c.mu.Lock()
	old := c.db
	c.db, c.tx, c.transactions = db, nil, 0
	if c.stmts != nil {
		c.stmts.Close()
	}
	c.mu.Unlock()

	if old != nil && old != db {
		_ = old.Close()
	}
	c.logger.Info(ctx, "reconnected")
	return nil
}

func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := []map[string]interface{}{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for idx := range values {
			pointers[idx] = &values[idx]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(columns))
		for idx, column := range columns {
			if b, ok := values[idx].([]byte); ok {
				row[column] = string(b)
			} else {
				row[column] = values[idx]
			}
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// errTxDone the transaction was already committed or rolled back by the driver
func errTxDone(err error) bool {
	return errors.Is(err, sql.ErrTxDone)
}
