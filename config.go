package record

import (
	"context"
	"time"

	"gorm.io/record/database"
	"gorm.io/record/logger"
	"gorm.io/record/schema"
)

// DefaultDateFormat storage format of date attributes
const DefaultDateFormat = "Y-m-d H:i:s"

// Config record config
type Config struct {
	// NamingStrategy derives table names, foreign keys and scope method names
	NamingStrategy schema.Namer
	// Logger
	Logger logger.Interface
	// NowFunc the function to be used when creating a new timestamp
	NowFunc func() time.Time
	// DateFormat storage format of dates, PHP style (`Y-m-d H:i:s`) or a Go layout
	DateFormat string
	// SkipDefaultTransaction runs Save, Delete and Push without wrapping them in a transaction
	SkipDefaultTransaction bool
}

// ConfigOption configures a DB
type ConfigOption func(*Config)

// WithLogger sets the logger
func WithLogger(l logger.Interface) ConfigOption {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithNowFunc sets the clock used for timestamps
func WithNowFunc(fn func() time.Time) ConfigOption {
	return func(c *Config) {
		c.NowFunc = fn
	}
}

// WithNamingStrategy sets the naming strategy
func WithNamingStrategy(namer schema.Namer) ConfigOption {
	return func(c *Config) {
		c.NamingStrategy = namer
	}
}

// WithDateFormat sets the default storage format of dates
func WithDateFormat(format string) ConfigOption {
	return func(c *Config) {
		c.DateFormat = format
	}
}

// WithoutDefaultTransaction disables the transaction wrapping writes
func WithoutDefaultTransaction() ConfigOption {
	return func(c *Config) {
		c.SkipDefaultTransaction = true
	}
}

// DB entry point binding classes to a connection
type DB struct {
	*Config
	conn *database.Connection
}

// Open creates a DB on conn
func Open(conn *database.Connection, opts ...ConfigOption) *DB {
	config := &Config{}
	for _, opt := range opts {
		opt(config)
	}

	if config.NamingStrategy == nil {
		config.NamingStrategy = schema.NamingStrategy{}
	}

	if config.Logger == nil {
		config.Logger = conn.Logger()
	}

	if config.NowFunc == nil {
		config.NowFunc = func() time.Time { return time.Now().Local() }
	}

	if config.DateFormat == "" {
		config.DateFormat = DefaultDateFormat
	}

	return &DB{Config: config, conn: conn}
}

// Connection underlying connection
func (db *DB) Connection() *database.Connection {
	return db.conn
}

// New blank, non existing model of class
func (db *DB) New(class *Class) *Model {
	class.boot()
	return &Model{
		class:      class,
		db:         db,
		attributes: map[string]interface{}{},
		original:   map[string]interface{}{},
		changes:    map[string]interface{}{},
		relations:  map[string]interface{}{},
	}
}

// Make new model of class filled with attrs
func (db *DB) Make(class *Class, attrs map[string]interface{}) (*Model, error) {
	m := db.New(class)
	if err := m.Fill(attrs); err != nil {
		return m, err
	}
	return m, nil
}

// Query starts a query on class with its global scopes and default eager loads
func (db *DB) Query(class *Class) *Builder {
	return db.New(class).NewQuery()
}

// Transaction runs fn in a transaction, see database.Connection.Transaction
func (db *DB) Transaction(ctx context.Context, fn func(ctx context.Context) error, attempts ...int) error {
	return db.conn.Transaction(ctx, fn, attempts...)
}

// transaction wraps writes unless disabled
func (db *DB) transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.SkipDefaultTransaction {
		return fn(ctx)
	}
	return db.conn.Transaction(ctx, fn)
}
