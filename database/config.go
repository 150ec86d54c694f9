package database

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/record/logger"
)

// Config connection config as found in yaml files
type Config struct {
	Dialect         string        `yaml:"dialect"`
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	PrepareStmt     bool          `yaml:"prepare_stmt"`
	StmtCacheSize   int           `yaml:"stmt_cache_size"`
	StmtCacheTTL    time.Duration `yaml:"stmt_cache_ttl"`
	LogLevel        string        `yaml:"log_level"`
	SlowThreshold   time.Duration `yaml:"slow_threshold"`
}

// LoadConfig reads a yaml config file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read database config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses yaml, environment variables in the dsn are expanded
func ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	config.DSN = os.ExpandEnv(config.DSN)

	if config.Dialect == "" {
		return nil, fmt.Errorf("parse database config: dialect is required")
	}
	return &config, nil
}

// Options options implied by the config
func (c *Config) Options() []Option {
	opts := []Option{WithPoolSetup(c.setupPool)}

	if c.PrepareStmt {
		opts = append(opts, WithStatementCache(c.StmtCacheSize, c.StmtCacheTTL))
	}

	if c.LogLevel != "" || c.SlowThreshold > 0 {
		opts = append(opts, WithLogger(logger.New(defaultWriter, logger.Config{
			SlowThreshold: c.SlowThreshold,
			LogLevel:      logger.ParseLevel(c.LogLevel),
			Colorful:      false,
		})))
	}
	return opts
}

func (c *Config) setupPool(db *sql.DB) {
	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		db.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(c.ConnMaxLifetime)
	}
}

// Connect opens a connection with the dialect registered under c.Dialect
func Connect(c *Config, opts ...Option) (*Connection, error) {
	dialector, err := lookupDialect(c.Dialect, c.Driver, c.DSN)
	if err != nil {
		return nil, err
	}

	return Open(dialector, append(c.Options(), opts...)...)
}
