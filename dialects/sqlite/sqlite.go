package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"gorm.io/record/clause"
	"gorm.io/record/database"
	"gorm.io/record/logger"
	"gorm.io/record/query"
)

// DriverName default database/sql driver
const DriverName = "sqlite"

func init() {
	database.RegisterDialect("sqlite", func(driverName, dsn string) database.Dialector {
		return &Dialector{DriverName: driverName, DSN: dsn}
	})
}

type Dialector struct {
	DriverName string
	DSN        string
}

func Open(dsn string) database.Dialector {
	return &Dialector{DSN: dsn}
}

func (Dialector) Name() string {
	return "sqlite"
}

func (dialector Dialector) Open() (*sql.DB, error) {
	driverName := dialector.DriverName
	if driverName == "" {
		driverName = DriverName
	}
	return sql.Open(driverName, dialector.DSN)
}

func (Dialector) BindVarTo(writer clause.Writer, stmt *query.Statement, v interface{}) {
	writer.WriteByte('?')
}

func (Dialector) QuoteTo(writer clause.Writer, str string) {
	writer.WriteByte('`')
	writer.WriteString(strings.ReplaceAll(str, "`", "``"))
	writer.WriteByte('`')
}

func (Dialector) Explain(sql string, vars ...interface{}) string {
	return logger.ExplainSQL(sql, nil, `"`, vars...)
}

func (Dialector) SavePoint(name string) string {
	return "SAVEPOINT " + name
}

func (Dialector) RollbackTo(name string) string {
	return "ROLLBACK TO SAVEPOINT " + name
}

func (Dialector) SupportsReturning() bool {
	return false
}

// Translate maps unique violations and busy/locked results onto the database errors
func (Dialector) Translate(err error) error {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}

	code := sqliteErr.Code()
	switch {
	case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return fmt.Errorf("%w: %w", database.ErrDuplicatedKey, err)
	case code&0xff == sqlite3.SQLITE_BUSY, code&0xff == sqlite3.SQLITE_LOCKED:
		return fmt.Errorf("%w: %w", database.ErrDeadlock, err)
	}
	return err
}
