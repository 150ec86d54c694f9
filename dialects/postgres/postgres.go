package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"gorm.io/record/clause"
	"gorm.io/record/database"
	"gorm.io/record/logger"
	"gorm.io/record/query"
)

// DriverName default database/sql driver
const DriverName = "postgres"

var numericPlaceholder = regexp.MustCompile(`\$(\d+)`)

func init() {
	database.RegisterDialect("postgres", func(driverName, dsn string) database.Dialector {
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
	return "postgres"
}

func (dialector Dialector) Open() (*sql.DB, error) {
	driverName := dialector.DriverName
	if driverName == "" {
		driverName = DriverName
	}
	return sql.Open(driverName, dialector.DSN)
}

func (Dialector) BindVarTo(writer clause.Writer, stmt *query.Statement, v interface{}) {
	writer.WriteByte('$')
	writer.WriteString(strconv.Itoa(len(stmt.Vars)))
}

func (Dialector) QuoteTo(writer clause.Writer, str string) {
	writer.WriteByte('"')
	writer.WriteString(strings.ReplaceAll(str, `"`, `""`))
	writer.WriteByte('"')
}

func (Dialector) Explain(sql string, vars ...interface{}) string {
	return logger.ExplainSQL(sql, numericPlaceholder, `'`, vars...)
}

func (Dialector) SavePoint(name string) string {
	return "SAVEPOINT " + name
}

func (Dialector) RollbackTo(name string) string {
	return "ROLLBACK TO SAVEPOINT " + name
}

func (Dialector) SupportsReturning() bool {
	return true
}

// Translate maps unique violations, deadlocks and serialization failures onto the database errors
func (Dialector) Translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code {
	case "23505":
		return fmt.Errorf("%w: %w", database.ErrDuplicatedKey, err)
	case "40P01", "40001":
		return fmt.Errorf("%w: %w", database.ErrDeadlock, err)
	case "57P01", "08006", "08003":
		return fmt.Errorf("%w: %w", database.ErrLostConnection, err)
	}
	return err
}
