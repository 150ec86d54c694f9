package mysql

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"gorm.io/record/clause"
	"gorm.io/record/database"
	"gorm.io/record/logger"
	"gorm.io/record/query"
)

// DriverName default database/sql driver
const DriverName = "mysql"

func init() {
	database.RegisterDialect("mysql", func(driverName, dsn string) database.Dialector {
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
	return "mysql"
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
	return logger.ExplainSQL(sql, nil, `'`, vars...)
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

// Translate maps duplicate entries, deadlocks, lock wait timeouts and dropped connections onto the database errors
func (Dialector) Translate(err error) error {
	if errors.Is(err, mysql.ErrInvalidConn) {
		return fmt.Errorf("%w: %w", database.ErrLostConnection, err)
	}

	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return err
	}

	switch mysqlErr.Number {
	case 1062:
		return fmt.Errorf("%w: %w", database.ErrDuplicatedKey, err)
	case 1213, 1205:
		return fmt.Errorf("%w: %w", database.ErrDeadlock, err)
	case 2006, 2013:
		return fmt.Errorf("%w: %w", database.ErrLostConnection, err)
	}
	return err
}
