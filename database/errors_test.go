package database_test

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"gorm.io/record/database"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want database.ErrorKind
	}{
		{"nil", nil, database.KindOther},
		{"deadlock sentinel", fmt.Errorf("update: %w", database.ErrDeadlock), database.KindDeadlock},
		{"lost sentinel", database.ErrLostConnection, database.KindLostConnection},
		{"bad conn", driver.ErrBadConn, database.KindLostConnection},
		{"conn done", &database.QueryError{SQL: "SELECT 1", Err: sql.ErrConnDone}, database.KindLostConnection},
		{"mysql deadlock", errors.New("Error 1213: Deadlock found when trying to get lock; try restarting transaction"), database.KindDeadlock},
		{"postgres deadlock", errors.New("pq: deadlock detected"), database.KindDeadlock},
		{"sqlite locked", errors.New("database is locked (5) (SQLITE_BUSY)"), database.KindDeadlock},
		{"gone away", errors.New("MySQL server has gone away"), database.KindLostConnection},
		{"broken pipe", errors.New("write tcp 127.0.0.1:5432: broken pipe"), database.KindLostConnection},
		{"closed pool", errors.New("sql: database is closed"), database.KindLostConnection},
		{"syntax", errors.New(`near "SELEC": syntax error`), database.KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, database.Classify(tt.err))
			assert.Equal(t, tt.want == database.KindDeadlock, database.IsDeadlock(tt.err))
			assert.Equal(t, tt.want == database.KindLostConnection, database.IsLostConnection(tt.err))
		})
	}
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "deadlock", database.KindDeadlock.String())
	assert.Equal(t, "lost connection", database.KindLostConnection.String())
	assert.Equal(t, "other", database.KindOther.String())
}

func TestQueryErrorUnwraps(t *testing.T) {
	err := &database.QueryError{SQL: "INSERT INTO t VALUES (?)", Bindings: []interface{}{1}, Err: database.ErrDuplicatedKey}

	assert.ErrorIs(t, err, database.ErrDuplicatedKey)
	assert.Equal(t, "duplicated key not allowed (SQL: INSERT INTO t VALUES (?))", err.Error())
}
