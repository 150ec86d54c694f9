package database

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDeadlock a concurrency error, retrying the transaction may succeed
	ErrDeadlock = errors.New("deadlock")
	// ErrLostConnection the connection to the server was lost
	ErrLostConnection = errors.New("lost connection")
	// ErrDuplicatedKey unique constraint violation
	ErrDuplicatedKey = errors.New("duplicated key not allowed")
	// ErrNoDialector no dialect registered under the configured name
	ErrNoDialector = errors.New("no dialect registered")
)

// ErrorTranslator implemented by dialects that map driver errors onto the errors above
type ErrorTranslator interface {
	Translate(err error) error
}

// QueryError a failed statement
type QueryError struct {
	SQL      string
	Bindings []interface{}
	Err      error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%v (SQL: %s)", e.Err, e.SQL)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// ErrorKind classification used by the transaction manager
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindDeadlock
	KindLostConnection
)

func (k ErrorKind) String() string {
	switch k {
	case KindDeadlock:
		return "deadlock"
	case KindLostConnection:
		return "lost connection"
	}
	return "other"
}

var concurrencyMessages = []string{
	"deadlock found when trying to get lock",
	"deadlock detected",
	"the database file is locked",
	"database is locked",
	"database table is locked",
	"a table in the database is locked",
	"has been chosen as the deadlock victim",
	"lock wait timeout exceeded; try restarting transaction",
	"wsrep detected deadlock/conflict and aborted the transaction",
	"sqlstate[40001]",
}

var lostConnectionMessages = []string{
	"server has gone away",
	"no connection to the server",
	"lost connection",
	"is dead or not enabled",
	"error while sending",
	"decryption failed or bad record mac",
	"server closed the connection unexpectedly",
	"ssl connection has been closed unexpectedly",
	"error writing data to the connection",
	"resource deadlock avoided",
	"transaction() on null",
	"child connection forced to terminate due to client_idle_limit",
	"query_wait_timeout",
	"reset by peer",
	"physical connection is not usable",
	"packets out of order. expected",
	"adaptive server connection failed",
	"communication link failure",
	"connection is no longer usable",
	"login timeout expired",
	"connection refused",
	"the connection is broken and recovery is not possible",
	"ssl: connection timed out",
	"ssl syscall error: eof detected",
	"temporary failure in name resolution",
	"ssl: broken pipe",
	"could not connect to server",
	"connection timed out",
	"broken pipe",
	"invalid connection",
	"bad connection",
	"database is closed",
}

// Classify classifies err, sentinel errors first and known driver messages second
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindOther
	case errors.Is(err, ErrDeadlock):
		return KindDeadlock
	case errors.Is(err, ErrLostConnection), errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone):
		return KindLostConnection
	}

	message := strings.ToLower(err.Error())
	for _, m := range lostConnectionMessages {
		if strings.Contains(message, m) {
			return KindLostConnection
		}
	}
	for _, m := range concurrencyMessages {
		if strings.Contains(message, m) {
			return KindDeadlock
		}
	}
	return KindOther
}

// IsDeadlock reports whether err is a concurrency error
func IsDeadlock(err error) bool {
	return Classify(err) == KindDeadlock
}

// IsLostConnection reports whether err was caused by a lost connection
func IsLostConnection(err error) bool {
	return Classify(err) == KindLostConnection
}
