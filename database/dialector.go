package database

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"gorm.io/record/query"
)

// Dialector a query dialect able to open its connection pool
type Dialector interface {
	query.Dialector
	Open() (*sql.DB, error)
}

// SavePointerDialectorInterface dialects supporting nested transactions through savepoints
type SavePointerDialectorInterface interface {
	SavePoint(name string) string
	RollbackTo(name string) string
}

// DialectorFactory builds a dialector from a driver name (empty for the dialect default) and dsn
type DialectorFactory func(driverName, dsn string) Dialector

var (
	dialectsMu sync.RWMutex
	dialects   = map[string]DialectorFactory{}
)

// RegisterDialect makes a dialect available to Connect by name, re-registering replaces
func RegisterDialect(name string, factory DialectorFactory) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	dialects[name] = factory
}

// Dialects registered dialect names, sorted
func Dialects() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()

	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupDialect(name, driverName, dsn string) (Dialector, error) {
	dialectsMu.RLock()
	factory, ok := dialects[name]
	dialectsMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoDialector, name)
	}
	return factory(driverName, dsn), nil
}
