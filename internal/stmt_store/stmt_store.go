package stmt_store

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"gorm.io/record/internal/lru"
)

// Stmt a cached prepared statement
type Stmt struct {
	*sql.Stmt
	prepared   chan struct{}
	prepareErr error
}

// Error error returned while preparing
func (stmt *Stmt) Error() error {
	return stmt.prepareErr
}

// Close waits for preparation to finish and closes the statement
func (stmt *Stmt) Close() error {
	<-stmt.prepared

	if stmt.Stmt != nil {
		return stmt.Stmt.Close()
	}
	return nil
}

// ConnPool prepares statements
type ConnPool interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

const (
	defaultMaxSize = 1000
	defaultTTL     = time.Hour * 24
)

// Store prepared statements keyed by SQL
type Store struct {
	mu  sync.Mutex
	lru *lru.LRU[string, *Stmt]
}

// New creates a store keeping at most size statements for ttl
func New(size int, ttl time.Duration) *Store {
	if size <= 0 {
		size = defaultMaxSize
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}

	onEvicted := func(_ string, v *Stmt) {
		if v != nil {
			go v.Close()
		}
	}
	return &Store{lru: lru.NewLRU[string, *Stmt](size, onEvicted, ttl)}
}

// Keys cached SQL, least recently used first
func (s *Store) Keys() []string {
	return s.lru.Keys()
}

// Prepare returns the cached statement for query, preparing it on conn when missing.
// Concurrent callers of the same query wait for a single preparation.
func (s *Store) Prepare(ctx context.Context, conn ConnPool, query string) (*Stmt, error) {
	s.mu.Lock()
	if stmt, ok := s.lru.Get(query); ok {
		s.mu.Unlock()
		<-stmt.prepared
		if stmt.prepareErr != nil {
			return nil, stmt.prepareErr
		}
		return stmt, nil
	}

	stmt := &Stmt{prepared: make(chan struct{})}
	s.lru.Add(query, stmt)
	s.mu.Unlock()

	defer close(stmt.prepared)

	var err error
	if stmt.Stmt, err = conn.PrepareContext(ctx, query); err != nil {
		stmt.prepareErr = err
		s.lru.Remove(query)
		return nil, err
	}
	return stmt, nil
}

// Delete drops query from the store, closing its statement
func (s *Store) Delete(query string) {
	s.lru.Remove(query)
}

// Close closes every cached statement
func (s *Store) Close() {
	s.lru.Purge()
}
