package stmt_store

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPool struct {
	calls int32
	err   error
}

func (p *failingPool) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	atomic.AddInt32(&p.calls, 1)
	return nil, p.err
}

func TestPrepareErrorIsNotCached(t *testing.T) {
	store := New(0, 0)
	pool := &failingPool{err: errors.New("syntax error")}

	_, err := store.Prepare(context.Background(), pool, "SELECT")
	require.ErrorIs(t, err, pool.err)
	assert.Empty(t, store.Keys())

	_, err = store.Prepare(context.Background(), pool, "SELECT")
	require.Error(t, err)
	assert.EqualValues(t, 2, pool.calls)
}

func TestConcurrentPrepareWaits(t *testing.T) {
	store := New(0, 0)
	pool := &failingPool{err: errors.New("boom")}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Prepare(context.Background(), pool, "SELECT 1")
			assert.Error(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&pool.calls), int32(8))
}
