package database

import (
	"context"
	"fmt"
	"strconv"
)

// TransactionEvent transaction lifecycle event
type TransactionEvent string

const (
	TransactionBegan      TransactionEvent = "began"
	TransactionCommitted  TransactionEvent = "committed"
	TransactionRolledBack TransactionEvent = "rolled back"
)

// TransactionListener receives transaction events with the level after the event
type TransactionListener func(ctx context.Context, event TransactionEvent, level int)

// OnTransaction registers a listener
func (c *Connection) OnTransaction(listener TransactionListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, listener)
}

func (c *Connection) fire(ctx context.Context, event TransactionEvent) {
	c.mu.Lock()
	listeners := append([]TransactionListener(nil), c.listeners...)
	level := c.transactions
	c.mu.Unlock()

	c.logger.Info(ctx, "transaction %s, level %d", event, level)
	for _, listener := range listeners {
		listener(ctx, event, level)
	}
}

// TransactionLevel current nesting depth
func (c *Connection) TransactionLevel() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transactions
}

func savepointName(level int) string {
	return "trans" + strconv.Itoa(level)
}

// Transaction runs fn inside a transaction, retrying the whole transaction up to attempts
// times when it fails with a concurrency error at the outermost level.
// A panic in fn rolls back and re-panics.
func (c *Connection) Transaction(ctx context.Context, fn func(ctx context.Context) error, attempts ...int) error {
	maxAttempts := 1
	if len(attempts) > 0 && attempts[0] > 1 {
		maxAttempts = attempts[0]
	}

	for currentAttempt := 1; currentAttempt <= maxAttempts; currentAttempt++ {
		if err := c.BeginTransaction(ctx); err != nil {
			return err
		}

		if err := c.runTransactionCallback(ctx, fn); err != nil {
			if retry, err := c.handleTransactionException(ctx, err, currentAttempt, maxAttempts); retry {
				continue
			} else {
				return err
			}
		}

		if err := c.commitLevel(ctx); err != nil {
			if retry, err := c.handleCommitTransactionException(err, currentAttempt, maxAttempts); retry {
				continue
			} else {
				return err
			}
		}

		c.fire(ctx, TransactionCommitted)
		return nil
	}
	return nil
}

// TransactionResult Transaction returning the callback's value
func TransactionResult[T any](ctx context.Context, c *Connection, fn func(ctx context.Context) (T, error), attempts ...int) (T, error) {
	var result T
	err := c.Transaction(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	}, attempts...)
	return result, err
}

func (c *Connection) runTransactionCallback(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	panicked := true
	defer func() {
		if panicked {
			_ = c.RollBack(ctx)
		}
	}()

	err = fn(ctx)
	panicked = false
	return err
}

// handleTransactionException a failed callback: nested concurrency errors unwind one level
// and surface, otherwise roll back and retry while attempts remain
func (c *Connection) handleTransactionException(ctx context.Context, err error, currentAttempt, maxAttempts int) (bool, error) {
	if IsDeadlock(err) {
		c.mu.Lock()
		if c.transactions > 1 {
			c.transactions--
			c.mu.Unlock()
			return false, err
		}
		c.mu.Unlock()
	}

	if rerr := c.RollBack(ctx); rerr != nil {
		return false, fmt.Errorf("%w; rollback: %v", err, rerr)
	}

	if IsDeadlock(err) && currentAttempt < maxAttempts {
		return true, nil
	}
	return false, err
}

func (c *Connection) handleCommitTransactionException(err error, currentAttempt, maxAttempts int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.transactions = max(0, c.transactions-1)
	if c.transactions == 0 {
		c.tx = nil
	}

	if IsDeadlock(err) && currentAttempt < maxAttempts {
		return true, nil
	}

	if IsLostConnection(err) {
		c.transactions = 0
	}
	return false, err
}

// BeginTransaction starts a transaction, or a savepoint when one is already open
func (c *Connection) BeginTransaction(ctx context.Context) error {
	if err := c.createTransaction(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.transactions++
	c.mu.Unlock()

	c.fire(ctx, TransactionBegan)
	return nil
}

func (c *Connection) createTransaction(ctx context.Context) error {
	level := c.TransactionLevel()

	if level == 0 {
		err := c.beginTx(ctx)
		if err != nil && IsLostConnection(err) {
			c.logger.Warn(ctx, "lost connection while beginning transaction: %v", err)
			if rerr := c.Reconnect(ctx); rerr != nil {
				return err
			}
			err = c.beginTx(ctx)
		}
		return err
	}

	if sp, ok := c.dialector.(SavePointerDialectorInterface); ok {
		return c.runOnTx(ctx, sp.SavePoint(savepointName(level+1)))
	}
	return nil
}

func (c *Connection) beginTx(ctx context.Context) error {
	db := c.DB()
	if db == nil {
		return ErrLostConnection
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		if translator, ok := c.dialector.(ErrorTranslator); ok {
			err = translator.Translate(err)
		}
		return err
	}

	c.mu.Lock()
	c.tx = tx
	c.mu.Unlock()
	return nil
}

// runOnTx runs a savepoint statement on the open transaction
func (c *Connection) runOnTx(ctx context.Context, sql string) error {
	return c.runQueryCallback(ctx, sql, nil, func(exec executor) (int64, error) {
		_, err := exec.ExecContext(ctx, sql)
		return -1, err
	})
}

// Commit commits the outermost transaction or releases one nesting level
func (c *Connection) Commit(ctx context.Context) error {
	if err := c.commitLevel(ctx); err != nil {
		return err
	}
	c.fire(ctx, TransactionCommitted)
	return nil
}

func (c *Connection) commitLevel(ctx context.Context) error {
	c.mu.Lock()
	level, tx := c.transactions, c.tx
	c.mu.Unlock()

	if level == 1 && tx != nil {
		if err := tx.Commit(); err != nil {
			if translator, ok := c.dialector.(ErrorTranslator); ok {
				err = translator.Translate(err)
			}
			return err
		}

		c.mu.Lock()
		c.tx = nil
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.transactions = max(0, c.transactions-1)
	c.mu.Unlock()
	return nil
}

// RollBack rolls back to toLevel, one level by default; levels outside [0, level) are ignored.
// Rolling back to 0 rolls back the transaction, other levels roll back to their savepoint.
func (c *Connection) RollBack(ctx context.Context, toLevel ...int) error {
	level := c.TransactionLevel()

	target := level - 1
	if len(toLevel) > 0 {
		target = toLevel[0]
	}
	if target < 0 || target >= level {
		return nil
	}

	if err := c.performRollBack(ctx, target); err != nil {
		if IsLostConnection(err) {
			c.mu.Lock()
			c.transactions, c.tx = 0, nil
			c.mu.Unlock()
		}
		return err
	}

	c.mu.Lock()
	c.transactions = target
	c.mu.Unlock()

	c.fire(ctx, TransactionRolledBack)
	return nil
}

func (c *Connection) performRollBack(ctx context.Context, toLevel int) error {
	if toLevel == 0 {
		c.mu.Lock()
		tx := c.tx
		c.tx = nil
		c.mu.Unlock()

		if tx == nil {
			return nil
		}
		if err := tx.Rollback(); err != nil && !errTxDone(err) {
			return err
		}
		return nil
	}

	if sp, ok := c.dialector.(SavePointerDialectorInterface); ok {
		return c.runOnTx(ctx, sp.RollbackTo(savepointName(toLevel+1)))
	}
	return nil
}
