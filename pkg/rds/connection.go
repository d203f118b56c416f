package rds

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marcodd23/go-txscope/pkg/dbx"
	"github.com/marcodd23/go-txscope/pkg/errorx"
	"github.com/marcodd23/go-txscope/pkg/logx"
	"github.com/marcodd23/go-txscope/pkg/sqlbuild"
)

// LoggingFunc receives every SQL statement before it runs, followed by the connection id.
type LoggingFunc func(msg string, args ...any)

// DefaultAdvisoryLockWait bounds AdvisoryLock when ctx carries no deadline.
const DefaultAdvisoryLockWait = 10 * time.Second

// Connection is one pooled connection borrowed by a Client.
//
// Statements on a Connection run one at a time in call order.
// The connection goes back to the pool on the first Release, later calls do nothing.
type Connection struct {
	operator

	mu       sync.Mutex
	conn     dbx.PooledConn
	hooks    *hookSet
	logging  LoggingFunc
	released bool
}

func newConnection(conn dbx.PooledConn, hooks *hookSet, logging LoggingFunc) *Connection {
	c := &Connection{conn: conn, hooks: hooks.clone(), logging: logging}
	c.operator = operator{q: c}

	return c
}

// ID returns the session identity of the underlying connection.
func (c *Connection) ID() uint32 {
	return c.conn.ID()
}

// BeforeQuery registers a hook on this connection only.
func (c *Connection) BeforeQuery(hook BeforeQueryHook) {
	c.hooks.addBefore(hook)
}

// AfterQuery registers a hook on this connection only.
func (c *Connection) AfterQuery(hook AfterQueryHook) {
	c.hooks.addAfter(hook)
}

// Query runs sql through the before hooks, executes it and reports it to the after hooks.
// Driver errors are returned unmodified.
// Hooks run outside the connection lock, so an after hook may run statements on this connection.
func (c *Connection) Query(ctx context.Context, sql string, args ...any) (*dbx.Result, error) {
	sql = c.hooks.runBefore(ctx, sql)

	res, elapsed, err := c.run(ctx, sql, args)
	if errors.Is(err, errorx.ErrConnectionReleased) {
		return nil, err
	}

	c.hooks.runAfter(ctx, sql, res, elapsed, err)

	return res, err
}

func (c *Connection) run(ctx context.Context, sql string, args []any) (*dbx.Result, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return nil, 0, errorx.ErrConnectionReleased
	}

	c.log(ctx, sql)

	start := time.Now()
	res, err := c.conn.Query(ctx, sql, args...)

	return res, time.Since(start), err
}

func (c *Connection) log(ctx context.Context, sql string) {
	if c.logging != nil {
		c.logging(sql, c.conn.ID())
		return
	}

	logx.GetLogger().LogDebug(ctx, fmt.Sprintf("[connection#%d] %s", c.conn.ID(), sql))
}

// Begin starts a transaction on the connection.
func (c *Connection) Begin(ctx context.Context) error {
	return c.exec(func() error { return c.conn.Begin(ctx) })
}

// Commit commits the transaction started with Begin.
func (c *Connection) Commit(ctx context.Context) error {
	return c.exec(func() error { return c.conn.Commit(ctx) })
}

// Rollback rolls back the transaction started with Begin.
func (c *Connection) Rollback(ctx context.Context) error {
	return c.exec(func() error { return c.conn.Rollback(ctx) })
}

func (c *Connection) exec(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return errorx.ErrConnectionReleased
	}

	return fn()
}

// Release gives the connection back to the pool.
func (c *Connection) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return
	}

	c.released = true
	c.conn.Release()
}

// AdvisoryLock waits for the session advisory lock lockID, polling pg_try_advisory_lock.
// Without a deadline on ctx the wait is bounded by DefaultAdvisoryLockWait.
func (c *Connection) AdvisoryLock(ctx context.Context, lockID int64) error {
	if lockID == 0 {
		return errorx.NewDatabaseError("0 is not allowed as lockId")
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultAdvisoryLockWait)
		defer cancel()
	}

	for {
		res, err := c.Query(ctx, sqlbuild.TryAdvisoryLock(), lockID)
		if err != nil {
			logx.GetLogger().LogError(ctx, fmt.Sprintf("Error acquiring advisory lock with lockId %d", lockID), err)
			return errorx.NewDatabaseErrorWrapper(err, "error acquiring advisory lock with lockId %d", lockID)
		}

		var acquired bool
		if err := res.Scan(0, &acquired); err != nil {
			return errorx.NewDatabaseErrorWrapper(err, "error reading advisory lock result")
		}

		if acquired {
			return nil
		}

		select {
		case <-ctx.Done():
			logx.GetLogger().LogError(ctx, fmt.Sprintf("Timeout while attempting to acquire advisory lock with lockId %d", lockID), ctx.Err())
			return errorx.NewDatabaseErrorWrapper(ctx.Err(), "timeout while attempting to acquire advisory lock with lockId %d", lockID)
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// AdvisoryUnlock releases the session advisory lock lockID.
func (c *Connection) AdvisoryUnlock(ctx context.Context, lockID int64) error {
	if _, err := c.Query(ctx, sqlbuild.AdvisoryUnlock(), lockID); err != nil {
		logx.GetLogger().LogError(ctx, fmt.Sprintf("error releasing Advisory lock: %d", lockID), err)
		return errorx.NewDatabaseErrorWrapper(err, "error releasing advisory lock %d", lockID)
	}

	return nil
}
