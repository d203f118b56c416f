package rds

import (
	"context"
	"fmt"
	"time"

	"github.com/marcodd23/go-txscope/pkg/dbx"
	"github.com/marcodd23/go-txscope/pkg/errorx"
	"github.com/marcodd23/go-txscope/pkg/logx"
)

// DefaultPoolWaitTimeout bounds the wait for a pooled connection when no timeout is configured.
const DefaultPoolWaitTimeout = 500 * time.Millisecond

// BoundedAcquirer acquires connections from a dbx.Pool with a maximum wait.
//
// A timed out acquisition stays queued inside the pool: when its connection eventually
// arrives it is released straight back.
type BoundedAcquirer struct {
	pool    dbx.Pool
	timeout time.Duration
}

// NewBoundedAcquirer creates a BoundedAcquirer.
// A zero timeout means DefaultPoolWaitTimeout, a negative one disables the bound.
func NewBoundedAcquirer(pool dbx.Pool, timeout time.Duration) *BoundedAcquirer {
	if timeout == 0 {
		timeout = DefaultPoolWaitTimeout
	}

	return &BoundedAcquirer{pool: pool, timeout: timeout}
}

type acquireResult struct {
	conn dbx.PooledConn
	err  error
}

// Acquire waits for a connection at most for the configured timeout.
//
// Returns a *errorx.PoolWaitTimeoutError when the timer fires first, and ctx.Err()
// when ctx is done first.
func (a *BoundedAcquirer) Acquire(ctx context.Context) (dbx.PooledConn, error) {
	if a.timeout < 0 {
		return a.pool.Acquire(ctx)
	}

	start := time.Now()
	results := make(chan acquireResult, 1)

	go func() {
		conn, err := a.pool.Acquire(context.WithoutCancel(ctx))
		results <- acquireResult{conn: conn, err: err}
	}()

	timer := time.NewTimer(a.timeout)
	defer timer.Stop()

	select {
	case res := <-results:
		return res.conn, res.err
	case <-timer.C:
		elapsed := time.Since(start)
		a.releaseLate(ctx, results)
		logx.GetLogger().LogWarning(ctx, fmt.Sprintf("get connection timeout after %dms", elapsed.Milliseconds()))

		return nil, errorx.NewPoolWaitTimeoutError(elapsed)
	case <-ctx.Done():
		a.releaseLate(ctx, results)
		return nil, ctx.Err()
	}
}

func (a *BoundedAcquirer) releaseLate(ctx context.Context, results <-chan acquireResult) {
	go func() {
		res := <-results
		if res.err != nil {
			return
		}

		logx.GetLogger().LogDebug(ctx, fmt.Sprintf("releasing connection %d acquired after timeout", res.conn.ID()))
		res.conn.Release()
	}()
}
