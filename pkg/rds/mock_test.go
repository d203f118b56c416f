package rds_test

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/marcodd23/go-txscope/pkg/dbx"
	"github.com/marcodd23/go-txscope/pkg/errorx"
)

// MockConn - mock a dbx.PooledConn, counting every call.
type MockConn struct {
	id   uint32
	pool *MockPool

	queryFunc    func(ctx context.Context, sql string, args ...any) (*dbx.Result, error)
	beginFunc    func(ctx context.Context) error
	commitFunc   func(ctx context.Context) error
	rollbackFunc func(ctx context.Context) error

	mu        sync.Mutex
	queries   []string
	begins    int
	commits   int
	rollbacks int
	releases  int
}

func (c *MockConn) Query(ctx context.Context, sql string, args ...any) (*dbx.Result, error) {
	c.mu.Lock()
	c.queries = append(c.queries, sql)
	c.mu.Unlock()

	if c.queryFunc != nil {
		return c.queryFunc(ctx, sql, args...)
	}

	return &dbx.Result{}, nil
}

func (c *MockConn) Begin(ctx context.Context) error {
	c.mu.Lock()
	c.begins++
	c.mu.Unlock()

	if c.beginFunc != nil {
		return c.beginFunc(ctx)
	}

	return nil
}

func (c *MockConn) Commit(ctx context.Context) error {
	c.mu.Lock()
	c.commits++
	c.mu.Unlock()

	if c.commitFunc != nil {
		return c.commitFunc(ctx)
	}

	return nil
}

func (c *MockConn) Rollback(ctx context.Context) error {
	c.mu.Lock()
	c.rollbacks++
	c.mu.Unlock()

	if c.rollbackFunc != nil {
		return c.rollbackFunc(ctx)
	}

	return nil
}

func (c *MockConn) Release() {
	c.mu.Lock()
	c.releases++
	c.mu.Unlock()

	c.pool.slots <- struct{}{}
}

func (c *MockConn) ID() uint32 {
	return c.id
}

func (c *MockConn) Queries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.queries...)
}

type connCounts struct {
	begins, commits, rollbacks, releases int
}

func (c *MockConn) Counts() connCounts {
	c.mu.Lock()
	defer c.mu.Unlock()

	return connCounts{begins: c.begins, commits: c.commits, rollbacks: c.rollbacks, releases: c.releases}
}

// MockPool - mock a dbx.Pool with a fixed number of slots. Acquire blocks while every slot is busy.
type MockPool struct {
	slots    chan struct{}
	capacity int
	nextID   atomic.Uint32
	closed   atomic.Bool

	// configureFunc customizes every new MockConn.
	configureFunc func(conn *MockConn)

	mu        sync.Mutex
	conns     []*MockConn
	listeners []dbx.EventListener
}

func NewMockPool(capacity int) *MockPool {
	p := &MockPool{slots: make(chan struct{}, capacity), capacity: capacity}
	for i := 0; i < capacity; i++ {
		p.slots <- struct{}{}
	}

	return p
}

func (p *MockPool) Acquire(ctx context.Context) (dbx.PooledConn, error) {
	if p.closed.Load() {
		return nil, errorx.ErrPoolClosed
	}

	select {
	case <-p.slots:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	conn := &MockConn{id: p.nextID.Add(1), pool: p}
	if p.configureFunc != nil {
		p.configureFunc(conn)
	}

	p.mu.Lock()
	p.conns = append(p.conns, conn)
	listeners := p.listeners
	p.mu.Unlock()

	for _, l := range listeners {
		l(dbx.PoolEvent{Type: dbx.EventAcquire, ConnID: conn.id})
	}

	return conn, nil
}

func (p *MockPool) Stats() dbx.PoolStats {
	free := len(p.slots)
	return dbx.PoolStats{
		AllConnections:  p.capacity,
		FreeConnections: free,
		BusyConnections: p.capacity - free,
	}
}

func (p *MockPool) OnEvent(listener dbx.EventListener) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.listeners = append(p.listeners, listener)
}

func (p *MockPool) Close() {
	p.closed.Store(true)
}

func (p *MockPool) Conns() []*MockConn {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]*MockConn(nil), p.conns...)
}

func (p *MockPool) Conn(i int) *MockConn {
	return p.Conns()[i]
}
