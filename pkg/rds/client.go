package rds

import (
	"context"

	"github.com/marcodd23/go-txscope/pkg/dbx"
	"github.com/marcodd23/go-txscope/pkg/dbx/pgxdb"
	"github.com/marcodd23/go-txscope/pkg/errorx"
	"github.com/marcodd23/go-txscope/pkg/logx"
)

// Client runs statements on a connection pool, directly, in explicit transactions or in
// transaction scopes propagated through context.Context.
type Client struct {
	operator

	pool     dbx.Pool
	acquirer *BoundedAcquirer
	storage  *Storage
	key      StorageKey
	hooks    *hookSet
	logging  LoggingFunc
	scopes   *ScopeManager
}

// QueryOptions overrides how Client.QueryWithOptions picks its connection.
type QueryOptions struct {
	// Conn runs the statement on the given Connection or Transaction, ignoring any scope transaction.
	Conn Queryer
}

// New opens a pgx pool with opts.Pool and returns a Client on it.
func New(ctx context.Context, opts Options) (*Client, error) {
	pool, err := pgxdb.NewPool(ctx, opts.Pool)
	if err != nil {
		return nil, err
	}

	return NewWithPool(pool, opts), nil
}

// NewWithPool returns a Client on an existing pool.
func NewWithPool(pool dbx.Pool, opts Options) *Client {
	opts = opts.withDefaults()

	c := &Client{
		pool:     pool,
		acquirer: NewBoundedAcquirer(pool, opts.PoolWaitTimeout),
		storage:  opts.Storage,
		key:      opts.StorageKey,
		hooks:    &hookSet{},
		logging:  opts.Logging,
	}
	c.operator = operator{q: c}
	c.scopes = NewScopeManager(c.storage, c.key, c.BeginTransaction)

	return c
}

// Query runs sql in the scope transaction of ctx if there is one, otherwise on a
// connection borrowed for this statement only.
func (c *Client) Query(ctx context.Context, sql string, args ...any) (*dbx.Result, error) {
	return c.QueryWithOptions(ctx, QueryOptions{}, sql, args...)
}

// QueryWithOptions runs sql on opts.Conn when set, otherwise like Query.
func (c *Client) QueryWithOptions(ctx context.Context, opts QueryOptions, sql string, args ...any) (*dbx.Result, error) {
	if opts.Conn != nil {
		return opts.Conn.Query(ctx, sql, args...)
	}

	if tx := c.storage.Transaction(ctx, c.key); tx != nil {
		return tx.Query(ctx, sql, args...)
	}

	conn, err := c.GetConnection(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	return conn.Query(ctx, sql, args...)
}

// GetConnection borrows a connection. The caller must Release it.
//
// Returns a *errorx.PoolWaitTimeoutError when the pool wait expires, and a
// *errorx.GetConnectionError for any other acquisition failure.
func (c *Client) GetConnection(ctx context.Context) (*Connection, error) {
	pc, err := c.acquirer.Acquire(ctx)
	if err != nil {
		if errorx.IsPoolWaitTimeout(err) {
			return nil, err
		}

		logx.GetLogger().LogError(ctx, "Error getting connection", err)
		return nil, errorx.NewGetConnectionError(err)
	}

	return newConnection(pc, c.hooks, c.logging), nil
}

// BeginTransaction borrows a connection and starts a transaction on it.
// The transaction owns the connection until Commit or Rollback.
func (c *Client) BeginTransaction(ctx context.Context) (*Transaction, error) {
	conn, err := c.GetConnection(ctx)
	if err != nil {
		return nil, err
	}

	if err := conn.Begin(ctx); err != nil {
		conn.Release()
		logx.GetLogger().LogError(ctx, "Error beginning transaction", err)
		return nil, errorx.NewGetConnectionError(err)
	}

	return newTransaction(conn), nil
}

// BeginTransactionScope runs work in the scope transaction of ctx, beginning one when ctx has none.
func (c *Client) BeginTransactionScope(ctx context.Context, work Work) (any, error) {
	return c.scopes.Run(ctx, work)
}

// BeginDoomedTransactionScope runs work in a scope that always ends with a rollback.
// Useful to keep test data out of the database.
func (c *Client) BeginDoomedTransactionScope(ctx context.Context, work Work) (any, error) {
	return c.scopes.RunDoomed(ctx, work)
}

// ScopeValue runs work with BeginTransactionScope and returns its typed result.
func ScopeValue[T any](ctx context.Context, c *Client, work func(ctx context.Context, tx *Transaction) (T, error)) (T, error) {
	var zero T

	res, err := c.BeginTransactionScope(ctx, func(ctx context.Context, tx *Transaction) (any, error) {
		v, err := work(ctx, tx)
		return v, err
	})
	if err != nil {
		return zero, err
	}

	v, ok := res.(T)
	if !ok {
		return zero, nil
	}

	return v, nil
}

// Stats returns the pool occupancy.
func (c *Client) Stats() dbx.PoolStats {
	return c.pool.Stats()
}

// OnPoolEvent registers a listener of the pool lifecycle events.
func (c *Client) OnPoolEvent(listener dbx.EventListener) {
	c.pool.OnEvent(listener)
}

// BeforeQuery registers a hook copied onto every connection borrowed afterwards.
func (c *Client) BeforeQuery(hook BeforeQueryHook) {
	c.hooks.addBefore(hook)
}

// AfterQuery registers a hook copied onto every connection borrowed afterwards.
func (c *Client) AfterQuery(hook AfterQueryHook) {
	c.hooks.addAfter(hook)
}

// StorageKey returns the key binding this client's scope transactions.
func (c *Client) StorageKey() StorageKey {
	return c.key
}

// End closes the pool. Later acquisitions fail with errorx.ErrPoolClosed.
func (c *Client) End() {
	c.pool.Close()
}
