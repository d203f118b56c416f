package pgxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marcodd23/go-txscope/pkg/dbx"
	"github.com/marcodd23/go-txscope/pkg/errorx"
	"github.com/marcodd23/go-txscope/pkg/logx"
	"github.com/pkg/errors"
)

//###################################
//#    Pool - pgxpool dbx.Pool      #
//###################################

// Pool - pgxpool backed connection pool.
// It Implements dbx.Pool
type Pool struct {
	pool    *pgxpool.Pool
	cfg     dbx.PoolConfig
	waiting atomic.Int64
	closed  atomic.Bool

	mu        sync.RWMutex
	listeners []dbx.EventListener
}

// NewPool creates a pgxpool connection pool from the given configuration.
//
// The pool connects lazily: no physical connection is opened until the first Acquire.
//
// Arguments:
//   - ctx: The context used while building the pool.
//   - cfg: The pool configuration. Zero-valued limits are replaced with their defaults.
//
// Returns:
//   - *Pool: The pool, ready to be used by rds.Client.
//   - error: A configuration error, or the error returned by pgxpool.
//
// Example Usage:
//
//	cfg := dbx.NewPoolConfig()
//	cfg.Host, cfg.Port, cfg.DBName, cfg.User, cfg.Password = "localhost", 5432, "main-db", "postgres", "password"
//	pool, err := pgxdb.NewPool(ctx, cfg)
//	if err != nil {
//	    log.Fatal("Failed to create pool:", err)
//	}
//	defer pool.Close()
func NewPool(ctx context.Context, cfg dbx.PoolConfig) (*Pool, error) {
	cfg = cfg.WithDefaults()

	poolConfig, err := createConnectionConfiguration(cfg)
	if err != nil {
		return nil, err
	}

	p := &Pool{cfg: cfg}

	if cfg.GetConnectionConfig != nil {
		poolConfig.BeforeConnect = func(ctx context.Context, connConfig *pgx.ConnConfig) error {
			applyConnOverride(connConfig, cfg.GetConnectionConfig())
			return nil
		}
	}

	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if err := setupPreparedStatements(ctx, conn, cfg.PreparedStatements...); err != nil {
			return err
		}

		p.emit(dbx.PoolEvent{Type: dbx.EventConnectionNew, ConnID: conn.PgConn().PID()})
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "Error creating New Connection Pool")
	}

	p.pool = pool

	logx.GetLogger().LogInfo(ctx, fmt.Sprintf("Created new Connection Pool: DB=%s, HOST=%s, PORT=%d, LIMIT=%d",
		poolConfig.ConnConfig.Database,
		poolConfig.ConnConfig.Host,
		poolConfig.ConnConfig.Port,
		poolConfig.MaxConns))

	return p, nil
}

func createConnectionConfiguration(cfg dbx.PoolConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig("")
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "Error parsing default Connection Pool Config")
	}

	if cfg.DBName == "" {
		return nil, errorx.NewDatabaseError("Error creating Connection Pool Config: DB_Name is EMPTY")
	}

	if cfg.User == "" {
		return nil, errorx.NewDatabaseError("Error creating Connection Pool Config: DB_User is EMPTY")
	}

	if cfg.Password == "" && cfg.GetConnectionConfig == nil {
		return nil, errorx.NewDatabaseError("Error creating Connection Pool Config: DB_Password is EMPTY")
	}

	poolConfig.ConnConfig.Database = cfg.DBName
	poolConfig.ConnConfig.User = cfg.User
	poolConfig.ConnConfig.Password = cfg.Password
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	poolConfig.MaxConns = cfg.ConnectionLimit
	poolConfig.MinConns = 0
	poolConfig.MaxConnIdleTime = cfg.IdleTimeout

	if cfg.IsLocalEnv || cfg.VpcDirectConnection {
		// Locally the port is explicit, otherwise it comes from the
		// Cloud SQL unix socket mounted in the container (5432)
		poolConfig.ConnConfig.Port = uint16(cfg.Port)
		poolConfig.ConnConfig.Host = cfg.Host
	} else {
		poolConfig.ConnConfig.Host = fmt.Sprintf("/cloudsql/%s", cfg.Host)
	}

	return poolConfig, nil
}

func applyConnOverride(connConfig *pgx.ConnConfig, override dbx.ConnOverride) {
	if override.Host != "" {
		connConfig.Host = override.Host
	}

	if override.Port != 0 {
		connConfig.Port = uint16(override.Port)
	}

	if override.DBName != "" {
		connConfig.Database = override.DBName
	}

	if override.User != "" {
		connConfig.User = override.User
	}

	if override.Password != "" {
		connConfig.Password = override.Password
	}
}

func setupPreparedStatements(ctx context.Context, conn *pgx.Conn, preparesStatements ...dbx.PreparedStatement) error {
	for _, stmt := range preparesStatements {
		_, err := conn.Prepare(ctx, stmt.GetName(), stmt.GetQuery())
		if err != nil {
			return errorx.NewDatabaseErrorWrapper(err, "Failed to prepare statement '%s'", stmt.GetName())
		}
	}

	return nil
}

// Acquire borrows a connection from the pool.
//
// When the pool is exhausted the call waits for a free slot, unless waiting is disabled
// (ErrNoConnectionsAvailable) or the wait queue is full (ErrQueueLimitReached).
// The wait itself is unbounded: rds.BoundedAcquirer puts a limit on it.
func (p *Pool) Acquire(ctx context.Context) (dbx.PooledConn, error) {
	if p.closed.Load() {
		return nil, errorx.ErrPoolClosed
	}

	if p.exhausted() {
		if !p.cfg.WaitForConnections {
			return nil, errorx.ErrNoConnectionsAvailable
		}

		if p.cfg.QueueLimit > 0 && p.waiting.Load() >= int64(p.cfg.QueueLimit) {
			return nil, errorx.ErrQueueLimitReached
		}

		p.waiting.Add(1)
		defer p.waiting.Add(-1)
		p.emit(dbx.PoolEvent{Type: dbx.EventEnqueue})
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		if p.closed.Load() {
			return nil, errorx.ErrPoolClosed
		}

		logx.GetLogger().LogError(ctx, "Error acquiring connection from pool", err)
		return nil, errors.Wrap(err, "Error acquiring connection from pool")
	}

	pc := &pooledConn{conn: conn, pool: p, id: conn.Conn().PgConn().PID()}
	p.emit(dbx.PoolEvent{Type: dbx.EventAcquire, ConnID: pc.id})

	return pc, nil
}

func (p *Pool) exhausted() bool {
	stat := p.pool.Stat()
	return stat.IdleConns() == 0 && stat.TotalConns() >= stat.MaxConns()
}

// Stats returns the pool occupancy snapshot.
func (p *Pool) Stats() dbx.PoolStats {
	stat := p.pool.Stat()
	all := int(stat.TotalConns())
	free := int(stat.IdleConns())

	return dbx.PoolStats{
		AllConnections:  all,
		FreeConnections: free,
		ConnectionQueue: int(p.waiting.Load()),
		BusyConnections: all - free,
	}
}

// OnEvent registers a lifecycle event listener.
func (p *Pool) OnEvent(listener dbx.EventListener) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.listeners = append(p.listeners, listener)
}

func (p *Pool) emit(event dbx.PoolEvent) {
	p.mu.RLock()
	listeners := p.listeners
	p.mu.RUnlock()

	for _, l := range listeners {
		l(event)
	}
}

// Close rejects future acquisitions and closes the pool.
// It blocks until every borrowed connection has been released.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}

	p.pool.Close()
	logx.GetLogger().LogInfo(context.TODO(), "DB Connection Pool Successfully Closed!")
}
