package rds

import (
	"time"

	"github.com/marcodd23/go-txscope/pkg/configx"
	"github.com/marcodd23/go-txscope/pkg/dbx"
)

// Options configures a Client.
type Options struct {
	// Pool is used by New to open the pgx pool, NewWithPool ignores it.
	Pool dbx.PoolConfig
	// PoolWaitTimeout bounds the wait for a pooled connection: 0 means DefaultPoolWaitTimeout,
	// a negative value waits as long as the pool does.
	PoolWaitTimeout time.Duration
	// Storage carries the scope transactions, a private one is created when nil.
	Storage *Storage
	// StorageKey binds this client's transactions inside Storage, DefaultStorageKey when empty.
	StorageKey StorageKey
	// Logging receives every statement, when nil statements are logged at debug level.
	Logging LoggingFunc
}

// OptionsFromConfig maps the database section of the configuration to client Options.
func OptionsFromConfig(cfg configx.Config) Options {
	db := cfg.GetDatabaseConfig()
	if db == nil {
		return Options{Pool: dbx.NewPoolConfig()}
	}

	pool := dbx.NewPoolConfig()
	pool.VpcDirectConnection = db.VpcDirectConnection
	pool.IsLocalEnv = cfg.IsLocalEnvironment()
	pool.Host = db.Host
	pool.Port = db.Port
	pool.DBName = db.Name
	pool.User = db.User
	pool.Password = db.Password
	pool.ConnectionLimit = db.ConnectionLimit
	pool.IdleTimeout = db.IdleTimeout
	pool.QueueLimit = db.QueueLimit
	pool.WaitForConnections = db.WaitForConnections
	pool.ConnectTimeout = db.ConnectTimeout

	return Options{
		Pool:            pool.WithDefaults(),
		PoolWaitTimeout: db.PoolWaitTimeout,
		StorageKey:      StorageKey(db.StorageKey),
	}
}

func (o Options) withDefaults() Options {
	if o.Storage == nil {
		o.Storage = NewStorage("rds")
	}

	if o.StorageKey == "" {
		o.StorageKey = DefaultStorageKey
	}

	if o.PoolWaitTimeout == 0 {
		o.PoolWaitTimeout = DefaultPoolWaitTimeout
	}

	return o
}
