package dbx

import (
	"time"
)

const (
	DefaultConnectionLimit = 10
	DefaultIdleTimeout     = 60 * time.Second
	DefaultConnectTimeout  = 500 * time.Millisecond
)

// PoolConfig represents the configuration required to open a connection pool.
type PoolConfig struct {
	VpcDirectConnection bool
	Host                string
	Port                int32
	DBName              string
	User                string
	Password            string
	IsLocalEnv          bool

	// ConnectionLimit is the maximum number of physical connections.
	ConnectionLimit int32
	// IdleTimeout closes connections idle for longer than this.
	IdleTimeout time.Duration
	// QueueLimit bounds the number of callers waiting for a connection, 0 means unlimited.
	QueueLimit int
	// WaitForConnections makes Acquire wait for a free slot instead of failing immediately.
	WaitForConnections bool
	ConnectTimeout     time.Duration

	// GetConnectionConfig is consulted before opening every new physical connection.
	GetConnectionConfig func() ConnOverride
	PreparedStatements  []PreparedStatement
}

// ConnOverride carries connection settings resolved at dial time. Empty fields keep the static value.
type ConnOverride struct {
	Host     string
	Port     int32
	DBName   string
	User     string
	Password string
}

// NewPoolConfig returns a PoolConfig populated with the default pool settings.
func NewPoolConfig() PoolConfig {
	return PoolConfig{
		ConnectionLimit:    DefaultConnectionLimit,
		IdleTimeout:        DefaultIdleTimeout,
		WaitForConnections: true,
		ConnectTimeout:     DefaultConnectTimeout,
	}
}

// WithDefaults fills the zero-valued numeric settings with their defaults.
func (c PoolConfig) WithDefaults() PoolConfig {
	if c.ConnectionLimit <= 0 {
		c.ConnectionLimit = DefaultConnectionLimit
	}

	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}

	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}

	if c.QueueLimit < 0 {
		c.QueueLimit = 0
	}

	return c
}
