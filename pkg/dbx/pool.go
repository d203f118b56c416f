package dbx

import (
	"context"
)

// PooledConn defines the contract of one physical database connection borrowed from a Pool.
//
// A PooledConn is owned exclusively by the caller that acquired it until Release is called. It is not safe
// for concurrent use: callers must serialize the statements issued on it.
//
// Responsibilities of PooledConn include:
//   - Executing SQL statements and returning their materialized Result.
//   - Starting, committing and rolling back a transaction on the underlying session.
//   - Giving the physical connection back to the pool, exactly once.
//   - Exposing the session identity (the backend process id for PostgreSQL).
type PooledConn interface {
	Query(ctx context.Context, sql string, args ...any) (*Result, error)
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Release()
	ID() uint32
}

// Pool defines the contract of a connection pool.
//
// Acquire may block for as long as the pool needs to free a slot: bounding the wait is
// the responsibility of the caller.
//
// Example Implementation:
//
//	pgxdb.Pool wraps a pgxpool.Pool, adding queue limits, fail-fast acquisition and lifecycle events.
type Pool interface {
	Acquire(ctx context.Context) (PooledConn, error)
	Stats() PoolStats
	OnEvent(listener EventListener)
	Close()
}

// PoolStats is a snapshot of the pool occupancy.
type PoolStats struct {
	AllConnections  int `json:"allConnections"`
	FreeConnections int `json:"freeConnections"`
	ConnectionQueue int `json:"connectionQueue"`
	BusyConnections int `json:"busyConnections"`
}

// EventType identifies a pool lifecycle event.
type EventType string

const (
	EventConnectionNew EventType = "connection"
	EventEnqueue       EventType = "enqueue"
	EventAcquire       EventType = "acquire"
	EventRelease       EventType = "release"
)

// PoolEvent is published by a Pool for observability only.
// ConnID is zero for EventEnqueue.
type PoolEvent struct {
	Type   EventType
	ConnID uint32
}

// EventListener receives pool lifecycle events. Listeners run synchronously on the
// goroutine that triggered the event and must not block.
type EventListener func(event PoolEvent)
