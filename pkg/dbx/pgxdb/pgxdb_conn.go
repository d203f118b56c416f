package pgxdb

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marcodd23/go-txscope/pkg/dbx"
	"github.com/marcodd23/go-txscope/pkg/errorx"
	"github.com/marcodd23/go-txscope/pkg/logx"
)

//###################################
//#     Postgres pooled connection  #
//###################################

// pooledConn - one borrowed pgxpool connection, with the transaction opened on it if any.
// It implements dbx.PooledConn
type pooledConn struct {
	conn     *pgxpool.Conn
	tx       pgx.Tx
	pool     *Pool
	id       uint32
	released atomic.Bool
}

// Query executes sql on the connection, inside the open transaction if Begin was called,
// and reads the whole result before returning.
//
// Driver errors (*pgconn.PgError) are returned unmodified.
func (c *pooledConn) Query(ctx context.Context, sql string, args ...any) (*dbx.Result, error) {
	if c.released.Load() {
		return nil, errorx.ErrConnectionReleased
	}

	var (
		rows pgx.Rows
		err  error
	)

	if c.tx != nil {
		rows, err = c.tx.Query(ctx, sql, args...)
	} else {
		rows, err = c.conn.Query(ctx, sql, args...)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &dbx.Result{}
	for _, fd := range rows.FieldDescriptions() {
		result.Columns = append(result.Columns, fd.Name)
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, errorx.NewDatabaseErrorWrapper(err, "Error reading row Values")
		}

		result.Rows = append(result.Rows, values)
	}

	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tag := rows.CommandTag()
	result.RowsAffected = tag.RowsAffected()
	result.CommandTag = tag.String()

	return result, nil
}

// Begin starts a transaction on the connection.
func (c *pooledConn) Begin(ctx context.Context) error {
	if c.tx != nil {
		return errorx.NewDatabaseError("transaction already in progress on connection %d", c.id)
	}

	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return err
	}

	c.tx = tx
	return nil
}

// Commit commits the open transaction.
func (c *pooledConn) Commit(ctx context.Context) error {
	if c.tx == nil {
		return errorx.NewDatabaseError("no transaction in progress on connection %d", c.id)
	}

	tx := c.tx
	c.tx = nil

	return tx.Commit(ctx)
}

// Rollback rolls back the open transaction.
func (c *pooledConn) Rollback(ctx context.Context) error {
	if c.tx == nil {
		return errorx.NewDatabaseError("no transaction in progress on connection %d", c.id)
	}

	tx := c.tx
	c.tx = nil

	if err := tx.Rollback(ctx); err != nil {
		return err
	}

	logx.GetLogger().LogDebug(ctx, fmt.Sprintf("Rollback transaction on connection: %d", c.id))
	return nil
}

// Release gives the connection back to the pool. Only the first call has an effect.
// A connection released with a transaction still open is closed by pgxpool instead of reused.
func (c *pooledConn) Release() {
	if !c.released.CompareAndSwap(false, true) {
		logx.GetLogger().LogError(context.TODO(), fmt.Sprintf("connection %d released twice", c.id))
		return
	}

	c.conn.Release()
	c.pool.emit(dbx.PoolEvent{Type: dbx.EventRelease, ConnID: c.id})
}

// ID returns the backend process id of the session.
func (c *pooledConn) ID() uint32 {
	return c.id
}
