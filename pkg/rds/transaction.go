package rds

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/marcodd23/go-txscope/pkg/dbx"
	"github.com/marcodd23/go-txscope/pkg/errorx"
	"github.com/marcodd23/go-txscope/pkg/logx"
)

type txState int

const (
	txActive txState = iota
	txCommitted
	txRolledBack
)

func (s txState) String() string {
	switch s {
	case txActive:
		return "active"
	case txCommitted:
		return "committed"
	case txRolledBack:
		return "rolled-back"
	default:
		return "unknown"
	}
}

type scopeAction int

const (
	actionNone scopeAction = iota
	actionCommit
	actionRollback
)

func (a scopeAction) String() string {
	switch a {
	case actionCommit:
		return "commit"
	case actionRollback:
		return "rollback"
	default:
		return "none"
	}
}

// Transaction is a database transaction running on one borrowed Connection.
//
// Once committed or rolled back every operation fails with errorx.ErrTransactionFinalized,
// and the connection has been given back to the pool.
type Transaction struct {
	operator

	id      string
	mu      sync.Mutex
	conn    *Connection
	state   txState
	counter int
}

func newTransaction(conn *Connection) *Transaction {
	tx := &Transaction{
		id:      uuid.NewString(),
		conn:    conn,
		state:   txActive,
		counter: 1,
	}
	tx.operator = operator{q: tx}

	return tx
}

// ID identifies the transaction in logs.
func (tx *Transaction) ID() string {
	return tx.id
}

// HasConn reports whether the transaction still holds its connection, false once finalized.
func (tx *Transaction) HasConn() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	return tx.conn != nil
}

// Active reports whether the transaction can still run statements.
func (tx *Transaction) Active() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	return tx.state == txActive
}

func (tx *Transaction) current() (*Connection, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.state != txActive || tx.conn == nil {
		return nil, errorx.ErrTransactionFinalized
	}

	return tx.conn, nil
}

// Query runs sql inside the transaction.
func (tx *Transaction) Query(ctx context.Context, sql string, args ...any) (*dbx.Result, error) {
	conn, err := tx.current()
	if err != nil {
		return nil, err
	}

	res, err := conn.Query(ctx, sql, args...)
	if errors.Is(err, errorx.ErrConnectionReleased) {
		return nil, errorx.ErrTransactionFinalized
	}

	return res, err
}

// BeforeQuery registers a hook on the transaction connection.
func (tx *Transaction) BeforeQuery(hook BeforeQueryHook) {
	if conn, err := tx.current(); err == nil {
		conn.BeforeQuery(hook)
	}
}

// AfterQuery registers a hook on the transaction connection.
func (tx *Transaction) AfterQuery(hook AfterQueryHook) {
	if conn, err := tx.current(); err == nil {
		conn.AfterQuery(hook)
	}
}

// Commit commits the transaction and releases its connection, whatever the outcome.
func (tx *Transaction) Commit(ctx context.Context) error {
	conn, err := tx.claim(txCommitted)
	if err != nil {
		return err
	}

	return tx.finalize(ctx, conn, actionCommit)
}

// Rollback rolls back the transaction and releases its connection, whatever the outcome.
func (tx *Transaction) Rollback(ctx context.Context) error {
	conn, err := tx.claim(txRolledBack)
	if err != nil {
		return err
	}

	return tx.finalize(ctx, conn, actionRollback)
}

// claim moves an active transaction to a terminal state and hands its connection to the caller,
// which becomes the only one allowed to finalize and release it.
func (tx *Transaction) claim(state txState) (*Connection, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.state != txActive || tx.conn == nil {
		return nil, errorx.ErrTransactionFinalized
	}

	conn := tx.conn
	tx.conn = nil
	tx.state = state

	return conn, nil
}

func (tx *Transaction) finalize(ctx context.Context, conn *Connection, action scopeAction) error {
	defer conn.Release()

	var err error
	if action == actionCommit {
		err = conn.Commit(ctx)
	} else {
		err = conn.Rollback(ctx)
	}

	if err != nil {
		logx.GetLogger().LogError(ctx, fmt.Sprintf("transaction %s: %s failed", tx.id, action), err)
		return err
	}

	logx.GetLogger().LogDebug(ctx, fmt.Sprintf("transaction %s: %s on connection %d", tx.id, action, conn.ID()))
	return nil
}

func (tx *Transaction) enterScope() {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	tx.counter++
}

// finishScope closes one scope: it decrements the nesting counter and decides, in the same
// critical section, whether this scope finalizes the transaction.
// When it does, the connection is claimed and returned with the action to run on it.
func (tx *Transaction) finishScope(failed, doomed bool) (scopeAction, *Connection, int) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	tx.counter--
	remaining := tx.counter

	if tx.state != txActive || tx.conn == nil {
		return actionNone, nil, remaining
	}

	var action scopeAction
	switch {
	case failed:
		action = actionRollback
	case remaining < 1 && doomed:
		action = actionRollback
	case remaining < 1:
		action = actionCommit
	default:
		return actionNone, nil, remaining
	}

	conn := tx.conn
	tx.conn = nil
	if action == actionCommit {
		tx.state = txCommitted
	} else {
		tx.state = txRolledBack
	}

	return action, conn, remaining
}
