package rds

import (
	"context"
	"fmt"

	"github.com/marcodd23/go-txscope/pkg/errorx"
)

// Work is the body of a transaction scope. ctx must be passed on to nested scopes
// so they join tx instead of starting their own transaction.
type Work func(ctx context.Context, tx *Transaction) (any, error)

// ScopeManager runs Work inside a transaction shared by every nested scope of the same call chain.
//
// The outermost scope begins the transaction. Each scope bumps the nesting counter on entry
// and drops it on exit; a failing scope rolls back for everybody, the scope that brings
// the counter back to zero without errors commits.
type ScopeManager struct {
	storage *Storage
	key     StorageKey
	begin   func(ctx context.Context) (*Transaction, error)
}

// NewScopeManager creates a ScopeManager binding its transactions under key in storage.
// begin must return an active transaction with nesting counter 1.
func NewScopeManager(storage *Storage, key StorageKey, begin func(ctx context.Context) (*Transaction, error)) *ScopeManager {
	return &ScopeManager{storage: storage, key: key, begin: begin}
}

// Run executes work in a transaction scope and commits when the outermost scope succeeds.
//
// A commit or rollback failure is returned as *errorx.FinalizationError, carrying the work
// error as cause when there is one. A panic in work rolls back and is re-raised.
func (m *ScopeManager) Run(ctx context.Context, work Work) (any, error) {
	return m.run(ctx, work, false)
}

// RunDoomed behaves like Run but rolls back where Run would commit.
func (m *ScopeManager) RunDoomed(ctx context.Context, work Work) (any, error) {
	return m.run(ctx, work, true)
}

func (m *ScopeManager) run(ctx context.Context, work Work, doomed bool) (any, error) {
	ctx = m.storage.Run(ctx)
	sc := m.storage.from(ctx)

	tx, err := sc.enter(m.key, func() (*Transaction, error) {
		return m.begin(ctx)
	})
	if err != nil {
		return nil, err
	}

	result, panicked, workErr := invoke(ctx, tx, work)

	action, conn, remaining := tx.finishScope(workErr != nil, doomed)

	var finErr error
	if action != actionNone {
		finErr = tx.finalize(ctx, conn, action)
	}

	// The owner is the last to leave unless scopes of the chain run in parallel goroutines.
	if remaining < 1 {
		sc.unbind(m.key, tx)
	}

	if panicked != nil {
		panic(panicked)
	}

	if finErr != nil {
		return nil, errorx.NewFinalizationError(action.String(), finErr, workErr)
	}

	if workErr != nil {
		return nil, workErr
	}

	return result, nil
}

func invoke(ctx context.Context, tx *Transaction, work Work) (result any, panicked any, err error) {
	defer func() {
		if r := recover(); r != nil {
			panicked = r
			err = fmt.Errorf("transaction scope panicked: %v", r)
		}
	}()

	result, err = work(ctx, tx)
	return result, nil, err
}
