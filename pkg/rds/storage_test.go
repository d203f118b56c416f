package rds_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/marcodd23/go-txscope/pkg/rds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage_RunIsIdempotentWithinAChain(t *testing.T) {
	storage := rds.NewStorage("test")
	ctx := context.Background()

	chain := storage.Run(ctx)
	assert.NotEqual(t, ctx, chain)
	assert.Equal(t, chain, storage.Run(chain))

	other := rds.NewStorage("other")
	assert.NotEqual(t, chain, other.Run(chain))
}

func TestStorage_NoTransactionOutsideScope(t *testing.T) {
	storage := rds.NewStorage("test")

	assert.Nil(t, storage.Transaction(context.Background(), rds.DefaultStorageKey))
	assert.Nil(t, storage.Transaction(storage.Run(context.Background()), rds.DefaultStorageKey))
}

func TestStorage_BindingClearedAfterScope(t *testing.T) {
	storage := rds.NewStorage("test")
	client, _ := newTestClient(1, rds.Options{Storage: storage})

	chain := storage.Run(context.Background())

	_, err := client.BeginTransactionScope(chain, func(ctx context.Context, tx *rds.Transaction) (any, error) {
		assert.Same(t, tx, storage.Transaction(ctx, rds.DefaultStorageKey))
		return nil, nil
	})
	assert.NoError(t, err)

	assert.Nil(t, storage.Transaction(chain, rds.DefaultStorageKey))
}

func TestStorage_LookupDoesNotWaitForABeginningTransaction(t *testing.T) {
	storage := rds.NewStorage("test")
	client, pool := newTestClient(1, rds.Options{Storage: storage, PoolWaitTimeout: 2 * time.Second})

	held, err := client.GetConnection(context.Background())
	require.NoError(t, err)

	chain := storage.Run(context.Background())
	scopeDone := make(chan error, 1)

	go func() {
		_, err := client.BeginTransactionScope(chain, func(ctx context.Context, tx *rds.Transaction) (any, error) {
			return nil, nil
		})
		scopeDone <- err
	}()

	time.Sleep(20 * time.Millisecond)

	lookup := make(chan *rds.Transaction, 1)
	go func() {
		lookup <- storage.Transaction(chain, rds.DefaultStorageKey)
	}()

	select {
	case tx := <-lookup:
		assert.Nil(t, tx)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("lookup blocked while the scope was waiting for a connection")
	}

	held.Release()
	require.NoError(t, <-scopeDone)
	assert.Equal(t, 1, pool.Conn(1).Counts().commits)
}

func TestStorage_ConcurrentFirstScopesOfAChainShareTheTransaction(t *testing.T) {
	storage := rds.NewStorage("test")
	client, pool := newTestClient(2, rds.Options{Storage: storage})
	chain := storage.Run(context.Background())

	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
		txs     = make([]*rds.Transaction, 2)
	)

	started.Add(2)
	for i := range txs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			_, err := client.BeginTransactionScope(chain, func(ctx context.Context, tx *rds.Transaction) (any, error) {
				txs[i] = tx
				started.Done()
				started.Wait()

				return nil, nil
			})
			assert.NoError(t, err)
		}(i)
	}

	wg.Wait()

	assert.Same(t, txs[0], txs[1])
	require.Len(t, pool.Conns(), 1)
	assert.Equal(t, connCounts{begins: 1, commits: 1, releases: 1}, pool.Conn(0).Counts())
	assert.Nil(t, storage.Transaction(chain, rds.DefaultStorageKey))
}
