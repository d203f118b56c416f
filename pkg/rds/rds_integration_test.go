//go:build integration

package rds_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/marcodd23/go-txscope/pkg/errorx"
	"github.com/marcodd23/go-txscope/pkg/rds"
	"github.com/marcodd23/go-txscope/pkg/sqlbuild"
	"github.com/marcodd23/go-txscope/test/testcontainer/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIntegration(t *testing.T) {
	ctx := context.Background()

	container := postgres.StartPostgresContainer(ctx, t)
	defer container.StopContainer(ctx, t)

	const capacity = 3
	pool := postgres.SetupDatabaseConnection(ctx, t, container, capacity)

	client := rds.NewWithPool(pool, rds.Options{PoolWaitTimeout: 300 * time.Millisecond})
	defer client.End()

	countUsers := func(t *testing.T, name string) int64 {
		count, err := client.Count(ctx, "users", sqlbuild.Where{"name": name})
		require.NoError(t, err)
		return count
	}

	t.Run("TestCrudHelpers", func(t *testing.T) {
		_, err := client.Insert(ctx, "users", []map[string]any{
			{"name": "crud-1", "email": "crud1@example.com", "age": 30},
			{"name": "crud-2", "email": "crud2@example.com", "age": 40},
		})
		require.NoError(t, err)

		row, err := client.Get(ctx, "users", sqlbuild.Where{"name": "crud-1"})
		require.NoError(t, err)
		require.NotNil(t, row)

		_, err = client.Update(ctx, "users", map[string]any{"id": row["id"], "age": 31})
		require.NoError(t, err)

		res, err := client.UpdateRows(ctx, "users", []sqlbuild.UpdateRow{
			{Row: map[string]any{"id": row["id"], "email": "crud1@new.example.com"}},
			{Row: map[string]any{"email": "crud2@new.example.com"}, Where: sqlbuild.Where{"name": "crud-2"}},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), res.RowsAffected)

		res, err = client.Select(ctx, "users", sqlbuild.SelectOptions{
			Where:   sqlbuild.Where{"name": []string{"crud-1", "crud-2"}},
			Columns: []string{"name", "email", "age"},
			Orders:  []sqlbuild.Order{{Column: "name"}},
		})
		require.NoError(t, err)
		require.Equal(t, 2, res.Len())
		assert.Equal(t, map[string]any{"name": "crud-1", "email": "crud1@new.example.com", "age": int32(31)}, res.Maps()[0])

		res, err = client.Delete(ctx, "users", sqlbuild.Where{"name": []string{"crud-1", "crud-2"}})
		require.NoError(t, err)
		assert.Equal(t, int64(2), res.RowsAffected)
	})

	t.Run("TestNestedFailureRollsBackBothRows", func(t *testing.T) {
		_, err := client.BeginTransactionScope(ctx, func(ctx context.Context, tx *rds.Transaction) (any, error) {
			if _, err := tx.Insert(ctx, "users", map[string]any{"name": "nested-outer"}); err != nil {
				return nil, err
			}

			return client.BeginTransactionScope(ctx, func(ctx context.Context, tx *rds.Transaction) (any, error) {
				if _, err := client.Insert(ctx, "users", map[string]any{"name": "nested-inner"}); err != nil {
					return nil, err
				}

				return tx.Query(ctx, "INSERT INTO users (name, valuefail) VALUES ($1, $2)", "x", "y")
			})
		})

		var pgErr *pgconn.PgError
		require.True(t, errors.As(err, &pgErr))
		assert.Equal(t, "42703", pgErr.Code)

		assert.Zero(t, countUsers(t, "nested-outer"))
		assert.Zero(t, countUsers(t, "nested-inner"))
	})

	t.Run("TestScopeCommits", func(t *testing.T) {
		id, err := rds.ScopeValue(ctx, client, func(ctx context.Context, tx *rds.Transaction) (int32, error) {
			res, err := tx.Query(ctx, "INSERT INTO users (name) VALUES ($1) RETURNING id", "committed")
			if err != nil {
				return 0, err
			}

			var id int32
			return id, res.Scan(0, &id)
		})
		require.NoError(t, err)
		assert.NotZero(t, id)
		assert.Equal(t, int64(1), countUsers(t, "committed"))
	})

	t.Run("TestDoomedScope", func(t *testing.T) {
		_, err := client.BeginDoomedTransactionScope(ctx, func(ctx context.Context, tx *rds.Transaction) (any, error) {
			if _, err := client.Insert(ctx, "users", map[string]any{"name": "doomed"}); err != nil {
				return nil, err
			}

			count, err := tx.Count(ctx, "users", sqlbuild.Where{"name": "doomed"})
			assert.Equal(t, int64(1), count)

			return nil, err
		})
		require.NoError(t, err)

		assert.Zero(t, countUsers(t, "doomed"))
	})

	t.Run("TestExplicitConnBypassesScope", func(t *testing.T) {
		_, err := client.BeginDoomedTransactionScope(ctx, func(ctx context.Context, tx *rds.Transaction) (any, error) {
			conn, err := client.GetConnection(ctx)
			if err != nil {
				return nil, err
			}
			defer conn.Release()

			return client.QueryWithOptions(ctx, rds.QueryOptions{Conn: conn}, "INSERT INTO users (name) VALUES ($1)", "explicit")
		})
		require.NoError(t, err)

		assert.Equal(t, int64(1), countUsers(t, "explicit"))
	})

	t.Run("TestLocksInsideScope", func(t *testing.T) {
		_, err := client.BeginDoomedTransactionScope(ctx, func(ctx context.Context, tx *rds.Transaction) (any, error) {
			if _, err := tx.LockOne(ctx, "users", "WRITE"); err != nil {
				return nil, err
			}

			return tx.Locks(ctx, []sqlbuild.LockTableOption{{TableName: "event_log", LockType: "ROW EXCLUSIVE"}})
		})
		require.NoError(t, err)
	})

	t.Run("TestPoolWaitTimeout", func(t *testing.T) {
		hold := make(chan struct{})
		started := make(chan struct{}, capacity)

		var wg sync.WaitGroup
		for i := 0; i < capacity; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				_, err := client.BeginTransactionScope(ctx, func(ctx context.Context, tx *rds.Transaction) (any, error) {
					if _, err := tx.Query(ctx, "SELECT 1"); err != nil {
						return nil, err
					}
					started <- struct{}{}
					<-hold
					return nil, nil
				})
				assert.NoError(t, err)
			}()
		}

		for i := 0; i < capacity; i++ {
			<-started
		}

		start := time.Now()
		_, err := client.Query(ctx, "SELECT 1")
		assert.True(t, errorx.IsPoolWaitTimeout(err))
		assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)

		close(hold)
		wg.Wait()

		require.Eventually(t, func() bool {
			return client.Stats().BusyConnections == 0
		}, 5*time.Second, 50*time.Millisecond)

		_, err = client.Query(ctx, "SELECT 1")
		require.NoError(t, err)
	})

	t.Run("TestAdvisoryLock", func(t *testing.T) {
		conn, err := client.GetConnection(ctx)
		require.NoError(t, err)
		defer conn.Release()

		require.NoError(t, conn.AdvisoryLock(ctx, 4242))

		other, err := client.GetConnection(ctx)
		require.NoError(t, err)
		defer other.Release()

		lockCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()
		assert.Error(t, other.AdvisoryLock(lockCtx, 4242))

		_, err = conn.Unlock(ctx)
		require.NoError(t, err)
		require.NoError(t, other.AdvisoryLock(ctx, 4242))
		require.NoError(t, other.AdvisoryUnlock(ctx, 4242))
	})
}
