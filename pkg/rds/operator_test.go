package rds_test

import (
	"context"
	"testing"

	"github.com/marcodd23/go-txscope/pkg/dbx"
	"github.com/marcodd23/go-txscope/pkg/sqlbuild"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type account struct {
	ID      int64  `db:"id"`
	Owner   string `db:"owner"`
	Balance int64  `db:"balance"`
}

type recordedQuery struct {
	sql  string
	args []any
}

func TestOperator_Helpers(t *testing.T) {
	ctx := context.Background()
	client, pool := newTestClient(1)

	var queries []recordedQuery
	pool.configureFunc = func(conn *MockConn) {
		conn.queryFunc = func(ctx context.Context, sql string, args ...any) (*dbx.Result, error) {
			queries = append(queries, recordedQuery{sql: sql, args: args})

			switch {
			case sql == `SELECT COUNT(*) AS count FROM "accounts" WHERE "owner" = $1`:
				return &dbx.Result{Columns: []string{"count"}, Rows: []dbx.Row{{int64(2)}}}, nil
			case sql == `SELECT * FROM "accounts" WHERE "id" = $1 LIMIT 1`:
				return &dbx.Result{Columns: []string{"id", "owner"}, Rows: []dbx.Row{{int64(1), "alice"}}}, nil
			default:
				return &dbx.Result{RowsAffected: 1}, nil
			}
		}
	}

	_, err := client.Insert(ctx, "accounts", []account{{Owner: "alice", Balance: 10}, {Owner: "bob", Balance: 5}},
		sqlbuild.InsertOptions{Columns: []string{"owner", "balance"}})
	require.NoError(t, err)

	row, err := client.Get(ctx, "accounts", sqlbuild.Where{"id": 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": int64(1), "owner": "alice"}, row)

	count, err := client.Count(ctx, "accounts", sqlbuild.Where{"owner": "alice"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = client.Update(ctx, "accounts", account{ID: 1, Owner: "alice", Balance: 20})
	require.NoError(t, err)

	_, err = client.Delete(ctx, "accounts", sqlbuild.Where{"owner": "bob"})
	require.NoError(t, err)

	_, err = client.Unlock(ctx)
	require.NoError(t, err)

	require.Len(t, queries, 6)
	assert.Equal(t, recordedQuery{
		sql:  `INSERT INTO "accounts" ("owner","balance") VALUES ($1,$2),($3,$4)`,
		args: []any{"alice", int64(10), "bob", int64(5)},
	}, queries[0])
	assert.Equal(t, `UPDATE "accounts" SET "balance" = $1, "owner" = $2 WHERE "id" = $3`, queries[3].sql)
	assert.Equal(t, []any{int64(20), "alice", int64(1)}, queries[3].args)
	assert.Equal(t, `DELETE FROM "accounts" WHERE "owner" = $1`, queries[4].sql)
	assert.Equal(t, "SELECT pg_advisory_unlock_all()", queries[5].sql)
}

func TestOperator_GetNoRow(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(1)

	row, err := client.Get(ctx, "accounts", sqlbuild.Where{"id": 404})
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestOperator_LocksInsideTransaction(t *testing.T) {
	ctx := context.Background()
	client, pool := newTestClient(1)

	tx, err := client.BeginTransaction(ctx)
	require.NoError(t, err)

	_, err = tx.Locks(ctx, []sqlbuild.LockTableOption{
		{TableName: "accounts", LockType: "WRITE"},
		{TableName: "audit", LockType: "READ"},
	})
	require.NoError(t, err)

	_, err = tx.LockOne(ctx, "ledger", "ROW EXCLUSIVE")
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	assert.Equal(t, []string{
		`LOCK TABLE "accounts" IN ACCESS EXCLUSIVE MODE`,
		`LOCK TABLE "audit" IN SHARE MODE`,
		`LOCK TABLE "ledger" IN ROW EXCLUSIVE MODE`,
	}, pool.Conn(0).Queries())
}

func TestOperator_LockValidation(t *testing.T) {
	ctx := context.Background()
	client, pool := newTestClient(1)

	_, err := client.LockOne(ctx, "xxxx", "")
	require.EqualError(t, err, "No lock_type provided while trying to lock table `xxxx`")
	assert.Empty(t, pool.Conns())
}

func TestOperator_UpdateWithoutCondition(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(1)

	_, err := client.Update(ctx, "accounts", map[string]any{"owner": "nobody"})
	require.EqualError(t, err, "Can not auto detect update condition, please set option.where, or make sure obj.id exists")

	_, err = client.UpdateRows(ctx, "accounts", []sqlbuild.UpdateRow{{Row: map[string]any{"owner": "nobody"}}})
	require.EqualError(t, err, "Can not auto detect updateRows condition, please set updateRow.where, or make sure updateRow.id exists")
}

func TestConnection_AdvisoryLock(t *testing.T) {
	ctx := context.Background()
	client, pool := newTestClient(1)

	attempts := 0
	pool.configureFunc = func(conn *MockConn) {
		conn.queryFunc = func(ctx context.Context, sql string, args ...any) (*dbx.Result, error) {
			if sql == sqlbuild.TryAdvisoryLock() {
				attempts++
				return &dbx.Result{Columns: []string{"pg_try_advisory_lock"}, Rows: []dbx.Row{{attempts > 1}}}, nil
			}

			return &dbx.Result{}, nil
		}
	}

	conn, err := client.GetConnection(ctx)
	require.NoError(t, err)
	defer conn.Release()

	require.NoError(t, conn.AdvisoryLock(ctx, 42))
	require.NoError(t, conn.AdvisoryUnlock(ctx, 42))
	assert.Equal(t, 2, attempts)
	assert.Error(t, conn.AdvisoryLock(ctx, 0))
	assert.Equal(t, []string{sqlbuild.TryAdvisoryLock(), sqlbuild.TryAdvisoryLock(), sqlbuild.AdvisoryUnlock()}, pool.Conn(0).Queries())
}
