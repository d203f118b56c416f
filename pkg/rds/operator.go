package rds

import (
	"context"
	"reflect"

	"github.com/marcodd23/go-txscope/pkg/dbx"
	"github.com/marcodd23/go-txscope/pkg/errorx"
	"github.com/marcodd23/go-txscope/pkg/sqlbuild"
)

// Queryer runs one SQL statement. Client, Connection and Transaction implement it.
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (*dbx.Result, error)
}

// operator provides the table helpers on top of a Queryer.
// It is embedded in Client, Connection and Transaction, each statement goes through
// the Query of the embedding type.
type operator struct {
	q Queryer
}

// QueryOne runs sql and returns its first row as a column -> value map, nil when there is no row.
func (o operator) QueryOne(ctx context.Context, sql string, args ...any) (map[string]any, error) {
	res, err := o.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	return res.First(), nil
}

// Select returns the rows of table matching opts.
func (o operator) Select(ctx context.Context, table string, opts sqlbuild.SelectOptions) (*dbx.Result, error) {
	sql, args, err := sqlbuild.Select(table, opts)
	if err != nil {
		return nil, err
	}

	return o.q.Query(ctx, sql, args...)
}

// Get returns the first row of table matching where, nil when there is none.
func (o operator) Get(ctx context.Context, table string, where sqlbuild.Where, opts ...sqlbuild.SelectOptions) (map[string]any, error) {
	var selectOpts sqlbuild.SelectOptions
	if len(opts) > 0 {
		selectOpts = opts[0]
	}

	sql, args, err := sqlbuild.Get(table, where, selectOpts)
	if err != nil {
		return nil, err
	}

	return o.QueryOne(ctx, sql, args...)
}

// Insert inserts one row or a slice of rows. A row is a map[string]any or a struct tagged with `db`.
func (o operator) Insert(ctx context.Context, table string, rows any, opts ...sqlbuild.InsertOptions) (*dbx.Result, error) {
	var insertOpts sqlbuild.InsertOptions
	if len(opts) > 0 {
		insertOpts = opts[0]
	}

	sql, args, err := sqlbuild.Insert(table, toRows(rows), insertOpts)
	if err != nil {
		return nil, err
	}

	return o.q.Query(ctx, sql, args...)
}

// Update updates one row, by default the one whose id matches row's id.
func (o operator) Update(ctx context.Context, table string, row any, opts ...sqlbuild.UpdateOptions) (*dbx.Result, error) {
	var updateOpts sqlbuild.UpdateOptions
	if len(opts) > 0 {
		updateOpts = opts[0]
	}

	sql, args, err := sqlbuild.Update(table, row, updateOpts)
	if err != nil {
		return nil, err
	}

	return o.q.Query(ctx, sql, args...)
}

// UpdateRows updates several rows with one statement.
func (o operator) UpdateRows(ctx context.Context, table string, rows []sqlbuild.UpdateRow) (*dbx.Result, error) {
	sql, args, err := sqlbuild.UpdateRows(table, rows)
	if err != nil {
		return nil, err
	}

	return o.q.Query(ctx, sql, args...)
}

// Delete deletes the rows of table matching where.
func (o operator) Delete(ctx context.Context, table string, where sqlbuild.Where) (*dbx.Result, error) {
	sql, args, err := sqlbuild.Delete(table, where)
	if err != nil {
		return nil, err
	}

	return o.q.Query(ctx, sql, args...)
}

// Count counts the rows of table matching where.
func (o operator) Count(ctx context.Context, table string, where sqlbuild.Where) (int64, error) {
	sql, args, err := sqlbuild.Count(table, where)
	if err != nil {
		return 0, err
	}

	res, err := o.q.Query(ctx, sql, args...)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := res.Scan(0, &count); err != nil {
		return 0, errorx.NewDatabaseErrorWrapper(err, "error reading count of table %s", table)
	}

	return count, nil
}

// Locks takes table locks, one LOCK TABLE statement per lock mode.
// The locks are held until the enclosing transaction ends.
func (o operator) Locks(ctx context.Context, tables []sqlbuild.LockTableOption) (*dbx.Result, error) {
	statements, err := sqlbuild.LockTables(tables)
	if err != nil {
		return nil, err
	}

	var res *dbx.Result
	for _, stmt := range statements {
		res, err = o.q.Query(ctx, stmt)
		if err != nil {
			return nil, err
		}
	}

	return res, nil
}

// LockOne locks a single table.
func (o operator) LockOne(ctx context.Context, table, lockType string) (*dbx.Result, error) {
	return o.Locks(ctx, []sqlbuild.LockTableOption{{TableName: table, LockType: lockType}})
}

// Unlock releases every session advisory lock held by the connection.
func (o operator) Unlock(ctx context.Context) (*dbx.Result, error) {
	return o.q.Query(ctx, sqlbuild.UnlockAll())
}

// toRows flattens a slice or array argument into its elements.
func toRows(rows any) []any {
	if rows == nil {
		return nil
	}

	v := reflect.ValueOf(rows)
	if (v.Kind() != reflect.Slice && v.Kind() != reflect.Array) || v.Type().Elem().Kind() == reflect.Uint8 {
		return []any{rows}
	}

	out := make([]any, v.Len())
	for i := range out {
		out[i] = v.Index(i).Interface()
	}

	return out
}
