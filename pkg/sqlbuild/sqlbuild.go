// Package sqlbuild renders the PostgreSQL statements behind the rds CRUD helpers.
//
// Every builder returns the SQL text with $n placeholders and the matching arguments.
// Identifiers are quoted, values are always passed as arguments.
package sqlbuild

import (
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/marcodd23/go-txscope/pkg/dbx"
	"github.com/marcodd23/go-txscope/pkg/errorx"
)

// TagKey is the struct tag used to map struct fields to columns.
const TagKey = "db"

// PrimaryKey is the column used to derive the update condition when none is given.
const PrimaryKey = "id"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Where is an equality condition: column -> value.
// A nil value renders IS NULL, a slice value renders IN.
type Where map[string]any

// Order sorts a select on Column.
type Order struct {
	Column string
	Desc   bool
}

type SelectOptions struct {
	Where   Where
	Columns []string
	Orders  []Order
	Limit   uint64
	Offset  uint64
}

type InsertOptions struct {
	Columns []string
}

type UpdateOptions struct {
	Where   Where
	Columns []string
}

// UpdateRow is one entry of UpdateRows.
// When Where is empty the row must carry an "id" value used as the condition.
type UpdateRow struct {
	Row   any
	Where Where
}

// QuoteIdentifier quotes a possibly schema qualified name ("public.users" -> "public"."users").
func QuoteIdentifier(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

func quoteAll(names []string) []string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdentifier(n)
	}

	return quoted
}

func (w Where) toEq() sq.Eq {
	eq := make(sq.Eq, len(w))
	for k, v := range w {
		eq[QuoteIdentifier(k)] = v
	}

	return eq
}

// Select renders SELECT <columns> FROM <table> [WHERE] [ORDER BY] [LIMIT] [OFFSET].
func Select(table string, opts SelectOptions) (string, []any, error) {
	if err := validateTable(table, "select"); err != nil {
		return "", nil, err
	}

	columns := []string{"*"}
	if len(opts.Columns) > 0 {
		columns = quoteAll(opts.Columns)
	}

	b := psql.Select(columns...).From(QuoteIdentifier(table))

	if len(opts.Where) > 0 {
		b = b.Where(opts.Where.toEq())
	}

	for _, o := range opts.Orders {
		if o.Desc {
			b = b.OrderBy(QuoteIdentifier(o.Column) + " DESC")
		} else {
			b = b.OrderBy(QuoteIdentifier(o.Column) + " ASC")
		}
	}

	if opts.Limit > 0 {
		b = b.Limit(opts.Limit)
	}

	if opts.Offset > 0 {
		b = b.Offset(opts.Offset)
	}

	return b.ToSql()
}

// Get renders a Select limited to one row.
func Get(table string, where Where, opts SelectOptions) (string, []any, error) {
	opts.Where = where
	opts.Limit = 1

	return Select(table, opts)
}

// Insert renders a multi row INSERT. Rows are map[string]any or structs tagged with `db`.
// Without explicit columns the columns of the first row are used; missing values are inserted as NULL.
func Insert(table string, rows []any, opts InsertOptions) (string, []any, error) {
	if err := validateTable(table, "insert"); err != nil {
		return "", nil, err
	}

	if len(rows) == 0 {
		return "", nil, errorx.NewDatabaseError("Can not insert into table `%s` without rows", table)
	}

	maps := make([]map[string]any, len(rows))
	for i, r := range rows {
		m, err := dbx.StructToMap(r, TagKey)
		if err != nil {
			return "", nil, err
		}
		maps[i] = m
	}

	columns := opts.Columns
	if len(columns) == 0 {
		columns = sortedKeys(maps[0])
	}

	b := psql.Insert(QuoteIdentifier(table)).Columns(quoteAll(columns)...)
	for _, m := range maps {
		values := make([]any, len(columns))
		for i, c := range columns {
			values[i] = m[c]
		}
		b = b.Values(values...)
	}

	return b.ToSql()
}

// Update renders an UPDATE of one row.
// Without Where the condition is id = row.id, and the id column is not part of the SET clause.
func Update(table string, row any, opts UpdateOptions) (string, []any, error) {
	if err := validateTable(table, "update"); err != nil {
		return "", nil, err
	}

	m, err := dbx.StructToMap(row, TagKey)
	if err != nil {
		return "", nil, err
	}

	where := opts.Where
	columns := opts.Columns

	if len(where) == 0 {
		id, ok := m[PrimaryKey]
		if !ok || id == nil {
			return "", nil, errorx.NewDatabaseError("Can not auto detect update condition, please set option.where, or make sure obj.id exists")
		}

		where = Where{PrimaryKey: id}
		if len(columns) == 0 {
			columns = without(sortedKeys(m), PrimaryKey)
		}
	}

	if len(columns) == 0 {
		columns = sortedKeys(m)
	}

	b := psql.Update(QuoteIdentifier(table)).Where(where.toEq())
	for _, c := range columns {
		b = b.Set(QuoteIdentifier(c), m[c])
	}

	return b.ToSql()
}

// UpdateRows renders a single UPDATE changing several rows, each with its own condition:
//
//	UPDATE t SET c = CASE WHEN <cond1> THEN $1 WHEN <cond2> THEN $2 ELSE c END WHERE <cond1> OR <cond2>
func UpdateRows(table string, rows []UpdateRow) (string, []any, error) {
	if err := validateTable(table, "update"); err != nil {
		return "", nil, err
	}

	if len(rows) == 0 {
		return "", nil, errorx.NewDatabaseError("Can not update table `%s` without rows", table)
	}

	type entry struct {
		values map[string]any
		cond   sq.Eq
	}

	entries := make([]entry, 0, len(rows))
	columnSet := map[string]struct{}{}

	for _, r := range rows {
		m, err := dbx.StructToMap(r.Row, TagKey)
		if err != nil {
			return "", nil, err
		}

		where := r.Where
		if len(where) == 0 {
			id, ok := m[PrimaryKey]
			if !ok || id == nil {
				return "", nil, errorx.NewDatabaseError("Can not auto detect updateRows condition, please set updateRow.where, or make sure updateRow.id exists")
			}
			where = Where{PrimaryKey: id}
		}

		for c := range m {
			if _, isCond := where[c]; !isCond {
				columnSet[c] = struct{}{}
			}
		}

		entries = append(entries, entry{values: m, cond: where.toEq()})
	}

	columns := make([]string, 0, len(columnSet))
	for c := range columnSet {
		columns = append(columns, c)
	}
	sort.Strings(columns)

	if len(columns) == 0 {
		return "", nil, errorx.NewDatabaseError("Can not update table `%s`: no column to set", table)
	}

	b := psql.Update(QuoteIdentifier(table))
	for _, c := range columns {
		quoted := QuoteIdentifier(c)
		caseExpr := sq.Case()
		for _, e := range entries {
			if v, ok := e.values[c]; ok {
				caseExpr = caseExpr.When(e.cond, sq.Expr("?", v))
			}
		}
		b = b.Set(quoted, caseExpr.Else(quoted))
	}

	conds := make(sq.Or, len(entries))
	for i, e := range entries {
		conds[i] = e.cond
	}

	return b.Where(conds).ToSql()
}

// Delete renders DELETE FROM <table> [WHERE]. An empty where deletes every row.
func Delete(table string, where Where) (string, []any, error) {
	if err := validateTable(table, "delete"); err != nil {
		return "", nil, err
	}

	b := psql.Delete(QuoteIdentifier(table))
	if len(where) > 0 {
		b = b.Where(where.toEq())
	}

	return b.ToSql()
}

// Count renders SELECT COUNT(*) AS count FROM <table> [WHERE].
func Count(table string, where Where) (string, []any, error) {
	if err := validateTable(table, "count"); err != nil {
		return "", nil, err
	}

	b := psql.Select("COUNT(*) AS count").From(QuoteIdentifier(table))
	if len(where) > 0 {
		b = b.Where(where.toEq())
	}

	return b.ToSql()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

func without(keys []string, drop string) []string {
	out := keys[:0:0]
	for _, k := range keys {
		if k != drop {
			out = append(out, k)
		}
	}

	return out
}

func validateTable(table, op string) error {
	if strings.TrimSpace(table) == "" {
		return fmt.Errorf("No table_name provided while trying to %s table", op)
	}

	return nil
}
