// Package hooks provides ready-made query hooks for rds.Client and rds.Connection.
package hooks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/marcodd23/go-txscope/pkg/dbx"
	"github.com/marcodd23/go-txscope/pkg/logx"
	"github.com/marcodd23/go-txscope/pkg/rds"
	pg_query "github.com/pganalyze/pg_query_go/v5"
)

// Comment prefixes every statement with a SQL comment, e.g. to tag the queries of a service in pg_stat_activity.
func Comment(tag string) rds.BeforeQueryHook {
	tag = strings.ReplaceAll(tag, "*/", "* /")

	return func(sql string) string {
		return fmt.Sprintf("/* %s */ %s", tag, sql)
	}
}

// QueryLogger logs every statement with its duration at debug level, failures at error level.
func QueryLogger(logger logx.Logger) rds.AfterQueryHook {
	return func(sql string, res *dbx.Result, elapsed time.Duration, err error) {
		if err != nil {
			logger.LogError(context.TODO(), fmt.Sprintf("query failed after %dms: %s", elapsed.Milliseconds(), sql), err)
			return
		}

		logger.LogDebug(context.TODO(), fmt.Sprintf("query took %dms, %d rows: %s", elapsed.Milliseconds(), res.Len(), sql))
	}
}

// SlowQueryLogger logs statements slower than threshold at warning level.
// Constants are stripped from the logged SQL so that no data ends up in the logs.
func SlowQueryLogger(logger logx.Logger, threshold time.Duration) rds.AfterQueryHook {
	return func(sql string, res *dbx.Result, elapsed time.Duration, err error) {
		if elapsed < threshold {
			return
		}

		logger.LogWarning(context.TODO(), fmt.Sprintf("slow %s query (%dms): %s",
			StatementKind(sql), elapsed.Milliseconds(), Normalize(sql)))
	}
}

// Normalize replaces the constants of sql with $n placeholders.
// SQL that does not parse is returned unchanged.
func Normalize(sql string) string {
	normalized, err := pg_query.Normalize(sql)
	if err != nil {
		return sql
	}

	return normalized
}

// StatementKind classifies the first statement of sql: SELECT, INSERT, UPDATE, DELETE, LOCK, BEGIN, COMMIT, ROLLBACK or OTHER.
func StatementKind(sql string) string {
	tree, err := pg_query.Parse(sql)
	if err != nil || tree == nil || len(tree.Stmts) == 0 {
		return "OTHER"
	}

	stmt := tree.Stmts[0].GetStmt()
	switch {
	case stmt.GetSelectStmt() != nil:
		return "SELECT"
	case stmt.GetInsertStmt() != nil:
		return "INSERT"
	case stmt.GetUpdateStmt() != nil:
		return "UPDATE"
	case stmt.GetDeleteStmt() != nil:
		return "DELETE"
	case stmt.GetLockStmt() != nil:
		return "LOCK"
	}

	if t := stmt.GetTransactionStmt(); t != nil {
		switch t.GetKind() {
		case pg_query.TransactionStmtKind_TRANS_STMT_BEGIN, pg_query.TransactionStmtKind_TRANS_STMT_START:
			return "BEGIN"
		case pg_query.TransactionStmtKind_TRANS_STMT_COMMIT:
			return "COMMIT"
		case pg_query.TransactionStmtKind_TRANS_STMT_ROLLBACK, pg_query.TransactionStmtKind_TRANS_STMT_ROLLBACK_TO:
			return "ROLLBACK"
		}
	}

	return "OTHER"
}
