package rds

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marcodd23/go-txscope/pkg/dbx"
	"github.com/marcodd23/go-txscope/pkg/logx"
)

// BeforeQueryHook receives the SQL about to run and returns the SQL to run instead.
// An empty return keeps the current text. A before hook must not query the connection
// it is registered on: the statement would go through the same hook again.
type BeforeQueryHook func(sql string) string

// AfterQueryHook observes the final SQL, its result or error and how long it took.
// It runs once the connection is free again, so it may run statements on the same Connection
// or Transaction; those statements trigger the after hooks too.
type AfterQueryHook func(sql string, res *dbx.Result, elapsed time.Duration, err error)

// hookSet is the ordered list of hooks of a Client or a Connection.
// Hooks run synchronously in registration order; a panicking hook is logged and skipped.
type hookSet struct {
	mu     sync.RWMutex
	before []BeforeQueryHook
	after  []AfterQueryHook
}

func (h *hookSet) addBefore(hook BeforeQueryHook) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.before = append(h.before, hook)
}

func (h *hookSet) addAfter(hook AfterQueryHook) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.after = append(h.after, hook)
}

func (h *hookSet) clone() *hookSet {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return &hookSet{
		before: append([]BeforeQueryHook(nil), h.before...),
		after:  append([]AfterQueryHook(nil), h.after...),
	}
}

func (h *hookSet) runBefore(ctx context.Context, sql string) string {
	h.mu.RLock()
	hooks := h.before
	h.mu.RUnlock()

	for i, hook := range hooks {
		if rewritten := safeBefore(ctx, i, hook, sql); rewritten != "" {
			sql = rewritten
		}
	}

	return sql
}

func (h *hookSet) runAfter(ctx context.Context, sql string, res *dbx.Result, elapsed time.Duration, err error) {
	h.mu.RLock()
	hooks := h.after
	h.mu.RUnlock()

	for i, hook := range hooks {
		safeAfter(ctx, i, hook, sql, res, elapsed, err)
	}
}

func safeBefore(ctx context.Context, idx int, hook BeforeQueryHook, sql string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			logx.GetLogger().LogError(ctx, fmt.Sprintf("before query hook %d panicked: %v", idx, r))
			out = ""
		}
	}()

	return hook(sql)
}

func safeAfter(ctx context.Context, idx int, hook AfterQueryHook, sql string, res *dbx.Result, elapsed time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			logx.GetLogger().LogError(ctx, fmt.Sprintf("after query hook %d panicked: %v", idx, r))
		}
	}()

	hook(sql, res, elapsed, err)
}
