package rds

import (
	"context"
	"sync"
)

// DefaultStorageKey is the binding key used when Options.StorageKey is empty.
const DefaultStorageKey StorageKey = "rds#default"

// StorageKey identifies the transaction of one client inside a shared Storage.
type StorageKey string

// Storage carries the transactions bound to a logical call chain through context.Context.
//
// A chain starts when Run derives a context from one that carries no bindings yet;
// every context derived from it, including the ones handed to goroutines it spawns,
// sees the same bindings. Independent chains never see each other's bindings.
//
// Several clients can share one Storage by using different keys.
type Storage struct {
	name string
}

// NewStorage creates a Storage. The name shows up when a context carrying it is printed.
func NewStorage(name string) *Storage {
	return &Storage{name: name}
}

func (s *Storage) String() string {
	return "rds.Storage(" + s.name + ")"
}

type scopeContext struct {
	mu       sync.Mutex
	bindings map[StorageKey]*binding
}

// binding is the transaction of one key. While the first scope of the chain is still
// beginning it, tx is nil and ready is open.
type binding struct {
	ready chan struct{}
	tx    *Transaction
}

// Run returns ctx when it already belongs to a chain of this Storage,
// otherwise a derived context starting a new chain.
func (s *Storage) Run(ctx context.Context) context.Context {
	if s.from(ctx) != nil {
		return ctx
	}

	return context.WithValue(ctx, s, &scopeContext{bindings: make(map[StorageKey]*binding)})
}

// Transaction returns the transaction bound to key in the chain of ctx, nil if none.
// A transaction still being begun by another goroutine of the chain is not returned.
func (s *Storage) Transaction(ctx context.Context, key StorageKey) *Transaction {
	sc := s.from(ctx)
	if sc == nil {
		return nil
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if b := sc.bindings[key]; b != nil {
		return b.tx
	}

	return nil
}

func (s *Storage) from(ctx context.Context) *scopeContext {
	sc, _ := ctx.Value(s).(*scopeContext)
	return sc
}

// unbind clears the binding only if it still points to tx.
func (sc *scopeContext) unbind(key StorageKey, tx *Transaction) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if b := sc.bindings[key]; b != nil && b.tx == tx {
		delete(sc.bindings, key)
	}
}

// enter joins the bound transaction, incrementing its nesting counter, or binds the one
// created by begin, in which case the caller owns it. begin runs without the lock: goroutines of the same chain entering
// meanwhile wait for it and join its transaction, or begin their own if it failed.
func (sc *scopeContext) enter(key StorageKey, begin func() (*Transaction, error)) (*Transaction, error) {
	for {
		sc.mu.Lock()
		b := sc.bindings[key]

		if b == nil {
			b = &binding{ready: make(chan struct{})}
			sc.bindings[key] = b
			sc.mu.Unlock()

			tx, err := sc.create(key, b, begin)
			if err != nil {
				return nil, err
			}

			return tx, nil
		}

		if b.tx != nil {
			b.tx.enterScope()
			sc.mu.Unlock()

			return b.tx, nil
		}

		sc.mu.Unlock()
		<-b.ready
	}
}

func (sc *scopeContext) create(key StorageKey, b *binding, begin func() (*Transaction, error)) (tx *Transaction, err error) {
	defer func() {
		sc.mu.Lock()
		defer sc.mu.Unlock()

		if tx != nil {
			b.tx = tx
		} else if sc.bindings[key] == b {
			delete(sc.bindings, key)
		}

		close(b.ready)
	}()

	return begin()
}
