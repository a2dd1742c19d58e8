package wrap

import (
	"context"

	async "github.com/Swind/go-async"
	"github.com/Swind/go-async/promise"
)

// Store is a key-value backend.
type Store interface {
	Has(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) (any, error)
	Set(ctx context.Context, key string, value any) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// NamespacedStore is a Store that can open isolated child stores.
type NamespacedStore interface {
	Store
	Namespace(name string) Store
}

// Storage runs each Store call as an async.Request.
type Storage struct {
	a    *async.Async
	s    Store
	opts Options
}

// WrapStorage wraps s.
func WrapStorage(a *async.Async, s Store, opts Options) *Storage {
	return &Storage{a: a, s: s, opts: opts}
}

func (st *Storage) request(opts async.Options, call func(ctx context.Context) (any, error)) *promise.Promise {
	return st.a.Request(call, st.opts.merge(opts))
}

// Has resolves with whether key is present.
func (st *Storage) Has(key string, opts async.Options) *promise.Promise {
	return st.request(opts, func(ctx context.Context) (any, error) { return st.s.Has(ctx, key) })
}

// Get resolves with the value of key.
func (st *Storage) Get(key string, opts async.Options) *promise.Promise {
	return st.request(opts, func(ctx context.Context) (any, error) { return st.s.Get(ctx, key) })
}

// Set resolves with nil once value is stored.
func (st *Storage) Set(key string, value any, opts async.Options) *promise.Promise {
	return st.request(opts, func(ctx context.Context) (any, error) { return nil, st.s.Set(ctx, key, value) })
}

// Remove resolves with nil once key is removed.
func (st *Storage) Remove(key string, opts async.Options) *promise.Promise {
	return st.request(opts, func(ctx context.Context) (any, error) { return nil, st.s.Remove(ctx, key) })
}

// Clear resolves with nil once the store is empty.
func (st *Storage) Clear(opts async.Options) *promise.Promise {
	return st.request(opts, func(ctx context.Context) (any, error) { return nil, st.s.Clear(ctx) })
}

// Namespace wraps the child store name, with name appended to the group path.
// It reports false when the store has no namespaces.
func (st *Storage) Namespace(name string) (*Storage, bool) {
	ns, ok := st.s.(NamespacedStore)
	if !ok {
		return nil, false
	}
	opts := st.opts
	opts.Group = JoinGroup(st.opts.Group, name)
	return WrapStorage(st.a, ns.Namespace(name), opts), true
}

// Cancel rejects the pending calls of this wrapper matched by f.
func (st *Storage) Cancel(f async.Filter) int {
	return st.a.CancelPromise(st.opts.Filter(f))
}

// Unwrap returns the wrapped store.
func (st *Storage) Unwrap() Store { return st.s }
