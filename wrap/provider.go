package wrap

import (
	"context"

	async "github.com/Swind/go-async"
	"github.com/Swind/go-async/promise"
)

// Provider is a data source whose methods block until the backend answers.
type Provider interface {
	Get(ctx context.Context, query any) (any, error)
	Peek(ctx context.Context, query any) (any, error)
	Post(ctx context.Context, body any) (any, error)
	Add(ctx context.Context, body any) (any, error)
	Update(ctx context.Context, body any) (any, error)
	Delete(ctx context.Context, body any) (any, error)
}

// EmitterProvider is a Provider that announces changes through an emitter.
type EmitterProvider interface {
	Emitter() any
}

// DataProvider runs each Provider call as an async.Request.
type DataProvider struct {
	a    *async.Async
	p    Provider
	opts Options
}

// WrapDataProvider wraps p.
func WrapDataProvider(a *async.Async, p Provider, opts Options) *DataProvider {
	return &DataProvider{a: a, p: p, opts: opts}
}

func (d *DataProvider) request(opts async.Options, call func(ctx context.Context) (any, error)) *promise.Promise {
	return d.a.Request(call, d.opts.merge(opts))
}

func (d *DataProvider) Get(query any, opts async.Options) *promise.Promise {
	return d.request(opts, func(ctx context.Context) (any, error) { return d.p.Get(ctx, query) })
}

func (d *DataProvider) Peek(query any, opts async.Options) *promise.Promise {
	return d.request(opts, func(ctx context.Context) (any, error) { return d.p.Peek(ctx, query) })
}

func (d *DataProvider) Post(body any, opts async.Options) *promise.Promise {
	return d.request(opts, func(ctx context.Context) (any, error) { return d.p.Post(ctx, body) })
}

func (d *DataProvider) Add(body any, opts async.Options) *promise.Promise {
	return d.request(opts, func(ctx context.Context) (any, error) { return d.p.Add(ctx, body) })
}

func (d *DataProvider) Update(body any, opts async.Options) *promise.Promise {
	return d.request(opts, func(ctx context.Context) (any, error) { return d.p.Update(ctx, body) })
}

func (d *DataProvider) Delete(body any, opts async.Options) *promise.Promise {
	return d.request(opts, func(ctx context.Context) (any, error) { return d.p.Delete(ctx, body) })
}

// Emitter returns the provider's emitter wrapped under the same group, or nil
// if the provider has none.
func (d *DataProvider) Emitter() *EventEmitter {
	ep, ok := d.p.(EmitterProvider)
	if !ok || ep.Emitter() == nil {
		return nil
	}
	return WrapEventEmitter(d.a, ep.Emitter(), d.opts)
}

// Cancel rejects the pending requests of this wrapper matched by f.
func (d *DataProvider) Cancel(f async.Filter) int {
	return d.a.CancelPromise(d.opts.Filter(f))
}

// Unwrap returns the wrapped provider.
func (d *DataProvider) Unwrap() Provider { return d.p }
