package async

import (
	"context"
	"time"

	"github.com/Swind/go-async/combinator"
	"github.com/Swind/go-async/core"
	"github.com/Swind/go-async/registry"
)

// ProxyFunc is a function wrapped by Proxy.
type ProxyFunc func(args ...any) any

// ProxyOptions configure Proxy.
type ProxyOptions struct {
	Options
	// Periodic keeps the proxy registered after it is called. By default the
	// first call retires it.
	Periodic bool
}

// Proxy wraps fn in a function whose calls are gated by the registry: after
// the task is cleared, or on calls after the first for a one-shot proxy, the
// wrapper returns nil without calling fn. Calls on a muted proxy are dropped;
// calls on a suspended proxy are queued and return nil.
func (a *Async) Proxy(fn ProxyFunc, opts ProxyOptions) (ProxyFunc, ID) {
	return a.proxy(fn, opts, nil)
}

// ClearProxy cancels matched proxies.
func (a *Async) ClearProxy(f Filter) int { return a.reg.Cancel(Proxy, f) }

func (a *Async) proxy(fn ProxyFunc, opts ProxyOptions, teardown func()) (ProxyFunc, ID) {
	var task *registry.Task

	id, err := a.reg.Register(a.spec(Proxy, opts.Options, registry.Spec{
		Periodic: opts.Periodic,
		Payload:  fn,
		Create: func(t *registry.Task) (any, error) {
			task = t
			return fn, nil
		},
		Teardown: func(any) {
			if teardown != nil {
				teardown()
			}
		},
	}))
	if err != nil {
		a.logger.Warn("proxy registration failed", core.F("error", err))
		if teardown != nil {
			teardown()
		}
		return func(...any) any { return nil }, 0
	}

	t := task
	if t == nil {
		// Joined a live proxy: share its task, drop our own resources
		if teardown != nil {
			teardown()
		}
		var ok bool
		if t, ok = a.reg.Get(id); !ok {
			return func(...any) any { return nil }, id
		}
	}
	wrapper := func(args ...any) any {
		var out any
		t.Deliver(func() {
			a.invoke(t, func() error {
				if h, ok := t.Payload().(ProxyFunc); ok && h != nil {
					out = h(args...)
				}
				return nil
			})
		})
		return out
	}
	return wrapper, id
}

// ThrottleOptions configure Throttle.
type ThrottleOptions struct {
	Options
	// LeadingOnly drops calls made during the window instead of running the
	// last of them when the window closes.
	LeadingOnly bool
}

// Debounce returns a function that calls fn on the host loop once delay has
// passed without another call, with the arguments of the last call. The
// wrapper is a periodic proxy: clearing it drops the pending call.
func (a *Async) Debounce(fn func(args ...any), delay time.Duration, opts Options) (func(args ...any), ID) {
	call, cancel := combinator.Debounce(a.recovered(fn), delay, a.schedule)
	return a.combined(call, cancel, opts)
}

// Throttle returns a function that calls fn at most once per window. The call
// opening a window runs fn on the calling goroutine; later calls inside the
// window coalesce into one trailing call on the host loop.
func (a *Async) Throttle(fn func(args ...any), window time.Duration, opts ThrottleOptions) (func(args ...any), ID) {
	call, cancel := combinator.Throttle(a.recovered(fn), window, a.schedule, combinator.ThrottleOptions{
		LeadingOnly: opts.LeadingOnly,
	})
	return a.combined(call, cancel, opts.Options)
}

func (a *Async) combined(call func(args ...any), cancel func(), opts Options) (func(args ...any), ID) {
	wrapper, id := a.proxy(func(args ...any) any {
		call(args...)
		return nil
	}, ProxyOptions{Options: opts, Periodic: true}, cancel)
	return func(args ...any) { wrapper(args...) }, id
}

// recovered reports panics of fn to the error sink.
func (a *Async) recovered(fn func(args ...any)) func(args ...any) {
	return func(args ...any) {
		defer func() {
			if r := recover(); r != nil {
				a.report(&HandlerError{Namespace: Proxy, Panic: r})
			}
		}()
		fn(args...)
	}
}

// schedule is the combinator.Schedule of the host loop.
func (a *Async) schedule(fn func(), delay time.Duration) func() {
	if delay <= 0 {
		h := &flagHandle{}
		a.host.PostTask(func(ctx context.Context) {
			if !h.IsStopped() {
				fn()
			}
		})
		return h.Stop
	}
	return a.host.PostDelayedTask(func(ctx context.Context) { fn() }, delay).Stop
}
