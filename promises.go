package async

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-async/core"
	"github.com/Swind/go-async/promise"
	"github.com/Swind/go-async/registry"
)

// DefaultWaitInterval is the polling interval of Wait when none is given.
const DefaultWaitInterval = 15 * time.Millisecond

// promiseLink is the payload of a promise task: the resolvers of the promise
// handed to the caller.
type promiseLink struct {
	out     *promise.Promise
	resolve func(any)
	reject  func(error)
}

func (l *promiseLink) follow(p *promise.Promise) {
	p.OnSettled(func(v any, err error) {
		if err != nil {
			l.reject(err)
			return
		}
		l.resolve(v)
	})
}

// promiseStart starts the source of a promise task. settle may be called from
// any goroutine; the result reaches the caller's promise on the host loop.
// The returned stop function is the teardown of the task.
type promiseStart func(t *registry.Task, settle func(v any, err error)) (stop func(), err error)

// registerPromise registers a Promise-namespace task and returns the promise
// handed to the caller. When the registration joins a live task, the returned
// promise follows that task's promise. When start fails, the returned promise
// is rejected with its error.
func (a *Async) registerPromise(opts Options, start promiseStart) *promise.Promise {
	out, resolve, reject := promise.WithResolvers()
	link := &promiseLink{out: out, resolve: resolve, reject: reject}

	_, err := a.reg.Register(a.spec(Promise, opts, registry.Spec{
		KeepMuted: true,
		Payload:   link,
		Create: func(t *registry.Task) (any, error) {
			settle := func(v any, err error) {
				a.post(func() {
					t.Deliver(func() {
						if err != nil {
							reject(err)
							return
						}
						resolve(v)
					})
				})
			}
			stop, err := start(t, settle)
			if err != nil {
				return nil, err
			}
			return stop, nil
		},
		Teardown: func(h any) {
			if stop, ok := h.(func()); ok && stop != nil {
				stop()
			}
		},
		OnClear: func(t *registry.Task, reason registry.ClearReason) {
			if reason != registry.ReasonCompleted {
				reject(&registry.ClearError{ID: t.ID(), Namespace: Promise, Reason: reason})
			}
		},
		OnMerge: func(_ *registry.Task, incoming *registry.Spec) {
			if in, ok := incoming.Payload.(*promiseLink); ok {
				in.follow(out)
			}
		},
	}))
	if err != nil {
		reject(err)
	}
	return out
}

// Promise registers src and returns a promise that settles like src, unless
// the task is cleared first, in which case it rejects with a
// *registry.ClearError. A muted task drops the settlement and stays registered
// until it is cleared.
func (a *Async) Promise(src promise.Like, opts Options) *promise.Promise {
	return a.registerPromise(opts, func(t *registry.Task, settle func(any, error)) (func(), error) {
		if p, ok := src.(*promise.Promise); ok {
			p.OnSettled(settle)
			return nil, nil
		}
		stop := make(chan struct{})
		go func() {
			select {
			case <-src.Done():
				settle(src.Result())
			case <-stop:
			}
		}()
		var once sync.Once
		return func() { once.Do(func() { close(stop) }) }, nil
	})
}

// Request runs fn on its own goroutine as a promise task. Clearing the task
// cancels the context passed to fn.
func (a *Async) Request(fn func(ctx context.Context) (any, error), opts Options) *promise.Promise {
	return a.registerPromise(opts, func(t *registry.Task, settle func(any, error)) (func(), error) {
		ctx, cancel := context.WithCancel(context.Background())
		promise.Go(ctx, fn).OnSettled(func(v any, err error) {
			cancel()
			settle(v, err)
		})
		return cancel, nil
	})
}

// Sleep returns a promise fulfilled with nil after delay.
func (a *Async) Sleep(delay time.Duration, opts Options) *promise.Promise {
	return a.registerPromise(opts, func(t *registry.Task, settle func(any, error)) (func(), error) {
		h := a.host.PostDelayedTask(func(ctx context.Context) { settle(nil, nil) }, delay)
		return h.Stop, nil
	})
}

// NextTick returns a promise fulfilled with nil on the next turn of the host loop.
func (a *Async) NextTick(opts Options) *promise.Promise {
	return a.registerPromise(opts, func(t *registry.Task, settle func(any, error)) (func(), error) {
		h := &flagHandle{}
		a.host.PostTask(func(ctx context.Context) {
			if !h.IsStopped() {
				settle(nil, nil)
			}
		})
		return h.Stop, nil
	})
}

// Idle returns a promise fulfilled with the IdleDeadline of the next idle
// period of the host.
func (a *Async) Idle(opts IdleOptions) *promise.Promise {
	return a.registerPromise(opts.Options, func(t *registry.Task, settle func(any, error)) (func(), error) {
		h := a.requestIdle(func(d core.IdleDeadline) { settle(d, nil) }, opts.Timeout)
		return h.Stop, nil
	})
}

// AnimationFrame returns a promise fulfilled with the time of the next frame.
func (a *Async) AnimationFrame(opts Options) *promise.Promise {
	return a.registerPromise(opts, func(t *registry.Task, settle func(any, error)) (func(), error) {
		h := a.requestFrame(func(ft time.Time) { settle(ft, nil) })
		return h.Stop, nil
	})
}

// WaitOptions configure Wait.
type WaitOptions struct {
	Options
	// Interval between checks. Defaults to DefaultWaitInterval.
	Interval time.Duration
}

// Wait returns a promise fulfilled with nil once cond reports true. cond is
// checked on the host loop, first on the next turn and then every interval.
// A panic in cond rejects the promise.
func (a *Async) Wait(cond func() bool, opts WaitOptions) *promise.Promise {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultWaitInterval
	}
	return a.registerPromise(opts.Options, func(t *registry.Task, settle func(any, error)) (func(), error) {
		w := &waiter{}
		h := a.host.PostRepeatingTaskWithInitialDelay(func(ctx context.Context) {
			w.check(cond, settle)
		}, 0, interval)
		w.setHandle(h)
		return w.stop, nil
	})
}

type waiter struct {
	mu   sync.Mutex
	h    core.TaskHandle
	done bool
}

func (w *waiter) setHandle(h core.TaskHandle) {
	w.mu.Lock()
	w.h = h
	done := w.done
	w.mu.Unlock()
	if done {
		h.Stop()
	}
}

func (w *waiter) check(cond func() bool, settle func(any, error)) {
	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	ok, err := evalCond(cond)
	if !ok && err == nil {
		return
	}
	w.stop()
	settle(nil, err)
}

func (w *waiter) stop() {
	w.mu.Lock()
	w.done = true
	h := w.h
	w.mu.Unlock()
	if h != nil {
		h.Stop()
	}
}

func evalCond(cond func() bool) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = promise.PanicError{Value: r}
		}
	}()
	return cond(), nil
}

// CancelPromise clears matched promise tasks, rejecting their promises.
func (a *Async) CancelPromise(f Filter) int { return a.reg.Cancel(Promise, f) }
