package async

import (
	"context"
	"time"

	"github.com/Swind/go-async/core"
	"github.com/Swind/go-async/registry"
)

// IdleOptions configure RequestIdleCallback.
type IdleOptions struct {
	Options
	// Timeout forces the callback to run, with DidTimeout set, if the host
	// has not gone idle by then. Zero waits indefinitely.
	Timeout time.Duration
}

// SetTimeout runs fn once on the host loop after delay.
func (a *Async) SetTimeout(fn func(), delay time.Duration, opts Options) ID {
	return a.timer(Timeout, fn, opts, func(tick core.Task) core.TaskHandle {
		return a.host.PostDelayedTask(tick, delay)
	})
}

// ClearTimeout cancels matched timeouts.
func (a *Async) ClearTimeout(f Filter) int { return a.reg.Cancel(Timeout, f) }

// SetInterval runs fn on the host loop every interval until cleared.
func (a *Async) SetInterval(fn func(), interval time.Duration, opts Options) ID {
	return a.timer(Interval, fn, opts, func(tick core.Task) core.TaskHandle {
		return a.host.PostRepeatingTaskWithInitialDelay(tick, interval, interval)
	})
}

// ClearInterval cancels matched intervals.
func (a *Async) ClearInterval(f Filter) int { return a.reg.Cancel(Interval, f) }

// SetImmediate runs fn once on the host loop as soon as possible.
func (a *Async) SetImmediate(fn func(), opts Options) ID {
	return a.timer(Immediate, fn, opts, func(tick core.Task) core.TaskHandle {
		h := &flagHandle{}
		a.host.PostTask(func(ctx context.Context) {
			if !h.IsStopped() {
				tick(ctx)
			}
		})
		return h
	})
}

// ClearImmediate cancels matched immediates.
func (a *Async) ClearImmediate(f Filter) int { return a.reg.Cancel(Immediate, f) }

// timer registers a func() handler whose firings come from start. The payload
// is the handler so that JoinReplace swaps it on the live task.
func (a *Async) timer(ns Namespace, fn func(), opts Options, start func(core.Task) core.TaskHandle) ID {
	id, err := a.reg.Register(a.spec(ns, opts, registry.Spec{
		Periodic: ns == Interval,
		Payload:  fn,
		Create: func(t *registry.Task) (any, error) {
			return start(func(ctx context.Context) {
				t.Deliver(func() {
					a.invoke(t, func() error {
						if h, ok := t.Payload().(func()); ok && h != nil {
							h()
						}
						return nil
					})
				})
			}), nil
		},
		Teardown: stopHandle,
	}))
	if err != nil {
		a.logger.Warn("timer registration failed", core.F("namespace", ns.String()), core.F("error", err))
	}
	return id
}

// RequestIdleCallback runs fn once the host has no other work. Hosts that
// cannot detect idle periods run fn after the idle fallback delay with
// DidTimeout set.
func (a *Async) RequestIdleCallback(fn func(IdleDeadline), opts IdleOptions) ID {
	id, err := a.reg.Register(a.spec(IdleCallback, opts.Options, registry.Spec{
		Payload: fn,
		Create: func(t *registry.Task) (any, error) {
			return a.requestIdle(func(d core.IdleDeadline) {
				t.Deliver(func() {
					a.invoke(t, func() error {
						if h, ok := t.Payload().(func(IdleDeadline)); ok && h != nil {
							h(d)
						}
						return nil
					})
				})
			}, opts.Timeout), nil
		},
		Teardown: stopHandle,
	}))
	if err != nil {
		a.logger.Warn("idle callback registration failed", core.F("error", err))
	}
	return id
}

// CancelIdleCallback cancels matched idle callbacks.
func (a *Async) CancelIdleCallback(f Filter) int { return a.reg.Cancel(IdleCallback, f) }

func (a *Async) requestIdle(fn func(core.IdleDeadline), timeout time.Duration) core.TaskHandle {
	if ir, ok := a.host.(core.IdleTaskRunner); ok {
		return ir.PostIdleTask(func(ctx context.Context, d core.IdleDeadline) { fn(d) }, timeout)
	}
	return a.host.PostDelayedTask(func(ctx context.Context) {
		fn(core.IdleDeadline{Deadline: time.Now(), DidTimeout: true})
	}, a.idleFallback)
}

// RequestAnimationFrame runs fn on the next frame of the host. Hosts without a
// frame clock run fn after the frame fallback delay.
func (a *Async) RequestAnimationFrame(fn func(frameTime time.Time), opts Options) ID {
	id, err := a.reg.Register(a.spec(AnimationFrame, opts, registry.Spec{
		Payload: fn,
		Create: func(t *registry.Task) (any, error) {
			return a.requestFrame(func(ft time.Time) {
				t.Deliver(func() {
					a.invoke(t, func() error {
						if h, ok := t.Payload().(func(time.Time)); ok && h != nil {
							h(ft)
						}
						return nil
					})
				})
			}), nil
		},
		Teardown: stopHandle,
	}))
	if err != nil {
		a.logger.Warn("animation frame registration failed", core.F("error", err))
	}
	return id
}

// CancelAnimationFrame cancels matched animation frame requests.
func (a *Async) CancelAnimationFrame(f Filter) int { return a.reg.Cancel(AnimationFrame, f) }

func (a *Async) requestFrame(fn func(time.Time)) core.TaskHandle {
	if fr, ok := a.host.(core.FrameTaskRunner); ok {
		return fr.PostFrameTask(func(ctx context.Context, ft time.Time) { fn(ft) })
	}
	return a.host.PostDelayedTask(func(ctx context.Context) { fn(time.Now()) }, a.frameFallback)
}
