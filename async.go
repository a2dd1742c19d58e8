package async

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Swind/go-async/core"
	"github.com/Swind/go-async/registry"
)

// Config holds the collaborators of an Async. Zero values fall back to the
// defaults of DefaultConfig.
type Config struct {
	// Name is used for the owned host runner and as a log field.
	Name string

	// Host is the loop handlers are delivered on. When nil, Async starts its
	// own SingleThreadTaskRunner and stops it on Close.
	Host core.TaskRunner

	Logger       core.Logger
	Metrics      core.Metrics
	PanicHandler core.PanicHandler

	// ErrorSink overrides the process-wide sink for this instance.
	ErrorSink ErrorSink

	// HistoryCapacity is the number of cleared tasks kept for inspection.
	// Negative disables the history.
	HistoryCapacity int

	// IdleFallbackDelay is used by RequestIdleCallback when Host cannot
	// detect idle periods.
	IdleFallbackDelay time.Duration

	// FrameFallbackDelay is used by RequestAnimationFrame when Host has no
	// frame clock.
	FrameFallbackDelay time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:               "async",
		Logger:             core.NewNoOpLogger(),
		Metrics:            &core.NilMetrics{},
		HistoryCapacity:    100,
		IdleFallbackDelay:  50 * time.Millisecond,
		FrameFallbackDelay: 16 * time.Millisecond,
	}
}

// Async registers timers, listeners, promises, proxies and workers and clears,
// mutes or suspends them in bulk by id, group or label.
//
// All methods are safe for concurrent use. Handlers scheduled by timers and
// promises run on the host loop; event handlers run on the goroutine that
// emitted the event; proxy handlers run on the goroutine calling the proxy.
type Async struct {
	name     string
	reg      *registry.Registry
	host     core.TaskRunner
	ownsHost bool

	logger  core.Logger
	metrics core.Metrics
	sink    ErrorSink

	idleFallback  time.Duration
	frameFallback time.Duration

	workers *workerArena
	closed  atomic.Bool
}

// New creates an Async with the default configuration.
func New() *Async {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates an Async with the given configuration.
func NewWithConfig(cfg *Config) *Async {
	def := DefaultConfig()
	if cfg == nil {
		cfg = def
	}
	c := *cfg
	if c.Name == "" {
		c.Name = def.Name
	}
	if c.Logger == nil {
		c.Logger = def.Logger
	}
	if c.Metrics == nil {
		c.Metrics = def.Metrics
	}
	if c.HistoryCapacity == 0 {
		c.HistoryCapacity = def.HistoryCapacity
	}
	if c.IdleFallbackDelay <= 0 {
		c.IdleFallbackDelay = def.IdleFallbackDelay
	}
	if c.FrameFallbackDelay <= 0 {
		c.FrameFallbackDelay = def.FrameFallbackDelay
	}

	a := &Async{
		name:          c.Name,
		host:          c.Host,
		logger:        core.WithFields(c.Logger, core.F("async", c.Name)),
		metrics:       c.Metrics,
		sink:          c.ErrorSink,
		idleFallback:  c.IdleFallbackDelay,
		frameFallback: c.FrameFallbackDelay,
	}
	if a.host == nil {
		a.host = core.NewSingleThreadTaskRunnerWithConfig(core.SingleThreadTaskRunnerConfig{
			Name:         c.Name,
			PanicHandler: c.PanicHandler,
			Logger:       c.Logger,
		})
		a.ownsHost = true
	}
	a.workers = newWorkerArena(a.logger)
	a.reg = registry.New(
		registry.WithLogger(a.logger),
		registry.WithMetrics(c.Metrics),
		registry.WithDispatcher(a.post),
		registry.WithHistoryCapacity(c.HistoryCapacity),
	)
	return a
}

// Registry exposes the underlying registry for inspection.
func (a *Async) Registry() *registry.Registry { return a.reg }

// Host returns the loop handlers are delivered on.
func (a *Async) Host() core.TaskRunner { return a.host }

// Close clears every task in every namespace and, if the host runner is owned
// by this Async, stops it. Close is idempotent.
func (a *Async) Close() {
	if a.closed.Swap(true) {
		return
	}
	n := a.ClearAll(All)
	a.logger.Info("async closed", core.F("cleared", n))

	if a.ownsHost {
		if r, ok := a.host.(interface{ Stop() }); ok {
			r.Stop()
		}
	}
}

// post runs fn on the host loop. When the host no longer accepts work, fn runs
// on the calling goroutine so that pending settlements are not lost.
func (a *Async) post(fn func()) {
	if c, ok := a.host.(interface{ IsClosed() bool }); ok && c.IsClosed() {
		fn()
		return
	}
	a.host.PostTask(func(ctx context.Context) { fn() })
}

// =============================================================================
// Bulk operations
// =============================================================================

// Clear cancels every task of ns matched by f and returns how many were cleared.
func (a *Async) Clear(ns Namespace, f Filter) int { return a.reg.Cancel(ns, f) }

// Mute suppresses handler delivery of matched tasks. The underlying resources
// keep running.
func (a *Async) Mute(ns Namespace, f Filter) int { return a.reg.Mark(ns, registry.Mute, f) }

// Unmute re-enables handler delivery.
func (a *Async) Unmute(ns Namespace, f Filter) int { return a.reg.Mark(ns, registry.Unmute, f) }

// Suspend queues handler deliveries of matched tasks until they are unsuspended.
func (a *Async) Suspend(ns Namespace, f Filter) int { return a.reg.Mark(ns, registry.Suspend, f) }

// Unsuspend replays queued deliveries on the host loop, in order.
func (a *Async) Unsuspend(ns Namespace, f Filter) int {
	return a.reg.Mark(ns, registry.Unsuspend, f)
}

// ClearAll clears matched tasks in every namespace.
func (a *Async) ClearAll(f Filter) int {
	n := 0
	for _, ns := range registry.Namespaces {
		n += a.reg.Cancel(ns, f)
	}
	return n
}

// MuteAll mutes matched tasks in every namespace.
func (a *Async) MuteAll(f Filter) int { return a.markAll(registry.Mute, f) }

// UnmuteAll unmutes matched tasks in every namespace.
func (a *Async) UnmuteAll(f Filter) int { return a.markAll(registry.Unmute, f) }

// SuspendAll suspends matched tasks in every namespace.
func (a *Async) SuspendAll(f Filter) int { return a.markAll(registry.Suspend, f) }

// UnsuspendAll unsuspends matched tasks in every namespace.
func (a *Async) UnsuspendAll(f Filter) int { return a.markAll(registry.Unsuspend, f) }

func (a *Async) markAll(flag registry.Flag, f Filter) int {
	n := 0
	for _, ns := range registry.Namespaces {
		n += a.reg.Mark(ns, flag, f)
	}
	return n
}

// =============================================================================
// Registration helpers
// =============================================================================

// Options are shared by every registration.
type Options struct {
	// Group tags the task for bulk operations.
	Group string
	// Label makes the task unique within its group: registering another task
	// with the same group and label cancels this one, unless Join is set.
	Label string
	// Join merges the registration into a live task with the same label, or
	// with the same group when there is no label.
	Join JoinMode

	// OnClear fires once when the task leaves the registry.
	OnClear func(t *Task, reason ClearReason)
	// OnMerge fires on the live task when another registration joins it.
	OnMerge func(t *Task)
}

// spec fills the shared fields of s from opts.
func (a *Async) spec(ns Namespace, opts Options, s registry.Spec) registry.Spec {
	s.Namespace = ns
	s.Group = opts.Group
	s.Label = opts.Label
	s.Join = opts.Join

	if own, user := s.OnClear, opts.OnClear; user != nil {
		s.OnClear = func(t *registry.Task, reason registry.ClearReason) {
			if own != nil {
				own(t, reason)
			}
			user(t, reason)
		}
	}
	if own, user := s.OnMerge, opts.OnMerge; user != nil {
		s.OnMerge = func(t *registry.Task, incoming *registry.Spec) {
			if own != nil {
				own(t, incoming)
			}
			user(t)
		}
	}
	return s
}

// stopHandle is the teardown of tasks backed by a core.TaskHandle.
func stopHandle(h any) {
	if th, ok := h.(core.TaskHandle); ok && th != nil {
		th.Stop()
	}
}

// flagHandle is a TaskHandle for work posted without a native handle.
type flagHandle struct {
	stopped atomic.Bool
}

func (h *flagHandle) Stop()           { h.stopped.Store(true) }
func (h *flagHandle) IsStopped() bool { return h.stopped.Load() }
