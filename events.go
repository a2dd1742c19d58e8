package async

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Swind/go-async/core"
	"github.com/Swind/go-async/event"
	"github.com/Swind/go-async/promise"
	"github.com/Swind/go-async/registry"
)

// EventHandler handles one event. A returned error, like a panic, goes to the
// error sink.
type EventHandler func(args ...any) error

// AsyncEventHandler handles one event and may return the promise of work it
// started. If that promise rejects, the rejection goes to the error sink.
type AsyncEventHandler func(args ...any) promise.Like

// listenerFunc is the common form of EventHandler and AsyncEventHandler.
type listenerFunc func(args ...any) (promise.Like, error)

// ListenerOptions configure On and Once.
type ListenerOptions struct {
	Options
	// Single removes the listener after its first delivery. When several
	// events are given, the first one to fire removes all of them.
	Single bool
	// Args are forwarded to the emitter's attach and detach methods.
	Args []any
}

// attacher and detacher are the emitter capabilities picked at registration.
type attacher func(event string, l *event.Listener, args ...any) (unsubscribe func())
type detacher func(event string, l *event.Listener, args ...any)

func resolveAttacher(emitter any, single bool) (attacher, string, bool) {
	switch e := emitter.(type) {
	case event.SubscribeFunc:
		return attacher(e), "func", true
	case func(string, *event.Listener, ...any) func():
		return attacher(e), "func", true
	}
	if o, ok := emitter.(event.OnceSubscriber); ok && single {
		return func(ev string, l *event.Listener, args ...any) func() {
			o.Once(ev, l, args...)
			return nil
		}, "Once", true
	}
	if e, ok := emitter.(event.EventListenerAdder); ok {
		return func(ev string, l *event.Listener, args ...any) func() {
			e.AddEventListener(ev, l, args...)
			return nil
		}, "AddEventListener", true
	}
	if e, ok := emitter.(event.ListenerAdder); ok {
		return func(ev string, l *event.Listener, args ...any) func() {
			e.AddListener(ev, l, args...)
			return nil
		}, "AddListener", true
	}
	if e, ok := emitter.(event.Subscriber); ok {
		return func(ev string, l *event.Listener, args ...any) func() {
			e.On(ev, l, args...)
			return nil
		}, "On", true
	}
	return nil, "", false
}

func resolveDetacher(emitter any) (detacher, bool) {
	if e, ok := emitter.(event.EventListenerRemover); ok {
		return e.RemoveEventListener, true
	}
	if e, ok := emitter.(event.ListenerRemover); ok {
		return e.RemoveListener, true
	}
	if e, ok := emitter.(event.Unsubscriber); ok {
		return e.Off, true
	}
	return nil, false
}

// listenerBatch groups the tasks created by one On call.
type listenerBatch struct {
	mu    sync.Mutex
	ids   []ID
	fired atomic.Bool
}

func (b *listenerBatch) add(id ID) {
	b.mu.Lock()
	b.ids = append(b.ids, id)
	b.mu.Unlock()
}

func (b *listenerBatch) snapshot() []ID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ID(nil), b.ids...)
}

// listenerState is the native side of one listener task.
type listenerState struct {
	event    string
	listener *event.Listener
	args     []any
	detach   detacher
	unsub    func()
	attached atomic.Bool
	done     atomic.Bool
}

func (s *listenerState) release() {
	if !s.attached.Load() || s.done.Swap(true) {
		return
	}
	if s.unsub != nil {
		s.unsub()
		return
	}
	if s.detach != nil {
		s.detach(s.event, s.listener, s.args...)
	}
}

// On attaches handler to each whitespace-separated event of emitter and
// returns one id per event. Each event's group defaults to the event name.
//
// emitter is an event.SubscribeFunc or implements one of the attach
// capabilities of package event, plus a detach capability unless it is a
// SubscribeFunc. Otherwise On returns a *registry.AttachmentError.
func (a *Async) On(emitter any, events string, handler EventHandler, opts ListenerOptions) ([]ID, error) {
	if handler == nil {
		return nil, fmt.Errorf("%w: nil event handler", registry.ErrInvalidSpec)
	}
	ids, _, err := a.listen(emitter, events, func(args ...any) (promise.Like, error) {
		return nil, handler(args...)
	}, opts, nil)
	return ids, err
}

// OnAsync is On for handlers that return a promise. A rejected promise is
// reported to the error sink like a returned error.
func (a *Async) OnAsync(emitter any, events string, handler AsyncEventHandler, opts ListenerOptions) ([]ID, error) {
	if handler == nil {
		return nil, fmt.Errorf("%w: nil event handler", registry.ErrInvalidSpec)
	}
	ids, _, err := a.listen(emitter, events, func(args ...any) (promise.Like, error) {
		return handler(args...), nil
	}, opts, nil)
	return ids, err
}

// Once is On with Single set.
func (a *Async) Once(emitter any, events string, handler EventHandler, opts ListenerOptions) ([]ID, error) {
	opts.Single = true
	return a.On(emitter, events, handler, opts)
}

// OnceAsync is OnAsync with Single set.
func (a *Async) OnceAsync(emitter any, events string, handler AsyncEventHandler, opts ListenerOptions) ([]ID, error) {
	opts.Single = true
	return a.OnAsync(emitter, events, handler, opts)
}

// Off detaches matched listeners.
func (a *Async) Off(f Filter) int { return a.reg.Cancel(EventListener, f) }

// ClearEventListener is Off.
func (a *Async) ClearEventListener(f Filter) int { return a.Off(f) }

// listen registers the listeners. onAbort, if set, fires once when a listener
// of the batch is cleared before any of them fired.
func (a *Async) listen(emitter any, events string, handler listenerFunc, opts ListenerOptions, onAbort func()) ([]ID, *listenerBatch, error) {
	names := strings.Fields(events)
	if len(names) == 0 {
		return nil, nil, fmt.Errorf("%w: no events given", registry.ErrInvalidSpec)
	}

	attach, via, ok := resolveAttacher(emitter, opts.Single)
	if !ok {
		return nil, nil, &registry.AttachmentError{
			Namespace:  EventListener,
			Target:     emitter,
			Capability: "attach",
		}
	}
	var detach detacher
	if via != "func" {
		if detach, ok = resolveDetacher(emitter); !ok {
			return nil, nil, &registry.AttachmentError{
				Namespace:  EventListener,
				Target:     emitter,
				Capability: "detach",
			}
		}
	}

	batch := &listenerBatch{}
	var aborted atomic.Bool

	for _, name := range names {
		lo := opts.Options
		if lo.Group == "" {
			lo.Group = name
		}
		st := &listenerState{event: name, args: opts.Args, detach: detach}

		var task atomic.Pointer[registry.Task]
		st.listener = event.NewListener(func(args ...any) {
			t := task.Load()
			if t == nil {
				return
			}
			t.Deliver(func() {
				a.invoke(t, func() error {
					p, err := handler(args...)
					if p != nil {
						a.watchRejection(t, p)
					}
					return err
				})
			})
		})

		spec := a.spec(EventListener, lo, registry.Spec{
			Periodic: !opts.Single,
			Payload:  handler,
			Create: func(t *registry.Task) (any, error) {
				task.Store(t)
				st.unsub = attach(name, st.listener, opts.Args...)
				st.attached.Store(true)
				return st, nil
			},
			Teardown: func(any) { st.release() },
			OnClear: func(t *registry.Task, reason registry.ClearReason) {
				if reason == registry.ReasonCompleted {
					// A single listener fired: detach it and its siblings
					st.release()
					batch.fired.Store(true)
					for _, id := range batch.snapshot() {
						if id != t.ID() {
							a.reg.Cancel(EventListener, ByID(id))
						}
					}
					return
				}
				if onAbort != nil && !batch.fired.Load() && !aborted.Swap(true) {
					onAbort()
				}
			},
		})

		id, err := a.reg.Register(spec)
		if err != nil {
			for _, prev := range batch.snapshot() {
				a.reg.Cancel(EventListener, ByID(prev))
			}
			return nil, nil, err
		}
		batch.add(id)
	}

	ids := batch.snapshot()
	a.logger.Debug("listeners attached",
		core.F("events", events),
		core.F("via", via),
		core.F("count", len(ids)),
	)
	return ids, batch, nil
}

// PromisifyOptions configure PromisifyOnce.
type PromisifyOptions struct {
	ListenerOptions
	// Handler maps the event arguments to the promise result. By default the
	// promise resolves with the only argument, or with all of them as []any.
	Handler func(args ...any) (any, error)
}

// PromisifyOnce returns a promise settled by the first of events to fire.
// The promise is registered in the Promise namespace and its listeners in the
// EventListener namespace; clearing either side clears the other and
// rejects the promise with a *registry.ClearError.
func (a *Async) PromisifyOnce(emitter any, events string, opts PromisifyOptions) (*promise.Promise, error) {
	lo := opts.ListenerOptions
	lo.Single = true
	// Hooks and joining belong to the promise task
	lo.OnClear, lo.OnMerge = nil, nil
	lo.Join = JoinNone

	var attachErr error
	p := a.registerPromise(opts.Options, func(t *registry.Task, settle func(any, error)) (func(), error) {
		handler := func(args ...any) (promise.Like, error) {
			var (
				v   any
				err error
			)
			switch {
			case opts.Handler != nil:
				v, err = opts.Handler(args...)
			case len(args) == 1:
				v = args[0]
			case len(args) > 1:
				v = args
			}
			settle(v, err)
			return nil, nil
		}
		ids, _, err := a.listen(emitter, events, handler, lo, func() { t.Cancel() })
		if err != nil {
			attachErr = err
			return nil, err
		}
		return func() {
			for _, id := range ids {
				a.reg.Cancel(EventListener, ByID(id))
			}
		}, nil
	})
	if attachErr != nil {
		return nil, attachErr
	}
	return p, nil
}

// watchRejection reports a rejection of p, returned by a handler of t, to the
// error sink.
func (a *Async) watchRejection(t *registry.Task, p promise.Like) {
	herr := a.handlerError(t)
	onSettled := func(_ any, err error) {
		if err != nil {
			herr.Err = err
			a.report(herr)
		}
	}
	if pp, ok := p.(*promise.Promise); ok {
		if pp != nil {
			pp.OnSettled(onSettled)
		}
		return
	}
	go func() {
		<-p.Done()
		onSettled(p.Result())
	}()
}
