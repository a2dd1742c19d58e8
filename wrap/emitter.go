package wrap

import (
	async "github.com/Swind/go-async"
	"github.com/Swind/go-async/event"
	"github.com/Swind/go-async/promise"
)

// EventEmitter registers listeners on an emitter through an Async.
type EventEmitter struct {
	a      *async.Async
	target any
	opts   Options
}

// WrapEventEmitter wraps emitter. emitter must satisfy the attach and detach
// capabilities accepted by async.On; this is checked when listeners attach.
func WrapEventEmitter(a *async.Async, emitter any, opts Options) *EventEmitter {
	return &EventEmitter{a: a, target: emitter, opts: opts}
}

// On attaches handler to events.
func (e *EventEmitter) On(events string, handler async.EventHandler, opts async.ListenerOptions) ([]async.ID, error) {
	opts.Options = e.opts.merge(opts.Options)
	return e.a.On(e.target, events, handler, opts)
}

// Once attaches handler to events until the first of them fires.
func (e *EventEmitter) Once(events string, handler async.EventHandler, opts async.ListenerOptions) ([]async.ID, error) {
	opts.Options = e.opts.merge(opts.Options)
	return e.a.Once(e.target, events, handler, opts)
}

// OnAsync attaches a promise-returning handler to events.
func (e *EventEmitter) OnAsync(events string, handler async.AsyncEventHandler, opts async.ListenerOptions) ([]async.ID, error) {
	opts.Options = e.opts.merge(opts.Options)
	return e.a.OnAsync(e.target, events, handler, opts)
}

// PromisifyOnce returns a promise settled by the first of events.
func (e *EventEmitter) PromisifyOnce(events string, opts async.PromisifyOptions) (*promise.Promise, error) {
	opts.Options = e.opts.merge(opts.Options)
	return e.a.PromisifyOnce(e.target, events, opts)
}

// Off detaches the matched listeners of this wrapper.
func (e *EventEmitter) Off(f async.Filter) int {
	return e.a.Off(e.opts.Filter(f))
}

// Emit forwards to the wrapped emitter and reports whether it can emit.
func (e *EventEmitter) Emit(name string, args ...any) bool {
	d, ok := e.target.(event.Dispatcher)
	if !ok {
		return false
	}
	d.Emit(name, args...)
	return true
}

// Unwrap returns the wrapped emitter.
func (e *EventEmitter) Unwrap() any { return e.target }
