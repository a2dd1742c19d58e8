// Package event defines the listener vocabulary shared by emitters and the
// async event-listener binding, and a small in-process Emitter.
package event

// Listener is a callback registered with an emitter. Go functions are not
// comparable, so emitters identify listeners by pointer.
type Listener struct {
	fn func(args ...any)
}

// NewListener wraps fn.
func NewListener(fn func(args ...any)) *Listener {
	return &Listener{fn: fn}
}

// Call invokes the listener. A nil listener is a no-op.
func (l *Listener) Call(args ...any) {
	if l == nil || l.fn == nil {
		return
	}
	l.fn(args...)
}

// =============================================================================
// Capabilities
// =============================================================================

// Attach capabilities, checked in this order: OnceSubscriber (one-shot
// registrations only), EventListenerAdder, ListenerAdder, Subscriber.

type OnceSubscriber interface {
	Once(event string, l *Listener, args ...any)
}

type EventListenerAdder interface {
	AddEventListener(event string, l *Listener, args ...any)
}

type ListenerAdder interface {
	AddListener(event string, l *Listener, args ...any)
}

type Subscriber interface {
	On(event string, l *Listener, args ...any)
}

// Detach capabilities, checked in this order: EventListenerRemover,
// ListenerRemover, Unsubscriber.

type EventListenerRemover interface {
	RemoveEventListener(event string, l *Listener, args ...any)
}

type ListenerRemover interface {
	RemoveListener(event string, l *Listener, args ...any)
}

type Unsubscriber interface {
	Off(event string, l *Listener, args ...any)
}

// SubscribeFunc is an emitter expressed as a function. The returned
// function, if not nil, removes the subscription.
type SubscribeFunc func(event string, l *Listener, args ...any) (unsubscribe func())

// Dispatcher is implemented by targets that can dispatch events themselves.
type Dispatcher interface {
	Emit(event string, args ...any)
}
