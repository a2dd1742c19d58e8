package event

import (
	"slices"
	"sync"
)

type listenerEntry struct {
	l    *Listener
	once bool
}

// Emitter is a synchronous in-process event emitter. Listeners run on the
// goroutine that calls Emit, in registration order.
//
// Emitter is safe for concurrent use.
type Emitter struct {
	mu        sync.RWMutex
	listeners map[string][]listenerEntry
}

var (
	_ Subscriber     = (*Emitter)(nil)
	_ Unsubscriber   = (*Emitter)(nil)
	_ OnceSubscriber = (*Emitter)(nil)
	_ Dispatcher     = (*Emitter)(nil)
)

// NewEmitter creates an Emitter with no listeners.
func NewEmitter() *Emitter {
	return &Emitter{listeners: make(map[string][]listenerEntry)}
}

// On registers l for event. Extra arguments are ignored.
func (e *Emitter) On(event string, l *Listener, _ ...any) {
	e.add(event, l, false)
}

// Once registers l for the next dispatch of event only.
func (e *Emitter) Once(event string, l *Listener, _ ...any) {
	e.add(event, l, true)
}

// Off removes every registration of l for event.
func (e *Emitter) Off(event string, l *Listener, _ ...any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removeLocked(event, func(en listenerEntry) bool { return en.l == l })
}

// Emit calls the listeners of event with args. One-shot listeners are
// removed before any listener runs.
func (e *Emitter) Emit(event string, args ...any) {
	e.mu.Lock()
	entries := slices.Clone(e.listeners[event])
	e.removeLocked(event, func(en listenerEntry) bool { return en.once })
	e.mu.Unlock()

	for _, en := range entries {
		en.l.Call(args...)
	}
}

// ListenerCount returns the number of listeners for event.
func (e *Emitter) ListenerCount(event string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[event])
}

func (e *Emitter) add(event string, l *Listener, once bool) {
	if l == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[event] = append(e.listeners[event], listenerEntry{l: l, once: once})
}

func (e *Emitter) removeLocked(event string, drop func(listenerEntry) bool) {
	entries, ok := e.listeners[event]
	if !ok {
		return
	}
	entries = slices.DeleteFunc(entries, drop)
	if len(entries) == 0 {
		delete(e.listeners, event)
		return
	}
	e.listeners[event] = entries
}
