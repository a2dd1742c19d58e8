package event

import (
	"sync"

	"github.com/joeycumines/go-eventloop"
)

// EventTarget adapts an eventloop.EventTarget to the listener capabilities.
//
// Events sent with Emit carry their arguments as a []any detail and reach
// listeners as those arguments. Events dispatched directly on the underlying
// target reach listeners as a single *eventloop.Event argument.
type EventTarget struct {
	target *eventloop.EventTarget

	mu  sync.Mutex
	ids map[targetKey][]eventloop.ListenerID
}

type targetKey struct {
	event string
	l     *Listener
}

var (
	_ EventListenerAdder   = (*EventTarget)(nil)
	_ EventListenerRemover = (*EventTarget)(nil)
	_ OnceSubscriber       = (*EventTarget)(nil)
	_ Dispatcher           = (*EventTarget)(nil)
)

// NewEventTarget creates an adapter over a new eventloop.EventTarget.
func NewEventTarget() *EventTarget {
	return WrapEventTarget(eventloop.NewEventTarget())
}

// WrapEventTarget adapts target.
func WrapEventTarget(target *eventloop.EventTarget) *EventTarget {
	return &EventTarget{target: target, ids: make(map[targetKey][]eventloop.ListenerID)}
}

// Target returns the underlying eventloop.EventTarget.
func (t *EventTarget) Target() *eventloop.EventTarget { return t.target }

// AddEventListener registers l for event. Extra arguments are ignored.
func (t *EventTarget) AddEventListener(event string, l *Listener, _ ...any) {
	t.add(event, l, false)
}

// Once registers l for the next dispatch of event only.
func (t *EventTarget) Once(event string, l *Listener, _ ...any) {
	t.add(event, l, true)
}

// RemoveEventListener removes every registration of l for event.
func (t *EventTarget) RemoveEventListener(event string, l *Listener, _ ...any) {
	key := targetKey{event, l}
	t.mu.Lock()
	ids := t.ids[key]
	delete(t.ids, key)
	t.mu.Unlock()

	for _, id := range ids {
		t.target.RemoveEventListenerByID(event, id)
	}
}

// Emit dispatches event with args as its detail.
func (t *EventTarget) Emit(event string, args ...any) {
	t.target.DispatchEvent(eventloop.NewCustomEvent(event, args).EventPtr())
}

// ListenerCount returns the number of listeners registered for event.
func (t *EventTarget) ListenerCount(event string) int {
	return t.target.ListenerCount(event)
}

func (t *EventTarget) add(event string, l *Listener, once bool) {
	key := targetKey{event, l}
	var id eventloop.ListenerID
	fn := func(e *eventloop.Event) {
		if once {
			t.forget(key, &id)
		}
		if args, ok := e.Detail().([]any); ok {
			l.Call(args...)
			return
		}
		l.Call(e)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if once {
		id = t.target.AddEventListenerOnce(event, fn)
	} else {
		id = t.target.AddEventListener(event, fn)
	}
	t.ids[key] = append(t.ids[key], id)
}

// forget drops a fired one-shot registration, which the target has already
// removed.
func (t *EventTarget) forget(key targetKey, id *eventloop.ListenerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := t.ids[key]
	for i, v := range ids {
		if v == *id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(t.ids, key)
	} else {
		t.ids[key] = ids
	}
}
