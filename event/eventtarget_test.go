package event

import (
	"testing"

	"github.com/joeycumines/go-eventloop"
	"github.com/stretchr/testify/require"
)

// TestEventTarget_AddRemove tests the adapter over eventloop.EventTarget
// Main test items:
// 1. Emit passes its arguments to listeners
// 2. RemoveEventListener detaches only the given listener
// 3. Events dispatched on the underlying target arrive as *eventloop.Event
func TestEventTarget_AddRemove(t *testing.T) {
	et := NewEventTarget()
	var got []any

	a := NewListener(func(args ...any) { got = append(got, args...) })
	b := NewListener(func(args ...any) { got = append(got, "b") })
	et.AddEventListener("msg", a)
	et.AddEventListener("msg", b)
	require.Equal(t, 2, et.ListenerCount("msg"))

	et.Emit("msg", 1, 2)
	require.Equal(t, []any{1, 2, "b"}, got)

	et.RemoveEventListener("msg", a)
	et.RemoveEventListener("msg", a)
	require.Equal(t, 1, et.ListenerCount("msg"))

	got = nil
	raw := eventloop.NewEvent("msg")
	var seen *eventloop.Event
	et.AddEventListener("msg", NewListener(func(args ...any) { seen = args[0].(*eventloop.Event) }))
	et.Target().DispatchEvent(raw)
	require.Same(t, raw, seen)
	require.Equal(t, []any{"b"}, got)
}

// TestEventTarget_Once tests one-shot registrations
func TestEventTarget_Once(t *testing.T) {
	et := WrapEventTarget(eventloop.NewEventTarget())
	var calls int
	l := NewListener(func(...any) { calls++ })

	et.Once("done", l)
	et.Emit("done")
	et.Emit("done")
	require.Equal(t, 1, calls)
	require.Zero(t, et.ListenerCount("done"))
	require.Empty(t, et.ids)

	// Removing a listener that already fired is a no-op
	et.RemoveEventListener("done", l)
}
