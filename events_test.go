package async

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Swind/go-async/event"
	"github.com/Swind/go-async/promise"
	"github.com/Swind/go-async/registry"
	"github.com/stretchr/testify/require"
)

// domTarget exposes the add/remove-event-listener capability pair and also an
// On method, and records which one was used.
type domTarget struct {
	mu        sync.Mutex
	calls     []string
	listeners map[string]*event.Listener
	args      []any
}

func newDOMTarget() *domTarget {
	return &domTarget{listeners: map[string]*event.Listener{}}
}

func (d *domTarget) AddEventListener(ev string, l *event.Listener, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "add:"+ev)
	d.listeners[ev] = l
	d.args = args
}

func (d *domTarget) RemoveEventListener(ev string, l *event.Listener, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "remove:"+ev)
	if d.listeners[ev] == l {
		delete(d.listeners, ev)
	}
}

func (d *domTarget) On(ev string, l *event.Listener, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "on:"+ev)
}

func (d *domTarget) dispatch(ev string, args ...any) {
	d.mu.Lock()
	l := d.listeners[ev]
	d.mu.Unlock()
	l.Call(args...)
}

func (d *domTarget) recorded() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// onlyOn can attach but not detach.
type onlyOn struct{}

func (onlyOn) On(string, *event.Listener, ...any) {}

// TestOn_MultipleEvents tests one registration per event
// Main test items:
// 1. Each whitespace-separated event gets its own id and default group
// 2. Handlers run synchronously on the emitting goroutine
// 3. Off by group detaches only that event
func TestOn_MultipleEvents(t *testing.T) {
	a, _ := newTestAsync(t)
	em := event.NewEmitter()
	var got []string

	ids, err := a.On(em, " open  close ", func(args ...any) error {
		got = append(got, args[0].(string))
		return nil
	}, ListenerOptions{})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	tasks := a.Registry().Find(EventListener, All)
	require.Equal(t, "open", tasks[0].Group())
	require.Equal(t, "close", tasks[1].Group())

	em.Emit("open", "o1")
	em.Emit("close", "c1")
	require.Equal(t, []string{"o1", "c1"}, got)

	require.Equal(t, 1, a.Off(ByGroup(Exact("open"))))
	require.Zero(t, em.ListenerCount("open"))
	require.Equal(t, 1, em.ListenerCount("close"))

	em.Emit("open", "o2")
	em.Emit("close", "c2")
	require.Equal(t, []string{"o1", "c1", "c2"}, got)

	require.Equal(t, 1, a.ClearEventListener(All))
	require.Zero(t, em.ListenerCount("close"))
}

// TestOnce_Siblings tests single listeners over several events
// Given: a Once registration for two events
// When: one of them fires
// Then: the handler runs once and both listeners are detached and cleared
func TestOnce_Siblings(t *testing.T) {
	a, _ := newTestAsync(t)
	em := event.NewEmitter()
	var calls int

	ids, err := a.Once(em, "done fail", func(...any) error {
		calls++
		return nil
	}, ListenerOptions{})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	em.Emit("fail")
	em.Emit("done")
	em.Emit("fail")

	require.Equal(t, 1, calls)
	require.Zero(t, a.Registry().Len(EventListener))
	require.Zero(t, em.ListenerCount("done"))
	require.Zero(t, em.ListenerCount("fail"))
}

// TestOn_CapabilityOrder tests which emitter methods are used
// Main test items:
// 1. AddEventListener wins over On
// 2. Args are forwarded to attach
// 3. Clearing detaches through RemoveEventListener exactly once
func TestOn_CapabilityOrder(t *testing.T) {
	a, _ := newTestAsync(t)
	target := newDOMTarget()

	ids, err := a.On(target, "click", func(...any) error { return nil }, ListenerOptions{Args: []any{true}})
	require.NoError(t, err)
	require.Equal(t, []any{true}, target.args)

	a.Off(ByID(ids[0]))
	a.Off(ByID(ids[0]))
	require.Equal(t, []string{"add:click", "remove:click"}, target.recorded())
}

// TestOn_SubscribeFunc tests function emitters
func TestOn_SubscribeFunc(t *testing.T) {
	a, _ := newTestAsync(t)
	var listener *event.Listener
	var unsubscribed int

	sub := event.SubscribeFunc(func(ev string, l *event.Listener, args ...any) func() {
		listener = l
		return func() { unsubscribed++ }
	})

	var got []any
	ids, err := a.On(sub, "data", func(args ...any) error {
		got = append(got, args...)
		return nil
	}, ListenerOptions{})
	require.NoError(t, err)

	listener.Call(1, 2)
	require.Equal(t, []any{1, 2}, got)

	a.Off(ByID(ids[0]))
	require.Equal(t, 1, unsubscribed)
}

// TestOn_AttachmentErrors tests emitters without usable methods
func TestOn_AttachmentErrors(t *testing.T) {
	a, _ := newTestAsync(t)
	handler := func(...any) error { return nil }

	_, err := a.On(struct{}{}, "x", handler, ListenerOptions{})
	var attachErr *registry.AttachmentError
	require.ErrorAs(t, err, &attachErr)
	require.Equal(t, "attach", attachErr.Capability)
	require.Equal(t, EventListener, attachErr.Namespace)

	_, err = a.On(onlyOn{}, "x", handler, ListenerOptions{})
	require.ErrorAs(t, err, &attachErr)
	require.Equal(t, "detach", attachErr.Capability)
	require.Equal(t, onlyOn{}, attachErr.Target)

	_, err = a.On(event.NewEmitter(), "   ", handler, ListenerOptions{})
	require.ErrorIs(t, err, registry.ErrInvalidSpec)

	_, err = a.On(event.NewEmitter(), "x", nil, ListenerOptions{})
	require.ErrorIs(t, err, registry.ErrInvalidSpec)

	require.Zero(t, a.Registry().Len(EventListener))
}

// TestOn_MuteAndSuspend tests listener state
// Given: a listener that is muted, then suspended
// When: events are emitted
// Then: muted events are lost, suspended events are replayed on the host loop
func TestOn_MuteAndSuspend(t *testing.T) {
	a, _ := newTestAsync(t)
	em := event.NewEmitter()
	var mu sync.Mutex
	var got []any

	_, err := a.On(em, "msg", func(args ...any) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, args[0])
		return nil
	}, ListenerOptions{Options: Options{Group: "chat"}})
	require.NoError(t, err)

	a.Mute(EventListener, ByGroup(Exact("chat")))
	em.Emit("msg", 1)
	a.Unmute(EventListener, ByGroup(Exact("chat")))

	a.Suspend(EventListener, ByGroup(Exact("chat")))
	em.Emit("msg", 2)
	em.Emit("msg", 3)
	mu.Lock()
	require.Empty(t, got)
	mu.Unlock()

	a.Unsuspend(EventListener, ByGroup(Exact("chat")))
	flush(t, a)
	em.Emit("msg", 4)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []any{2, 3, 4}, got)
}

// TestOn_HandlerError tests that handler errors reach the sink
func TestOn_HandlerError(t *testing.T) {
	a, rec := newTestAsync(t)
	em := event.NewEmitter()
	boom := errors.New("boom")

	ids, err := a.On(em, "save", func(...any) error { return boom }, ListenerOptions{})
	require.NoError(t, err)
	em.Emit("save")

	errs := rec.all()
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], boom)
	require.Equal(t, ids[0], errs[0].ID)
	require.Equal(t, "save", errs[0].Group)
}

// TestOnAsync_Rejection tests handlers that return promises
// Main test items:
// 1. A rejected promise goes to the sink with the listener's id and group
// 2. A promise rejected later is reported when it settles
// 3. Fulfilled and nil promises report nothing
// 4. Promises that only implement promise.Like are watched too
func TestOnAsync_Rejection(t *testing.T) {
	a, rec := newTestAsync(t)
	em := event.NewEmitter()
	boom := errors.New("boom")
	late, _, rejectLate := promise.WithResolvers()
	foreign, _, rejectForeign := promise.WithResolvers()

	ids, err := a.OnAsync(em, "now later ok none foreign", func(args ...any) promise.Like {
		switch args[0] {
		case "now":
			return promise.Reject(boom)
		case "later":
			return late
		case "ok":
			return promise.Resolve(1)
		case "foreign":
			return &likeOnly{p: foreign}
		}
		return nil
	}, ListenerOptions{})
	require.NoError(t, err)

	em.Emit("now", "now")
	require.Len(t, rec.all(), 1)
	require.ErrorIs(t, rec.all()[0], boom)
	require.Equal(t, ids[0], rec.all()[0].ID)
	require.Equal(t, "now", rec.all()[0].Group)

	em.Emit("later", "later")
	em.Emit("ok", "ok")
	em.Emit("none", "none")
	require.Len(t, rec.all(), 1)

	lateErr := errors.New("late")
	rejectLate(lateErr)
	require.Len(t, rec.all(), 2)
	require.ErrorIs(t, rec.all()[1], lateErr)
	require.Equal(t, ids[1], rec.all()[1].ID)

	em.Emit("foreign", "foreign")
	rejectForeign(boom)
	require.Eventually(t, func() bool { return rec.len() == 3 }, time.Second, 5*time.Millisecond)
	require.Equal(t, ids[4], rec.all()[2].ID)

	_, err = a.OnAsync(em, "x", nil, ListenerOptions{})
	require.ErrorIs(t, err, registry.ErrInvalidSpec)
}

// TestOnceAsync tests that a single async listener detaches after firing
func TestOnceAsync(t *testing.T) {
	a, rec := newTestAsync(t)
	em := event.NewEmitter()
	boom := errors.New("boom")

	_, err := a.OnceAsync(em, "save", func(...any) promise.Like { return promise.Reject(boom) }, ListenerOptions{})
	require.NoError(t, err)
	em.Emit("save")
	em.Emit("save")

	require.Len(t, rec.all(), 1)
	require.Zero(t, em.ListenerCount("save"))
}

// TestPromisifyOnce_Resolve tests promise results
// Main test items:
// 1. A single argument is the result
// 2. Several arguments resolve as []any
// 3. Handler maps arguments and its error rejects
func TestPromisifyOnce_Resolve(t *testing.T) {
	a, _ := newTestAsync(t)
	em := event.NewEmitter()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	one, err := a.PromisifyOnce(em, "one", PromisifyOptions{})
	require.NoError(t, err)
	many, err := a.PromisifyOnce(em, "many", PromisifyOptions{})
	require.NoError(t, err)
	boom := errors.New("bad status")
	mapped, err := a.PromisifyOnce(em, "status", PromisifyOptions{
		Handler: func(args ...any) (any, error) {
			if args[0].(int) >= 400 {
				return nil, boom
			}
			return args[0], nil
		},
	})
	require.NoError(t, err)

	em.Emit("one", "a")
	em.Emit("many", "a", "b")
	em.Emit("status", 500)

	v, err := one.Await(ctx)
	require.NoError(t, err)
	require.Equal(t, "a", v)

	v, err = many.Await(ctx)
	require.NoError(t, err)
	require.Equal(t, []any{"a", "b"}, v)

	_, err = mapped.Await(ctx)
	require.Same(t, boom, err)

	flush(t, a)
	require.Zero(t, a.Registry().Len(Promise))
	require.Zero(t, a.Registry().Len(EventListener))
}

// TestPromisifyOnce_Cancel tests both directions of cancellation
// Given: two promisified events
// When: one promise is cancelled and the other's listener is removed
// Then: both promises reject with a ClearError and nothing stays attached
func TestPromisifyOnce_Cancel(t *testing.T) {
	a, _ := newTestAsync(t)
	em := event.NewEmitter()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	p1, err := a.PromisifyOnce(em, "a b", PromisifyOptions{
		ListenerOptions: ListenerOptions{Options: Options{Label: "p1"}},
	})
	require.NoError(t, err)
	p2, err := a.PromisifyOnce(em, "c", PromisifyOptions{})
	require.NoError(t, err)
	require.Equal(t, 3, a.Registry().Len(EventListener))

	require.Equal(t, 1, a.CancelPromise(ByLabel("p1")))
	_, err = p1.Await(ctx)
	var clearErr *registry.ClearError
	require.ErrorAs(t, err, &clearErr)
	require.Equal(t, ReasonCancelled, clearErr.Reason)
	require.Zero(t, em.ListenerCount("a"))
	require.Zero(t, em.ListenerCount("b"))

	require.Equal(t, 1, a.Off(ByGroup(Exact("c"))))
	_, err = p2.Await(ctx)
	require.ErrorIs(t, err, registry.ErrCleared)

	require.Zero(t, a.Registry().Len(Promise))
	require.Zero(t, a.Registry().Len(EventListener))
}

// TestPromisifyOnce_AttachError tests emitters that cannot attach
func TestPromisifyOnce_AttachError(t *testing.T) {
	a, _ := newTestAsync(t)

	p, err := a.PromisifyOnce(42, "x", PromisifyOptions{})
	require.Nil(t, p)
	require.ErrorIs(t, err, registry.ErrAttachment)
	require.Zero(t, a.Registry().Len(Promise))
}

// TestOn_EventloopTarget tests bindings over an eventloop.EventTarget
// Main test items:
// 1. On attaches through AddEventListener and receives Emit arguments
// 2. Once attaches through the target's one-shot registration
// 3. Clearing detaches every listener from the target
func TestOn_EventloopTarget(t *testing.T) {
	a, _ := newTestAsync(t)
	et := event.NewEventTarget()
	var got []any

	_, err := a.On(et, "msg", func(args ...any) error {
		got = append(got, args...)
		return nil
	}, ListenerOptions{})
	require.NoError(t, err)
	_, err = a.Once(et, "msg", func(...any) error {
		got = append(got, "once")
		return nil
	}, ListenerOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, et.ListenerCount("msg"))

	et.Emit("msg", 1)
	et.Emit("msg", 2)
	require.Equal(t, []any{1, "once", 2}, got)
	require.Equal(t, 1, et.ListenerCount("msg"))

	require.Equal(t, 1, a.ClearEventListener(All))
	require.Zero(t, et.ListenerCount("msg"))
}
