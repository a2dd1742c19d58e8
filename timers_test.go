package async

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/Swind/go-async/core"
	"github.com/Swind/go-async/registry"
	"github.com/stretchr/testify/require"
)

// TestSetTimeout_FiresOnce tests one-shot timers
// Main test items:
// 1. The handler runs once after the delay
// 2. The task leaves the registry as completed
func TestSetTimeout_FiresOnce(t *testing.T) {
	a, _ := newTestAsync(t)
	var calls counter

	id := a.SetTimeout(calls.inc, 10*time.Millisecond, Options{Group: "g"})
	require.NotZero(t, id)
	require.Equal(t, 1, a.Registry().Len(Timeout))

	require.Eventually(t, func() bool { return calls.get() == 1 }, time.Second, 5*time.Millisecond)
	require.Zero(t, a.Registry().Len(Timeout))

	hist := a.Registry().History(1)
	require.Len(t, hist, 1)
	require.Equal(t, id, hist[0].ID)
	require.Equal(t, ReasonCompleted, hist[0].Reason)
}

// TestClearTimeout_BeforeFire tests cancellation
// Given: a pending timeout
// When: it is cleared twice
// Then: the first clear counts it, the second is a no-op, and it never fires
func TestClearTimeout_BeforeFire(t *testing.T) {
	a, _ := newTestAsync(t)
	var fired atomic.Bool

	id := a.SetTimeout(func() { fired.Store(true) }, 10*time.Millisecond, Options{})
	require.Equal(t, 1, a.ClearTimeout(ByID(id)))
	require.Equal(t, 0, a.ClearTimeout(ByID(id)))

	time.Sleep(40 * time.Millisecond)
	require.False(t, fired.Load())
}

// TestSetInterval_RepeatsUntilCleared tests periodic timers
func TestSetInterval_RepeatsUntilCleared(t *testing.T) {
	a, _ := newTestAsync(t)
	var calls counter

	id := a.SetInterval(calls.inc, 10*time.Millisecond, Options{})
	require.Eventually(t, func() bool { return calls.get() >= 3 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, a.Registry().Len(Interval))

	require.Equal(t, 1, a.ClearInterval(ByID(id)))
	flush(t, a)
	stopped := calls.get()
	time.Sleep(40 * time.Millisecond)
	require.Equal(t, stopped, calls.get())
}

// TestSetInterval_Mute tests muting a running interval
// Given: an interval that has fired at least once
// When: it is muted for several periods and then unmuted
// Then: no handler call happens while muted, and calls resume after unmute
func TestSetInterval_Mute(t *testing.T) {
	a, _ := newTestAsync(t)
	var calls counter

	a.SetInterval(calls.inc, 10*time.Millisecond, Options{Group: "tick"})
	require.Eventually(t, func() bool { return calls.get() >= 1 }, time.Second, 5*time.Millisecond)

	require.Equal(t, 1, a.Mute(Interval, ByGroup(Exact("tick"))))
	flush(t, a)
	muted := calls.get()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, muted, calls.get())
	require.Equal(t, 1, a.Registry().Len(Interval))

	require.Equal(t, 1, a.Unmute(Interval, ByGroup(Exact("tick"))))
	require.Eventually(t, func() bool { return calls.get() > muted }, time.Second, 5*time.Millisecond)
}

// TestSetTimeout_Suspend tests deferred delivery
// Main test items:
// 1. A timeout firing while suspended does not run and stays registered
// 2. Unsuspend replays it on the host loop
func TestSetTimeout_Suspend(t *testing.T) {
	a, _ := newTestAsync(t)
	var calls counter

	id := a.SetTimeout(calls.inc, 5*time.Millisecond, Options{})
	a.Suspend(Timeout, ByID(id))
	task, ok := a.Registry().Get(id)
	require.True(t, ok)

	require.Eventually(t, func() bool { return task.Pending() == 1 }, time.Second, 5*time.Millisecond)
	require.Zero(t, calls.get())
	require.True(t, task.Live())

	a.Unsuspend(Timeout, ByID(id))
	flush(t, a)
	require.Equal(t, 1, calls.get())
	require.False(t, task.Live())
}

// TestUnsuspend_FromHostLoop tests replaying a long queue from a handler
// Given: an interval suspended long enough to queue more deliveries than the host buffers
// When: UnsuspendAll is called from a task running on the host loop
// Then: the loop keeps running and every queued tick is delivered
func TestUnsuspend_FromHostLoop(t *testing.T) {
	a, _ := newTestAsync(t)
	var ticks counter
	g := ByGroup(Exact("g"))

	id := a.SetInterval(ticks.inc, time.Millisecond, Options{Group: "g"})
	require.Equal(t, 1, a.SuspendAll(g))
	task, ok := a.Registry().Get(id)
	require.True(t, ok)
	require.Eventually(t, func() bool { return task.Pending() > 200 }, 5*time.Second, 10*time.Millisecond)

	onLoop(t, a, func() { a.UnsuspendAll(g) })
	onLoop(t, a, func() {})
	require.GreaterOrEqual(t, ticks.get(), 200)
	require.Equal(t, 1, a.ClearInterval(ByID(id)))
}

// TestSetImmediate tests immediate callbacks
func TestSetImmediate(t *testing.T) {
	a, _ := newTestAsync(t)
	var ran, cleared atomic.Bool

	onLoop(t, a, func() {
		a.SetImmediate(func() { ran.Store(true) }, Options{})
		id := a.SetImmediate(func() { cleared.Store(true) }, Options{})
		a.ClearImmediate(ByID(id))
	})
	flush(t, a)

	require.True(t, ran.Load())
	require.False(t, cleared.Load())
	require.Zero(t, a.Registry().Len(Immediate))
}

// TestSetTimeout_Join tests single-flight timers
// Given: timeouts registered with the same label and a join mode
// When: they fire
// Then: merge keeps the first handler, replace swaps in the last one
func TestSetTimeout_Join(t *testing.T) {
	a, _ := newTestAsync(t)
	var merged, replaced atomic.Value
	var merges counter

	var ids [4]ID
	onLoop(t, a, func() {
		opts := Options{Label: "m", Join: JoinMerge, OnMerge: func(*Task) { merges.inc() }}
		ids[0] = a.SetTimeout(func() { merged.Store("first") }, time.Millisecond, opts)
		ids[1] = a.SetTimeout(func() { merged.Store("second") }, time.Millisecond, opts)

		opts = Options{Label: "r", Join: JoinReplace}
		ids[2] = a.SetTimeout(func() { replaced.Store("first") }, time.Millisecond, opts)
		ids[3] = a.SetTimeout(func() { replaced.Store("second") }, time.Millisecond, opts)
	})
	require.Equal(t, ids[0], ids[1])
	require.Equal(t, ids[2], ids[3])

	require.Eventually(t, func() bool {
		return merged.Load() != nil && replaced.Load() != nil
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, "first", merged.Load())
	require.Equal(t, "second", replaced.Load())
	require.Equal(t, 1, merges.get())
}

// TestSetTimeout_LabelReplace tests label uniqueness without join
func TestSetTimeout_LabelReplace(t *testing.T) {
	a, _ := newTestAsync(t)
	var reasons []ClearReason
	var fired atomic.Value

	onLoop(t, a, func() {
		a.SetTimeout(func() { fired.Store("first") }, 5*time.Millisecond, Options{
			Group:   "save",
			Label:   "draft",
			OnClear: func(_ *Task, r ClearReason) { reasons = append(reasons, r) },
		})
		a.SetTimeout(func() { fired.Store("second") }, 5*time.Millisecond, Options{Group: "save", Label: "draft"})
	})

	require.Eventually(t, func() bool { return fired.Load() != nil }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, "second", fired.Load())
	require.Equal(t, []ClearReason{ReasonReplaced}, reasons)
}

// TestSetTimeout_HandlerPanic tests that panics reach the sink
func TestSetTimeout_HandlerPanic(t *testing.T) {
	a, rec := newTestAsync(t)

	id := a.SetTimeout(func() { panic("boom") }, time.Millisecond, Options{Group: "g", Label: "l"})
	require.Eventually(t, func() bool { return rec.len() == 1 }, time.Second, 5*time.Millisecond)

	herr := rec.all()[0]
	require.Equal(t, id, herr.ID)
	require.Equal(t, Timeout, herr.Namespace)
	require.Equal(t, "g", herr.Group)
	require.Equal(t, "l", herr.Label)
	require.Equal(t, "boom", herr.Panic)
	require.NotEmpty(t, herr.Stack)

	// The host keeps running
	var ran atomic.Bool
	a.SetImmediate(func() { ran.Store(true) }, Options{})
	require.Eventually(t, ran.Load, time.Second, 5*time.Millisecond)
}

// TestRequestIdleCallback_Native tests idle callbacks on an idle-capable host
func TestRequestIdleCallback_Native(t *testing.T) {
	a, _ := newTestAsync(t)
	got := make(chan IdleDeadline, 1)

	a.RequestIdleCallback(func(d IdleDeadline) { got <- d }, IdleOptions{})

	select {
	case d := <-got:
		require.False(t, d.DidTimeout)
	case <-time.After(time.Second):
		t.Fatal("idle callback did not run")
	}
}

// TestRequestIdleCallback_Fallback tests hosts without idle detection
// Given: a host that only implements TaskRunner
// When: an idle callback is requested
// Then: it runs after the fallback delay with DidTimeout set
func TestRequestIdleCallback_Fallback(t *testing.T) {
	runner := core.NewSingleThreadTaskRunner()
	defer runner.Stop()
	a, _ := newTestAsync(t, func(c *Config) {
		c.Host = plainHost{runner}
		c.IdleFallbackDelay = 5 * time.Millisecond
	})
	got := make(chan IdleDeadline, 1)

	a.RequestIdleCallback(func(d IdleDeadline) { got <- d }, IdleOptions{})
	id := a.RequestIdleCallback(func(d IdleDeadline) { got <- d }, IdleOptions{})
	require.Equal(t, 1, a.CancelIdleCallback(ByID(id)))

	select {
	case d := <-got:
		require.True(t, d.DidTimeout)
	case <-time.After(time.Second):
		t.Fatal("idle callback did not run")
	}
	time.Sleep(20 * time.Millisecond)
	require.Empty(t, got)
}

// TestRequestAnimationFrame tests frame callbacks with and without a frame clock
func TestRequestAnimationFrame(t *testing.T) {
	a, _ := newTestAsync(t, func(c *Config) { c.FrameFallbackDelay = time.Millisecond })
	got := make(chan time.Time, 1)

	before := time.Now()
	a.RequestAnimationFrame(func(ft time.Time) { got <- ft }, Options{})
	require.False(t, (<-got).Before(before))

	id := a.RequestAnimationFrame(func(ft time.Time) { got <- ft }, Options{})
	require.Equal(t, 1, a.CancelAnimationFrame(ByID(id)))

	frame := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	runner := core.NewSingleThreadTaskRunner()
	defer runner.Stop()
	b, _ := newTestAsync(t, func(c *Config) { c.Host = &frameHost{SingleThreadTaskRunner: runner, frame: frame} })
	b.RequestAnimationFrame(func(ft time.Time) { got <- ft }, Options{})
	require.Equal(t, frame, <-got)
}

// TestTimers_RegistrationError tests that invalid timers are not registered
func TestTimers_RegistrationError(t *testing.T) {
	a, _ := newTestAsync(t)

	// A nil handler still registers; delivery is a no-op
	id := a.SetTimeout(nil, time.Millisecond, Options{})
	require.NotZero(t, id)
	require.Eventually(t, func() bool { return a.Registry().Len(Timeout) == 0 }, time.Second, 5*time.Millisecond)

	_, err := a.Registry().Register(registry.Spec{Namespace: Timeout})
	require.ErrorIs(t, err, registry.ErrInvalidSpec)
}
