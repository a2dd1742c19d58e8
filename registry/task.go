package registry

import (
	"sync/atomic"

	"github.com/gammazero/deque"
)

// ID identifies a task within one Registry. Zero is never allocated.
type ID uint64

// Task is one live registration. Its identity fields are immutable; the
// mute/suspend flags and liveness are owned by the registry and only change
// through Registry.Mark, Registry.Cancel, or delivery.
type Task struct {
	reg *Registry

	id        ID
	ns        Namespace
	group     string
	label     string
	periodic  bool
	keepMuted bool
	joinKey   string

	teardown func(any)
	onMerge  func(*Task, *Spec)
	onClear  func(*Task, ClearReason)

	// Guarded by reg.mu
	payload  any
	handle   any
	live     bool
	creating bool
	muted    bool
	paused   bool
	reason   ClearReason
	queue    deque.Deque[func()]

	released atomic.Bool
}

func (t *Task) ID() ID               { return t.id }
func (t *Task) Namespace() Namespace { return t.ns }
func (t *Task) Group() string        { return t.group }
func (t *Task) Label() string        { return t.label }
func (t *Task) Periodic() bool       { return t.periodic }

// Muted reports the mute flag.
func (t *Task) Muted() bool {
	t.reg.mu.Lock()
	defer t.reg.mu.Unlock()
	return t.muted
}

// Paused reports the suspend flag.
func (t *Task) Paused() bool {
	t.reg.mu.Lock()
	defer t.reg.mu.Unlock()
	return t.paused
}

// Live reports whether the task is still registered.
func (t *Task) Live() bool {
	t.reg.mu.Lock()
	defer t.reg.mu.Unlock()
	return t.live
}

// Handle returns what Create returned. It is nil while Create is running.
func (t *Task) Handle() any {
	t.reg.mu.Lock()
	defer t.reg.mu.Unlock()
	return t.handle
}

// Payload returns the caller data of the task.
func (t *Task) Payload() any {
	t.reg.mu.Lock()
	defer t.reg.mu.Unlock()
	return t.payload
}

// Pending returns the number of deliveries queued while suspended.
func (t *Task) Pending() int {
	t.reg.mu.Lock()
	defer t.reg.mu.Unlock()
	return t.queue.Len()
}

// Deliver passes one firing of the underlying resource through the task's
// current state and reports whether fn ran:
//   - a cleared task drops the delivery;
//   - a suspended task queues fn until it is unsuspended;
//   - a one-shot task is retired before fn runs, unless it is muted and
//     keeps muted deliveries;
//   - a muted task drops fn.
func (t *Task) Deliver(fn func()) bool {
	r := t.reg

	r.mu.Lock()
	if !t.live {
		r.mu.Unlock()
		return false
	}
	if t.paused {
		t.queue.PushBack(fn)
		r.mu.Unlock()
		r.metrics.RecordHandlerSuppressed(t.ns.String(), "paused")
		return false
	}
	muted := t.muted
	complete := !t.periodic && !(muted && t.keepMuted)
	if complete {
		r.unindexLocked(t, ReasonCompleted)
	}
	r.mu.Unlock()

	if complete {
		r.finish(t, ReasonCompleted)
	}
	if muted {
		r.metrics.RecordHandlerSuppressed(t.ns.String(), "muted")
		return false
	}
	fn()
	return true
}

// Cancel clears this task. It is a no-op for tasks that already left.
func (t *Task) Cancel() bool {
	return t.reg.Cancel(t.ns, ByID(t.id)) > 0
}

// release runs the teardown at most once.
func (t *Task) release(handle any) {
	if t.teardown == nil || t.released.Swap(true) {
		return
	}
	t.teardown(handle)
}
