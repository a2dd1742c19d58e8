package registry

// JoinMode controls single-flight merging of registrations.
type JoinMode int

const (
	// JoinNone always creates a new task. A live task with the same
	// group and label is cancelled first.
	JoinNone JoinMode = iota
	// JoinMerge returns the live task sharing the join key and fires its OnMerge.
	JoinMerge
	// JoinReplace behaves like JoinMerge and then stores the incoming payload
	// on the live task.
	JoinReplace
)

// ClearReason says why a task left the registry.
type ClearReason string

const (
	ReasonCancelled ClearReason = "cancelled"
	ReasonReplaced  ClearReason = "replaced"
	ReasonCompleted ClearReason = "completed"
)

// Spec describes a registration.
type Spec struct {
	Namespace Namespace
	Group     string
	Label     string
	// Periodic tasks stay registered after delivering; one-shot tasks are
	// retired by their first delivery.
	Periodic bool
	// KeepMuted keeps a one-shot task registered when its delivery is dropped
	// because it is muted, so it can still be cleared.
	KeepMuted bool
	Join      JoinMode

	// Payload is caller data kept on the task, usually the handler.
	Payload any

	// Create starts the underlying resource and returns its handle. It runs
	// synchronously inside Register with no registry lock held, so it may
	// deliver through t before returning.
	Create func(t *Task) (any, error)

	// Teardown releases the handle returned by Create. It runs at most once,
	// and never for tasks that completed on their own.
	Teardown func(handle any)

	// OnMerge fires on the live task when a registration with the same join
	// key is absorbed into it.
	OnMerge func(existing *Task, incoming *Spec)

	// OnClear fires once when the task leaves the registry.
	OnClear func(t *Task, reason ClearReason)
}

// joinKey returns the single-flight key, if s has one.
func (s *Spec) joinKey() (string, bool) {
	if s.Join == JoinNone {
		return "", false
	}
	switch {
	case s.Label != "":
		return "l\x00" + s.Group + "\x00" + s.Label, true
	case s.Group != "":
		return "g\x00" + s.Group, true
	default:
		return "", false
	}
}
