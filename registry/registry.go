// Package registry is the bookkeeping engine behind the async bindings. It owns
// every live task, indexes them by id, namespace, group, label and join key,
// and applies cancellation and mute/suspend marks to filtered sets of tasks.
//
// The registry never blocks and never starts goroutines. All user code
// (Create, Teardown, OnMerge, OnClear, delivered handlers) runs with the
// registry lock released.
package registry

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Swind/go-async/core"
)

type labelKey struct {
	group string
	label string
}

// Registry owns all live tasks and the indices over them.
type Registry struct {
	mu     sync.Mutex
	nextID ID

	tasks  map[ID]*Task
	byNS   [numNamespaces]map[ID]*Task
	groups [numNamespaces]map[string]map[ID]*Task
	labels [numNamespaces]map[labelKey]*Task
	joins  [numNamespaces]map[string]*Task

	logger   core.Logger
	metrics  core.Metrics
	dispatch func(func())
	history  *history
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		tasks:    make(map[ID]*Task),
		logger:   core.NewNoOpLogger(),
		metrics:  &core.NilMetrics{},
		dispatch: func(fn func()) { fn() },
		history:  newHistory(defaultHistoryCapacity),
	}
	for i := range r.byNS {
		r.byNS[i] = make(map[ID]*Task)
		r.groups[i] = make(map[string]map[ID]*Task)
		r.labels[i] = make(map[labelKey]*Task)
		r.joins[i] = make(map[string]*Task)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Register creates a task from spec and returns its id.
//
// If spec joins and a live task shares its join key, no resource is created:
// the live task's OnMerge fires and its id is returned. Otherwise a new id is
// allocated, a live task with the same group and label is cancelled, and
// spec.Create runs. An error from Create unregisters the task and is
// returned unchanged.
func (r *Registry) Register(spec Spec) (ID, error) {
	if !spec.Namespace.Valid() {
		return 0, fmt.Errorf("%w: unknown namespace %d", ErrInvalidSpec, int(spec.Namespace))
	}
	if spec.Create == nil {
		return 0, fmt.Errorf("%w: %s task without Create", ErrInvalidSpec, spec.Namespace)
	}

	ns := spec.Namespace
	key, joins := spec.joinKey()

	r.mu.Lock()
	if joins {
		if existing, ok := r.joins[ns][key]; ok {
			if spec.Join == JoinReplace {
				existing.payload = spec.Payload
			}
			r.mu.Unlock()
			r.merge(existing, &spec)
			return existing.id, nil
		}
	}

	var (
		replaced         *Task
		replacedDeferred bool
	)
	if spec.Label != "" {
		replaced = r.labels[ns][labelKey{spec.Group, spec.Label}]
		if replaced != nil {
			r.unindexLocked(replaced, ReasonReplaced)
			replacedDeferred = replaced.creating
		}
	}

	r.nextID++
	t := &Task{
		reg:       r,
		id:        r.nextID,
		ns:        ns,
		group:     spec.Group,
		label:     spec.Label,
		periodic:  spec.Periodic,
		keepMuted: spec.KeepMuted,
		teardown:  spec.Teardown,
		onMerge:   spec.OnMerge,
		onClear:   spec.OnClear,
		payload:   spec.Payload,
		live:      true,
		creating:  true,
	}
	if joins {
		t.joinKey = key
	}
	r.indexLocked(t)
	live := len(r.byNS[ns])
	r.mu.Unlock()

	if replaced != nil {
		r.finish(replaced, ReasonReplaced)
		if !replacedDeferred {
			replaced.release(replaced.handle)
		}
	}

	handle, err := r.create(t, &spec)
	if err != nil {
		r.mu.Lock()
		if t.live {
			r.unindexLocked(t, ReasonCancelled)
		}
		t.creating = false
		r.mu.Unlock()
		r.logger.Warn("task creation failed",
			core.F("namespace", ns.String()),
			core.F("group", spec.Group),
			core.F("error", err),
		)
		return 0, err
	}

	r.mu.Lock()
	t.handle = handle
	t.creating = false
	stillLive, reason := t.live, t.reason
	r.mu.Unlock()

	// Cleared while Create was running: the teardown was deferred until now
	if !stillLive && reason != ReasonCompleted {
		t.release(handle)
	}

	r.metrics.RecordTaskRegistered(ns.String())
	r.metrics.RecordLiveTasks(ns.String(), live)
	r.logger.Debug("task registered",
		core.F("id", uint64(t.id)),
		core.F("namespace", ns.String()),
		core.F("group", t.group),
		core.F("label", t.label),
	)
	return t.id, nil
}

func (r *Registry) create(t *Task, spec *Spec) (handle any, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.mu.Lock()
			if t.live {
				r.unindexLocked(t, ReasonCancelled)
			}
			t.creating = false
			r.mu.Unlock()
			panic(p)
		}
	}()
	return spec.Create(t)
}

func (r *Registry) merge(existing *Task, incoming *Spec) {
	if existing.onMerge != nil {
		existing.onMerge(existing, incoming)
	}
	r.metrics.RecordTaskMerged(existing.ns.String())
	r.logger.Debug("task merged",
		core.F("id", uint64(existing.id)),
		core.F("namespace", existing.ns.String()),
		core.F("join", existing.joinKey),
	)
}

// Cancel clears every task of ns matched by f and returns how many were
// cleared. Each cleared task gets its OnClear and then its teardown, once.
// Cancelling tasks that already left is a no-op.
func (r *Registry) Cancel(ns Namespace, f Filter) int {
	if !ns.Valid() {
		return 0
	}

	r.mu.Lock()
	matched := r.matchLocked(ns, f)
	deferred := make([]bool, len(matched))
	for i, t := range matched {
		r.unindexLocked(t, ReasonCancelled)
		deferred[i] = t.creating
	}
	r.mu.Unlock()

	for i, t := range matched {
		r.finish(t, ReasonCancelled)
		if !deferred[i] {
			t.release(t.handle)
		}
	}
	return len(matched)
}

// Mark applies flag to every task of ns matched by f and returns how many
// tasks were matched. It never touches task handles. Unsuspend replays the
// deliveries queued while the tasks were suspended, in order, as a single
// dispatch.
func (r *Registry) Mark(ns Namespace, flag Flag, f Filter) int {
	if !ns.Valid() {
		return 0
	}

	type replay struct {
		t  *Task
		fn func()
	}
	var replays []replay

	r.mu.Lock()
	matched := r.matchLocked(ns, f)
	for _, t := range matched {
		switch flag {
		case Mute:
			t.muted = true
		case Unmute:
			t.muted = false
		case Suspend:
			t.paused = true
		case Unsuspend:
			t.paused = false
			for t.queue.Len() > 0 {
				replays = append(replays, replay{t, t.queue.PopFront()})
			}
		}
	}
	r.mu.Unlock()

	// One dispatch per call, since the dispatcher may post to the loop
	// Mark is running on.
	if len(replays) > 0 {
		r.dispatch(func() {
			for _, rp := range replays {
				rp.t.Deliver(rp.fn)
			}
		})
	}

	if len(matched) > 0 {
		r.logger.Debug("tasks marked",
			core.F("namespace", ns.String()),
			core.F("flag", flag.String()),
			core.F("count", len(matched)),
		)
	}
	return len(matched)
}

// Get returns the live task with the given id.
func (r *Registry) Get(id ID) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	return t, ok
}

// Find returns the live tasks of ns matched by f, ordered by id.
func (r *Registry) Find(ns Namespace, f Filter) []*Task {
	if !ns.Valid() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matchLocked(ns, f)
}

// Len returns the number of live tasks in ns.
func (r *Registry) Len(ns Namespace) int {
	if !ns.Valid() {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byNS[ns])
}

// Stats is a snapshot of live task counts.
type Stats struct {
	Live   map[Namespace]int
	Muted  int
	Paused int
	Total  int
}

// Stats returns live task counts per namespace.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Stats{Live: make(map[Namespace]int, len(Namespaces))}
	for _, ns := range Namespaces {
		if n := len(r.byNS[ns]); n > 0 {
			s.Live[ns] = n
		}
	}
	for _, t := range r.tasks {
		if t.muted {
			s.Muted++
		}
		if t.paused {
			s.Paused++
		}
	}
	s.Total = len(r.tasks)
	return s
}

// History returns up to limit records of cleared tasks, newest first.
// A non-positive limit returns everything retained.
func (r *Registry) History(limit int) []Record {
	return r.history.recent(limit)
}

// =============================================================================
// Index maintenance
// =============================================================================

func (r *Registry) indexLocked(t *Task) {
	ns := t.ns
	r.tasks[t.id] = t
	r.byNS[ns][t.id] = t
	if t.group != "" {
		g := r.groups[ns][t.group]
		if g == nil {
			g = make(map[ID]*Task)
			r.groups[ns][t.group] = g
		}
		g[t.id] = t
	}
	if t.label != "" {
		r.labels[ns][labelKey{t.group, t.label}] = t
	}
	if t.joinKey != "" {
		r.joins[ns][t.joinKey] = t
	}
}

// unindexLocked removes t from every index and marks it dead.
func (r *Registry) unindexLocked(t *Task, reason ClearReason) {
	ns := t.ns
	t.live = false
	t.reason = reason
	t.queue.Clear()
	delete(r.tasks, t.id)
	delete(r.byNS[ns], t.id)
	if t.group != "" {
		if g := r.groups[ns][t.group]; g != nil {
			delete(g, t.id)
			if len(g) == 0 {
				delete(r.groups[ns], t.group)
			}
		}
	}
	if t.label != "" {
		k := labelKey{t.group, t.label}
		if r.labels[ns][k] == t {
			delete(r.labels[ns], k)
		}
	}
	if t.joinKey != "" && r.joins[ns][t.joinKey] == t {
		delete(r.joins[ns], t.joinKey)
	}
}

// finish runs the bookkeeping that follows unindexLocked, outside the lock.
func (r *Registry) finish(t *Task, reason ClearReason) {
	if t.onClear != nil {
		t.onClear(t, reason)
	}
	r.history.add(Record{
		ID:        t.id,
		Namespace: t.ns,
		Group:     t.group,
		Label:     t.label,
		Reason:    reason,
		At:        time.Now(),
	})
	r.metrics.RecordTaskCleared(t.ns.String(), string(reason))
	r.metrics.RecordLiveTasks(t.ns.String(), r.Len(t.ns))
	r.logger.Debug("task cleared",
		core.F("id", uint64(t.id)),
		core.F("namespace", t.ns.String()),
		core.F("reason", string(reason)),
	)
}

func (r *Registry) matchLocked(ns Namespace, f Filter) []*Task {
	var out []*Task

	switch {
	case f.ID != 0:
		if t, ok := r.byNS[ns][f.ID]; ok && f.matches(t) {
			out = append(out, t)
		}
		return out

	case f.Group != nil:
		if exact, ok := f.Group.(Exact); ok {
			for _, t := range r.groups[ns][string(exact)] {
				if f.matches(t) {
					out = append(out, t)
				}
			}
			break
		}
		for group, tasks := range r.groups[ns] {
			if !f.Group.MatchString(group) {
				continue
			}
			for _, t := range tasks {
				if f.matches(t) {
					out = append(out, t)
				}
			}
		}

	default:
		for _, t := range r.byNS[ns] {
			if f.matches(t) {
				out = append(out, t)
			}
		}
	}

	slices.SortFunc(out, func(a, b *Task) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})
	return out
}
