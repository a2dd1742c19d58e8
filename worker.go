package async

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/Swind/go-async/core"
	"github.com/Swind/go-async/registry"
)

// Destructor capabilities of a worker, checked in this order.
type (
	terminator   interface{ Terminate() }
	destroyer    interface{ Destroy() }
	destructor   interface{ Destructor() }
	closer       interface{ Close() error }
	plainCloser  interface{ Close() }
	aborter      interface{ Abort() }
	canceller    interface{ Cancel() }
	disconnector interface{ Disconnect() }
	unwatcher    interface{ Unwatch() }
)

// WorkerOptions configure Worker.
type WorkerOptions struct {
	Options
	// Destructor names the method that destroys the worker. It must take no
	// arguments and return nothing or an error.
	Destructor string
}

// Worker registers ref as a worker. Registering the same ref again adds a
// link; the worker is destroyed when its last link is cleared. Refs that are
// not comparable, like funcs, are never shared.
//
// The destructor is opts.Destructor if set, ref itself if it is a func, or the
// first of Terminate, Destroy, Destructor, Close, Abort, Cancel, Disconnect
// and Unwatch that ref implements. A ref with none of them is an
// *registry.AttachmentError.
func (a *Async) Worker(ref any, opts WorkerOptions) (ID, error) {
	if ref == nil {
		return 0, fmt.Errorf("%w: nil worker", registry.ErrInvalidSpec)
	}
	destroy, err := resolveDestructor(ref, opts.Destructor)
	if err != nil {
		return 0, err
	}

	return a.reg.Register(a.spec(Worker, opts.Options, registry.Spec{
		Periodic: true,
		Payload:  ref,
		Create: func(t *registry.Task) (any, error) {
			return a.workers.link(ref, destroy), nil
		},
		Teardown: func(h any) {
			if rec, ok := h.(*workerRecord); ok {
				a.workers.unlink(rec)
			}
		},
	}))
}

// TerminateWorker clears matched worker links.
func (a *Async) TerminateWorker(f Filter) int { return a.reg.Cancel(Worker, f) }

// WorkerLinks returns how many live registrations hold ref.
func (a *Async) WorkerLinks(ref any) int { return a.workers.links(ref) }

func resolveDestructor(ref any, name string) (func() error, error) {
	if name != "" {
		m := reflect.ValueOf(ref).MethodByName(name)
		if !m.IsValid() {
			return nil, &registry.AttachmentError{Namespace: Worker, Target: ref, Capability: name + " method"}
		}
		switch fn := m.Interface().(type) {
		case func():
			return func() error { fn(); return nil }, nil
		case func() error:
			return fn, nil
		}
		return nil, &registry.AttachmentError{Namespace: Worker, Target: ref, Capability: "callable " + name}
	}

	switch w := ref.(type) {
	case func():
		return func() error { w(); return nil }, nil
	case func() error:
		return w, nil
	case terminator:
		return noErr(w.Terminate), nil
	case destroyer:
		return noErr(w.Destroy), nil
	case destructor:
		return noErr(w.Destructor), nil
	case closer:
		return w.Close, nil
	case plainCloser:
		return noErr(w.Close), nil
	case aborter:
		return noErr(w.Abort), nil
	case canceller:
		return noErr(w.Cancel), nil
	case disconnector:
		return noErr(w.Disconnect), nil
	case unwatcher:
		return noErr(w.Unwatch), nil
	}
	return nil, &registry.AttachmentError{Namespace: Worker, Target: ref, Capability: "destructor"}
}

func noErr(fn func()) func() error {
	return func() error { fn(); return nil }
}

// =============================================================================
// Worker arena
// =============================================================================

type workerRecord struct {
	key     any
	count   int
	destroy func() error
}

// workerArena counts links per worker identity.
type workerArena struct {
	mu      sync.Mutex
	records map[any]*workerRecord
	logger  core.Logger
}

func newWorkerArena(logger core.Logger) *workerArena {
	return &workerArena{records: make(map[any]*workerRecord), logger: logger}
}

// identity returns the map key of ref and whether ref can be shared.
func identity(ref any) (any, bool) {
	// Value.Comparable also looks inside interface fields
	v := reflect.ValueOf(ref)
	if v.Kind() == reflect.Func || !v.Comparable() {
		return nil, false
	}
	return ref, true
}

func (w *workerArena) link(ref any, destroy func() error) *workerRecord {
	key, shared := identity(ref)
	if !shared {
		return &workerRecord{count: 1, destroy: destroy}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	rec := w.records[key]
	if rec == nil {
		rec = &workerRecord{key: key, destroy: destroy}
		w.records[key] = rec
	}
	rec.count++
	return rec
}

func (w *workerArena) unlink(rec *workerRecord) {
	w.mu.Lock()
	rec.count--
	last := rec.count == 0
	if last && rec.key != nil {
		delete(w.records, rec.key)
	}
	w.mu.Unlock()

	if !last {
		return
	}
	if err := callDestructor(rec.destroy); err != nil {
		w.logger.Warn("worker destructor failed", core.F("error", err))
	}
}

func (w *workerArena) links(ref any) int {
	key, shared := identity(ref)
	if !shared {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if rec := w.records[key]; rec != nil {
		return rec.count
	}
	return 0
}

func callDestructor(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Join(err, fmt.Errorf("destructor panicked: %v", r))
		}
	}()
	return fn()
}
