// Package promise provides a small settle-once value used by the async
// bindings to report results of promise-namespace tasks.
//
// Handlers attached with Then, Catch, Finally and OnSettled run synchronously
// on the goroutine that settles the promise, or immediately on the caller's
// goroutine when the promise has already settled.
package promise

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrPanic is wrapped by the rejection reason of a function that panicked.
	ErrPanic = errors.New("promise: function panicked")

	// ErrGoexit rejects a promise whose goroutine exited via runtime.Goexit.
	ErrGoexit = errors.New("promise: goroutine exited via runtime.Goexit")
)

// PanicError wraps a recovered panic value.
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("promise: function panicked: %v", e.Value)
}

func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return ErrPanic
}

// State is the settlement state of a Promise.
type State int

const (
	Pending State = iota
	Fulfilled
	Rejected
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Like is anything that settles once with a value or an error.
type Like interface {
	// Done is closed once the result is available.
	Done() <-chan struct{}
	// Result returns the settled value or error. It is only meaningful
	// after Done is closed.
	Result() (any, error)
}

// Promise is a settle-once result.
type Promise struct {
	mu       sync.Mutex
	state    State
	value    any
	err      error
	done     chan struct{}
	handlers []func()
}

var _ Like = (*Promise)(nil)

// New creates a promise and runs executor synchronously with its resolvers.
// A panic in executor rejects the promise.
func New(executor func(resolve func(any), reject func(error))) *Promise {
	p := newPending()
	func() {
		defer func() {
			if r := recover(); r != nil {
				p.reject(PanicError{Value: r})
			}
		}()
		executor(p.resolve, p.reject)
	}()
	return p
}

// WithResolvers returns a pending promise and its resolvers.
func WithResolvers() (*Promise, func(any), func(error)) {
	p := newPending()
	return p, p.resolve, p.reject
}

// Resolve returns a promise fulfilled with v (or adopting v if it is a Like).
func Resolve(v any) *Promise {
	p := newPending()
	p.resolve(v)
	return p
}

// Reject returns a promise rejected with err.
func Reject(err error) *Promise {
	p := newPending()
	p.reject(err)
	return p
}

// Go runs fn on a new goroutine and settles the promise with its result.
func Go(ctx context.Context, fn func(ctx context.Context) (any, error)) *Promise {
	p := newPending()
	go func() {
		completed := false
		defer func() {
			if r := recover(); r != nil {
				p.reject(PanicError{Value: r})
			} else if !completed {
				p.reject(ErrGoexit)
			}
		}()
		v, err := fn(ctx)
		completed = true
		if err != nil {
			p.reject(err)
			return
		}
		p.resolve(v)
	}()
	return p
}

func newPending() *Promise {
	return &Promise{done: make(chan struct{})}
}

// Done is closed when the promise settles.
func (p *Promise) Done() <-chan struct{} {
	return p.done
}

// State returns the current state.
func (p *Promise) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Result returns the settled value or reason. A pending promise returns (nil, nil).
func (p *Promise) Result() (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, p.err
}

// Await blocks until the promise settles or ctx is done.
func (p *Promise) Await(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		return p.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// OnSettled calls fn once the promise settles.
func (p *Promise) OnSettled(fn func(value any, err error)) {
	p.addHandler(func() {
		v, err := p.Result()
		fn(v, err)
	})
}

// Then returns a promise settled by onFulfilled or onRejected. A nil
// callback passes the value or reason through unchanged.
func (p *Promise) Then(onFulfilled func(any) (any, error), onRejected func(error) (any, error)) *Promise {
	next := newPending()
	p.OnSettled(func(v any, err error) {
		defer func() {
			if r := recover(); r != nil {
				next.reject(PanicError{Value: r})
			}
		}()
		switch {
		case err == nil && onFulfilled != nil:
			v, err = onFulfilled(v)
		case err != nil && onRejected != nil:
			v, err = onRejected(err)
		}
		if err != nil {
			next.reject(err)
			return
		}
		next.resolve(v)
	})
	return next
}

// Catch is Then(nil, onRejected).
func (p *Promise) Catch(onRejected func(error) (any, error)) *Promise {
	return p.Then(nil, onRejected)
}

// Finally runs fn on settlement and passes the result through.
func (p *Promise) Finally(fn func()) *Promise {
	return p.Then(
		func(v any) (any, error) {
			fn()
			return v, nil
		},
		func(err error) (any, error) {
			fn()
			return nil, err
		},
	)
}

func (p *Promise) resolve(v any) {
	if other, ok := v.(Like); ok {
		if other == Like(p) {
			p.reject(errors.New("promise: cannot resolve a promise with itself"))
			return
		}
		p.adopt(other)
		return
	}
	p.settle(Fulfilled, v, nil)
}

func (p *Promise) reject(err error) {
	if err == nil {
		err = errors.New("promise: rejected with nil error")
	}
	p.settle(Rejected, nil, err)
}

func (p *Promise) adopt(other Like) {
	if o, ok := other.(*Promise); ok {
		o.OnSettled(func(v any, err error) {
			if err != nil {
				p.reject(err)
				return
			}
			p.settle(Fulfilled, v, nil)
		})
		return
	}
	go func() {
		<-other.Done()
		v, err := other.Result()
		if err != nil {
			p.reject(err)
			return
		}
		p.settle(Fulfilled, v, nil)
	}()
}

func (p *Promise) settle(state State, v any, err error) {
	p.mu.Lock()
	if p.state != Pending {
		p.mu.Unlock()
		return
	}
	p.state, p.value, p.err = state, v, err
	handlers := p.handlers
	p.handlers = nil
	close(p.done)
	p.mu.Unlock()

	for _, h := range handlers {
		h()
	}
}

func (p *Promise) addHandler(h func()) {
	p.mu.Lock()
	if p.state == Pending {
		p.handlers = append(p.handlers, h)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	h()
}
