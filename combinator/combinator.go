// Package combinator holds pure rate-limiting wrappers for variadic functions.
package combinator

import (
	"sync"
	"time"
)

// Schedule runs fn once after delay and returns a function that cancels it.
type Schedule func(fn func(), delay time.Duration) (stop func())

// AfterFunc is a Schedule backed by time.AfterFunc. fn runs on the timer goroutine.
func AfterFunc(fn func(), delay time.Duration) func() {
	t := time.AfterFunc(delay, fn)
	return func() { t.Stop() }
}

// Debounce returns call, which postpones fn until delay has passed since the
// most recent call, and cancel, which drops a pending invocation. fn receives
// the arguments of the most recent call.
func Debounce(fn func(args ...any), delay time.Duration, schedule Schedule) (call func(args ...any), cancel func()) {
	if schedule == nil {
		schedule = AfterFunc
	}

	var (
		mu   sync.Mutex
		stop func()
		seq  uint64
	)

	cancel = func() {
		mu.Lock()
		defer mu.Unlock()
		seq++
		if stop != nil {
			stop()
			stop = nil
		}
	}

	call = func(args ...any) {
		mu.Lock()
		defer mu.Unlock()
		if stop != nil {
			stop()
		}
		seq++
		mine := seq
		stop = schedule(func() {
			mu.Lock()
			// A later call or cancel superseded this invocation
			if seq != mine {
				mu.Unlock()
				return
			}
			stop = nil
			mu.Unlock()
			fn(args...)
		}, delay)
	}

	return call, cancel
}

// ThrottleOptions configures Throttle.
type ThrottleOptions struct {
	// LeadingOnly drops calls made inside the window instead of coalescing
	// them into a trailing call.
	LeadingOnly bool
}

// Throttle returns call, which invokes fn immediately on the first call and
// then at most once per window: calls made inside the window coalesce into a
// single trailing invocation with the latest arguments, which opens the next
// window. cancel drops a pending trailing invocation and closes the window.
func Throttle(fn func(args ...any), window time.Duration, schedule Schedule, opts ThrottleOptions) (call func(args ...any), cancel func()) {
	if schedule == nil {
		schedule = AfterFunc
	}

	var (
		mu       sync.Mutex
		open     bool
		stop     func()
		pending  bool
		lastArgs []any
		seq      uint64
	)

	var startWindow func()
	startWindow = func() {
		open = true
		seq++
		mine := seq
		stop = schedule(func() {
			mu.Lock()
			if seq != mine {
				mu.Unlock()
				return
			}
			stop = nil
			if !pending {
				open = false
				mu.Unlock()
				return
			}
			args := lastArgs
			pending, lastArgs = false, nil
			startWindow()
			mu.Unlock()
			fn(args...)
		}, window)
	}

	cancel = func() {
		mu.Lock()
		defer mu.Unlock()
		seq++
		open, pending, lastArgs = false, false, nil
		if stop != nil {
			stop()
			stop = nil
		}
	}

	call = func(args ...any) {
		mu.Lock()
		if open {
			if !opts.LeadingOnly {
				pending, lastArgs = true, args
			}
			mu.Unlock()
			return
		}
		startWindow()
		mu.Unlock()
		fn(args...)
	}

	return call, cancel
}
