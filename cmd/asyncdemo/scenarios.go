package main

import (
	"context"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	async "github.com/Swind/go-async"
	"github.com/Swind/go-async/event"
	"github.com/Swind/go-async/promise"
)

// onLoop runs fn on the host loop of a and waits for it, so that everything
// fn registers is in place before any delivery is processed.
func onLoop(a *async.Async, fn func()) {
	done := make(chan struct{})
	a.Host().PostTask(func(ctx context.Context) {
		defer close(done)
		fn()
	})
	<-done
}

// MuteResult is what muteScenario observed.
type MuteResult struct {
	AfterMute   int64
	AfterUnmute int64
}

// muteScenario registers an ungrouped timeout and an interval in group
// "foo", mutes the group, then unmutes it.
func muteScenario(a *async.Async, unit time.Duration) MuteResult {
	var count atomic.Int64
	inc := func() { count.Add(1) }
	foo := async.ByGroup(async.Exact("foo"))

	onLoop(a, func() {
		a.SetTimeout(inc, 2*unit, async.Options{})
		a.SetInterval(inc, unit, async.Options{Group: "foo"})
		a.MuteAll(foo)
	})

	time.Sleep(3 * unit)
	res := MuteResult{AfterMute: count.Load()}

	a.UnmuteAll(foo)
	time.Sleep(2 * unit)
	res.AfterUnmute = count.Load()

	a.ClearAll(async.All)
	return res
}

// suspendScenario registers a timeout in group "foo1", a promise in group
// "foo2" and a listener on "ev", suspends /foo/ and emits "ev".
func suspendScenario(a *async.Async, unit time.Duration) int64 {
	var count atomic.Int64
	inc := func() { count.Add(1) }
	em := event.NewEmitter()

	onLoop(a, func() {
		a.SetTimeout(inc, unit, async.Options{Group: "foo1"})
		a.Promise(promise.Resolve(nil), async.Options{Group: "foo2"}).OnSettled(func(any, error) { inc() })
		if _, err := a.On(em, "ev", func(...any) error { inc(); return nil }, async.ListenerOptions{}); err != nil {
			panic(err)
		}
		a.SuspendAll(async.ByGroup(regexp.MustCompile(`foo`)))
		em.Emit("ev")
	})

	time.Sleep(3 * unit)
	n := count.Load()
	a.ClearAll(async.All)
	return n
}

// OnceResult is what onceScenario observed.
type OnceResult struct {
	Fired     []string
	Remaining int
}

// onceScenario attaches one Once listener to "a" and "b", then emits both.
func onceScenario(a *async.Async) (OnceResult, error) {
	var (
		mu    sync.Mutex
		fired []string
	)
	em := event.NewEmitter()
	_, err := a.Once(em, "a b", func(args ...any) error {
		mu.Lock()
		defer mu.Unlock()
		fired = append(fired, args[0].(string))
		return nil
	}, async.ListenerOptions{})
	if err != nil {
		return OnceResult{}, err
	}

	em.Emit("a", "a")
	em.Emit("b", "b")

	mu.Lock()
	defer mu.Unlock()
	return OnceResult{
		Fired:     append([]string(nil), fired...),
		Remaining: em.ListenerCount("a") + em.ListenerCount("b"),
	}, nil
}

// demoWorker counts its terminations.
type demoWorker struct {
	terminated atomic.Int64
}

func (w *demoWorker) Terminate() { w.terminated.Add(1) }

// workerScenario links one worker twice and terminates both links, reporting
// the destructor calls seen after each termination.
func workerScenario(a *async.Async) ([2]int64, error) {
	w := &demoWorker{}
	first, err := a.Worker(w, async.WorkerOptions{})
	if err != nil {
		return [2]int64{}, err
	}
	second, err := a.Worker(w, async.WorkerOptions{})
	if err != nil {
		return [2]int64{}, err
	}

	var calls [2]int64
	a.TerminateWorker(async.ByID(first))
	calls[0] = w.terminated.Load()
	a.TerminateWorker(async.ByID(second))
	calls[1] = w.terminated.Load()
	return calls, nil
}
