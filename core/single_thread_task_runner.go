package core

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/deque"
)

// defaultIdlePeriod bounds the deadline handed to idle tasks.
const defaultIdlePeriod = 50 * time.Millisecond

// SingleThreadTaskRunner binds a dedicated Goroutine to execute tasks sequentially.
// It guarantees that all tasks submitted to it run on the same Goroutine (Thread Affinity).
//
// It is the host loop of the async registry: timers, tickers and promise
// settlements fire on their own goroutines and hop onto this runner before any
// handler is invoked, so handlers never run concurrently with each other.
//
// Idle tasks are kept in a separate queue and only run when the work queue is
// empty (or when their timeout elapses).
type SingleThreadTaskRunner struct {
	// Task queue: Buffered channel for tasks
	workQueue chan Task

	// Idle queue, guarded by idleMu
	idleQueue  deque.Deque[*idleItem]
	idleMu     sync.Mutex
	idleSignal chan struct{}

	// Lifecycle control
	ctx    context.Context
	cancel context.CancelFunc

	// For graceful shutdown
	stopped      chan struct{}
	once         sync.Once
	closed       atomic.Bool
	shutdownChan chan struct{}
	shutdownOnce sync.Once

	panicHandler PanicHandler
	logger       Logger

	// Counters
	running  atomic.Int32
	rejected atomic.Int64
	lastAt   atomic.Int64

	// Metadata
	name string
	mu   sync.Mutex
}

// SingleThreadTaskRunnerConfig holds optional collaborators for the runner.
// Zero values fall back to defaults.
type SingleThreadTaskRunnerConfig struct {
	Name         string
	QueueSize    int
	PanicHandler PanicHandler
	Logger       Logger
}

// NewSingleThreadTaskRunner creates and starts a new SingleThreadTaskRunner.
// It immediately spawns a dedicated goroutine for task execution.
func NewSingleThreadTaskRunner() *SingleThreadTaskRunner {
	return NewSingleThreadTaskRunnerWithConfig(SingleThreadTaskRunnerConfig{})
}

// NewSingleThreadTaskRunnerWithConfig creates and starts a runner with the given config.
func NewSingleThreadTaskRunnerWithConfig(cfg SingleThreadTaskRunnerConfig) *SingleThreadTaskRunner {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = NewNoOpLogger()
	}
	if cfg.PanicHandler == nil {
		cfg.PanicHandler = &DefaultPanicHandler{Logger: cfg.Logger}
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &SingleThreadTaskRunner{
		workQueue:    make(chan Task, cfg.QueueSize), // Buffer to avoid blocking senders
		idleSignal:   make(chan struct{}, 1),
		ctx:          ctx,
		cancel:       cancel,
		stopped:      make(chan struct{}),
		shutdownChan: make(chan struct{}),
		panicHandler: cfg.PanicHandler,
		logger:       cfg.Logger,
		name:         cfg.Name,
	}

	// Start the dedicated message loop
	go r.runLoop()

	return r
}

// Name returns the name of the task runner
func (r *SingleThreadTaskRunner) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name
}

// SetName sets the name of the task runner
func (r *SingleThreadTaskRunner) SetName(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.name = name
}

// PostTask submits a task for execution
func (r *SingleThreadTaskRunner) PostTask(task Task) {
	// Check if runner is closed to avoid panic on closed channel
	if r.closed.Load() {
		r.reject("closed")
		return
	}

	select {
	case <-r.ctx.Done():
		// Runner stopped, drop task
		r.reject("stopped")
	case r.workQueue <- task:
		// Successfully queued
	}
}

// PostDelayedTask submits a delayed task.
// Uses time.AfterFunc so timers are independent of the loop's load; the task
// itself is injected back into the main loop when the timer fires.
func (r *SingleThreadTaskRunner) PostDelayedTask(task Task, delay time.Duration) TaskHandle {
	h := &delayedTaskHandle{}
	if r.closed.Load() {
		r.reject("closed")
		h.stopped.Store(true)
		return h
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.timer = time.AfterFunc(delay, func() {
		if h.IsStopped() {
			return
		}
		r.PostTask(func(ctx context.Context) {
			// Stop may have raced the timer while the task sat in the queue
			if h.stopped.Swap(true) {
				return
			}
			task(ctx)
		})
	})
	return h
}

// PostRepeatingTask submits a task that repeats at a fixed interval
func (r *SingleThreadTaskRunner) PostRepeatingTask(task Task, interval time.Duration) RepeatingTaskHandle {
	return r.PostRepeatingTaskWithInitialDelay(task, 0, interval)
}

// PostRepeatingTaskWithInitialDelay submits a repeating task with an initial delay
func (r *SingleThreadTaskRunner) PostRepeatingTaskWithInitialDelay(
	task Task,
	initialDelay, interval time.Duration,
) RepeatingTaskHandle {
	handle := &singleThreadRepeatingHandle{
		runner:   r,
		task:     task,
		interval: interval,
	}

	// Schedule first execution
	if initialDelay > 0 {
		handle.schedule(initialDelay)
	} else {
		r.PostTask(handle.createRepeatingTask())
	}

	return handle
}

// PostIdleTask queues task to run the next time the work queue drains.
// If timeout is positive and the runner has not gone idle by then, the task
// is posted as regular work with DidTimeout set.
func (r *SingleThreadTaskRunner) PostIdleTask(task IdleTask, timeout time.Duration) TaskHandle {
	item := &idleItem{task: task}
	if r.closed.Load() {
		r.reject("closed")
		item.stopped.Store(true)
		return item
	}

	r.idleMu.Lock()
	r.idleQueue.PushBack(item)
	r.idleMu.Unlock()

	select {
	case r.idleSignal <- struct{}{}:
	default:
	}

	if timeout > 0 {
		item.timer = time.AfterFunc(timeout, func() {
			r.PostTask(func(ctx context.Context) {
				item.run(ctx, IdleDeadline{Deadline: time.Now(), DidTimeout: true})
			})
		})
	}
	return item
}

// Shutdown marks the runner as closed and signals shutdown waiters.
// Unlike Stop(), this method does NOT immediately terminate the runLoop.
// This allows tasks to call Shutdown() from within themselves.
//
// After calling Shutdown():
// - WaitShutdown() will return
// - IsClosed() will return true
// - New tasks posted will be ignored
func (r *SingleThreadTaskRunner) Shutdown() {
	r.shutdownOnce.Do(func() {
		// Mark as closed
		r.closed.Store(true)
		// Cancel context to stop accepting new tasks and unblock runLoop
		r.cancel()
		// Close shutdown channel to signal waiters
		close(r.shutdownChan)
	})
}

// IsClosed returns true if the runner has been stopped
func (r *SingleThreadTaskRunner) IsClosed() bool {
	return r.closed.Load()
}

// Stop stops the runner and releases resources
func (r *SingleThreadTaskRunner) Stop() {
	r.once.Do(func() {
		// 1. Mark as closed
		r.closed.Store(true)

		// 2. Cancel context to stop accepting new tasks
		r.cancel()

		// 3. Wait for runLoop to finish (ensures current task completes)
		<-r.stopped

		r.shutdownOnce.Do(func() { close(r.shutdownChan) })
	})
}

// Stats returns a snapshot of the runner state.
func (r *SingleThreadTaskRunner) Stats() RunnerStats {
	r.idleMu.Lock()
	idle := r.idleQueue.Len()
	r.idleMu.Unlock()

	stats := RunnerStats{
		Name:     r.Name(),
		Type:     "single_thread",
		Pending:  len(r.workQueue),
		Idle:     idle,
		Running:  int(r.running.Load()),
		Rejected: r.rejected.Load(),
		Closed:   r.IsClosed(),
	}
	if at := r.lastAt.Load(); at != 0 {
		stats.LastTaskAt = time.Unix(0, at)
	}
	return stats
}

// runLoop is the core of this runner, it occupies a dedicated goroutine
func (r *SingleThreadTaskRunner) runLoop() {
	defer close(r.stopped) // Signal that Stop() can return

	// Create context with taskRunnerKey for GetCurrentTaskRunner
	runCtx := context.WithValue(r.ctx, taskRunnerKey, TaskRunner(r))

	for {
		// Regular work always wins over idle work
		select {
		case task := <-r.workQueue:
			r.runTask(runCtx, task)
			continue
		case <-r.ctx.Done():
			return
		default:
		}

		if item, ok := r.popIdle(); ok {
			r.runTask(runCtx, func(ctx context.Context) {
				item.run(ctx, IdleDeadline{Deadline: time.Now().Add(defaultIdlePeriod)})
			})
			continue
		}

		select {
		case task := <-r.workQueue:
			r.runTask(runCtx, task)
		case <-r.idleSignal:
		case <-r.ctx.Done():
			// Received stop signal
			return
		}
	}
}

// runTask executes task and catches panics
func (r *SingleThreadTaskRunner) runTask(ctx context.Context, task Task) {
	r.running.Add(1)
	defer func() {
		r.running.Add(-1)
		r.lastAt.Store(time.Now().UnixNano())
		if rec := recover(); rec != nil {
			r.panicHandler.HandlePanic(ctx, r.Name(), rec, debug.Stack())
		}
	}()
	task(ctx)
}

func (r *SingleThreadTaskRunner) popIdle() (*idleItem, bool) {
	r.idleMu.Lock()
	defer r.idleMu.Unlock()
	for r.idleQueue.Len() > 0 {
		item := r.idleQueue.PopFront()
		if !item.IsStopped() {
			return item, true
		}
	}
	return nil, false
}

func (r *SingleThreadTaskRunner) reject(reason string) {
	r.rejected.Add(1)
	r.logger.Debug("task rejected", F("runner", r.Name()), F("reason", reason))
}

// =============================================================================
// Handles
// =============================================================================

type delayedTaskHandle struct {
	mu      sync.Mutex
	timer   *time.Timer
	stopped atomic.Bool
}

func (h *delayedTaskHandle) Stop() {
	if h.stopped.Swap(true) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
	}
}

func (h *delayedTaskHandle) IsStopped() bool {
	return h.stopped.Load()
}

type idleItem struct {
	task    IdleTask
	timer   *time.Timer
	stopped atomic.Bool
}

func (i *idleItem) run(ctx context.Context, deadline IdleDeadline) {
	// Whichever of the idle pass and the timeout comes first wins
	if i.stopped.Swap(true) {
		return
	}
	if i.timer != nil {
		i.timer.Stop()
	}
	i.task(ctx, deadline)
}

func (i *idleItem) Stop() {
	if i.stopped.Swap(true) {
		return
	}
	if i.timer != nil {
		i.timer.Stop()
	}
}

func (i *idleItem) IsStopped() bool {
	return i.stopped.Load()
}

// =============================================================================
// Repeating Task Handle for SingleThreadTaskRunner
// =============================================================================

type singleThreadRepeatingHandle struct {
	runner   *SingleThreadTaskRunner
	task     Task
	interval time.Duration
	stopped  atomic.Bool

	mu    sync.Mutex
	timer *time.Timer
}

func (h *singleThreadRepeatingHandle) Stop() {
	if h.stopped.Swap(true) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
	}
}

func (h *singleThreadRepeatingHandle) IsStopped() bool {
	return h.stopped.Load()
}

func (h *singleThreadRepeatingHandle) schedule(delay time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.IsStopped() {
		return
	}
	h.timer = time.AfterFunc(delay, func() {
		h.runner.PostTask(h.createRepeatingTask())
	})
}

func (h *singleThreadRepeatingHandle) createRepeatingTask() Task {
	return func(ctx context.Context) {
		// Check if runner is closed
		if h.runner.IsClosed() {
			return
		}

		// Check if handle is stopped
		if h.IsStopped() {
			return
		}

		// Execute the task
		h.task(ctx)

		// Reschedule if not stopped and runner is still open
		if !h.IsStopped() && !h.runner.IsClosed() {
			h.schedule(h.interval)
		}
	}
}

// =============================================================================
// Synchronization Methods
// =============================================================================

// WaitIdle blocks until all currently queued tasks have completed execution.
// This is implemented by posting a barrier task and waiting for it to execute.
//
// Returns error if:
// - Context is cancelled or deadline exceeded
// - Runner is closed when WaitIdle is called
//
// Note: Repeating tasks will continue to repeat and are not waited for.
func (r *SingleThreadTaskRunner) WaitIdle(ctx context.Context) error {
	if r.IsClosed() {
		return ErrRunnerClosed
	}

	done := make(chan struct{})

	// Post a barrier task that closes the done channel
	r.PostTask(func(taskCtx context.Context) {
		close(done)
	})

	// Wait for barrier task or context cancellation
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FlushAsync posts a barrier task that executes the callback when all prior tasks complete.
// This is a non-blocking alternative to WaitIdle.
func (r *SingleThreadTaskRunner) FlushAsync(callback func()) {
	r.PostTask(func(ctx context.Context) {
		callback()
	})
}

// WaitShutdown blocks until Shutdown() is called on this runner.
//
// Returns error if context is cancelled or deadline exceeded.
func (r *SingleThreadTaskRunner) WaitShutdown(ctx context.Context) error {
	select {
	case <-r.shutdownChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
