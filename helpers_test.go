package async

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Swind/go-async/core"
	"github.com/stretchr/testify/require"
)

// sinkRecorder collects handler failures.
type sinkRecorder struct {
	mu   sync.Mutex
	errs []*HandlerError
}

func (s *sinkRecorder) sink(err *HandlerError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *sinkRecorder) all() []*HandlerError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*HandlerError(nil), s.errs...)
}

func (s *sinkRecorder) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errs)
}

// newTestAsync returns an Async with an owned host and a recording sink,
// closed when the test ends.
func newTestAsync(t *testing.T, configure ...func(*Config)) (*Async, *sinkRecorder) {
	t.Helper()
	rec := &sinkRecorder{}
	cfg := DefaultConfig()
	cfg.Name = t.Name()
	cfg.ErrorSink = rec.sink
	for _, fn := range configure {
		fn(cfg)
	}
	a := NewWithConfig(cfg)
	t.Cleanup(a.Close)
	return a, rec
}

// flush waits until every task queued on the host so far has run.
func flush(t *testing.T, a *Async) {
	t.Helper()
	runner, ok := a.Host().(*core.SingleThreadTaskRunner)
	require.True(t, ok, "host is not a SingleThreadTaskRunner")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, runner.WaitIdle(ctx))
}

// onLoop runs fn on the host loop and waits for it, so that registrations
// made inside fn cannot fire before fn returns.
func onLoop(t *testing.T, a *Async, fn func()) {
	t.Helper()
	done := make(chan struct{})
	a.Host().PostTask(func(ctx context.Context) {
		defer close(done)
		fn()
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("host loop did not run the task")
	}
}

// counter is a goroutine-safe call counter.
type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *counter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// plainHost hides the idle and frame capabilities of the runner it wraps.
type plainHost struct {
	core.TaskRunner
}

// frameHost adds a frame clock with a fixed timestamp.
type frameHost struct {
	*core.SingleThreadTaskRunner
	frame time.Time
}

func (h *frameHost) PostFrameTask(task core.FrameTask) core.TaskHandle {
	return h.PostDelayedTask(func(ctx context.Context) { task(ctx, h.frame) }, time.Millisecond)
}
