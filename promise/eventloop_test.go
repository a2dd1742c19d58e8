package promise

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-eventloop"
	"github.com/stretchr/testify/require"
)

// loopResult is a settle-once eventloop.Promise.
type loopResult struct {
	mu     sync.Mutex
	state  eventloop.PromiseState
	result eventloop.Result
	done   chan struct{}
}

func newLoopResult() *loopResult { return &loopResult{done: make(chan struct{})} }

func (p *loopResult) settle(state eventloop.PromiseState, r eventloop.Result) {
	p.mu.Lock()
	p.state, p.result = state, r
	p.mu.Unlock()
	close(p.done)
}

func (p *loopResult) State() eventloop.PromiseState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *loopResult) Result() eventloop.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

func (p *loopResult) ToChannel() <-chan eventloop.Result {
	ch := make(chan eventloop.Result, 1)
	go func() {
		<-p.done
		ch <- p.Result()
		close(ch)
	}()
	return ch
}

// TestFromEventloop tests adopting eventloop promises
// Main test items:
// 1. A resolved source fulfils with its value
// 2. An error reason rejects with that error
// 3. Other reasons are wrapped in eventloop.ErrorWrapper
func TestFromEventloop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ok := newLoopResult()
	p := FromEventloop(ok)
	require.Equal(t, Pending, p.State())
	ok.settle(eventloop.Resolved, "value")
	v, err := p.Await(ctx)
	require.NoError(t, err)
	require.Equal(t, "value", v)

	boom := errors.New("boom")
	failed := newLoopResult()
	failed.settle(eventloop.Rejected, boom)
	_, err = FromEventloop(failed).Await(ctx)
	require.Same(t, boom, err)

	odd := newLoopResult()
	odd.settle(eventloop.Rejected, 42)
	_, err = FromEventloop(odd).Await(ctx)
	var wrapped *eventloop.ErrorWrapper
	require.ErrorAs(t, err, &wrapped)
	require.Equal(t, 42, wrapped.Value)
	require.EqualError(t, err, "42")
}
