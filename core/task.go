package core

import (
	"context"
	"time"
)

// Task is the unit of work (Closure)
type Task func(ctx context.Context)

// =============================================================================
// TaskHandle: Control the lifecycle of a posted task
// =============================================================================

// TaskHandle controls a delayed, repeating or idle task.
// Stop is idempotent and safe to call from any goroutine.
type TaskHandle interface {
	Stop()
	IsStopped() bool
}

// RepeatingTaskHandle controls the lifecycle of a repeating task
type RepeatingTaskHandle = TaskHandle

// =============================================================================
// TaskRunner: Define task submission interface
// =============================================================================
type TaskRunner interface {
	PostTask(task Task)
	PostDelayedTask(task Task, delay time.Duration) TaskHandle
	PostRepeatingTaskWithInitialDelay(task Task, initialDelay, interval time.Duration) RepeatingTaskHandle
}

// =============================================================================
// Idle and frame capabilities
// =============================================================================

// IdleDeadline is handed to idle tasks.
type IdleDeadline struct {
	// Deadline is the end of the idle period.
	Deadline time.Time
	// DidTimeout is true when the task ran because its timeout elapsed
	// rather than because the runner went idle.
	DidTimeout bool
}

// TimeRemaining reports how much of the idle period is left.
func (d IdleDeadline) TimeRemaining() time.Duration {
	if r := time.Until(d.Deadline); r > 0 {
		return r
	}
	return 0
}

// IdleTask runs when the runner has no other queued work.
type IdleTask func(ctx context.Context, deadline IdleDeadline)

// IdleTaskRunner is implemented by runners that can detect idle periods.
type IdleTaskRunner interface {
	PostIdleTask(task IdleTask, timeout time.Duration) TaskHandle
}

// FrameTask receives the timestamp of the frame it was scheduled for.
type FrameTask func(ctx context.Context, frameTime time.Time)

// FrameTaskRunner is implemented by runners driven by a render clock.
type FrameTaskRunner interface {
	PostFrameTask(task FrameTask) TaskHandle
}

// =============================================================================
// Context Helper
// =============================================================================
type taskRunnerKeyType struct{}

var taskRunnerKey taskRunnerKeyType

func GetCurrentTaskRunner(ctx context.Context) TaskRunner {
	if v := ctx.Value(taskRunnerKey); v != nil {
		return v.(TaskRunner)
	}
	return nil
}
