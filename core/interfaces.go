package core

import (
	"context"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics during execution.
// This allows custom panic handling, logging, and recovery strategies.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context from the panicked task (may contain task runner info)
	// - runnerName: The name of the task runner where the panic occurred
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, runnerName string, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler reports panics through a Logger.
// A nil Logger falls back to DefaultLogger.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs panic information at error level.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, runnerName string, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error("task panicked",
		F("runner", runnerName),
		F("panic", panicInfo),
		F("stack", string(stackTrace)),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting registry metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Namespaces are passed by name so that this package stays free of registry types.
// Methods should be non-blocking and fast; they are called with registry locks released.
type Metrics interface {
	// RecordTaskRegistered records a newly created task.
	RecordTaskRegistered(namespace string)

	// RecordTaskMerged records a registration absorbed by a live task with the same join key.
	RecordTaskMerged(namespace string)

	// RecordTaskCleared records a task leaving the registry.
	//
	// Parameters:
	// - namespace: The namespace of the task
	// - reason: Why the task left ("cancelled", "replaced", "completed")
	RecordTaskCleared(namespace string, reason string)

	// RecordHandlerSuppressed records a delivery that did not reach its handler.
	//
	// Parameters:
	// - namespace: The namespace of the task
	// - reason: "muted" or "paused"
	RecordHandlerSuppressed(namespace string, reason string)

	// RecordHandlerFailure records a handler error or panic sent to the error sink.
	RecordHandlerFailure(namespace string)

	// RecordLiveTasks records the number of live tasks in a namespace.
	RecordLiveTasks(namespace string, live int)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordTaskRegistered is a no-op.
func (m *NilMetrics) RecordTaskRegistered(namespace string) {}

// RecordTaskMerged is a no-op.
func (m *NilMetrics) RecordTaskMerged(namespace string) {}

// RecordTaskCleared is a no-op.
func (m *NilMetrics) RecordTaskCleared(namespace string, reason string) {}

// RecordHandlerSuppressed is a no-op.
func (m *NilMetrics) RecordHandlerSuppressed(namespace string, reason string) {}

// RecordHandlerFailure is a no-op.
func (m *NilMetrics) RecordHandlerFailure(namespace string) {}

// RecordLiveTasks is a no-op.
func (m *NilMetrics) RecordLiveTasks(namespace string, live int) {}
