package registry

import "github.com/Swind/go-async/core"

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. Defaults to core.NoOpLogger.
func WithLogger(logger core.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to core.NilMetrics.
func WithMetrics(metrics core.Metrics) Option {
	return func(r *Registry) {
		if metrics != nil {
			r.metrics = metrics
		}
	}
}

// WithDispatcher sets how deliveries queued during suspension are replayed
// on Unsuspend. The default runs them synchronously in the Mark caller.
func WithDispatcher(dispatch func(func())) Option {
	return func(r *Registry) {
		if dispatch != nil {
			r.dispatch = dispatch
		}
	}
}

// WithHistoryCapacity sizes the ring of cleared-task records. A negative
// capacity disables the history.
func WithHistoryCapacity(n int) Option {
	return func(r *Registry) {
		r.history = newHistory(n)
	}
}
