package prometheus

import (
	"errors"
	"fmt"

	"github.com/Swind/go-async/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	// ConstLabels are attached to every collector, e.g. {"registry": "ui"}.
	ConstLabels prom.Labels
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	registeredTotal *prom.CounterVec
	mergedTotal     *prom.CounterVec
	clearedTotal    *prom.CounterVec
	suppressedTotal *prom.CounterVec
	failuresTotal   *prom.CounterVec
	liveTasks       *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "async"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	counter := func(name, help string, labels ...string) *prom.CounterVec {
		return prom.NewCounterVec(prom.CounterOpts{
			Namespace:   namespace,
			Name:        name,
			Help:        help,
			ConstLabels: opts.ConstLabels,
		}, labels)
	}

	registeredVec := counter("tasks_registered_total", "Total number of tasks registered.", "namespace")
	mergedVec := counter("tasks_merged_total", "Total number of registrations joined into a live task.", "namespace")
	clearedVec := counter("tasks_cleared_total", "Total number of tasks that left the registry.", "namespace", "reason")
	suppressedVec := counter("handler_suppressed_total", "Total number of deliveries dropped or queued by mute or suspend.", "namespace", "reason")
	failuresVec := counter("handler_failures_total", "Total number of handler errors and panics sent to the error sink.", "namespace")
	liveVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace:   namespace,
		Name:        "live_tasks",
		Help:        "Current number of live tasks.",
		ConstLabels: opts.ConstLabels,
	}, []string{"namespace"})

	var err error
	if registeredVec, err = registerCollector(reg, registeredVec); err != nil {
		return nil, err
	}
	if mergedVec, err = registerCollector(reg, mergedVec); err != nil {
		return nil, err
	}
	if clearedVec, err = registerCollector(reg, clearedVec); err != nil {
		return nil, err
	}
	if suppressedVec, err = registerCollector(reg, suppressedVec); err != nil {
		return nil, err
	}
	if failuresVec, err = registerCollector(reg, failuresVec); err != nil {
		return nil, err
	}
	if liveVec, err = registerCollector(reg, liveVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		registeredTotal: registeredVec,
		mergedTotal:     mergedVec,
		clearedTotal:    clearedVec,
		suppressedTotal: suppressedVec,
		failuresTotal:   failuresVec,
		liveTasks:       liveVec,
	}, nil
}

// RecordTaskRegistered counts a new task.
func (m *MetricsExporter) RecordTaskRegistered(namespace string) {
	if m == nil {
		return
	}
	m.registeredTotal.WithLabelValues(normalizeLabel(namespace, "unknown")).Inc()
}

// RecordTaskMerged counts a joined registration.
func (m *MetricsExporter) RecordTaskMerged(namespace string) {
	if m == nil {
		return
	}
	m.mergedTotal.WithLabelValues(normalizeLabel(namespace, "unknown")).Inc()
}

// RecordTaskCleared counts a task leaving the registry.
func (m *MetricsExporter) RecordTaskCleared(namespace string, reason string) {
	if m == nil {
		return
	}
	m.clearedTotal.WithLabelValues(normalizeLabel(namespace, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

// RecordHandlerSuppressed counts a muted or suspended delivery.
func (m *MetricsExporter) RecordHandlerSuppressed(namespace string, reason string) {
	if m == nil {
		return
	}
	m.suppressedTotal.WithLabelValues(normalizeLabel(namespace, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

// RecordHandlerFailure counts a handler error or panic.
func (m *MetricsExporter) RecordHandlerFailure(namespace string) {
	if m == nil {
		return
	}
	m.failuresTotal.WithLabelValues(normalizeLabel(namespace, "unknown")).Inc()
}

// RecordLiveTasks sets the live task gauge.
func (m *MetricsExporter) RecordLiveTasks(namespace string, live int) {
	if m == nil {
		return
	}
	m.liveTasks.WithLabelValues(normalizeLabel(namespace, "unknown")).Set(float64(live))
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
