package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-async/core"
	"github.com/Swind/go-async/registry"
	prom "github.com/prometheus/client_golang/prometheus"
)

// RunnerSnapshotProvider provides current runner stats snapshots.
type RunnerSnapshotProvider interface {
	Stats() core.RunnerStats
}

// RegistrySnapshotProvider provides current registry stats snapshots.
type RegistrySnapshotProvider interface {
	Stats() registry.Stats
}

// SnapshotPoller periodically exports runner and registry Stats() snapshots
// into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	runnersMu sync.RWMutex
	runners   map[string]RunnerSnapshotProvider

	registriesMu sync.RWMutex
	registries   map[string]RegistrySnapshotProvider

	runnerPending  *prom.GaugeVec
	runnerIdle     *prom.GaugeVec
	runnerRunning  *prom.GaugeVec
	runnerRejected *prom.GaugeVec
	runnerClosed   *prom.GaugeVec

	registryLive   *prom.GaugeVec
	registryMuted  *prom.GaugeVec
	registryPaused *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string, labels ...string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{Namespace: "async", Name: name, Help: help}, labels)
	}

	runnerPending := gauge("runner_pending", "Number of pending tasks per host runner.", "runner", "type")
	runnerIdle := gauge("runner_idle_pending", "Number of pending idle tasks per host runner.", "runner", "type")
	runnerRunning := gauge("runner_running", "Number of running tasks per host runner.", "runner", "type")
	runnerRejected := gauge("runner_rejected", "Host runner rejected task count snapshot.", "runner", "type")
	runnerClosed := gauge("runner_closed", "Host runner closed state (1=closed, 0=open).", "runner", "type")

	registryLive := gauge("registry_live_tasks", "Live tasks per registry and namespace.", "registry", "namespace")
	registryMuted := gauge("registry_muted_tasks", "Muted live tasks per registry.", "registry")
	registryPaused := gauge("registry_paused_tasks", "Suspended live tasks per registry.", "registry")

	var err error
	for _, g := range []**prom.GaugeVec{
		&runnerPending, &runnerIdle, &runnerRunning, &runnerRejected, &runnerClosed,
		&registryLive, &registryMuted, &registryPaused,
	} {
		if *g, err = registerCollector(reg, *g); err != nil {
			return nil, err
		}
	}

	return &SnapshotPoller{
		interval:       interval,
		runners:        make(map[string]RunnerSnapshotProvider),
		registries:     make(map[string]RegistrySnapshotProvider),
		runnerPending:  runnerPending,
		runnerIdle:     runnerIdle,
		runnerRunning:  runnerRunning,
		runnerRejected: runnerRejected,
		runnerClosed:   runnerClosed,
		registryLive:   registryLive,
		registryMuted:  registryMuted,
		registryPaused: registryPaused,
	}, nil
}

// AddRunner adds or replaces a runner snapshot provider by name.
func (p *SnapshotPoller) AddRunner(name string, provider RunnerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "runner")
	p.runnersMu.Lock()
	p.runners[name] = provider
	p.runnersMu.Unlock()
}

// AddRegistry adds or replaces a registry snapshot provider by name.
func (p *SnapshotPoller) AddRegistry(name string, provider RegistrySnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "registry")
	p.registriesMu.Lock()
	p.registries[name] = provider
	p.registriesMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel, done := p.cancel, p.done
	p.stateMu.Unlock()

	cancel()
	<-done

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (p *SnapshotPoller) collectOnce() {
	p.runnersMu.RLock()
	for name, provider := range p.runners {
		stats := provider.Stats()
		typeLabel := normalizeLabel(stats.Type, "unknown")
		p.runnerPending.WithLabelValues(name, typeLabel).Set(float64(stats.Pending))
		p.runnerIdle.WithLabelValues(name, typeLabel).Set(float64(stats.Idle))
		p.runnerRunning.WithLabelValues(name, typeLabel).Set(float64(stats.Running))
		p.runnerRejected.WithLabelValues(name, typeLabel).Set(float64(stats.Rejected))
		p.runnerClosed.WithLabelValues(name, typeLabel).Set(boolGauge(stats.Closed))
	}
	p.runnersMu.RUnlock()

	p.registriesMu.RLock()
	for name, provider := range p.registries {
		stats := provider.Stats()
		for _, ns := range registry.Namespaces {
			p.registryLive.WithLabelValues(name, ns.String()).Set(float64(stats.Live[ns]))
		}
		p.registryMuted.WithLabelValues(name).Set(float64(stats.Muted))
		p.registryPaused.WithLabelValues(name).Set(float64(stats.Paused))
	}
	p.registriesMu.RUnlock()
}
