package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-task-manager/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// StatsProvider provides current manager stats snapshots.
// *core.TaskManager satisfies it.
type StatsProvider interface {
	Stats() core.ManagerStats
}

var _ StatsProvider = (*core.TaskManager)(nil)

// SnapshotPoller periodically exports manager Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	managersMu sync.RWMutex
	managers   map[string]StatsProvider

	pending  *prom.GaugeVec
	active   *prom.GaugeVec
	workers  *prom.GaugeVec
	running  *prom.GaugeVec
	executed *prom.GaugeVec
	evicted  *prom.GaugeVec

	stateMu   sync.Mutex
	isPolling bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: defaultNamespace,
			Name:      name,
			Help:      help,
		}, []string{"manager"})
	}

	p := &SnapshotPoller{
		interval: interval,
		managers: make(map[string]StatsProvider),
		pending:  gauge("manager_pending", "Pending tasks per manager, ready or not."),
		active:   gauge("manager_active", "Running tasks per manager."),
		workers:  gauge("manager_workers", "Worker count per manager."),
		running:  gauge("manager_running", "Manager running state (1=running, 0=not running)."),
		executed: gauge("manager_executed_total", "Manager executed task count snapshot."),
		evicted:  gauge("manager_evicted_total", "Manager evicted task count snapshot."),
	}

	var err error
	for _, g := range []**prom.GaugeVec{&p.pending, &p.active, &p.workers, &p.running, &p.executed, &p.evicted} {
		if *g, err = registerCollector(reg, *g); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// AddManager adds or replaces a stats provider by name.
func (p *SnapshotPoller) AddManager(name string, provider StatsProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "manager")
	p.managersMu.Lock()
	p.managers[name] = provider
	p.managersMu.Unlock()
}

// RemoveManager stops exporting the named manager and deletes its series.
func (p *SnapshotPoller) RemoveManager(name string) {
	if p == nil {
		return
	}
	name = normalizeLabel(name, "manager")
	p.managersMu.Lock()
	delete(p.managers, name)
	p.managersMu.Unlock()

	for _, g := range []*prom.GaugeVec{p.pending, p.active, p.workers, p.running, p.executed, p.evicted} {
		g.DeleteLabelValues(name)
	}
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.isPolling {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.isPolling = true
	p.stateMu.Unlock()

	go p.loop(pollCtx, p.done)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.isPolling {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.isPolling = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

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

func (p *SnapshotPoller) collectOnce() {
	p.managersMu.RLock()
	defer p.managersMu.RUnlock()

	for name, provider := range p.managers {
		stats := provider.Stats()
		p.pending.WithLabelValues(name).Set(float64(stats.Pending))
		p.active.WithLabelValues(name).Set(float64(stats.Active))
		p.workers.WithLabelValues(name).Set(float64(stats.Workers))
		p.executed.WithLabelValues(name).Set(float64(stats.Executed))
		p.evicted.WithLabelValues(name).Set(float64(stats.Evicted))
		if stats.Running() {
			p.running.WithLabelValues(name).Set(1)
		} else {
			p.running.WithLabelValues(name).Set(0)
		}
	}
}
