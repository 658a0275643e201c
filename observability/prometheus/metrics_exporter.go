package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-task-manager/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

const (
	defaultNamespace = "taskmanager"
	unknownLabel     = "unknown"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	// DurationBuckets overrides prom.DefBuckets for task_duration_seconds.
	DurationBuckets []float64
	// ConstLabels are attached to every series, e.g. {"service": "sim"}.
	ConstLabels prom.Labels
}

// MetricsExporter implements core.Metrics on top of Prometheus collectors.
// One exporter can be shared by several managers; series are split by the
// "manager" label.
type MetricsExporter struct {
	duration   *prom.HistogramVec
	executed   *prom.CounterVec
	panics     *prom.CounterVec
	rejected   *prom.CounterVec
	queueDepth *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter registers the task manager collectors on reg
// (prom.DefaultRegisterer when nil). Registering twice on the same registry
// returns an exporter backed by the existing collectors.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	namespace = normalizeLabel(namespace, defaultNamespace)
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	e := &MetricsExporter{
		duration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace:   namespace,
			Name:        "task_duration_seconds",
			Help:        "Time spent in Task.Run, including runs that panicked.",
			Buckets:     buckets,
			ConstLabels: opts.ConstLabels,
		}, []string{"manager"}),
		executed: prom.NewCounterVec(prom.CounterOpts{
			Namespace:   namespace,
			Name:        "task_executed_total",
			Help:        "Tasks claimed and run by a worker.",
			ConstLabels: opts.ConstLabels,
		}, []string{"manager"}),
		panics: prom.NewCounterVec(prom.CounterOpts{
			Namespace:   namespace,
			Name:        "task_panic_total",
			Help:        "Task runs that panicked and were recovered.",
			ConstLabels: opts.ConstLabels,
		}, []string{"manager"}),
		rejected: prom.NewCounterVec(prom.CounterOpts{
			Namespace:   namespace,
			Name:        "task_rejected_total",
			Help:        "Tasks that will never run, by reason (stopped, expired).",
			ConstLabels: opts.ConstLabels,
		}, []string{"manager", "reason"}),
		queueDepth: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace:   namespace,
			Name:        "queue_depth",
			Help:        "Pending tasks, ready or not, as of the last submit or eviction.",
			ConstLabels: opts.ConstLabels,
		}, []string{"manager"}),
	}

	var err error
	if e.duration, err = registerCollector(reg, e.duration); err != nil {
		return nil, err
	}
	if e.executed, err = registerCollector(reg, e.executed); err != nil {
		return nil, err
	}
	if e.panics, err = registerCollector(reg, e.panics); err != nil {
		return nil, err
	}
	if e.rejected, err = registerCollector(reg, e.rejected); err != nil {
		return nil, err
	}
	if e.queueDepth, err = registerCollector(reg, e.queueDepth); err != nil {
		return nil, err
	}
	return e, nil
}

// RecordTaskDuration observes one finished run.
func (e *MetricsExporter) RecordTaskDuration(managerName string, duration time.Duration) {
	if e == nil {
		return
	}
	manager := normalizeLabel(managerName, unknownLabel)
	e.duration.WithLabelValues(manager).Observe(duration.Seconds())
	e.executed.WithLabelValues(manager).Inc()
}

func (e *MetricsExporter) RecordTaskPanic(managerName string, panicInfo any) {
	if e == nil {
		return
	}
	e.panics.WithLabelValues(normalizeLabel(managerName, unknownLabel)).Inc()
}

func (e *MetricsExporter) RecordQueueDepth(managerName string, depth int) {
	if e == nil {
		return
	}
	e.queueDepth.WithLabelValues(normalizeLabel(managerName, unknownLabel)).Set(float64(depth))
}

func (e *MetricsExporter) RecordTaskRejected(managerName string, reason string) {
	if e == nil {
		return
	}
	e.rejected.WithLabelValues(
		normalizeLabel(managerName, unknownLabel),
		normalizeLabel(reason, unknownLabel),
	).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// registerCollector registers c, or returns the collector already registered
// under the same descriptor.
func registerCollector[T prom.Collector](reg prom.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var are prom.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return c, err
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return c, fmt.Errorf("register %T: existing collector has type %T", c, are.ExistingCollector)
	}
	return existing, nil
}
