// Package telemetry provides prometheus instrumentation for update cycles and loads.
package telemetry

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "go_refresh"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	cycles          prometheus.Counter
	taskRuns        *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
	itemsLoaded     *prometheus.CounterVec
	loadFailures    *prometheus.CounterVec
	repositoryItems *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
// If reg is nil, it returns nil (no-op metrics).
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "update_cycles_total",
			Help:      "Number of update cycles that dispatched at least one task.",
		}),
		taskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_runs_total",
			Help:      "Number of update task runs by outcome.",
		}, []string{"task", "status"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Duration of update task runs in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"task"}),
		itemsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_loaded_total",
			Help:      "Number of items appended to repositories.",
		}, []string{"type"}),
		loadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_failures_total",
			Help:      "Number of source files whose load was aborted.",
		}, []string{"type"}),
		repositoryItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "repository_items",
			Help:      "Number of items currently held per item type after the last load.",
		}, []string{"type"}),
	}

	collectors := []prometheus.Collector{
		m.cycles, m.taskRuns, m.taskDuration, m.itemsLoaded, m.loadFailures, m.repositoryItems,
	}
	var errs []error
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) RecordCycle() {
	if m == nil {
		return
	}
	m.cycles.Inc()
}

func (m *Metrics) RecordTaskRun(taskName, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskRuns.WithLabelValues(taskName, status).Inc()
	m.taskDuration.WithLabelValues(taskName).Observe(duration.Seconds())
}

func (m *Metrics) RecordItemsLoaded(itemType string, n int) {
	if m == nil {
		return
	}
	m.itemsLoaded.WithLabelValues(itemType).Add(float64(n))
}

func (m *Metrics) RecordLoadFailure(itemType string) {
	if m == nil {
		return
	}
	m.loadFailures.WithLabelValues(itemType).Inc()
}

func (m *Metrics) SetRepositoryItems(itemType string, n int) {
	if m == nil {
		return
	}
	m.repositoryItems.WithLabelValues(itemType).Set(float64(n))
}
