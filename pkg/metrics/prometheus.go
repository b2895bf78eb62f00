// Package metrics provides Prometheus metrics for avatar scaling runs.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Preview outcomes recorded by RecordPreview.
const (
	PreviewBegun     = "begun"
	PreviewApplied   = "applied"
	PreviewCancelled = "cancelled"
)

// Batch job outcomes recorded by RecordBatchJob.
const (
	BatchSucceeded = "succeeded"
	BatchFailed    = "failed"
	BatchRejected  = "rejected"
)

// Manager owns the Prometheus collectors for scaling runs.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Scaling runs
	scaleOperations *prometheus.CounterVec
	scaleFailures   *prometheus.CounterVec
	scaleDuration   prometheus.Histogram
	clampedFactors  *prometheus.CounterVec

	// Measurement quality
	measurementFallbacks *prometheus.CounterVec

	// Preview transactions
	previewTransactions *prometheus.CounterVec
	previewActive       prometheus.Gauge

	// Batch runs
	batchJobs        *prometheus.CounterVec
	batchQueueSize   prometheus.Gauge
	batchWorkersBusy prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "immersive_scaler",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
		enabled:          true,
		constLabels:      make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.scaleOperations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "scale_operations_total",
		Help:        "Total number of completed scaling runs by strategy",
		ConstLabels: m.constLabels,
	}, []string{"strategy"})

	m.scaleFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "scale_failures_total",
		Help:        "Total number of aborted or rolled back scaling runs by reason",
		ConstLabels: m.constLabels,
	}, []string{"reason"})

	m.scaleDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "scale_duration_milliseconds",
		Help:        "Duration of a scaling run in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.clampedFactors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "clamped_factors_total",
		Help:        "Total number of segment factors clamped to the safe range",
		ConstLabels: m.constLabels,
	}, []string{"segment"})

	m.measurementFallbacks = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "measurement_fallbacks_total",
		Help:        "Total number of measurements that used their default constant",
		ConstLabels: m.constLabels,
	}, []string{"measurement"})

	m.previewTransactions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "preview_transactions_total",
		Help:        "Total number of preview transitions by outcome",
		ConstLabels: m.constLabels,
	}, []string{"outcome"})

	m.previewActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "preview_active",
		Help:        "Number of open preview transactions",
		ConstLabels: m.constLabels,
	})

	m.batchJobs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "batch_jobs_total",
		Help:        "Total number of batch jobs by outcome",
		ConstLabels: m.constLabels,
	}, []string{"outcome"})

	m.batchQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "batch_queue_size",
		Help:        "Number of batch jobs waiting for a worker",
		ConstLabels: m.constLabels,
	})

	m.batchWorkersBusy = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "batch_workers_busy",
		Help:        "Number of batch workers currently processing a job",
		ConstLabels: m.constLabels,
	})
}

// RecordScaleOperation counts a completed run and observes its duration.
func (m *Manager) RecordScaleOperation(strategy string, durationMs float64) {
	if !m.enabled {
		return
	}
	m.scaleOperations.WithLabelValues(strategy).Inc()
	m.scaleDuration.Observe(durationMs)
}

// RecordScaleFailure counts a failed run.
func (m *Manager) RecordScaleFailure(reason string) {
	if !m.enabled {
		return
	}
	m.scaleFailures.WithLabelValues(reason).Inc()
}

// RecordClampedFactor counts a clamped segment factor.
func (m *Manager) RecordClampedFactor(segment string) {
	if !m.enabled {
		return
	}
	m.clampedFactors.WithLabelValues(segment).Inc()
}

// RecordMeasurementFallback counts a measurement that fell back to its constant.
func (m *Manager) RecordMeasurementFallback(measurement string) {
	if !m.enabled {
		return
	}
	m.measurementFallbacks.WithLabelValues(measurement).Inc()
}

// RecordPreview counts a preview transition and tracks the open count.
func (m *Manager) RecordPreview(outcome string) {
	if !m.enabled {
		return
	}
	m.previewTransactions.WithLabelValues(outcome).Inc()
	switch outcome {
	case PreviewBegun:
		m.previewActive.Inc()
	case PreviewApplied, PreviewCancelled:
		m.previewActive.Dec()
	}
}

// RecordBatchJob counts a batch job by outcome.
func (m *Manager) RecordBatchJob(outcome string) {
	if !m.enabled {
		return
	}
	m.batchJobs.WithLabelValues(outcome).Inc()
}

// UpdateBatchQueueSize sets the number of waiting batch jobs.
func (m *Manager) UpdateBatchQueueSize(n int) {
	if !m.enabled {
		return
	}
	m.batchQueueSize.Set(float64(n))
}

// AddBatchWorkersBusy moves the busy worker gauge by delta.
func (m *Manager) AddBatchWorkersBusy(delta int) {
	if !m.enabled {
		return
	}
	m.batchWorkersBusy.Add(float64(delta))
}

// RecordScaleOperation counts a completed run on the global manager.
func RecordScaleOperation(strategy string, durationMs float64) {
	globalManager.RecordScaleOperation(strategy, durationMs)
}

// RecordScaleFailure counts a failed run on the global manager.
func RecordScaleFailure(reason string) {
	globalManager.RecordScaleFailure(reason)
}

// RecordClampedFactor counts a clamped segment factor on the global manager.
func RecordClampedFactor(segment string) {
	globalManager.RecordClampedFactor(segment)
}

// RecordMeasurementFallback counts a measurement fallback on the global manager.
func RecordMeasurementFallback(measurement string) {
	globalManager.RecordMeasurementFallback(measurement)
}

// RecordPreview counts a preview transition on the global manager.
func RecordPreview(outcome string) {
	globalManager.RecordPreview(outcome)
}

// RecordBatchJob counts a batch job on the global manager.
func RecordBatchJob(outcome string) {
	globalManager.RecordBatchJob(outcome)
}

// UpdateBatchQueueSize sets the batch queue gauge on the global manager.
func UpdateBatchQueueSize(n int) {
	globalManager.UpdateBatchQueueSize(n)
}

// AddBatchWorkersBusy moves the busy worker gauge on the global manager.
func AddBatchWorkersBusy(delta int) {
	globalManager.AddBatchWorkersBusy(delta)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteTextfile writes the global registry in the text exposition format to
// path, for pickup by a node exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, customRegistry); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}
