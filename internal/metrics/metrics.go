// Package metrics provides Prometheus counters for analysis runs
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pair outcomes recorded by RecordPair.
const (
	OutcomeResult = "result"
	OutcomeSkip   = "skip"
	OutcomeError  = "error"
)

// RunMetrics contains Prometheus metrics for event analysis runs.
// A nil *RunMetrics is valid and records nothing.
type RunMetrics struct {
	registry *prometheus.Registry

	eventsTotal       *prometheus.CounterVec
	pairsTotal        *prometheus.CounterVec
	missingGenesTotal *prometheus.CounterVec
	disruptedTotal    *prometheus.CounterVec
	nmdTotal          *prometheus.CounterVec
	runDuration       *prometheus.HistogramVec
}

// NewRunMetrics creates and registers new run metrics
func NewRunMetrics(registry *prometheus.Registry) (*RunMetrics, error) {
	m := &RunMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *RunMetrics) initMetrics() {
	m.eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nmdscan_events_total",
			Help: "Total number of splicing events analyzed",
		},
		[]string{"splice_type"},
	)

	m.pairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nmdscan_pairs_total",
			Help: "Total number of transcript/event pairs by outcome",
		},
		[]string{"splice_type", "outcome"}, // outcome: result, skip, error
	)

	m.missingGenesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nmdscan_missing_genes_total",
			Help: "Total number of events whose gene is absent from the annotation",
		},
		[]string{"splice_type"},
	)

	m.disruptedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nmdscan_disrupted_total",
			Help: "Total number of pairs with a disrupted ORF",
		},
		[]string{"splice_type"},
	)

	m.nmdTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nmdscan_likely_nmd_total",
			Help: "Total number of pairs predicted to trigger NMD",
		},
		[]string{"splice_type"},
	)

	m.runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nmdscan_run_duration_seconds",
			Help:    "Time taken to analyze one dataset and splice type",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"splice_type"},
	)
}

// Describe implements the Collector interface
func (m *RunMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.eventsTotal.Describe(ch)
	m.pairsTotal.Describe(ch)
	m.missingGenesTotal.Describe(ch)
	m.disruptedTotal.Describe(ch)
	m.nmdTotal.Describe(ch)
	m.runDuration.Describe(ch)
}

// Collect implements the Collector interface
func (m *RunMetrics) Collect(ch chan<- prometheus.Metric) {
	m.eventsTotal.Collect(ch)
	m.pairsTotal.Collect(ch)
	m.missingGenesTotal.Collect(ch)
	m.disruptedTotal.Collect(ch)
	m.nmdTotal.Collect(ch)
	m.runDuration.Collect(ch)
}

// RecordEvent records one analyzed event.
func (m *RunMetrics) RecordEvent(spliceType string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(spliceType).Inc()
}

// RecordMissingGene records an event whose gene could not be found.
func (m *RunMetrics) RecordMissingGene(spliceType string) {
	if m == nil {
		return
	}
	m.missingGenesTotal.WithLabelValues(spliceType).Inc()
}

// RecordPair records the outcome of one transcript/event pair.
func (m *RunMetrics) RecordPair(spliceType, outcome string) {
	if m == nil {
		return
	}
	m.pairsTotal.WithLabelValues(spliceType, outcome).Inc()
}

// RecordPrediction records the classification of a successfully processed pair.
func (m *RunMetrics) RecordPrediction(spliceType string, disrupted, nmd bool) {
	if m == nil {
		return
	}
	if disrupted {
		m.disruptedTotal.WithLabelValues(spliceType).Inc()
	}
	if nmd {
		m.nmdTotal.WithLabelValues(spliceType).Inc()
	}
}

// RecordRunDuration records the wall time of one run.
func (m *RunMetrics) RecordRunDuration(spliceType string, d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues(spliceType).Observe(d.Seconds())
}

// WriteTextfile writes all registered metrics in the Prometheus text format,
// suitable for the node_exporter textfile collector.
func (m *RunMetrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
