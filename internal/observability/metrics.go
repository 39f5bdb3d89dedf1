package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for spot
// ingestion and layout.
type Metrics struct {
	// Store metrics.
	SpotsSubmitted *prometheus.CounterVec // labels: source, outcome={inserted,updated,superseded,expired}
	SpotsEvicted   prometheus.Counter
	SpotsStored    prometheus.Gauge

	// Source metrics.
	SourceRunning     *prometheus.GaugeVec     // labels: source
	PollRequests      *prometheus.CounterVec   // labels: source, outcome={success,error}
	PollDuration      *prometheus.HistogramVec // labels: source
	RecordsSkipped    *prometheus.CounterVec   // labels: source
	PushCommands      *prometheus.CounterVec   // labels: result={ok,error}
	PushConnections   prometheus.Gauge
	PublishErrors     prometheus.Counter
	DispatcherRunning prometheus.Gauge

	// Layout metrics.
	LayoutLanes   prometheus.Histogram
	LabelsOmitted prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.SpotsSubmitted,
		m.SpotsEvicted,
		m.SpotsStored,
		m.SourceRunning,
		m.PollRequests,
		m.PollDuration,
		m.RecordsSkipped,
		m.PushCommands,
		m.PushConnections,
		m.PublishErrors,
		m.DispatcherRunning,
		m.LayoutLanes,
		m.LabelsOmitted,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SpotsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spotlane",
			Name:      "spots_submitted_total",
			Help:      "Spots submitted to the store by source and outcome.",
		}, []string{"source", "outcome"}),
		SpotsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spotlane",
			Name:      "spots_evicted_total",
			Help:      "Spots removed after exceeding the max lifetime.",
		}),
		SpotsStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "spotlane",
			Name:      "spots_stored",
			Help:      "Spots currently retained, displayed or not.",
		}),
		SourceRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "spotlane",
			Name:      "source_running",
			Help:      "1 while a source is started, 0 otherwise.",
		}, []string{"source"}),
		PollRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spotlane",
			Name:      "poll_requests_total",
			Help:      "Upstream poll requests by source and outcome.",
		}, []string{"source", "outcome"}),
		PollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "spotlane",
			Name:      "poll_duration_seconds",
			Help:      "Upstream fetch and parse duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}),
		RecordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spotlane",
			Name:      "records_skipped_total",
			Help:      "Upstream records that failed to parse and were skipped.",
		}, []string{"source"}),
		PushCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "spotlane",
			Name:      "push_commands_total",
			Help:      "Push protocol commands by result.",
		}, []string{"result"}),
		PushConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "spotlane",
			Name:      "push_connections",
			Help:      "Open push protocol connections.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spotlane",
			Name:      "publish_errors_total",
			Help:      "Accepted spots that could not be published downstream.",
		}),
		DispatcherRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "spotlane",
			Name:      "dispatcher_running",
			Help:      "1 when sources are started, 0 when stopped.",
		}),
		LayoutLanes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "spotlane",
			Name:      "layout_lanes",
			Help:      "Lanes used per layout pass.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 7, 8},
		}),
		LabelsOmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spotlane",
			Name:      "labels_omitted_total",
			Help:      "Labels left out of a layout pass because every lane was full.",
		}),
	}
}
