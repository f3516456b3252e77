package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "station_ingest"

// Metrics holds the Prometheus counters, histograms, and gauges for ingestion runs.
type Metrics struct {
	RunsTotal            *prometheus.CounterVec // labels: outcome={success,validation_error,device_not_found,unexpected_failure}
	RunDuration          prometheus.Histogram
	RunsInFlight         prometheus.Gauge
	LastSuccessTimestamp prometheus.Gauge

	// Per-parameter SMHI fetch metrics.
	ParameterFetches       *prometheus.CounterVec   // labels: parameter, outcome={success,empty,error}
	ParameterFetchDuration *prometheus.HistogramVec // labels: parameter

	// Backend metrics.
	BackendRequests *prometheus.CounterVec // labels: operation={get_device,create_telemetry}, outcome={success,rejected,error}
	BackendRetries  prometheus.Counter

	// Kafka fan-out metrics.
	Published     prometheus.Counter
	PublishErrors prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.RunsInFlight,
		m.LastSuccessTimestamp,
		m.ParameterFetches,
		m.ParameterFetchDuration,
		m.BackendRequests,
		m.BackendRetries,
		m.Published,
		m.PublishErrors,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Ingestion runs by terminal outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-resolve-commit run.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RunsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_flight",
			Help:      "Ingestion runs currently executing.",
		}),
		LastSuccessTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that committed a record.",
		}),
		ParameterFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parameter_fetch_total",
			Help:      "SMHI parameter fetches by parameter and outcome.",
		}, []string{"parameter", "outcome"}),
		ParameterFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "parameter_fetch_duration_seconds",
			Help:      "SMHI request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"parameter"}),
		BackendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "GraphQL backend requests by operation and outcome.",
		}, []string{"operation", "outcome"}),
		BackendRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_retries_total",
			Help:      "Retried GraphQL query attempts.",
		}),
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_total",
			Help:      "Committed records published to Kafka.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed Kafka publishes of committed records.",
		}),
	}
}
