// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vietddude/flightontime/internal/core/domain"
)

const namespace = "flightontime"

// Metrics holds every counter, histogram and gauge. All methods are safe for
// concurrent use.
type Metrics struct {
	Registry *prometheus.Registry

	PredictionsTotal      prometheus.Counter
	PredictionsByOutcome  *prometheus.CounterVec // labels: outcome={on_time,delayed}
	PredictionsByAirline  *prometheus.CounterVec // labels: airline
	PredictionsByRoute    *prometheus.CounterVec // labels: origin, destination
	PredictionErrors      *prometheus.CounterVec // labels: error_type
	PredictionDuration    prometheus.Histogram
	ScorerAttempts        *prometheus.CounterVec // labels: result
	ScorerCircuitState    prometheus.Gauge       // 0 closed, 1 open, 2 half-open
	PersistenceFailures   prometheus.Counter
	BatchRows             *prometheus.CounterVec // labels: result={processed,error}
	BatchDuration         prometheus.Histogram
	DBConnectionPoolUsage prometheus.Gauge
}

// New creates and registers all metrics on a fresh registry that also carries
// the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newWithRegistry(reg)
}

// NewForTesting creates Metrics on an isolated registry without runtime collectors.
func NewForTesting() *Metrics {
	return newWithRegistry(prometheus.NewRegistry())
}

func newWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		PredictionsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Total prediction requests, successful or not.",
		}),
		PredictionsByOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_by_outcome_total",
			Help:      "Successful predictions by class.",
		}, []string{"outcome"}),
		PredictionsByAirline: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_by_airline_total",
			Help:      "Successful predictions by airline.",
		}, []string{"airline"}),
		PredictionsByRoute: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_by_route_total",
			Help:      "Successful predictions by origin and destination.",
		}, []string{"origin", "destination"}),
		PredictionErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_errors_total",
			Help:      "Failed predictions by error kind.",
		}, []string{"error_type"}),
		PredictionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "End-to-end prediction latency in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ScorerAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scorer_attempts_total",
			Help:      "Individual scorer call attempts by result.",
		}, []string{"result"}),
		ScorerCircuitState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scorer_circuit_state",
			Help:      "Scorer circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}),
		PersistenceFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Prediction records that could not be stored.",
		}),
		BatchRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_rows_total",
			Help:      "CSV batch rows by result.",
		}, []string{"result"}),
		BatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of a complete CSV batch.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),
		DBConnectionPoolUsage: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connection_pool_usage_percent",
			Help:      "Open connections as a percentage of the pool limit.",
		}),
	}
}

// RecordSuccess counts a scored prediction.
func (m *Metrics) RecordSuccess(req domain.PredictionRequest, out *domain.Outcome, d time.Duration) {
	m.PredictionsTotal.Inc()
	m.PredictionDuration.Observe(d.Seconds())
	outcome := "on_time"
	if out.Class == domain.ClassDelayed {
		outcome = "delayed"
	}
	m.PredictionsByOutcome.WithLabelValues(outcome).Inc()
	m.PredictionsByAirline.WithLabelValues(req.Airline).Inc()
	m.PredictionsByRoute.WithLabelValues(req.Origin, req.Destination).Inc()
}

// RecordFailure counts a failed prediction.
func (m *Metrics) RecordFailure(err error, d time.Duration) {
	m.PredictionsTotal.Inc()
	m.PredictionDuration.Observe(d.Seconds())
	m.PredictionErrors.WithLabelValues(domain.ErrorKind(err)).Inc()
}

// ObserveScorerAttempt counts one scorer attempt.
func (m *Metrics) ObserveScorerAttempt(result string) {
	m.ScorerAttempts.WithLabelValues(result).Inc()
}

// SetCircuitState mirrors the breaker state. Values follow resilience.State.
func (m *Metrics) SetCircuitState(state int) {
	m.ScorerCircuitState.Set(float64(state))
}

// RecordPersistenceFailure counts a dropped record.
func (m *Metrics) RecordPersistenceFailure() {
	m.PersistenceFailures.Inc()
}

// RecordBatch counts the rows of a finished batch.
func (m *Metrics) RecordBatch(processed, failed int, d time.Duration) {
	m.BatchRows.WithLabelValues("processed").Add(float64(processed))
	m.BatchRows.WithLabelValues("error").Add(float64(failed))
	m.BatchDuration.Observe(d.Seconds())
}

// SetDBPoolUsage records connection pool usage.
func (m *Metrics) SetDBPoolUsage(percent float64) {
	m.DBConnectionPoolUsage.Set(percent)
}
