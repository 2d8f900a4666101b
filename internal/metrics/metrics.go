// Package metrics provides Prometheus metrics for the quakewatch service:
// prediction throughput and latency, encoder out-of-vocabulary warnings,
// model age, and training-run outcomes. Metrics are exposed via the standard
// promhttp endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	Predictions        prometheus.Counter   // Total predictions served
	PredictionFailures prometheus.Counter   // Rejected or failed prediction requests
	PredictionLatency  prometheus.Histogram // End-to-end predict latency in seconds
	PredictionScores   prometheus.Histogram // Distribution of served class-1 probabilities
	OOVWarnings        prometheus.Counter   // Out-of-vocabulary categorical labels seen
	ModelAge           prometheus.Gauge     // Age of the served artifact in seconds
	TrainingRuns       prometheus.Counter   // Completed training runs
	FamilyFailures     prometheus.Counter   // Model families that failed during training
	EventsLoaded       prometheus.Gauge     // Rows in the loaded historical dataset
}

// New creates and registers all metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics against a custom registry, for tests.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Predictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of predictions served",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_failures_total",
			Help: "Total number of rejected or failed prediction requests",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "End-to-end prediction latency in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),
		PredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_scores",
			Help:    "Distribution of served high-risk probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		OOVWarnings: factory.NewCounter(prometheus.CounterOpts{
			Name: "oov_warnings_total",
			Help: "Total number of out-of-vocabulary categorical labels encountered",
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_age_seconds",
			Help: "Age of the served model artifact in seconds",
		}),
		TrainingRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_runs_total",
			Help: "Total number of completed training runs",
		}),
		FamilyFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "training_family_failures_total",
			Help: "Total number of model families that failed during training",
		}),
		EventsLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "events_loaded",
			Help: "Number of rows in the loaded historical dataset",
		}),
	}
}

// PredictionsInc implements infer.MetricsInterface.
func (m *Metrics) PredictionsInc() { m.Predictions.Inc() }

// PredictionFailuresInc implements infer.MetricsInterface.
func (m *Metrics) PredictionFailuresInc() { m.PredictionFailures.Inc() }

// PredictionLatencyObserve implements infer.MetricsInterface.
func (m *Metrics) PredictionLatencyObserve(seconds float64) { m.PredictionLatency.Observe(seconds) }

// OOVWarningsInc implements infer.MetricsInterface.
func (m *Metrics) OOVWarningsInc() { m.OOVWarnings.Inc() }

// ModelAgeSet implements infer.MetricsInterface.
func (m *Metrics) ModelAgeSet(seconds float64) { m.ModelAge.Set(seconds) }
