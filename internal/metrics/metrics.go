// Package metrics provides Prometheus metrics collection for the match predictor.
// It defines the prediction, training, pick ledger, bracket and history lookup
// metrics exposed via the Prometheus metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the predictor.
type Metrics struct {
	// Prediction metrics
	PredictionsTotal   prometheus.Counter   // Total number of match predictions served
	PredictionFailures prometheus.Counter   // Predictions rejected or failed
	PredictionLatency  prometheus.Histogram // End-to-end predictMatch latency
	Confidence         prometheus.Histogram // Distribution of confidence scores (0-100)

	// Classifier metrics
	MLPredictions      prometheus.Counter   // Classifier forward passes
	MLFailures         prometheus.Counter   // Classifier errors
	MLLatency          prometheus.Histogram // Classifier inference latency
	MLPredictionScores prometheus.Histogram // Distribution of home-win probabilities
	MLUpdates          prometheus.Counter   // Online training steps
	MLLoss             prometheus.Histogram // Binary cross-entropy before each step

	// Pick ledger metrics
	PicksRecorded prometheus.Counter // High-confidence picks recorded
	PicksResolved prometheus.Counter // Picks resolved with an outcome
	PickWinRate   prometheus.Gauge   // Win percentage over resolved picks
	PickProfit    prometheus.Gauge   // Unit-stake profit/loss over resolved picks

	// Bracket metrics
	BracketPredictions prometheus.Counter   // Bracket games predicted
	BracketResolved    prometheus.Counter   // Bracket games resolved with a result
	BracketAccuracy    prometheus.Gauge     // Percentage of resolved bracket games predicted correctly
	BracketLatency     prometheus.Histogram // Time to generate a whole bracket

	// History metrics
	HistoryLookups  prometheus.Counter // Head-to-head history lookups
	HistoryFailures prometheus.Counter // Lookups that failed and degraded to no history

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of match predictions served",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_failures_total",
			Help: "Total number of failed match predictions",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "Match prediction latency in seconds (end-to-end)",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		Confidence: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_confidence",
			Help:    "Distribution of prediction confidence scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		MLPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of classifier forward passes",
		}),
		MLFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_failures_total",
			Help: "Total number of classifier failures",
		}),
		MLLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_latency_seconds",
			Help:    "Classifier inference latency in seconds",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		MLPredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_prediction_scores",
			Help:    "Distribution of home-win probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		MLUpdates: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_updates_total",
			Help: "Total number of online training steps",
		}),
		MLLoss: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_training_loss",
			Help:    "Binary cross-entropy loss observed before each training step",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		PicksRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "picks_recorded_total",
			Help: "Total number of high-confidence picks recorded",
		}),
		PicksResolved: factory.NewCounter(prometheus.CounterOpts{
			Name: "picks_resolved_total",
			Help: "Total number of picks resolved with an outcome",
		}),
		PickWinRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pick_win_percentage",
			Help: "Win percentage over resolved high-confidence picks",
		}),
		PickProfit: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pick_profit_loss_units",
			Help: "Unit-stake profit and loss over resolved high-confidence picks",
		}),
		BracketPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "bracket_predictions_total",
			Help: "Total number of bracket games predicted",
		}),
		BracketResolved: factory.NewCounter(prometheus.CounterOpts{
			Name: "bracket_resolved_total",
			Help: "Total number of bracket games resolved with a result",
		}),
		BracketAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bracket_accuracy_percentage",
			Help: "Percentage of resolved bracket games whose winner was predicted",
		}),
		BracketLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bracket_generation_seconds",
			Help:    "Time to predict a whole bracket in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}),
		HistoryLookups: factory.NewCounter(prometheus.CounterOpts{
			Name: "history_lookups_total",
			Help: "Total number of head-to-head history lookups",
		}),
		HistoryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "history_failures_total",
			Help: "Total number of history lookups that failed",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}
