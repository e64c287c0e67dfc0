// Package ml provides the trainable match outcome classifier: a small
// feed-forward network with online Adam updates, checkpoint versioning and
// the metrics hooks the engine reports through.
package ml

// PredictorInterface defines the classifier operations used by the engine.
type PredictorInterface interface {
	// Predict returns the home-win probability for one feature vector.
	Predict(features []float64) (float64, error)

	// Update performs a single training step on one labelled example and
	// returns the loss before the step.
	Update(features []float64, label float64) (float64, error)
}

// MetricsInterface defines metrics methods needed by the classifier
type MetricsInterface interface {
	MLPredictionsInc()
	MLFailuresInc()
	MLLatencyObserve(float64)
	MLPredictionScoresObserve(float64)
	MLUpdatesInc()
	MLLossObserve(float64)
}
