package metrics

import "github.com/prometheus/client_golang/prometheus"

// Interfaces for metrics to avoid circular imports
type MetricsCounter interface {
	Inc()
}

type MetricsGauge interface {
	Set(float64)
	Add(float64)
}

type MetricsHistogram interface {
	Observe(float64)
}

// MetricsWrapper adapts Metrics to the narrow interfaces declared by the
// ml, features, engine and bracket packages.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

// classifier

func (w *MetricsWrapper) MLPredictionsInc()                   { w.m.MLPredictions.Inc() }
func (w *MetricsWrapper) MLFailuresInc()                      { w.m.MLFailures.Inc(); w.m.ErrorsTotal.Inc() }
func (w *MetricsWrapper) MLLatencyObserve(v float64)          { w.m.MLLatency.Observe(v) }
func (w *MetricsWrapper) MLPredictionScoresObserve(v float64) { w.m.MLPredictionScores.Observe(v) }
func (w *MetricsWrapper) MLUpdatesInc()                       { w.m.MLUpdates.Inc() }
func (w *MetricsWrapper) MLLossObserve(v float64)             { w.m.MLLoss.Observe(v) }

// history

func (w *MetricsWrapper) HistoryLookupsInc()  { w.m.HistoryLookups.Inc() }
func (w *MetricsWrapper) HistoryFailuresInc() { w.m.HistoryFailures.Inc(); w.m.ErrorsTotal.Inc() }

// engine

func (w *MetricsWrapper) PredictionsInc()                     { w.m.PredictionsTotal.Inc() }
func (w *MetricsWrapper) PredictionFailuresInc()              { w.m.PredictionFailures.Inc(); w.m.ErrorsTotal.Inc() }
func (w *MetricsWrapper) PredictionLatencyObserve(v float64) { w.m.PredictionLatency.Observe(v) }
func (w *MetricsWrapper) ConfidenceObserve(v float64)         { w.m.Confidence.Observe(v) }
func (w *MetricsWrapper) PicksRecordedInc()                   { w.m.PicksRecorded.Inc() }
func (w *MetricsWrapper) PicksResolvedInc()                   { w.m.PicksResolved.Inc() }

func (w *MetricsWrapper) PickPerformanceSet(winPercentage, profitLoss float64) {
	w.m.PickWinRate.Set(winPercentage)
	w.m.PickProfit.Set(profitLoss)
}

// bracket

func (w *MetricsWrapper) BracketPredictions() MetricsCounter {
	return &CounterWrapper{w.m.BracketPredictions}
}

func (w *MetricsWrapper) BracketResolved() MetricsCounter {
	return &CounterWrapper{w.m.BracketResolved}
}

func (w *MetricsWrapper) BracketAccuracy() MetricsGauge {
	return &GaugeWrapper{w.m.BracketAccuracy}
}

func (w *MetricsWrapper) BracketLatency() MetricsHistogram {
	return &HistogramWrapper{w.m.BracketLatency}
}

type CounterWrapper struct {
	c prometheus.Counter
}

func (cw *CounterWrapper) Inc() {
	cw.c.Inc()
}

type GaugeWrapper struct {
	g prometheus.Gauge
}

func (gw *GaugeWrapper) Set(v float64) {
	gw.g.Set(v)
}

func (gw *GaugeWrapper) Add(v float64) {
	gw.g.Add(v)
}

type HistogramWrapper struct {
	h prometheus.Histogram
}

func (hw *HistogramWrapper) Observe(v float64) {
	hw.h.Observe(v)
}
