package metrics

import (
	"testing"

	"match-predictor/internal/engine"
	"match-predictor/internal/features"
	"match-predictor/internal/ml"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var (
	_ ml.MetricsInterface       = (*MetricsWrapper)(nil)
	_ features.MetricsInterface = (*MetricsWrapper)(nil)
	_ engine.MetricsInterface   = (*MetricsWrapper)(nil)
)

func newTestWrapper(t testing.TB) (*prometheus.Registry, *Metrics, *MetricsWrapper) {
	t.Helper()
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	return registry, metrics, NewWrapper(metrics)
}

func sampleCount(t *testing.T, registry *prometheus.Registry, name string) uint64 {
	t.Helper()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}

func TestNewWrapper(t *testing.T) {
	_, metrics, wrapper := newTestWrapper(t)

	if wrapper == nil {
		t.Fatal("NewWrapper returned nil")
	}
	if wrapper.m != metrics {
		t.Error("Wrapper does not contain correct metrics instance")
	}
}

func TestNewWithRegistry_DuplicateRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewWithRegistry(registry)

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic on duplicate registration")
		}
	}()
	NewWithRegistry(registry)
}

func TestMetricsWrapper_CounterOperations(t *testing.T) {
	_, metrics, wrapper := newTestWrapper(t)

	predicted := wrapper.BracketPredictions()
	if predicted == nil {
		t.Fatal("BracketPredictions returned nil counter")
	}

	if v := testutil.ToFloat64(metrics.BracketPredictions); v != 0 {
		t.Errorf("Expected initial counter value 0, got %f", v)
	}

	predicted.Inc()
	wrapper.BracketPredictions().Inc()
	if v := testutil.ToFloat64(metrics.BracketPredictions); v != 2 {
		t.Errorf("Expected counter value 2, got %f", v)
	}

	wrapper.BracketResolved().Inc()
	if v := testutil.ToFloat64(metrics.BracketResolved); v != 1 {
		t.Errorf("Expected resolved value 1, got %f", v)
	}

	wrapper.PicksRecordedInc()
	if v := testutil.ToFloat64(metrics.PicksRecorded); v != 1 {
		t.Errorf("Expected picks recorded 1, got %f", v)
	}
}

func TestMetricsWrapper_GaugeOperations(t *testing.T) {
	_, metrics, wrapper := newTestWrapper(t)

	accuracy := wrapper.BracketAccuracy()
	accuracy.Set(62.5)
	accuracy.Add(-12.5)
	if v := testutil.ToFloat64(metrics.BracketAccuracy); v != 50.0 {
		t.Errorf("Expected gauge value 50.0, got %f", v)
	}

	wrapper.PickPerformanceSet(66.5, 3.25)
	if v := testutil.ToFloat64(metrics.PickWinRate); v != 66.5 {
		t.Errorf("Expected win rate 66.5, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.PickProfit); v != 3.25 {
		t.Errorf("Expected profit 3.25, got %f", v)
	}
}

func TestMetricsWrapper_HistogramOperations(t *testing.T) {
	registry, _, wrapper := newTestWrapper(t)

	latency := wrapper.BracketLatency()
	for _, v := range []float64{0.001, 0.005, 0.01} {
		latency.Observe(v)
	}
	if n := sampleCount(t, registry, "bracket_generation_seconds"); n != 3 {
		t.Errorf("Expected 3 observations, got %d", n)
	}

	wrapper.PredictionLatencyObserve(0.02)
	if n := sampleCount(t, registry, "prediction_latency_seconds"); n != 1 {
		t.Errorf("Expected 1 observation, got %d", n)
	}
}

func TestMetricsWrapper_MLMethods(t *testing.T) {
	registry, metrics, wrapper := newTestWrapper(t)

	wrapper.MLPredictionsInc()
	wrapper.MLFailuresInc()
	wrapper.MLUpdatesInc()
	wrapper.MLLatencyObserve(0.0001)
	wrapper.MLPredictionScoresObserve(0.75)
	wrapper.MLLossObserve(0.69)

	if v := testutil.ToFloat64(metrics.MLPredictions); v != 1 {
		t.Errorf("Expected 1 ML prediction, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.MLFailures); v != 1 {
		t.Errorf("Expected 1 ML failure, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.MLUpdates); v != 1 {
		t.Errorf("Expected 1 ML update, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.ErrorsTotal); v != 1 {
		t.Errorf("Expected failures to count as errors, got %f", v)
	}
	if n := sampleCount(t, registry, "ml_training_loss"); n != 1 {
		t.Errorf("Expected 1 loss observation, got %d", n)
	}
}

func TestMetricsWrapper_EngineAndHistoryMethods(t *testing.T) {
	registry, metrics, wrapper := newTestWrapper(t)

	wrapper.PredictionsInc()
	wrapper.PredictionsInc()
	wrapper.PredictionFailuresInc()
	wrapper.PicksResolvedInc()
	wrapper.ConfidenceObserve(92)
	wrapper.HistoryLookupsInc()
	wrapper.HistoryFailuresInc()

	testCases := []struct {
		name string
		c    prometheus.Counter
		want float64
	}{
		{"predictions", metrics.PredictionsTotal, 2},
		{"failures", metrics.PredictionFailures, 1},
		{"resolved", metrics.PicksResolved, 1},
		{"lookups", metrics.HistoryLookups, 1},
		{"history failures", metrics.HistoryFailures, 1},
		{"errors", metrics.ErrorsTotal, 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if v := testutil.ToFloat64(tc.c); v != tc.want {
				t.Errorf("Expected %f, got %f", tc.want, v)
			}
		})
	}

	if n := sampleCount(t, registry, "prediction_confidence"); n != 1 {
		t.Errorf("Expected 1 confidence observation, got %d", n)
	}
}

func TestCounterWrapper_DirectUsage(t *testing.T) {
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "Test counter for unit tests",
	})

	wrapper := &CounterWrapper{c: counter}
	wrapper.Inc()
	if v := testutil.ToFloat64(counter); v != 1 {
		t.Errorf("Expected counter value 1, got %f", v)
	}
}

func TestGaugeWrapper_DirectUsage(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_gauge",
		Help: "Test gauge for unit tests",
	})

	wrapper := &GaugeWrapper{g: gauge}
	wrapper.Set(42.0)
	wrapper.Add(8.0)
	if v := testutil.ToFloat64(gauge); v != 50.0 {
		t.Errorf("Expected gauge value 50.0 after add, got %f", v)
	}
}

func TestMetricsWrapper_ConcurrentAccess(t *testing.T) {
	_, metrics, wrapper := newTestWrapper(t)

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				wrapper.MLPredictionsInc()
				wrapper.MLLatencyObserve(0.01)
				wrapper.HistoryLookupsInc()
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	expected := 1000.0
	if v := testutil.ToFloat64(metrics.MLPredictions); v != expected {
		t.Errorf("Expected %f predictions after concurrent access, got %f", expected, v)
	}
	if v := testutil.ToFloat64(metrics.HistoryLookups); v != expected {
		t.Errorf("Expected %f lookups after concurrent access, got %f", expected, v)
	}
}

func TestMetricsWrapper_NilGuard(t *testing.T) {
	wrapper := &MetricsWrapper{m: nil}

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic when accessing nil metrics")
		}
	}()

	wrapper.MLPredictionsInc()
}

func BenchmarkMetricsWrapper_MLPredictionsInc(b *testing.B) {
	_, _, wrapper := newTestWrapper(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wrapper.MLPredictionsInc()
	}
}

func BenchmarkMetricsWrapper_PredictionLatencyObserve(b *testing.B) {
	_, _, wrapper := newTestWrapper(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wrapper.PredictionLatencyObserve(0.001)
	}
}
