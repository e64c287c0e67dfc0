// Package engine composes feature extraction, classification and factor
// generation into match predictions, and owns the pick ledger that tracks
// high-confidence predictions until their outcome is known.
package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"match-predictor/internal/common"
	"match-predictor/internal/factors"
	"match-predictor/internal/features"
	"match-predictor/internal/ledger"
	"match-predictor/internal/ml"
	"match-predictor/internal/sports"

	"github.com/rs/zerolog/log"
)

// MetricsInterface defines the metrics the engine reports
type MetricsInterface interface {
	PredictionsInc()
	PredictionFailuresInc()
	PredictionLatencyObserve(float64)
	ConfidenceObserve(float64)
	PicksRecordedInc()
	PicksResolvedInc()
	PickPerformanceSet(winPercentage, profitLoss float64)
}

// PickListener is notified after a pick is recorded or resolved.
type PickListener func(sports.HighConfidencePick)

type Option func(*Engine)

// WithThreshold sets the minimum confidence (0-100) that records a pick.
func WithThreshold(threshold float64) Option {
	return func(e *Engine) {
		if threshold > 0 {
			e.threshold = threshold
		}
	}
}

func WithMetrics(m MetricsInterface) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the timestamp source for picks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine owns one classifier and one pick ledger. All methods are safe for
// concurrent use; classifier access is serialized by the classifier itself.
type Engine struct {
	model     ml.PredictorInterface
	extractor *features.Extractor
	generator *factors.Generator
	ledger    *ledger.Ledger
	threshold float64
	metrics   MetricsInterface
	now       func() time.Time

	listenersMu sync.RWMutex
	listeners   []PickListener
}

// New wires an engine. A nil extractor disables history lookups, a nil
// generator uses the default tournament weight and a nil ledger keeps picks
// in memory only.
func New(model ml.PredictorInterface, extractor *features.Extractor, generator *factors.Generator, l *ledger.Ledger, opts ...Option) *Engine {
	if generator == nil {
		generator = factors.NewGenerator(common.DefaultTournamentWeight)
	}
	if l == nil {
		l = ledger.New(nil)
	}

	e := &Engine{
		model:     model,
		extractor: extractor,
		generator: generator,
		ledger:    l,
		threshold: common.DefaultConfidenceThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Confidence maps a probability to 0-100 by its distance from a coin flip.
func Confidence(p float64) float64 {
	return math.Abs(p-0.5) * 2 * 100
}

// Threshold returns the pick threshold in effect.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// OnPick registers a listener for recorded and resolved picks.
func (e *Engine) OnPick(fn PickListener) {
	e.listenersMu.Lock()
	e.listeners = append(e.listeners, fn)
	e.listenersMu.Unlock()
}

func (e *Engine) notify(p sports.HighConfidencePick) {
	e.listenersMu.RLock()
	defer e.listenersMu.RUnlock()
	for _, fn := range e.listeners {
		fn(p)
	}
}

// PredictMatch predicts the home-win probability of m, explains it with
// factors and records a pick when the confidence reaches the threshold.
// History lookup failures degrade to neutral features and are not returned.
func (e *Engine) PredictMatch(ctx context.Context, m sports.Match) (sports.Prediction, error) {
	start := time.Now()
	if e.model == nil {
		e.failure()
		return sports.Prediction{}, common.ErrModelNotReady
	}

	games := e.extractor.History(ctx, m)
	vec := features.Build(m, games)

	p, err := e.model.Predict(vec.Slice())
	if err != nil {
		e.failure()
		return sports.Prediction{}, fmt.Errorf("predict match %s: %w", m.ID, err)
	}

	pred := sports.Prediction{
		HomeWinProbability: p,
		AwayWinProbability: 1 - p,
		ConfidenceScore:    Confidence(p),
		Factors:            e.generator.Generate(m, games, p),
	}

	if e.metrics != nil {
		e.metrics.PredictionsInc()
		e.metrics.ConfidenceObserve(pred.ConfidenceScore)
	}

	if pred.ConfidenceScore >= e.threshold {
		pick := e.ledger.Record(m, pred, e.now())
		if e.metrics != nil {
			e.metrics.PicksRecordedInc()
		}
		log.Info().
			Str("match_id", m.ID).
			Str("pick_id", pick.ID.String()).
			Float64("home_prob", p).
			Float64("confidence", pred.ConfidenceScore).
			Msg("high-confidence pick recorded")
		e.notify(pick)
	}

	if e.metrics != nil {
		e.metrics.PredictionLatencyObserve(time.Since(start).Seconds())
	}
	log.Debug().
		Str("match_id", m.ID).
		Float64("home_prob", p).
		Float64("confidence", pred.ConfidenceScore).
		Int("factors", len(pred.Factors)).
		Int("h2h_games", len(games)).
		Msg("match predicted")

	return pred, nil
}

func (e *Engine) failure() {
	if e.metrics != nil {
		e.metrics.PredictionFailuresInc()
	}
}

// UpdateModel trains the classifier one step on the known outcome of m
// (true when the home team won) and resolves the oldest open pick for m.
func (e *Engine) UpdateModel(ctx context.Context, m sports.Match, homeWon bool) error {
	if e.model == nil {
		return common.ErrModelNotReady
	}

	vec := e.extractor.Extract(ctx, m)
	label := 0.0
	if homeWon {
		label = 1
	}

	loss, err := e.model.Update(vec.Slice(), label)
	if err != nil {
		return fmt.Errorf("update model for match %s: %w", m.ID, err)
	}
	log.Debug().Str("match_id", m.ID).Bool("home_won", homeWon).Float64("loss", loss).Msg("model updated")

	pick, ok := e.ledger.Resolve(m.ID, homeWon, e.now())
	if !ok {
		return nil
	}

	perf := e.ledger.Performance()
	if e.metrics != nil {
		e.metrics.PicksResolvedInc()
		e.metrics.PickPerformanceSet(perf.WinPercentage, perf.ProfitLoss)
	}
	log.Info().
		Str("match_id", m.ID).
		Str("pick_id", pick.ID.String()).
		Bool("won", homeWon).
		Float64("win_pct", perf.WinPercentage).
		Float64("profit_loss", perf.ProfitLoss).
		Msg("pick resolved")
	e.notify(pick)
	return nil
}

// HighConfidencePicks returns copies of all picks, highest confidence first.
func (e *Engine) HighConfidencePicks() []sports.HighConfidencePick {
	return e.ledger.Picks()
}

// PerformanceMetrics summarizes resolved picks.
func (e *Engine) PerformanceMetrics() sports.PickPerformance {
	return e.ledger.Performance()
}

// PerformanceBySport summarizes picks per sport.
func (e *Engine) PerformanceBySport() []sports.PerformanceBreakdown {
	return e.ledger.PerformanceBy(ledger.BySport)
}

// PerformanceByType summarizes tournament picks apart from the rest.
// Predictions below the threshold are never ledgered, so they have no group.
func (e *Engine) PerformanceByType() []sports.PerformanceBreakdown {
	return e.ledger.PerformanceBy(ledger.ByPredictionType)
}

// Reset clears the pick ledger, including persisted picks. The classifier
// keeps its parameters.
func (e *Engine) Reset() error {
	if err := e.ledger.Reset(); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.PickPerformanceSet(0, 0)
	}
	return nil
}
