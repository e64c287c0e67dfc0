// Package ledger keeps the append-only record of high-confidence picks and
// computes win/loss performance over the resolved ones.
package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"match-predictor/internal/sports"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PickStore persists picks. SavePick is called for new and resolved picks
// alike and must overwrite by pick ID.
type PickStore interface {
	SavePick(p sports.HighConfidencePick) error
	LoadPicks() ([]sports.HighConfidencePick, error)
	ClearPicks() error
}

type Ledger struct {
	picks []sports.HighConfidencePick
	store PickStore
	mu    sync.RWMutex
	// writeMu is taken before mu is released so store writes land in the
	// same order as the in-memory mutations.
	writeMu sync.Mutex
}

// New creates an empty ledger. store may be nil for an in-memory ledger.
func New(store PickStore) *Ledger {
	return &Ledger{store: store}
}

// Load replaces the in-memory picks with the persisted ones, oldest first.
func (l *Ledger) Load() error {
	if l.store == nil {
		return nil
	}
	picks, err := l.store.LoadPicks()
	if err != nil {
		return fmt.Errorf("load picks: %w", err)
	}
	sort.SliceStable(picks, func(i, j int) bool {
		return picks[i].CreatedAt.Before(picks[j].CreatedAt)
	})

	l.mu.Lock()
	l.picks = picks
	l.mu.Unlock()

	log.Info().Int("picks", len(picks)).Msg("pick ledger restored")
	return nil
}

// Record appends an unresolved pick.
func (l *Ledger) Record(m sports.Match, p sports.Prediction, at time.Time) sports.HighConfidencePick {
	pick := sports.HighConfidencePick{
		ID:         uuid.New(),
		Match:      m,
		Prediction: p,
		CreatedAt:  at,
	}

	l.mu.Lock()
	l.picks = append(l.picks, pick)
	l.writeMu.Lock()
	l.mu.Unlock()

	l.persist(pick)
	l.writeMu.Unlock()
	return clonePick(pick)
}

// Resolve sets the outcome of the oldest unresolved pick for matchID. It
// reports false when there is none.
func (l *Ledger) Resolve(matchID string, outcome bool, at time.Time) (sports.HighConfidencePick, bool) {
	l.mu.Lock()
	idx := -1
	for i := range l.picks {
		if l.picks[i].Match.ID == matchID && !l.picks[i].Resolved() {
			idx = i
			break
		}
	}
	if idx == -1 {
		l.mu.Unlock()
		return sports.HighConfidencePick{}, false
	}

	o, ts := outcome, at
	l.picks[idx].Outcome = &o
	l.picks[idx].ResolvedAt = &ts
	pick := clonePick(l.picks[idx])
	l.writeMu.Lock()
	l.mu.Unlock()

	l.persist(pick)
	l.writeMu.Unlock()
	return pick, true
}

func (l *Ledger) persist(p sports.HighConfidencePick) {
	if l.store == nil {
		return
	}
	if err := l.store.SavePick(p); err != nil {
		log.Error().Err(err).Str("pick_id", p.ID.String()).Msg("failed to persist pick")
	}
}

// Picks returns copies of all picks ordered by confidence, highest first.
// Ties keep creation order.
func (l *Ledger) Picks() []sports.HighConfidencePick {
	l.mu.RLock()
	out := make([]sports.HighConfidencePick, len(l.picks))
	for i, p := range l.picks {
		out[i] = clonePick(p)
	}
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Prediction.ConfidenceScore > out[j].Prediction.ConfidenceScore
	})
	return out
}

// Len returns the number of recorded picks.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.picks)
}

// Performance summarizes resolved picks. A pick counts as won when the home
// team won, and the stake returns homeOdds - 1 on a win or -1 on a loss.
func (l *Ledger) Performance() sports.PickPerformance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return summarize(l.picks)
}

// Prediction types used by ByPredictionType.
const (
	TypeTournament     = "tournament"
	TypeHighConfidence = "high_confidence"
)

// BySport groups picks by Match.Sport; picks without one go under "unknown".
func BySport(p sports.HighConfidencePick) string {
	if p.Match.Sport == "" {
		return "unknown"
	}
	return p.Match.Sport
}

// ByPredictionType separates tournament picks from the rest.
func ByPredictionType(p sports.HighConfidencePick) string {
	if p.Match.IsTournament() {
		return TypeTournament
	}
	return TypeHighConfidence
}

// PerformanceBy summarizes picks per group, ordered by group name. Groups
// with only open picks are included with zero resolved totals.
func (l *Ledger) PerformanceBy(group func(sports.HighConfidencePick) string) []sports.PerformanceBreakdown {
	l.mu.RLock()
	grouped := make(map[string][]sports.HighConfidencePick)
	for _, p := range l.picks {
		key := group(p)
		grouped[key] = append(grouped[key], p)
	}
	l.mu.RUnlock()

	out := make([]sports.PerformanceBreakdown, 0, len(grouped))
	for key, picks := range grouped {
		out = append(out, sports.PerformanceBreakdown{
			Group:           key,
			Recorded:        len(picks),
			PickPerformance: summarize(picks),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Group < out[j].Group })
	return out
}

func summarize(picks []sports.HighConfidencePick) sports.PickPerformance {
	var perf sports.PickPerformance
	var confidenceSum float64
	for _, p := range picks {
		if !p.Resolved() {
			continue
		}
		perf.TotalPicks++
		confidenceSum += p.Prediction.ConfidenceScore
		if *p.Outcome {
			perf.Wins++
			perf.ProfitLoss += p.Match.Odds.HomeOdds - 1
		} else {
			perf.Losses++
			perf.ProfitLoss--
		}
	}

	if perf.TotalPicks > 0 {
		perf.WinPercentage = float64(perf.Wins) / float64(perf.TotalPicks) * 100
		perf.AverageConfidence = confidenceSum / float64(perf.TotalPicks)
	}
	return perf
}

// Reset drops all picks, including persisted ones.
func (l *Ledger) Reset() error {
	l.mu.Lock()
	l.picks = nil
	l.writeMu.Lock()
	l.mu.Unlock()
	defer l.writeMu.Unlock()

	if l.store != nil {
		if err := l.store.ClearPicks(); err != nil {
			return fmt.Errorf("clear picks: %w", err)
		}
	}
	return nil
}

func clonePick(p sports.HighConfidencePick) sports.HighConfidencePick {
	if p.Outcome != nil {
		o := *p.Outcome
		p.Outcome = &o
	}
	if p.ResolvedAt != nil {
		ts := *p.ResolvedAt
		p.ResolvedAt = &ts
	}
	if p.Prediction.Factors != nil {
		fs := make([]sports.PredictionFactor, len(p.Prediction.Factors))
		copy(fs, p.Prediction.Factors)
		p.Prediction.Factors = fs
	}
	return p
}
