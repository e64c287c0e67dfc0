// Package bracket predicts the first round of a seeded tournament bracket
// through the prediction engine and tracks how the predicted winners fare
// once results come in.
package bracket

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"match-predictor/internal/common"
	"match-predictor/internal/metrics"
	"match-predictor/internal/sports"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Predictor is the part of the engine the bracket needs.
type Predictor interface {
	PredictMatch(ctx context.Context, m sports.Match) (sports.Prediction, error)
}

// Store persists bracket predictions. *storage.Store implements it.
type Store interface {
	SaveBracketPick(b sports.BracketPick) error
	LoadBracketPicks() ([]sports.BracketPick, error)
	ClearBracket() error
}

// MetricsInterface exposes the bracket series as generic metric handles.
type MetricsInterface interface {
	BracketPredictions() metrics.MetricsCounter
	BracketResolved() metrics.MetricsCounter
	BracketAccuracy() metrics.MetricsGauge
	BracketLatency() metrics.MetricsHistogram
}

// Summary counts bracket games and how many predicted winners were right.
type Summary struct {
	Games    int     `json:"games"`
	Resolved int     `json:"resolved"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

type Option func(*Tracker)

func WithMetrics(m MetricsInterface) Option {
	return func(t *Tracker) { t.metrics = m }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// Tracker holds the current bracket. Generating a new bracket replaces the
// previous one. A nil store keeps the bracket in memory only.
type Tracker struct {
	predictor Predictor
	store     Store
	metrics   MetricsInterface
	now       func() time.Time

	mu    sync.RWMutex
	picks []sports.BracketPick
}

func New(predictor Predictor, store Store, opts ...Option) *Tracker {
	t := &Tracker{
		predictor: predictor,
		store:     store,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Load restores the bracket from the store.
func (t *Tracker) Load() error {
	if t.store == nil {
		return nil
	}
	picks, err := t.store.LoadBracketPicks()
	if err != nil {
		return fmt.Errorf("load bracket: %w", err)
	}

	t.mu.Lock()
	t.picks = picks
	t.mu.Unlock()
	t.updateAccuracy()

	log.Info().Int("games", len(picks)).Msg("bracket restored")
	return nil
}

// FirstRoundMatchups pairs the best remaining seed with the worst, so a
// 16-team region yields 1-16, 2-15 and so on down to 8-9. The better seed
// is listed as the home team. Every team needs a seed and the count must be
// even.
func FirstRoundMatchups(region string, teams []sports.Team, start time.Time) ([]sports.Match, error) {
	if len(teams) == 0 || len(teams)%2 != 0 {
		return nil, fmt.Errorf("%w: region %s needs an even number of teams, got %d", common.ErrInvalidMatch, region, len(teams))
	}
	seeded := make([]sports.Team, len(teams))
	copy(seeded, teams)
	for _, team := range seeded {
		if team.Seed == nil {
			return nil, fmt.Errorf("%w: team %s in region %s has no seed", common.ErrInvalidMatch, team.ID, region)
		}
	}
	sort.SliceStable(seeded, func(i, j int) bool { return *seeded[i].Seed < *seeded[j].Seed })

	n := len(seeded)
	matches := make([]sports.Match, 0, n/2)
	for i := 0; i < n/2; i++ {
		home, away := seeded[i], seeded[n-1-i]
		home.Record = sports.SanitizeRecord(home.Record)
		away.Record = sports.SanitizeRecord(away.Record)
		round := "Round of 64"
		if *home.Seed > 8 {
			round = "Round of 32"
		}
		matches = append(matches, sports.Match{
			ID:        uuid.NewString(),
			Sport:     common.BracketSport,
			HomeTeam:  home,
			AwayTeam:  away,
			StartTime: start,
			Venue:     &sports.Venue{Name: common.BracketVenue},
			Weather: sports.WeatherData{
				Temperature: common.BracketTemperature,
				Humidity:    common.BracketHumidity,
			},
			Odds:       sports.BettingOdds{HomeOdds: common.BracketOdds, AwayOdds: common.BracketOdds},
			Tournament: &sports.Tournament{Round: round, Region: region},
		})
	}
	return matches, nil
}

// Generate predicts the first round of every region and replaces the
// current bracket. Regions are processed in name order. An invalid region or
// a failed prediction aborts generation and leaves the previous bracket in
// place. Store failures are logged, as the pick ledger does.
func (t *Tracker) Generate(ctx context.Context, regions map[string][]sports.Team, start time.Time) ([]sports.BracketPick, error) {
	if len(regions) == 0 {
		return nil, fmt.Errorf("%w: no regions given", common.ErrInvalidMatch)
	}
	began := time.Now()
	if start.IsZero() {
		start = t.now()
	}

	names := make([]string, 0, len(regions))
	for name := range regions {
		names = append(names, name)
	}
	sort.Strings(names)

	// every matchup is checked before the first prediction, which would
	// otherwise already be in the pick ledger
	type game struct {
		region string
		match  sports.Match
	}
	var games []game
	for _, region := range names {
		matches, err := FirstRoundMatchups(region, regions[region], start)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if err := sports.Validate(m); err != nil {
				return nil, err
			}
			games = append(games, game{region: region, match: m})
		}
	}

	picks := make([]sports.BracketPick, 0, len(games))
	for _, g := range games {
		m := g.match
		pred, err := t.predictor.PredictMatch(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("predict bracket game %s vs %s: %w", m.HomeTeam.ID, m.AwayTeam.ID, err)
		}

		winner := m.AwayTeam.ID
		if pred.HomeWinProbability > 0.5 {
			winner = m.HomeTeam.ID
		}
		picks = append(picks, sports.BracketPick{
			Round:              1,
			Region:             g.region,
			Match:              m,
			PredictedWinnerID:  winner,
			HomeWinProbability: pred.HomeWinProbability,
			ConfidenceScore:    pred.ConfidenceScore,
			CreatedAt:          t.now(),
		})
	}

	t.mu.Lock()
	t.picks = picks
	if err := t.persistAll(picks); err != nil {
		log.Error().Err(err).Msg("failed to persist bracket")
	}
	t.mu.Unlock()

	if t.metrics != nil {
		for range picks {
			t.metrics.BracketPredictions().Inc()
		}
		t.metrics.BracketLatency().Observe(time.Since(began).Seconds())
	}
	t.updateAccuracy()

	log.Info().
		Int("regions", len(names)).
		Int("games", len(picks)).
		Dur("elapsed", time.Since(began)).
		Msg("bracket generated")
	return clonePicks(picks), nil
}

func (t *Tracker) persistAll(picks []sports.BracketPick) error {
	if t.store == nil {
		return nil
	}
	if err := t.store.ClearBracket(); err != nil {
		return fmt.Errorf("clear bracket: %w", err)
	}
	for _, b := range picks {
		if err := t.store.SaveBracketPick(b); err != nil {
			return fmt.Errorf("save bracket game %s: %w", b.Match.ID, err)
		}
	}
	return nil
}

// Resolve marks the bracket game for matchID as decided. It reports false
// when the match is not part of the bracket or was already resolved.
func (t *Tracker) Resolve(matchID string, homeWon bool) (sports.BracketPick, bool) {
	t.mu.Lock()
	idx := -1
	for i := range t.picks {
		if t.picks[i].Match.ID == matchID {
			idx = i
			break
		}
	}
	if idx == -1 || t.picks[idx].Resolved() {
		t.mu.Unlock()
		return sports.BracketPick{}, false
	}

	b := &t.picks[idx]
	b.WinnerID, b.LoserID = b.Match.AwayTeam.ID, b.Match.HomeTeam.ID
	if homeWon {
		b.WinnerID, b.LoserID = b.Match.HomeTeam.ID, b.Match.AwayTeam.ID
	}
	correct := b.PredictedWinnerID == b.WinnerID
	at := t.now()
	b.Correct = &correct
	b.ResolvedAt = &at
	resolved := clonePick(*b)

	if t.store != nil {
		if err := t.store.SaveBracketPick(resolved); err != nil {
			log.Error().Err(err).Str("match_id", matchID).Msg("failed to persist bracket result")
		}
	}
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.BracketResolved().Inc()
	}
	t.updateAccuracy()

	log.Info().
		Str("match_id", matchID).
		Str("winner", resolved.WinnerID).
		Bool("correct", correct).
		Msg("bracket game resolved")
	return resolved, true
}

// Picks returns copies of the bracket games in generation order.
func (t *Tracker) Picks() []sports.BracketPick {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return clonePicks(t.picks)
}

// Summary reports accuracy over resolved games as a percentage.
func (t *Tracker) Summary() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Summary{Games: len(t.picks)}
	for _, b := range t.picks {
		if !b.Resolved() {
			continue
		}
		s.Resolved++
		if *b.Correct {
			s.Correct++
		}
	}
	if s.Resolved > 0 {
		s.Accuracy = float64(s.Correct) / float64(s.Resolved) * 100
	}
	return s
}

func (t *Tracker) updateAccuracy() {
	if t.metrics != nil {
		t.metrics.BracketAccuracy().Set(t.Summary().Accuracy)
	}
}

func clonePicks(picks []sports.BracketPick) []sports.BracketPick {
	out := make([]sports.BracketPick, len(picks))
	for i, b := range picks {
		out[i] = clonePick(b)
	}
	return out
}

func clonePick(b sports.BracketPick) sports.BracketPick {
	if b.Correct != nil {
		c := *b.Correct
		b.Correct = &c
	}
	if b.ResolvedAt != nil {
		at := *b.ResolvedAt
		b.ResolvedAt = &at
	}
	return b
}
