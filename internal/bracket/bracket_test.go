package bracket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"match-predictor/internal/common"
	"match-predictor/internal/engine"
	"match-predictor/internal/metrics"
	"match-predictor/internal/sports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ MetricsInterface = (*metrics.MetricsWrapper)(nil)
	_ Predictor        = (*engine.Engine)(nil)
)

var start = time.Date(2024, 3, 21, 12, 0, 0, 0, time.UTC)

type fixedModel struct{ p float64 }

func (f fixedModel) Predict([]float64) (float64, error)         { return f.p, nil }
func (f fixedModel) Update([]float64, float64) (float64, error) { return 0.1, nil }

type stubPredictor struct {
	mu      sync.Mutex
	p       func(m sports.Match) float64
	err     error
	matches []sports.Match
}

func (s *stubPredictor) PredictMatch(_ context.Context, m sports.Match) (sports.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return sports.Prediction{}, s.err
	}
	s.matches = append(s.matches, m)
	p := s.p(m)
	return sports.Prediction{HomeWinProbability: p, AwayWinProbability: 1 - p, ConfidenceScore: engine.Confidence(p)}, nil
}

type memStore struct {
	mu    sync.Mutex
	picks map[string]sports.BracketPick
	order []string
}

func newMemStore() *memStore {
	return &memStore{picks: make(map[string]sports.BracketPick)}
}

func (m *memStore) SaveBracketPick(b sports.BracketPick) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.picks[b.Match.ID]; !ok {
		m.order = append(m.order, b.Match.ID)
	}
	m.picks[b.Match.ID] = b
	return nil
}

func (m *memStore) LoadBracketPicks() ([]sports.BracketPick, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sports.BracketPick, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.picks[id])
	}
	return out, nil
}

func (m *memStore) ClearBracket() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.picks = make(map[string]sports.BracketPick)
	m.order = nil
	return nil
}

func seed(n int) *int { return &n }

func region(prefix string, n int) []sports.Team {
	teams := make([]sports.Team, 0, n)
	// listed worst seed first so the pairing has to sort
	for s := n; s >= 1; s-- {
		teams = append(teams, sports.Team{
			ID:     fmt.Sprintf("%s-%d", prefix, s),
			Name:   fmt.Sprintf("%s %d", prefix, s),
			Record: "20-10",
			Seed:   seed(s),
		})
	}
	return teams
}

func TestFirstRoundMatchups_PairsBestWithWorst(t *testing.T) {
	matches, err := FirstRoundMatchups("East", region("east", 16), start)
	require.NoError(t, err)
	require.Len(t, matches, 8)

	ids := make(map[string]bool)
	for i, m := range matches {
		assert.Equal(t, i+1, *m.HomeTeam.Seed)
		assert.Equal(t, 16-i, *m.AwayTeam.Seed)
		assert.Equal(t, common.BracketSport, m.Sport)
		assert.Equal(t, start, m.StartTime)
		assert.Equal(t, common.BracketVenue, m.Venue.Name)
		assert.False(t, m.Venue.HasCoordinates())
		assert.Equal(t, common.BracketOdds, m.Odds.HomeOdds)
		assert.Equal(t, common.BracketOdds, m.Odds.AwayOdds)
		assert.Equal(t, common.BracketTemperature, m.Weather.Temperature)
		assert.Equal(t, common.BracketHumidity, m.Weather.Humidity)
		require.True(t, m.IsTournament())
		assert.Equal(t, "Round of 64", m.Tournament.Round)
		assert.Equal(t, "East", m.Tournament.Region)
		assert.NotEmpty(t, m.ID)
		ids[m.ID] = true
	}
	assert.Len(t, ids, 8, "match IDs are unique")
}

func TestFirstRoundMatchups_Invalid(t *testing.T) {
	_, err := FirstRoundMatchups("East", region("east", 16)[:15], start)
	assert.ErrorIs(t, err, common.ErrInvalidMatch)

	_, err = FirstRoundMatchups("East", nil, start)
	assert.ErrorIs(t, err, common.ErrInvalidMatch)

	teams := region("east", 4)
	teams[2].Seed = nil
	_, err = FirstRoundMatchups("East", teams, start)
	assert.ErrorIs(t, err, common.ErrInvalidMatch)
}

func TestFirstRoundMatchups_SanitizesRecords(t *testing.T) {
	teams := region("east", 2)
	teams[0].Record = "garbage"
	matches, err := FirstRoundMatchups("East", teams, start)
	require.NoError(t, err)
	assert.Equal(t, "0-0", matches[0].AwayTeam.Record)
	assert.Equal(t, "20-10", matches[0].HomeTeam.Record)
}

func TestGenerate_PredictedWinnerFollowsProbability(t *testing.T) {
	// the 8-9 game is a toss-up and goes to the away side
	pred := &stubPredictor{p: func(m sports.Match) float64 {
		switch *m.HomeTeam.Seed {
		case 8:
			return 0.5
		case 7:
			return 0.3
		}
		return 0.8
	}}
	tr := New(pred, nil, WithClock(func() time.Time { return start }))

	picks, err := tr.Generate(context.Background(), map[string][]sports.Team{
		"West": region("west", 16),
		"East": region("east", 16),
	}, start)
	require.NoError(t, err)
	require.Len(t, picks, 16)
	assert.Len(t, pred.matches, 16)

	assert.Equal(t, "East", picks[0].Region, "regions in name order")
	assert.Equal(t, "West", picks[8].Region)
	for _, b := range picks {
		assert.Equal(t, 1, b.Round)
		assert.Equal(t, start, b.CreatedAt)
		assert.False(t, b.Resolved())
		switch *b.Match.HomeTeam.Seed {
		case 7, 8:
			assert.Equal(t, b.Match.AwayTeam.ID, b.PredictedWinnerID)
		default:
			assert.Equal(t, b.Match.HomeTeam.ID, b.PredictedWinnerID)
		}
	}
	assert.InDelta(t, 60.0, picks[0].ConfidenceScore, 1e-9)
	assert.Equal(t, picks, tr.Picks())
}

func TestGenerate_FailureKeepsPreviousBracket(t *testing.T) {
	pred := &stubPredictor{p: func(sports.Match) float64 { return 0.9 }}
	tr := New(pred, nil)

	first, err := tr.Generate(context.Background(), map[string][]sports.Team{"East": region("east", 4)}, start)
	require.NoError(t, err)

	pred.err = common.ErrModelNotReady
	_, err = tr.Generate(context.Background(), map[string][]sports.Team{"West": region("west", 4)}, start)
	assert.ErrorIs(t, err, common.ErrModelNotReady)
	assert.Equal(t, first, tr.Picks())

	_, err = tr.Generate(context.Background(), nil, start)
	assert.ErrorIs(t, err, common.ErrInvalidMatch)

	pred.err = nil
	predicted := len(pred.matches)
	_, err = tr.Generate(context.Background(), map[string][]sports.Team{
		"East": region("east", 4),
		"West": region("west", 3),
	}, start)
	assert.ErrorIs(t, err, common.ErrInvalidMatch)
	assert.Len(t, pred.matches, predicted, "nothing is predicted when any region is invalid")

	teams := region("west", 2)
	teams[1].ID = teams[0].ID
	_, err = tr.Generate(context.Background(), map[string][]sports.Team{"West": teams}, start)
	assert.ErrorIs(t, err, common.ErrInvalidMatch, "a team cannot meet itself")
}

func TestResolve_MarksCorrectAndIncorrect(t *testing.T) {
	pred := &stubPredictor{p: func(sports.Match) float64 { return 0.9 }}
	tr := New(pred, nil, WithClock(func() time.Time { return start }))

	picks, err := tr.Generate(context.Background(), map[string][]sports.Team{"East": region("east", 4)}, start)
	require.NoError(t, err)
	require.Len(t, picks, 2)

	got, ok := tr.Resolve(picks[0].Match.ID, true)
	require.True(t, ok)
	require.NotNil(t, got.Correct)
	assert.True(t, *got.Correct)
	assert.Equal(t, "east-1", got.WinnerID)
	assert.Equal(t, "east-4", got.LoserID)
	assert.Equal(t, start, *got.ResolvedAt)

	got, ok = tr.Resolve(picks[1].Match.ID, false)
	require.True(t, ok)
	assert.False(t, *got.Correct)
	assert.Equal(t, "east-3", got.WinnerID)
	assert.Equal(t, "east-2", got.LoserID)

	_, ok = tr.Resolve(picks[1].Match.ID, true)
	assert.False(t, ok, "a bracket game resolves once")
	_, ok = tr.Resolve("unknown", true)
	assert.False(t, ok)

	assert.Equal(t, Summary{Games: 2, Resolved: 2, Correct: 1, Accuracy: 50}, tr.Summary())
}

func TestTracker_PersistsAndRestores(t *testing.T) {
	store := newMemStore()
	pred := &stubPredictor{p: func(sports.Match) float64 { return 0.2 }}
	tr := New(pred, store)

	_, err := tr.Generate(context.Background(), map[string][]sports.Team{"East": region("east", 4)}, start)
	require.NoError(t, err)
	picks, err := tr.Generate(context.Background(), map[string][]sports.Team{"South": region("south", 4)}, start)
	require.NoError(t, err)
	_, ok := tr.Resolve(picks[0].Match.ID, false)
	require.True(t, ok)

	restored := New(pred, store)
	require.NoError(t, restored.Load())
	got := restored.Picks()
	require.Len(t, got, 2, "a new bracket replaces the old one")
	assert.Equal(t, "South", got[0].Region)
	assert.True(t, got[0].Resolved())
	assert.True(t, *got[0].Correct)
	assert.Equal(t, 100.0, restored.Summary().Accuracy)

	require.NoError(t, New(pred, nil).Load())
}

type failingStore struct{ *memStore }

func (failingStore) LoadBracketPicks() ([]sports.BracketPick, error) {
	return nil, errors.New("disk gone")
}

func TestTracker_LoadError(t *testing.T) {
	tr := New(&stubPredictor{}, failingStore{newMemStore()})
	assert.Error(t, tr.Load())
}

func TestTracker_Metrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(registry)
	pred := &stubPredictor{p: func(sports.Match) float64 { return 0.9 }}
	tr := New(pred, nil, WithMetrics(metrics.NewWrapper(m)))

	picks, err := tr.Generate(context.Background(), map[string][]sports.Team{"East": region("east", 8)}, start)
	require.NoError(t, err)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.BracketPredictions))
	assert.Equal(t, uint64(1), latencySamples(t, registry))

	tr.Resolve(picks[0].Match.ID, true)
	tr.Resolve(picks[1].Match.ID, true)
	tr.Resolve(picks[2].Match.ID, true)
	tr.Resolve(picks[3].Match.ID, false)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.BracketResolved))
	assert.Equal(t, 75.0, testutil.ToFloat64(m.BracketAccuracy))
}

func TestGenerate_ThroughEngine(t *testing.T) {
	eng := engine.New(fixedModel{p: 0.97}, nil, nil, nil)
	tr := New(eng, nil)

	picks, err := tr.Generate(context.Background(), map[string][]sports.Team{"Midwest": region("mw", 16)}, start)
	require.NoError(t, err)
	require.Len(t, picks, 8)
	for _, b := range picks {
		assert.Equal(t, b.Match.HomeTeam.ID, b.PredictedWinnerID)
		assert.InDelta(t, 94.0, b.ConfidenceScore, 1e-9)
		assert.NotEmpty(t, b.Match.ID)
	}

	// every bracket game clears the default threshold and lands in the ledger
	// as a tournament pick
	byType := eng.PerformanceByType()
	require.Len(t, byType, 1)
	assert.Equal(t, "tournament", byType[0].Group)
	assert.Equal(t, 8, byType[0].Recorded)
}

func latencySamples(t *testing.T, registry *prometheus.Registry) uint64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "bracket_generation_seconds" {
			return mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	t.Fatal("bracket_generation_seconds not gathered")
	return 0
}
