package backtest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"match-predictor/internal/common"
	"match-predictor/internal/engine"
	"match-predictor/internal/features"
	"match-predictor/internal/ledger"
	"match-predictor/internal/sports"
	"match-predictor/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 3, 1, 19, 0, 0, 0, time.UTC)

func record(id, home, away string, at time.Time, hs, as int) GameRecord {
	return GameRecord{
		Match: sports.Match{
			ID:        id,
			HomeTeam:  sports.Team{ID: home, Name: home, Record: "0-0"},
			AwayTeam:  sports.Team{ID: away, Name: away, Record: "0-0"},
			StartTime: at,
			Odds:      sports.BettingOdds{HomeOdds: 1.5, AwayOdds: 2.5},
		},
		HomeScore: hs,
		AwayScore: as,
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDataLoader_JSONArraySorted(t *testing.T) {
	games := []GameRecord{
		record("late", "a", "b", day.AddDate(0, 0, 2), 70, 60),
		record("early", "c", "d", day, 50, 60),
		record("bad", "e", "e", day, 1, 0),
	}
	data, err := json.Marshal(games)
	require.NoError(t, err)

	dl := NewDataLoader()
	require.NoError(t, dl.LoadFromJSON(writeFile(t, "games.json", string(data))))

	require.Equal(t, 2, dl.GetDataCount(), "same-team match is dropped")
	assert.True(t, dl.StartTime.Equal(day))
	assert.True(t, dl.EndTime.Equal(day.AddDate(0, 0, 2)))
	assert.Equal(t, "early", dl.Next().Match.ID)
	assert.Equal(t, 50.0, dl.GetProgress())
	assert.Equal(t, "late", dl.Next().Match.ID)
	assert.False(t, dl.HasNext())
	assert.Equal(t, GameRecord{}, dl.Next())

	dl.Reset()
	assert.True(t, dl.HasNext())
}

func TestDataLoader_JSONStream(t *testing.T) {
	var content string
	for _, g := range []GameRecord{record("g1", "a", "b", day, 1, 0), record("g2", "b", "a", day.Add(time.Hour), 0, 1)} {
		b, err := json.Marshal(g)
		require.NoError(t, err)
		content += string(b) + "\n"
	}

	dl := NewDataLoader()
	require.NoError(t, dl.LoadFromJSON(writeFile(t, "games.ndjson", content)))
	assert.Equal(t, 2, dl.GetDataCount())

	assert.Error(t, NewDataLoader().LoadFromJSON(writeFile(t, "broken.json", `{"match":`)))
	assert.Error(t, NewDataLoader().LoadFromJSON(filepath.Join(t.TempDir(), "missing.json")))
}

func TestDataLoader_CSV(t *testing.T) {
	content := "id,start_time,home_id,home_name,home_record,away_id,away_name,home_odds,away_odds,home_score,away_score,home_seed,round,line\n" +
		"g2,2024-03-02T19:00:00Z,duke,Duke,20-5,unc,UNC,1.4,3.1,80,75,1,Sweet 16,-4.5\n" +
		"g1,2024-03-01,kan,Kansas,garbage,ku,K-State,,,60,61,,,\n" +
		"bad,not-a-date,x,X,,y,Y,,,1,0,,,\n" +
		"bad2,2024-03-03,x,X,,y,Y,,,one,0,,,\n"

	dl := NewDataLoader()
	require.NoError(t, dl.LoadFromCSV(writeFile(t, "games.csv", content)))
	require.Equal(t, 2, dl.GetDataCount())

	first := dl.Next()
	assert.Equal(t, "g1", first.Match.ID)
	assert.Equal(t, "0-0", first.Match.HomeTeam.Record)
	assert.Nil(t, first.Match.Tournament)
	assert.False(t, first.HomeWon())

	second := dl.Next()
	assert.Equal(t, "Duke", second.Match.HomeTeam.Name)
	require.NotNil(t, second.Match.HomeTeam.Seed)
	assert.Equal(t, 1, *second.Match.HomeTeam.Seed)
	assert.Equal(t, "Sweet 16", second.Match.Tournament.Round)
	require.NotNil(t, second.Match.Odds.Line)
	assert.Equal(t, -4.5, *second.Match.Odds.Line)
	assert.Equal(t, 1.4, second.Match.Odds.HomeOdds)
	assert.True(t, second.HomeWon())
}

func TestDataLoader_CSVMissingColumn(t *testing.T) {
	err := NewDataLoader().LoadFromCSV(writeFile(t, "games.csv", "id,start_time,home_id\n"))
	assert.ErrorContains(t, err, "away_id")
}

func TestDataLoader_BoltDB(t *testing.T) {
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.StoreGame(record("g2", "a", "b", day.Add(time.Hour), 1, 2).Historical()))
	require.NoError(t, store.StoreGame(record("g1", "c", "d", day, 3, 2).Historical()))

	dl := NewDataLoader()
	require.NoError(t, dl.LoadFromBoltDB(store, day.Add(-time.Hour), day.Add(2*time.Hour)))
	require.Equal(t, 2, dl.GetDataCount())

	g := dl.Next()
	assert.Equal(t, "g1", g.Match.ID)
	assert.Equal(t, "c", g.Match.HomeTeam.ID)
	assert.True(t, g.HomeWon())
}

func TestDataLoader_EmptyProgress(t *testing.T) {
	assert.Equal(t, 100.0, NewDataLoader().GetProgress())
}

type fixedModel struct {
	p       float64
	updates int
}

func (f *fixedModel) Predict([]float64) (float64, error) { return f.p, nil }

func (f *fixedModel) Update([]float64, float64) (float64, error) {
	f.updates++
	return 0.1, nil
}

type memRecorder struct {
	games []sports.HistoricalGame
	err   error
}

func (m *memRecorder) StoreGame(g sports.HistoricalGame) error {
	m.games = append(m.games, g)
	return m.err
}

func (m *memRecorder) FetchHistoricalMatchups(_ context.Context, match sports.Match) ([]sports.HistoricalGame, error) {
	var out []sports.HistoricalGame
	for _, g := range m.games {
		if g.StartTime.Before(match.StartTime) {
			out = append(out, g)
		}
	}
	return out, nil
}

func newPredictor(model *fixedModel, history features.HistoryProvider) *engine.Engine {
	return engine.New(model, features.NewExtractor(history, nil), nil, ledger.New(nil))
}

func TestEngine_Run(t *testing.T) {
	model := &fixedModel{p: 0.95}
	recorder := &memRecorder{}
	dl := NewDataLoader()
	dl.Add(
		record("g1", "a", "b", day, 70, 60),
		record("g2", "b", "a", day.AddDate(0, 0, 1), 80, 60),
		record("g3", "a", "b", day.AddDate(0, 0, 2), 65, 60),
		record("g4", "a", "b", day.AddDate(0, 0, 3), 60, 60),
	)

	bt := NewEngine(newPredictor(model, recorder), recorder, dl)
	require.NoError(t, bt.Run(context.Background()))

	res := bt.GetResults()
	assert.Equal(t, 4, res.TotalGames)
	assert.Equal(t, 4, model.updates)
	assert.Len(t, recorder.games, 4)
	assert.Equal(t, 3, res.Correct, "the tie counts as a home loss")
	assert.InDelta(t, 0.75, res.Accuracy, 1e-9)
	// three games at (0.05)^2 and one at (0.95)^2
	assert.InDelta(t, (3*0.0025+0.9025)/4, res.BrierScore, 1e-9)
	assert.Greater(t, res.LogLoss, 0.0)
	assert.Equal(t, day, res.StartTime)
	assert.Equal(t, day.AddDate(0, 0, 3), res.EndTime)

	assert.Equal(t, 4, res.Picks.TotalPicks)
	assert.Equal(t, 3, res.Picks.Wins)
	// 3 * 0.5 - 1
	assert.InDelta(t, 0.5, res.Picks.ProfitLoss, 1e-9)
	for _, p := range res.Predictions {
		assert.True(t, p.Pick)
	}
}

func TestEngine_RunNoPicksBelowThreshold(t *testing.T) {
	dl := NewDataLoader()
	dl.Add(record("g1", "a", "b", day, 70, 60))

	bt := NewEngine(newPredictor(&fixedModel{p: 0.6}, nil), nil, dl)
	require.NoError(t, bt.Run(context.Background()))

	res := bt.GetResults()
	assert.Equal(t, 1, res.TotalGames)
	assert.False(t, res.Predictions[0].Pick)
	assert.Equal(t, 0, res.Picks.TotalPicks)
}

func TestEngine_RecorderErrorIsLogged(t *testing.T) {
	dl := NewDataLoader()
	dl.Add(record("g1", "a", "b", day, 70, 60))
	recorder := &memRecorder{err: errors.New("disk full")}

	bt := NewEngine(newPredictor(&fixedModel{p: 0.6}, nil), recorder, dl)
	require.NoError(t, bt.Run(context.Background()))
	assert.Equal(t, 1, bt.GetResults().TotalGames)
}

func TestEngine_ModelNotReadyAborts(t *testing.T) {
	dl := NewDataLoader()
	dl.Add(record("g1", "a", "b", day, 70, 60))

	predictor := engine.New(nil, features.NewExtractor(nil, nil), nil, nil)
	err := NewEngine(predictor, nil, dl).Run(context.Background())
	assert.ErrorIs(t, err, common.ErrModelNotReady)
}

func TestEngine_CanceledContext(t *testing.T) {
	dl := NewDataLoader()
	dl.Add(record("g1", "a", "b", day, 70, 60))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewEngine(newPredictor(&fixedModel{p: 0.6}, nil), nil, dl).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_EmptyData(t *testing.T) {
	bt := NewEngine(newPredictor(&fixedModel{p: 0.6}, nil), nil, NewDataLoader())
	require.NoError(t, bt.Run(context.Background()))
	assert.Equal(t, 0, bt.GetResults().TotalGames)
	assert.Equal(t, 0.0, bt.GetResults().Accuracy)
}

func TestCrossEntropyClamps(t *testing.T) {
	assert.InDelta(t, 0.0, crossEntropy(1, 1), 1e-9)
	assert.Less(t, crossEntropy(0, 1), 40.0)
}

func TestReporter_GenerateReport(t *testing.T) {
	results := &Results{
		Predictions: []GamePrediction{
			{MatchID: "g1", HomeTeam: "A", AwayTeam: "B", StartTime: day, HomeWinProbability: 0.95, Confidence: 90, HomeWon: true, Correct: true, Pick: true},
			{MatchID: "g2", HomeTeam: "B", AwayTeam: "A", StartTime: day, HomeWinProbability: 0.91, Confidence: 82, HomeWon: false},
			{MatchID: "g3", HomeTeam: "C", AwayTeam: "D", StartTime: day, HomeWinProbability: 0.3, Confidence: 40, HomeWon: false, Correct: true},
			{MatchID: "g4", HomeTeam: "C", AwayTeam: "D", StartTime: day, HomeWinProbability: 1.0, Confidence: 100, HomeWon: true, Correct: true},
		},
		TotalGames: 4,
		Correct:    3,
		Accuracy:   0.75,
		Threshold:  85,
		Picks:      sports.PickPerformance{TotalPicks: 1, Wins: 1, WinPercentage: 100, ProfitLoss: 0.5},
		StartTime:  day,
		EndTime:    day,
	}
	out := filepath.Join(t.TempDir(), "report")
	reporter := NewReporter(results, out)
	require.NoError(t, reporter.GenerateReport())

	summary, err := os.ReadFile(filepath.Join(out, "backtest_summary.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Accuracy: 75.00% (3/4)")
	assert.Contains(t, string(summary), "Profit/Loss: 0.50 units")

	f, err := os.Open(filepath.Join(out, "predictions.csv"))
	require.NoError(t, err)
	rows, err := csv.NewReader(f).ReadAll()
	f.Close()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "g1", rows[1][0])
	assert.Equal(t, "true", rows[1][11])

	raw, err := os.ReadFile(filepath.Join(out, "backtest_results.json"))
	require.NoError(t, err)
	var report struct {
		Summary struct {
			TotalGames int `json:"total_games"`
		} `json:"summary"`
		Calibration []CalibrationBucket `json:"calibration"`
		Predictions []GamePrediction    `json:"predictions"`
	}
	require.NoError(t, json.Unmarshal(raw, &report))
	assert.Equal(t, 4, report.Summary.TotalGames)
	assert.Len(t, report.Predictions, 4)

	require.Len(t, report.Calibration, 2)
	assert.Equal(t, 1, report.Calibration[0].Games)
	assert.Equal(t, 3, report.Calibration[1].Games, "probability 1.0 lands in the top bucket")
	assert.InDelta(t, 2.0/3.0, report.Calibration[1].ObservedRate, 1e-9)

	_, err = os.Stat(filepath.Join(out, "calibration_report.csv"))
	assert.NoError(t, err)

	reporter.PrintSummary()
}
