package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"match-predictor/internal/common"
	"match-predictor/internal/engine"
	"match-predictor/internal/sports"

	"github.com/rs/zerolog/log"
)

// GameRecorder archives completed games so later replays see head-to-head
// history.
type GameRecorder interface {
	StoreGame(g sports.HistoricalGame) error
}

// Engine replays completed games through the prediction engine in start
// order, training on each result after predicting it.
type Engine struct {
	predictor *engine.Engine
	recorder  GameRecorder
	data      *DataLoader
	results   *Results
}

// GamePrediction is the replay log entry for one game.
type GamePrediction struct {
	MatchID            string    `json:"matchId"`
	HomeTeam           string    `json:"homeTeam"`
	AwayTeam           string    `json:"awayTeam"`
	StartTime          time.Time `json:"startTime"`
	HomeWinProbability float64   `json:"homeWinProbability"`
	Confidence         float64   `json:"confidence"`
	HomeOdds           float64   `json:"homeOdds"`
	HomeScore          int       `json:"homeScore"`
	AwayScore          int       `json:"awayScore"`
	HomeWon            bool      `json:"homeWon"`
	Correct            bool      `json:"correct"`
	Pick               bool      `json:"pick"`
}

// Results holds backtesting results
type Results struct {
	Predictions []GamePrediction       `json:"predictions"`
	TotalGames  int                    `json:"totalGames"`
	Skipped     int                    `json:"skipped"`
	Correct     int                    `json:"correct"`
	Accuracy    float64                `json:"accuracy"`
	BrierScore  float64                `json:"brierScore"`
	LogLoss     float64                `json:"logLoss"`
	Picks       sports.PickPerformance `json:"picks"`
	Threshold   float64                `json:"threshold"`
	StartTime   time.Time              `json:"startTime"`
	EndTime     time.Time              `json:"endTime"`
}

// NewEngine creates a new backtesting engine. recorder may be nil, in which
// case no history accumulates during the replay.
func NewEngine(predictor *engine.Engine, recorder GameRecorder, data *DataLoader) *Engine {
	return &Engine{
		predictor: predictor,
		recorder:  recorder,
		data:      data,
		results: &Results{
			Predictions: make([]GamePrediction, 0, data.GetDataCount()),
			Threshold:   predictor.Threshold(),
		},
	}
}

// Run executes the backtest. A model that is not ready aborts the run; any
// other per-game failure skips that game.
func (e *Engine) Run(ctx context.Context) error {
	log.Info().
		Time("start", e.data.StartTime).
		Time("end", e.data.EndTime).
		Int("games", e.data.GetDataCount()).
		Msg("Starting backtest")

	for e.data.HasNext() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.replay(ctx, e.data.Next()); err != nil {
			return err
		}

		if n := len(e.results.Predictions); n > 0 && n%500 == 0 {
			log.Info().
				Float64("progress", e.data.GetProgress()).
				Int("games", n).
				Msg("Backtest progress")
		}
	}

	e.calculateMetrics()
	return nil
}

func (e *Engine) replay(ctx context.Context, g GameRecord) error {
	pred, err := e.predictor.PredictMatch(ctx, g.Match)
	if err != nil {
		if errors.Is(err, common.ErrModelNotReady) {
			return err
		}
		log.Warn().Err(err).Str("match_id", g.Match.ID).Msg("skipping game")
		e.results.Skipped++
		return nil
	}

	homeWon := g.HomeWon()
	if err := e.predictor.UpdateModel(ctx, g.Match, homeWon); err != nil {
		return fmt.Errorf("update model on %s: %w", g.Match.ID, err)
	}

	if e.recorder != nil {
		if err := e.recorder.StoreGame(g.Historical()); err != nil {
			log.Error().Err(err).Str("match_id", g.Match.ID).Msg("failed to archive game")
		}
	}

	e.results.Predictions = append(e.results.Predictions, GamePrediction{
		MatchID:            g.Match.ID,
		HomeTeam:           g.Match.HomeTeam.Name,
		AwayTeam:           g.Match.AwayTeam.Name,
		StartTime:          g.Match.StartTime,
		HomeWinProbability: pred.HomeWinProbability,
		Confidence:         pred.ConfidenceScore,
		HomeOdds:           g.Match.Odds.HomeOdds,
		HomeScore:          g.HomeScore,
		AwayScore:          g.AwayScore,
		HomeWon:            homeWon,
		Correct:            (pred.HomeWinProbability > 0.5) == homeWon,
		Pick:               pred.ConfidenceScore >= e.results.Threshold,
	})
	return nil
}

// calculateMetrics fills the aggregate fields from the prediction log.
func (e *Engine) calculateMetrics() {
	e.results.Picks = e.predictor.PerformanceMetrics()
	e.results.TotalGames = len(e.results.Predictions)
	if e.results.TotalGames == 0 {
		return
	}

	var brier, logLoss float64
	for _, p := range e.results.Predictions {
		if p.Correct {
			e.results.Correct++
		}
		y := 0.0
		if p.HomeWon {
			y = 1
		}
		brier += (p.HomeWinProbability - y) * (p.HomeWinProbability - y)
		logLoss += crossEntropy(p.HomeWinProbability, y)
	}

	n := float64(e.results.TotalGames)
	e.results.Accuracy = float64(e.results.Correct) / n
	e.results.BrierScore = brier / n
	e.results.LogLoss = logLoss / n
	e.results.StartTime = e.results.Predictions[0].StartTime
	e.results.EndTime = e.results.Predictions[len(e.results.Predictions)-1].StartTime
}

func crossEntropy(p, y float64) float64 {
	const eps = 1e-15
	p = math.Min(math.Max(p, eps), 1-eps)
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}

// GetResults returns the backtesting results
func (e *Engine) GetResults() *Results {
	return e.results
}
