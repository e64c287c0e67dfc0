package features

import (
	"context"
	"fmt"

	"match-predictor/internal/common"
	"match-predictor/internal/sports"

	"github.com/rs/zerolog/log"
)

// Vector is the fixed-layout classifier input. Names[i] labels Vector[i];
// reordering either is a breaking change for saved checkpoints.
type Vector [common.FeatureCount]float64

var Names = [common.FeatureCount]string{
	"home_strength",
	"away_strength",
	"home_offense",
	"home_defense",
	"away_offense",
	"away_defense",
	"home_experience",
	"away_experience",
	"home_seed_strength",
	"away_seed_strength",
	"home_tournament_exp",
	"away_tournament_exp",
	"home_sos",
	"away_sos",
	"h2h_win_rate",
	"h2h_recent_form",
	"temperature",
	"wind_speed",
	"precipitation",
	"humidity",
	"home_odds",
	"away_odds",
	"spread_line",
	"home_injuries",
	"away_injuries",
	"venue_advantage",
	"home_recent_form",
	"away_recent_form",
}

// Slice returns a copy of the vector as a slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, len(v))
	copy(out, v[:])
	return out
}

// Build assembles the feature vector for a match and its prior meetings.
// It is pure and never fails; missing inputs take neutral values.
func Build(m sports.Match, games []sports.HistoricalGame) Vector {
	inTournament := m.IsTournament()

	homePlayers := Players(m.HomeTeam)
	awayPlayers := Players(m.AwayTeam)
	homeTourney := Tournament(m.HomeTeam, inTournament)
	awayTourney := Tournament(m.AwayTeam, inTournament)
	h2h := HeadToHead(m.HomeTeam.ID, games)

	return Vector{
		Normalize(TeamStrength(m.HomeTeam)),
		Normalize(TeamStrength(m.AwayTeam)),
		homePlayers.Offense,
		homePlayers.Defense,
		awayPlayers.Offense,
		awayPlayers.Defense,
		homePlayers.Experience,
		awayPlayers.Experience,
		homeTourney.SeedStrength,
		awayTourney.SeedStrength,
		homeTourney.Experience,
		awayTourney.Experience,
		homeTourney.SOS,
		awayTourney.SOS,
		Normalize(h2h.WinRate),
		Normalize(h2h.RecentForm),
		Normalize(m.Weather.Temperature / common.TemperatureScale),
		Normalize(m.Weather.WindSpeed / common.WindScale),
		Normalize(m.Weather.Precipitation),
		Normalize(m.Weather.Humidity / common.HumidityScale),
		Normalize(m.Odds.HomeOdds),
		Normalize(m.Odds.AwayOdds),
		Normalize(LineOrDefault(m.Odds)),
		Normalize(float64(len(m.HomeTeam.Injuries)) / common.MaxInjuriesNorm),
		Normalize(float64(len(m.AwayTeam.Injuries)) / common.MaxInjuriesNorm),
		VenueAdvantage(m),
		Normalize(RecentFormScore(m.HomeTeam)),
		Normalize(RecentFormScore(m.AwayTeam)),
	}
}

// HistoryProvider supplies prior meetings between the two teams of a match,
// newest first and strictly before its start.
type HistoryProvider interface {
	FetchHistoricalMatchups(ctx context.Context, m sports.Match) ([]sports.HistoricalGame, error)
}

// MetricsInterface defines the metrics the extractor reports
type MetricsInterface interface {
	HistoryLookupsInc()
	HistoryFailuresInc()
}

type Extractor struct {
	history HistoryProvider
	metrics MetricsInterface
}

// NewExtractor accepts a nil provider, in which case no history is used.
func NewExtractor(history HistoryProvider, metrics MetricsInterface) *Extractor {
	return &Extractor{history: history, metrics: metrics}
}

// History fetches prior meetings. Lookup failures are logged and yield an
// empty result so callers fall back to neutral head-to-head values.
func (e *Extractor) History(ctx context.Context, m sports.Match) []sports.HistoricalGame {
	if e == nil || e.history == nil {
		return nil
	}
	if e.metrics != nil {
		e.metrics.HistoryLookupsInc()
	}

	games, err := e.history.FetchHistoricalMatchups(ctx, m)
	if err != nil {
		err = fmt.Errorf("%w: %v", common.ErrDataUnavailable, err)
		log.Warn().Err(err).
			Str("match_id", m.ID).
			Str("home", m.HomeTeam.ID).
			Str("away", m.AwayTeam.ID).
			Msg("history lookup failed, using neutral head-to-head")
		if e.metrics != nil {
			e.metrics.HistoryFailuresInc()
		}
		return nil
	}
	return games
}

// Extract looks up history and builds the vector.
func (e *Extractor) Extract(ctx context.Context, m sports.Match) Vector {
	return Build(m, e.History(ctx, m))
}
