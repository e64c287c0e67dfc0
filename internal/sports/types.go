// Package sports defines the match, team and prediction records shared by the
// feature extractor, the classifier pipeline and the pick ledger.
package sports

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Injury statuses
const (
	InjuryOut          = "OUT"
	InjuryQuestionable = "QUESTIONABLE"
	InjuryProbable     = "PROBABLE"
)

// Recent form results
const (
	FormWin  = "W"
	FormLoss = "L"
)

type Injury struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Status     string `json:"status" validate:"omitempty,oneof=OUT QUESTIONABLE PROBABLE"`
	Details    string `json:"details,omitempty"`
}

type PlayerStats struct {
	PlayerID      string  `json:"playerId"`
	Name          string  `json:"name,omitempty"`
	PointsPerGame float64 `json:"pointsPerGame"`
	StealsPerGame float64 `json:"stealsPerGame"`
	BlocksPerGame float64 `json:"blocksPerGame"`
	GamesPlayed   float64 `json:"gamesPlayed"`
}

type TournamentHistory struct {
	Appearances   int `json:"appearances"`
	FinalFours    int `json:"finalFours"`
	Championships int `json:"championships"`
}

type Venue struct {
	Name      string   `json:"name"`
	City      string   `json:"city,omitempty"`
	State     string   `json:"state,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// HasCoordinates reports whether both coordinates are present.
func (v *Venue) HasCoordinates() bool {
	return v != nil && v.Latitude != nil && v.Longitude != nil
}

type Team struct {
	ID                 string             `json:"id" validate:"required"`
	Name               string             `json:"name"`
	Record             string             `json:"record"`
	RecentForm         []string           `json:"recentForm,omitempty"`
	Injuries           []Injury           `json:"injuries,omitempty" validate:"dive"`
	Players            []PlayerStats      `json:"players,omitempty"`
	Seed               *int               `json:"seed,omitempty" validate:"omitempty,min=1,max=16"`
	StrengthOfSchedule *float64           `json:"strengthOfSchedule,omitempty"`
	TournamentHistory  *TournamentHistory `json:"tournamentHistory,omitempty"`
	Venue              *Venue             `json:"venue,omitempty"`
}

// WinsLosses parses a "W-L" or "W-L-T" record. Malformed parts count as zero.
func (t Team) WinsLosses() (wins, losses int) {
	parts := strings.Split(t.Record, "-")
	if len(parts) > 0 {
		wins, _ = strconv.Atoi(strings.TrimSpace(parts[0]))
	}
	if len(parts) > 1 {
		losses, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
	}
	return wins, losses
}

type WeatherData struct {
	Temperature   float64 `json:"temperature"`
	WindSpeed     float64 `json:"windSpeed"`
	Precipitation float64 `json:"precipitation"`
	Humidity      float64 `json:"humidity"`
}

type BettingOdds struct {
	HomeOdds float64  `json:"homeOdds" validate:"gte=0"`
	AwayOdds float64  `json:"awayOdds" validate:"gte=0"`
	Line     *float64 `json:"line,omitempty"`
}

type Tournament struct {
	Round  string `json:"round"`
	Region string `json:"region,omitempty"`
}

type Match struct {
	ID         string      `json:"id" validate:"required"`
	Sport      string      `json:"sport,omitempty"`
	HomeTeam   Team        `json:"homeTeam"`
	AwayTeam   Team        `json:"awayTeam"`
	StartTime  time.Time   `json:"startTime"`
	Venue      *Venue      `json:"venue,omitempty"`
	Weather    WeatherData `json:"weather"`
	Odds       BettingOdds `json:"odds"`
	Tournament *Tournament `json:"tournament,omitempty"`
}

// IsTournament reports whether the match carries a tournament round.
func (m Match) IsTournament() bool {
	return m.Tournament != nil && m.Tournament.Round != ""
}

// HistoricalGame is a completed prior meeting between two teams.
type HistoricalGame struct {
	ID         string    `json:"id"`
	HomeTeamID string    `json:"homeTeamId"`
	AwayTeamID string    `json:"awayTeamId"`
	HomeScore  int       `json:"homeScore"`
	AwayScore  int       `json:"awayScore"`
	StartTime  time.Time `json:"startTime"`
}

// WonBy reports whether teamID outscored its opponent, whichever side it played on.
func (g HistoricalGame) WonBy(teamID string) bool {
	switch teamID {
	case g.HomeTeamID:
		return g.HomeScore > g.AwayScore
	case g.AwayTeamID:
		return g.AwayScore > g.HomeScore
	}
	return false
}

type PredictionFactor struct {
	Name        string `json:"name"`
	Impact      int    `json:"impact"`
	Description string `json:"description"`
}

type Prediction struct {
	HomeWinProbability float64            `json:"homeWinProbability"`
	AwayWinProbability float64            `json:"awayWinProbability"`
	ConfidenceScore    float64            `json:"confidenceScore"`
	Factors            []PredictionFactor `json:"factors"`
}

// HighConfidencePick is a ledger entry for a prediction at or above the
// confidence threshold. Outcome stays nil until the match is resolved.
type HighConfidencePick struct {
	ID         uuid.UUID  `json:"id"`
	Match      Match      `json:"match"`
	Prediction Prediction `json:"prediction"`
	Outcome    *bool      `json:"outcome,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

// Resolved reports whether the pick has an outcome.
func (p HighConfidencePick) Resolved() bool {
	return p.Outcome != nil
}

type PickPerformance struct {
	TotalPicks        int     `json:"totalPicks"`
	Wins              int     `json:"wins"`
	Losses            int     `json:"losses"`
	WinPercentage     float64 `json:"winPercentage"`
	AverageConfidence float64 `json:"averageConfidence"`
	ProfitLoss        float64 `json:"profitLoss"`
}

// PerformanceBreakdown is PickPerformance for one group of picks, such as a
// sport. Recorded counts open and resolved picks.
type PerformanceBreakdown struct {
	Group    string `json:"group"`
	Recorded int    `json:"recorded"`
	PickPerformance
}

// BracketPick is a predicted tournament game. WinnerID, LoserID and Correct
// stay empty until the game is resolved.
type BracketPick struct {
	Round              int        `json:"round"`
	Region             string     `json:"region"`
	Match              Match      `json:"match"`
	PredictedWinnerID  string     `json:"predictedWinnerId"`
	HomeWinProbability float64    `json:"homeWinProbability"`
	ConfidenceScore    float64    `json:"confidenceScore"`
	WinnerID           string     `json:"winnerId,omitempty"`
	LoserID            string     `json:"loserId,omitempty"`
	Correct            *bool      `json:"correct,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	ResolvedAt         *time.Time `json:"resolvedAt,omitempty"`
}

// Resolved reports whether the bracket game has a result.
func (b BracketPick) Resolved() bool {
	return b.Correct != nil
}
