package features

import "match-predictor/internal/sports"

// Neutral values for optional inputs. Every component that reads an
// optional team or match field goes through these helpers.
const (
	NeutralSeedStrength = 0.5
	NeutralSOS          = 0.5
	NeutralWinRate      = 0.5
	UnseededRank        = 8
)

// SeedOrDefault returns the team seed or UnseededRank.
func SeedOrDefault(t sports.Team) int {
	if t.Seed == nil {
		return UnseededRank
	}
	return *t.Seed
}

// SOSOrDefault returns the strength of schedule or NeutralSOS.
func SOSOrDefault(t sports.Team) float64 {
	if t.StrengthOfSchedule == nil {
		return NeutralSOS
	}
	return *t.StrengthOfSchedule
}

// Appearances returns the tournament appearance count, zero when unknown.
func Appearances(t sports.Team) int {
	if t.TournamentHistory == nil {
		return 0
	}
	return t.TournamentHistory.Appearances
}

// LineOrDefault returns the point spread, zero when absent.
func LineOrDefault(o sports.BettingOdds) float64 {
	if o.Line == nil {
		return 0
	}
	return *o.Line
}
