package features

import (
	"match-predictor/internal/common"
	"match-predictor/internal/sports"
)

type TournamentAggregates struct {
	SeedStrength float64
	Experience   float64
	SOS          float64
}

// Tournament computes seed strength, tournament experience and strength of
// schedule. Seed strength is neutral outside a tournament round.
func Tournament(t sports.Team, inTournament bool) TournamentAggregates {
	seed := NeutralSeedStrength
	if inTournament && t.Seed != nil {
		seed = float64(17-*t.Seed) / 16
	}

	return TournamentAggregates{
		SeedStrength: Normalize(seed),
		Experience:   Normalize(float64(Appearances(t)) / common.AppearancesScale),
		SOS:          Normalize(SOSOrDefault(t)),
	}
}
