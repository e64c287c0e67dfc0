// Package factors explains a prediction with a short ordered list of named,
// signed factors. Factors are derived from the match data alone and do not
// depend on the classifier's parameters.
package factors

import (
	"fmt"
	"math"

	"match-predictor/internal/common"
	"match-predictor/internal/features"
	"match-predictor/internal/sports"
)

// Factor names
const (
	HistoricalMatchups    = "Historical Matchups"
	SeedAdvantage         = "Seed Advantage"
	TournamentExperience  = "Tournament Experience"
	ScheduleStrength      = "Schedule Strength"
	HighWindImpact        = "High Wind Impact"
	HomeTeamInjuries      = "Home Team Injuries"
	AwayTeamInjuries      = "Away Team Injuries"
	HistoricalPerformance = "Historical Performance"
	MarketSentiment       = "Market Sentiment"
)

const (
	highWindThreshold  = 15.0
	highWindImpact     = -5
	injuryImpact       = -2
	experienceMinDelta = 2
)

// Generator builds factor lists. TournamentWeight scales the matchup and
// performance factors in tournament rounds.
type Generator struct {
	TournamentWeight float64
}

func NewGenerator(tournamentWeight float64) *Generator {
	if tournamentWeight <= 0 {
		tournamentWeight = common.DefaultTournamentWeight
	}
	return &Generator{TournamentWeight: tournamentWeight}
}

// roundHalfUp rounds .5 toward positive infinity, so -2.5 becomes -2.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Generate returns factors in a fixed order. The probability is accepted for
// interface stability and not used.
func (g *Generator) Generate(m sports.Match, games []sports.HistoricalGame, _ float64) []sports.PredictionFactor {
	weight := 1.0
	inTournament := m.IsTournament()
	if inTournament {
		weight = g.TournamentWeight
	}

	home, away := m.HomeTeam, m.AwayTeam
	out := make([]sports.PredictionFactor, 0, 9)

	if len(games) > 0 {
		h2h := features.HeadToHead(home.ID, games)
		out = append(out, sports.PredictionFactor{
			Name:        HistoricalMatchups,
			Impact:      roundHalfUp((h2h.WinRate - 0.5) * 20 * weight),
			Description: fmt.Sprintf("%s has won %d of %d previous matchups", home.Name, h2h.Wins, h2h.Games),
		})
	}

	if inTournament {
		seedDiff := features.SeedOrDefault(away) - features.SeedOrDefault(home)
		direction := "lower"
		if seedDiff > 0 {
			direction = "higher"
		}
		out = append(out, sports.PredictionFactor{
			Name:        SeedAdvantage,
			Impact:      roundHalfUp(float64(seedDiff) * 1.5),
			Description: fmt.Sprintf("%s is seeded %d spots %s", home.Name, absInt(seedDiff), direction),
		})

		expDiff := features.Appearances(home) - features.Appearances(away)
		if absInt(expDiff) > experienceMinDelta {
			// the sign lives in Impact; the description always names the home team
			out = append(out, sports.PredictionFactor{
				Name:        TournamentExperience,
				Impact:      roundHalfUp(float64(expDiff) * 0.5),
				Description: fmt.Sprintf("%s has %d more tournament appearances", home.Name, absInt(expDiff)),
			})
		}

		sosDiff := scheduleStrength(home) - scheduleStrength(away)
		quality := "weaker"
		if sosDiff > 0 {
			quality = "stronger"
		}
		out = append(out, sports.PredictionFactor{
			Name:        ScheduleStrength,
			Impact:      roundHalfUp(sosDiff * 10),
			Description: fmt.Sprintf("%s played a %s schedule", home.Name, quality),
		})
	}

	if m.Weather.WindSpeed > highWindThreshold {
		out = append(out, sports.PredictionFactor{
			Name:        HighWindImpact,
			Impact:      highWindImpact,
			Description: "Strong winds may affect shooting performance",
		})
	}

	if n := len(home.Injuries); n > 0 {
		out = append(out, injuryFactor(HomeTeamInjuries, home, n))
	}
	if n := len(away.Injuries); n > 0 {
		out = append(out, injuryFactor(AwayTeamInjuries, away, n))
	}

	strengthDiff := features.TeamStrength(home) - features.TeamStrength(away)
	out = append(out, sports.PredictionFactor{
		Name:        HistoricalPerformance,
		Impact:      roundHalfUp(strengthDiff * 10 * weight),
		Description: "Based on past head-to-head matchups and recent form",
	})

	out = append(out, sports.PredictionFactor{
		Name:        MarketSentiment,
		Impact:      marketImpact(m.Odds.HomeOdds),
		Description: "Derived from betting market movements and odds",
	})

	return out
}

func injuryFactor(name string, team sports.Team, n int) sports.PredictionFactor {
	return sports.PredictionFactor{
		Name:        name,
		Impact:      injuryImpact * n,
		Description: fmt.Sprintf("%d key players unavailable for %s", n, team.Name),
	}
}

// marketImpact converts decimal home odds to an implied probability centred
// on zero. Non-positive odds carry no signal.
func marketImpact(homeOdds float64) int {
	if homeOdds <= 0 {
		return 0
	}
	return roundHalfUp((1/homeOdds)*100 - 50)
}

// scheduleStrength treats a missing strength of schedule as 0 here, unlike
// the feature vector which uses the neutral 0.5.
func scheduleStrength(t sports.Team) float64 {
	if t.StrengthOfSchedule == nil {
		return 0
	}
	return *t.StrengthOfSchedule
}
