package features

import (
	"match-predictor/internal/common"
	"match-predictor/internal/sports"
)

// Normalize clamps x to [0, 1].
func Normalize(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// formWeight is the recency weight of position i in a form window: 1.0, 0.8, ... 0.2.
func formWeight(i int) float64 {
	return float64(common.RecentFormWindow-i) / common.RecentFormWindow
}

func weightedForm(form []string) float64 {
	var s float64
	for i, r := range form {
		if i >= common.RecentFormWindow {
			break
		}
		if r == sports.FormWin {
			s += formWeight(i)
		}
	}
	return s
}

// TeamStrength blends season win rate with weighted recent form. The result
// is not clamped and may exceed 1.
func TeamStrength(t sports.Team) float64 {
	wins, losses := t.WinsLosses()
	total := wins + losses
	if total == 0 {
		return 0
	}
	winRate := float64(wins) / float64(total)
	return 0.7*winRate + 0.3*weightedForm(t.RecentForm)
}

// RecentFormScore is the weighted form over the last five results divided by five.
func RecentFormScore(t sports.Team) float64 {
	return weightedForm(t.RecentForm) / common.RecentFormWindow
}

type PlayerAggregates struct {
	Offense    float64
	Defense    float64
	Experience float64
}

// Players averages roster statistics. An empty roster yields zeros.
func Players(t sports.Team) PlayerAggregates {
	n := float64(len(t.Players))
	if n == 0 {
		return PlayerAggregates{}
	}

	var ppg, def, games float64
	for _, p := range t.Players {
		ppg += p.PointsPerGame
		def += p.StealsPerGame + p.BlocksPerGame
		games += p.GamesPlayed
	}

	return PlayerAggregates{
		Offense:    Normalize(ppg / n),
		Defense:    Normalize(def / n),
		Experience: Normalize(games / n / common.ExperienceGames),
	}
}
