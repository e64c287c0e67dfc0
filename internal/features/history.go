package features

import (
	"match-predictor/internal/common"
	"match-predictor/internal/sports"
)

type HeadToHeadStats struct {
	WinRate    float64
	RecentForm float64
	Wins       int
	Games      int
}

// HeadToHead scores prior meetings from the perspective of homeID. Games are
// expected newest first.
func HeadToHead(homeID string, games []sports.HistoricalGame) HeadToHeadStats {
	if len(games) == 0 {
		return HeadToHeadStats{WinRate: NeutralWinRate}
	}

	var wins int
	var recent float64
	for i, g := range games {
		won := g.WonBy(homeID)
		if won {
			wins++
		}
		if won && i < common.RecentFormWindow {
			recent += formWeight(i)
		}
	}

	return HeadToHeadStats{
		WinRate:    float64(wins) / float64(len(games)),
		RecentForm: recent / common.RecentFormWindow,
		Wins:       wins,
		Games:      len(games),
	}
}
