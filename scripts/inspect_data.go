//go:build ignore

// Prints what a data directory holds: archived games and the pick ledger.
//
//	go run scripts/inspect_data.go -data ./data
package main

import (
	"flag"
	"fmt"
	"time"

	"match-predictor/internal/ledger"
	"match-predictor/internal/storage"

	"github.com/rs/zerolog/log"
)

func main() {
	var (
		dataPath = flag.String("data", "./data", "Data directory path")
		recent   = flag.Int("recent", 10, "Number of recent games to print")
	)
	flag.Parse()

	fmt.Printf("Inspecting data in: %s\n", *dataPath)

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.Close()

	games, err := store.GetGames(time.Time{}, time.Now().AddDate(10, 0, 0))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read games")
	}
	fmt.Printf("\nArchived games: %d\n", len(games))
	if len(games) > 0 {
		fmt.Printf("  First: %s\n", games[0].StartTime.Format(time.RFC3339))
		fmt.Printf("  Last:  %s\n", games[len(games)-1].StartTime.Format(time.RFC3339))
	}
	from := len(games) - *recent
	if from < 0 {
		from = 0
	}
	for _, g := range games[from:] {
		fmt.Printf("  %s  %-8s %3d - %-3d %s\n",
			g.StartTime.Format("2006-01-02"), g.HomeTeamID, g.HomeScore, g.AwayScore, g.AwayTeamID)
	}

	l := ledger.New(store)
	if err := l.Load(); err != nil {
		log.Fatal().Err(err).Msg("Failed to read picks")
	}
	perf := l.Performance()
	fmt.Printf("\nPicks: %d recorded, %d resolved\n", l.Len(), perf.TotalPicks)
	fmt.Printf("  Record: %d-%d (%.2f%%)\n", perf.Wins, perf.Losses, perf.WinPercentage)
	fmt.Printf("  Average confidence: %.2f\n", perf.AverageConfidence)
	fmt.Printf("  Profit/Loss: %.2f units\n", perf.ProfitLoss)

	for _, p := range l.Picks() {
		status := "open"
		if p.Resolved() {
			status = "lost"
			if *p.Outcome {
				status = "won"
			}
		}
		fmt.Printf("  %-12s %5.1f  %s vs %s  [%s]\n",
			p.Match.ID, p.Prediction.ConfidenceScore, p.Match.HomeTeam.ID, p.Match.AwayTeam.ID, status)
	}
}
