//go:build ignore

// Generates a synthetic season of completed games for backtesting. Teams
// get a hidden strength; results, odds and records follow from it.
//
//	go run scripts/generate_sample_data.go -output data/games.json -store data
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"time"

	"match-predictor/internal/backtest"
	"match-predictor/internal/sports"
	"match-predictor/internal/storage"

	"github.com/rs/zerolog/log"
)

const homeAdvantage = 3.0

type team struct {
	id       string
	strength float64
	wins     int
	losses   int
	form     []string
}

func (t *team) snapshot() sports.Team {
	form := make([]string, len(t.form))
	copy(form, t.form)
	return sports.Team{
		ID:         t.id,
		Name:       "Team " + t.id,
		Record:     fmt.Sprintf("%d-%d", t.wins, t.losses),
		RecentForm: form,
	}
}

func (t *team) result(won bool) {
	mark := "L"
	if won {
		t.wins++
		mark = "W"
	} else {
		t.losses++
	}
	t.form = append([]string{mark}, t.form...)
	if len(t.form) > 5 {
		t.form = t.form[:5]
	}
}

func main() {
	var (
		output     = flag.String("output", "data/games.json", "JSON file to write")
		storePath  = flag.String("store", "", "Also archive games into the BoltDB store under this directory")
		teamCount  = flag.Int("teams", 32, "Number of teams")
		games      = flag.Int("games", 2000, "Number of regular-season games")
		tournament = flag.Bool("tournament", true, "Finish with a 16-team seeded tournament")
		seed       = flag.Int64("seed", 42, "Random seed")
	)
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	teams := make([]*team, *teamCount)
	for i := range teams {
		teams[i] = &team{id: fmt.Sprintf("T%02d", i+1), strength: rng.NormFloat64() * 8}
	}

	start := time.Date(2023, 11, 6, 19, 0, 0, 0, time.UTC)
	records := make([]backtest.GameRecord, 0, *games+15)
	for i := 0; i < *games; i++ {
		home := teams[rng.Intn(len(teams))]
		away := teams[rng.Intn(len(teams))]
		for away == home {
			away = teams[rng.Intn(len(teams))]
		}
		at := start.Add(time.Duration(i) * 2 * time.Hour)
		records = append(records, play(rng, fmt.Sprintf("g%05d", i), home, away, at, nil))
	}

	if *tournament && len(teams) >= 16 {
		records = append(records, playTournament(rng, teams, start.Add(time.Duration(*games+24)*2*time.Hour))...)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("marshal games")
	}
	if err := os.WriteFile(*output, data, 0o644); err != nil {
		log.Fatal().Err(err).Str("file", *output).Msg("write games")
	}

	if *storePath != "" {
		store, err := storage.New(*storePath)
		if err != nil {
			log.Fatal().Err(err).Msg("open store")
		}
		defer store.Close()
		for _, r := range records {
			if err := store.StoreGame(r.Historical()); err != nil {
				log.Fatal().Err(err).Str("match_id", r.Match.ID).Msg("store game")
			}
		}
	}

	fmt.Printf("Generated %d games for %d teams\n", len(records), len(teams))
	fmt.Printf("  Output: %s\n", *output)
	if *storePath != "" {
		fmt.Printf("  Archived into: %s\n", *storePath)
	}
}

func play(rng *rand.Rand, id string, home, away *team, at time.Time, tour *sports.Tournament) backtest.GameRecord {
	expected := home.strength - away.strength + homeAdvantage
	pHome := 1 / (1 + math.Exp(-expected/7))

	margin := expected + rng.NormFloat64()*10
	total := 140 + rng.NormFloat64()*12
	homeScore := int(math.Round((total + margin) / 2))
	awayScore := int(math.Round((total - margin) / 2))
	if homeScore == awayScore {
		// overtime
		if rng.Float64() < pHome {
			homeScore++
		} else {
			awayScore++
		}
	}

	m := sports.Match{
		ID:        id,
		Sport:     "basketball",
		HomeTeam:  home.snapshot(),
		AwayTeam:  away.snapshot(),
		StartTime: at,
		Odds: sports.BettingOdds{
			HomeOdds: math.Round(0.95/pHome*100) / 100,
			AwayOdds: math.Round(0.95/(1-pHome)*100) / 100,
		},
		Tournament: tour,
	}

	home.result(homeScore > awayScore)
	away.result(awayScore > homeScore)
	return backtest.GameRecord{Match: m, HomeScore: homeScore, AwayScore: awayScore}
}

// playTournament seeds the 16 strongest records 1-16 and plays a single
// elimination bracket with the higher seed at home.
func playTournament(rng *rand.Rand, teams []*team, at time.Time) []backtest.GameRecord {
	ranked := make([]*team, len(teams))
	copy(ranked, teams)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].wins-ranked[i].losses > ranked[j].wins-ranked[j].losses
	})

	type entrant struct {
		t    *team
		seed int
	}
	field := make([]entrant, 16)
	for i := range field {
		field[i] = entrant{ranked[i], i + 1}
	}
	// 1v16, 8v9, 5v12, 4v13, 6v11, 3v14, 7v10, 2v15
	order := []int{1, 16, 8, 9, 5, 12, 4, 13, 6, 11, 3, 14, 7, 10, 2, 15}
	bracket := make([]entrant, 16)
	for i, s := range order {
		bracket[i] = field[s-1]
	}

	rounds := []string{"First Round", "Sweet 16", "Elite Eight", "Final Four"}
	var out []backtest.GameRecord
	for r := 0; len(bracket) > 1; r++ {
		next := make([]entrant, 0, len(bracket)/2)
		for i := 0; i < len(bracket); i += 2 {
			hi, lo := bracket[i], bracket[i+1]
			if lo.seed < hi.seed {
				hi, lo = lo, hi
			}
			rec := play(rng, fmt.Sprintf("t%d-%d", r+1, i/2+1), hi.t, lo.t, at, &sports.Tournament{Round: rounds[r]})
			hs, ls := hi.seed, lo.seed
			rec.Match.HomeTeam.Seed = &hs
			rec.Match.AwayTeam.Seed = &ls
			out = append(out, rec)

			if rec.HomeWon() {
				next = append(next, hi)
			} else {
				next = append(next, lo)
			}
		}
		bracket = next
		at = at.Add(48 * time.Hour)
	}
	return out
}
