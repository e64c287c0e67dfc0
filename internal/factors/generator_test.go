package factors

import (
	"testing"

	"match-predictor/internal/sports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func names(fs []sports.PredictionFactor) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Name
	}
	return out
}

func find(t *testing.T, fs []sports.PredictionFactor, name string) sports.PredictionFactor {
	t.Helper()
	for _, f := range fs {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("factor %q not found in %v", name, names(fs))
	return sports.PredictionFactor{}
}

func regularSeason() sports.Match {
	return sports.Match{
		ID:       "m1",
		HomeTeam: sports.Team{ID: "duke", Name: "Duke", Record: "10-5", RecentForm: []string{"W", "W", "L", "W", "L"}},
		AwayTeam: sports.Team{ID: "unc", Name: "UNC", Record: "0-0"},
		Odds:     sports.BettingOdds{HomeOdds: 2.0, AwayOdds: 1.9},
	}
}

func TestGenerate_MinimalMatch(t *testing.T) {
	fs := NewGenerator(1.25).Generate(regularSeason(), nil, 0.5)

	require.Equal(t, []string{HistoricalPerformance, MarketSentiment}, names(fs))
	// (1.1267 - 0) * 10
	assert.Equal(t, 11, fs[0].Impact)
	assert.Equal(t, "Based on past head-to-head matchups and recent form", fs[0].Description)
	assert.Equal(t, 0, fs[1].Impact)
	assert.Equal(t, "Derived from betting market movements and odds", fs[1].Description)
}

func TestGenerate_FullTournamentOrder(t *testing.T) {
	m := regularSeason()
	m.Tournament = &sports.Tournament{Round: "Elite Eight"}
	m.HomeTeam.Seed = ptr(1)
	m.AwayTeam.Seed = ptr(16)
	m.HomeTeam.TournamentHistory = &sports.TournamentHistory{Appearances: 10}
	m.AwayTeam.TournamentHistory = &sports.TournamentHistory{Appearances: 2}
	m.HomeTeam.StrengthOfSchedule = ptr(0.8)
	m.AwayTeam.StrengthOfSchedule = ptr(0.5)
	m.HomeTeam.Injuries = make([]sports.Injury, 3)
	m.AwayTeam.Injuries = make([]sports.Injury, 1)
	m.Weather.WindSpeed = 20
	games := []sports.HistoricalGame{
		{HomeTeamID: "duke", AwayTeamID: "unc", HomeScore: 80, AwayScore: 70},
		{HomeTeamID: "unc", AwayTeamID: "duke", HomeScore: 60, AwayScore: 65},
		{HomeTeamID: "duke", AwayTeamID: "unc", HomeScore: 60, AwayScore: 65},
	}

	fs := NewGenerator(1.25).Generate(m, games, 0.9)

	require.Equal(t, []string{
		HistoricalMatchups, SeedAdvantage, TournamentExperience, ScheduleStrength,
		HighWindImpact, HomeTeamInjuries, AwayTeamInjuries, HistoricalPerformance, MarketSentiment,
	}, names(fs))

	// (2/3 - 0.5) * 20 * 1.25 = 4.17
	assert.Equal(t, 4, fs[0].Impact)
	assert.Equal(t, "Duke has won 2 of 3 previous matchups", fs[0].Description)

	// 15 * 1.5 = 22.5
	assert.Equal(t, 23, fs[1].Impact)
	assert.Equal(t, "Duke is seeded 15 spots higher", fs[1].Description)

	assert.Equal(t, 4, fs[2].Impact)
	assert.Equal(t, "Duke has 8 more tournament appearances", fs[2].Description)

	assert.Equal(t, 3, fs[3].Impact)
	assert.Equal(t, "Duke played a stronger schedule", fs[3].Description)

	assert.Equal(t, -5, fs[4].Impact)
	assert.Equal(t, -6, fs[5].Impact)
	assert.Equal(t, "3 key players unavailable for Duke", fs[5].Description)
	assert.Equal(t, -2, fs[6].Impact)

	// 1.1267 * 10 * 1.25
	assert.Equal(t, 14, fs[7].Impact)
}

func TestGenerate_SeedDefaults(t *testing.T) {
	m := regularSeason()
	m.Tournament = &sports.Tournament{Round: "First Round"}
	m.AwayTeam.Seed = ptr(3)

	f := find(t, NewGenerator(1.25).Generate(m, nil, 0.5), SeedAdvantage)

	// unseeded home counts as 8: (3 - 8) * 1.5 = -7.5 rounds up to -7
	assert.Equal(t, -7, f.Impact)
	assert.Equal(t, "Duke is seeded 5 spots lower", f.Description)
}

func TestGenerate_TournamentExperience(t *testing.T) {
	testCases := []struct {
		name       string
		home, away int
		present    bool
		impact     int
		desc       string
	}{
		{"small gap omitted", 4, 2, false, 0, ""},
		{"away leads", 1, 6, true, -2, "Duke has 5 more tournament appearances"},
		{"home leads", 9, 0, true, 5, "Duke has 9 more tournament appearances"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := regularSeason()
			m.Tournament = &sports.Tournament{Round: "Sweet 16"}
			m.HomeTeam.TournamentHistory = &sports.TournamentHistory{Appearances: tc.home}
			m.AwayTeam.TournamentHistory = &sports.TournamentHistory{Appearances: tc.away}

			fs := NewGenerator(1.25).Generate(m, nil, 0.5)
			if !tc.present {
				assert.NotContains(t, names(fs), TournamentExperience)
				return
			}
			f := find(t, fs, TournamentExperience)
			assert.Equal(t, tc.impact, f.Impact)
			assert.Equal(t, tc.desc, f.Description)
		})
	}
}

func TestGenerate_ScheduleStrengthMissingCountsAsZero(t *testing.T) {
	testCases := []struct {
		name       string
		home, away *float64
		impact     int
		desc       string
	}{
		{"away missing", ptr(0.8), nil, 8, "Duke played a stronger schedule"},
		{"home missing", nil, ptr(0.6), -6, "Duke played a weaker schedule"},
		{"both missing", nil, nil, 0, "Duke played a weaker schedule"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := regularSeason()
			m.Tournament = &sports.Tournament{Round: "Round of 64"}
			m.HomeTeam.StrengthOfSchedule = tc.home
			m.AwayTeam.StrengthOfSchedule = tc.away

			f := find(t, NewGenerator(1.25).Generate(m, nil, 0.5), ScheduleStrength)
			assert.Equal(t, tc.impact, f.Impact)
			assert.Equal(t, tc.desc, f.Description)
		})
	}
}

func TestGenerate_NoTournamentFactorsOutsideTournament(t *testing.T) {
	m := regularSeason()
	m.HomeTeam.Seed = ptr(1)
	m.AwayTeam.Seed = ptr(16)
	m.Tournament = &sports.Tournament{}

	fs := NewGenerator(1.25).Generate(m, nil, 0.5)
	assert.NotContains(t, names(fs), SeedAdvantage)
	assert.NotContains(t, names(fs), ScheduleStrength)
}

func TestGenerate_WindThreshold(t *testing.T) {
	m := regularSeason()
	m.Weather.WindSpeed = 15
	assert.NotContains(t, names(NewGenerator(1).Generate(m, nil, 0.5)), HighWindImpact)

	m.Weather.WindSpeed = 15.1
	assert.Contains(t, names(NewGenerator(1).Generate(m, nil, 0.5)), HighWindImpact)
}

func TestGenerate_MarketSentiment(t *testing.T) {
	testCases := []struct {
		odds   float64
		impact int
	}{
		{2.0, 0},
		{1.25, 30},
		{4.0, -25},
		{0, 0},
	}

	for _, tc := range testCases {
		m := regularSeason()
		m.Odds.HomeOdds = tc.odds
		f := find(t, NewGenerator(1).Generate(m, nil, 0.5), MarketSentiment)
		assert.Equal(t, tc.impact, f.Impact, "odds %v", tc.odds)
	}
}

func TestGenerate_IndependentOfProbability(t *testing.T) {
	m := regularSeason()
	m.Tournament = &sports.Tournament{Round: "Final"}
	g := NewGenerator(1.25)

	assert.Equal(t, g.Generate(m, nil, 0.01), g.Generate(m, nil, 0.99))
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, 3, roundHalfUp(2.5))
	assert.Equal(t, -2, roundHalfUp(-2.5))
	assert.Equal(t, -3, roundHalfUp(-2.6))
	assert.Equal(t, 0, roundHalfUp(0.49))
}

func TestNewGenerator_DefaultWeight(t *testing.T) {
	assert.Equal(t, 1.25, NewGenerator(0).TournamentWeight)
}
