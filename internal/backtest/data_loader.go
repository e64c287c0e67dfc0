package backtest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"match-predictor/internal/sports"
	"match-predictor/internal/storage"

	"github.com/rs/zerolog/log"
)

// GameRecord is a completed match: everything known before tip-off plus the
// final score.
type GameRecord struct {
	Match     sports.Match `json:"match"`
	HomeScore int          `json:"homeScore"`
	AwayScore int          `json:"awayScore"`
}

// HomeWon reports whether the home side won. Ties count as not won.
func (g GameRecord) HomeWon() bool {
	return g.HomeScore > g.AwayScore
}

// Historical converts the record into a head-to-head history entry.
func (g GameRecord) Historical() sports.HistoricalGame {
	return sports.HistoricalGame{
		ID:         g.Match.ID,
		HomeTeamID: g.Match.HomeTeam.ID,
		AwayTeamID: g.Match.AwayTeam.ID,
		HomeScore:  g.HomeScore,
		AwayScore:  g.AwayScore,
		StartTime:  g.Match.StartTime,
	}
}

// DataLoader handles loading and serving completed games in start order
type DataLoader struct {
	data      []GameRecord
	index     int
	StartTime time.Time
	EndTime   time.Time
}

func NewDataLoader() *DataLoader {
	return &DataLoader{data: make([]GameRecord, 0)}
}

// Add appends games and re-sorts.
func (dl *DataLoader) Add(games ...GameRecord) {
	dl.data = append(dl.data, games...)
	dl.Sort()
}

// Sort orders games by start time, keeping file order for equal times.
func (dl *DataLoader) Sort() {
	sort.SliceStable(dl.data, func(i, j int) bool {
		return dl.data[i].Match.StartTime.Before(dl.data[j].Match.StartTime)
	})
	if len(dl.data) > 0 {
		dl.StartTime = dl.data[0].Match.StartTime
		dl.EndTime = dl.data[len(dl.data)-1].Match.StartTime
	}
}

// LoadFromBoltDB loads archived games. Only team IDs and scores are stored,
// so the replayed matches carry no odds, rosters or tournament context.
func (dl *DataLoader) LoadFromBoltDB(store *storage.Store, startTime, endTime time.Time) error {
	log.Info().
		Time("start", startTime).
		Time("end", endTime).
		Msg("Loading games from BoltDB")

	games, err := store.GetGames(startTime, endTime)
	if err != nil {
		return fmt.Errorf("failed to load games: %w", err)
	}

	for _, g := range games {
		dl.data = append(dl.data, GameRecord{
			Match: sports.Match{
				ID:        g.ID,
				HomeTeam:  sports.Team{ID: g.HomeTeamID, Name: g.HomeTeamID},
				AwayTeam:  sports.Team{ID: g.AwayTeamID, Name: g.AwayTeamID},
				StartTime: g.StartTime,
			},
			HomeScore: g.HomeScore,
			AwayScore: g.AwayScore,
		})
	}
	dl.Sort()

	log.Info().Int("games", len(dl.data)).Msg("Games loaded successfully")
	return nil
}

// LoadFromJSON loads either a JSON array of game records or a stream of
// concatenated/newline-delimited records.
func (dl *DataLoader) LoadFromJSON(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to open JSON file: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var games []GameRecord
		if err := json.Unmarshal(trimmed, &games); err != nil {
			return fmt.Errorf("failed to parse JSON file: %w", err)
		}
		for _, g := range games {
			dl.addValid(g)
		}
	} else {
		decoder := json.NewDecoder(bytes.NewReader(trimmed))
		for decoder.More() {
			var g GameRecord
			if err := decoder.Decode(&g); err != nil {
				return fmt.Errorf("failed to parse JSON record %d: %w", len(dl.data)+1, err)
			}
			dl.addValid(g)
		}
	}
	dl.Sort()

	log.Info().
		Str("file", filePath).
		Int("games", len(dl.data)).
		Msg("JSON data loaded successfully")
	return nil
}

func (dl *DataLoader) addValid(g GameRecord) {
	if err := sports.Validate(g.Match); err != nil {
		log.Debug().Err(err).Str("match_id", g.Match.ID).Msg("skipping invalid game")
		return
	}
	dl.data = append(dl.data, g)
}

// LoadFromCSV loads one game per row. Required columns: id, start_time,
// home_id, away_id, home_score, away_score. Optional: home_name, away_name,
// home_record, away_record, home_odds, away_odds, line, home_seed,
// away_seed, round, temperature, wind_speed.
func (dl *DataLoader) LoadFromCSV(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	indices := make(map[string]int)
	for i, col := range header {
		indices[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range []string{"id", "start_time", "home_id", "away_id", "home_score", "away_score"} {
		if _, ok := indices[col]; !ok {
			return fmt.Errorf("CSV header is missing column %q", col)
		}
	}

	skipped := 0
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}

		g, err := parseCSVRecord(record, indices)
		if err != nil {
			log.Debug().Err(err).Int("line", line).Msg("skipping CSV row")
			skipped++
			continue
		}
		dl.data = append(dl.data, g)
	}
	dl.Sort()

	log.Info().
		Str("file", filePath).
		Int("games", len(dl.data)).
		Int("skipped", skipped).
		Msg("CSV data loaded successfully")
	return nil
}

func parseCSVRecord(record []string, indices map[string]int) (GameRecord, error) {
	field := func(name string) string {
		if idx, ok := indices[name]; ok && idx < len(record) {
			return strings.TrimSpace(record[idx])
		}
		return ""
	}
	float := func(name string) float64 {
		f, _ := strconv.ParseFloat(field(name), 64)
		return f
	}

	start, err := parseTime(field("start_time"))
	if err != nil {
		return GameRecord{}, err
	}
	homeScore, err := strconv.Atoi(field("home_score"))
	if err != nil {
		return GameRecord{}, fmt.Errorf("invalid home_score: %w", err)
	}
	awayScore, err := strconv.Atoi(field("away_score"))
	if err != nil {
		return GameRecord{}, fmt.Errorf("invalid away_score: %w", err)
	}

	home := sports.Team{ID: field("home_id"), Name: field("home_name"), Record: sports.SanitizeRecord(field("home_record"))}
	away := sports.Team{ID: field("away_id"), Name: field("away_name"), Record: sports.SanitizeRecord(field("away_record"))}
	if home.Name == "" {
		home.Name = home.ID
	}
	if away.Name == "" {
		away.Name = away.ID
	}
	if seed, err := strconv.Atoi(field("home_seed")); err == nil {
		home.Seed = &seed
	}
	if seed, err := strconv.Atoi(field("away_seed")); err == nil {
		away.Seed = &seed
	}

	m := sports.Match{
		ID:        field("id"),
		HomeTeam:  home,
		AwayTeam:  away,
		StartTime: start,
		Odds:      sports.BettingOdds{HomeOdds: float("home_odds"), AwayOdds: float("away_odds")},
		Weather:   sports.WeatherData{Temperature: float("temperature"), WindSpeed: float("wind_speed")},
	}
	if v := field("line"); v != "" {
		if line, err := strconv.ParseFloat(v, 64); err == nil {
			m.Odds.Line = &line
		}
	}
	if round := field("round"); round != "" {
		m.Tournament = &sports.Tournament{Round: round}
	}

	if err := sports.Validate(m); err != nil {
		return GameRecord{}, err
	}
	return GameRecord{Match: m, HomeScore: homeScore, AwayScore: awayScore}, nil
}

func parseTime(v string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid start_time %q", v)
}

// Reset resets the data loader to the beginning
func (dl *DataLoader) Reset() {
	dl.index = 0
}

// HasNext returns true if there's more data to process
func (dl *DataLoader) HasNext() bool {
	return dl.index < len(dl.data)
}

// Next returns the next game
func (dl *DataLoader) Next() GameRecord {
	if dl.index >= len(dl.data) {
		return GameRecord{}
	}

	g := dl.data[dl.index]
	dl.index++
	return g
}

// GetDataCount returns the total number of games
func (dl *DataLoader) GetDataCount() int {
	return len(dl.data)
}

// GetProgress returns the current progress as a percentage
func (dl *DataLoader) GetProgress() float64 {
	if len(dl.data) == 0 {
		return 100.0
	}
	return float64(dl.index) / float64(len(dl.data)) * 100.0
}
