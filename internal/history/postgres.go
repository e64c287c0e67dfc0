// Package history provides head-to-head history sources for the feature
// extractor. Every provider returns prior games between the two match teams,
// newest first, strictly before the match start.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"match-predictor/internal/common"
	"match-predictor/internal/sports"

	_ "github.com/lib/pq"
)

const matchupsQuery = `
SELECT id, home_team_id, away_team_id, home_score, away_score, start_time
FROM matches
WHERE ((home_team_id = $1 AND away_team_id = $2) OR (home_team_id = $2 AND away_team_id = $1))
  AND start_time < $3
ORDER BY start_time DESC
LIMIT $4`

const insertGame = `
INSERT INTO matches (id, home_team_id, away_team_id, home_score, away_score, start_time)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET home_score = EXCLUDED.home_score, away_score = EXCLUDED.away_score`

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS matches (
		id            VARCHAR(100) PRIMARY KEY,
		home_team_id  VARCHAR(100) NOT NULL,
		away_team_id  VARCHAR(100) NOT NULL,
		home_score    INTEGER NOT NULL,
		away_score    INTEGER NOT NULL,
		start_time    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_matches_pair_time ON matches (home_team_id, away_team_id, start_time DESC)`,
}

// PostgresProvider reads completed games from a Postgres "matches" table.
type PostgresProvider struct {
	db    *sql.DB
	limit int
}

// NewPostgresProvider opens and pings the database.
func NewPostgresProvider(ctx context.Context, databaseURL string, limit int) (*PostgresProvider, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if limit <= 0 {
		limit = common.DefaultHistoryLimit
	}
	return &PostgresProvider{db: db, limit: limit}, nil
}

// Migrate creates the matches table when missing.
func (p *PostgresProvider) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := p.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (p *PostgresProvider) FetchHistoricalMatchups(ctx context.Context, m sports.Match) ([]sports.HistoricalGame, error) {
	rows, err := p.db.QueryContext(ctx, matchupsQuery, m.HomeTeam.ID, m.AwayTeam.ID, m.StartTime, p.limit)
	if err != nil {
		return nil, fmt.Errorf("query matchups: %w", err)
	}
	defer rows.Close()

	var games []sports.HistoricalGame
	for rows.Next() {
		var g sports.HistoricalGame
		if err := rows.Scan(&g.ID, &g.HomeTeamID, &g.AwayTeamID, &g.HomeScore, &g.AwayScore, &g.StartTime); err != nil {
			return nil, fmt.Errorf("scan matchup: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// StoreGame upserts a completed game.
func (p *PostgresProvider) StoreGame(g sports.HistoricalGame) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := p.db.ExecContext(ctx, insertGame, g.ID, g.HomeTeamID, g.AwayTeamID, g.HomeScore, g.AwayScore, g.StartTime)
	if err != nil {
		return fmt.Errorf("insert game %s: %w", g.ID, err)
	}
	return nil
}

func (p *PostgresProvider) Close() error {
	return p.db.Close()
}
