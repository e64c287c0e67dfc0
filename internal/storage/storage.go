// Package storage provides persistent data storage for the match predictor.
// It uses BoltDB to keep the pick ledger and a local archive of completed
// games that doubles as a head-to-head history source.
//
// Keys embed zero-padded nanosecond timestamps so cursor order is
// chronological within a bucket or key prefix.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"match-predictor/internal/common"
	"match-predictor/internal/sports"

	"go.etcd.io/bbolt"
)

const (
	picksBucket   = "picks"   // Bucket name for high-confidence picks
	gamesBucket   = "games"   // Bucket name for completed games
	bracketBucket = "bracket" // Bucket name for bracket predictions
)

// Store provides persistent storage using BoltDB.
type Store struct {
	db           *bbolt.DB
	historyLimit int
}

// New opens (or creates) the database under dataPath and ensures buckets exist.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "match-predictor.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(picksBucket)); err != nil {
			return fmt.Errorf("create picks bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(gamesBucket)); err != nil {
			return fmt.Errorf("create games bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(bracketBucket)); err != nil {
			return fmt.Errorf("create bracket bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, historyLimit: common.DefaultHistoryLimit}, nil
}

// SetHistoryLimit caps the number of games FetchHistoricalMatchups returns.
func (s *Store) SetHistoryLimit(n int) {
	if n > 0 {
		s.historyLimit = n
	}
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func tsKey(t time.Time) string {
	return fmt.Sprintf("%020d", t.UnixNano())
}

func pickKey(p sports.HighConfidencePick) []byte {
	return []byte(tsKey(p.CreatedAt) + "_" + p.ID.String())
}

// SavePick inserts or overwrites a pick. The key depends only on creation
// time and ID, so resolving a pick overwrites its original entry.
func (s *Store) SavePick(p sports.HighConfidencePick) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal pick: %w", err)
		}
		return tx.Bucket([]byte(picksBucket)).Put(pickKey(p), data)
	})
}

// LoadPicks returns all picks in creation order. Malformed records are skipped.
func (s *Store) LoadPicks() ([]sports.HighConfidencePick, error) {
	var picks []sports.HighConfidencePick
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(picksBucket)).ForEach(func(_, v []byte) error {
			var p sports.HighConfidencePick
			if err := json.Unmarshal(v, &p); err != nil {
				return nil
			}
			picks = append(picks, p)
			return nil
		})
	})
	return picks, err
}

// ClearPicks removes every stored pick.
func (s *Store) ClearPicks() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(picksBucket)); err != nil {
			return fmt.Errorf("delete picks bucket: %w", err)
		}
		_, err := tx.CreateBucket([]byte(picksBucket))
		return err
	})
}

// SaveBracketPick inserts or overwrites a bracket prediction keyed by its
// match ID.
func (s *Store) SaveBracketPick(b sports.BracketPick) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("marshal bracket pick: %w", err)
		}
		return tx.Bucket([]byte(bracketBucket)).Put([]byte(b.Match.ID), data)
	})
}

// LoadBracketPicks returns the stored bracket predictions ordered by round,
// then region, then creation time.
func (s *Store) LoadBracketPicks() ([]sports.BracketPick, error) {
	var picks []sports.BracketPick
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bracketBucket)).ForEach(func(_, v []byte) error {
			var b sports.BracketPick
			if err := json.Unmarshal(v, &b); err != nil {
				return nil
			}
			picks = append(picks, b)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(picks, func(i, j int) bool {
		if picks[i].Round != picks[j].Round {
			return picks[i].Round < picks[j].Round
		}
		if picks[i].Region != picks[j].Region {
			return picks[i].Region < picks[j].Region
		}
		return picks[i].CreatedAt.Before(picks[j].CreatedAt)
	})
	return picks, nil
}

// ClearBracket removes every stored bracket prediction.
func (s *Store) ClearBracket() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bracketBucket)); err != nil {
			return fmt.Errorf("delete bracket bucket: %w", err)
		}
		_, err := tx.CreateBucket([]byte(bracketBucket))
		return err
	})
}

// pairPrefix is order-independent so both home/away orientations of a
// matchup share one key range. IDs are length-prefixed so no pair's prefix
// can be a prefix of another pair's.
func pairPrefix(a, b string) []byte {
	if b < a {
		a, b = b, a
	}
	return []byte(fmt.Sprintf("%d:%s%d:%s|", len(a), a, len(b), b))
}

// StoreGame records a completed game.
func (s *Store) StoreGame(g sports.HistoricalGame) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("marshal game: %w", err)
		}
		key := append(pairPrefix(g.HomeTeamID, g.AwayTeamID), []byte(tsKey(g.StartTime)+"_"+g.ID)...)
		return tx.Bucket([]byte(gamesBucket)).Put(key, data)
	})
}

// FetchHistoricalMatchups returns prior games between the match teams,
// newest first, strictly before the match start.
func (s *Store) FetchHistoricalMatchups(ctx context.Context, m sports.Match) ([]sports.HistoricalGame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var games []sports.HistoricalGame
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(gamesBucket)).Cursor()
		prefix := pairPrefix(m.HomeTeam.ID, m.AwayTeam.ID)
		start := append(append([]byte{}, prefix...), []byte(tsKey(m.StartTime))...)

		// Seek lands on the first game at or after the start; step back from there.
		k, v := c.Seek(start)
		if k == nil {
			k, v = c.Last()
		} else {
			k, v = c.Prev()
		}

		for ; k != nil && bytes.HasPrefix(k, prefix) && len(games) < s.historyLimit; k, v = c.Prev() {
			var g sports.HistoricalGame
			if err := json.Unmarshal(v, &g); err != nil {
				continue
			}
			games = append(games, g)
		}
		return nil
	})
	return games, err
}

// GetGames returns stored games within [start, end], oldest first.
func (s *Store) GetGames(start, end time.Time) ([]sports.HistoricalGame, error) {
	var games []sports.HistoricalGame
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(gamesBucket)).ForEach(func(_, v []byte) error {
			var g sports.HistoricalGame
			if err := json.Unmarshal(v, &g); err != nil {
				return nil
			}
			if g.StartTime.Before(start) || g.StartTime.After(end) {
				return nil
			}
			games = append(games, g)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(games, func(i, j int) bool {
		return games[i].StartTime.Before(games[j].StartTime)
	})
	return games, nil
}
