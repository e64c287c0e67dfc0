package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"match-predictor/internal/sports"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const cachePrefix = "match-predictor:h2h"

// Provider is the lookup contract shared by every history source.
type Provider interface {
	FetchHistoricalMatchups(ctx context.Context, m sports.Match) ([]sports.HistoricalGame, error)
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  30 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// CachedProvider is a read-through Redis cache in front of another provider.
// Cache failures are logged and never surface to the caller.
type CachedProvider struct {
	inner  Provider
	client *redis.Client
	ttl    time.Duration
}

func NewCachedProvider(inner Provider, client *redis.Client, ttl time.Duration) *CachedProvider {
	return &CachedProvider{inner: inner, client: client, ttl: ttl}
}

func cacheKey(m sports.Match) string {
	a, b := m.HomeTeam.ID, m.AwayTeam.ID
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%s:%s|%s:%d", cachePrefix, a, b, m.StartTime.UnixNano())
}

func (c *CachedProvider) FetchHistoricalMatchups(ctx context.Context, m sports.Match) ([]sports.HistoricalGame, error) {
	key := cacheKey(m)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var games []sports.HistoricalGame
		if jsonErr := json.Unmarshal(data, &games); jsonErr == nil {
			return games, nil
		}
		log.Warn().Str("key", key).Msg("discarding malformed cached matchups")
	case !errors.Is(err, redis.Nil):
		log.Warn().Err(err).Str("key", key).Msg("matchup cache read failed")
	}

	games, err := c.inner.FetchHistoricalMatchups(ctx, m)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(games); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("matchup cache write failed")
		}
	}
	return games, nil
}

// NoopProvider never has history.
type NoopProvider struct{}

func (NoopProvider) FetchHistoricalMatchups(context.Context, sports.Match) ([]sports.HistoricalGame, error) {
	return nil, nil
}
