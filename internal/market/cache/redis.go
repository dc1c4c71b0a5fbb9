package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/pointrun/internal/market"
)

// Config holds redis connection settings
type Config struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
	Prefix   string        `yaml:"prefix"`
}

// Cached is a read-through bar cache in front of another Provider.
// Cache failures are logged and fall through to the wrapped provider.
type Cached struct {
	next   market.Provider
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewClient creates a redis client and verifies connectivity
func NewClient(config Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return rdb, nil
}

// New wraps next with a redis-backed cache
func New(next market.Provider, client *redis.Client, config Config) *Cached {
	prefix := config.Prefix
	if prefix == "" {
		prefix = "pointrun:bars:"
	}
	return &Cached{next: next, client: client, ttl: config.TTL, prefix: prefix}
}

// Key returns the cache key for a fetch
func (c *Cached) Key(symbol, interval string, start, end time.Time) string {
	return fmt.Sprintf("%s%s:%s:%d:%d", c.prefix, strings.ToUpper(symbol), interval, start.UnixMilli(), end.UnixMilli())
}

func (c *Cached) FetchBars(ctx context.Context, symbol, interval string, start, end time.Time) ([]market.Bar, error) {
	key := c.Key(symbol, interval, start, end)

	val, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var bars []market.Bar
		if jsonErr := json.Unmarshal(val, &bars); jsonErr == nil {
			log.Debug().Str("key", key).Int("bars", len(bars)).Msg("Bar cache hit")
			return bars, nil
		} else {
			log.Warn().Err(jsonErr).Str("key", key).Msg("Discarding undecodable cache entry")
		}
	case errors.Is(err, redis.Nil):
	default:
		log.Warn().Err(err).Str("key", key).Msg("Bar cache read failed")
	}

	bars, err := c.next.FetchBars(ctx, symbol, interval, start, end)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(bars)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Bar cache encode failed")
		return bars, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Bar cache write failed")
	}
	return bars, nil
}
