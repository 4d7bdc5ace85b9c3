package footprint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	biasKeyPrefix   = "bias:%s"
	defaultBiasTTL  = 24 * time.Hour
	redisOpTimeout  = 3 * time.Second
	redisDialWindow = 5 * time.Second
)

// BiasCache mirrors monthly bias snapshots into Redis so other processes
// can read them. Best effort: every operation degrades to a no-op or a
// miss when Redis is unreachable, and the in-memory evaluator stays
// authoritative.
type BiasCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewBiasCache connects to Redis and returns the mirror. A failed ping is
// logged, not fatal; the cache keeps retrying on use.
func NewBiasCache(addr, password string, db int, logger zerolog.Logger) *BiasCache {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  redisDialWindow,
		ReadTimeout:  redisOpTimeout,
		WriteTimeout: redisOpTimeout,
	})

	c := &BiasCache{
		client: client,
		ttl:    defaultBiasTTL,
		logger: logger.With().Str("component", "bias_cache").Logger(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisDialWindow)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		c.logger.Warn().Err(err).Str("addr", addr).Msg("Redis unreachable, bias mirror degraded")
	} else {
		c.logger.Info().Str("addr", addr).Msg("Redis connected")
	}
	return c
}

// Put writes the bias snapshot under its instrument key with the mirror TTL.
func (c *BiasCache) Put(bias MonthlyBias) {
	payload, err := json.Marshal(bias)
	if err != nil {
		c.logger.Warn().Err(err).Str("instrument", bias.Instrument).Msg("Failed to marshal bias")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	key := fmt.Sprintf(biasKeyPrefix, bias.Instrument)
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to mirror bias")
	}
}

// Get reads a mirrored bias snapshot. Misses and Redis errors both report
// ok=false.
func (c *BiasCache) Get(ctx context.Context, instrument string) (MonthlyBias, bool) {
	key := fmt.Sprintf(biasKeyPrefix, instrument)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("Failed to read mirrored bias")
		}
		return MonthlyBias{}, false
	}

	var bias MonthlyBias
	if err := json.Unmarshal(payload, &bias); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Corrupt mirrored bias")
		return MonthlyBias{}, false
	}
	return bias, true
}

// Close releases the Redis connection.
func (c *BiasCache) Close() error {
	return c.client.Close()
}
