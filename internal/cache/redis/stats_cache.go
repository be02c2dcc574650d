package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/wagerpool/internal/domain"
)

const statsTTL = 30 * time.Second

// StatsCache implements domain.StatsCache using JSON-serialized aggregate
// statistics under a short TTL. Stats churn on every vote, so the TTL is
// deliberately short and writes invalidate eagerly.
//
// Key schema:
//
//	market:{id}:stats - string value containing JSON
type StatsCache struct {
	rdb *redis.Client
}

// NewStatsCache creates a StatsCache backed by the given Client.
func NewStatsCache(c *Client) *StatsCache {
	return &StatsCache{rdb: c.Underlying()}
}

func statsKey(marketID uint64) string {
	return "market:" + strconv.FormatUint(marketID, 10) + ":stats"
}

// Set stores a market's statistics with the cache TTL.
func (sc *StatsCache) Set(ctx context.Context, marketID uint64, stats domain.Stats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("redis: marshal stats for market %d: %w", marketID, err)
	}
	if err := sc.rdb.Set(ctx, statsKey(marketID), data, statsTTL).Err(); err != nil {
		return fmt.Errorf("redis: set stats for market %d: %w", marketID, err)
	}
	return nil
}

// Get retrieves a market's statistics. It returns domain.ErrNotFound on a
// cache miss.
func (sc *StatsCache) Get(ctx context.Context, marketID uint64) (domain.Stats, error) {
	data, err := sc.rdb.Get(ctx, statsKey(marketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Stats{}, domain.ErrNotFound
		}
		return domain.Stats{}, fmt.Errorf("redis: get stats for market %d: %w", marketID, err)
	}

	var stats domain.Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return domain.Stats{}, fmt.Errorf("redis: unmarshal stats for market %d: %w", marketID, err)
	}
	return stats, nil
}

// Invalidate removes a market's cached statistics.
func (sc *StatsCache) Invalidate(ctx context.Context, marketID uint64) error {
	if err := sc.rdb.Del(ctx, statsKey(marketID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate stats for market %d: %w", marketID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.StatsCache = (*StatsCache)(nil)
