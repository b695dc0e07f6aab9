package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/revenac/apiserver/types"
)

const (
	leaderboardKey      = "leaderboard:top"
	leaderboardEpochKey = "leaderboard:epoch"
)

// LeaderboardCache stores the ranked leaderboard as one JSON value per
// epoch. Invalidate starts a new epoch, so a ranking computed before the
// invalidation is written under a key readers no longer look at.
type LeaderboardCache struct {
	cli *redis.Client
	ttl time.Duration
}

func NewLeaderboardCache(cli *redis.Client, ttl time.Duration) *LeaderboardCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &LeaderboardCache{cli: cli, ttl: ttl}
}

// Get returns the cached leaderboard and the epoch it was looked up in. ok
// is false on a miss; pass epoch back to Set when filling the miss.
func (c *LeaderboardCache) Get(ctx context.Context) (entries []types.LeaderboardEntry, epoch int64, ok bool, err error) {
	epoch, err = c.cli.Get(ctx, leaderboardEpochKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, err
	}

	val, err := c.cli.Get(ctx, epochKey(epoch)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, epoch, false, nil
	}
	if err != nil {
		return nil, epoch, false, err
	}
	if err := json.Unmarshal(val, &entries); err != nil {
		// A value we cannot decode is treated as a miss and overwritten later.
		return nil, epoch, false, nil
	}
	return entries, epoch, true, nil
}

func (c *LeaderboardCache) Set(ctx context.Context, epoch int64, entries []types.LeaderboardEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return c.cli.Set(ctx, epochKey(epoch), data, c.ttl).Err()
}

func (c *LeaderboardCache) Invalidate(ctx context.Context) error {
	return c.cli.Incr(ctx, leaderboardEpochKey).Err()
}

func epochKey(epoch int64) string {
	return fmt.Sprintf("%s:%d", leaderboardKey, epoch)
}
