package cache

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/feedpulse/config"
)

// newTestRedis 起一个进程内 redis 并返回客户端
func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return m, client
}

func newTestFeedCache(t *testing.T, caps config.TimelineConfig) (*miniredis.Miniredis, *redis.Client, *FeedCache) {
	t.Helper()
	m, client := newTestRedis(t)
	fc := NewFeedCache(client, NewScorer(testRankingConfig()), caps)
	return m, client, fc
}

func defaultCaps() config.TimelineConfig {
	return config.TimelineConfig{GlobalCap: 360, FollowingCap: 120, OwnCap: 120}
}

// roundTripCounter counts server round-trips: each standalone command and
// each pipeline flush is one trip.
type roundTripCounter struct {
	trips atomic.Int64
}

func (c *roundTripCounter) DialHook(next redis.DialHook) redis.DialHook { return next }

func (c *roundTripCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		c.trips.Add(1)
		return next(ctx, cmd)
	}
}

func (c *roundTripCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		c.trips.Add(1)
		return next(ctx, cmds)
	}
}
