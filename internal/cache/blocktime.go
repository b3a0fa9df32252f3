// Package cache keeps resolved block timestamps so repeated aggregation passes
// do not refetch block headers that can no longer change.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"
)

// BlockTimes stores block timestamps keyed by block number
type BlockTimes interface {
	Get(ctx context.Context, block uint64) (time.Time, bool)
	// Set stores the timestamp. Failures are logged and swallowed; a missed
	// write only costs a refetch.
	Set(ctx context.Context, block uint64, ts time.Time)
}

// LRUBlockTimes is an in-process bounded cache
type LRUBlockTimes struct {
	cache *lru.Cache[uint64, time.Time]
}

// NewLRUBlockTimes creates an in-process cache holding at most size blocks
func NewLRUBlockTimes(size int) (*LRUBlockTimes, error) {
	cache, err := lru.New[uint64, time.Time](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create block time cache: %w", err)
	}
	return &LRUBlockTimes{cache: cache}, nil
}

// Get implements BlockTimes
func (c *LRUBlockTimes) Get(_ context.Context, block uint64) (time.Time, bool) {
	return c.cache.Get(block)
}

// Set implements BlockTimes
func (c *LRUBlockTimes) Set(_ context.Context, block uint64, ts time.Time) {
	c.cache.Add(block, ts)
}

// Len returns the number of cached blocks
func (c *LRUBlockTimes) Len() int {
	return c.cache.Len()
}

// RedisBlockTimes shares block timestamps between service instances. Values are
// stored as unix milliseconds under "<prefix>:<block>".
type RedisBlockTimes struct {
	client *redis.Client
	logger *slog.Logger
	prefix string
	ttl    time.Duration
}

// NewRedisBlockTimes creates a Redis-backed cache. A zero ttl keeps keys forever.
func NewRedisBlockTimes(client *redis.Client, chainID uint64, ttl time.Duration, logger *slog.Logger) *RedisBlockTimes {
	return &RedisBlockTimes{
		client: client,
		logger: logger,
		prefix: "smartcards:blocktime:" + strconv.FormatUint(chainID, 10),
		ttl:    ttl,
	}
}

func (c *RedisBlockTimes) key(block uint64) string {
	return c.prefix + ":" + strconv.FormatUint(block, 10)
}

// Get implements BlockTimes. Misses and decode errors both read as absent.
func (c *RedisBlockTimes) Get(ctx context.Context, block uint64) (time.Time, bool) {
	value, err := c.client.Get(ctx, c.key(block)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("block time cache read failed", "block", block, "error", err)
		}
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		c.logger.Warn("block time cache holds malformed value", "block", block, "value", value)
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// Set implements BlockTimes
func (c *RedisBlockTimes) Set(ctx context.Context, block uint64, ts time.Time) {
	value := strconv.FormatInt(ts.UnixMilli(), 10)
	if err := c.client.Set(ctx, c.key(block), value, c.ttl).Err(); err != nil {
		c.logger.Warn("block time cache write failed", "block", block, "error", err)
	}
}

var (
	_ BlockTimes = (*LRUBlockTimes)(nil)
	_ BlockTimes = (*RedisBlockTimes)(nil)
)
