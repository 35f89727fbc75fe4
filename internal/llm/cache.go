package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// PromptCache is the process-wide prompt cache keyed by
// (model, system_message_hash, static_prefix_hash) with a size bound and
// LRU eviction (spec §5). It is backed by Redis the way the teacher's
// internal/scheduler.Scheduler backs its delayed-job set with a
// redis.ZAdd sorted set: the sorted set tracks recency for LRU eviction,
// a parallel hash holds the cached text.
type PromptCache struct {
	rdb       *redis.Client
	keyPrefix string
	maxItems  int64
	ttl       time.Duration
}

const (
	cacheRecencyKey = "llm:cache:recency"
	cacheDataPrefix = "llm:cache:data:"
)

// NewPromptCache creates a cache bound to maxItems entries with ttl applied
// to each entry's underlying Redis key.
func NewPromptCache(rdb *redis.Client, maxItems int64, ttl time.Duration) *PromptCache {
	return &PromptCache{rdb: rdb, maxItems: maxItems, ttl: ttl}
}

// Key derives the cache key for a (model, system, staticPrefix) triple.
func (c *PromptCache) Key(model, system, staticPrefix string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(system))
	h.Write([]byte{0})
	h.Write([]byte(staticPrefix))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached text for key, if present, bumping its recency.
func (c *PromptCache) Get(key string) (string, bool) {
	if c == nil || c.rdb == nil {
		return "", false
	}
	ctx := context.Background()
	val, err := c.rdb.Get(ctx, cacheDataPrefix+key).Result()
	if err != nil {
		return "", false
	}
	c.rdb.ZAdd(ctx, cacheRecencyKey, redis.Z{Score: float64(time.Now().UnixNano()), Member: key})
	return val, true
}

// Set stores text under key, applying the configured TTL, then evicts the
// least-recently-used entries beyond maxItems.
func (c *PromptCache) Set(key, text string) {
	if c == nil || c.rdb == nil {
		return
	}
	ctx := context.Background()
	c.rdb.Set(ctx, cacheDataPrefix+key, text, c.ttl)
	c.rdb.ZAdd(ctx, cacheRecencyKey, redis.Z{Score: float64(time.Now().UnixNano()), Member: key})
	c.evict(ctx)
}

// evict trims the recency set down to maxItems, removing the oldest
// entries' data keys along with them. It runs after every Set; the cron
// sweeper calls Sweep instead, which removes recency-set members whose
// data keys have already expired (via TTL).
func (c *PromptCache) evict(ctx context.Context) {
	if c.maxItems <= 0 {
		return
	}
	count, err := c.rdb.ZCard(ctx, cacheRecencyKey).Result()
	if err != nil || count <= c.maxItems {
		return
	}
	excess := count - c.maxItems
	stale, err := c.rdb.ZRange(ctx, cacheRecencyKey, 0, excess-1).Result()
	if err != nil {
		return
	}
	for _, key := range stale {
		c.rdb.Del(ctx, cacheDataPrefix+key)
	}
	c.rdb.ZRemRangeByRank(ctx, cacheRecencyKey, 0, excess-1)
}

// Sweep removes recency-set members whose backing data key has already
// expired via TTL — called periodically by internal/jobs.Sweeper
// (SPEC_FULL §11), grounded on the teacher's
// internal/scheduler.Scheduler.ProcessJobs ticker loop.
func (c *PromptCache) Sweep(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	members, err := c.rdb.ZRange(ctx, cacheRecencyKey, 0, -1).Result()
	if err != nil {
		return err
	}
	for _, key := range members {
		exists, err := c.rdb.Exists(ctx, cacheDataPrefix+key).Result()
		if err == nil && exists == 0 {
			c.rdb.ZRem(ctx, cacheRecencyKey, key)
		}
	}
	return nil
}
