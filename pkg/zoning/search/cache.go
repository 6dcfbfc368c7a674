package search

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"parcel-constraints-be/pkg/zoning"
)

const (
	cacheModule    = "RetrievalCache"
	statsSampleMax = 10
)

type CacheConfig struct {
	// TTL of an entry, zero keeps entries until cleared or evicted.
	TTL             time.Duration
	MaxEntries      int
	CleanupInterval time.Duration
	RedisPrefix     string
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:             0,
		MaxEntries:      1000,
		CleanupInterval: 10 * time.Minute,
		RedisPrefix:     "zoning:retrieval:",
	}
}

type cacheEntry struct {
	Passages []string
	StoredAt time.Time
}

// CacheStats is a snapshot of the retrieval cache.
type CacheStats struct {
	Entries    int      `json:"entries"`
	SampleKeys []string `json:"sample_keys"`
}

// Cache memoises retrieval results per (municipality, query, limit).
// Only non-empty results are stored. A Redis client, when given, acts as
// a shared second tier behind the in-process store.
type Cache struct {
	local  *cache.Cache
	redis  redis.UniversalClient
	group  singleflight.Group
	mu     sync.Mutex
	cfg    CacheConfig
	logger zoning.Logger
}

func NewCache(cfg CacheConfig, rdb redis.UniversalClient, logger zoning.Logger) *Cache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &Cache{
		local:  cache.New(ttl, cfg.CleanupInterval),
		redis:  rdb,
		cfg:    cfg,
		logger: zoning.OrNop(logger),
	}
}

// CacheKey is the md5 hex digest of "municipality:query:limit", with
// municipality and query lowercased.
func CacheKey(municipality, query string, limit int) string {
	raw := fmt.Sprintf("%s:%s:%d", strings.ToLower(municipality), strings.ToLower(query), limit)
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// GetOrCompute returns the cached passages for the key, or runs compute and
// stores its result when non-empty. hit reports whether compute was skipped.
func (c *Cache) GetOrCompute(
	ctx context.Context,
	municipality string,
	query string,
	limit int,
	compute func(ctx context.Context) ([]string, error),
) (passages []string, hit bool, err error) {
	key := CacheKey(municipality, query, limit)

	if cached, ok := c.lookup(ctx, key); ok {
		cacheHitsTotal.Inc()
		return slices.Clone(cached), true, nil
	}
	cacheMissesTotal.Inc()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if cached, ok := c.lookup(ctx, key); ok {
			return cached, nil
		}
		result, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if len(result) > 0 {
			c.store(ctx, key, result)
		}
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}

	return slices.Clone(v.([]string)), false, nil
}

func (c *Cache) lookup(ctx context.Context, key string) ([]string, bool) {
	if x, found := c.local.Get(key); found {
		return x.(*cacheEntry).Passages, true
	}

	if c.redis == nil {
		return nil, false
	}

	raw, err := c.redis.Get(ctx, c.cfg.RedisPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn(cacheModule, "Redis lookup failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
		return nil, false
	}

	var passages []string
	if err := json.Unmarshal(raw, &passages); err != nil || len(passages) == 0 {
		return nil, false
	}
	c.putLocal(key, passages)
	return passages, true
}

func (c *Cache) store(ctx context.Context, key string, passages []string) {
	stored := slices.Clone(passages)
	c.putLocal(key, stored)

	if c.redis == nil {
		return
	}
	payload, err := json.Marshal(stored)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, c.cfg.RedisPrefix+key, payload, c.cfg.TTL).Err(); err != nil {
		c.logger.Warn(cacheModule, "Redis store failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

func (c *Cache) putLocal(key string, passages []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.local.Get(key); !exists && c.cfg.MaxEntries > 0 && c.local.ItemCount() >= c.cfg.MaxEntries {
		c.local.DeleteExpired()
		if c.local.ItemCount() >= c.cfg.MaxEntries {
			c.evictOldest()
		}
	}

	c.local.Set(key, &cacheEntry{Passages: passages, StoredAt: time.Now()}, cache.DefaultExpiration)
}

func (c *Cache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for k, item := range c.local.Items() {
		entry := item.Object.(*cacheEntry)
		if oldestKey == "" || entry.StoredAt.Before(oldest) {
			oldestKey = k
			oldest = entry.StoredAt
		}
	}
	if oldestKey != "" {
		c.local.Delete(oldestKey)
		cacheEvictionsTotal.Inc()
	}
}

// Clear drops every entry from both tiers.
func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	c.local.Flush()
	c.mu.Unlock()

	if c.redis == nil {
		return
	}

	iter := c.redis.Scan(ctx, 0, c.cfg.RedisPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn(cacheModule, "Redis scan failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if len(keys) > 0 {
		if err := c.redis.Del(ctx, keys...).Err(); err != nil {
			c.logger.Warn(cacheModule, "Redis clear failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// Stats reports the in-process entry count and up to ten keys.
func (c *Cache) Stats() CacheStats {
	items := c.local.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > statsSampleMax {
		keys = keys[:statsSampleMax]
	}
	return CacheStats{Entries: len(items), SampleKeys: keys}
}
