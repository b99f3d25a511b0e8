package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/fieldcrm/listsync/internal/model"
	"github.com/fieldcrm/listsync/internal/query"
)

const (
	statsKeyPrefix = "stats:"

	// statsGenKey counts evictions. It is part of every entry key, so an
	// entry computed before an eviction is never read after it.
	statsGenKey = "statsgen"
)

// Cache wraps a Store with Redis-backed caching of Stats. Writes made
// through the cache evict every cached stats entry.
type Cache struct {
	base  Store
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
// A nil client or zero TTL disables caching.
func NewCache(base Store, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("store.NewCache: base store is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{
		base:  base,
		redis: client,
		ttl:   ttl,
	}
}

func (c *Cache) Stats(ctx context.Context, userID string, d query.Descriptor) (model.Stats, error) {
	gen, ok := c.generation(ctx)
	if !ok {
		return c.base.Stats(ctx, userID, d)
	}
	key := statsCacheKey(gen, userID, d)
	if st, ok := c.loadStats(ctx, key); ok {
		return st, nil
	}

	st, err := c.base.Stats(ctx, userID, d)
	if err != nil {
		return model.Stats{}, err
	}

	c.storeStats(ctx, key, st)
	return st, nil
}

func (c *Cache) Put(ctx context.Context, p PutParams) (*model.Report, error) {
	r, err := c.base.Put(ctx, p)
	if err != nil {
		return nil, err
	}
	c.Evict(ctx)
	return r, nil
}

func (c *Cache) Import(ctx context.Context, ps []PutParams) (int, error) {
	n, err := c.base.Import(ctx, ps)
	if err != nil {
		return n, err
	}
	c.Evict(ctx)
	return n, nil
}

func (c *Cache) List(ctx context.Context, p ListParams) (*ListResult, error) {
	return c.base.List(ctx, p)
}

func (c *Cache) ExportAll(ctx context.Context, userID string) ([]model.Report, error) {
	return c.base.ExportAll(ctx, userID)
}

// Close closes the wrapped store. The Redis client belongs to the caller.
func (c *Cache) Close() error {
	return c.base.Close()
}

// generation returns the current eviction count. ok is false when Redis is
// disabled or unreachable and the cache should be bypassed.
func (c *Cache) generation(ctx context.Context) (int64, bool) {
	if c.redis == nil {
		return 0, false
	}
	gen, err := c.redis.Get(ctx, statsGenKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		log.WithError(err).Warn("stats cache generation read failed")
		return 0, false
	}
	return gen, true
}

func (c *Cache) loadStats(ctx context.Context, key string) (model.Stats, bool) {
	if c.redis == nil {
		return model.Stats{}, false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			// On redis errors fall back to the backing store without failing.
			log.WithError(err).WithField("key", key).Warn("stats cache read failed")
			_ = c.redis.Del(ctx, key).Err()
		}
		return model.Stats{}, false
	}
	var st model.Stats
	if err := json.Unmarshal(data, &st); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return model.Stats{}, false
	}
	if st.PerCategory == nil {
		st.PerCategory = map[string]int{}
	}
	return st, true
}

func (c *Cache) storeStats(ctx context.Context, key string, st model.Stats) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(st)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.WithError(err).WithField("key", key).Warn("stats cache write failed")
	}
}

// Evict drops every cached stats entry. A new report can change the counts
// of any user's "all" scope, so eviction is not per user. Bumping the
// generation first keeps a Stats call that read the store before the write
// from caching its counts under a key that is still read.
func (c *Cache) Evict(ctx context.Context) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Incr(ctx, statsGenKey).Err(); err != nil {
		log.WithError(err).Warn("stats cache generation bump failed")
	}
	iter := c.redis.Scan(ctx, 0, statsKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.WithError(err).Warn("stats cache scan failed")
	}
	if len(keys) > 0 {
		_, _ = c.redis.Del(ctx, keys...).Result()
	}
}

func statsCacheKey(gen int64, userID string, d query.Descriptor) string {
	// Sort order does not affect counts.
	d.Sort = ""
	return statsKeyPrefix + strconv.FormatInt(gen, 10) + ":" + userID + ":" + d.Key()
}
