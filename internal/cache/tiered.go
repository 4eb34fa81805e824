package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/basinwx/road-weather-service/internal/observability"
)

// TieredCache layers a fast memory tier over the persistent disk tier.
// Reads check memory first, then fall back to a sufficiently fresh disk
// record and repopulate memory from it. Writes land in both tiers.
type TieredCache struct {
	mem    Store
	disk   *DiskStore
	logger *zap.Logger
}

// NewTieredCache combines a memory store and a disk store.
func NewTieredCache(mem Store, disk *DiskStore, logger *zap.Logger) *TieredCache {
	return &TieredCache{mem: mem, disk: disk, logger: logger}
}

// Lookup is the read-through path: memory hit, else a disk record no older
// than maxAge (which also repopulates memory with memTTL). Returns false when
// neither tier has fresh data.
func (c *TieredCache) Lookup(ctx context.Context, key string, maxAge, memTTL time.Duration, dest any) bool {
	raw, ok, err := c.mem.Get(ctx, key)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("memory cache read failed", zap.String("key", key), zap.Error(err))
		}
	} else if ok {
		if err := json.Unmarshal(raw, dest); err == nil {
			observability.CacheHitsTotal.WithLabelValues("memory").Inc()
			return true
		}
	}
	observability.CacheMissesTotal.WithLabelValues("memory").Inc()

	if !c.disk.Get(key, maxAge, dest) {
		return false
	}
	// Repopulate memory so the next read skips disk.
	if data, err := json.Marshal(dest); err == nil {
		if err := c.mem.Set(ctx, key, data, memTTL); err != nil && c.logger != nil {
			c.logger.Warn("memory cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return true
}

// Put writes value to both tiers: memory with the given TTL, disk stamped
// with the current time.
func (c *TieredCache) Put(ctx context.Context, key string, value any, memTTL time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("cache marshal failed", zap.String("key", key), zap.Error(err))
		}
		return
	}
	if err := c.mem.Set(ctx, key, data, memTTL); err != nil && c.logger != nil {
		c.logger.Warn("memory cache write failed", zap.String("key", key), zap.Error(err))
	}
	c.disk.Set(key, value)
}

// GetStale reads the disk record for key regardless of freshness, up to the
// disk store's stale limit. Used as the last fallback when the upstream is
// unreachable and no fresh data exists in either tier.
func (c *TieredCache) GetStale(key string, dest any) bool {
	return c.disk.Get(key, c.disk.staleLimit, dest)
}

// DiskAge reports the age of the disk record for key, if one exists.
func (c *TieredCache) DiskAge(key string) (time.Duration, bool) {
	return c.disk.Age(key)
}
