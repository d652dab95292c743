package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openplan-finance/compass/internal/domain"
)

// New creates a cache based on configuration.
func New(cfg domain.CacheConfig) (domain.Cache, error) {
	switch cfg.Type {
	case "memory", "":
		return NewLRUCache(cfg.LocalMaxSize), nil
	case "redis":
		if cfg.EnableTwoPhase {
			return NewTwoPhaseCache(cfg)
		}
		return NewRedisCache(cfg)
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}

// TwoPhaseCache layers a local LRU (L1) in front of Redis (L2).
// Reads check L1 first; L1 misses that hit L2 are backfilled with the
// shorter local TTL. Writes go to both layers.
type TwoPhaseCache struct {
	local    *LRUCache
	remote   *RedisCache
	localTTL time.Duration
}

// NewTwoPhaseCache creates a two-phase cache.
func NewTwoPhaseCache(cfg domain.CacheConfig) (*TwoPhaseCache, error) {
	remote, err := NewRedisCache(cfg)
	if err != nil {
		return nil, err
	}

	localTTL := cfg.LocalTTL
	if localTTL <= 0 {
		localTTL = 300 * time.Second
	}

	return &TwoPhaseCache{
		local:    NewLRUCache(cfg.LocalMaxSize),
		remote:   remote,
		localTTL: localTTL,
	}, nil
}

// Get checks the local cache, then Redis.
func (c *TwoPhaseCache) Get(ctx context.Context, tenantID string, key string) ([]byte, error) {
	val, err := c.local.Get(ctx, tenantID, key)
	if err == nil && val != nil {
		return val, nil
	}

	val, err = c.remote.Get(ctx, tenantID, key)
	if err != nil || val == nil {
		return val, err
	}

	if err := c.local.Set(ctx, tenantID, key, val, c.localTTL); err != nil {
		slog.Warn("two-phase cache backfill failed", "key", key, "error", err)
	}
	return val, nil
}

// Set writes through to both layers.
func (c *TwoPhaseCache) Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error {
	localTTL := c.localTTL
	if ttl < localTTL {
		localTTL = ttl
	}
	if err := c.local.Set(ctx, tenantID, key, value, localTTL); err != nil {
		return err
	}
	return c.remote.Set(ctx, tenantID, key, value, ttl)
}

// Delete removes the key from both layers.
func (c *TwoPhaseCache) Delete(ctx context.Context, tenantID string, key string) error {
	if err := c.local.Delete(ctx, tenantID, key); err != nil {
		return err
	}
	return c.remote.Delete(ctx, tenantID, key)
}

// GetResult retrieves a cached calculation result, local layer first.
func (c *TwoPhaseCache) GetResult(ctx context.Context, tenantID string, inputHash string) (*domain.CachedResult, error) {
	res, err := c.local.GetResult(ctx, tenantID, inputHash)
	if err == nil && res != nil {
		return res, nil
	}

	res, err = c.remote.GetResult(ctx, tenantID, inputHash)
	if err != nil || res == nil {
		return res, err
	}

	if err := c.local.SetResult(ctx, tenantID, inputHash, res, c.localTTL); err != nil {
		slog.Warn("two-phase result backfill failed", "hash", inputHash, "error", err)
	}
	return res, nil
}

// SetResult writes a calculation result through to both layers.
func (c *TwoPhaseCache) SetResult(ctx context.Context, tenantID string, inputHash string, res *domain.CachedResult, ttl time.Duration) error {
	localTTL := c.localTTL
	if ttl < localTTL {
		localTTL = ttl
	}
	if err := c.local.SetResult(ctx, tenantID, inputHash, res, localTTL); err != nil {
		return err
	}
	return c.remote.SetResult(ctx, tenantID, inputHash, res, ttl)
}

// IncrementCounter delegates to Redis so counts are shared across
// instances. The local layer never holds counters in two-phase mode.
func (c *TwoPhaseCache) IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error) {
	return c.remote.IncrementCounter(ctx, tenantID, key, window)
}

// Ping checks the remote layer.
func (c *TwoPhaseCache) Ping(ctx context.Context) error {
	return c.remote.Ping(ctx)
}

// Close closes both layers.
func (c *TwoPhaseCache) Close() error {
	c.local.Close()
	return c.remote.Close()
}
