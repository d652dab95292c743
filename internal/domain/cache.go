package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
// All methods require tenantID for strict multi-tenancy isolation.
//
// Engine results are deterministic functions of their input, so cached
// entries keyed by an input hash never go stale; the TTL only bounds
// memory.
type Cache interface {
	// Get retrieves a value from cache. Returns nil, nil if not found.
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, tenantID string, key string) error

	// GetResult retrieves a cached calculation result by input hash.
	GetResult(ctx context.Context, tenantID string, inputHash string) (*CachedResult, error)

	// SetResult caches a calculation result keyed by input hash.
	SetResult(ctx context.Context, tenantID string, inputHash string, res *CachedResult, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns the
	// new value. Used for per-tenant calculation quotas.
	IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CachedResult is a previously computed engine result.
type CachedResult struct {
	Kind   CalculationKind `json:"kind"`
	Result []byte          `json:"result"`

	// CalcID links back to the persisted calculation, when stored.
	CalcID     string `json:"calcId,omitempty"`
	ComputedAt int64  `json:"computedAt"` // unix seconds
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
