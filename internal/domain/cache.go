package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
// All methods require venueID for strict venue isolation.
type Cache interface {
	// Get retrieves a value from cache. Returns nil, nil if key not found.
	Get(ctx context.Context, venueID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, venueID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, venueID string, key string) error

	// GetBaseline retrieves a cached employee baseline.
	// Returns nil, nil on a miss.
	GetBaseline(ctx context.Context, venueID, employeeID string) (*Baseline, error)

	// SetBaseline caches an employee baseline for deviation checks.
	SetBaseline(ctx context.Context, venueID string, b *Baseline, ttl time.Duration) error

	// IncrementCounter atomically increments a windowed counter and returns
	// the new value. The real-time monitor uses it for trailing no-sale
	// drawer-open bursts.
	IncrementCounter(ctx context.Context, venueID string, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     int // seconds

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
