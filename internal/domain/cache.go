package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching derived artifacts.
// Supports two-phase caching: local LRU (community) + Redis (pro).
type Cache interface {
	// Get retrieves a value from cache. Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetFeatureVector retrieves a cached derived vector for a customer.
	GetFeatureVector(ctx context.Context, customerID string) (*FeatureVector, error)

	// SetFeatureVector caches a derived vector for list/dashboard reuse.
	SetFeatureVector(ctx context.Context, customerID string, v *FeatureVector, ttl time.Duration) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings: check local first, then Redis
	EnableTwoPhase bool
}
