// Package cache backs function result caching, memoization, and query
// caching with in-memory and Redis stores.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key is not present.
var ErrCacheMiss = errors.New("cache miss")

// Cache is the store interface. A ttl of zero or less means the entry
// lives for the process (memory) or without expiry (redis).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error

	Close() error
	Stats() Stats
}

// Stats holds hit and miss counters.
type Stats struct {
	Hits   int64
	Misses int64
	Keys   int64
}

// Config holds cache configuration.
type Config struct {
	// Type is the backend: "memory" or "redis".
	Type string

	// Redis settings.
	URL      string
	Password string
	DB       int

	// Memory settings.
	MaxItems int

	// Prefix namespaces keys so several runtimes can share one redis.
	Prefix string
}

// DefaultConfig returns the in-memory defaults.
func DefaultConfig() Config {
	return Config{
		Type:     "memory",
		MaxItems: 10000,
		Prefix:   "lattice",
	}
}

// New builds a cache for the configured backend.
func New(cfg Config) (Cache, error) {
	switch cfg.Type {
	case "redis":
		return NewRedisCache(cfg)
	case "memory", "":
		return NewMemoryCache(cfg), nil
	default:
		return nil, errors.New("cache: unsupported type " + cfg.Type)
	}
}
