package storage

import (
	"context"
	"time"
)

// Backend names accepted by configuration.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Storage holds integer counters keyed by string. The attempt tracker keeps
// one counter per client origin in it.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Counter returns the current value for key, or 0 if the key does not
	// exist or has expired.
	Counter(ctx context.Context, key string) (int64, error)

	// Increment atomically adds delta to key and returns the new value.
	// A missing key starts at 0. exp sets the expiration and is only applied
	// when the key is created; 0 means the key never expires.
	Increment(ctx context.Context, key string, delta int64, exp time.Duration) (int64, error)

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
