package cache

import (
	"context"
	"time"
)

// Cache defines the interface for the shared (tier 2) cache backend.
type Cache interface {
	// Ping tests the cache connection
	Ping(ctx context.Context) error

	// Set stores a key-value pair with optional expiration
	Set(ctx context.Context, key string, value string, expiration time.Duration) error

	// Get retrieves a value by key; a missing key returns "" without error
	Get(ctx context.Context, key string) (string, error)

	// Del deletes one or more keys
	Del(ctx context.Context, keys ...string) error

	// AddToSet adds members to a set, used for key and tag indexes
	AddToSet(ctx context.Context, key string, members ...string) error

	// SetMembers returns all members of a set
	SetMembers(ctx context.Context, key string) ([]string, error)

	// Close closes the cache connection
	Close() error

	// WaitForConnection waits for the cache to be available with retries
	WaitForConnection(ctx context.Context) error
}
