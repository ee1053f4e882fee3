package providers

import (
	"context"
	"time"
)

// CacheProvider is a byte-oriented key/value cache. Get reports an absent or
// expired key as an error.
type CacheProvider interface {
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key; a zero ttl keeps it until evicted
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, keys ...string) error
}
