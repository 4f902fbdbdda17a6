package cache

import (
	"context"
	"time"
)

// CacheInterface is the subset of cache operations used by the feed endpoint and enclosure sizing.
type CacheInterface interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}
