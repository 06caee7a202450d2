/*
Package cache provides a small string cache for computed aggregates.

PURPOSE:
  Dashboard statistics (arrears, net profit, counts) are recomputed on
  every request otherwise; a short-TTL cache keeps the hot dashboard
  cheap. Two implementations: Redis for deployments that have one, and
  an in-process memory cache as the default.

USAGE:
  var c cache.Cache = cache.NewMemory()
  if *redisAddr != "" {
      c = cache.NewRedis(*redisAddr)
  }
*/
package cache

import (
	"context"
	"time"
)

// Cache is a get/set cache keyed by string. Implementations treat a
// missing or expired key as a plain miss, never an error.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}
