// Package cache stores response bodies for conditional requests.
//
// It wraps two libraries:
//   - github.com/patrickmn/go-cache for local in-memory caching
//   - github.com/go-redis/redis/v8 for a cache shared between instances
//
// TwoTierCache puts a short-lived local tier in front of Redis. Values are
// opaque bytes; callers choose the encoding.
//
// Usage:
//
//	c, err := cache.New(cache.Config{Type: cache.TypeTwoTier, TTL: time.Hour, RedisClient: rdb})
//	if err != nil {
//		return err
//	}
//	_ = c.Set(ctx, "etag:https://api.example.com/v1/items", body, time.Hour)
package cache
