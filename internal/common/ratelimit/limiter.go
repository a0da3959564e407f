// Package ratelimit throttles outbound API calls with token buckets from
// golang.org/x/time/rate, one bucket per key (typically the request host).
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides when a call for a given key may proceed
type Limiter interface {
	WaitForKey(ctx context.Context, key string) error
	TryAcquireForKey(key string) bool
}

// Config represents rate limiter configuration
type Config struct {
	RequestsPerSecond float64       `json:"requests_per_second"`
	BurstSize         int           `json:"burst_size"`
	MaxKeys           int           `json:"max_keys,omitempty"`
	CleanupPeriod     time.Duration `json:"cleanup_period,omitempty"`
}

// DefaultConfig returns a default rate limiter configuration
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		BurstSize:         10,
		MaxKeys:           1000,
		CleanupPeriod:     5 * time.Minute,
	}
}

// Validate checks the configuration and fills defaults
func (c *Config) Validate() error {
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive, got %v", c.RequestsPerSecond)
	}
	if c.BurstSize <= 0 {
		c.BurstSize = int(c.RequestsPerSecond)
		if c.BurstSize < 1 {
			c.BurstSize = 1
		}
	}
	if c.MaxKeys <= 0 {
		c.MaxKeys = 1000
	}
	if c.CleanupPeriod <= 0 {
		c.CleanupPeriod = 5 * time.Minute
	}
	return nil
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// LocalLimiter keeps an in-process token bucket per key
type LocalLimiter struct {
	mu          sync.Mutex
	config      Config
	limiters    map[string]*limiterEntry
	lastCleanup time.Time
}

// NewLocalLimiter creates a new local rate limiter
func NewLocalLimiter(config Config) (*LocalLimiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &LocalLimiter{
		config:      config,
		limiters:    make(map[string]*limiterEntry),
		lastCleanup: time.Now(),
	}, nil
}

// WaitForKey blocks until a call for key may proceed or ctx is done
func (l *LocalLimiter) WaitForKey(ctx context.Context, key string) error {
	return l.limiterFor(key).Wait(ctx)
}

// TryAcquireForKey reports whether a call for key may proceed right now
func (l *LocalLimiter) TryAcquireForKey(key string) bool {
	return l.limiterFor(key).Allow()
}

// ActiveKeys returns the number of tracked keys
func (l *LocalLimiter) ActiveKeys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *LocalLimiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) > l.config.CleanupPeriod {
		l.cleanup(time.Now().Add(-l.config.CleanupPeriod))
	}

	entry, exists := l.limiters[key]
	if !exists {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), l.config.BurstSize),
		}
		l.limiters[key] = entry

		if len(l.limiters) > l.config.MaxKeys {
			l.cleanup(time.Now().Add(-l.config.CleanupPeriod))
		}
	}
	entry.lastUsed = time.Now()

	return entry.limiter
}

func (l *LocalLimiter) cleanup(cutoff time.Time) {
	for key, entry := range l.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(l.limiters, key)
		}
	}
	l.lastCleanup = time.Now()
}
