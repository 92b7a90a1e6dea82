// Package ratelimit throttles chat requests per player.
//
// The Limiter interface is the contract; the server ships an in-memory token
// bucket (MemoryLimiter) which is enough for a single instance.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of a limiter check.
type Decision struct {
	Allowed bool
	// RetryAfter estimates when the next request would be allowed. Zero when
	// Allowed is true.
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key should be allowed.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow consumes one unit for key. Returning an error signals a limiter
	// malfunction; callers fail open rather than block traffic.
	Allow(ctx context.Context, key string) (Decision, error)

	// Close releases resources (cleanup goroutines, connections).
	Close() error
}

// NoopLimiter permits every request. Used when rate limiting is disabled.
type NoopLimiter struct{}

// Allow always allows.
func (NoopLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{Allowed: true}, nil
}

// Close is a no-op.
func (NoopLimiter) Close() error { return nil }
