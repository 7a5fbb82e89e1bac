// Package ratelimit implements a fixed-window counter keyed by an
// identity string (user id or client IP), backed by Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/lbsgbg/club-backend/internal/clock"
)

const (
	// DefaultWindow is the fixed (tumbling) window length, aligned to
	// epoch boundaries. A burst straddling two windows can reach twice
	// the limit; that tradeoff is accepted.
	DefaultWindow = 120 * time.Second
	// DefaultLimit is the number of consumed actions allowed per
	// identity per window.
	DefaultLimit = 5
)

// Counters is the ephemeral counter store the limiter runs on. Get
// treats a missing key as 0. IncrExpire must increment the key and
// (re)set its expiry in one atomic operation.
type Counters interface {
	Get(ctx context.Context, key string) (int64, error)
	IncrExpire(ctx context.Context, key string, ttl time.Duration) error
}

// Limiter counts consumed actions per identity per fixed window.
type Limiter struct {
	counters Counters
	clock    clock.Clock
	window   time.Duration
	limit    int64
}

// New creates a limiter with the default window and limit.
func New(counters Counters, clk clock.Clock) *Limiter {
	return NewWithConfig(counters, clk, DefaultWindow, DefaultLimit)
}

// NewWithConfig creates a limiter with an explicit window and limit.
// Non-positive values fall back to the defaults.
func NewWithConfig(counters Counters, clk clock.Clock, window time.Duration, limit int64) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Limiter{counters: counters, clock: clk, window: window, limit: limit}
}

// CheckOnly reports whether the identity is under its limit for the
// current window. Read-only: counters are never touched. A counter
// store error propagates so the caller fails closed.
func (l *Limiter) CheckOnly(ctx context.Context, identity string) (bool, error) {
	count, err := l.counters.Get(ctx, l.windowKey(identity))
	if err != nil {
		return false, fmt.Errorf("rate limit check %q: %w", identity, err)
	}
	return count < l.limit, nil
}

// ConsumeOnSuccess charges one action against the identity's current
// window. Called only after the guarded action succeeded.
func (l *Limiter) ConsumeOnSuccess(ctx context.Context, identity string) error {
	if err := l.counters.IncrExpire(ctx, l.windowKey(identity), l.window); err != nil {
		return fmt.Errorf("rate limit consume %q: %w", identity, err)
	}
	return nil
}

// windowKey returns rsvp:<identity>:<window_start_epoch_seconds> for
// the window containing now.
func (l *Limiter) windowKey(identity string) string {
	windowSeconds := int64(l.window / time.Second)
	windowStart := l.clock.Now().Unix() / windowSeconds * windowSeconds
	return fmt.Sprintf("rsvp:%s:%d", identity, windowStart)
}
