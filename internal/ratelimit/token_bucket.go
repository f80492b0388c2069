// Package ratelimit holds the session-local throttles the job queue consults
// before each application.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket refills at a fixed hourly rate up to capacity.
type TokenBucket struct {
	mu  sync.Mutex
	lim *rate.Limiter
	now func() time.Time
}

// NewTokenBucket creates a bucket allowing perHour actions per hour with the
// given burst capacity. A capacity <= 0 defaults to perHour/2 (minimum 1).
// The bucket starts full.
func NewTokenBucket(perHour, capacity int) *TokenBucket {
	if capacity <= 0 {
		capacity = perHour / 2
		if capacity <= 0 {
			capacity = 1
		}
	}
	return &TokenBucket{
		lim: rate.NewLimiter(rate.Limit(float64(perHour)/3600.0), capacity),
		now: time.Now,
	}
}

// WithClock replaces the time source (tests).
func (tb *TokenBucket) WithClock(now func() time.Time) *TokenBucket {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.now = now
	return tb
}

func (tb *TokenBucket) clock() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.now()
}

// Allow consumes one token if available.
func (tb *TokenBucket) Allow() bool {
	return tb.lim.AllowN(tb.clock(), 1)
}

// Remaining returns the whole tokens currently available.
func (tb *TokenBucket) Remaining() int {
	return int(tb.lim.TokensAt(tb.clock()))
}

// TimeUntilNext returns how long until a token is available.
func (tb *TokenBucket) TimeUntilNext() time.Duration {
	tokens := tb.lim.TokensAt(tb.clock())
	perSec := float64(tb.lim.Limit())
	if tokens >= 1.0 || perSec <= 0 {
		return 0
	}
	return time.Duration((1.0 - tokens) / perSec * float64(time.Second))
}

// Wait blocks until a token is available or ctx is done. Unlike
// rate.Limiter.Wait it reports ctx.Err() when the deadline cuts the wait
// short.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		if tb.Allow() {
			return nil
		}
		wait := tb.TimeUntilNext()
		if wait <= 0 {
			wait = 10 * time.Millisecond
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
