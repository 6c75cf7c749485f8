// Package ratelimit throttles calls against the spreadsheet API quota.
// It wraps a token bucket with a bounded wait: callers block until a token
// is available or the wait budget runs out, never indefinitely.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// Common errors for limiter operations.
var (
	// ErrRateLimited is returned when no token became available within
	// the bounded wait.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// Limiter is a token bucket safe for concurrent acquisition from every
// sync call site (scheduled sync, manual admin sync, startup load).
type Limiter struct {
	bucket  *rate.Limiter
	maxWait time.Duration
}

// New creates a Limiter allowing callsPerInterval calls each interval,
// with burst capacity equal to one interval's quota. maxWait bounds how
// long an acquisition may block before failing.
func New(callsPerInterval int, interval, maxWait time.Duration) *Limiter {
	if callsPerInterval < 1 {
		callsPerInterval = 1
	}
	limit := rate.Every(interval / time.Duration(callsPerInterval))
	return &Limiter{
		bucket:  rate.NewLimiter(limit, callsPerInterval),
		maxWait: maxWait,
	}
}

// Acquire blocks until a token is available, the context is cancelled or
// the bounded wait elapses. Exceeding the wait returns ErrRateLimited.
func (l *Limiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.bucket.Wait(waitCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrRateLimited
	}
	return nil
}

// Allow reports whether a call may proceed right now without waiting.
func (l *Limiter) Allow() bool {
	return l.bucket.Allow()
}
