// Package retry centralizes the backoff policy for remote calls.
// Every Sheets call site shares one policy instead of scattering ad-hoc
// retry loops: bounded per-attempt deadline, exponential backoff, small
// fixed attempt cap, then the failure is surfaced to the caller.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Policy describes how remote calls are retried. A zero MaxAttempts
// means a single attempt with no retries.
type Policy struct {
	MaxAttempts    uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	CallTimeout    time.Duration
}

// DefaultPolicy matches the quota behavior the spreadsheet API tolerates.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    4,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
		CallTimeout:    15 * time.Second,
	}
}

// Do runs op with the policy: each attempt gets its own deadline, failed
// attempts back off exponentially, and after MaxAttempts the last error
// is returned. op is named for logging only.
func (p Policy) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialBackoff
	bo.MaxInterval = p.MaxBackoff

	attempt := 0
	wrapped := func() error {
		attempt++
		attemptCtx := ctx
		if p.CallTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.CallTimeout)
			defer cancel()
		}

		err := op(attemptCtx)
		if err != nil {
			log.Warn().
				Str("call", name).
				Int("attempt", attempt).
				Err(err).
				Msg("Remote call failed")
		}
		return err
	}

	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, attempts-1), ctx)
	return backoff.Retry(wrapped, policy)
}
