// Package retry implements the bounded retry policy shared by every remote call.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/kailas-cloud/quizrag/internal/domain"
)

// ErrExhausted is returned (wrapping the last failure) when all attempts fail.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy bounds retries of a remote call.
type Policy struct {
	// MaxAttempts includes the first call. Values below 1 mean a single attempt.
	MaxAttempts int
	// BaseDelay is doubled after every failed attempt, capped at MaxDelay.
	// Zero retries immediately.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Timeout bounds each attempt. Zero means the caller's deadline only.
	Timeout time.Duration
	// Retryable classifies failures. Nil means domain.IsTransient.
	Retryable func(error) bool
	// OnRetry is called before sleeping ahead of the next attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Default returns the policy used for provider calls when none is configured.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Timeout:     30 * time.Second,
	}
}

// Delay returns the backoff before attempt n+1 (n is 1-based). Without
// MaxDelay the doubling stops at the largest value that does not overflow.
func (p Policy) Delay(n int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < n && d <= math.MaxInt64/2; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			break
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// backOff mirrors Delay: no jitter, doubling up to the same ceiling.
func (p Policy) backOff() backoff.BackOff {
	if p.BaseDelay <= 0 {
		return &backoff.ZeroBackOff{}
	}
	return &backoff.ExponentialBackOff{
		InitialInterval:     p.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         p.Delay(64),
	}
}

func (p Policy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return domain.IsTransient(err)
}

// Do runs fn until it succeeds, fails with a non-retryable error, the
// attempts run out, or ctx is done. A per-attempt deadline that fires while
// ctx is still alive is reported as domain.ErrProviderTimeout.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		zero      T
		n         int
		lastErr   error
		permanent bool
	)
	op := func() (T, error) {
		n++
		if err := ctx.Err(); err != nil {
			return zero, backoff.Permanent(err)
		}
		v, err := attempt(ctx, p.Timeout, fn)
		if err == nil {
			return v, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, backoff.Permanent(ctxErr)
		}
		lastErr = err
		if !p.retryable(err) {
			permanent = true
			return zero, backoff.Permanent(err)
		}
		return zero, err
	}

	v, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(max(p.MaxAttempts, 1))),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, delay time.Duration) {
			if p.OnRetry != nil {
				p.OnRetry(n, err, delay)
			}
		}),
	)
	switch {
	case err == nil:
		return v, nil
	case ctx.Err() != nil:
		return zero, ctx.Err()
	case permanent:
		return zero, lastErr
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, n, lastErr)
}

func attempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := fn(actx)
	if err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) && !domain.IsTransient(err) {
		err = fmt.Errorf("%w: %w", domain.ErrProviderTimeout, err)
	}
	return v, err
}
