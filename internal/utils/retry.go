package utils

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// RetryPolicy bounds how often and how slowly a call is retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy returns sensible retry defaults
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
	}
}

// Permanent wraps an error that must not be retried.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Backoff returns the delay before attempt n (1-based, n >= 2).
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n <= 1 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := time.Duration(float64(p.BaseDelay) * math.Pow(mult, float64(n-2)))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Do runs fn until it succeeds, returns a Permanent error, ctx ends or the
// attempt budget is spent. It returns the number of attempts made.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for n := 1; n <= attempts; n++ {
		if n > 1 {
			timer := time.NewTimer(p.Backoff(n))
			select {
			case <-ctx.Done():
				timer.Stop()
				return n - 1, fmt.Errorf("retry aborted: %w", errors.Join(ctx.Err(), lastErr))
			case <-timer.C:
			}
		}

		err := fn(ctx, n)
		if err == nil {
			return n, nil
		}
		lastErr = err

		var perm *Permanent
		if errors.As(err, &perm) {
			return n, perm.Err
		}
		if ctx.Err() != nil {
			return n, errors.Join(ctx.Err(), err)
		}
	}
	return attempts, fmt.Errorf("max attempts (%d) exceeded: %w", attempts, lastErr)
}
