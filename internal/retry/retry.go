// Package retry applies a bounded retry policy with randomized
// exponential backoff to fallible operations.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// ErrMaxAttempts is returned when all attempts have been exhausted.
var ErrMaxAttempts = errors.New("max retry attempts exceeded")

// Policy bounds the number of attempts and the backoff window between them.
// The zero value is unusable; use Default or fill all fields.
type Policy struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
}

// Default matches the service-wide policy: 3 attempts, randomized
// exponential backoff between 1 and 5 seconds.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		MinBackoff:  1 * time.Second,
		MaxBackoff:  5 * time.Second,
	}
}

// Do runs fn until it succeeds, the policy is exhausted, or ctx is done.
// The last error is wrapped in ErrMaxAttempts on exhaustion.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.backoff(attempt)):
			}
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrMaxAttempts, attempts, lastErr)
}

// backoff picks a random delay in [MinBackoff, cap] where cap doubles per
// attempt up to MaxBackoff.
func (p Policy) backoff(attempt int) time.Duration {
	min := p.MinBackoff
	if min <= 0 {
		min = time.Second
	}
	max := p.MaxBackoff
	if max < min {
		max = min
	}

	ceil := min << uint(attempt-1)
	if ceil > max || ceil < min {
		ceil = max
	}
	if ceil == min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(ceil-min)))
}
