// Package retry provides a bounded retry policy for transient backend
// failures.
package retry

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Policy bounds retries of an operation that may fail transiently.
// Non-transient errors (malformed audio, authentication failures) are
// surfaced immediately; exhausting attempts returns the last error,
// never a silent empty result.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the
	// first. Values below 1 behave as 1.
	MaxAttempts int

	// Delay is the fixed pause between attempts.
	Delay time.Duration

	// Classify reports whether an error is transient and worth
	// retrying. A nil Classify retries nothing.
	Classify func(error) bool

	// OnRetry is invoked before each re-attempt.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy matches the reference behaviour: two attempts with a
// one-second pause.
func DefaultPolicy(classify func(error) bool) Policy {
	return Policy{
		MaxAttempts: 2,
		Delay:       time.Second,
		Classify:    classify,
	}
}

// Do runs fn under the policy.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	_, err := Run(ctx, p, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Run runs fn under policy p and returns its result. Retries stop as
// soon as the error is non-transient, the attempts are exhausted, or
// the context is cancelled.
func Run[T any](ctx context.Context, p Policy, fn func() (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if p.Classify == nil || !p.Classify(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("maxAttempts", attempts).
			Msg("Transient failure, retrying")

		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	return zero, lastErr
}
