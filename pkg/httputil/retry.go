package httputil

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/incidentlab/topograph/pkg/errors"
)

// MaxRetryAfter caps the wait a rate-limited response may ask for.
const MaxRetryAfter = time.Minute

// RetryableError marks a collaborator failure as transient. [CheckStatus]
// and [TransportError] produce it for 5xx and 429 responses and for failed
// round trips; [Retry] retries nothing else.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retry calls fn up to attempts times. Between attempts it waits delay,
// doubling it after each failure, unless the failure is a
// [*errors.RateLimitedError] with a Retry-After hint, in which case it waits
// that long instead (capped at [MaxRetryAfter]).
//
// Errors not wrapped in [RetryableError] are returned at once. When all
// attempts fail the last error is returned; a cancelled ctx returns ctx.Err().
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var err error
	for i := range attempts {
		if err = fn(); err == nil {
			return nil
		}
		if !isRetryable(err) || i == attempts-1 {
			return err
		}

		wait := retryDelay(err, delay)
		delay *= 2
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// RetryWithBackoff retries fn three times starting at one second.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return Retry(ctx, 3, time.Second, fn)
}

// retryDelay returns how long to wait after err when the backoff schedule
// is at delay.
func retryDelay(err error, delay time.Duration) time.Duration {
	var rl *errors.RateLimitedError
	if stderrors.As(err, &rl) && rl.RetryAfter > 0 {
		return min(time.Duration(rl.RetryAfter)*time.Second, MaxRetryAfter)
	}
	return delay
}

func isRetryable(err error) bool {
	return stderrors.As(err, new(*RetryableError))
}
