package agent

import (
	"context"
	"math"
	"time"

	"shareai/chatrelay/pkg/upstream"
)

// RetryPolicy configures WithRetry.
type RetryPolicy struct {
	// MaxRetries is the total number of attempts. Values below 1 are
	// treated as 1, which disables retrying but still counts the attempt.
	MaxRetries int

	// Delay is the base backoff. The wait after failed attempt i
	// (0-indexed) is Delay * 2^i.
	Delay time.Duration

	// Retryable classifies errors. Nil means upstream.IsTransient.
	Retryable func(error) bool

	// Wait sleeps for d or until ctx is done. Nil uses a timer.
	Wait func(ctx context.Context, d time.Duration) error

	// OnRetry, when set, is called before each backoff wait.
	OnRetry func(attempt int, backoff time.Duration, err error)
}

// Attempts returns the effective number of attempts.
func (p RetryPolicy) Attempts() int {
	if p.MaxRetries < 1 {
		return 1
	}
	return p.MaxRetries
}

// maxBackoff is the largest representable wait.
const maxBackoff = time.Duration(math.MaxInt64)

// Backoff returns the wait that follows the failed attempt with the given
// 0-indexed position. Waits that would overflow are capped at maxBackoff.
func (p RetryPolicy) Backoff(attemptIndex int) time.Duration {
	if p.Delay <= 0 || attemptIndex < 0 {
		return 0
	}
	d := float64(p.Delay) * math.Pow(2, float64(attemptIndex))
	if d >= float64(math.MaxInt64) {
		return maxBackoff
	}
	return time.Duration(d)
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return upstream.IsTransient(err)
}

func (p RetryPolicy) wait(ctx context.Context, d time.Duration) error {
	if p.Wait != nil {
		return p.Wait(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryOutcome describes one WithRetry invocation. It is built fresh per
// invocation and not modified after WithRetry returns.
type RetryOutcome struct {
	// Attempts is the number of times the operation was invoked.
	Attempts int `json:"attempts"`

	// Errors holds the text of every retryable failure, in order.
	Errors []string `json:"errors"`

	// Success is true when an attempt returned without error.
	Success bool `json:"success"`
}

// NewRetryOutcome returns the initial outcome: no attempts, no errors.
func NewRetryOutcome() RetryOutcome {
	return RetryOutcome{Errors: []string{}}
}

// LastError returns the most recent recorded error text, or "".
func (o RetryOutcome) LastError() string {
	if len(o.Errors) == 0 {
		return ""
	}
	return o.Errors[len(o.Errors)-1]
}

func (o RetryOutcome) clone() RetryOutcome {
	errs := make([]string, len(o.Errors))
	copy(errs, o.Errors)
	o.Errors = errs
	return o
}

// WithRetry invokes op until it succeeds, fails with a non-retryable
// error, or policy.Attempts() attempts have been made.
//
// A non-retryable error is returned immediately without waiting. After the
// final attempt the last retryable error is returned. If ctx is done during
// a backoff wait, the context error is returned.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, RetryOutcome, error) {
	var zero T
	outcome := NewRetryOutcome()
	attempts := policy.Attempts()

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := policy.Backoff(attempt - 1)
			if policy.OnRetry != nil {
				policy.OnRetry(attempt+1, backoff, lastErr)
			}
			if err := policy.wait(ctx, backoff); err != nil {
				return zero, outcome, err
			}
		}

		outcome.Attempts++
		result, err := op(ctx)
		if err == nil {
			outcome.Success = true
			return result, outcome, nil
		}
		if !policy.retryable(err) {
			return zero, outcome, err
		}

		outcome.Errors = append(outcome.Errors, err.Error())
		lastErr = err
	}

	return zero, outcome, lastErr
}
