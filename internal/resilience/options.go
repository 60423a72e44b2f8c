package resilience

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidOptions is returned when retry options violate their bounds.
var ErrInvalidOptions = errors.New("invalid retry options")

// RetryOptions defines retry behavior for one call.
type RetryOptions struct {
	MaxRetries      int
	RetryDelay      time.Duration
	RetryMultiplier float64
	MaxRetryDelay   time.Duration
	RetryCondition  func(error) bool

	// Key correlates calls for the same logical operation. When set, a
	// failed chain leaves a domain.RetryRecord in the durable cache and a
	// later success clears it.
	Key string
}

// DefaultRetryOptions provides sensible defaults.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries:      3,
		RetryDelay:      1 * time.Second,
		RetryMultiplier: 2.0,
		MaxRetryDelay:   10 * time.Second,
		RetryCondition:  AlwaysRetry,
	}
}

// AlwaysRetry is the default retry condition.
func AlwaysRetry(error) bool { return true }

// Validate checks the option bounds.
func (o RetryOptions) Validate() error {
	switch {
	case o.MaxRetries < 0:
		return fmt.Errorf("%w: max retries %d < 0", ErrInvalidOptions, o.MaxRetries)
	case o.RetryDelay <= 0:
		return fmt.Errorf("%w: retry delay must be positive", ErrInvalidOptions)
	case o.RetryMultiplier <= 1:
		return fmt.Errorf("%w: multiplier %v <= 1", ErrInvalidOptions, o.RetryMultiplier)
	case o.MaxRetryDelay < o.RetryDelay:
		return fmt.Errorf("%w: max delay %s < delay %s", ErrInvalidOptions, o.MaxRetryDelay, o.RetryDelay)
	}
	return nil
}

// Backoff returns the delay before attempt+1:
// min(RetryDelay × RetryMultiplier^attempt, MaxRetryDelay).
func (o RetryOptions) Backoff(attempt int) time.Duration {
	delay := float64(o.RetryDelay) * math.Pow(o.RetryMultiplier, float64(attempt))
	if delay > float64(o.MaxRetryDelay) {
		delay = float64(o.MaxRetryDelay)
	}
	return time.Duration(delay)
}

// RetryOption overrides one field of the helper's default options.
type RetryOption func(*RetryOptions)

func WithMaxRetries(n int) RetryOption {
	return func(o *RetryOptions) { o.MaxRetries = n }
}

func WithRetryDelay(d time.Duration) RetryOption {
	return func(o *RetryOptions) { o.RetryDelay = d }
}

func WithRetryMultiplier(m float64) RetryOption {
	return func(o *RetryOptions) { o.RetryMultiplier = m }
}

func WithMaxRetryDelay(d time.Duration) RetryOption {
	return func(o *RetryOptions) { o.MaxRetryDelay = d }
}

// WithRetryCondition sets the predicate deciding whether an error is worth
// another attempt. A nil condition keeps the default.
func WithRetryCondition(fn func(error) bool) RetryOption {
	return func(o *RetryOptions) {
		if fn != nil {
			o.RetryCondition = fn
		}
	}
}

// WithKey sets the correlation key.
func WithKey(key string) RetryOption {
	return func(o *RetryOptions) { o.Key = key }
}

// WithOptions replaces every field at once.
func WithOptions(opts RetryOptions) RetryOption {
	return func(o *RetryOptions) {
		cond := o.RetryCondition
		*o = opts
		if o.RetryCondition == nil {
			o.RetryCondition = cond
		}
	}
}
