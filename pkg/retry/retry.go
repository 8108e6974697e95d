// Package retry wraps outbound calls with bounded exponential backoff.
//
// Only transient failures are retried: network/timeout errors and a fixed set
// of HTTP status codes. Auth failures, validation errors and 404s surface on
// the first attempt.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"time"

	backoff "github.com/sethvargo/go-retry"
)

// HTTPStatusError reports a non-2xx response from an upstream service.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// retryableStatuses are the HTTP codes treated as transient.
var retryableStatuses = map[int]struct{}{
	408: {}, 429: {}, 500: {}, 502: {}, 503: {}, 504: {},
}

// DefaultRetryable reports whether an error is worth retrying: network or
// timeout failures, and upstream responses with a transient status code.
func DefaultRetryable(err error) bool {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		_, ok := retryableStatuses[statusErr.StatusCode]
		return ok
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}

// Config controls the backoff schedule and the retry predicate.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       time.Duration
	RetryIf      func(error) bool
}

// DefaultConfig returns the schedule used for outbound deliveries.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       50 * time.Millisecond,
		RetryIf:      DefaultRetryable,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 200 * time.Millisecond
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2.0
	}
	if c.RetryIf == nil {
		c.RetryIf = DefaultRetryable
	}
	return c
}

// Do runs fn until it succeeds, the retry budget is exhausted, or it fails
// with a non-retryable error. The delay before attempt n is
// InitialDelay * Multiplier^(n-1), capped at MaxDelay, plus random jitter.
func Do[T any](ctx context.Context, cfg Config, fn func(context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var result T
	attempt := 0

	schedule := backoff.WithMaxRetries(uint64(cfg.MaxRetries), backoff.BackoffFunc(func() (time.Duration, bool) {
		delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt)))
		attempt++
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
		if cfg.Jitter > 0 {
			delay += time.Duration(rand.Int63n(int64(cfg.Jitter)))
		}
		return delay, false
	}))

	err := backoff.Do(ctx, schedule, func(ctx context.Context) error {
		value, err := fn(ctx)
		if err != nil {
			if cfg.RetryIf(err) {
				return backoff.RetryableError(err)
			}
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return result, err
	}

	return result, nil
}
