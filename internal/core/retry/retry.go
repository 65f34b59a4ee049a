// Package retry re-issues a single engine call while it fails with lock contention.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/satishbabariya/litesql/internal/core/dberr"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts   int           // total attempts, including the first
	InitialDelay  time.Duration // delay before the second attempt
	MaxDelay      time.Duration // cap on the delay between attempts
	BackoffFactor float64       // exponential backoff multiplier
	Jitter        bool          // spread delays by ±25%

	// OnRetry, when set, is called before each backoff sleep.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:   5,
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// Option customizes retry behavior.
type Option func(*Config)

// WithMaxAttempts sets the total number of attempts.
func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		c.MaxAttempts = n
	}
}

// WithInitialDelay sets the first backoff delay.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		c.InitialDelay = d
	}
}

// WithMaxDelay sets the backoff cap.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		c.MaxDelay = d
	}
}

// WithBackoffFactor sets the exponential backoff factor.
func WithBackoffFactor(f float64) Option {
	return func(c *Config) {
		c.BackoffFactor = f
	}
}

// WithJitter enables or disables delay jitter.
func WithJitter(on bool) Option {
	return func(c *Config) {
		c.Jitter = on
	}
}

// WithOnRetry installs a hook called before each backoff sleep.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(c *Config) {
		c.OnRetry = fn
	}
}

// Apply copies cfg and applies opts to the copy.
func Apply(cfg *Config, opts ...Option) *Config {
	out := *DefaultConfig()
	if cfg != nil {
		out = *cfg
	}
	for _, opt := range opts {
		opt(&out)
	}
	if out.MaxAttempts < 1 {
		out.MaxAttempts = 1
	}
	return &out
}

// Do calls fn until it succeeds, fails with a non-retryable error, or runs out of attempts.
// Only errors that dberr.Map classifies as retryable are retried; any other error is returned
// unchanged. Exhaustion yields a retryable busy error wrapping dberr.ErrRetryExhausted and the
// last failure.
func Do(ctx context.Context, fn func() error, opts ...Option) error {
	return DoWithConfig(ctx, nil, fn, opts...)
}

// DoWithConfig is Do starting from cfg instead of DefaultConfig.
func DoWithConfig(ctx context.Context, cfg *Config, fn func() error, opts ...Option) error {
	config := Apply(cfg, opts...)

	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !dberr.Map(err).Retryable {
			return err
		}

		if attempt == config.MaxAttempts {
			break
		}

		actualDelay := delay
		if config.Jitter && delay > 0 {
			// ±25% jitter
			jitterRange := delay / 4
			if jitterRange > 0 {
				actualDelay = delay - jitterRange + time.Duration(rand.Int63n(int64(jitterRange)*2))
			}
		}

		if config.OnRetry != nil {
			config.OnRetry(attempt, err, actualDelay)
		}

		timer := time.NewTimer(actualDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}

		delay = time.Duration(float64(delay) * config.BackoffFactor)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	mapped := dberr.Map(lastErr)
	return &dberr.Error{
		Kind:      dberr.KindBusy,
		Message:   fmt.Sprintf("%s (after %d attempts)", mapped.Message, config.MaxAttempts),
		Retryable: true,
		Code:      mapped.Code,
		Cause:     fmt.Errorf("%w: %w", dberr.ErrRetryExhausted, lastErr),
	}
}

// DoWithResult is Do for functions that return a value.
func DoWithResult[T any](ctx context.Context, fn func() (T, error), opts ...Option) (T, error) {
	var result T
	err := Do(ctx, func() error {
		var fnErr error
		result, fnErr = fn()
		return fnErr
	}, opts...)
	return result, err
}
