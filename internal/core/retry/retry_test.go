package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/litesql/internal/core/dberr"
)

var errLocked = errors.New("database is locked")

func fast() []Option {
	return []Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond), WithJitter(false)}
}

func TestDo_Success(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_BusyThenSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errLocked
		}
		return nil
	}, fast()...)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_NonRetryableReturnedUnchanged(t *testing.T) {
	calls := 0
	syntax := errors.New(`near "SELEC": syntax error`)
	err := Do(context.Background(), func() error {
		calls++
		return syntax
	}, fast()...)

	assert.Same(t, syntax, err)
	assert.Equal(t, 1, calls)
}

func TestDo_Exhausted(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return errLocked
	}, append(fast(), WithMaxAttempts(4))...)

	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.True(t, dberr.IsRetryable(err))
	assert.True(t, errors.Is(err, dberr.ErrBusy))
	assert.True(t, errors.Is(err, dberr.ErrRetryExhausted))
	assert.True(t, errors.Is(err, errLocked))
	assert.Contains(t, err.Error(), "after 4 attempts")
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, func() error {
		calls++
		cancel()
		return errLocked
	}, WithInitialDelay(time.Second), WithJitter(false))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetryAndBackoff(t *testing.T) {
	var delays []time.Duration
	var attempts []int
	_ = Do(context.Background(), func() error {
		return errLocked
	},
		WithMaxAttempts(5),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(4*time.Millisecond),
		WithBackoffFactor(2),
		WithJitter(false),
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			attempts = append(attempts, attempt)
			delays = append(delays, delay)
		}),
	)

	assert.Equal(t, []int{1, 2, 3, 4}, attempts)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond, 4 * time.Millisecond}, delays)
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), func() (string, error) {
		calls++
		if calls == 1 {
			return "", errLocked
		}
		return "ok", nil
	}, fast()...)

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestApply(t *testing.T) {
	base := &Config{MaxAttempts: 2, InitialDelay: time.Second}
	cfg := Apply(base, WithMaxAttempts(0))
	assert.Equal(t, 1, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.InitialDelay)
	assert.Equal(t, 2, base.MaxAttempts)

	assert.Equal(t, DefaultConfig().MaxAttempts, Apply(nil).MaxAttempts)
}
