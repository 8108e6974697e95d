package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDoRetriesTransientFailures(t *testing.T) {
	cfg := Config{
		MaxRetries:   3,
		InitialDelay: 10 * time.Millisecond,
		Multiplier:   2.0,
	}

	attempts := 0
	started := time.Now()

	result, err := Do(context.Background(), cfg, func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", &HTTPStatusError{StatusCode: 503}
		}
		return "delivered", nil
	})

	require.NoError(t, err)
	require.Equal(t, "delivered", result)
	require.Equal(t, 3, attempts)
	// Two backoffs: 10ms then 20ms.
	require.GreaterOrEqual(t, time.Since(started), 30*time.Millisecond)
}

func TestDoExhaustsRetryBudget(t *testing.T) {
	cfg := Config{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		Multiplier:   2.0,
	}

	attempts := 0
	_, err := Do(context.Background(), cfg, func(ctx context.Context) (int, error) {
		attempts++
		return 0, &HTTPStatusError{StatusCode: 500}
	})

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, 500, statusErr.StatusCode)
	require.Equal(t, 3, attempts, "initial attempt plus two retries")
}

func TestDoFailsFastOnNonRetryable(t *testing.T) {
	cfg := Config{
		MaxRetries:   5,
		InitialDelay: time.Second,
		Multiplier:   2.0,
	}

	attempts := 0
	started := time.Now()

	_, err := Do(context.Background(), cfg, func(ctx context.Context) (int, error) {
		attempts++
		return 0, &HTTPStatusError{StatusCode: 401}
	})

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, 1, attempts)
	require.Less(t, time.Since(started), 500*time.Millisecond, "no backoff wait for permanent errors")
}

func TestDoRespectsContextCancellation(t *testing.T) {
	cfg := Config{
		MaxRetries:   10,
		InitialDelay: 50 * time.Millisecond,
		Multiplier:   2.0,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Do(ctx, cfg, func(ctx context.Context) (int, error) {
		return 0, &HTTPStatusError{StatusCode: 503}
	})

	require.Error(t, err)
}

func TestDefaultRetryable(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		require.True(t, DefaultRetryable(&HTTPStatusError{StatusCode: code}), code)
	}
	for _, code := range []int{400, 401, 403, 404, 422} {
		require.False(t, DefaultRetryable(&HTTPStatusError{StatusCode: code}), code)
	}

	require.True(t, DefaultRetryable(context.DeadlineExceeded))
	require.False(t, DefaultRetryable(errors.New("schema mismatch")))
}

func TestDoCapsDelayAtMax(t *testing.T) {
	cfg := Config{
		MaxRetries:   3,
		InitialDelay: 20 * time.Millisecond,
		MaxDelay:     25 * time.Millisecond,
		Multiplier:   10.0,
	}

	attempts := 0
	started := time.Now()

	_, err := Do(context.Background(), cfg, func(ctx context.Context) (int, error) {
		attempts++
		return 0, &HTTPStatusError{StatusCode: 503}
	})

	require.Error(t, err)
	require.Equal(t, 4, attempts)
	// Without the cap the second backoff alone would be 200ms.
	require.Less(t, time.Since(started), 200*time.Millisecond)
}
