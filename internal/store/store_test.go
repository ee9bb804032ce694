// internal/store/store_test.go
package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/cabogame/cabo-service/internal/apperrors"
)

func retryLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestWithRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), retryLogger(), func(context.Context) error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetryRecoversAfterTransientFailure(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), retryLogger(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryExhaustsToStoreUnavailable(t *testing.T) {
	calls := 0
	boom := errors.New("db is down")
	err := WithRetry(context.Background(), retryLogger(), func(context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	assert.ErrorIs(t, err, boom, "the cause stays reachable through the wrap")
	assert.Equal(t, 3, calls)
}

func TestWithRetryFailsWithoutTrailingBackoff(t *testing.T) {
	start := time.Now()
	err := WithRetry(context.Background(), retryLogger(), func(context.Context) error {
		return errors.New("db is down")
	})
	elapsed := time.Since(start)
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	// Two backoff waits (100ms + 200ms) between three attempts; no
	// extra wait after the last one.
	assert.Less(t, elapsed, 600*time.Millisecond)
}

func TestWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := WithRetry(ctx, retryLogger(), func(context.Context) error {
		calls++
		cancel()
		return errors.New("slow")
	})
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	assert.Equal(t, 1, calls, "no retries after the context is cancelled")
}
