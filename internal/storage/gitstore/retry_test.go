package gitstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qaflow/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRetry_ConflictThenSuccess(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), discardLogger(), "test op", time.Microsecond, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("write lost: %w", domain.ErrVersionConflict)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_NonConflictReturnsImmediately(t *testing.T) {
	boom := errors.New("backend down")
	attempts := 0
	err := Retry(context.Background(), discardLogger(), "test op", time.Microsecond, func(ctx context.Context) error {
		attempts++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}

func TestRetry_SurvivesThreeConflicts(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), discardLogger(), "test op", time.Microsecond, func(ctx context.Context) error {
		attempts++
		if attempts <= 3 {
			return fmt.Errorf("write lost: %w", domain.ErrVersionConflict)
		}
		return nil
	})

	// The initial attempt plus three backed-off reruns.
	require.NoError(t, err)
	assert.Equal(t, 4, attempts)
}

func TestRetry_Exhausted(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), discardLogger(), "test op", time.Microsecond, func(ctx context.Context) error {
		attempts++
		return fmt.Errorf("write lost: %w", domain.ErrVersionConflict)
	})

	assert.ErrorIs(t, err, domain.ErrVersionConflict)
	assert.Equal(t, MaxAttempts, attempts)
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := Retry(ctx, discardLogger(), "test op", time.Hour, func(ctx context.Context) error {
		attempts++
		cancel()
		return fmt.Errorf("write lost: %w", domain.ErrVersionConflict)
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
