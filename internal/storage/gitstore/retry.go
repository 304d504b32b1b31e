package gitstore

// The backend offers no locking, only whole-document CAS. A version
// conflict means another writer got in between this operation's read
// and write; the losing side must rerun the whole read-compute-write
// unit against a fresh snapshot. Retry is the bounded combinator for
// that: it never retries anything but a version conflict, and it
// backs off exponentially so two contending writers interleave.

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"qaflow/internal/domain"
)

// MaxAttempts is the number of times Retry runs the unit before the
// conflict surfaces to the caller: the initial attempt plus three
// reruns.
const MaxAttempts = 4

// DefaultBaseDelay is the first backoff step. Rerun n waits
// baseDelay << (n-1), so the gaps are 1s, 2s, 4s with the default.
const DefaultBaseDelay = time.Second

// Retry runs fn up to MaxAttempts times, rerunning it only when it
// fails with domain.ErrVersionConflict. Any other error, including
// context cancellation during backoff, returns immediately. baseDelay
// exists so tests can collapse the schedule to zero.
func Retry(ctx context.Context, logger *slog.Logger, op string, baseDelay time.Duration, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := baseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !errors.Is(err, domain.ErrVersionConflict) {
			return err
		}

		logger.Warn("version conflict, rerunning unit",
			"op", op,
			"attempt", attempt+1,
			"error", err,
		)
	}
	return lastErr
}
