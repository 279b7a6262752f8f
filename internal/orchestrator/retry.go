package orchestrator

// #region imports
import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danielpatrickdp/idea-forge/internal/roles"
)

// #endregion

// #region constants

const defaultMaxRetries = 2 // max 2 retries = 3 total attempts

// #endregion

// #region engine

// RetryEngine bounds how often a failed adapter call is repeated.
type RetryEngine struct {
	maxRetries int
	log        *slog.Logger
}

// NewRetryEngine creates a retry engine allowing maxRetries extra attempts.
func NewRetryEngine(maxRetries int, log *slog.Logger) *RetryEngine {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RetryEngine{maxRetries: maxRetries, log: log}
}

// #endregion

// #region should-retry

// ShouldRetry reports whether another attempt is allowed after err.
// attempts counts every attempt so far, including the one that failed.
func (r *RetryEngine) ShouldRetry(err error, attempts int) bool {
	if err == nil || !roles.Retryable(err) {
		return false
	}
	return attempts <= r.maxRetries
}

// #endregion

// #region do

// Do runs fn until it succeeds, fails with a non-retryable error or runs out
// of attempts. Cancellation wins over every other outcome.
func (r *RetryEngine) Do(ctx context.Context, stage string, fn func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return cancelled(stage, err)
		}
		r.log.Debug("adapter call", "stage", stage, "attempt", attempt)
		err := fn(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return cancelled(stage, ctxErr)
		}
		if err == nil {
			r.log.Debug("adapter result", "stage", stage, "attempt", attempt, "ok", true)
			return nil
		}
		r.log.Debug("adapter result", "stage", stage, "attempt", attempt, "ok", false, "error", err)
		if !r.ShouldRetry(err, attempt) {
			if roles.Retryable(err) {
				return fmt.Errorf("%w: %s after %d attempts: %w", ErrExhaustedRetries, stage, attempt, err)
			}
			return err
		}
		r.log.Warn("retrying adapter call", "stage", stage, "attempt", attempt, "error", err)
	}
}

func cancelled(stage string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrCancelled, stage, err)
}

// #endregion
