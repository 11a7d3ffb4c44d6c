package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"papercrumpler/internal/constants"
	"papercrumpler/internal/retry"
)

var journalBackoff = retry.BackoffConfig{
	InitialDelay: time.Duration(constants.DefaultRetryBackoffMs) * time.Millisecond / 10,
	MaxDelay:     time.Duration(constants.DefaultMaxBackoffMs) * time.Millisecond / 10,
	Multiplier:   2.0,
	MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
	Jitter:       true,
}

// retryableOperation runs operation, retrying transient SQLite failures.
func retryableOperation(ctx context.Context, operation func() error, operationName string) error {
	err := retry.NewBackoff(journalBackoff).RetryWithPredicate(ctx, operation, isRetryableDBError)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if !isRetryableDBError(err) {
		return fmt.Errorf("%s failed (non-retryable): %w", operationName, err)
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operationName, journalBackoff.MaxAttempts, err)
}

// isRetryableDBError reports whether a SQLite error is likely transient.
func isRetryableDBError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "database table is locked"),
		strings.Contains(msg, "disk I/O error"):
		return true
	default:
		return false
	}
}
