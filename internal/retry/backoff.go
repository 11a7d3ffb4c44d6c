package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"papercrumpler/internal/models"
)

// BackoffConfig contains configuration for exponential backoff
type BackoffConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxAttempts  int
	Jitter       bool
}

// DefaultBackoffConfig returns the startup retry defaults
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
		Jitter:       true,
	}
}

// FromRetryConfig builds a backoff config from the file configuration,
// falling back to defaults for unset values.
func FromRetryConfig(rc models.RetryConfig) BackoffConfig {
	cfg := DefaultBackoffConfig()
	if rc.InitialBackoffMs > 0 {
		cfg.InitialDelay = time.Duration(rc.InitialBackoffMs) * time.Millisecond
	}
	if rc.MaxBackoffMs > 0 {
		cfg.MaxDelay = time.Duration(rc.MaxBackoffMs) * time.Millisecond
	}
	if rc.MaxAttempts > 0 {
		cfg.MaxAttempts = rc.MaxAttempts
	}
	return cfg
}

// NotifyFunc is called after a failed attempt, before waiting delay.
type NotifyFunc func(attempt int, err error, delay time.Duration)

// Backoff implements exponential backoff with optional jitter
type Backoff struct {
	config BackoffConfig
	notify NotifyFunc
}

// NewBackoff creates a new exponential backoff instance
func NewBackoff(config BackoffConfig) *Backoff {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.Multiplier < 1 {
		config.Multiplier = 1
	}
	return &Backoff{config: config}
}

// WithNotify registers a callback for failed attempts
func (b *Backoff) WithNotify(fn NotifyFunc) *Backoff {
	b.notify = fn
	return b
}

// Retry executes the operation until it succeeds, attempts run out or ctx ends
func (b *Backoff) Retry(ctx context.Context, operation func() error) error {
	return b.RetryWithPredicate(ctx, operation, func(error) bool { return true })
}

// RetryWithPredicate is Retry, but stops at the first error isRetryable rejects
func (b *Backoff) RetryWithPredicate(ctx context.Context, operation func() error, isRetryable func(error) bool) error {
	var lastErr error

	for attempt := 1; attempt <= b.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == b.config.MaxAttempts {
			break
		}

		delay := b.calculateDelay(attempt)
		if b.notify != nil {
			b.notify(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// GetNextDelay returns the delay used after the given attempt
func (b *Backoff) GetNextDelay(attempt int) time.Duration {
	return b.calculateDelay(attempt)
}

func (b *Backoff) calculateDelay(attempt int) time.Duration {
	delay := float64(b.config.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= b.config.Multiplier
	}
	if delay > float64(b.config.MaxDelay) {
		delay = float64(b.config.MaxDelay)
	}

	// +/-25%
	if b.config.Jitter {
		delay += (rand.Float64() - 0.5) * 0.5 * delay
		if delay < 0 {
			delay = float64(b.config.InitialDelay)
		}
		if delay > float64(b.config.MaxDelay) {
			delay = float64(b.config.MaxDelay)
		}
	}

	return time.Duration(delay)
}
