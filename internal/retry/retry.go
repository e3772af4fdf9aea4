// Package retry provides a bounded retry helper with a fixed delay between
// attempts. Intermediate failures are suppressed; only the final attempt's
// error propagates.
package retry

import (
	"context"
	"time"

	"github.com/kuitang/e2ekit/internal/obs"
)

// Config bounds a retried action.
type Config struct {
	Attempts int           // total invocations, not re-tries; default 3
	Delay    time.Duration // fixed pause between attempts; default 500ms
}

// DefaultConfig matches the harness-wide retry policy.
var DefaultConfig = Config{
	Attempts: 3,
	Delay:    500 * time.Millisecond,
}

func (c Config) withDefaults() Config {
	if c.Attempts <= 0 {
		c.Attempts = DefaultConfig.Attempts
	}
	if c.Delay <= 0 {
		c.Delay = DefaultConfig.Delay
	}
	return c
}

// Do invokes fn until it succeeds or cfg.Attempts is exhausted, pausing
// cfg.Delay between attempts. Context cancellation aborts between attempts
// with the context's error.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	cfg = cfg.withDefaults()
	log := obs.From(ctx)

	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == cfg.Attempts {
			break
		}

		log.Debug("retrying after failure",
			"attempt", attempt,
			"max_attempts", cfg.Attempts,
			"error", lastErr.Error())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Delay):
		}
	}
	return lastErr
}
