// Package policy decides whether the orchestrator retries after a failure and
// whether it repeats the whole cycle once every item is placed.
//
// Two strategies exist and one is selected at startup: AutoRetryPolicy waits a
// fixed delay and always says yes, InteractiveRetryPolicy asks the operator.
// Both say no as soon as the run's context is cancelled.
package policy

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

// DefaultAutoRetryDelay is the backoff used in auto mode when none is configured.
const DefaultAutoRetryDelay = 4 * time.Second

// RetryPolicy answers the orchestrator's two yes/no questions.
type RetryPolicy interface {
	// ShouldRetry is asked after a failed pick or place attempt.
	ShouldRetry(ctx context.Context) bool
	// ShouldRepeatAll is asked after every item in the cycle succeeded.
	ShouldRepeatAll(ctx context.Context) bool
}

// Config selects and parameterizes the retry strategy.
type Config struct {
	// AutoRetry selects AutoRetryPolicy when true, InteractiveRetryPolicy otherwise.
	AutoRetry bool
	// AutoRetryDelay is the wait before each automatic yes.
	AutoRetryDelay time.Duration
}

// Default returns the default policy configuration.
func Default() *Config {
	return &Config{
		AutoRetry:      true,
		AutoRetryDelay: DefaultAutoRetryDelay,
	}
}

// Validate checks that policy values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.AutoRetryDelay < 0 {
		return fmt.Errorf("auto retry delay must not be negative, got %s", c.AutoRetryDelay)
	}
	return nil
}

// New builds the strategy named by cfg. in and out are only used in
// interactive mode. A nil logger disables logging.
func New(cfg Config, in io.Reader, out io.Writer, logger *zap.Logger) RetryPolicy {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AutoRetry {
		return NewAutoRetryPolicy(cfg.AutoRetryDelay, logger)
	}
	return NewInteractiveRetryPolicy(in, out, logger)
}
