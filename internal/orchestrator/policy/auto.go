package policy

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AutoRetryPolicy always answers yes after a fixed delay. It never prompts, so a
// run in auto mode continues until its context is cancelled.
type AutoRetryPolicy struct {
	delay  time.Duration
	logger *zap.Logger
}

// NewAutoRetryPolicy creates an auto policy.
func NewAutoRetryPolicy(delay time.Duration, logger *zap.Logger) *AutoRetryPolicy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoRetryPolicy{delay: delay, logger: logger}
}

// Delay returns the configured backoff.
func (p *AutoRetryPolicy) Delay() time.Duration {
	return p.delay
}

// ShouldRetry waits out the delay and returns true, or false if ctx ends first.
func (p *AutoRetryPolicy) ShouldRetry(ctx context.Context) bool {
	return p.wait(ctx, "retry")
}

// ShouldRepeatAll behaves like ShouldRetry.
func (p *AutoRetryPolicy) ShouldRepeatAll(ctx context.Context) bool {
	return p.wait(ctx, "repeat")
}

func (p *AutoRetryPolicy) wait(ctx context.Context, question string) bool {
	if ctx.Err() != nil {
		return false
	}
	p.logger.Info("auto-retrying",
		zap.String("question", question),
		zap.Duration("delay", p.delay))
	if p.delay <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(p.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
