package orchestrator

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// errPauseStopped is returned by WaitIfPaused once Stop has been called.
var errPauseStopped = errors.New("pause controller stopped")

// PauseController holds the run between attempts while an operator has it
// paused. It is safe for concurrent use; the signal watcher toggles it while
// the orchestrator waits on it.
type PauseController struct {
	paused  bool
	stopped bool
	mu      sync.Mutex
	cond    *sync.Cond
	logger  *zap.Logger
}

// NewPauseController creates a new PauseController. A nil logger disables logging.
func NewPauseController(logger *zap.Logger) *PauseController {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &PauseController{logger: logger}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Pause holds the run before its next attempt.
func (p *PauseController) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		p.paused = true
		p.logger.Info("paused, no new attempts will start")
	}
}

// Resume releases a paused run.
func (p *PauseController) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		p.paused = false
		p.logger.Info("resumed")
		p.cond.Broadcast()
	}
}

// Stop unblocks any WaitIfPaused calls for good.
func (p *PauseController) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped {
		p.stopped = true
		p.cond.Broadcast()
	}
}

// IsPaused returns whether execution is currently paused.
func (p *PauseController) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// WaitIfPaused blocks until the controller is resumed or stopped, or ctx is done.
func (p *PauseController) WaitIfPaused(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused && !p.stopped {
		// One helper per wait so a cancelled ctx wakes the cond.
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				p.mu.Lock()
				p.cond.Broadcast()
				p.mu.Unlock()
			case <-done:
			}
		}()

		for p.paused && !p.stopped {
			p.cond.Wait()
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
	if p.stopped {
		return errPauseStopped
	}
	return nil
}
