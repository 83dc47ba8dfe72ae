package orchestrator

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultEmitTimeout is how long Emit waits on a full buffer before dropping.
const DefaultEmitTimeout = 100 * time.Millisecond

// EventEmitter delivers run, cycle and pick/place attempt events to one
// consumer, such as the CLI event log or the dashboard. The run never blocks on
// a slow consumer for longer than the emit timeout; late events are counted
// and dropped.
type EventEmitter struct {
	events  chan OrchestratorEvent
	timeout time.Duration
	dropped atomic.Uint64
	logger  *zap.Logger

	closeOnce sync.Once
}

// NewEventEmitter creates an emitter buffering up to bufferSize events.
// A nil logger disables drop warnings.
func NewEventEmitter(bufferSize int, logger *zap.Logger) *EventEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventEmitter{
		events:  make(chan OrchestratorEvent, bufferSize),
		timeout: DefaultEmitTimeout,
		logger:  logger,
	}
}

// Emit queues ev and reports whether it was delivered to the buffer.
func (e *EventEmitter) Emit(ev OrchestratorEvent) bool {
	select {
	case e.events <- ev:
		return true
	default:
	}

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()
	select {
	case e.events <- ev:
		return true
	case <-timer.C:
	}

	// Warn on the first drop and every tenth after it.
	if n := e.dropped.Add(1); n%10 == 1 {
		e.logger.Warn("event consumer is behind, dropping events",
			zap.Uint64("dropped_total", n),
			zap.String("type", string(ev.Type)),
			zap.String("item", ev.ItemID),
			zap.Int("cycle", ev.Cycle))
	}
	return false
}

// DroppedCount returns how many events were dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.dropped.Load()
}

// Events returns the channel the consumer ranges over. It is closed by Close.
func (e *EventEmitter) Events() <-chan OrchestratorEvent {
	return e.events
}

// Close ends the stream. Call it once Run has returned; later calls are no-ops.
func (e *EventEmitter) Close() {
	e.closeOnce.Do(func() { close(e.events) })
}
