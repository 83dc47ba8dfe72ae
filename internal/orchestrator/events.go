package orchestrator

import (
	"time"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventRunStarted indicates the actuator is enabled and the run began.
	EventRunStarted EventType = "run_started"
	// EventCycleStarted indicates every item was reset for a new cycle.
	EventCycleStarted EventType = "cycle_started"
	// EventPickStarted indicates a pick attempt is about to be requested.
	EventPickStarted EventType = "pick_started"
	// EventPickSucceeded indicates the object is in the gripper.
	EventPickSucceeded EventType = "pick_succeeded"
	// EventPickFailed indicates a pick attempt failed.
	EventPickFailed EventType = "pick_failed"
	// EventPlaceStarted indicates a place attempt is about to be requested.
	EventPlaceStarted EventType = "place_started"
	// EventPlaceSucceeded indicates the object was released at its goal.
	EventPlaceSucceeded EventType = "place_succeeded"
	// EventPlaceFailed indicates a place attempt failed.
	EventPlaceFailed EventType = "place_failed"
	// EventCycleCompleted indicates every item in the cycle was placed.
	EventCycleCompleted EventType = "cycle_completed"
	// EventRunDone indicates the run reached a terminal state.
	EventRunDone EventType = "run_done"
)

// OrchestratorEvent represents an event emitted by the orchestrator.
type OrchestratorEvent struct {
	// Type is the kind of event.
	Type EventType
	// RunID identifies the run.
	RunID string
	// ItemID is the related work item, if applicable.
	ItemID string
	// Cycle is the 1-based cycle number, zero before the first cycle.
	Cycle int
	// Attempt is the 1-based attempt number for pick/place events.
	Attempt int
	// State is the state machine state when the event was emitted.
	State State
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
