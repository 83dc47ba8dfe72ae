package orchestrator

import (
	"time"

	"github.com/arcticfish-wang/pickplace/pkg/models"
)

// State is a state of the orchestration state machine.
type State string

const (
	StateInit         State = "init"
	StateSceneReady   State = "scene_ready"
	StatePickAttempt  State = "pick_attempt"
	StatePlaceAttempt State = "place_attempt"
	StateCompleted    State = "completed"
	StateAborted      State = "aborted"
	StateStopped      State = "stopped"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateAborted || s == StateStopped
}

// RunState is the orchestrator's mutable state for one run. It is owned by
// the Orchestrator and only touched from Run.
type RunState struct {
	ID             string
	WorkItems      []models.WorkItem
	AutoRetry      bool
	AutoRetryDelay time.Duration
	// MaxCycles bounds the repeat loop; zero means unbounded.
	MaxCycles int

	State           State
	Cycle           int
	CyclesCompleted int
	CurrentItem     string
	PickAttempts    int
	PlaceAttempts   int
}

// Result summarizes a finished run.
type Result struct {
	RunID           string
	FinalState      State
	CyclesCompleted int
	PickAttempts    int
	PlaceAttempts   int
}
