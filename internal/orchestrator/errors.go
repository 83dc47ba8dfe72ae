package orchestrator

import (
	"errors"

	"github.com/arcticfish-wang/pickplace/internal/grasp"
)

// Run outcomes. Run wraps these with %w; match them with errors.Is.
var (
	// ErrActuatorEnableFailed means the arm could not be enabled; the run never started.
	ErrActuatorEnableFailed = errors.New("actuator enable failed")
	// ErrNoGraspsFound means the grasp generator proposed nothing. It counts as a pick failure.
	ErrNoGraspsFound = grasp.ErrNoGraspsFound
	// ErrPickFailed means the motion service could not pick the object.
	ErrPickFailed = errors.New("pick failed")
	// ErrPlaceFailed means the motion service could not place the object.
	ErrPlaceFailed = errors.New("place failed")
	// ErrOperatorAbort means the operator declined a retry.
	ErrOperatorAbort = errors.New("operator aborted")
	// ErrShutdownRequested means the run's context was cancelled.
	ErrShutdownRequested = errors.New("shutdown requested")
	// ErrCollaborator means a collaborator returned an error rather than a failure verdict.
	ErrCollaborator = errors.New("collaborator error")
	// ErrInvalidConfig means the orchestrator could not be constructed.
	ErrInvalidConfig = errors.New("invalid configuration")
)
