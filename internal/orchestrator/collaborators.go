package orchestrator

import (
	"context"

	"github.com/arcticfish-wang/pickplace/pkg/models"
)

// Actuator toggles the arm's power/safety state.
type Actuator interface {
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
}

// MotionService plans and executes picks and places. The bool reports overall
// success; an error means the service itself failed and the run cannot go on.
// Candidates are listed in preference order.
type MotionService interface {
	Pick(ctx context.Context, id string, grasps []models.GraspCandidate) (bool, error)
	Place(ctx context.Context, id string, places []models.PlaceCandidate) (bool, error)
}
