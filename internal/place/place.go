// Package place generates candidate place locations for a goal pose.
package place

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s1"

	"github.com/arcticfish-wang/pickplace/pkg/models"
)

// Orientations are the yaw offsets tried for every goal, in preference order.
var Orientations = []s1.Angle{0, 90 * s1.Degree, 180 * s1.Degree, 270 * s1.Degree}

var (
	approachDirection = r3.Vector{Z: -1}
	retreatDirection  = r3.Vector{Z: 1}
)

// Generator builds place candidates from a fixed grasp configuration.
type Generator struct {
	cfg models.GraspConfig
}

// NewGenerator validates the approach/retreat distances once, at startup.
func NewGenerator(cfg models.GraspConfig) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("place generator: %w", err)
	}
	return &Generator{cfg: cfg}, nil
}

// Generate returns one candidate per entry in Orientations. Each keeps the goal
// position and replaces its orientation with a pure rotation about world Z.
// The result depends only on goal and the generator's configuration.
func (g *Generator) Generate(goal models.Pose) []models.PlaceCandidate {
	approach := g.hint(approachDirection)
	retreat := g.hint(retreatDirection)

	out := make([]models.PlaceCandidate, 0, len(Orientations))
	for _, angle := range Orientations {
		out = append(out, models.PlaceCandidate{
			PlacePose:        goal.WithOrientation(models.RotationAboutAxis(angle, models.UnitZ)),
			Frame:            g.cfg.BaseLink,
			Approach:         approach,
			Retreat:          retreat,
			PostPlacePosture: append([]float64(nil), g.cfg.PreGraspPosture...),
		})
	}
	return out
}

func (g *Generator) hint(dir r3.Vector) models.MotionHint {
	return models.MotionHint{
		Direction:       dir,
		Frame:           g.cfg.BaseLink,
		DesiredDistance: g.cfg.ApproachRetreatDesired,
		MinDistance:     g.cfg.ApproachRetreatMin,
	}
}
