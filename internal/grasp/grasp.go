// Package grasp turns raw grasp poses from a grasp generator into annotated
// pick requests.
package grasp

import (
	"context"
	"errors"
	"fmt"

	"github.com/arcticfish-wang/pickplace/pkg/models"
)

// ErrNoGraspsFound is returned when the generator proposes no grasps.
var ErrNoGraspsFound = errors.New("no grasps found")

// Generator synthesizes gripper poses for an object. Its algorithm is opaque
// to this package.
type Generator interface {
	GenerateGrasps(ctx context.Context, pose models.Pose, cfg models.GraspConfig) ([]models.Pose, error)
}

// Builder annotates generated grasps with the run's touch permissions.
type Builder struct {
	gen       Generator
	cfg       models.GraspConfig
	touchable []string
}

// NewBuilder creates a builder. touchIDs is the set of objects the end
// effector may nudge during any pick; objects sit close together on the
// support surface, so every object in the run is listed.
func NewBuilder(gen Generator, cfg models.GraspConfig, touchIDs []string) (*Builder, error) {
	if gen == nil {
		return nil, fmt.Errorf("grasp generator is required")
	}
	return &Builder{
		gen:       gen,
		cfg:       cfg,
		touchable: append([]string(nil), touchIDs...),
	}, nil
}

// Build requests grasps for an object at start and returns them in generator
// order. An empty result is ErrNoGraspsFound.
func (b *Builder) Build(ctx context.Context, start models.Pose) ([]models.GraspCandidate, error) {
	poses, err := b.gen.GenerateGrasps(ctx, start, b.cfg)
	if err != nil {
		return nil, fmt.Errorf("generate grasps: %w", err)
	}
	if len(poses) == 0 {
		return nil, ErrNoGraspsFound
	}

	out := make([]models.GraspCandidate, len(poses))
	for i, p := range poses {
		out[i] = models.GraspCandidate{
			Pose:            p,
			Config:          b.cfg,
			AllowedTouchIDs: append([]string(nil), b.touchable...),
		}
	}
	return out, nil
}

// TouchIDs returns the objects every grasp may touch.
func (b *Builder) TouchIDs() []string {
	return append([]string(nil), b.touchable...)
}
