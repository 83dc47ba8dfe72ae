// Package scene builds the static environment the arm works in and keeps the
// planning scene's view of each work item in sync with the run.
package scene

import (
	"context"
	"fmt"

	"github.com/golang/geo/r3"
	"go.uber.org/zap"

	"github.com/arcticfish-wang/pickplace/pkg/models"
)

// Publisher is the visualization/environment collaborator. Every call is a
// side effect; returned errors are logged and never change control flow.
type Publisher interface {
	// PublishStaticScene publishes the fixed obstacles. Must be idempotent.
	PublishStaticScene(ctx context.Context, obstacles []models.Obstacle) error
	// PublishCollisionObject adds (or replaces) the collision box for id.
	PublishCollisionObject(ctx context.Context, id string, pose models.Pose, size float64) error
	// RemoveCollisionObject removes the collision box for id, if any.
	RemoveCollisionObject(ctx context.Context, id string) error
	// RemoveAttachedObject detaches id from the gripper, if attached.
	RemoveAttachedObject(ctx context.Context, id string) error
	// PublishMarker renders an object outline. goal selects the goal styling.
	PublishMarker(ctx context.Context, pose models.Pose, size float64, goal bool) error
}

// Table describes the support surface.
type Table struct {
	Name string
	// Center is the box center in the base frame.
	Center r3.Vector
	// Size is the full extent of the table box.
	Size r3.Vector
}

// Top returns the z of the table's upper surface.
func (t Table) Top() float64 {
	return t.Center.Z + t.Size.Z/2
}

// Obstacle converts the table to a scene obstacle.
func (t Table) Obstacle() models.Obstacle {
	return models.Obstacle{Name: t.Name, Center: t.Center, Size: t.Size}
}

// Range is a closed interval.
type Range struct {
	Min, Max float64
}

// Contains reports whether v lies in the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Setup owns the static environment and performs item resets.
type Setup struct {
	table      Table
	walls      []models.Obstacle
	objectSize float64
	publisher  Publisher
	logger     *zap.Logger
}

// NewSetup creates a scene setup. A nil logger disables logging.
func NewSetup(table Table, walls []models.Obstacle, objectSize float64, pub Publisher, logger *zap.Logger) (*Setup, error) {
	if pub == nil {
		return nil, fmt.Errorf("scene publisher is required")
	}
	if objectSize <= 0 {
		return nil, fmt.Errorf("object size must be positive, got %.3f", objectSize)
	}
	if table.Size.X <= 0 || table.Size.Y <= 0 || table.Size.Z <= 0 {
		return nil, fmt.Errorf("table %q has a non-positive dimension", table.Name)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Setup{
		table:      table,
		walls:      append([]models.Obstacle(nil), walls...),
		objectSize: objectSize,
		publisher:  pub,
		logger:     logger,
	}, nil
}

// Obstacles returns the static geometry: the table followed by the walls.
func (s *Setup) Obstacles() []models.Obstacle {
	obs := make([]models.Obstacle, 0, len(s.walls)+1)
	obs = append(obs, s.table.Obstacle())
	obs = append(obs, s.walls...)
	return obs
}

// SupportSurface returns the name of the surface objects rest on.
func (s *Setup) SupportSurface() string {
	return s.table.Name
}

// ObjectSize returns the edge length of the manipulated objects.
func (s *Setup) ObjectSize() float64 {
	return s.objectSize
}

// ObjectRestingZ returns the z of an object's center when it sits on the table.
func (s *Setup) ObjectRestingZ() float64 {
	return s.table.Top() + s.objectSize/2
}

// WidthRange returns the y interval an object center can occupy on the table.
func (s *Setup) WidthRange() Range {
	half := s.table.Size.Y / 2
	return Range{
		Min: s.table.Center.Y - half + s.objectSize/2,
		Max: s.table.Center.Y + half - s.objectSize/2,
	}
}

// DepthRange returns the x interval an object center can occupy on the table.
func (s *Setup) DepthRange() Range {
	half := s.table.Size.X / 2
	return Range{
		Min: s.table.Center.X - half + s.objectSize/2,
		Max: s.table.Center.X + half - s.objectSize/2,
	}
}

// OnTable reports whether pose's position lies over the usable table area.
func (s *Setup) OnTable(p models.Pose) bool {
	return s.WidthRange().Contains(p.Position.Y) && s.DepthRange().Contains(p.Position.X)
}

// PublishStatic publishes the static obstacles.
func (s *Setup) PublishStatic(ctx context.Context) {
	obs := s.Obstacles()
	if err := s.publisher.PublishStaticScene(ctx, obs); err != nil {
		s.logger.Warn("publish static scene failed", zap.Error(err))
		return
	}
	s.logger.Debug("static scene published", zap.Int("obstacles", len(obs)))
}

// ResetItem returns an item to its start state: any attached or collision
// representation is removed, then the collision box is re-published at the
// start pose. Calling it twice leaves the same scene as calling it once.
func (s *Setup) ResetItem(ctx context.Context, item models.WorkItem) {
	log := s.logger.With(zap.String("item", item.ID))
	if err := s.publisher.RemoveAttachedObject(ctx, item.ID); err != nil {
		log.Warn("remove attached object failed", zap.Error(err))
	}
	if err := s.publisher.RemoveCollisionObject(ctx, item.ID); err != nil {
		log.Warn("remove collision object failed", zap.Error(err))
	}
	if err := s.publisher.PublishCollisionObject(ctx, item.ID, item.StartPose, s.objectSize); err != nil {
		log.Warn("publish collision object failed", zap.Error(err))
	}
}

// ShowItem renders a marker for an item at pose.
func (s *Setup) ShowItem(ctx context.Context, pose models.Pose, goal bool) {
	if err := s.publisher.PublishMarker(ctx, pose, s.objectSize, goal); err != nil {
		s.logger.Debug("publish marker failed", zap.Error(err))
	}
}
