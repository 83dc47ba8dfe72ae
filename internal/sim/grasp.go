package sim

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s1"
	"gonum.org/v1/gonum/num/quat"

	"github.com/arcticfish-wang/pickplace/pkg/models"
)

// GraspGenerator produces top-down grasps spaced evenly about the object's
// vertical axis.
type GraspGenerator struct {
	// Count is the number of grasps per object. Zero yields no grasps.
	Count int
}

// GenerateGrasps returns Count gripper poses above the object, pointing down,
// offset by half the object size plus the desired approach distance.
func (g GraspGenerator) GenerateGrasps(_ context.Context, pose models.Pose, cfg models.GraspConfig) ([]models.Pose, error) {
	if g.Count <= 0 {
		return nil, nil
	}
	down := models.RotationAboutAxis(s1.Angle(math.Pi), r3.Vector{X: 1})
	lift := r3.Vector{Z: cfg.ObjectSize/2 + cfg.ApproachRetreatMin}
	step := 2 * math.Pi / float64(g.Count)

	grasps := make([]models.Pose, 0, g.Count)
	for i := 0; i < g.Count; i++ {
		yaw := models.RotationAboutAxis(s1.Angle(float64(i)*step), models.UnitZ)
		q := quat.Mul(pose.Orientation, quat.Mul(yaw, down))
		q = quat.Scale(1/quat.Abs(q), q)
		grasps = append(grasps, pose.Translate(lift).WithOrientation(q))
	}
	return grasps, nil
}
