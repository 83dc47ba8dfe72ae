package place

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcticfish-wang/pickplace/pkg/models"
)

func testConfig() models.GraspConfig {
	return models.GraspConfig{
		BaseLink:               "base",
		ObjectSize:             0.04,
		ApproachRetreatDesired: 0.1,
		ApproachRetreatMin:     0.05,
		PreGraspPosture:        []float64{0.02},
	}
}

func TestNewGeneratorRejectsInvertedDistances(t *testing.T) {
	cfg := testConfig()
	cfg.ApproachRetreatDesired = 0.01

	_, err := NewGenerator(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below min distance")
}

func TestGenerate(t *testing.T) {
	g, err := NewGenerator(testConfig())
	require.NoError(t, err)

	goals := []models.Pose{
		models.NewPose(0.55, -0.2, -0.28),
		models.NewPose(0, 0, 0).WithOrientation(models.RotationAboutAxis(0.7, r3.Vector{X: 1, Y: 1})),
		models.NewPose(-3, 12.5, 1).WithOrientation(models.RotationAboutAxis(2.1, models.UnitZ)),
	}
	wantYaw := []s1.Angle{0, 90 * s1.Degree, 180 * s1.Degree, -90 * s1.Degree}

	for _, goal := range goals {
		cands := g.Generate(goal)
		require.Len(t, cands, 4)

		for i, c := range cands {
			assert.Equal(t, goal.Position, c.PlacePose.Position, "position must be held fixed")
			assert.True(t, c.PlacePose.IsUnit(1e-9))
			assert.InDelta(t, wantYaw[i].Radians(), c.PlacePose.Yaw().Radians(), 1e-9)

			// pure rotation about Z: no x/y quaternion components
			assert.InDelta(t, 0, c.PlacePose.Orientation.Imag, 1e-12)
			assert.InDelta(t, 0, c.PlacePose.Orientation.Jmag, 1e-12)

			assert.Equal(t, r3.Vector{Z: -1}, c.Approach.Direction)
			assert.Equal(t, r3.Vector{Z: 1}, c.Retreat.Direction)
			assert.Equal(t, 0.1, c.Approach.DesiredDistance)
			assert.Equal(t, 0.05, c.Approach.MinDistance)
			assert.Equal(t, c.Approach.DesiredDistance, c.Retreat.DesiredDistance)
			assert.Equal(t, c.Approach.MinDistance, c.Retreat.MinDistance)
			assert.Equal(t, "base", c.Frame)
			assert.Equal(t, []float64{0.02}, c.PostPlacePosture)
		}
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	g, err := NewGenerator(testConfig())
	require.NoError(t, err)

	goal := models.NewPose(0.65, -0.2, -0.28)
	assert.Equal(t, g.Generate(goal), g.Generate(goal))
}

func TestGenerateCopiesPosture(t *testing.T) {
	g, err := NewGenerator(testConfig())
	require.NoError(t, err)

	cands := g.Generate(models.NewPose(0, 0, 0))
	cands[0].PostPlacePosture[0] = math.Inf(1)
	assert.Equal(t, 0.02, cands[1].PostPlacePosture[0])
	assert.Equal(t, 0.02, g.Generate(models.NewPose(0, 0, 0))[0].PostPlacePosture[0])
}
