package sim

import (
	"context"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcticfish-wang/pickplace/pkg/models"
)

func TestWorldPublishAndRemove(t *testing.T) {
	ctx := context.Background()
	w := NewWorld()

	require.NoError(t, w.PublishCollisionObject(ctx, "Block1", models.NewPose(1, 0, 0), 0.04))
	require.NoError(t, w.PublishCollisionObject(ctx, "Block1", models.NewPose(2, 0, 0), 0.04))

	objs := w.Objects()
	require.Len(t, objs, 1)
	assert.InDelta(t, 2.0, objs[0].Pose.Position.X, 1e-12)

	require.NoError(t, w.RemoveCollisionObject(ctx, "Block1"))
	require.NoError(t, w.RemoveCollisionObject(ctx, "missing"))
	assert.Empty(t, w.Objects())
}

func TestMotionServicePickThenPlace(t *testing.T) {
	ctx := context.Background()
	w := NewWorld()
	m := NewMotionService(w, PlanningOptions{Group: "right_arm"}, nil)
	start := models.NewPose(0.55, -0.4, 0)
	goal := start.Translate(r3.Vector{Y: 0.2})

	require.NoError(t, w.PublishCollisionObject(ctx, "Block1", start, 0.04))

	ok, err := m.Pick(ctx, "Block1", []models.GraspCandidate{{Pose: start}})
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, w.IsAttached("Block1"))
	_, inScene := w.Object("Block1")
	assert.False(t, inScene)

	ok, err = m.Place(ctx, "Block1", []models.PlaceCandidate{{PlacePose: goal}})
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, w.IsAttached("Block1"))
	obj, inScene := w.Object("Block1")
	require.True(t, inScene)
	assert.True(t, obj.Pose.ApproxEqual(goal, 1e-9))

	calls := m.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "pick", calls[0].Op)
	assert.Equal(t, "place", calls[1].Op)
}

func TestMotionServiceFailsWithoutObjectOrGrasps(t *testing.T) {
	ctx := context.Background()
	w := NewWorld()
	m := NewMotionService(w, PlanningOptions{}, nil)

	ok, err := m.Pick(ctx, "ghost", []models.GraspCandidate{{}})
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, w.PublishCollisionObject(ctx, "Block1", models.NewPose(0, 0, 0), 0.04))
	ok, err = m.Pick(ctx, "Block1", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.Place(ctx, "Block1", []models.PlaceCandidate{{}})
	require.NoError(t, err)
	assert.False(t, ok, "place must fail when nothing is attached")
}

func TestMotionServiceHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMotionService(NewWorld(), PlanningOptions{}, nil)

	_, err := m.Pick(ctx, "Block1", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScriptedDecider(t *testing.T) {
	d := ScriptedDecider(map[string][]bool{"pick": {false, true}})

	assert.False(t, d("pick", "a", 1))
	assert.True(t, d("pick", "a", 2))
	assert.True(t, d("pick", "a", 3), "exhausted script succeeds")
	assert.True(t, d("place", "a", 1))
}

func TestRandomDeciderIsDeterministicPerSeed(t *testing.T) {
	a := RandomDecider(0.5, 42)
	b := RandomDecider(0.5, 42)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a("pick", "x", i), b("pick", "x", i))
	}

	never := RandomDecider(0, 1)
	always := RandomDecider(1, 1)
	for i := 0; i < 10; i++ {
		assert.True(t, never("pick", "x", i))
		assert.False(t, always("pick", "x", i))
	}
}

func TestGraspGenerator(t *testing.T) {
	cfg := models.GraspConfig{ObjectSize: 0.04, ApproachRetreatMin: 0.05}
	obj := models.NewPose(0.55, -0.4, 0.02)

	grasps, err := GraspGenerator{Count: 8}.GenerateGrasps(context.Background(), obj, cfg)
	require.NoError(t, err)
	require.Len(t, grasps, 8)
	for _, g := range grasps {
		assert.True(t, g.IsUnit(1e-9))
		assert.InDelta(t, 0.55, g.Position.X, 1e-12)
		assert.InDelta(t, 0.02+0.02+0.05, g.Position.Z, 1e-12)
	}
	// consecutive grasps differ in yaw
	assert.False(t, grasps[0].ApproxEqual(grasps[1], 1e-6))
	assert.False(t, math.IsNaN(grasps[3].Orientation.Real))

	none, err := GraspGenerator{}.GenerateGrasps(context.Background(), obj, cfg)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestActuator(t *testing.T) {
	ctx := context.Background()
	a := NewActuator(false)
	require.NoError(t, a.Enable(ctx))
	assert.True(t, a.Enabled())
	require.NoError(t, a.Disable(ctx))
	assert.False(t, a.Enabled())

	refusing := NewActuator(true)
	assert.ErrorIs(t, refusing.Enable(ctx), ErrEnableRefused)
	assert.False(t, refusing.Enabled())
	e, d := refusing.Counts()
	assert.Equal(t, 1, e)
	assert.Equal(t, 0, d)
}
