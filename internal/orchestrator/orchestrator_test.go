package orchestrator_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arcticfish-wang/pickplace/internal/orchestrator"
	"github.com/arcticfish-wang/pickplace/internal/orchestrator/policy"
	"github.com/arcticfish-wang/pickplace/internal/scene"
	"github.com/arcticfish-wang/pickplace/internal/sim"
	"github.com/arcticfish-wang/pickplace/internal/state"
	"github.com/arcticfish-wang/pickplace/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedPolicy answers from fixed lists; an exhausted list answers no.
type scriptedPolicy struct {
	mu          sync.Mutex
	retries     []bool
	repeats     []bool
	retryCalls  int
	repeatCalls int
}

func (p *scriptedPolicy) ShouldRetry(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.retryCalls
	p.retryCalls++
	return ctx.Err() == nil && i < len(p.retries) && p.retries[i]
}

func (p *scriptedPolicy) ShouldRepeatAll(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.repeatCalls
	p.repeatCalls++
	return ctx.Err() == nil && i < len(p.repeats) && p.repeats[i]
}

// countingScene records resets per item on top of a real scene.Setup.
type countingScene struct {
	*scene.Setup
	mu     sync.Mutex
	resets map[string]int
	static int
}

func (s *countingScene) PublishStatic(ctx context.Context) {
	s.mu.Lock()
	s.static++
	s.mu.Unlock()
	s.Setup.PublishStatic(ctx)
}

func (s *countingScene) ResetItem(ctx context.Context, item models.WorkItem) {
	s.mu.Lock()
	s.resets[item.ID]++
	s.mu.Unlock()
	s.Setup.ResetItem(ctx, item)
}

func (s *countingScene) Resets(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets[id]
}

type fixture struct {
	world    *sim.World
	actuator *sim.Actuator
	motion   *sim.MotionService
	scene    *countingScene
	req      orchestrator.RequiredConfig
}

const blockSize = 0.04

func newFixture(t *testing.T, n int, decide sim.Decider) *fixture {
	t.Helper()
	world := sim.NewWorld()
	table := scene.Table{Name: "table", Center: r3.Vector{X: 0.65, Y: -0.2, Z: -0.2}, Size: r3.Vector{X: 0.6, Y: 1.2, Z: 0.4}}
	setup, err := scene.NewSetup(table, nil, blockSize, world, nil)
	require.NoError(t, err)

	items := make([]models.WorkItem, 0, n)
	ids := []string{"Block1", "Block2", "Block3", "Block4"}
	for i := 0; i < n; i++ {
		start := models.NewPose(0.55+0.1*float64(i), -0.4, setup.ObjectRestingZ())
		items = append(items, models.NewWorkItem(ids[i], start, r3.Vector{Y: 0.2}))
	}

	f := &fixture{
		world:    world,
		actuator: sim.NewActuator(false),
		motion:   sim.NewMotionService(world, sim.PlanningOptions{Group: "arm"}, decide),
		scene:    &countingScene{Setup: setup, resets: make(map[string]int)},
	}
	f.req = orchestrator.RequiredConfig{
		WorkItems:      items,
		Actuator:       f.actuator,
		Motion:         f.motion,
		Scene:          f.scene,
		GraspGenerator: sim.GraspGenerator{Count: 4},
		GraspConfig: models.GraspConfig{
			EndEffectorGroup:       "gripper",
			BaseLink:               "base",
			ObjectSize:             blockSize,
			ApproachRetreatDesired: 0.1,
			ApproachRetreatMin:     0.03,
			PreGraspPosture:        []float64{0.04, 0.04},
			GraspPosture:           []float64{0, 0},
		},
		Retry: policy.Config{AutoRetry: false},
	}
	return f
}

func (f *fixture) build(t *testing.T, opts ...orchestrator.Option) *orchestrator.Orchestrator {
	t.Helper()
	opts = append([]orchestrator.Option{orchestrator.WithSettleDelay(0)}, opts...)
	o, err := orchestrator.New(f.req, opts...)
	require.NoError(t, err)
	return o
}

func (f *fixture) assertAtGoals(t *testing.T) {
	t.Helper()
	for _, item := range f.req.WorkItems {
		obj, ok := f.world.Object(item.ID)
		require.True(t, ok, "item %s missing from scene", item.ID)
		assert.InDelta(t, 0, obj.Pose.Position.Sub(item.GoalPose.Position).Norm(), 1e-9, "item %s not at goal", item.ID)
		assert.False(t, f.world.IsAttached(item.ID))
	}
}

func TestPickFailsOnceThenSucceeds(t *testing.T) {
	f := newFixture(t, 1, sim.ScriptedDecider(map[string][]bool{"pick": {false}}))
	retry := &scriptedPolicy{retries: []bool{true}}

	result, err := f.build(t, orchestrator.WithRetryPolicy(retry)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, orchestrator.StateStopped, result.FinalState)
	assert.Equal(t, 1, result.CyclesCompleted)
	assert.Equal(t, 2, result.PickAttempts)
	assert.Equal(t, 1, result.PlaceAttempts)
	assert.Equal(t, 1, retry.retryCalls)
	assert.Equal(t, 1, retry.repeatCalls)

	// Cycle start plus one reset before the retried pick.
	assert.Equal(t, 2, f.scene.Resets("Block1"))

	calls := f.motion.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, sim.Call{Op: "pick", ID: "Block1", Candidates: 4, Success: false}, calls[0])
	assert.Equal(t, sim.Call{Op: "pick", ID: "Block1", Candidates: 4, Success: true}, calls[1])
	assert.Equal(t, sim.Call{Op: "place", ID: "Block1", Candidates: 4, Success: true}, calls[2])

	f.assertAtGoals(t)
	assert.False(t, f.actuator.Enabled())
}

func TestThreeItemsRepeatOnce(t *testing.T) {
	f := newFixture(t, 3, nil)
	retry := &scriptedPolicy{repeats: []bool{true}}

	result, err := f.build(t, orchestrator.WithRetryPolicy(retry)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.CyclesCompleted)
	assert.Equal(t, 6, result.PickAttempts)
	assert.Equal(t, 6, result.PlaceAttempts)
	assert.Equal(t, 2, retry.repeatCalls)
	assert.Equal(t, 1, f.scene.static, "static scene is published once per run")

	var order []string
	for _, c := range f.motion.Calls() {
		order = append(order, c.Op+":"+c.ID)
	}
	cycle := []string{"pick:Block1", "place:Block1", "pick:Block2", "place:Block2", "pick:Block3", "place:Block3"}
	assert.Equal(t, append(append([]string{}, cycle...), cycle...), order)

	for _, item := range f.req.WorkItems {
		assert.Equal(t, 2, f.scene.Resets(item.ID), "every item is reset at the start of each cycle")
	}
	f.assertAtGoals(t)
}

func TestInteractiveNoAbortsAfterFirstPickFailure(t *testing.T) {
	f := newFixture(t, 2, sim.ScriptedDecider(map[string][]bool{"pick": {false, false, false}}))
	var out bytes.Buffer

	o := f.build(t, orchestrator.WithOperatorIO(strings.NewReader("n\n"), &out))
	result, err := o.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, orchestrator.ErrOperatorAbort)
	assert.ErrorIs(t, err, orchestrator.ErrPickFailed)
	assert.Equal(t, orchestrator.StateAborted, result.FinalState)
	assert.Equal(t, 0, result.CyclesCompleted)
	assert.Equal(t, 1, result.PickAttempts)
	assert.Len(t, f.motion.Calls(), 1)
	assert.Contains(t, out.String(), "Retry? (y/n)")

	_, disables := f.actuator.Counts()
	assert.Equal(t, 1, disables)
	assert.False(t, f.actuator.Enabled())
}

func TestInteractiveYesMakesProgress(t *testing.T) {
	f := newFixture(t, 1, sim.ScriptedDecider(map[string][]bool{
		"pick":  {false, false},
		"place": {false},
	}))

	// Three yeses for the failures; end of input declines the repeat.
	in := strings.NewReader("y\nyes\n  y\n")
	result, err := f.build(t, orchestrator.WithOperatorIO(in, nil)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.CyclesCompleted)
	assert.Equal(t, 3, result.PickAttempts)
	assert.Equal(t, 2, result.PlaceAttempts)
	f.assertAtGoals(t)
}

func TestPlaceRetryDoesNotReset(t *testing.T) {
	f := newFixture(t, 1, sim.ScriptedDecider(map[string][]bool{"place": {false, false}}))
	retry := &scriptedPolicy{retries: []bool{true, true}}

	result, err := f.build(t, orchestrator.WithRetryPolicy(retry)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.PickAttempts)
	assert.Equal(t, 3, result.PlaceAttempts)
	assert.Equal(t, 1, f.scene.Resets("Block1"))
	f.assertAtGoals(t)
}

func TestPlaceDeclinedAborts(t *testing.T) {
	f := newFixture(t, 1, sim.ScriptedDecider(map[string][]bool{"place": {false}}))

	result, err := f.build(t, orchestrator.WithRetryPolicy(&scriptedPolicy{})).Run(context.Background())
	assert.ErrorIs(t, err, orchestrator.ErrOperatorAbort)
	assert.ErrorIs(t, err, orchestrator.ErrPlaceFailed)
	assert.Equal(t, orchestrator.StateAborted, result.FinalState)
	assert.True(t, f.world.IsAttached("Block1"))
	assert.False(t, f.actuator.Enabled())
}

func TestAutoRetryUntilShutdown(t *testing.T) {
	f := newFixture(t, 1, func(string, string, int) bool { return false })
	f.req.Retry = policy.Config{AutoRetry: true, AutoRetryDelay: 5 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// No operator input is wired; the auto policy must never read it.
	result, err := f.build(t, orchestrator.WithOperatorIO(failingReader{t}, nil)).Run(ctx)

	assert.ErrorIs(t, err, orchestrator.ErrShutdownRequested)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, orchestrator.StateAborted, result.FinalState)
	assert.Greater(t, result.PickAttempts, 2)
	assert.Equal(t, 0, result.PlaceAttempts)
	assert.False(t, f.actuator.Enabled())
}

type failingReader struct{ t *testing.T }

func (r failingReader) Read([]byte) (int, error) {
	r.t.Error("operator input read in auto mode")
	return 0, errors.New("unexpected read")
}

func TestEnableFailureAborts(t *testing.T) {
	f := newFixture(t, 1, nil)
	f.req.Actuator = sim.NewActuator(true)
	act := f.req.Actuator.(*sim.Actuator)

	result, err := f.build(t, orchestrator.WithRetryPolicy(&scriptedPolicy{})).Run(context.Background())
	assert.ErrorIs(t, err, orchestrator.ErrActuatorEnableFailed)
	assert.ErrorIs(t, err, sim.ErrEnableRefused)
	assert.Equal(t, orchestrator.StateAborted, result.FinalState)
	assert.Empty(t, f.motion.Calls())
	assert.Equal(t, 0, f.world.StaticPublishCount())

	_, disables := act.Counts()
	assert.Equal(t, 1, disables)
}

func TestNoGraspsFoundIsPickFailure(t *testing.T) {
	f := newFixture(t, 1, nil)
	f.req.GraspGenerator = sim.GraspGenerator{Count: 0}
	retry := &scriptedPolicy{retries: []bool{true}}

	result, err := f.build(t, orchestrator.WithRetryPolicy(retry)).Run(context.Background())
	assert.ErrorIs(t, err, orchestrator.ErrOperatorAbort)
	assert.ErrorIs(t, err, orchestrator.ErrNoGraspsFound)
	assert.ErrorIs(t, err, orchestrator.ErrPickFailed)
	assert.Equal(t, 2, result.PickAttempts)
	assert.Empty(t, f.motion.Calls(), "motion service is not asked to pick without grasps")
}

type brokenMotion struct{}

func (brokenMotion) Pick(context.Context, string, []models.GraspCandidate) (bool, error) {
	return false, errors.New("planner crashed")
}

func (brokenMotion) Place(context.Context, string, []models.PlaceCandidate) (bool, error) {
	return false, errors.New("planner crashed")
}

func TestCollaboratorErrorAborts(t *testing.T) {
	f := newFixture(t, 1, nil)
	f.req.Motion = brokenMotion{}
	core, logs := observer.New(zap.DebugLevel)

	retry := &scriptedPolicy{retries: []bool{true}}
	result, err := f.build(t, orchestrator.WithRetryPolicy(retry), orchestrator.WithLogger(zap.New(core))).Run(context.Background())

	assert.ErrorIs(t, err, orchestrator.ErrCollaborator)
	assert.Contains(t, err.Error(), "planner crashed")
	assert.Equal(t, orchestrator.StateAborted, result.FinalState)
	assert.Equal(t, 0, retry.retryCalls, "collaborator errors are not retried")
	assert.Equal(t, 1, logs.FilterMessage("collaborator error").Len())
	assert.Zero(t, logs.FilterMessage("ignoring transition out of terminal state").Len())
	assert.False(t, f.actuator.Enabled())
}

func TestStateTerminal(t *testing.T) {
	tests := []struct {
		state    orchestrator.State
		terminal bool
	}{
		{orchestrator.StateInit, false},
		{orchestrator.StateSceneReady, false},
		{orchestrator.StatePickAttempt, false},
		{orchestrator.StatePlaceAttempt, false},
		{orchestrator.StateCompleted, false},
		{orchestrator.StateAborted, true},
		{orchestrator.StateStopped, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.state.Terminal())
		})
	}
}

func TestFailuresLoggedAsWarnings(t *testing.T) {
	f := newFixture(t, 1, sim.ScriptedDecider(map[string][]bool{"pick": {false}}))
	core, logs := observer.New(zap.InfoLevel)

	_, err := f.build(t,
		orchestrator.WithRetryPolicy(&scriptedPolicy{retries: []bool{true}}),
		orchestrator.WithLogger(zap.New(core)),
	).Run(context.Background())
	require.NoError(t, err)

	warn := logs.FilterMessage("pick failed").All()
	require.Len(t, warn, 1)
	assert.Equal(t, zap.WarnLevel, warn[0].Level)
	assert.Equal(t, "Block1", warn[0].ContextMap()["item"])
	assert.Equal(t, 1, logs.FilterMessage("finished picking and placing 1 items").Len())
}

func TestMaxCyclesStopsRun(t *testing.T) {
	f := newFixture(t, 2, nil)
	retry := &scriptedPolicy{repeats: []bool{true, true, true, true}}

	result, err := f.build(t, orchestrator.WithRetryPolicy(retry), orchestrator.WithMaxCycles(2)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.CyclesCompleted)
	assert.Equal(t, 1, retry.repeatCalls)
}

func TestEventsAndHistory(t *testing.T) {
	f := newFixture(t, 1, sim.ScriptedDecider(map[string][]bool{"pick": {false}}))
	db, err := state.OpenDir(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	events := orchestrator.NewEventEmitter(64, nil)
	result, err := f.build(t,
		orchestrator.WithRetryPolicy(&scriptedPolicy{retries: []bool{true}}),
		orchestrator.WithEvents(events),
		orchestrator.WithStore(db),
	).Run(context.Background())
	require.NoError(t, err)
	events.Close()

	var (
		types []orchestrator.EventType
		last  orchestrator.OrchestratorEvent
	)
	for ev := range events.Events() {
		assert.Equal(t, result.RunID, ev.RunID)
		types = append(types, ev.Type)
		last = ev
	}
	assert.True(t, last.State.Terminal(), "run_done carries the final state, got %s", last.State)
	assert.Equal(t, []orchestrator.EventType{
		orchestrator.EventRunStarted,
		orchestrator.EventCycleStarted,
		orchestrator.EventPickStarted,
		orchestrator.EventPickFailed,
		orchestrator.EventPickStarted,
		orchestrator.EventPickSucceeded,
		orchestrator.EventPlaceStarted,
		orchestrator.EventPlaceSucceeded,
		orchestrator.EventCycleCompleted,
		orchestrator.EventRunDone,
	}, types)

	run, err := db.GetRun(result.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, state.RunStopped, run.Status)
	assert.Equal(t, "interactive", run.Mode)
	assert.Equal(t, []string{"Block1"}, run.Items)
	assert.Equal(t, 1, run.Cycles)

	stats, err := db.AttemptStats(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, state.AttemptStats{Picks: 2, PickFailures: 1, Places: 1}, *stats)
}

func TestPausedRunObservesShutdown(t *testing.T) {
	f := newFixture(t, 1, nil)
	pause := orchestrator.NewPauseController(nil)
	pause.Pause()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := f.build(t,
		orchestrator.WithRetryPolicy(&scriptedPolicy{}),
		orchestrator.WithPauseController(pause),
	).Run(ctx)
	assert.ErrorIs(t, err, orchestrator.ErrShutdownRequested)
	assert.Equal(t, 0, result.PickAttempts)
}

func TestPauseResume(t *testing.T) {
	f := newFixture(t, 1, nil)
	pause := orchestrator.NewPauseController(nil)
	pause.Pause()
	timer := time.AfterFunc(20*time.Millisecond, pause.Resume)
	defer timer.Stop()

	result, err := f.build(t,
		orchestrator.WithRetryPolicy(&scriptedPolicy{}),
		orchestrator.WithPauseController(pause),
	).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.CyclesCompleted)
	assert.False(t, pause.IsPaused())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	f := newFixture(t, 2, nil)

	dup := f.req
	dup.WorkItems = []models.WorkItem{f.req.WorkItems[0], f.req.WorkItems[0]}
	_, err := orchestrator.New(dup)
	assert.ErrorIs(t, err, orchestrator.ErrInvalidConfig)

	hints := f.req
	hints.GraspConfig.ApproachRetreatMin = 0.5
	_, err = orchestrator.New(hints)
	assert.ErrorIs(t, err, orchestrator.ErrInvalidConfig)

	noMotion := f.req
	noMotion.Motion = nil
	_, err = orchestrator.New(noMotion)
	assert.ErrorIs(t, err, orchestrator.ErrInvalidConfig)

	_, err = orchestrator.New(f.req, orchestrator.WithMaxCycles(-1))
	assert.ErrorIs(t, err, orchestrator.ErrInvalidConfig)
}

func TestRunOnlyOnce(t *testing.T) {
	f := newFixture(t, 1, nil)
	o := f.build(t, orchestrator.WithRetryPolicy(&scriptedPolicy{}))

	_, err := o.Run(context.Background())
	require.NoError(t, err)
	_, err = o.Run(context.Background())
	assert.ErrorIs(t, err, orchestrator.ErrInvalidConfig)
}
