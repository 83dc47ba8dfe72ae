package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arcticfish-wang/pickplace/internal/grasp"
	"github.com/arcticfish-wang/pickplace/internal/orchestrator/policy"
	"github.com/arcticfish-wang/pickplace/internal/place"
	"github.com/arcticfish-wang/pickplace/internal/state"
	"github.com/arcticfish-wang/pickplace/pkg/models"
)

// disableTimeout bounds the final actuator disable, which runs even after
// the run's context is cancelled.
const disableTimeout = 5 * time.Second

// Orchestrator sequences picks and places for a fixed set of work items.
// An Orchestrator runs once; create a new one for another run.
type Orchestrator struct {
	actuator Actuator
	motion   MotionService
	scene    Scene
	grasps   *grasp.Builder
	places   *place.Generator
	retry    policy.RetryPolicy

	logger      *zap.Logger
	events      *EventEmitter
	store       state.RunRecorder
	settleDelay time.Duration
	pause       *PauseController

	rs  *RunState
	ran bool
}

// New creates an Orchestrator with the required configuration and optional settings.
func New(req RequiredConfig, opts ...Option) (*Orchestrator, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if err := models.ValidateWorkItems(req.WorkItems); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch {
	case req.Actuator == nil:
		return nil, fmt.Errorf("%w: actuator is required", ErrInvalidConfig)
	case req.Motion == nil:
		return nil, fmt.Errorf("%w: motion service is required", ErrInvalidConfig)
	case req.Scene == nil:
		return nil, fmt.Errorf("%w: scene is required", ErrInvalidConfig)
	case req.GraspGenerator == nil:
		return nil, fmt.Errorf("%w: grasp generator is required", ErrInvalidConfig)
	}
	if err := req.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if o.maxCycles < 0 {
		return nil, fmt.Errorf("%w: max cycles must not be negative, got %d", ErrInvalidConfig, o.maxCycles)
	}

	builder, err := grasp.NewBuilder(req.GraspGenerator, req.GraspConfig, models.WorkItemIDs(req.WorkItems))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	places, err := place.NewGenerator(req.GraspConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	retry := o.retryPolicy
	if retry == nil {
		retry = policy.New(req.Retry, o.in, o.out, o.logger.Named("policy"))
	}

	return &Orchestrator{
		actuator:    req.Actuator,
		motion:      req.Motion,
		scene:       req.Scene,
		grasps:      builder,
		places:      places,
		retry:       retry,
		logger:      o.logger,
		events:      o.events,
		store:       o.store,
		settleDelay: o.settleDelay,
		pause:       o.pause,
		rs: &RunState{
			WorkItems:      append([]models.WorkItem(nil), req.WorkItems...),
			AutoRetry:      req.Retry.AutoRetry,
			AutoRetryDelay: req.Retry.AutoRetryDelay,
			MaxCycles:      o.maxCycles,
			State:          StateInit,
		},
	}, nil
}

// Run drives the state machine to a terminal state. It returns nil when the
// operator ends the run normally (or MaxCycles is reached) and a wrapped
// sentinel error otherwise. The actuator is disabled before Run returns
// whenever it was asked to enable.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	if o.ran {
		return Result{}, fmt.Errorf("%w: Run may only be called once", ErrInvalidConfig)
	}
	o.ran = true

	o.rs.ID = uuid.NewString()
	o.logger = o.logger.With(zap.String("run", o.rs.ID))
	o.recordStart()

	err := o.run(ctx)
	o.finish(ctx, err)
	return o.result(), err
}

func (o *Orchestrator) run(ctx context.Context) error {
	if err := o.actuator.Enable(ctx); err != nil {
		o.logger.Error("enable actuator failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrActuatorEnableFailed, err)
	}
	o.logger.Info("actuator enabled", zap.Int("items", len(o.rs.WorkItems)), zap.Bool("auto_retry", o.rs.AutoRetry))
	o.emit(OrchestratorEvent{Type: EventRunStarted})

	if !sleep(ctx, o.settleDelay) {
		return shutdownErr(ctx)
	}
	o.scene.PublishStatic(ctx)

	for {
		if ctx.Err() != nil {
			return shutdownErr(ctx)
		}

		o.transition(StateSceneReady)
		o.rs.Cycle++
		for _, item := range o.rs.WorkItems {
			o.scene.ResetItem(ctx, item)
		}
		o.emit(OrchestratorEvent{Type: EventCycleStarted})

		for _, item := range o.rs.WorkItems {
			if err := o.pickItem(ctx, item); err != nil {
				return err
			}
			if err := o.placeItem(ctx, item); err != nil {
				return err
			}
		}

		o.transition(StateCompleted)
		o.rs.CurrentItem = ""
		o.rs.CyclesCompleted++
		msg := fmt.Sprintf("finished picking and placing %d items", len(o.rs.WorkItems))
		o.logger.Info(msg, zap.Int("cycle", o.rs.Cycle))
		o.emit(OrchestratorEvent{Type: EventCycleCompleted, Message: msg})

		if o.rs.MaxCycles > 0 && o.rs.CyclesCompleted >= o.rs.MaxCycles {
			o.logger.Info("cycle limit reached", zap.Int("max_cycles", o.rs.MaxCycles))
			return nil
		}
		if !o.retry.ShouldRepeatAll(ctx) {
			if ctx.Err() != nil {
				return shutdownErr(ctx)
			}
			return nil
		}
	}
}

func (o *Orchestrator) pickItem(ctx context.Context, item models.WorkItem) error {
	log := o.logger.With(zap.String("item", item.ID))
	for attempt := 1; ; attempt++ {
		if err := o.checkpoint(ctx); err != nil {
			return err
		}
		o.rs.CurrentItem = item.ID
		o.transition(StatePickAttempt)
		o.rs.PickAttempts++
		o.emit(OrchestratorEvent{Type: EventPickStarted, ItemID: item.ID, Attempt: attempt})
		o.scene.ShowItem(ctx, item.StartPose, false)

		cause, err := o.tryPick(ctx, item)
		if err != nil {
			return err
		}
		o.recordAttempt(state.PhasePick, item.ID, attempt, cause)
		if cause == nil {
			log.Info("pick succeeded", zap.Int("attempt", attempt))
			o.emit(OrchestratorEvent{Type: EventPickSucceeded, ItemID: item.ID, Attempt: attempt})
			return nil
		}

		log.Warn("pick failed", zap.Int("attempt", attempt), zap.Error(cause))
		o.emit(OrchestratorEvent{Type: EventPickFailed, ItemID: item.ID, Attempt: attempt, Error: cause})
		if !o.retry.ShouldRetry(ctx) {
			return o.declined(ctx, log, cause)
		}
		o.scene.ResetItem(ctx, item)
	}
}

// tryPick returns the failure cause for a failed pick, or a non-nil fatal
// error when the run cannot continue.
func (o *Orchestrator) tryPick(ctx context.Context, item models.WorkItem) (cause, fatal error) {
	grasps, err := o.grasps.Build(ctx, item.StartPose)
	if errors.Is(err, grasp.ErrNoGraspsFound) {
		return fmt.Errorf("%w: %w", ErrPickFailed, err), nil
	}
	if err != nil {
		return nil, o.collaboratorErr(ctx, "grasp generator", err)
	}

	ok, err := o.motion.Pick(ctx, item.ID, grasps)
	if err != nil {
		return nil, o.collaboratorErr(ctx, "pick", err)
	}
	if !ok {
		return ErrPickFailed, nil
	}
	return nil, nil
}

// placeItem retries without resetting: the object stays in the gripper.
func (o *Orchestrator) placeItem(ctx context.Context, item models.WorkItem) error {
	log := o.logger.With(zap.String("item", item.ID))
	for attempt := 1; ; attempt++ {
		if err := o.checkpoint(ctx); err != nil {
			return err
		}
		o.transition(StatePlaceAttempt)
		o.rs.PlaceAttempts++
		o.emit(OrchestratorEvent{Type: EventPlaceStarted, ItemID: item.ID, Attempt: attempt})
		o.scene.ShowItem(ctx, item.GoalPose, true)

		candidates := o.places.Generate(item.GoalPose)
		for _, c := range candidates {
			o.scene.ShowItem(ctx, c.PlacePose, true)
		}

		ok, err := o.motion.Place(ctx, item.ID, candidates)
		if err != nil {
			return o.collaboratorErr(ctx, "place", err)
		}
		var cause error
		if !ok {
			cause = ErrPlaceFailed
		}
		o.recordAttempt(state.PhasePlace, item.ID, attempt, cause)
		if cause == nil {
			log.Info("place succeeded", zap.Int("attempt", attempt))
			o.emit(OrchestratorEvent{Type: EventPlaceSucceeded, ItemID: item.ID, Attempt: attempt})
			return nil
		}

		log.Warn("place failed", zap.Int("attempt", attempt))
		o.emit(OrchestratorEvent{Type: EventPlaceFailed, ItemID: item.ID, Attempt: attempt, Error: cause})
		if !o.retry.ShouldRetry(ctx) {
			return o.declined(ctx, log, cause)
		}
	}
}

// checkpoint runs before every attempt: it observes shutdown and holds while paused.
func (o *Orchestrator) checkpoint(ctx context.Context) error {
	if ctx.Err() != nil {
		return shutdownErr(ctx)
	}
	if o.pause == nil {
		return nil
	}
	if err := o.pause.WaitIfPaused(ctx); err != nil && ctx.Err() != nil {
		return shutdownErr(ctx)
	}
	return nil
}

func (o *Orchestrator) declined(ctx context.Context, log *zap.Logger, cause error) error {
	if ctx.Err() != nil {
		log.Error("shutdown requested after failure", zap.Error(cause))
		return fmt.Errorf("%w (%w): %w", ErrShutdownRequested, context.Cause(ctx), cause)
	}
	log.Error("retry declined", zap.Error(cause))
	return fmt.Errorf("%w: %w", ErrOperatorAbort, cause)
}

func (o *Orchestrator) collaboratorErr(ctx context.Context, what string, err error) error {
	if ctx.Err() != nil {
		return shutdownErr(ctx)
	}
	o.logger.Error("collaborator error", zap.String("collaborator", what), zap.Error(err))
	return fmt.Errorf("%w: %s: %w", ErrCollaborator, what, err)
}

// finish moves to the terminal state, disables the actuator and closes out
// the run record.
func (o *Orchestrator) finish(ctx context.Context, runErr error) {
	final := StateStopped
	if runErr != nil {
		final = StateAborted
	}
	o.transition(final)

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disableTimeout)
	defer cancel()
	if err := o.actuator.Disable(dctx); err != nil {
		o.logger.Error("disable actuator failed", zap.Error(err))
	}

	if runErr != nil {
		o.logger.Error("run aborted", zap.Int("cycles", o.rs.CyclesCompleted), zap.Error(runErr))
	} else {
		o.logger.Info("run stopped", zap.Int("cycles", o.rs.CyclesCompleted))
	}
	o.emit(OrchestratorEvent{Type: EventRunDone, Error: runErr, Message: string(final)})
	o.recordFinish(final, runErr)
}

func (o *Orchestrator) transition(to State) {
	if o.rs.State == to {
		return
	}
	if o.rs.State.Terminal() {
		o.logger.Warn("ignoring transition out of terminal state",
			zap.String("from", string(o.rs.State)), zap.String("to", string(to)))
		return
	}
	o.logger.Debug("state transition", zap.String("from", string(o.rs.State)), zap.String("to", string(to)))
	o.rs.State = to
}

func (o *Orchestrator) emit(ev OrchestratorEvent) {
	if o.events == nil {
		return
	}
	ev.RunID = o.rs.ID
	ev.Cycle = o.rs.Cycle
	ev.State = o.rs.State
	ev.Timestamp = time.Now()
	o.events.Emit(ev)
}

func (o *Orchestrator) recordStart() {
	if o.store == nil {
		return
	}
	mode := "interactive"
	if o.rs.AutoRetry {
		mode = "auto"
	}
	err := o.store.CreateRun(&state.Run{
		ID:        o.rs.ID,
		Mode:      mode,
		Items:     models.WorkItemIDs(o.rs.WorkItems),
		Status:    state.RunRunning,
		StartedAt: time.Now(),
	})
	if err != nil {
		o.logger.Warn("record run start failed", zap.Error(err))
	}
}

func (o *Orchestrator) recordAttempt(phase state.Phase, itemID string, number int, cause error) {
	if o.store == nil {
		return
	}
	a := &state.Attempt{
		RunID:     o.rs.ID,
		Cycle:     o.rs.Cycle,
		ItemID:    itemID,
		Phase:     phase,
		Number:    number,
		Success:   cause == nil,
		CreatedAt: time.Now(),
	}
	if cause != nil {
		a.Error = cause.Error()
	}
	if err := o.store.RecordAttempt(a); err != nil {
		o.logger.Warn("record attempt failed", zap.Error(err))
	}
}

func (o *Orchestrator) recordFinish(final State, runErr error) {
	if o.store == nil {
		return
	}
	status := state.RunStopped
	var msg string
	if final == StateAborted {
		status = state.RunAborted
		msg = runErr.Error()
	}
	if err := o.store.FinishRun(o.rs.ID, status, o.rs.CyclesCompleted, msg, time.Now()); err != nil {
		o.logger.Warn("record run finish failed", zap.Error(err))
	}
}

func (o *Orchestrator) result() Result {
	return Result{
		RunID:           o.rs.ID,
		FinalState:      o.rs.State,
		CyclesCompleted: o.rs.CyclesCompleted,
		PickAttempts:    o.rs.PickAttempts,
		PlaceAttempts:   o.rs.PlaceAttempts,
	}
}

func shutdownErr(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrShutdownRequested, context.Cause(ctx))
}

// sleep waits for d, returning false if ctx is done first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
