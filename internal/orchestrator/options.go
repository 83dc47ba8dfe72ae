package orchestrator

import (
	"context"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/arcticfish-wang/pickplace/internal/grasp"
	"github.com/arcticfish-wang/pickplace/internal/orchestrator/policy"
	"github.com/arcticfish-wang/pickplace/internal/state"
	"github.com/arcticfish-wang/pickplace/pkg/models"
)

// DefaultSettleDelay is how long Run waits after enabling the actuator before
// touching the scene, giving collaborators time to come up.
const DefaultSettleDelay = time.Second

// Scene is the part of scene.Setup the orchestrator drives.
type Scene interface {
	PublishStatic(ctx context.Context)
	ResetItem(ctx context.Context, item models.WorkItem)
	ShowItem(ctx context.Context, pose models.Pose, goal bool)
}

// RequiredConfig contains the minimal required configuration for an Orchestrator.
// All fields are required and have no defaults.
type RequiredConfig struct {
	// WorkItems are the objects to move, in processing order.
	WorkItems []models.WorkItem
	// Actuator enables and disables the arm.
	Actuator Actuator
	// Motion plans and executes picks and places.
	Motion MotionService
	// Scene publishes obstacles and resets items.
	Scene Scene
	// GraspGenerator proposes gripper poses for an object.
	GraspGenerator grasp.Generator
	// GraspConfig carries gripper and approach/retreat parameters.
	GraspConfig models.GraspConfig
	// Retry selects automatic or interactive retry.
	Retry policy.Config
}

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
type orchestratorOptions struct {
	logger      *zap.Logger
	events      *EventEmitter
	store       state.RunRecorder
	settleDelay time.Duration
	maxCycles   int
	pause       *PauseController
	in          io.Reader
	out         io.Writer

	// Injectable for testing
	retryPolicy policy.RetryPolicy
}

func defaultOptions() *orchestratorOptions {
	return &orchestratorOptions{
		logger:      zap.NewNop(),
		settleDelay: DefaultSettleDelay,
		in:          os.Stdin,
		out:         os.Stdout,
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *orchestratorOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithEvents sets the emitter that receives run events.
func WithEvents(e *EventEmitter) Option {
	return func(o *orchestratorOptions) { o.events = e }
}

// WithStore records the run and every attempt.
func WithStore(s state.RunRecorder) Option {
	return func(o *orchestratorOptions) { o.store = s }
}

// WithSettleDelay overrides DefaultSettleDelay. Zero skips the wait.
func WithSettleDelay(d time.Duration) Option {
	return func(o *orchestratorOptions) { o.settleDelay = d }
}

// WithMaxCycles stops the run after n completed cycles. Zero means unbounded.
func WithMaxCycles(n int) Option {
	return func(o *orchestratorOptions) { o.maxCycles = n }
}

// WithPauseController lets an external signal hold the run between attempts.
func WithPauseController(p *PauseController) Option {
	return func(o *orchestratorOptions) { o.pause = p }
}

// WithOperatorIO sets where the interactive policy reads answers and prompts.
// Defaults to stdin/stdout.
func WithOperatorIO(in io.Reader, out io.Writer) Option {
	return func(o *orchestratorOptions) {
		o.in = in
		o.out = out
	}
}

// WithRetryPolicy replaces the policy built from RequiredConfig.Retry
// (mainly for testing).
func WithRetryPolicy(p policy.RetryPolicy) Option {
	return func(o *orchestratorOptions) { o.retryPolicy = p }
}
