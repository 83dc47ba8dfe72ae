package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arcticfish-wang/pickplace/internal/config"
	"github.com/arcticfish-wang/pickplace/internal/logging"
	"github.com/arcticfish-wang/pickplace/internal/orchestrator"
	"github.com/arcticfish-wang/pickplace/internal/scene"
	"github.com/arcticfish-wang/pickplace/internal/signals"
	"github.com/arcticfish-wang/pickplace/internal/sim"
	"github.com/arcticfish-wang/pickplace/internal/state"
	"github.com/arcticfish-wang/pickplace/internal/tui"
)

var (
	runAutoRetry   bool
	runRetryDelay  int
	runGroup       string
	runSeed        uint64
	runFailureRate float64
	runMaxCycles   int
	runSettleDelay time.Duration
	runTUI         bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pick-and-place cycle",
	Long: `Enable the arm, publish the scene, then pick each object and place it at
its goal. After every object has been placed the cycle can be repeated.

With --auto-retry, failed picks and places are retried after --retry-delay
seconds without asking. Otherwise the operator is asked "Retry? (y/n)";
answering n ends the run.

The run can be stopped with Ctrl-C or 'pickplace stop', and held between
attempts with 'pickplace pause' / 'pickplace resume'.

--tui replaces the event log with a live dashboard. It needs --auto-retry
since the dashboard owns the terminal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		applyRunFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if runTUI && !cfg.Retry.Auto {
			return fmt.Errorf("--tui requires --auto-retry")
		}

		logOpts := logging.Options{
			Dir:   filepath.Join(cfg.State.Dir, "logs"),
			Level: cfg.Log.Level,
		}
		if runTUI {
			logOpts.Console = io.Discard
		}
		logger, closeLog, err := logging.New(logOpts)
		if err != nil {
			return err
		}
		defer closeLog()
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		display := displayLog
		if runTUI {
			display = displayDashboard
		}
		result, err := executeRunWith(ctx, cfg, os.Stdin, cmd.OutOrStdout(), logger, display)
		printSummary(cmd.OutOrStdout(), result, err)
		return err
	},
}

func init() {
	runCmd.Flags().BoolVar(&runAutoRetry, "auto-retry", false, "Retry failures automatically instead of asking")
	runCmd.Flags().IntVar(&runRetryDelay, "retry-delay", 0, "Seconds to wait before an automatic retry")
	runCmd.Flags().StringVar(&runGroup, "group", "", "Planning group to move")
	runCmd.Flags().Uint64Var(&runSeed, "seed", 0, "Seed for simulated failures")
	runCmd.Flags().Float64Var(&runFailureRate, "failure-rate", 0, "Probability that a simulated pick or place fails")
	runCmd.Flags().IntVar(&runMaxCycles, "max-cycles", 0, "Stop after this many cycles (0 = ask/repeat forever)")
	runCmd.Flags().DurationVar(&runSettleDelay, "settle-delay", 0, "Wait after enabling the arm before the first cycle")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show a live dashboard instead of the event log")
}

// applyRunFlags overrides configuration with flags the user set explicitly.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("auto-retry") {
		cfg.Retry.Auto = runAutoRetry
	}
	if flags.Changed("retry-delay") {
		cfg.Retry.DelaySeconds = runRetryDelay
	}
	if flags.Changed("group") {
		cfg.Planning.Group = runGroup
	}
	if flags.Changed("seed") {
		cfg.Sim.Seed = runSeed
	}
	if flags.Changed("failure-rate") {
		cfg.Sim.FailureRate = runFailureRate
	}
	if flags.Changed("max-cycles") {
		cfg.Run.MaxCycles = runMaxCycles
	}
	if flags.Changed("settle-delay") {
		cfg.Run.SettleDelay = runSettleDelay
	}
}

// displayMode selects how run progress is shown.
type displayMode int

const (
	displayLog displayMode = iota
	displayDashboard
)

// executeRun runs with the plain event log.
func executeRun(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, logger *zap.Logger) (orchestrator.Result, error) {
	return executeRunWith(ctx, cfg, in, out, logger, displayLog)
}

// executeRunWith wires the simulated collaborators, history store and signal
// watcher around one orchestrator run.
func executeRunWith(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, logger *zap.Logger, display displayMode) (orchestrator.Result, error) {
	// Prompts and the event printer share out.
	out = &lockedWriter{w: out}

	db, err := state.OpenDir(cfg.State.Dir)
	if err != nil {
		return orchestrator.Result{}, fmt.Errorf("open run history: %w", err)
	}
	defer db.Close()
	if n, err := db.MarkInterrupted(time.Now()); err != nil {
		logger.Warn("close out interrupted runs failed", zap.Error(err))
	} else if n > 0 {
		logger.Warn("previous runs ended without finishing", zap.Int64("runs", n))
	}
	if cfg.State.Retention > 0 {
		if n, err := db.PurgeOldRuns(time.Now(), cfg.State.Retention); err != nil {
			logger.Warn("purge old runs failed", zap.Error(err))
		} else if n > 0 {
			logger.Info("purged old runs", zap.Int64("runs", n), zap.Duration("retention", cfg.State.Retention))
		}
	}

	world := sim.NewWorld()
	setup, err := scene.NewSetup(cfg.SceneTable(), cfg.SceneWalls(), cfg.BlockSize, world, logger.Named("scene"))
	if err != nil {
		return orchestrator.Result{}, fmt.Errorf("%w: %w", orchestrator.ErrInvalidConfig, err)
	}
	items := cfg.WorkItems(setup.ObjectRestingZ())
	for _, item := range items {
		if !setup.OnTable(item.StartPose) || !setup.OnTable(item.GoalPose) {
			logger.Warn("object start or goal is off the table", zap.String("item", item.ID))
		}
	}

	motion := sim.NewMotionService(world, sim.PlanningOptions{
		Group:          cfg.Planning.Group,
		PlannerID:      cfg.Planning.PlannerID,
		PlanningTime:   cfg.Planning.PlanningTime,
		SupportSurface: cfg.Planning.SupportSurface,
	}, sim.RandomDecider(cfg.Sim.FailureRate, cfg.Sim.Seed))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pause := orchestrator.NewPauseController(logger.Named("pause"))
	watcher, err := signals.NewWatcher(signals.DirIn(cfg.State.Dir), signals.Handlers{
		OnStop:   cancel,
		OnPause:  pause.Pause,
		OnResume: pause.Resume,
	}, logger.Named("signals"))
	if err != nil {
		return orchestrator.Result{}, err
	}
	defer watcher.Close()

	events := orchestrator.NewEventEmitter(100, logger)
	orch, err := orchestrator.New(orchestrator.RequiredConfig{
		WorkItems:      items,
		Actuator:       sim.NewActuator(false),
		Motion:         motion,
		Scene:          setup,
		GraspGenerator: sim.GraspGenerator{Count: cfg.Grasp.Count},
		GraspConfig:    cfg.ModelGraspConfig(),
		Retry:          cfg.RetryPolicy(),
	},
		orchestrator.WithLogger(logger.Named("orchestrator")),
		orchestrator.WithEvents(events),
		orchestrator.WithStore(db),
		orchestrator.WithSettleDelay(cfg.Run.SettleDelay),
		orchestrator.WithMaxCycles(cfg.Run.MaxCycles),
		orchestrator.WithPauseController(pause),
		orchestrator.WithOperatorIO(in, out),
	)
	if err != nil {
		return orchestrator.Result{}, err
	}

	var (
		result orchestrator.Result
		runErr error
	)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return watcher.Run(gctx)
	})
	switch display {
	case displayDashboard:
		ids := make([]string, len(items))
		for i, item := range items {
			ids[i] = item.ID
		}
		program := tea.NewProgram(tui.NewDashboard(ids, pause, cancel),
			tea.WithInput(in), tea.WithOutput(out), tea.WithAltScreen())
		g.Go(func() error {
			if _, err := program.Run(); err != nil {
				return fmt.Errorf("dashboard: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			for ev := range events.Events() {
				program.Send(tui.EventMsg{Event: ev})
			}
			// runErr is set before the event channel closes.
			program.Send(tui.RunDoneMsg{Err: runErr})
			return nil
		})
	default:
		g.Go(func() error {
			for ev := range events.Events() {
				fmt.Fprintln(out, formatEvent(ev))
			}
			return nil
		})
	}
	g.Go(func() error {
		defer cancel()
		defer events.Close()
		result, runErr = orch.Run(gctx)
		return runErr
	})

	err = g.Wait()
	if dropped := events.DroppedCount(); dropped > 0 {
		logger.Debug("events dropped", zap.Uint64("count", dropped))
	}
	return result, err
}

// printSummary prints the final line of a run.
func printSummary(out io.Writer, result orchestrator.Result, err error) {
	if err != nil {
		fmt.Fprintf(out, "\n%s Run %s after %d cycle(s): %v\n", color.RedString("✗"), result.FinalState, result.CyclesCompleted, err)
		return
	}
	fmt.Fprintf(out, "\n%s Run %s after %d cycle(s) (%d picks, %d places)\n",
		color.GreenString("✓"), result.FinalState, result.CyclesCompleted, result.PickAttempts, result.PlaceAttempts)
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
