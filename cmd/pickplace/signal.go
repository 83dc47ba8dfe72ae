package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arcticfish-wang/pickplace/internal/signals"
)

// signalCommand builds a command that drops a signal for the running orchestrator.
func signalCommand(use, short, done string, send func(dir string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := send(signals.DirIn(cfg.State.Dir)); err != nil {
				return err
			}
			printStatus(cmd, "✓", done, color.FgGreen)
			return nil
		},
	}
}

var (
	stopCmd   = signalCommand("stop", "Stop the running orchestrator", "Stop requested", signals.SendKill)
	pauseCmd  = signalCommand("pause", "Hold the running orchestrator before its next attempt", "Pause requested", signals.SendPause)
	resumeCmd = signalCommand("resume", "Release a paused orchestrator", "Resume requested", signals.SendResume)
)
