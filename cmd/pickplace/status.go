package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/arcticfish-wang/pickplace/internal/state"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent runs",
	Long: `Display recent runs from the run history.

Shows for each run:
  - Mode (auto or interactive) and final status
  - Completed cycles
  - Pick and place attempts, with failures
  - When it started and how long it took`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if _, err := os.Stat(state.PathIn(cfg.State.Dir)); os.IsNotExist(err) {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded. Run 'pickplace run' to start.")
			return nil
		}

		db, err := state.OpenDir(cfg.State.Dir)
		if err != nil {
			return fmt.Errorf("open run history: %w", err)
		}
		defer db.Close()

		return displayRuns(cmd.OutOrStdout(), db, statusLimit, time.Now())
	},
}

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 10, "Number of runs to show")
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	abortedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	cellStyle    = lipgloss.NewStyle().PaddingRight(2)
)

func statusStyle(s state.RunStatus) lipgloss.Style {
	switch s {
	case state.RunRunning:
		return runningStyle
	case state.RunStopped:
		return stoppedStyle
	default:
		return abortedStyle
	}
}

// displayRuns prints the run table.
func displayRuns(out io.Writer, db state.HistoryReader, limit int, now time.Time) error {
	runs, err := db.ListRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded. Run 'pickplace run' to start.")
		return nil
	}

	header := []string{"RUN", "MODE", "STATUS", "CYCLES", "PICKS", "PLACES", "STARTED", "DURATION"}
	rows := [][]string{header}
	var errs []string
	for _, r := range runs {
		stats, err := db.AttemptStats(r.ID)
		if err != nil {
			return err
		}
		duration := "-"
		if r.EndedAt != nil {
			duration = formatDuration(r.EndedAt.Sub(r.StartedAt))
		}
		rows = append(rows, []string{
			shortID(r.ID),
			r.Mode,
			string(r.Status),
			fmt.Sprintf("%d", r.Cycles),
			fmt.Sprintf("%d (%d failed)", stats.Picks, stats.PickFailures),
			fmt.Sprintf("%d (%d failed)", stats.Places, stats.PlaceFailed),
			formatDuration(now.Sub(r.StartedAt)) + " ago",
			duration,
		})
		if r.Error != "" {
			errs = append(errs, fmt.Sprintf("%s: %s", shortID(r.ID), r.Error))
		}
	}

	widths := make([]int, len(header))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	for i, row := range rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			style := cellStyle.Width(widths[j] + 2)
			switch {
			case i == 0:
				style = style.Inherit(headerStyle)
			case j == 2:
				style = style.Inherit(statusStyle(runs[i-1].Status))
			}
			cells[j] = style.Render(cell)
		}
		fmt.Fprintln(out, strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, cells...), " "))
	}

	if len(errs) > 0 {
		fmt.Fprintln(out)
		for _, e := range errs {
			fmt.Fprintln(out, dimStyle.Render(e))
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}
