package main

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/arcticfish-wang/pickplace/internal/orchestrator"
)

var (
	okMark   = color.New(color.FgGreen).SprintFunc()
	failMark = color.New(color.FgRed).SprintFunc()
	infoMark = color.New(color.FgCyan).SprintFunc()
)

// formatEvent renders an orchestrator event as one status line.
func formatEvent(ev orchestrator.OrchestratorEvent) string {
	switch ev.Type {
	case orchestrator.EventRunStarted:
		return fmt.Sprintf("%s run %s started", infoMark("▶"), ev.RunID)
	case orchestrator.EventCycleStarted:
		return fmt.Sprintf("%s cycle %d", infoMark("↻"), ev.Cycle)
	case orchestrator.EventPickStarted:
		return fmt.Sprintf("  %s picking %s (attempt %d)", infoMark("…"), ev.ItemID, ev.Attempt)
	case orchestrator.EventPickSucceeded:
		return fmt.Sprintf("  %s picked %s", okMark("✓"), ev.ItemID)
	case orchestrator.EventPickFailed:
		return fmt.Sprintf("  %s pick of %s failed", failMark("✗"), ev.ItemID)
	case orchestrator.EventPlaceStarted:
		return fmt.Sprintf("  %s placing %s (attempt %d)", infoMark("…"), ev.ItemID, ev.Attempt)
	case orchestrator.EventPlaceSucceeded:
		return fmt.Sprintf("  %s placed %s", okMark("✓"), ev.ItemID)
	case orchestrator.EventPlaceFailed:
		return fmt.Sprintf("  %s place of %s failed", failMark("✗"), ev.ItemID)
	case orchestrator.EventCycleCompleted:
		return fmt.Sprintf("%s %s", okMark("✓"), ev.Message)
	case orchestrator.EventRunDone:
		if ev.Error != nil {
			return fmt.Sprintf("%s run %s", failMark("■"), ev.Message)
		}
		return fmt.Sprintf("%s run %s", okMark("■"), ev.Message)
	default:
		return fmt.Sprintf("%s %s", ev.Type, ev.Message)
	}
}
