// Package tui provides a read-only terminal dashboard for a pickplace run.
//
// The dashboard shows the run's cycle and state, every work item with its
// current phase and attempt count, a progress bar for the cycle, and a log of
// recent events. It only observes the run; 'p' toggles pause and 'q' or
// Ctrl+C requests a stop.
//
// Usage:
//
//	dash := tui.NewDashboard(ids, pause, cancel)
//	program := tea.NewProgram(dash, tea.WithAltScreen())
//
//	go func() {
//		for ev := range events.Events() {
//			program.Send(tui.EventMsg{Event: ev})
//		}
//	}()
//
//	// After Run returns
//	program.Send(tui.RunDoneMsg{Err: err})
package tui
