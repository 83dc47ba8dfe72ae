package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcticfish-wang/pickplace/internal/orchestrator"
)

type fakePauser struct{ paused bool }

func (p *fakePauser) Pause()         { p.paused = true }
func (p *fakePauser) Resume()        { p.paused = false }
func (p *fakePauser) IsPaused() bool { return p.paused }

func send(d *Dashboard, evs ...orchestrator.OrchestratorEvent) {
	for _, ev := range evs {
		d.Update(EventMsg{Event: ev})
	}
}

func TestDashboardTracksItems(t *testing.T) {
	d := NewDashboard([]string{"Block1", "Block2"}, nil, nil)

	send(d,
		orchestrator.OrchestratorEvent{Type: orchestrator.EventCycleStarted, RunID: "0123456789", Cycle: 1, State: orchestrator.StateSceneReady},
		orchestrator.OrchestratorEvent{Type: orchestrator.EventPickStarted, ItemID: "Block1", Attempt: 1, Cycle: 1},
		orchestrator.OrchestratorEvent{Type: orchestrator.EventPickFailed, ItemID: "Block1", Attempt: 1, Cycle: 1, Error: orchestrator.ErrPickFailed},
		orchestrator.OrchestratorEvent{Type: orchestrator.EventPickStarted, ItemID: "Block1", Attempt: 2, Cycle: 1},
	)
	assert.Equal(t, PhasePicking, d.Phase("Block1"))
	assert.Equal(t, PhasePending, d.Phase("Block2"))

	send(d,
		orchestrator.OrchestratorEvent{Type: orchestrator.EventPickSucceeded, ItemID: "Block1", Attempt: 2, Cycle: 1},
		orchestrator.OrchestratorEvent{Type: orchestrator.EventPlaceStarted, ItemID: "Block1", Attempt: 1, Cycle: 1},
		orchestrator.OrchestratorEvent{Type: orchestrator.EventPlaceSucceeded, ItemID: "Block1", Attempt: 1, Cycle: 1, State: orchestrator.StatePlaceAttempt},
	)
	assert.Equal(t, PhasePlaced, d.Phase("Block1"))
	assert.Equal(t, 1, d.Placed())

	view := d.View()
	assert.Contains(t, view, "run 01234567")
	assert.Contains(t, view, "1/2")
	assert.Contains(t, view, "attempt 2")
	assert.Contains(t, view, "pick failed")

	// A new cycle resets every row.
	send(d, orchestrator.OrchestratorEvent{Type: orchestrator.EventCycleStarted, Cycle: 2})
	assert.Equal(t, PhasePending, d.Phase("Block1"))
	assert.Equal(t, 0, d.Placed())
}

func TestDashboardKeepsHeaderOnPartialEvents(t *testing.T) {
	d := NewDashboard([]string{"Block1"}, nil, nil)

	send(d,
		orchestrator.OrchestratorEvent{Type: orchestrator.EventRunStarted, RunID: "abcdef0123", State: orchestrator.StateInit},
		orchestrator.OrchestratorEvent{Type: orchestrator.EventCycleStarted, Cycle: 3, State: orchestrator.StateSceneReady},
		orchestrator.OrchestratorEvent{Type: orchestrator.EventPickStarted, ItemID: "Block1", Attempt: 1},
	)

	view := d.View()
	assert.Contains(t, view, "run abcdef01")
	assert.Contains(t, view, "3")
	assert.Contains(t, view, string(orchestrator.StateSceneReady))
	assert.Equal(t, PhasePicking, d.Phase("Block1"))
}

func TestDashboardPauseToggle(t *testing.T) {
	p := &fakePauser{}
	d := NewDashboard([]string{"Block1"}, p, nil)

	d.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	assert.True(t, p.paused)
	assert.Contains(t, d.View(), "PAUSED")

	d.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	assert.False(t, p.paused)
}

func TestDashboardStopWaitsForRun(t *testing.T) {
	stops := 0
	d := NewDashboard([]string{"Block1"}, nil, func() { stops++ })

	_, cmd := d.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.Nil(t, cmd, "dashboard stays up until the run returns")
	assert.Equal(t, 1, stops)
	assert.Contains(t, d.View(), "Stopping")

	d.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Equal(t, 1, stops, "stop is requested once")

	_, cmd = d.Update(RunDoneMsg{Err: orchestrator.ErrShutdownRequested})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestDashboardDoneFooter(t *testing.T) {
	d := NewDashboard([]string{"Block1"}, nil, nil)

	_, cmd := d.Update(RunDoneMsg{Err: errors.New("operator aborted")})
	assert.Nil(t, cmd)
	view := d.View()
	assert.True(t, strings.Contains(view, "operator aborted"))
	assert.Contains(t, view, "Press q to exit")

	_, cmd = d.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
