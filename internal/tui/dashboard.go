package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/arcticfish-wang/pickplace/internal/orchestrator"
)

const maxLogLines = 12

// ItemPhase is a work item's progress within the current cycle.
type ItemPhase string

const (
	PhasePending ItemPhase = "pending"
	PhasePicking ItemPhase = "picking"
	PhaseHeld    ItemPhase = "held"
	PhasePlacing ItemPhase = "placing"
	PhasePlaced  ItemPhase = "placed"
	PhaseFailed  ItemPhase = "failed"
)

// Pauser is the part of orchestrator.PauseController the dashboard drives.
type Pauser interface {
	Pause()
	Resume()
	IsPaused() bool
}

// EventMsg delivers an orchestrator event to the dashboard.
type EventMsg struct {
	Event orchestrator.OrchestratorEvent
}

// RunDoneMsg signals that Run returned.
type RunDoneMsg struct {
	Err error
}

type itemRow struct {
	id       string
	phase    ItemPhase
	attempts int
}

// Dashboard is the bubbletea model for a run.
type Dashboard struct {
	items  []*itemRow
	byID   map[string]*itemRow
	runID  string
	cycle  int
	state  orchestrator.State
	logs   []string
	width  int
	pauser Pauser
	stop   func()

	spinner  spinner.Model
	stopping bool
	done     bool
	err      error

	// Styles
	headerStyle   lipgloss.Style
	labelStyle    lipgloss.Style
	valueStyle    lipgloss.Style
	progressFull  lipgloss.Style
	progressEmpty lipgloss.Style
	activeStyle   lipgloss.Style
	okStyle       lipgloss.Style
	failStyle     lipgloss.Style
	dimStyle      lipgloss.Style
}

// NewDashboard creates a dashboard for the given item IDs. pauser and stop may be nil.
func NewDashboard(ids []string, pauser Pauser, stop func()) *Dashboard {
	d := &Dashboard{
		byID:    make(map[string]*itemRow, len(ids)),
		state:   orchestrator.StateInit,
		pauser:  pauser,
		stop:    stop,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")).
			MarginBottom(1),
		labelStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(10),
		valueStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true),
		progressFull:  lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		progressEmpty: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		activeStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("205")),
		okStyle:       lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		failStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		dimStyle:      lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
	for _, id := range ids {
		row := &itemRow{id: id, phase: PhasePending}
		d.items = append(d.items, row)
		d.byID[id] = row
	}
	return d
}

// Init implements tea.Model.
func (d *Dashboard) Init() tea.Cmd {
	return d.spinner.Tick
}

// Update implements tea.Model.
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if d.done {
				return d, tea.Quit
			}
			if !d.stopping {
				d.stopping = true
				d.addLog("stop requested")
				if d.stop != nil {
					d.stop()
				}
			}
		case "p":
			d.togglePause()
		}

	case tea.WindowSizeMsg:
		d.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		d.spinner, cmd = d.spinner.Update(msg)
		return d, cmd

	case EventMsg:
		d.apply(msg.Event)

	case RunDoneMsg:
		d.done = true
		d.err = msg.Err
		if d.stopping {
			return d, tea.Quit
		}
	}
	return d, nil
}

func (d *Dashboard) togglePause() {
	if d.pauser == nil || d.done {
		return
	}
	if d.pauser.IsPaused() {
		d.pauser.Resume()
		d.addLog("resumed")
	} else {
		d.pauser.Pause()
		d.addLog("paused before next attempt")
	}
}

// apply folds an event into the item table and log.
func (d *Dashboard) apply(ev orchestrator.OrchestratorEvent) {
	// Events only carry the fields they know about.
	if ev.RunID != "" {
		d.runID = ev.RunID
	}
	if ev.Cycle > 0 {
		d.cycle = ev.Cycle
	}
	if ev.State != "" {
		d.state = ev.State
	}

	row := d.byID[ev.ItemID]
	switch ev.Type {
	case orchestrator.EventCycleStarted:
		for _, r := range d.items {
			r.phase = PhasePending
			r.attempts = 0
		}
		d.addLog(fmt.Sprintf("cycle %d started", ev.Cycle))
	case orchestrator.EventPickStarted:
		d.setPhase(row, PhasePicking, ev.Attempt)
	case orchestrator.EventPickSucceeded:
		d.setPhase(row, PhaseHeld, ev.Attempt)
	case orchestrator.EventPlaceStarted:
		d.setPhase(row, PhasePlacing, ev.Attempt)
	case orchestrator.EventPlaceSucceeded:
		d.setPhase(row, PhasePlaced, ev.Attempt)
		d.addLog(fmt.Sprintf("%s placed", ev.ItemID))
	case orchestrator.EventPickFailed, orchestrator.EventPlaceFailed:
		d.setPhase(row, PhaseFailed, ev.Attempt)
		d.addLog(fmt.Sprintf("%s: %v (attempt %d)", ev.ItemID, ev.Error, ev.Attempt))
	case orchestrator.EventCycleCompleted:
		d.addLog(ev.Message)
	case orchestrator.EventRunDone:
		if ev.Error != nil {
			d.addLog(fmt.Sprintf("run %s: %v", ev.Message, ev.Error))
		} else {
			d.addLog("run " + ev.Message)
		}
	}
}

func (d *Dashboard) setPhase(row *itemRow, phase ItemPhase, attempt int) {
	if row == nil {
		return
	}
	row.phase = phase
	row.attempts = max(row.attempts, attempt)
}

func (d *Dashboard) addLog(line string) {
	d.logs = append(d.logs, time.Now().Format("15:04:05")+" "+line)
	if len(d.logs) > maxLogLines {
		d.logs = d.logs[len(d.logs)-maxLogLines:]
	}
}

// Phase returns an item's current phase.
func (d *Dashboard) Phase(id string) ItemPhase {
	if row := d.byID[id]; row != nil {
		return row.phase
	}
	return ""
}

// Placed returns how many items are placed in the current cycle.
func (d *Dashboard) Placed() int {
	n := 0
	for _, r := range d.items {
		if r.phase == PhasePlaced {
			n++
		}
	}
	return n
}

// View implements tea.Model.
func (d *Dashboard) View() string {
	var b strings.Builder

	title := "pickplace"
	if d.runID != "" {
		title += " run " + shortID(d.runID)
	}
	b.WriteString(d.headerStyle.Render(title))
	b.WriteString("\n")

	b.WriteString(d.labelStyle.Render("Cycle:"))
	b.WriteString(d.valueStyle.Render(fmt.Sprintf("%d", d.cycle)))
	b.WriteString("  ")
	b.WriteString(d.labelStyle.Render("State:"))
	b.WriteString(d.valueStyle.Render(string(d.state)))
	if d.pauser != nil && d.pauser.IsPaused() {
		b.WriteString("  ")
		b.WriteString(d.activeStyle.Render("PAUSED"))
	}
	b.WriteString("\n")

	pct := 0.0
	if len(d.items) > 0 {
		pct = float64(d.Placed()) / float64(len(d.items)) * 100
	}
	b.WriteString(d.labelStyle.Render("Placed:"))
	b.WriteString(d.renderProgressBar(pct, 30))
	b.WriteString(fmt.Sprintf(" %d/%d\n\n", d.Placed(), len(d.items)))

	for _, r := range d.items {
		b.WriteString(fmt.Sprintf("  %s %-10s %-8s", d.icon(r.phase), r.id, string(r.phase)))
		if r.attempts > 1 {
			b.WriteString(d.dimStyle.Render(fmt.Sprintf(" attempt %d", r.attempts)))
		}
		b.WriteString("\n")
	}

	if len(d.logs) > 0 {
		b.WriteString("\n")
		for _, line := range d.logs {
			b.WriteString(d.dimStyle.Render(line))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(d.footer())
	return b.String()
}

func (d *Dashboard) icon(p ItemPhase) string {
	switch p {
	case PhasePicking, PhasePlacing:
		return d.spinner.View()
	case PhaseHeld:
		return d.activeStyle.Render("●")
	case PhasePlaced:
		return d.okStyle.Render("✓")
	case PhaseFailed:
		return d.failStyle.Render("✗")
	default:
		return d.dimStyle.Render("○")
	}
}

func (d *Dashboard) footer() string {
	switch {
	case d.done && d.err != nil:
		return d.failStyle.Render(fmt.Sprintf("✗ %v", d.err)) + " | Press q to exit"
	case d.done:
		return d.okStyle.Render("✓ run stopped") + " | Press q to exit"
	case d.stopping:
		return "Stopping..."
	default:
		return "p pause/resume | q stop"
	}
}

// renderProgressBar draws a bar of the given width filled to pct percent.
func (d *Dashboard) renderProgressBar(pct float64, width int) string {
	filled := int(pct / 100 * float64(width))
	filled = min(max(filled, 0), width)
	return d.progressFull.Render(strings.Repeat("█", filled)) +
		d.progressEmpty.Render(strings.Repeat("░", width-filled))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
