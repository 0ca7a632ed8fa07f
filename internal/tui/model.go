package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/launchkit/internal/errors"
	"github.com/Iron-Ham/launchkit/internal/event"
	"github.com/Iron-Ham/launchkit/internal/progress"
)

// ReasonUser is the cancellation reason recorded when the user cancels from
// the progress view.
const ReasonUser = "cancelled by user"

const (
	defaultWidth = 80
	barWidth     = 30
)

// Messages

// SnapshotMsg carries a tracker state change.
type SnapshotMsg progress.Snapshot

// EventMsg carries a bus event.
type EventMsg struct{ Event event.Event }

// DoneMsg reports that the operation returned.
type DoneMsg struct{ Err error }

type slotStatus int

const (
	slotRunning slotStatus = iota
	slotDone
	slotFailed
	slotKilled
	slotSkipped
)

// slot is one tool invocation shown in the view.
type slot struct {
	label  string
	worker int
	status slotStatus
	detail string
}

// Model is the bubbletea model of the live progress view. It renders the
// tracker's progress and status, one row per tool invocation, and the
// latest output line of each worker.
type Model struct {
	title   string
	tracker *progress.Tracker
	spinner spinner.Model

	snap  progress.Snapshot
	state string
	slots []*slot
	byKey map[string]*slot
	lines map[int]string

	width           int
	cancelRequested bool
	done            bool
	err             error
}

// NewModel creates a progress view for the operation title tracked by tr.
func NewModel(title string, tr *progress.Tracker) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return Model{
		title:   title,
		tracker: tr,
		spinner: s,
		snap:    tr.Snapshot(),
		state:   "idle",
		byKey:   make(map[string]*slot),
		lines:   make(map[int]string),
		width:   defaultWidth,
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case SnapshotMsg:
		m.snap = progress.Snapshot(msg)
		return m, nil

	case EventMsg:
		m.handleEvent(msg.Event)
		return m, nil

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		m.snap = m.tracker.Snapshot()
		return m, tea.Quit

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q", "esc":
		if m.done {
			return m, tea.Quit
		}
		// The operation keeps running until it notices; DoneMsg ends the view.
		// Cancel notifies listeners that send back into this program, so it
		// must not run on the update loop.
		m.cancelRequested = true
		tr := m.tracker
		return m, func() tea.Msg {
			tr.Cancel(ReasonUser)
			return SnapshotMsg(tr.Snapshot())
		}
	}
	return m, nil
}

func (m *Model) handleEvent(e event.Event) {
	switch e := e.(type) {
	case event.BuildStateEvent:
		m.state = e.To

	case event.StepStartedEvent:
		s := m.slotFor(e.Step, e.Worker)
		s.status = slotRunning
		s.detail = ""

	case event.StepFinishedEvent:
		s := m.slotFor(e.Step, e.Worker)
		switch {
		case e.Skipped:
			s.status = slotSkipped
			s.detail = "not launched"
		case e.Error != "":
			s.status = slotFailed
			s.detail = e.Error
		case e.Terminated:
			s.status = slotKilled
			s.detail = "terminated"
		case e.ExitCode != 0:
			s.status = slotFailed
			s.detail = fmt.Sprintf("exit code %d", e.ExitCode)
		default:
			s.status = slotDone
			s.detail = e.Duration.Round(time.Second).String()
		}

	case event.ToolOutputEvent:
		if line := sanitize(e.Line); line != "" {
			m.lines[e.Worker] = line
		}
	}
}

func (m *Model) slotFor(step string, worker int) *slot {
	key := fmt.Sprintf("%s/%d", step, worker)
	if s, ok := m.byKey[key]; ok {
		return s
	}
	label := step
	if worker >= 0 {
		label = fmt.Sprintf("%s %d", step, worker)
	}
	s := &slot{label: label, worker: worker}
	m.byKey[key] = s
	m.slots = append(m.slots, s)
	return s
}

// View renders the model.
func (m Model) View() string {
	var b strings.Builder

	header := titleStyle.Render(m.title) + "  " + stateStyle.Render(m.state)
	if !m.done {
		header = m.spinner.View() + " " + header
	}
	b.WriteString(header + "\n")

	counter := fmt.Sprintf("%d/%d", m.snap.Current, m.snap.Max)
	b.WriteString(progressBar(m.snap.Fraction(), barWidth) + "  " + counter)
	if m.snap.Status != "" {
		b.WriteString("  " + mutedStyle.Render(m.snap.Status))
	}
	b.WriteString("\n")

	lineWidth := max(m.width-30, 10)
	for _, s := range m.slots {
		row := fmt.Sprintf("  %-10s %s", s.label, m.badge(s))
		if s.detail != "" {
			row += " " + mutedStyle.Render(s.detail)
		}
		if s.status == slotRunning {
			if line := m.lines[s.worker]; line != "" {
				row += "  " + mutedStyle.Render(truncate(line, lineWidth))
			}
		}
		b.WriteString(row + "\n")
	}

	b.WriteString(m.footer())
	return b.String()
}

func (m Model) badge(s *slot) string {
	switch s.status {
	case slotRunning:
		return badgeRunning.Render("running")
	case slotDone:
		return badgeDone.Render("done")
	case slotFailed:
		return badgeFailed.Render("failed")
	case slotKilled:
		return badgeKilled.Render("killed")
	default:
		return badgeWaiting.Render("skipped")
	}
}

func (m Model) footer() string {
	switch {
	case m.done && m.err == nil:
		return successStyle.Render("Completed") + "\n"
	case m.done && errors.IsCancellation(m.err):
		return warningStyle.Render("Cancelled: "+m.snap.Reason) + "\n"
	case m.done:
		return errorStyle.Render("Failed: "+m.err.Error()) + "\n"
	case m.snap.Cancelled:
		return warningStyle.Render("Cancelling: "+m.snap.Reason) + "\n"
	case m.cancelRequested && m.snap.CancellationDisabled:
		return helpStyle.Render("this step cannot be cancelled, waiting for it to finish") + "\n"
	case m.snap.CancellationDisabled:
		return helpStyle.Render("running (not cancellable)") + "\n"
	default:
		return helpStyle.Render("ctrl+c/q: cancel") + "\n"
	}
}
