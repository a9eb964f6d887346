package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stackctl/internal/supervisor"
	"stackctl/pkg/logging"
)

// model holds the dashboard state. All mutation happens inside Update;
// the supervisor is only read through Snapshot and written through its
// Restart and Stop operations.
type model struct {
	sup   *supervisor.Supervisor
	stack string

	rows     []supervisor.ServiceStatus
	selected int

	events <-chan supervisor.Event
	logs   <-chan logging.LogEntry

	activityLog []string

	spinner     spinner.Model
	help        help.Model
	logViewport viewport.Model
	keys        KeyMap

	width  int
	height int

	showHelp bool
	showLog  bool

	// status bar message with expiry generation
	status    string
	statusErr bool
	statusGen int

	quitting bool
	stopErr  error
}

// InitialModel constructs the dashboard model for a started supervisor.
func InitialModel(sup *supervisor.Supervisor, stack string, logCh <-chan logging.LogEntry) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	h := help.New()
	h.ShowAll = true

	return model{
		sup:         sup,
		stack:       stack,
		rows:        sup.Snapshot(),
		events:      sup.Subscribe(),
		logs:        logCh,
		activityLog: make([]string, 0, maxLogLines),
		spinner:     s,
		help:        h,
		logViewport: viewport.New(0, 0),
		keys:        DefaultKeyMap(),
	}
}

// NewProgram creates the Bubble Tea program for the dashboard. The
// supervisor must already be started; the caller runs the returned
// program and tears the stack down when it exits.
func NewProgram(sup *supervisor.Supervisor, stack string, logCh <-chan logging.LogEntry) *tea.Program {
	return tea.NewProgram(InitialModel(sup, stack, logCh), tea.WithAltScreen())
}

// Run starts the dashboard and blocks until the user quits. Quitting
// stops the whole stack; the error from that shutdown, if any, is
// returned alongside none from the UI itself.
func Run(sup *supervisor.Supervisor, stack string, logCh <-chan logging.LogEntry) error {
	final, err := NewProgram(sup, stack, logCh).Run()
	if err != nil {
		return err
	}
	if m, ok := final.(model); ok {
		return m.stopErr
	}
	return nil
}

// StopError exposes the outcome of the shutdown triggered by the quit
// key, for the command layer to surface after the program exits.
func (m model) StopError() error { return m.stopErr }

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		listenForEvents(m.events),
		listenForLogs(m.logs),
		snapshotTickCmd(),
	)
}

// appendLog adds one line to the activity log, enforcing maxLogLines.
func (m *model) appendLog(line string) {
	m.activityLog = append(m.activityLog, line)
	if len(m.activityLog) > maxLogLines {
		m.activityLog = m.activityLog[len(m.activityLog)-maxLogLines:]
	}
}

// selectedService returns the snapshot row the cursor is on.
func (m *model) selectedService() (supervisor.ServiceStatus, bool) {
	if len(m.rows) == 0 || m.selected < 0 || m.selected >= len(m.rows) {
		return supervisor.ServiceStatus{}, false
	}
	return m.rows[m.selected], true
}

// moveSelection moves the cursor by delta, wrapping at both ends.
func (m *model) moveSelection(delta int) {
	if len(m.rows) == 0 {
		return
	}
	m.selected = (m.selected + delta + len(m.rows)) % len(m.rows)
}
