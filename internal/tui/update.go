package tui

import (
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.sizeLogViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case serviceEventMsg:
		// Transition lines reach the activity log through the logging
		// channel; the event itself only refreshes the table.
		m.rows = m.sup.Snapshot()
		return m, listenForEvents(m.events)

	case eventStreamClosedMsg:
		// The supervisor only closes the stream after StopAll, so the
		// stack is down; stackStoppedMsg drives the actual quit.
		return m, nil

	case logEntryMsg:
		m.appendLog(formatLogEntry(msg))
		m.refreshLogViewport()
		return m, listenForLogs(m.logs)

	case logStreamClosedMsg:
		return m, nil

	case snapshotTickMsg:
		m.rows = m.sup.Snapshot()
		return m, snapshotTickCmd()

	case actionResultMsg:
		if msg.err != nil {
			return m.setStatus("cannot "+msg.verb+" "+msg.service+": "+msg.err.Error(), true)
		}
		return m.setStatus(msg.verb+" "+msg.service+" requested", false)

	case statusExpiredMsg:
		if msg.gen == m.statusGen {
			m.status = ""
			m.statusErr = false
		}
		return m, nil

	case stackStoppedMsg:
		m.stopErr = msg.err
		return m, tea.Quit
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.quitting {
		// Shutdown already in flight; swallow everything.
		return m, nil
	}

	// The log overlay captures navigation keys for scrolling.
	if m.showLog {
		switch {
		case key.Matches(msg, m.keys.ToggleLog), msg.String() == "esc":
			m.showLog = false
			return m, nil
		case key.Matches(msg, m.keys.CopyError):
			return m.copyToClipboard(strings.Join(m.activityLog, "\n"), "log copied to clipboard")
		case key.Matches(msg, m.keys.Quit):
			return m.beginShutdown()
		}
		var cmd tea.Cmd
		m.logViewport, cmd = m.logViewport.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.beginShutdown()

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.ToggleLog):
		m.showLog = true
		m.sizeLogViewport()
		m.refreshLogViewport()
		m.logViewport.GotoBottom()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.moveSelection(-1)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.moveSelection(1)
		return m, nil

	case key.Matches(msg, m.keys.Restart):
		row, ok := m.selectedService()
		if !ok {
			return m, nil
		}
		if err := m.sup.Restart(row.Name); err != nil {
			return m.setStatus("cannot restart "+row.Name+": "+err.Error(), true)
		}
		return m.setStatus("restart "+row.Name+" requested", false)

	case key.Matches(msg, m.keys.Stop):
		row, ok := m.selectedService()
		if !ok {
			return m, nil
		}
		next, cmd := m.setStatus("stopping "+row.Name+"...", false)
		return next, tea.Batch(cmd, stopServiceCmd(m.sup, row.Name))

	case key.Matches(msg, m.keys.CopyError):
		row, ok := m.selectedService()
		if !ok {
			return m, nil
		}
		if row.LastError == nil {
			return m.setStatus(row.Name+" has no recorded error", false)
		}
		return m.copyToClipboard(row.LastError.Error(), "error copied to clipboard")
	}

	return m, nil
}

// beginShutdown flips the model into its terminal quitting mode and
// kicks off StopAll in the background.
func (m model) beginShutdown() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.status = "stopping stack..."
	m.statusErr = false
	return m, stopAllCmd(m.sup)
}

func (m model) copyToClipboard(content, okMessage string) (tea.Model, tea.Cmd) {
	if err := clipboard.WriteAll(content); err != nil {
		return m.setStatus("clipboard: "+err.Error(), true)
	}
	return m.setStatus(okMessage, false)
}

// setStatus shows a transient status bar message and arms its expiry
// timer.
func (m model) setStatus(text string, isErr bool) (model, tea.Cmd) {
	m.status = text
	m.statusErr = isErr
	m.statusGen++
	return m, statusExpireCmd(m.statusGen)
}

func (m *model) sizeLogViewport() {
	w := m.width - logOverlayStyle.GetHorizontalFrameSize()
	h := m.height - logOverlayStyle.GetVerticalFrameSize() - 1
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	m.logViewport.Width = w
	m.logViewport.Height = h
}

func (m *model) refreshLogViewport() {
	if !m.showLog {
		return
	}
	atBottom := m.logViewport.AtBottom()
	m.logViewport.SetContent(styleLogLines(m.activityLog, m.logViewport.Width))
	if atBottom {
		m.logViewport.GotoBottom()
	}
}
