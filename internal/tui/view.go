package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"stackctl/internal/supervisor"
)

const fallbackWidth = 80

// View implements tea.Model.
func (m model) View() string {
	width := m.width
	if width <= 0 {
		width = fallbackWidth
	}

	if m.quitting {
		return m.renderQuitting(width)
	}
	if m.showLog {
		return m.renderLogOverlay(width)
	}

	sections := []string{
		m.renderHeader(width),
		m.renderTable(width),
	}
	if tail := m.renderLogTail(width); tail != "" {
		sections = append(sections, tail)
	}
	sections = append(sections, m.renderStatusBar(width))
	view := lipgloss.JoinVertical(lipgloss.Left, sections...)

	if m.showHelp {
		return m.renderHelpOverlay(width, view)
	}
	return appStyle.Render(view)
}

func (m model) renderHeader(width int) string {
	indicator := m.spinner.View()
	if m.allHealthy() {
		indicator = stateHealthyStyle.Render(glyphHealthy + " ")
	}
	title := fmt.Sprintf("%sstackctl · %s", indicator, m.stack)
	return headerStyle.Width(width).Render(title)
}

func (m model) renderTable(width int) string {
	inner := width - tablePanelStyle.GetHorizontalFrameSize()
	if inner < 20 {
		inner = 20
	}

	nameW := runewidth.StringWidth("SERVICE")
	for _, row := range m.rows {
		if w := runewidth.StringWidth(row.Name); w > nameW {
			nameW = w
		}
	}
	if nameW > 24 {
		nameW = 24
	}

	const (
		stateW    = 15 // widest state name
		restartsW = 8
		sinceW    = 6
		gap       = 2
	)
	errW := inner - 2 - 2 - nameW - stateW - restartsW - sinceW - 4*gap
	if errW < 8 {
		errW = 8
	}

	sep := strings.Repeat(" ", gap)
	header := tableHeaderStyle.Render(
		"  " + "  " + cell("SERVICE", nameW) + sep + cell("STATE", stateW) + sep +
			cell("RESTARTS", restartsW) + sep + cell("SINCE", sinceW) + sep + cell("LAST ERROR", errW))

	lines := []string{header}
	for i, row := range m.rows {
		lines = append(lines, m.renderRow(i, row, nameW, stateW, restartsW, sinceW, errW, sep))
	}
	return tablePanelStyle.Width(inner).Render(strings.Join(lines, "\n"))
}

func (m model) renderRow(i int, row supervisor.ServiceStatus, nameW, stateW, restartsW, sinceW, errW int, sep string) string {
	cursor := "  "
	name := cell(row.Name, nameW)
	if i == m.selected {
		cursor = "❯ "
		name = selectedRowStyle.Render(name)
	}

	style := stateStyle(row.State)
	glyph := style.Render(stateGlyph(row.State)) + " "
	state := style.Render(cell(string(row.State), stateW))

	errCell := cell("-", errW)
	if row.LastError != nil {
		errCell = stateFailedStyle.Render(cell(row.LastError.Error(), errW))
	}

	return cursor + glyph + name + sep + state + sep +
		cell(strconv.Itoa(row.Restarts), restartsW) + sep +
		cell(formatSince(time.Since(row.Since)), sinceW) + sep + errCell
}

// renderLogTail shows the last activity log lines below the table. On
// short terminals it is dropped entirely; the overlay remains
// available.
func (m model) renderLogTail(width int) string {
	avail := 12
	if m.height > 0 {
		tableHeight := len(m.rows) + 3
		avail = m.height - tableHeight - 5
		if avail < 4 {
			return ""
		}
		if avail > 12 {
			avail = 12
		}
	}

	inner := width - logPanelStyle.GetHorizontalFrameSize()
	if inner < 10 {
		inner = 10
	}

	tail := m.activityLog
	if len(tail) > avail {
		tail = tail[len(tail)-avail:]
	}
	body := styleLogLines(tail, inner)
	if len(tail) == 0 {
		body = logDebugStyle.Render("(no activity yet)")
	}
	content := lipgloss.JoinVertical(lipgloss.Left, logPanelTitleStyle.Render("Activity Log"), body)
	return logPanelStyle.Width(inner).Render(content)
}

func (m model) renderStatusBar(width int) string {
	style := statusBarStyle
	text := m.status
	switch {
	case m.statusErr:
		style = statusBarErrorStyle
	case text == "":
		healthy, failed := m.countStates()
		text = fmt.Sprintf("%d/%d healthy", healthy, len(m.rows))
		if failed > 0 {
			text += fmt.Sprintf(" · %d failed", failed)
			style = statusBarErrorStyle
		} else if healthy == len(m.rows) && len(m.rows) > 0 {
			text += " · converged"
			style = statusBarReadyStyle
		}
		text += " · h help"
	}
	return style.Width(width).Render(text)
}

func (m model) renderLogOverlay(width int) string {
	title := logPanelTitleStyle.Render("Activity Log  (↑/↓ scroll · y/c copy · Esc close)")
	content := lipgloss.JoinVertical(lipgloss.Left, title, m.logViewport.View())
	return logOverlayStyle.
		Width(width - logOverlayStyle.GetHorizontalFrameSize()).
		Render(content)
}

func (m model) renderHelpOverlay(width int, background string) string {
	box := helpOverlayStyle.Render(m.help.View(m.keys))
	height := m.height
	if height <= 0 {
		height = lipgloss.Height(background)
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

func (m model) renderQuitting(width int) string {
	height := m.height
	if height <= 0 {
		height = 24
	}
	msg := m.spinner.View() + "stopping stack..."
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, msg)
}

func (m model) allHealthy() bool {
	if len(m.rows) == 0 {
		return false
	}
	for _, row := range m.rows {
		if row.State != supervisor.StateHealthy {
			return false
		}
	}
	return true
}

func (m model) countStates() (healthy, failed int) {
	for _, row := range m.rows {
		switch row.State {
		case supervisor.StateHealthy:
			healthy++
		case supervisor.StateFailed:
			failed++
		}
	}
	return healthy, failed
}

// cell truncates text to width and pads it back out so columns stay
// aligned regardless of rune width.
func cell(text string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(text, width, "…"), width)
}

// formatSince renders a duration since a state change in compact form.
func formatSince(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// formatLogEntry renders a log entry as a single activity log line.
func formatLogEntry(e logEntryMsg) string {
	line := fmt.Sprintf("%s %-5s %s: %s",
		e.Timestamp.Format("15:04:05"), e.Level.String(), e.Subsystem, e.Message)
	if e.Err != nil {
		line += ": " + e.Err.Error()
	}
	return line
}

// styleLogLines truncates long lines so the viewport never wraps and
// applies a per-level color based on the level token in the line.
func styleLogLines(lines []string, maxWidth int) string {
	out := make([]string, len(lines))
	for i, raw := range lines {
		line := raw
		if maxWidth > 0 && runewidth.StringWidth(line) > maxWidth {
			line = runewidth.Truncate(line, maxWidth, "…")
		}
		out[i] = styleLogLine(line)
	}
	return strings.Join(out, "\n")
}

func styleLogLine(l string) string {
	switch {
	case strings.Contains(l, "ERROR"):
		return logErrorStyle.Render(l)
	case strings.Contains(l, "WARN"):
		return logWarnStyle.Render(l)
	case strings.Contains(l, "DEBUG"):
		return logDebugStyle.Render(l)
	default:
		return logInfoStyle.Render(l)
	}
}
