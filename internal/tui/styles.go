package tui

import (
	"time"

	"github.com/charmbracelet/lipgloss"

	"stackctl/internal/supervisor"
)

// Constants for dashboard behavior.
const (
	// snapshotInterval defines how often the service table is refreshed
	// from a full supervisor snapshot. Transition events update rows
	// immediately; the ticker exists so relative durations and restart
	// counters stay fresh even when nothing changes state.
	snapshotInterval = 1 * time.Second

	// maxLogLines bounds the in-memory activity log.
	maxLogLines = 500

	// statusMessageTTL is how long a transient status bar message stays
	// visible before reverting to the convergence summary.
	statusMessageTTL = 3 * time.Second
)

// State glyphs. Plain unicode rather than Nerd Font icons so the
// dashboard renders correctly on terminals without patched fonts.
const (
	glyphHealthy  = "✔"
	glyphFailed   = "✖"
	glyphStopped  = "■"
	glyphWaiting  = "…"
	glyphUnstable = "!"
)

// Styles for the dashboard, defined using the lipgloss library.
var (
	appStyle = lipgloss.NewStyle().Margin(0, 0)

	// headerStyle is for the stack title line at the top.
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#FFFFFF"}).
			Background(lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#303030"}).
			Padding(0, 2)

	// tablePanelStyle frames the service table.
	tablePanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#606060", Dark: "#909090"}).
			Padding(0, 1)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#FFFFFF"})

	// selectedRowStyle highlights the row the cursor is on.
	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Background(lipgloss.AdaptiveColor{Light: "#E0E8FF", Dark: "#2A384D"})

	// Per-state foreground styles for table rows and the status glyph.
	statePendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#606060", Dark: "#909090"})
	stateStartingStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000080", Dark: "#82B0FF"})
	stateHealthyStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#004400", Dark: "#8AE234"})
	stateUnstableStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#A07000", Dark: "#FFD066"})
	stateStoppedStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#553300", Dark: "#FFB86C"})
	stateFailedStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#B30000", Dark: "#FF6B6B"}).Bold(true)

	// Log panel and per-level log line styles.
	logPanelTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#FFFFFF"})

	logPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#606060", Dark: "#A0A0A0"}).
			Padding(0, 1)

	logDebugStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#606060", Dark: "#909090"}).Italic(true)
	logInfoStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#E0E0E0"})
	logWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#A07000", Dark: "#FFD066"}).Bold(true)
	logErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#B30000", Dark: "#FF6B6B"}).Bold(true)

	// Log overlay fills the whole screen when toggled with L.
	logOverlayStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#FFFFFF"}).
			Padding(1, 2)

	// Help overlay.
	helpOverlayStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#FFFFFF"}).
				Padding(1, 2).
				Margin(2, 4)

	// Status bar.
	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#F0F0F0"}).
			Background(lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#374151"}).
			Padding(0, 1)

	statusBarReadyStyle = statusBarStyle.
				Background(lipgloss.AdaptiveColor{Light: "#10B981", Dark: "#059669"})

	statusBarErrorStyle = statusBarStyle.
				Background(lipgloss.AdaptiveColor{Light: "#EF4444", Dark: "#DC2626"})
)

// stateStyle maps a lifecycle state to its row style.
func stateStyle(st supervisor.State) lipgloss.Style {
	switch st {
	case supervisor.StateHealthy:
		return stateHealthyStyle
	case supervisor.StateStarting, supervisor.StateAwaitingHealth:
		return stateStartingStyle
	case supervisor.StateUnhealthy, supervisor.StateRestarting:
		return stateUnstableStyle
	case supervisor.StateStopped:
		return stateStoppedStyle
	case supervisor.StateFailed:
		return stateFailedStyle
	default:
		return statePendingStyle
	}
}

// stateGlyph maps a lifecycle state to a one-cell status symbol.
func stateGlyph(st supervisor.State) string {
	switch st {
	case supervisor.StateHealthy:
		return glyphHealthy
	case supervisor.StateFailed:
		return glyphFailed
	case supervisor.StateStopped:
		return glyphStopped
	case supervisor.StateUnhealthy, supervisor.StateRestarting:
		return glyphUnstable
	default:
		return glyphWaiting
	}
}
