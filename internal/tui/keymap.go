package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings for the dashboard. Keeping them in one
// struct lets the help bubble render them without a second source of
// truth.
type KeyMap struct {
	Up        key.Binding
	Down      key.Binding
	Restart   key.Binding
	Stop      key.Binding
	CopyError key.Binding
	ToggleLog key.Binding
	Help      key.Binding
	Quit      key.Binding
}

// DefaultKeyMap returns a KeyMap with default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("↑/k", "select previous service"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("↓/j", "select next service"),
		),
		Restart: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "restart selected service"),
		),
		Stop: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "stop selected service"),
		),
		CopyError: key.NewBinding(
			key.WithKeys("y", "c"),
			key.WithHelp("y/c", "copy last error"),
		),
		ToggleLog: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "toggle log overlay"),
		),
		Help: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q/ctrl+c", "quit and stop the stack"),
		),
	}
}

// FullHelp returns bindings for the help overlay, one inner slice per
// column.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Restart, k.Stop, k.CopyError},
		{k.ToggleLog, k.Help, k.Quit},
	}
}

// ShortHelp returns the minimal set of bindings shown in the status bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Restart, k.Stop, k.ToggleLog, k.Help, k.Quit}
}
