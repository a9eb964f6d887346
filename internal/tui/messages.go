package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"stackctl/internal/supervisor"
	"stackctl/pkg/logging"
)

// Messages delivered to Update. Channel-backed messages re-arm their
// reader command after every receive so the dashboard keeps draining
// the supervisor event stream and the log channel.

type serviceEventMsg supervisor.Event

// eventStreamClosedMsg signals that the supervisor closed its event
// channel, which only happens after StopAll has completed.
type eventStreamClosedMsg struct{}

type logEntryMsg logging.LogEntry

type logStreamClosedMsg struct{}

// snapshotTickMsg drives the periodic snapshot refresh.
type snapshotTickMsg time.Time

// stackStoppedMsg reports the outcome of the shutdown started by the
// quit key.
type stackStoppedMsg struct{ err error }

// actionResultMsg reports the outcome of a restart or stop request on a
// single service.
type actionResultMsg struct {
	verb    string
	service string
	err     error
}

// statusExpiredMsg clears a transient status bar message. The
// generation guards against clearing a newer message than the one the
// timer was armed for.
type statusExpiredMsg struct{ gen int }

// listenForEvents forwards one supervisor transition event per
// invocation.
func listenForEvents(ch <-chan supervisor.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventStreamClosedMsg{}
		}
		return serviceEventMsg(ev)
	}
}

// listenForLogs forwards one log entry per invocation.
func listenForLogs(ch <-chan logging.LogEntry) tea.Cmd {
	return func() tea.Msg {
		entry, ok := <-ch
		if !ok {
			return logStreamClosedMsg{}
		}
		return logEntryMsg(entry)
	}
}

func snapshotTickCmd() tea.Cmd {
	return tea.Tick(snapshotInterval, func(t time.Time) tea.Msg {
		return snapshotTickMsg(t)
	})
}

func statusExpireCmd(gen int) tea.Cmd {
	return tea.Tick(statusMessageTTL, func(time.Time) tea.Msg {
		return statusExpiredMsg{gen: gen}
	})
}

// stopAllCmd shuts the whole stack down. It runs in a Bubble Tea
// command goroutine so the UI stays responsive while services drain.
func stopAllCmd(sup *supervisor.Supervisor) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		return stackStoppedMsg{err: sup.StopAll(ctx)}
	}
}

// stopServiceCmd stops one service and its dependents.
func stopServiceCmd(sup *supervisor.Supervisor, name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		return actionResultMsg{verb: "stop", service: name, err: sup.Stop(ctx, name)}
	}
}
