// Package tui provides the interactive dashboard for stackctl up.
//
// The dashboard is a Bubble Tea program that renders one row per
// declared service, a scrolling activity log fed by pkg/logging's
// dashboard channel, and a status bar. It observes the supervisor
// through Snapshot and Subscribe and never mutates service state
// itself except through the supervisor's Restart and Stop operations.
//
// # Message Flow
//
//  1. Supervisor transition events and log entries arrive on channels.
//  2. listenForEvents and listenForLogs wrap each receive in a Bubble
//     Tea command that re-arms itself after every message.
//  3. Update folds the message into the model and View re-renders.
//
// # Keyboard Shortcuts
//
//   - Up/Down or k/j: select a service row
//   - r: restart the selected service
//   - s: stop the selected service and its dependents
//   - y or c: copy the selected service's last error to the clipboard
//   - L: toggle the full-screen log overlay
//   - h: toggle help
//   - q/Ctrl+C: quit (stops the whole stack)
package tui
