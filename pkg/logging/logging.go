package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel defines the severity of the log entry.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String makes LogLevel satisfy the fmt.Stringer interface.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps a --log-level flag value to a LogLevel. Unknown values
// fall back to info so a typo never silences the log entirely.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// LogEntry is the structured log entry passed to the dashboard.
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Subsystem string
	Message   string
	Err       error
}

// mu guards the mode switch: Init and Close swap the fields below while
// supervised goroutines log concurrently.
var (
	mu            sync.Mutex
	defaultLogger *slog.Logger
	filterLevel   LogLevel
	dashChannel   chan LogEntry
	dashMode      bool
)

const dashChannelBufferSize = 2048

// InitForTUI initializes logging for dashboard mode. Entries at or above
// level are delivered on the returned channel instead of being written to
// a terminal the dashboard owns.
func InitForTUI(level LogLevel) <-chan LogEntry {
	mu.Lock()
	defer mu.Unlock()
	dashMode = true
	filterLevel = level
	dashChannel = make(chan LogEntry, dashChannelBufferSize)
	// Keep a stderr handler around for anything logged before the
	// dashboard starts draining the channel.
	defaultLogger = newTextLogger(os.Stderr, level)
	slog.SetDefault(defaultLogger)
	return dashChannel
}

// InitForCLI initializes logging for plain CLI mode, writing slog text
// output to the given writer.
func InitForCLI(level LogLevel, output io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	dashMode = false
	filterLevel = level
	dashChannel = nil
	defaultLogger = newTextLogger(output, level)
	slog.SetDefault(defaultLogger)
}

func newTextLogger(w io.Writer, level LogLevel) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level.SlogLevel(),
	}))
}

func logInternal(level LogLevel, subsystem string, err error, messageFmt string, args ...interface{}) {
	mu.Lock()
	if level < filterLevel {
		mu.Unlock()
		return
	}
	msg := messageFmt
	if len(args) > 0 {
		msg = fmt.Sprintf(messageFmt, args...)
	}

	if dashMode {
		entry := LogEntry{
			Timestamp: time.Now(),
			Level:     level,
			Subsystem: subsystem,
			Message:   msg,
			Err:       err,
		}
		// CloseTUIChannel closes the channel under this same lock, so
		// the send can never hit a closed channel.
		select {
		case dashChannel <- entry:
		default:
			// Dashboard stalled and the buffer is full; dropping beats
			// deadlocking the component that logged.
		}
		mu.Unlock()
		return
	}

	logger := defaultLogger
	mu.Unlock()

	if logger == nil {
		fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", level, subsystem, msg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  error: %v\n", err)
		}
		return
	}

	attrs := []slog.Attr{slog.String("subsystem", subsystem)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logger.LogAttrs(context.Background(), level.SlogLevel(), msg, attrs...)
}

// Debug logs a debug message.
func Debug(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelDebug, subsystem, nil, messageFmt, args...)
}

// Info logs an informational message.
func Info(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelInfo, subsystem, nil, messageFmt, args...)
}

// Warn logs a warning message.
func Warn(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelWarn, subsystem, nil, messageFmt, args...)
}

// Error logs an error message.
func Error(subsystem string, err error, messageFmt string, args ...interface{}) {
	logInternal(LevelError, subsystem, err, messageFmt, args...)
}

// CloseTUIChannel closes the dashboard log channel on shutdown. Later
// log calls fall back to the stderr handler kept by InitForTUI.
func CloseTUIChannel() {
	mu.Lock()
	defer mu.Unlock()
	if dashChannel != nil {
		close(dashChannel)
		dashMode = false
		dashChannel = nil
	}
}
