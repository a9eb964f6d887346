package logging

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{" Error ", LevelError},
		{"verbose", LevelInfo},
		{"", LevelInfo},
	}
	for _, tc := range tests {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestInitForCLI_WritesSubsystemAndMessage(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelInfo, &buf)
	defer InitForCLI(LevelError, io.Discard)

	Info("Boot", "starting %d services", 3)
	Debug("Boot", "filtered out")

	out := buf.String()
	if !strings.Contains(out, "starting 3 services") {
		t.Errorf("expected the formatted message in %q", out)
	}
	if !strings.Contains(out, "subsystem=Boot") {
		t.Errorf("expected the subsystem attribute in %q", out)
	}
	if strings.Contains(out, "filtered out") {
		t.Errorf("debug entry must not pass an info filter: %q", out)
	}
}

func TestInitForTUI_DeliversEntriesOnChannel(t *testing.T) {
	ch := InitForTUI(LevelInfo)
	defer InitForCLI(LevelError, io.Discard)

	Warn("Supervisor", "probe failed for %s", "db")

	entry := <-ch
	if entry.Level != LevelWarn {
		t.Errorf("Level = %v, want %v", entry.Level, LevelWarn)
	}
	if entry.Subsystem != "Supervisor" {
		t.Errorf("Subsystem = %q, want %q", entry.Subsystem, "Supervisor")
	}
	if entry.Message != "probe failed for db" {
		t.Errorf("Message = %q, want the formatted text", entry.Message)
	}

	CloseTUIChannel()
	if _, ok := <-ch; ok {
		t.Error("channel must be closed after CloseTUIChannel")
	}
}

// Loggers racing the dashboard shutdown must end up on the fallback
// logger, never on the closed channel.
func TestCloseTUIChannel_SafeAgainstConcurrentLoggers(t *testing.T) {
	defer InitForCLI(LevelError, io.Discard)

	for round := 0; round < 25; round++ {
		ch := InitForTUI(LevelDebug)

		// Entries logged after the close land on the text logger; keep
		// them off the test's stderr.
		mu.Lock()
		defaultLogger = newTextLogger(io.Discard, LevelDebug)
		mu.Unlock()

		var drained sync.WaitGroup
		drained.Add(1)
		go func() {
			defer drained.Done()
			for range ch {
			}
		}()

		stop := make(chan struct{})
		var loggers sync.WaitGroup
		for w := 0; w < 4; w++ {
			loggers.Add(1)
			go func(n int) {
				defer loggers.Done()
				for {
					select {
					case <-stop:
						return
					default:
						Info("Test", "round %d worker %d", round, n)
					}
				}
			}(w)
		}

		CloseTUIChannel()
		close(stop)
		loggers.Wait()
		drained.Wait()
	}
}

func TestCloseTUIChannel_WithoutChannelIsNoop(t *testing.T) {
	InitForCLI(LevelError, io.Discard)
	CloseTUIChannel()
	CloseTUIChannel()
}
