// Package probe decides service health. A Checker performs one check
// attempt over TCP, HTTP or a command; a Monitor applies grace period,
// check interval and consecutive-failure debouncing on top of a Checker
// for a single start attempt of a service.
package probe

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"strings"

	"stackctl/internal/config"
)

// Checker performs a single health check attempt. A failure of the check
// mechanism itself (unreachable target, missing binary) counts as a
// failed check, never as a fatal error.
type Checker interface {
	Check(ctx context.Context) error
}

// NewChecker builds the checker matching a service's health check
// declaration.
func NewChecker(hc *config.HealthCheck) (Checker, error) {
	switch hc.Type {
	case config.CheckTypeTCP:
		return &TCPChecker{Address: hc.Target}, nil
	case config.CheckTypeHTTP:
		return &HTTPChecker{URL: hc.Target}, nil
	case config.CheckTypeCommand:
		return &CommandChecker{Command: hc.Command}, nil
	default:
		return nil, fmt.Errorf("unknown health check type %q", hc.Type)
	}
}

// TCPChecker succeeds when a TCP connection to Address can be opened.
type TCPChecker struct {
	Address string
}

func (c *TCPChecker) Check(ctx context.Context) error {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", c.Address)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.Address, err)
	}
	defer conn.Close()
	return nil
}

// HTTPChecker succeeds when a GET on URL returns a 2xx status.
type HTTPChecker struct {
	URL string
	// Client overrides the HTTP client, mainly for tests. The per-check
	// deadline comes from the context either way.
	Client *http.Client
}

func (c *HTTPChecker) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", c.URL, err)
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", c.URL, err)
	}
	defer resp.Body.Close()
	// Drain a little so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s returned status %d", c.URL, resp.StatusCode)
	}
	return nil
}

// CommandChecker succeeds when the command exits with status zero.
type CommandChecker struct {
	Command []string
}

func (c *CommandChecker) Check(ctx context.Context) error {
	if len(c.Command) == 0 {
		return fmt.Errorf("no check command configured")
	}
	cmd := exec.CommandContext(ctx, c.Command[0], c.Command[1:]...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("check command %q failed: %w%s", c.Command[0], err, summarize(output))
	}
	return nil
}

func summarize(output []byte) string {
	s := strings.TrimSpace(string(output))
	if s == "" {
		return ""
	}
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return fmt.Sprintf(" (output: %s)", s)
}
