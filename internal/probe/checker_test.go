package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stackctl/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChecker(t *testing.T) {
	tests := []struct {
		name     string
		hc       config.HealthCheck
		wantType interface{}
		wantErr  bool
	}{
		{
			name:     "tcp",
			hc:       config.HealthCheck{Type: config.CheckTypeTCP, Target: "localhost:5432"},
			wantType: &TCPChecker{},
		},
		{
			name:     "http",
			hc:       config.HealthCheck{Type: config.CheckTypeHTTP, Target: "http://localhost:8080/health"},
			wantType: &HTTPChecker{},
		},
		{
			name:     "command",
			hc:       config.HealthCheck{Type: config.CheckTypeCommand, Command: []string{"true"}},
			wantType: &CommandChecker{},
		},
		{
			name:    "unknown type",
			hc:      config.HealthCheck{Type: "grpc"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker, err := NewChecker(&tt.hc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, checker)
		})
	}
}

func TestTCPChecker_Check(t *testing.T) {
	listener, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer listener.Close()

	// Accept connections in background
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	checker := &TCPChecker{Address: listener.Addr().String()}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	assert.NoError(t, checker.Check(ctx))
}

func TestTCPChecker_CheckRefused(t *testing.T) {
	// Grab a free port and close it again so nothing listens there.
	listener, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	checker := &TCPChecker{Address: addr}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err = checker.Check(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
}

func TestHTTPChecker_Check(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		expectError bool
	}{
		{name: "200 is healthy", status: http.StatusOK},
		{name: "204 is healthy", status: http.StatusNoContent},
		{name: "500 is unhealthy", status: http.StatusInternalServerError, expectError: true},
		{name: "404 is unhealthy", status: http.StatusNotFound, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			checker := &HTTPChecker{URL: server.URL}
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()

			err := checker.Check(ctx)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "returned status")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHTTPChecker_CheckUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	checker := &HTTPChecker{URL: url}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := checker.Check(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reach")
}

func TestCommandChecker_Check(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	ok := &CommandChecker{Command: []string{"true"}}
	assert.NoError(t, ok.Check(ctx))

	failing := &CommandChecker{Command: []string{"false"}}
	assert.Error(t, failing.Check(ctx))
}

func TestCommandChecker_MissingBinaryIsFailedCheck(t *testing.T) {
	ctx := context.Background()
	checker := &CommandChecker{Command: []string{"definitely-not-a-real-binary-3141"}}

	// The broken check mechanism shows up as an ordinary failed check.
	err := checker.Check(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check command")
}

func TestCommandChecker_IncludesOutput(t *testing.T) {
	ctx := context.Background()
	checker := &CommandChecker{Command: []string{"sh", "-c", "echo connection refused >&2; exit 1"}}

	err := checker.Check(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
