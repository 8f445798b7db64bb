package health

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenTCP(t *testing.T) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

// closedPort returns a local port nothing listens on.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func TestNetworkCheck(t *testing.T) {
	host, port := listenTCP(t)

	tests := []struct {
		name  string
		host  string
		port  int
		state State
	}{
		{name: "listening", host: host, port: port, state: StateHealthy},
		{name: "closed", host: "127.0.0.1", port: closedPort(t), state: StateUnhealthy},
		{name: "empty host", host: "", port: 80, state: StateUnhealthy},
		{name: "port zero", host: host, port: 0, state: StateUnhealthy},
		{name: "port too large", host: host, port: 70000, state: StateUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			status := NetworkCheck(ctx, tt.host, tt.port)
			assert.Equal(t, tt.state, status.State, status.Message)
			assert.NotEmpty(t, status.Message)
		})
	}
}

func TestAddressCheck(t *testing.T) {
	host, port := listenTCP(t)
	ctx := context.Background()

	assert.True(t, AddressCheck(ctx, net.JoinHostPort(host, strconv.Itoa(port)), 1).IsHealthy())
	assert.True(t, AddressCheck(ctx, host, port).IsHealthy(), "default port applies")
	assert.True(t, AddressCheck(ctx, host+":http-ish", port).IsUnhealthy())
}

func TestFileCheck(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	tests := []struct {
		name  string
		path  string
		state State
	}{
		{name: "directory", path: dir, state: StateHealthy},
		{name: "missing", path: filepath.Join(dir, "later"), state: StateDegraded},
		{name: "regular file", path: file, state: StateUnhealthy},
		{name: "empty", path: "", state: StateUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.state, FileCheck(tt.path).State)
		})
	}
}

func TestSocketCheck(t *testing.T) {
	dir, err := os.MkdirTemp("", "fgh")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, "s.sock")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	file := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	assert.True(t, SocketCheck(path).IsHealthy())
	assert.True(t, SocketCheck(filepath.Join(dir, "absent.sock")).IsDegraded())
	assert.True(t, SocketCheck(file).IsUnhealthy())
	assert.True(t, SocketCheck("").IsUnhealthy())
}

func TestCombine(t *testing.T) {
	tests := []struct {
		name    string
		checks  []Status
		state   State
		message string
	}{
		{
			name:    "no checks",
			state:   StateHealthy,
			message: "no checks provided",
		},
		{
			name:    "all healthy",
			checks:  []Status{Healthy("a"), Healthy("b")},
			state:   StateHealthy,
			message: "all 2 check(s) passed",
		},
		{
			name:    "degraded wins over healthy",
			checks:  []Status{Healthy("a"), Degraded("b", nil)},
			state:   StateDegraded,
			message: "1 check(s) degraded",
		},
		{
			name:    "unhealthy wins over degraded",
			checks:  []Status{Unhealthy("a", nil), Degraded("b", nil), Unhealthy("", nil)},
			state:   StateUnhealthy,
			message: "2 check(s) failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := Combine(tt.checks...)
			assert.Equal(t, tt.state, status.State)
			assert.Equal(t, tt.message, status.Message)
		})
	}

	failed := Combine(Unhealthy("a", nil), Unhealthy("", nil))
	assert.Equal(t, []string{"a", "unnamed check"}, failed.Details["failed_checks"])
}

func TestStatus_Score(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   float64
	}{
		{name: "bound socket", status: Healthy("socket bound"), want: 1},
		{name: "folder pending", status: Degraded("folder not created yet", nil), want: 0.5},
		{name: "broker unreachable", status: Unhealthy("dial failed", nil), want: 0},
		{name: "zero value", status: Status{}, want: 0},
		{name: "unknown state", status: Status{State: State("starting")}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.score())
		})
	}
}

func TestStatus_JSON(t *testing.T) {
	data, err := json.Marshal(Degraded("folder not created yet", map[string]any{"path": "/tmp/drop"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"degraded","message":"folder not created yet","details":{"path":"/tmp/drop"}}`, string(data))
}
