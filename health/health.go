package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

const defaultDialTimeout = 5 * time.Second

// NetworkCheck verifies TCP connectivity to a host and port.
// It uses the provided context for timeout and cancellation control.
//
// Example:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	status := health.NetworkCheck(ctx, "localhost", 5672)
func NetworkCheck(ctx context.Context, host string, port int) Status {
	if host == "" {
		return Unhealthy("host cannot be empty", nil)
	}

	if port <= 0 || port > 65535 {
		return Unhealthy(
			fmt.Sprintf("invalid port number: %d", port),
			map[string]any{"port": port},
		)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultDialTimeout)
		defer cancel()
	}

	address := net.JoinHostPort(host, strconv.Itoa(port))
	var dialer net.Dialer

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return Unhealthy(
			fmt.Sprintf("failed to connect to %s", address),
			map[string]any{
				"host":  host,
				"port":  port,
				"error": err.Error(),
			},
		)
	}
	conn.Close()

	return Healthy(fmt.Sprintf("successfully connected to %s", address))
}

// AddressCheck is NetworkCheck for a "host:port" address. A missing port is
// replaced by defaultPort.
func AddressCheck(ctx context.Context, address string, defaultPort int) Status {
	host, portText, err := net.SplitHostPort(address)
	if err != nil {
		host, portText = address, strconv.Itoa(defaultPort)
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		return Unhealthy(
			fmt.Sprintf("invalid port in address %q", address),
			map[string]any{"address": address},
		)
	}
	return NetworkCheck(ctx, host, port)
}

// FileCheck verifies that a directory exists at path. A missing directory
// is degraded: file exchanges create it when the sender starts.
func FileCheck(path string) Status {
	if path == "" {
		return Unhealthy("path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Degraded(
				fmt.Sprintf("directory '%s' does not exist yet", path),
				map[string]any{"path": path},
			)
		}
		return Unhealthy(
			fmt.Sprintf("failed to stat path '%s'", path),
			map[string]any{
				"path":  path,
				"error": err.Error(),
			},
		)
	}

	if !info.IsDir() {
		return Unhealthy(
			fmt.Sprintf("path '%s' is not a directory", path),
			map[string]any{"path": path},
		)
	}
	return Healthy(fmt.Sprintf("directory '%s' exists", path))
}

// SocketCheck verifies that a Unix socket is bound at path. A missing
// socket is degraded: senders wait for the receiver to bind it.
func SocketCheck(path string) Status {
	if path == "" {
		return Unhealthy("path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Degraded(
				fmt.Sprintf("socket '%s' is not bound yet", path),
				map[string]any{"path": path},
			)
		}
		return Unhealthy(
			fmt.Sprintf("failed to stat path '%s'", path),
			map[string]any{
				"path":  path,
				"error": err.Error(),
			},
		)
	}

	if info.Mode()&os.ModeSocket == 0 {
		return Unhealthy(
			fmt.Sprintf("path '%s' is not a socket", path),
			map[string]any{"path": path},
		)
	}
	return Healthy(fmt.Sprintf("socket '%s' is bound", path))
}

// Combine aggregates multiple health checks into a single status.
// The result follows this priority:
//   - If any check is unhealthy, the result is unhealthy
//   - If any check is degraded (and none unhealthy), the result is degraded
//   - If all checks are healthy, the result is healthy
func Combine(checks ...Status) Status {
	if len(checks) == 0 {
		return Healthy("no checks provided")
	}

	var unhealthyChecks []string
	var degradedChecks []string
	var healthyCount int

	for _, check := range checks {
		msg := check.Message
		if msg == "" {
			msg = "unnamed check"
		}
		switch check.State {
		case StateUnhealthy:
			unhealthyChecks = append(unhealthyChecks, msg)
		case StateDegraded:
			degradedChecks = append(degradedChecks, msg)
		case StateHealthy:
			healthyCount++
		}
	}

	if len(unhealthyChecks) > 0 {
		return Unhealthy(
			fmt.Sprintf("%d check(s) failed", len(unhealthyChecks)),
			map[string]any{
				"total":         len(checks),
				"unhealthy":     len(unhealthyChecks),
				"degraded":      len(degradedChecks),
				"healthy":       healthyCount,
				"failed_checks": unhealthyChecks,
			},
		)
	}

	if len(degradedChecks) > 0 {
		return Degraded(
			fmt.Sprintf("%d check(s) degraded", len(degradedChecks)),
			map[string]any{
				"total":           len(checks),
				"degraded":        len(degradedChecks),
				"healthy":         healthyCount,
				"degraded_checks": degradedChecks,
			},
		)
	}

	return Healthy(fmt.Sprintf("all %d check(s) passed", len(checks)))
}
