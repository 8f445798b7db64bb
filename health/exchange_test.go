package health

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/flowgraph/link"
	"github.com/zero-day-ai/flowgraph/link/amqp"
	"github.com/zero-day-ai/flowgraph/link/pubsub"
	"github.com/zero-day-ai/flowgraph/ns"
)

func TestCheckExchange(t *testing.T) {
	t.Setenv(pubsub.EnvRedisURL, "")
	t.Setenv(pubsub.EnvNATSURL, "")
	t.Setenv(pubsub.EnvEtcdEndpoints, "")
	t.Setenv(amqp.EnvAddress, "")

	mr := miniredis.RunT(t)
	host, port := listenTCP(t)
	listening := fmt.Sprintf("%s:%d", host, port)
	closed := fmt.Sprintf("127.0.0.1:%d", closedPort(t))
	dir := t.TempDir()

	tests := []struct {
		name  string
		cfg   link.Config
		state State
	}{
		{name: "null", cfg: link.NullConfig(""), state: StateHealthy},
		{name: "file present", cfg: link.FileConfig(dir), state: StateHealthy},
		{name: "file pending", cfg: link.FileConfig(filepath.Join(dir, "later")), state: StateDegraded},
		{name: "unix pending", cfg: link.UnixConfig(filepath.Join(dir, "later.sock")), state: StateDegraded},
		{
			name:  "redis up",
			cfg:   link.Config{Kind: link.KindPubSub, PubSub: &pubsub.Config{Key: "k", Address: "redis://" + mr.Addr()}},
			state: StateHealthy,
		},
		{
			name:  "redis down",
			cfg:   link.Config{Kind: link.KindPubSub, PubSub: &pubsub.Config{Key: "k", Address: "redis://" + closed}},
			state: StateUnhealthy,
		},
		{
			name:  "nats up",
			cfg:   link.Config{Kind: link.KindPubSub, PubSub: &pubsub.Config{Key: "k", Driver: pubsub.DriverNATS, Address: "nats://" + listening}},
			state: StateHealthy,
		},
		{
			name: "etcd one of two down",
			cfg: link.Config{Kind: link.KindPubSub, PubSub: &pubsub.Config{
				Key: "k", Driver: pubsub.DriverEtcd, Address: listening + ",http://" + closed,
			}},
			state: StateUnhealthy,
		},
		{
			name:  "amqp up",
			cfg:   link.Config{Kind: link.KindAMQP, AMQP: &amqp.Config{Address: "amqp://guest:guest@" + listening + "/", Exchange: "e"}},
			state: StateHealthy,
		},
		{
			name:  "amqp bad address",
			cfg:   link.Config{Kind: link.KindAMQP, AMQP: &amqp.Config{Address: "http://nope", Exchange: "e"}},
			state: StateUnhealthy,
		},
		{
			name:  "invalid settings",
			cfg:   link.Config{Kind: link.KindPubSub, PubSub: &pubsub.Config{}},
			state: StateUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := CheckExchange(context.Background(), tt.cfg)
			assert.Equal(t, tt.state, status.State, status.Message)
		})
	}
}

func exchangesOf(pairs map[string]link.Config, order ...string) iter.Seq2[ns.Key, link.Config] {
	return func(yield func(ns.Key, link.Config) bool) {
		for _, key := range order {
			if !yield(ns.MustKey(key), pairs[key]) {
				return
			}
		}
	}
}

func TestChecker_Check(t *testing.T) {
	dir := t.TempDir()
	reg := prometheus.NewRegistry()

	checker := NewChecker(WithParallelism(2), WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, checker.Register(reg))

	exchanges := exchangesOf(map[string]link.Config{
		"frames":       link.NullConfig(""),
		"outer/spool":  link.FileConfig(dir),
		"outer/later":  link.FileConfig(filepath.Join(dir, "later")),
		"inner/socket": link.UnixConfig(filepath.Join(dir, "x.sock")),
	}, "frames", "outer/spool", "outer/later", "inner/socket")

	report, err := checker.Check(context.Background(), exchanges)
	require.NoError(t, err)

	assert.Len(t, report.Exchanges, 4)
	assert.True(t, report.Exchanges["frames"].IsHealthy())
	assert.True(t, report.Exchanges["outer/later"].IsDegraded())
	assert.True(t, report.Overall.IsDegraded())
	assert.Equal(t, "2 check(s) degraded", report.Overall.Message)

	assert.Equal(t, 1.0, testutil.ToFloat64(checker.Gauge().WithLabelValues("outer/spool", "file")))
	assert.Equal(t, 0.5, testutil.ToFloat64(checker.Gauge().WithLabelValues("inner/socket", "unix")))

	// A second checker on the same registry shares the gauge.
	again := NewChecker()
	require.NoError(t, again.Register(reg))
	assert.Same(t, checker.Gauge(), again.Gauge())
}

func TestChecker_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	checker := NewChecker(WithLogger(slog.New(slog.DiscardHandler)))
	_, err := checker.Check(ctx, exchangesOf(map[string]link.Config{"e": link.NullConfig("")}, "e"))
	assert.ErrorIs(t, err, context.Canceled)
}
