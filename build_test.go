package flowgraph

import (
	"context"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zero-day-ai/flowgraph/graph"
	"github.com/zero-day-ai/flowgraph/internal/docfmt"
	"github.com/zero-day-ai/flowgraph/link"
	"github.com/zero-day-ai/flowgraph/ns"
)

const channelDoc = `{
	"version": "0.1.0",
	"processors": ["publisher", "consumer"],
	"exchanges": {"channel": {"type": "file", "dir": "channel"}},
	"connections": {"channel": {">": ["publisher"], "<": ["consumer"]}},
}`

func parseDoc(t *testing.T, doc string) *graph.Config {
	t.Helper()
	cfg, err := graph.Parse(context.Background(), docfmt.FormatJSON, []byte(doc), t.TempDir())
	require.NoError(t, err)
	return cfg
}

func TestBuild_RoundTrip(t *testing.T) {
	ctx := context.Background()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(ctx) })

	metrics := link.NewMetrics()
	df, err := FromConfig(parseDoc(t, channelDoc),
		WithLogger(quietLogger()),
		WithTracer(tp.Tracer("test")),
		WithMetrics(metrics),
		WithRegisterer(prometheus.NewRegistry()),
	)
	require.NoError(t, err)

	tx, err := df.BuildSender(ctx, ns.MustIdent("consumer"))
	require.NoError(t, err)
	defer CloseWithLog(tx, quietLogger(), "sender")

	want := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	n, err := link.SendAll(ctx, tx, func(yield func([]byte) bool) {
		for _, p := range want {
			if !yield(p) {
				return
			}
		}
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rx, err := df.BuildReceiver(ctx, ns.MustIdent("publisher"))
	require.NoError(t, err)
	defer CloseWithLog(rx, quietLogger(), "receiver")

	var got [][]byte
	for payload, err := range link.Messages(ctx, rx) {
		require.NoError(t, err)
		got = append(got, payload)
	}
	assert.Equal(t, want, got)

	_, err = rx.Recv(ctx)
	assert.ErrorIs(t, err, io.EOF)

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.Messages.WithLabelValues("channel", string(link.DirectionSend))))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.Messages.WithLabelValues("channel", string(link.DirectionRecv))))
	assert.Equal(t, 11.0, testutil.ToFloat64(metrics.Bytes.WithLabelValues("channel", string(link.DirectionRecv))))

	names := make(map[string]int)
	for _, span := range recorder.Ended() {
		names[span.Name()]++
	}
	assert.Equal(t, 1, names["flowgraph.BuildSender"])
	assert.Equal(t, 1, names["flowgraph.BuildReceiver"])
	assert.Equal(t, 3, names["link.send"])
	assert.GreaterOrEqual(t, names["link.recv"], 3)
}

func TestBuild_Selected(t *testing.T) {
	ctx := context.Background()
	df := openTestdata(t, "fanout.json")

	rx, err := df.BuildReceiverFrom(ctx, ns.MustIdent("recorder"), ns.MustKey("frames"))
	require.NoError(t, err)
	_, err = rx.Recv(ctx)
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, rx.Close())

	tx, err := df.BuildSenderTo(ctx, ns.MustIdent("detector"), ns.MustKey("events"))
	require.NoError(t, err)
	require.NoError(t, tx.Send(ctx, []byte("discarded")))
	require.NoError(t, tx.Close())

	_, err = df.BuildSenderTo(ctx, ns.MustIdent("detector"), ns.MustKey("frames"))
	assert.ErrorIs(t, err, ErrNoSuchConnection)

	_, err = df.BuildReceiver(ctx, ns.MustIdent("recorder"))
	assert.ErrorIs(t, err, ErrInputNotSpecified)

	_, err = df.BuildSender(ctx, ns.MustIdent("recorder"))
	assert.ErrorIs(t, err, ErrNoOutputAvailable)
}

func TestBuild_ModuleExchange(t *testing.T) {
	ctx := context.Background()
	df := openTestdata(t, "fanout.json")

	rx, err := df.BuildReceiver(ctx, ns.MustIdent("myproc"))
	require.NoError(t, err)
	defer CloseWithLog(rx, nil, "receiver")

	// outer/frames is configured to fail every receive.
	_, err = rx.Recv(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestBuild_TransportFailure(t *testing.T) {
	ctx := context.Background()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(ctx) })

	df, err := FromConfig(parseDoc(t, `{
		"version": "0.1.0",
		"processors": ["writer"],
		"exchanges": {"sock": {"type": "unix", "path": "absent.sock", "connect_timeout": "20ms"}},
		"connections": {"sock": {"<": ["writer"]}},
	}`), WithLogger(quietLogger()), WithTracer(tp.Tracer("test")))
	require.NoError(t, err)

	_, err = df.BuildSender(ctx, ns.MustIdent("writer"))
	require.Error(t, err)
	assert.ErrorIs(t, err, &Error{Kind: KindTransport, Op: "BuildSender"})

	var fgErr *Error
	require.ErrorAs(t, err, &fgErr)
	assert.Equal(t, "writer", fgErr.Processor.String())
	assert.Equal(t, "sock", fgErr.Exchange.String())

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
