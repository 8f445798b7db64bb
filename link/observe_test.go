package link

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestObserver_Sender(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))

	obs := NewObserver(tp.Tracer("test"), metrics)
	tx := obs.Sender("outer/channel", &memSender{failAt: 2})

	ctx := context.Background()
	require.NoError(t, tx.Send(ctx, []byte("abcd")))
	require.Error(t, tx.Send(ctx, []byte("x")))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Messages.WithLabelValues("outer/channel", "send")))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.Bytes.WithLabelValues("outer/channel", "send")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Errors.WithLabelValues("outer/channel", "send")))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "link.send", spans[0].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestObserver_ReceiverEOF(t *testing.T) {
	metrics := NewMetrics()
	obs := NewObserver(nil, metrics)
	rx := obs.Receiver("channel", &memReceiver{payloads: bytesOf("ab")})

	n := 0
	for _, err := range Messages(context.Background(), rx) {
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 1, n)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Messages.WithLabelValues("channel", "recv")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.Errors.WithLabelValues("channel", "recv")))

	require.NoError(t, rx.Close())
	unwrapped := rx.(interface{ Unwrap() Receiver }).Unwrap()
	assert.True(t, unwrapped.(*memReceiver).closed)
}

func TestObserver_ReceiverError(t *testing.T) {
	metrics := NewMetrics()
	rx := NewObserver(nil, metrics).Receiver("channel", &memReceiver{err: errors.New("down")})

	_, err := rx.Recv(context.Background())
	assert.EqualError(t, err, "down")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Errors.WithLabelValues("channel", "recv")))
}

func TestObserver_Nil(t *testing.T) {
	var obs *Observer
	tx := &memSender{}
	assert.Same(t, tx, obs.Sender("x", tx))

	var zero Observer
	wrapped := zero.Sender("x", tx)
	assert.NoError(t, wrapped.Send(context.Background(), []byte("ok")))
}

func TestMetrics_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewMetrics()
	require.NoError(t, first.Register(reg))

	second := NewMetrics()
	require.NoError(t, second.Register(reg))
	assert.Same(t, first.Messages, second.Messages)
}
