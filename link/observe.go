package link

import (
	"context"
	"errors"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Direction labels which side of an exchange a metric was recorded on.
type Direction string

const (
	DirectionSend Direction = "send"
	DirectionRecv Direction = "recv"
)

// Metrics holds the transport counters.
type Metrics struct {
	Messages *prometheus.CounterVec
	Bytes    *prometheus.CounterVec
	Errors   *prometheus.CounterVec
}

// NewMetrics creates unregistered transport counters labeled by exchange
// and direction.
func NewMetrics() *Metrics {
	labels := []string{"exchange", "direction"}
	return &Metrics{
		Messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowgraph",
				Subsystem: "link",
				Name:      "messages_total",
				Help:      "Total number of payloads moved through an exchange",
			},
			labels,
		),
		Bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowgraph",
				Subsystem: "link",
				Name:      "bytes_total",
				Help:      "Total number of payload bytes moved through an exchange",
			},
			labels,
		),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowgraph",
				Subsystem: "link",
				Name:      "errors_total",
				Help:      "Total number of failed sends and receives",
			},
			labels,
		),
	}
}

// Register adds the counters to reg. Counters already registered by an
// earlier call are reused.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []**prometheus.CounterVec{&m.Messages, &m.Bytes, &m.Errors} {
		if err := reg.Register(*c); err != nil {
			var alreadyRegErr prometheus.AlreadyRegisteredError
			if !errors.As(err, &alreadyRegErr) {
				return err
			}
			existing, ok := alreadyRegErr.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				return err
			}
			*c = existing
		}
	}
	return nil
}

func (m *Metrics) record(exchange string, dir Direction, size int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Errors.WithLabelValues(exchange, string(dir)).Inc()
		return
	}
	m.Messages.WithLabelValues(exchange, string(dir)).Inc()
	m.Bytes.WithLabelValues(exchange, string(dir)).Add(float64(size))
}

// Observer wraps senders and receivers with tracing spans and counters.
// A zero Observer records nothing.
type Observer struct {
	tracer  trace.Tracer
	metrics *Metrics
}

// NewObserver returns an observer. Either argument may be nil.
func NewObserver(tracer trace.Tracer, metrics *Metrics) *Observer {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Observer{tracer: tracer, metrics: metrics}
}

// Sender wraps s so that every Send on exchange is observed.
func (o *Observer) Sender(exchange string, s Sender) Sender {
	if o == nil {
		return s
	}
	return &observedSender{Sender: s, exchange: exchange, o: o}
}

// Receiver wraps r so that every Recv on exchange is observed.
func (o *Observer) Receiver(exchange string, r Receiver) Receiver {
	if o == nil {
		return r
	}
	return &observedReceiver{Receiver: r, exchange: exchange, o: o}
}

func (o *Observer) start(ctx context.Context, name, exchange string) (context.Context, trace.Span) {
	tracer := o.tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("flowgraph.exchange", exchange)),
	)
}

func finish(span trace.Span, size int, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("flowgraph.payload_bytes", size))
	}
	span.End()
}

type observedSender struct {
	Sender
	exchange string
	o        *Observer
}

func (s *observedSender) Send(ctx context.Context, payload []byte) error {
	ctx, span := s.o.start(ctx, "link.send", s.exchange)
	err := s.Sender.Send(ctx, payload)
	finish(span, len(payload), err)
	s.o.metrics.record(s.exchange, DirectionSend, len(payload), err)
	return err
}

// Unwrap returns the wrapped sender.
func (s *observedSender) Unwrap() Sender {
	return s.Sender
}

type observedReceiver struct {
	Receiver
	exchange string
	o        *Observer
}

func (r *observedReceiver) Recv(ctx context.Context) ([]byte, error) {
	ctx, span := r.o.start(ctx, "link.recv", r.exchange)
	payload, err := r.Receiver.Recv(ctx)
	if errors.Is(err, io.EOF) {
		span.SetAttributes(attribute.Bool("flowgraph.end_of_stream", true))
		span.End()
		return payload, err
	}
	finish(span, len(payload), err)
	r.o.metrics.record(r.exchange, DirectionRecv, len(payload), err)
	return payload, err
}

// Unwrap returns the wrapped receiver.
func (r *observedReceiver) Unwrap() Receiver {
	return r.Receiver
}
