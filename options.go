package flowgraph

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/flowgraph/link"
)

// instrumentationName names the tracer and meter used when none is given.
const instrumentationName = "github.com/zero-day-ai/flowgraph"

// Option configures a Dataflow.
type Option func(*options)

// options holds configuration for a Dataflow instance.
type options struct {
	logger        *slog.Logger
	tracer        trace.Tracer
	meterProvider metric.MeterProvider
	registerer    prometheus.Registerer
	metrics       *link.Metrics
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(instrumentationName)
	}
	if o.meterProvider == nil {
		o.meterProvider = otel.GetMeterProvider()
	}
	return o
}

// WithLogger sets a custom logger for the dataflow and the transports it
// builds. If not provided, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTracer sets an OpenTelemetry tracer. Building and every send and
// receive on built transports are traced.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider used to count
// resolver lookups.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = provider
	}
}

// WithRegisterer registers transport counters with reg. Counters already
// registered by another Dataflow on the same registerer are shared.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithMetrics uses m for transport counters instead of creating new ones.
func WithMetrics(m *link.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}
