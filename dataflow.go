package flowgraph

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/flowgraph/graph"
	"github.com/zero-day-ai/flowgraph/internal/ctxlog"
	"github.com/zero-day-ai/flowgraph/link"
	"github.com/zero-day-ai/flowgraph/ns"
)

// Dataflow is a flattened, validated topology indexed for lookups by
// processor. It is immutable once built and safe for concurrent use.
type Dataflow struct {
	config    *graph.Config
	flat      *graph.Flat
	adjacency map[ns.Ident]adjacency

	logger   *slog.Logger
	tracer   trace.Tracer
	observer *link.Observer
	resolves metric.Int64Counter
}

// adjacency holds the exchanges a processor is attached to. A nil set means
// the processor appears on no connection on that side.
type adjacency struct {
	// inputs are the exchanges listing the processor as a source.
	inputs []ns.Key
	// outputs are the exchanges listing the processor as a sink.
	outputs []ns.Key
}

// Open loads the topology document at path with all of its modules and
// builds a Dataflow from it.
func Open(ctx context.Context, path string, opts ...Option) (*Dataflow, error) {
	o := newOptions(opts)

	cfg, err := graph.Load(ctxlog.WithLogger(ctx, o.logger), path)
	if err != nil {
		return nil, &Error{Op: "Open", Kind: KindConfiguration, Err: err}
	}

	df, err := newDataflow(cfg, o)
	if err != nil {
		return nil, &Error{Op: "Open", Kind: KindConfiguration, Err: err}
	}
	return df, nil
}

// FromConfig builds a Dataflow from an already loaded document. Modules of
// cfg must have been loaded.
func FromConfig(cfg *graph.Config, opts ...Option) (*Dataflow, error) {
	df, err := newDataflow(cfg, newOptions(opts))
	if err != nil {
		return nil, &Error{Op: "FromConfig", Kind: KindConfiguration, Err: err}
	}
	return df, nil
}

func newDataflow(cfg *graph.Config, o *options) (*Dataflow, error) {
	flat, err := graph.Flatten(cfg)
	if err != nil {
		return nil, err
	}

	resolves, err := o.meterProvider.Meter(instrumentationName).Int64Counter(
		"flowgraph.resolve.count",
		metric.WithDescription("Number of exchange lookups by operation and outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create resolve counter: %w", err)
	}

	metrics := o.metrics
	if metrics == nil && o.registerer != nil {
		metrics = link.NewMetrics()
	}
	if metrics != nil && o.registerer != nil {
		if err := metrics.Register(o.registerer); err != nil {
			return nil, fmt.Errorf("register transport metrics: %w", err)
		}
	}

	df := &Dataflow{
		config:    cfg,
		flat:      flat,
		adjacency: buildAdjacency(flat),
		logger:    o.logger,
		tracer:    o.tracer,
		observer:  link.NewObserver(o.tracer, metrics),
		resolves:  resolves,
	}

	df.logger.Debug("dataflow ready",
		"processors", flat.Processors.Len(),
		"exchanges", flat.Exchanges.Len(),
		"modules", flat.Bindings.Len())

	return df, nil
}

// buildAdjacency indexes connections by processor. Receiving is fed by
// source membership and sending by sink membership.
func buildAdjacency(flat *graph.Flat) map[ns.Ident]adjacency {
	bySink := make(map[ns.Ident][]ns.Key)
	bySource := make(map[ns.Ident][]ns.Key)
	for pair := flat.Connections.Oldest(); pair != nil; pair = pair.Next() {
		for proc := range pair.Value.Sinks() {
			bySink[proc] = append(bySink[proc], pair.Key)
		}
		for proc := range pair.Value.Sources() {
			bySource[proc] = append(bySource[proc], pair.Key)
		}
	}

	adj := make(map[ns.Ident]adjacency, flat.Processors.Len())
	for proc := range flat.Processors.All() {
		adj[proc] = adjacency{
			inputs:  bySource[proc],
			outputs: bySink[proc],
		}
		delete(bySource, proc)
		delete(bySink, proc)
	}
	return adj
}

// Config returns the document the dataflow was built from.
func (d *Dataflow) Config() *graph.Config {
	return d.config
}

// Flat returns the flattened graph.
func (d *Dataflow) Flat() *graph.Flat {
	return d.flat
}

// Processors yields every declared processor in declaration order.
func (d *Dataflow) Processors() iter.Seq[ns.Ident] {
	return d.flat.Processors.All()
}

// Exchanges yields every exchange with its transport settings, in
// declaration order.
func (d *Dataflow) Exchanges() iter.Seq2[ns.Key, link.Config] {
	return func(yield func(ns.Key, link.Config) bool) {
		for pair := d.flat.Exchanges.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

// Connections yields the connection of every exchange that has one.
func (d *Dataflow) Connections() iter.Seq2[ns.Key, graph.Connection] {
	return func(yield func(ns.Key, graph.Connection) bool) {
		for pair := d.flat.Connections.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

// Bindings yields the directory each included document is mounted at, by
// absolute document path.
func (d *Dataflow) Bindings() iter.Seq2[string, ns.Dir] {
	return func(yield func(string, ns.Dir) bool) {
		for pair := d.flat.Bindings.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

// Exchange returns the transport settings of the exchange at key.
func (d *Dataflow) Exchange(key ns.Key) (link.Config, error) {
	cfg, ok := d.flat.Exchange(key)
	if !ok {
		return link.Config{}, lookupError("Exchange", KindNotFound, ns.Ident{}, key, ErrExchangeNotFound)
	}
	return cfg, nil
}

// Inputs returns the exchanges proc receives from.
func (d *Dataflow) Inputs(proc ns.Ident) ([]ns.Key, error) {
	adj, ok := d.adjacency[proc]
	if !ok {
		return nil, lookupError("Inputs", KindNotFound, proc, ns.Key{}, ErrProcessorNotFound)
	}
	return slices.Clone(adj.inputs), nil
}

// Outputs returns the exchanges proc sends to.
func (d *Dataflow) Outputs(proc ns.Ident) ([]ns.Key, error) {
	adj, ok := d.adjacency[proc]
	if !ok {
		return nil, lookupError("Outputs", KindNotFound, proc, ns.Key{}, ErrProcessorNotFound)
	}
	return slices.Clone(adj.outputs), nil
}
