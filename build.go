package flowgraph

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/flowgraph/internal/ctxlog"
	"github.com/zero-day-ai/flowgraph/link"
	"github.com/zero-day-ai/flowgraph/ns"
)

// BuildReceiver resolves the only exchange proc receives from and builds a
// receiver for it. Building may block while the transport is set up.
func (d *Dataflow) BuildReceiver(ctx context.Context, proc ns.Ident) (link.Receiver, error) {
	key, cfg, err := d.resolve(receiving, proc)
	if err != nil {
		return nil, err
	}
	return d.buildReceiver(ctx, "BuildReceiver", proc, key, cfg)
}

// BuildReceiverFrom builds a receiver on exchange for proc.
func (d *Dataflow) BuildReceiverFrom(ctx context.Context, proc ns.Ident, exchange ns.Key) (link.Receiver, error) {
	cfg, err := d.ResolveReceiverFrom(proc, exchange)
	if err != nil {
		return nil, err
	}
	return d.buildReceiver(ctx, "BuildReceiverFrom", proc, exchange, cfg)
}

// BuildSender resolves the only exchange proc sends to and builds a sender
// for it.
func (d *Dataflow) BuildSender(ctx context.Context, proc ns.Ident) (link.Sender, error) {
	key, cfg, err := d.resolve(sending, proc)
	if err != nil {
		return nil, err
	}
	return d.buildSender(ctx, "BuildSender", proc, key, cfg)
}

// BuildSenderTo builds a sender on exchange for proc.
func (d *Dataflow) BuildSenderTo(ctx context.Context, proc ns.Ident, exchange ns.Key) (link.Sender, error) {
	cfg, err := d.ResolveSenderTo(proc, exchange)
	if err != nil {
		return nil, err
	}
	return d.buildSender(ctx, "BuildSenderTo", proc, exchange, cfg)
}

func (d *Dataflow) buildReceiver(ctx context.Context, op string, proc ns.Ident, key ns.Key, cfg link.Config) (link.Receiver, error) {
	ctx, span := d.startBuild(ctx, op, proc, key, cfg)
	defer span.End()

	r, err := cfg.BuildReceiver(ctx)
	if err != nil {
		return nil, d.buildFailed(span, op, proc, key, err)
	}

	d.logger.Info("receiver built", "processor", proc, "exchange", key, "transport", cfg.String())
	return d.observer.Receiver(key.String(), r), nil
}

func (d *Dataflow) buildSender(ctx context.Context, op string, proc ns.Ident, key ns.Key, cfg link.Config) (link.Sender, error) {
	ctx, span := d.startBuild(ctx, op, proc, key, cfg)
	defer span.End()

	s, err := cfg.BuildSender(ctx)
	if err != nil {
		return nil, d.buildFailed(span, op, proc, key, err)
	}

	d.logger.Info("sender built", "processor", proc, "exchange", key, "transport", cfg.String())
	return d.observer.Sender(key.String(), s), nil
}

func (d *Dataflow) startBuild(ctx context.Context, op string, proc ns.Ident, key ns.Key, cfg link.Config) (context.Context, trace.Span) {
	ctx = ctxlog.WithLogger(ctx, d.logger.With("processor", proc, "exchange", key))
	return d.tracer.Start(ctx, "flowgraph."+op,
		trace.WithAttributes(
			attribute.String("flowgraph.processor", proc.String()),
			attribute.String("flowgraph.exchange", key.String()),
			attribute.String("flowgraph.transport", string(cfg.Kind)),
		),
	)
}

func (d *Dataflow) buildFailed(span trace.Span, op string, proc ns.Ident, key ns.Key, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	d.logger.Error("failed to build transport", "op", op, "processor", proc, "exchange", key, "error", err)
	return lookupError(op, KindTransport, proc, key, err)
}
