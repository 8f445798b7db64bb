// Package flowgraph resolves declarative dataflow topologies into transports.
//
// Independent processes, called processors, exchange byte messages through
// named exchanges. Which transport backs an exchange (a drop folder, a Unix
// socket, an AMQP queue, a pub/sub key or nothing at all) is chosen by the
// topology document, not by the processor's code.
//
// # Core Concepts
//
//   - Processors: the participants, identified by a flat name
//   - Exchanges: named channels with transport settings, namespaced by module
//   - Connections: per exchange, the processors on its sink and source sides
//   - Modules: other documents mounted under a name, flattened into one graph
//
// # Getting Started
//
// Open a topology document and ask for the transport of a processor:
//
//	df, err := flowgraph.Open(ctx, "dataflow.json",
//		flowgraph.WithLogger(logger),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	rx, err := df.BuildReceiver(ctx, ns.MustIdent("detector"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer flowgraph.CloseWithLog(rx, logger, "receiver")
//
//	for payload, err := range link.Messages(ctx, rx) {
//		...
//	}
//
// A processor listed as a source of an exchange receives from it; a
// processor listed as a sink sends to it. When a processor is attached to
// several exchanges on one side, the exchange must be named explicitly with
// ResolveReceiverFrom, ResolveSenderTo or their Build counterparts.
//
// # Error Handling
//
// Lookups fail with a *Error wrapping one of the sentinel errors:
//
//	if errors.Is(err, flowgraph.ErrOutputNotSpecified) {
//		tx, err = df.BuildSenderTo(ctx, proc, ns.MustKey("outer/frames"))
//	}
//
// # Observability
//
// Built senders and receivers are traced with OpenTelemetry and, with
// WithRegisterer, counted in Prometheus. Lookups are counted through the
// configured OpenTelemetry meter provider.
//
// # Thread Safety
//
// A Dataflow is immutable after construction and safe for concurrent use.
// Senders and receivers are meant for a single owner each.
package flowgraph
