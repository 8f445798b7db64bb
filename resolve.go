package flowgraph

import (
	"context"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/zero-day-ai/flowgraph/link"
	"github.com/zero-day-ai/flowgraph/ns"
)

// selection is the outcome of picking the single exchange on one side of a
// processor.
type selection int

const (
	selectNone selection = iota
	selectOne
	selectMany
)

func selectSingle(keys []ns.Key) (ns.Key, selection) {
	switch len(keys) {
	case 0:
		return ns.Key{}, selectNone
	case 1:
		return keys[0], selectOne
	default:
		return ns.Key{}, selectMany
	}
}

// side describes one direction of a processor's adjacency.
type side struct {
	op         string
	keys       func(adjacency) []ns.Key
	none       error
	ambiguous  error
	selectorOp string
}

var (
	receiving = side{
		op:         "ResolveReceiver",
		keys:       func(a adjacency) []ns.Key { return a.inputs },
		none:       ErrNoInputAvailable,
		ambiguous:  ErrInputNotSpecified,
		selectorOp: "ResolveReceiverFrom",
	}
	sending = side{
		op:         "ResolveSender",
		keys:       func(a adjacency) []ns.Key { return a.outputs },
		none:       ErrNoOutputAvailable,
		ambiguous:  ErrOutputNotSpecified,
		selectorOp: "ResolveSenderTo",
	}
)

// ResolveReceiver returns the settings of the only exchange proc receives
// from. It fails with ErrNoInputAvailable when there is none and with
// ErrInputNotSpecified when there are several.
func (d *Dataflow) ResolveReceiver(proc ns.Ident) (link.Config, error) {
	_, cfg, err := d.resolve(receiving, proc)
	return cfg, err
}

// ResolveSender returns the settings of the only exchange proc sends to. It
// fails with ErrNoOutputAvailable when there is none and with
// ErrOutputNotSpecified when there are several.
func (d *Dataflow) ResolveSender(proc ns.Ident) (link.Config, error) {
	_, cfg, err := d.resolve(sending, proc)
	return cfg, err
}

// ResolveReceiverFrom returns the settings of exchange, provided proc
// receives from it. Otherwise it fails with ErrNoSuchConnection, even when
// the exchange is declared.
func (d *Dataflow) ResolveReceiverFrom(proc ns.Ident, exchange ns.Key) (link.Config, error) {
	return d.resolveSelected(receiving, proc, exchange)
}

// ResolveSenderTo returns the settings of exchange, provided proc sends to
// it. Otherwise it fails with ErrNoSuchConnection, even when the exchange is
// declared.
func (d *Dataflow) ResolveSenderTo(proc ns.Ident, exchange ns.Key) (link.Config, error) {
	return d.resolveSelected(sending, proc, exchange)
}

func (d *Dataflow) resolve(s side, proc ns.Ident) (ns.Key, link.Config, error) {
	key, err := d.selectKey(s, proc)
	if err != nil {
		d.countResolve(s.op, err)
		return ns.Key{}, link.Config{}, err
	}
	cfg, err := d.exchangeFor(s.op, proc, key)
	d.countResolve(s.op, err)
	return key, cfg, err
}

func (d *Dataflow) resolveSelected(s side, proc ns.Ident, exchange ns.Key) (link.Config, error) {
	err := d.checkSelected(s, proc, exchange)
	if err != nil {
		d.countResolve(s.selectorOp, err)
		return link.Config{}, err
	}
	cfg, err := d.exchangeFor(s.selectorOp, proc, exchange)
	d.countResolve(s.selectorOp, err)
	return cfg, err
}

func (d *Dataflow) selectKey(s side, proc ns.Ident) (ns.Key, error) {
	adj, ok := d.adjacency[proc]
	if !ok {
		return ns.Key{}, lookupError(s.op, KindNotFound, proc, ns.Key{}, ErrProcessorNotFound)
	}

	key, sel := selectSingle(s.keys(adj))
	switch sel {
	case selectNone:
		return ns.Key{}, lookupError(s.op, KindNotFound, proc, ns.Key{}, s.none)
	case selectMany:
		return ns.Key{}, lookupError(s.op, KindAmbiguous, proc, ns.Key{}, s.ambiguous).
			WithContext(map[string]any{"candidates": slices.Clone(s.keys(adj))})
	}
	return key, nil
}

func (d *Dataflow) checkSelected(s side, proc ns.Ident, exchange ns.Key) error {
	adj, ok := d.adjacency[proc]
	if !ok {
		return lookupError(s.selectorOp, KindNotFound, proc, exchange, ErrProcessorNotFound)
	}
	if !slices.Contains(s.keys(adj), exchange) {
		return lookupError(s.selectorOp, KindNotFound, proc, exchange, ErrNoSuchConnection)
	}
	return nil
}

// exchangeFor looks up a key taken from the adjacency index. Flattening
// guarantees every connected key is declared.
func (d *Dataflow) exchangeFor(op string, proc ns.Ident, key ns.Key) (link.Config, error) {
	cfg, ok := d.flat.Exchange(key)
	if !ok {
		return link.Config{}, lookupError(op, KindInternal, proc, key, ErrExchangeNotFound)
	}
	return cfg, nil
}

func (d *Dataflow) countResolve(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if e, ok := err.(*Error); ok {
			outcome = e.Kind
		}
	}
	d.resolves.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
}

// ResolveReceiverByName is ResolveReceiver for a processor given by name.
func (d *Dataflow) ResolveReceiverByName(proc string) (link.Config, error) {
	id, err := parseProcessor("ResolveReceiver", proc)
	if err != nil {
		return link.Config{}, err
	}
	return d.ResolveReceiver(id)
}

// ResolveSenderByName is ResolveSender for a processor given by name.
func (d *Dataflow) ResolveSenderByName(proc string) (link.Config, error) {
	id, err := parseProcessor("ResolveSender", proc)
	if err != nil {
		return link.Config{}, err
	}
	return d.ResolveSender(id)
}

// ResolveReceiverFromByName is ResolveReceiverFrom with a processor name and
// an exchange key in slash notation.
func (d *Dataflow) ResolveReceiverFromByName(proc, exchange string) (link.Config, error) {
	id, key, err := parseSelector("ResolveReceiverFrom", proc, exchange)
	if err != nil {
		return link.Config{}, err
	}
	return d.ResolveReceiverFrom(id, key)
}

// ResolveSenderToByName is ResolveSenderTo with a processor name and an
// exchange key in slash notation.
func (d *Dataflow) ResolveSenderToByName(proc, exchange string) (link.Config, error) {
	id, key, err := parseSelector("ResolveSenderTo", proc, exchange)
	if err != nil {
		return link.Config{}, err
	}
	return d.ResolveSenderTo(id, key)
}

func parseProcessor(op, proc string) (ns.Ident, error) {
	id, err := ns.NewIdent(proc)
	if err != nil {
		return ns.Ident{}, &Error{Op: op, Kind: KindValidation, Err: err}
	}
	return id, nil
}

func parseSelector(op, proc, exchange string) (ns.Ident, ns.Key, error) {
	id, err := parseProcessor(op, proc)
	if err != nil {
		return ns.Ident{}, ns.Key{}, err
	}
	key, err := ns.ParseKey(exchange)
	if err != nil {
		return ns.Ident{}, ns.Key{}, &Error{Op: op, Kind: KindValidation, Processor: id, Err: err}
	}
	return id, key, nil
}
