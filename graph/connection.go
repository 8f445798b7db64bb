package graph

import (
	"iter"

	"github.com/zero-day-ai/flowgraph/ns"
)

// Connection lists the processors attached to one exchange. Processors in
// Sink send into the exchange; processors in Source receive from it. Either
// side may be absent, which is the same as empty.
type Connection struct {
	Sink   *ns.IdentSet `json:"<,omitempty" yaml:"<,omitempty"`
	Source *ns.IdentSet `json:">,omitempty" yaml:">,omitempty"`
}

// Sinks yields the sink-side processors.
func (c Connection) Sinks() iter.Seq[ns.Ident] {
	return c.Sink.All()
}

// Sources yields the source-side processors.
func (c Connection) Sources() iter.Seq[ns.Ident] {
	return c.Source.All()
}

// Processors yields sink-side then source-side processors.
func (c Connection) Processors() iter.Seq[ns.Ident] {
	return func(yield func(ns.Ident) bool) {
		for id := range c.Sinks() {
			if !yield(id) {
				return
			}
		}
		for id := range c.Sources() {
			if !yield(id) {
				return
			}
		}
	}
}
