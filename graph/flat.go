package graph

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/zero-day-ai/flowgraph/link"
	"github.com/zero-day-ai/flowgraph/ns"
)

// Flat is a module tree merged into one graph.
type Flat struct {
	// Bindings maps each included document's absolute path to the
	// directory it is mounted at.
	Bindings *orderedmap.OrderedMap[string, ns.Dir]

	// Processors across the whole tree, not namespaced.
	Processors *ns.IdentSet

	// Exchanges by module-qualified key.
	Exchanges *orderedmap.OrderedMap[ns.Key, link.Config]

	// Connections by module-qualified key.
	Connections *orderedmap.OrderedMap[ns.Key, Connection]
}

// NewFlat returns an empty flat graph.
func NewFlat() *Flat {
	return &Flat{
		Bindings:    orderedmap.New[string, ns.Dir](),
		Processors:  ns.NewIdentSet(),
		Exchanges:   orderedmap.New[ns.Key, link.Config](),
		Connections: orderedmap.New[ns.Key, Connection](),
	}
}

// Merge adds everything in other to f without checking for collisions.
// Processors are unioned; for maps a key present in both takes other's value
// and keeps its position in f.
func (f *Flat) Merge(other *Flat) {
	f.Processors.Union(other.Processors)
	for pair := other.Bindings.Oldest(); pair != nil; pair = pair.Next() {
		f.Bindings.Set(pair.Key, pair.Value)
	}
	for pair := other.Exchanges.Oldest(); pair != nil; pair = pair.Next() {
		f.Exchanges.Set(pair.Key, pair.Value)
	}
	for pair := other.Connections.Oldest(); pair != nil; pair = pair.Next() {
		f.Connections.Set(pair.Key, pair.Value)
	}
}

// Exchange returns the configuration of the exchange at key.
func (f *Flat) Exchange(key ns.Key) (link.Config, bool) {
	return f.Exchanges.Get(key)
}
