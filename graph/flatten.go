package graph

import (
	"errors"
	"fmt"

	"github.com/zero-day-ai/flowgraph/ns"
)

var (
	// ErrProcessorNotDeclared is returned when a connection names a
	// processor its document does not declare.
	ErrProcessorNotDeclared = errors.New("is not a declared processor")

	// ErrExchangeNotDeclared is returned when a connection is keyed by an
	// exchange its document does not declare.
	ErrExchangeNotDeclared = errors.New("is not a declared exchange")
)

// DeclarationError reports an undeclared name found while validating the
// document mounted at Module.
type DeclarationError struct {
	Module ns.Dir
	Ident  ns.Ident
	Err    error
}

func (e *DeclarationError) Error() string {
	if e.Module.IsRoot() {
		return fmt.Sprintf("'%s' %v", e.Ident, e.Err)
	}
	return fmt.Sprintf("module %s: '%s' %v", e.Module, e.Ident, e.Err)
}

func (e *DeclarationError) Unwrap() error {
	return e.Err
}

// Flatten validates cfg and its modules and merges them into one graph.
// Each document is validated before any of its modules; the first error
// found stops flattening.
func Flatten(cfg *Config) (*Flat, error) {
	var prefix []ns.Ident
	return flattenRecursive(cfg, &prefix)
}

func flattenRecursive(cfg *Config, prefix *[]ns.Ident) (*Flat, error) {
	cfg.normalize()
	if err := validate(cfg, ns.NewDir(*prefix...)); err != nil {
		return nil, err
	}

	flat := NewFlat()

	if cfg.Modules != nil {
		for pair := cfg.Modules.Oldest(); pair != nil; pair = pair.Next() {
			flat.Bindings.Set(pair.Value.AbsPath, pair.Key.WithPrefix(*prefix...).Dir())
		}
	}

	flat.Processors.Union(cfg.Processors)
	for pair := cfg.Exchanges.Oldest(); pair != nil; pair = pair.Next() {
		flat.Exchanges.Set(pair.Key.WithPrefix(*prefix...), pair.Value)
	}
	for pair := cfg.Connections.Oldest(); pair != nil; pair = pair.Next() {
		flat.Connections.Set(pair.Key.WithPrefix(*prefix...), pair.Value)
	}

	if cfg.Modules == nil {
		return flat, nil
	}
	for pair := cfg.Modules.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Config == nil {
			return nil, fmt.Errorf("module %s: %s was not loaded", pair.Key.WithPrefix(*prefix...), pair.Value.Path)
		}

		*prefix = append(*prefix, pair.Key)
		sub, err := flattenRecursive(pair.Value.Config, prefix)
		*prefix = (*prefix)[:len(*prefix)-1]
		if err != nil {
			return nil, err
		}
		flat.Merge(sub)
	}
	return flat, nil
}

// validate checks the connections of one document against its own
// declarations: processors first, then exchanges.
func validate(cfg *Config, module ns.Dir) error {
	for pair := cfg.Connections.Oldest(); pair != nil; pair = pair.Next() {
		for id := range pair.Value.Processors() {
			if !cfg.Processors.Contains(id) {
				return &DeclarationError{Module: module, Ident: id, Err: ErrProcessorNotDeclared}
			}
		}
	}
	for pair := cfg.Connections.Oldest(); pair != nil; pair = pair.Next() {
		if _, ok := cfg.Exchanges.Get(pair.Key); !ok {
			return &DeclarationError{Module: module, Ident: pair.Key, Err: ErrExchangeNotDeclared}
		}
	}
	return nil
}
