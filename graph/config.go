package graph

import (
	"encoding/json"
	"errors"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"

	"github.com/zero-day-ai/flowgraph/link"
	"github.com/zero-day-ai/flowgraph/ns"
)

// Config is one topology document as written.
type Config struct {
	// Version must satisfy Requirement.
	Version Version `json:"version" yaml:"version"`

	// Processors declared by this document.
	Processors *ns.IdentSet `json:"processors" yaml:"processors"`

	// Exchanges declared by this document, by local name.
	Exchanges *orderedmap.OrderedMap[ns.Ident, link.Config] `json:"exchanges" yaml:"exchanges"`

	// Connections by exchange name. Every key must name an exchange of
	// this document.
	Connections *orderedmap.OrderedMap[ns.Ident, Connection] `json:"connections" yaml:"connections"`

	// Modules mounts other documents under a local name.
	Modules *orderedmap.OrderedMap[ns.Ident, *Module] `json:"modules,omitempty" yaml:"modules,omitempty"`
}

// NewConfig returns an empty document at CurrentVersion.
func NewConfig() *Config {
	c := &Config{Version: Current()}
	c.normalize()
	return c
}

// normalize replaces absent collections with empty ones.
func (c *Config) normalize() {
	if c.Processors == nil {
		c.Processors = ns.NewIdentSet()
	}
	if c.Exchanges == nil {
		c.Exchanges = orderedmap.New[ns.Ident, link.Config]()
	}
	if c.Connections == nil {
		c.Connections = orderedmap.New[ns.Ident, Connection]()
	}
}

// Module is a document mounted into another one. On the wire a module is
// the path of its document, relative to the including document.
type Module struct {
	// Path as written.
	Path string

	// AbsPath is Path resolved against the including document's directory.
	AbsPath string

	// Config is the loaded document.
	Config *Config
}

var errEmptyModulePath = errors.New("module path must not be empty")

// MarshalJSON writes the module path.
func (m *Module) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Path)
}

// UnmarshalJSON reads the module path. The document is loaded separately.
func (m *Module) UnmarshalJSON(data []byte) error {
	var path string
	if err := json.Unmarshal(data, &path); err != nil {
		return err
	}
	if path == "" {
		return errEmptyModulePath
	}
	*m = Module{Path: path}
	return nil
}

// MarshalYAML writes the module path.
func (m *Module) MarshalYAML() (any, error) {
	return m.Path, nil
}

// UnmarshalYAML reads the module path.
func (m *Module) UnmarshalYAML(value *yaml.Node) error {
	var path string
	if err := value.Decode(&path); err != nil {
		return err
	}
	if path == "" {
		return errEmptyModulePath
	}
	*m = Module{Path: path}
	return nil
}
