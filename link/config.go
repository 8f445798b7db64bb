package link

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/zero-day-ai/flowgraph/internal/docfmt"
	"github.com/zero-day-ai/flowgraph/link/amqp"
	"github.com/zero-day-ai/flowgraph/link/file"
	"github.com/zero-day-ai/flowgraph/link/null"
	"github.com/zero-day-ai/flowgraph/link/pubsub"
	"github.com/zero-day-ai/flowgraph/link/unix"
)

// Kind discriminates the transport variants.
type Kind string

const (
	KindFile   Kind = "file"
	KindUnix   Kind = "unix"
	KindAMQP   Kind = "amqp"
	KindPubSub Kind = "pubsub"
	KindNull   Kind = "null"
	KindImport Kind = "import"
)

// Kinds lists every transport variant.
func Kinds() []Kind {
	return []Kind{KindFile, KindUnix, KindAMQP, KindPubSub, KindNull, KindImport}
}

var (
	// ErrMissingType is returned when a transport config has no "type".
	ErrMissingType = errors.New("transport config: missing type")

	// ErrUnknownKind is returned for a "type" outside the closed variant set.
	ErrUnknownKind = errors.New("transport config: unknown type")

	// ErrMissingVariant is returned when Kind names a variant whose settings
	// are nil.
	ErrMissingVariant = errors.New("transport config: settings missing for type")
)

// Config is a tagged transport configuration. Exactly the field matching
// Kind is set.
type Config struct {
	Kind Kind

	File   *file.Config
	Unix   *unix.Config
	AMQP   *amqp.Config
	PubSub *pubsub.Config
	Null   *null.Config
	Import *ImportConfig
}

// FileConfig returns a file transport config.
func FileConfig(dir string) Config {
	return Config{Kind: KindFile, File: &file.Config{Dir: dir}}
}

// UnixConfig returns a Unix socket transport config.
func UnixConfig(path string) Config {
	return Config{Kind: KindUnix, Unix: &unix.Config{Path: path}}
}

// PubSubConfig returns a Redis pub/sub transport config on key.
func PubSubConfig(key string) Config {
	return Config{Kind: KindPubSub, PubSub: &pubsub.Config{Key: key}}
}

// NullConfig returns a null transport config.
func NullConfig(recv null.ReceiverKind) Config {
	return Config{Kind: KindNull, Null: &null.Config{Recv: recv}}
}

// variant returns the settings for Kind.
func (c *Config) variant() (any, error) {
	var v any
	var isNil bool
	switch c.Kind {
	case KindFile:
		v, isNil = c.File, c.File == nil
	case KindUnix:
		v, isNil = c.Unix, c.Unix == nil
	case KindAMQP:
		v, isNil = c.AMQP, c.AMQP == nil
	case KindPubSub:
		v, isNil = c.PubSub, c.PubSub == nil
	case KindNull:
		v, isNil = c.Null, c.Null == nil
	case KindImport:
		v, isNil = c.Import, c.Import == nil
	case "":
		return nil, ErrMissingType
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, c.Kind)
	}
	if isNil {
		return nil, fmt.Errorf("%w %q", ErrMissingVariant, c.Kind)
	}
	return v, nil
}

// newVariant resets c to an empty variant of kind and returns a pointer to
// its settings for decoding.
func (c *Config) newVariant(kind Kind) (any, error) {
	*c = Config{Kind: kind}
	switch kind {
	case KindFile:
		c.File = &file.Config{}
	case KindUnix:
		c.Unix = &unix.Config{}
	case KindAMQP:
		c.AMQP = &amqp.Config{}
	case KindPubSub:
		c.PubSub = &pubsub.Config{}
	case KindNull:
		c.Null = &null.Config{}
	case KindImport:
		c.Import = &ImportConfig{}
	}
	return c.variant()
}

// Validate checks the variant settings.
func (c *Config) Validate() error {
	v, err := c.variant()
	if err != nil {
		return err
	}
	if vv, ok := v.(interface{ Validate() error }); ok {
		return vv.Validate()
	}
	return nil
}

// Resolve follows import variants to the transport that is actually built.
// It fails if an import has not been loaded.
func (c *Config) Resolve() (*Config, error) {
	cur := c
	for cur.Kind == KindImport {
		if cur.Import == nil || cur.Import.target == nil {
			return nil, fmt.Errorf("%w: %s", ErrImportNotLoaded, cur)
		}
		cur = cur.Import.target
	}
	return cur, nil
}

// String returns a short description such as file(frames/).
func (c Config) String() string {
	switch {
	case c.Kind == KindFile && c.File != nil:
		return fmt.Sprintf("file(%s)", c.File.Dir)
	case c.Kind == KindUnix && c.Unix != nil:
		return fmt.Sprintf("unix(%s)", c.Unix.Path)
	case c.Kind == KindAMQP && c.AMQP != nil:
		return fmt.Sprintf("amqp(%s)", c.AMQP.Exchange)
	case c.Kind == KindPubSub && c.PubSub != nil:
		return fmt.Sprintf("pubsub(%s:%s)", c.PubSub.ResolvedDriver(), c.PubSub.Key)
	case c.Kind == KindNull && c.Null != nil:
		return "null"
	case c.Kind == KindImport && c.Import != nil:
		return fmt.Sprintf("import(%s)", c.Import.File)
	default:
		return string(c.Kind)
	}
}

// Prepare makes relative paths absolute against baseDir and loads import
// variants. Decoded configs must be prepared before they are built.
func (c *Config) Prepare(baseDir string) error {
	return c.prepare(baseDir, nil)
}

func (c *Config) prepare(baseDir string, importing []string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	switch c.Kind {
	case KindFile:
		c.File.Dir = docfmt.Resolve(baseDir, c.File.Dir)
	case KindUnix:
		c.Unix.Path = docfmt.Resolve(baseDir, c.Unix.Path)
	case KindImport:
		return c.Import.load(baseDir, importing)
	}
	return nil
}

// BuildSender builds a sender for the variant.
func (c *Config) BuildSender(ctx context.Context) (Sender, error) {
	target, err := c.Resolve()
	if err != nil {
		return nil, err
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}

	switch target.Kind {
	case KindFile:
		s, err := target.File.BuildSender(ctx)
		return sender(s, err)
	case KindUnix:
		s, err := target.Unix.BuildSender(ctx)
		return sender(s, err)
	case KindAMQP:
		s, err := target.AMQP.BuildSender(ctx)
		return sender(s, err)
	case KindPubSub:
		s, err := target.PubSub.BuildSender(ctx)
		return sender(s, err)
	default:
		s, err := target.Null.BuildSender(ctx)
		return sender(s, err)
	}
}

// BuildReceiver builds a receiver for the variant.
func (c *Config) BuildReceiver(ctx context.Context) (Receiver, error) {
	target, err := c.Resolve()
	if err != nil {
		return nil, err
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}

	switch target.Kind {
	case KindFile:
		r, err := target.File.BuildReceiver(ctx)
		return receiver(r, err)
	case KindUnix:
		r, err := target.Unix.BuildReceiver(ctx)
		return receiver(r, err)
	case KindAMQP:
		r, err := target.AMQP.BuildReceiver(ctx)
		return receiver(r, err)
	case KindPubSub:
		r, err := target.PubSub.BuildReceiver(ctx)
		return receiver(r, err)
	default:
		r, err := target.Null.BuildReceiver(ctx)
		return receiver(r, err)
	}
}

// sender and receiver keep a failed build from returning a non-nil interface
// holding a nil pointer.
func sender[T Sender](s T, err error) (Sender, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

func receiver[T Receiver](r T, err error) (Receiver, error) {
	if err != nil {
		return nil, err
	}
	return r, nil
}

type typeProbe struct {
	Type Kind `json:"type" yaml:"type"`
}

// UnmarshalJSON decodes the variant selected by the "type" field.
func (c *Config) UnmarshalJSON(data []byte) error {
	var probe typeProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	v, err := c.newVariant(probe.Type)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// MarshalJSON encodes the variant settings with the "type" field first.
func (c Config) MarshalJSON() ([]byte, error) {
	v, err := c.variant()
	if err != nil {
		return nil, err
	}
	inner, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	tag, err := json.Marshal(typeProbe{Type: c.Kind})
	if err != nil {
		return nil, err
	}

	inner = bytes.TrimSpace(inner)
	if bytes.Equal(inner, []byte("{}")) {
		return tag, nil
	}
	var buf bytes.Buffer
	buf.Write(tag[:len(tag)-1])
	buf.WriteByte(',')
	buf.Write(inner[1:])
	return buf.Bytes(), nil
}

// UnmarshalYAML decodes the variant selected by the "type" field.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var probe typeProbe
	if err := value.Decode(&probe); err != nil {
		return err
	}
	v, err := c.newVariant(probe.Type)
	if err != nil {
		return err
	}
	return value.Decode(v)
}

// MarshalYAML encodes the variant settings as a mapping with "type" first.
func (c Config) MarshalYAML() (any, error) {
	v, err := c.variant()
	if err != nil {
		return nil, err
	}
	var node yaml.Node
	if err := node.Encode(v); err != nil {
		return nil, err
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("transport config %q did not encode as a mapping", c.Kind)
	}
	node.Content = append([]*yaml.Node{
		{Kind: yaml.ScalarNode, Tag: "!!str", Value: "type"},
		{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(c.Kind)},
	}, node.Content...)
	return &node, nil
}
