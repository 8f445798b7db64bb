// Package null implements an exchange that carries nothing.
package null

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrUnreadable is returned by receivers configured with RecvError.
var ErrUnreadable = errors.New("the null exchange cannot be read")

// ReceiverKind selects how a null receiver behaves.
type ReceiverKind string

const (
	// RecvEmpty reports end of stream immediately.
	RecvEmpty ReceiverKind = "empty"

	// RecvBlock never yields; Recv returns only when its context is done.
	RecvBlock ReceiverKind = "block"

	// RecvError fails every Recv with ErrUnreadable.
	RecvError ReceiverKind = "error"
)

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ReceiverKind) UnmarshalText(text []byte) error {
	switch kind := ReceiverKind(text); kind {
	case RecvEmpty, RecvBlock, RecvError:
		*k = kind
		return nil
	case "":
		*k = RecvEmpty
		return nil
	default:
		return fmt.Errorf("unknown null receiver kind %q (want empty, block or error)", text)
	}
}

// Config configures a null exchange.
type Config struct {
	Recv ReceiverKind `json:"recv,omitempty" yaml:"recv,omitempty"`
}

// BuildSender returns a sender that discards every payload.
func (c *Config) BuildSender(context.Context) (*Sender, error) {
	return &Sender{}, nil
}

// BuildReceiver returns a receiver behaving as c.Recv selects.
func (c *Config) BuildReceiver(context.Context) (*Receiver, error) {
	kind := c.Recv
	if kind == "" {
		kind = RecvEmpty
	}
	return &Receiver{kind: kind}, nil
}

// Sender discards payloads.
type Sender struct{}

// Send implements the sender contract.
func (*Sender) Send(context.Context, []byte) error { return nil }

// Close implements io.Closer.
func (*Sender) Close() error { return nil }

// Receiver yields nothing.
type Receiver struct {
	kind ReceiverKind
}

// Recv implements the receiver contract.
func (r *Receiver) Recv(ctx context.Context) ([]byte, error) {
	switch r.kind {
	case RecvBlock:
		<-ctx.Done()
		return nil, ctx.Err()
	case RecvError:
		return nil, ErrUnreadable
	default:
		return nil, io.EOF
	}
}

// Close implements io.Closer.
func (*Receiver) Close() error { return nil }
