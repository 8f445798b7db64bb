// Package link describes how payloads move across an exchange.
//
// A Config is a closed set of transport variants selected by its "type"
// field. Building a Config yields a Sender or Receiver. Senders and receivers
// move opaque byte payloads; the dataflow graph itself never touches them.
//
//	{"type": "file", "dir": "frames/", "auto_clean": true}
//	{"type": "unix", "path": "/run/flow.sock", "connect_timeout": "5s"}
//	{"type": "amqp", "address": "amqp://localhost:5672/%2f", "exchange": "frames", "reliable": true}
//	{"type": "pubsub", "key": "frames", "driver": "nats"}
//	{"type": "null", "recv": "block"}
//	{"type": "import", "file": "shared/frames.json"}
package link

import (
	"context"
	"io"
)

// Sender moves payloads into an exchange.
type Sender interface {
	// Send delivers one payload. It blocks until the backend accepted it or
	// ctx is done.
	Send(ctx context.Context, payload []byte) error

	io.Closer
}

// Receiver takes payloads out of an exchange.
type Receiver interface {
	// Recv returns the next payload. It returns io.EOF once the exchange has
	// no more payloads to give.
	Recv(ctx context.Context) ([]byte, error)

	io.Closer
}
