// Package protolink carries protocol buffer messages over a link exchange.
package protolink

import (
	"context"
	"fmt"
	"iter"

	"google.golang.org/protobuf/proto"

	"github.com/zero-day-ai/flowgraph/link"
)

// Sender encodes messages of type T before sending them.
type Sender[T proto.Message] struct {
	s link.Sender
}

// NewSender wraps s.
func NewSender[T proto.Message](s link.Sender) *Sender[T] {
	return &Sender[T]{s: s}
}

// Send encodes msg and sends it.
func (s *Sender[T]) Send(ctx context.Context, msg T) error {
	payload, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", msg.ProtoReflect().Descriptor().FullName(), err)
	}
	return s.s.Send(ctx, payload)
}

// Close closes the underlying sender.
func (s *Sender[T]) Close() error {
	return s.s.Close()
}

// Receiver decodes received payloads into messages of type T.
type Receiver[T proto.Message] struct {
	r link.Receiver
}

// NewReceiver wraps r.
func NewReceiver[T proto.Message](r link.Receiver) *Receiver[T] {
	return &Receiver[T]{r: r}
}

// Recv receives and decodes the next message. End of stream is reported as
// io.EOF, as by the underlying receiver.
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	payload, err := r.r.Recv(ctx)
	if err != nil {
		return zero, err
	}

	msg := zero.ProtoReflect().Type().New().Interface().(T)
	if err := proto.Unmarshal(payload, msg); err != nil {
		return zero, fmt.Errorf("failed to decode %s: %w", msg.ProtoReflect().Descriptor().FullName(), err)
	}
	return msg, nil
}

// All iterates over decoded messages until end of stream. A decode or
// receive error is yielded once and ends the iteration.
func (r *Receiver[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for payload, err := range link.Messages(ctx, r.r) {
			var zero T
			if err != nil {
				yield(zero, err)
				return
			}
			msg := zero.ProtoReflect().Type().New().Interface().(T)
			if err := proto.Unmarshal(payload, msg); err != nil {
				yield(zero, fmt.Errorf("failed to decode %s: %w", msg.ProtoReflect().Descriptor().FullName(), err))
				return
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

// Close closes the underlying receiver.
func (r *Receiver[T]) Close() error {
	return r.r.Close()
}
