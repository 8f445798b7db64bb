package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
)

// Messages adapts r into an iterator. Iteration stops after io.EOF, which is
// not yielded, or after the first other error, which is.
//
//	for payload, err := range link.Messages(ctx, rx) {
//		if err != nil {
//			return err
//		}
//		handle(payload)
//	}
func Messages(ctx context.Context, r Receiver) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			payload, err := r.Recv(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(payload, nil) {
				return
			}
		}
	}
}

// SendAll sends every payload of seq in order and returns the number sent.
func SendAll(ctx context.Context, s Sender, seq iter.Seq[[]byte]) (int, error) {
	n := 0
	for payload := range seq {
		if err := s.Send(ctx, payload); err != nil {
			return n, fmt.Errorf("send %d: %w", n, err)
		}
		n++
	}
	return n, nil
}

// Pipe copies payloads from r to s until r reports io.EOF.
func Pipe(ctx context.Context, r Receiver, s Sender) (int, error) {
	n := 0
	for payload, err := range Messages(ctx, r) {
		if err != nil {
			return n, err
		}
		if err := s.Send(ctx, payload); err != nil {
			return n, fmt.Errorf("send %d: %w", n, err)
		}
		n++
	}
	return n, nil
}
