package pubsub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

const defaultNATSURL = nats.DefaultURL

type natsTransport struct {
	conn *nats.Conn
}

func dialNATS(url string) (*natsTransport, error) {
	conn, err := nats.Connect(url,
		nats.Name("flowgraph"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &natsTransport{conn: conn}, nil
}

// Subject maps an exchange key to a NATS subject: path separators become
// subject token separators.
func Subject(key string) string {
	return strings.ReplaceAll(strings.Trim(key, "/"), "/", ".")
}

func (t *natsTransport) publish(_ context.Context, key string, payload []byte) error {
	return t.conn.Publish(Subject(key), payload)
}

func (t *natsTransport) subscribe(_ context.Context, key string) (subscription, error) {
	sub, err := t.conn.SubscribeSync(Subject(key))
	if err != nil {
		return nil, err
	}
	// Make sure the server registered the interest before returning.
	if err := t.conn.Flush(); err != nil {
		sub.Unsubscribe()
		return nil, err
	}
	return &natsSubscription{sub: sub}, nil
}

func (t *natsTransport) close() error {
	if err := t.conn.Drain(); err != nil {
		t.conn.Close()
		return err
	}
	return nil
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s *natsSubscription) next(ctx context.Context) ([]byte, error) {
	msg, err := s.sub.NextMsgWithContext(ctx)
	if err != nil {
		if errors.Is(err, nats.ErrBadSubscription) || errors.Is(err, nats.ErrConnectionClosed) {
			return nil, io.EOF
		}
		return nil, err
	}
	return msg.Data, nil
}

func (s *natsSubscription) close() error {
	err := s.sub.Unsubscribe()
	if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
		return nil
	}
	return err
}
