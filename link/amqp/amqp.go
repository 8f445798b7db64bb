// Package amqp implements an exchange on an AMQP 0-9-1 broker.
//
// Every exchange maps to a broker "headers" exchange. Senders publish to it;
// each receiver declares its own auto-deleted queue bound to the exchange,
// optionally matching a set of headers.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/zero-day-ai/flowgraph/internal/ctxlog"
)

// EnvAddress names the environment variable that overrides the configured
// broker address.
const EnvAddress = "AMQP_ADDRESS"

const confirmInterval = 10 * time.Millisecond

var (
	// ErrNoExchange is returned when the configuration names no exchange.
	ErrNoExchange = errors.New("amqp exchange: exchange must be specified")

	// ErrEmptyQueue is returned when a queue name is given but empty.
	ErrEmptyQueue = errors.New("amqp exchange: queue name must not be empty if specified")
)

// Overflow is the queue behavior once max_length is reached.
type Overflow string

const (
	DropHead      Overflow = "drop-head"
	RejectPublish Overflow = "reject-publish"
)

// Config configures an AMQP exchange.
type Config struct {
	Address          string  `json:"address" yaml:"address"`
	Exchange         string  `json:"exchange" yaml:"exchange"`
	Queue            *string `json:"queue,omitempty" yaml:"queue,omitempty"`
	MaxLength        *int    `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	MessageTTLMillis *int    `json:"message_ttl_millis,omitempty" yaml:"message_ttl_millis,omitempty"`
	Reliable         bool    `json:"reliable" yaml:"reliable"`
	Force            bool    `json:"force,omitempty" yaml:"force,omitempty"`
}

// Validate reports whether the configuration is usable.
func (c *Config) Validate() error {
	if c.Exchange == "" {
		return ErrNoExchange
	}
	if c.Queue != nil && *c.Queue == "" {
		return ErrEmptyQueue
	}
	return nil
}

// ResolvedAddress returns the broker address, honoring EnvAddress.
func (c *Config) ResolvedAddress(logger *slog.Logger) string {
	if addr, ok := os.LookupEnv(EnvAddress); ok && addr != "" {
		logger.Info("environment variable overrides the AMQP address", "variable", EnvAddress)
		return addr
	}
	return c.Address
}

// Overflow returns the overflow policy implied by Reliable.
func (c *Config) Overflow() Overflow {
	if c.Reliable {
		return RejectPublish
	}
	return DropHead
}

// QueueArgs returns the arguments used to declare a receiver queue.
func (c *Config) QueueArgs() amqp.Table {
	args := amqp.Table{"x-overflow": string(c.Overflow())}
	if c.MaxLength != nil {
		args["x-max-length"] = int64(*c.MaxLength)
	}
	if c.MessageTTLMillis != nil {
		args["x-message-ttl"] = int64(*c.MessageTTLMillis)
	}
	return args
}

func (c *Config) expiration() string {
	if c.MessageTTLMillis == nil {
		return ""
	}
	return strconv.Itoa(*c.MessageTTLMillis)
}

func headerTable(headers map[string]string) amqp.Table {
	if len(headers) == 0 {
		return nil
	}
	table := make(amqp.Table, len(headers))
	for k, v := range headers {
		table[k] = v
	}
	return table
}

// open dials the broker and prepares a channel with the exchange declared.
func (c *Config) open(logger *slog.Logger) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(c.ResolvedAddress(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}

	ch, err := c.prepare(conn)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

func (c *Config) prepare(conn *amqp.Connection) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}
	if c.Reliable {
		if err := ch.Confirm(false); err != nil {
			return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
		}
	}
	if c.Force {
		if err := ch.ExchangeDelete(c.Exchange, false, false); err != nil {
			return nil, fmt.Errorf("failed to delete exchange %s: %w", c.Exchange, err)
		}
	}
	if err := ch.ExchangeDeclare(c.Exchange, amqp.ExchangeHeaders, false, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", c.Exchange, err)
	}
	return ch, nil
}

// BuildSender connects and declares the exchange.
func (c *Config) BuildSender(ctx context.Context) (*Sender, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx)

	conn, ch, err := c.open(logger)
	if err != nil {
		return nil, err
	}

	logger.Debug("amqp sender ready", "exchange", c.Exchange, "reliable", c.Reliable)
	return &Sender{
		conn:       conn,
		ch:         ch,
		exchange:   c.Exchange,
		expiration: c.expiration(),
		reliable:   c.Reliable,
	}, nil
}

// BuildReceiver consumes everything published to the exchange.
func (c *Config) BuildReceiver(ctx context.Context) (*Receiver, error) {
	return c.BuildReceiverWithHeaders(ctx, nil)
}

// BuildReceiverWithHeaders consumes the messages whose headers match all of
// the given headers.
func (c *Config) BuildReceiverWithHeaders(ctx context.Context, headers map[string]string) (*Receiver, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx)

	conn, ch, err := c.open(logger)
	if err != nil {
		return nil, err
	}

	name := ""
	if c.Queue != nil {
		name = *c.Queue
	}

	queue, err := ch.QueueDeclare(name, false, true, false, false, c.QueueArgs())
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(queue.Name, "", c.Exchange, false, headerTable(headers)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue %s to %s: %w", queue.Name, c.Exchange, err)
	}

	deliveries, err := ch.Consume(queue.Name, "flowgraph-"+uuid.NewString(), false, false, false, false, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to consume from queue %s: %w", queue.Name, err)
	}

	logger.Debug("amqp receiver ready", "exchange", c.Exchange, "queue", queue.Name)
	return &Receiver{conn: conn, queue: queue.Name, deliveries: deliveries}, nil
}

// Sender publishes to a headers exchange.
type Sender struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	exchange   string
	expiration string
	reliable   bool
}

// Send publishes payload with no headers.
func (s *Sender) Send(ctx context.Context, payload []byte) error {
	return s.SendWithHeaders(ctx, nil, payload)
}

// SendWithHeaders publishes payload carrying the given headers. In reliable
// mode it waits for the broker to confirm and republishes after a nack, at
// most once per 10ms.
func (s *Sender) SendWithHeaders(ctx context.Context, headers map[string]string, payload []byte) error {
	msg := amqp.Publishing{
		Headers:    headerTable(headers),
		Expiration: s.expiration,
		Body:       payload,
	}

	if !s.reliable {
		if err := s.ch.PublishWithContext(ctx, s.exchange, "", false, false, msg); err != nil {
			return fmt.Errorf("failed to publish to %s: %w", s.exchange, err)
		}
		return nil
	}

	for {
		start := time.Now()

		confirm, err := s.ch.PublishWithDeferredConfirmWithContext(ctx, s.exchange, "", false, false, msg)
		if err != nil {
			return fmt.Errorf("failed to publish to %s: %w", s.exchange, err)
		}
		acked, err := confirm.WaitContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to confirm publish to %s: %w", s.exchange, err)
		}
		if acked {
			return nil
		}

		if remaining := confirmInterval - time.Since(start); remaining > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(remaining):
			}
		}
	}
}

// Close closes the channel and the connection.
func (s *Sender) Close() error {
	return s.conn.Close()
}

// Receiver consumes a queue, acknowledging each delivery as it is returned.
type Receiver struct {
	conn       *amqp.Connection
	queue      string
	deliveries <-chan amqp.Delivery
}

// QueueName returns the name of the consumed queue, which the broker chooses
// when none was configured.
func (r *Receiver) QueueName() string {
	return r.queue
}

// Recv returns the next delivery body, or io.EOF once the broker closes the
// consumer.
func (r *Receiver) Recv(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case d, ok := <-r.deliveries:
		if !ok {
			return nil, io.EOF
		}
		if err := d.Ack(false); err != nil {
			return nil, fmt.Errorf("failed to acknowledge delivery: %w", err)
		}
		return d.Body, nil
	}
}

// Close closes the connection, which cancels the consumer.
func (r *Receiver) Close() error {
	return r.conn.Close()
}
