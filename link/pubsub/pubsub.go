// Package pubsub implements a key-addressed publish/subscribe exchange.
//
// A payload sent on a key reaches every receiver subscribed to that key at
// the time of sending; nothing is retained for late subscribers. Three
// drivers carry the traffic: Redis pub/sub (the default), NATS subjects and
// etcd key watches. Connections are shared by all senders and receivers
// using the same driver and address within a process.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

// Driver selects the messaging system behind an exchange.
type Driver string

const (
	DriverRedis Driver = "redis"
	DriverNATS  Driver = "nats"
	DriverEtcd  Driver = "etcd"
)

// Environment variables overriding the configured address per driver.
const (
	EnvRedisURL      = "FLOWGRAPH_REDIS_URL"
	EnvNATSURL       = "FLOWGRAPH_NATS_URL"
	EnvEtcdEndpoints = "FLOWGRAPH_ETCD_ENDPOINTS"
)

var (
	// ErrNoKey is returned when the configuration names no key.
	ErrNoKey = errors.New("pubsub exchange: key must be specified")

	// ErrUnknownDriver is returned for a driver other than redis, nats or etcd.
	ErrUnknownDriver = errors.New("pubsub exchange: unknown driver")

	// ErrClosed is returned by operations on a closed sender or receiver.
	ErrClosed = errors.New("pubsub exchange: closed")
)

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Driver) UnmarshalText(text []byte) error {
	switch drv := Driver(text); drv {
	case "":
		*d = DriverRedis
	case DriverRedis, DriverNATS, DriverEtcd:
		*d = drv
	default:
		return fmt.Errorf("%w %q", ErrUnknownDriver, text)
	}
	return nil
}

// Config configures a pub/sub exchange.
type Config struct {
	// Key is the topic payloads are published on.
	Key string `json:"key" yaml:"key"`

	// Driver defaults to redis.
	Driver Driver `json:"driver,omitempty" yaml:"driver,omitempty"`

	// Address is a Redis URL, a NATS URL or a comma-separated list of etcd
	// endpoints. Empty selects the driver's local default.
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
}

// Validate reports whether the configuration is usable.
func (c *Config) Validate() error {
	if c.Key == "" {
		return ErrNoKey
	}
	switch c.driver() {
	case DriverRedis, DriverNATS, DriverEtcd:
		return nil
	default:
		return fmt.Errorf("%w %q", ErrUnknownDriver, c.Driver)
	}
}

func (c *Config) driver() Driver {
	if c.Driver == "" {
		return DriverRedis
	}
	return c.Driver
}

// ResolvedDriver returns the driver, applying the default.
func (c *Config) ResolvedDriver() Driver {
	return c.driver()
}

// ResolvedAddress returns the address the exchange connects to after the
// environment override and the driver default are applied.
func (c *Config) ResolvedAddress() string {
	var env, fallback string
	switch c.driver() {
	case DriverNATS:
		env, fallback = EnvNATSURL, defaultNATSURL
	case DriverEtcd:
		env, fallback = EnvEtcdEndpoints, defaultEtcdEndpoint
	default:
		env, fallback = EnvRedisURL, defaultRedisURL
	}

	if v := os.Getenv(env); v != "" {
		return v
	}
	if c.Address != "" {
		return c.Address
	}
	return fallback
}

// transport is one shared connection to a messaging system.
type transport interface {
	publish(ctx context.Context, key string, payload []byte) error
	subscribe(ctx context.Context, key string) (subscription, error)
	close() error
}

type subscription interface {
	next(ctx context.Context) ([]byte, error)
	close() error
}

// BuildSender acquires the shared connection for the configured driver.
func (c *Config) BuildSender(ctx context.Context) (*Sender, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	t, release, err := shared.acquire(ctx, c.driver(), c.ResolvedAddress())
	if err != nil {
		return nil, err
	}
	return &Sender{key: c.Key, t: t, release: release}, nil
}

// BuildReceiver subscribes to the key. The subscription is active when
// BuildReceiver returns.
func (c *Config) BuildReceiver(ctx context.Context) (*Receiver, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	t, release, err := shared.acquire(ctx, c.driver(), c.ResolvedAddress())
	if err != nil {
		return nil, err
	}
	sub, err := t.subscribe(ctx, c.Key)
	if err != nil {
		release()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", c.Key, err)
	}
	return &Receiver{sub: sub, release: release}, nil
}

// Sender publishes on one key.
type Sender struct {
	key       string
	t         transport
	release   func()
	closeOnce sync.Once
}

// Send publishes payload to every current subscriber of the key.
func (s *Sender) Send(ctx context.Context, payload []byte) error {
	if err := s.t.publish(ctx, s.key, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", s.key, err)
	}
	return nil
}

// Close releases the shared connection.
func (s *Sender) Close() error {
	s.closeOnce.Do(s.release)
	return nil
}

// Receiver yields payloads published on one key.
type Receiver struct {
	sub       subscription
	release   func()
	closeOnce sync.Once
	closeErr  error
}

// Recv returns the next payload, or io.EOF once the subscription ends.
func (r *Receiver) Recv(ctx context.Context) ([]byte, error) {
	return r.sub.next(ctx)
}

// Close ends the subscription and releases the shared connection.
func (r *Receiver) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.sub.close()
		r.release()
	})
	return r.closeErr
}
