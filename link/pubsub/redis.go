package pubsub

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisURL = "redis://localhost:6379"

	redisConnectTimeout = 5 * time.Second
	redisWriteTimeout   = 5 * time.Second
)

type redisTransport struct {
	client *redis.Client
}

func dialRedis(ctx context.Context, url string) (*redisTransport, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.DialTimeout = redisConnectTimeout
	opts.WriteTimeout = redisWriteTimeout

	client := redis.NewClient(opts)

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &redisTransport{client: client}, nil
}

func (t *redisTransport) publish(ctx context.Context, key string, payload []byte) error {
	return t.client.Publish(ctx, key, payload).Err()
}

func (t *redisTransport) subscribe(ctx context.Context, key string) (subscription, error) {
	ps := t.client.Subscribe(ctx, key)

	// Wait for subscription confirmation
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, err
	}

	return &redisSubscription{ps: ps, ch: ps.Channel()}, nil
}

func (t *redisTransport) close() error {
	return t.client.Close()
}

type redisSubscription struct {
	ps *redis.PubSub
	ch <-chan *redis.Message
}

func (s *redisSubscription) next(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-s.ch:
		if !ok {
			return nil, io.EOF
		}
		return []byte(msg.Payload), nil
	}
}

func (s *redisSubscription) close() error {
	return s.ps.Close()
}
