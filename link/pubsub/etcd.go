package pubsub

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const defaultEtcdEndpoint = "localhost:2379"

type etcdTransport struct {
	client *clientv3.Client
}

// Endpoints splits a comma-separated etcd address.
func Endpoints(address string) []string {
	var endpoints []string
	for _, ep := range strings.Split(address, ",") {
		if ep = strings.TrimSpace(ep); ep != "" {
			endpoints = append(endpoints, ep)
		}
	}
	return endpoints
}

func dialEtcd(ctx context.Context, address string) (*etcdTransport, error) {
	endpoints := Endpoints(address)
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("etcd endpoints cannot be empty")
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	// Verify connectivity with a quick health check
	checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if _, err := cli.Get(checkCtx, "health-check"); err != nil {
		cli.Close()
		return nil, fmt.Errorf("etcd health check failed: %w", err)
	}

	return &etcdTransport{client: cli}, nil
}

func (t *etcdTransport) publish(ctx context.Context, key string, payload []byte) error {
	_, err := t.client.Put(ctx, key, string(payload))
	return err
}

func (t *etcdTransport) subscribe(ctx context.Context, key string) (subscription, error) {
	watchCtx, cancel := context.WithCancel(clientv3.WithRequireLeader(context.WithoutCancel(ctx)))
	wch := t.client.Watch(watchCtx, key, clientv3.WithCreatedNotify())

	// The first response confirms the watch is registered.
	select {
	case resp, ok := <-wch:
		if !ok {
			cancel()
			return nil, fmt.Errorf("watch on %s closed", key)
		}
		if err := resp.Err(); err != nil {
			cancel()
			return nil, err
		}
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}

	return &etcdSubscription{wch: wch, cancel: cancel}, nil
}

func (t *etcdTransport) close() error {
	return t.client.Close()
}

type etcdSubscription struct {
	wch     clientv3.WatchChan
	cancel  context.CancelFunc
	pending [][]byte
}

func (s *etcdSubscription) next(ctx context.Context) ([]byte, error) {
	for len(s.pending) == 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case resp, ok := <-s.wch:
			if !ok {
				return nil, io.EOF
			}
			if err := resp.Err(); err != nil {
				return nil, err
			}
			for _, ev := range resp.Events {
				if ev.Type == clientv3.EventTypePut {
					s.pending = append(s.pending, ev.Kv.Value)
				}
			}
		}
	}

	payload := s.pending[0]
	s.pending = s.pending[1:]
	return payload, nil
}

func (s *etcdSubscription) close() error {
	s.cancel()
	return nil
}
