package pubsub

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/zero-day-ai/flowgraph/internal/ctxlog"
)

var shared = newPool()

type poolKey struct {
	driver  Driver
	address string
}

func (k poolKey) String() string {
	return string(k.driver) + " " + k.address
}

type poolEntry struct {
	t    transport
	refs int
}

// pool hands out one reference-counted transport per driver and address.
// Dialing happens outside mu, so a slow broker only delays callers waiting
// for that same broker.
type pool struct {
	mu      sync.Mutex
	entries map[poolKey]*poolEntry
	dials   singleflight.Group

	// dial is replaced in tests.
	dial func(ctx context.Context, driver Driver, address string) (transport, error)
}

func newPool() *pool {
	return &pool{
		entries: make(map[poolKey]*poolEntry),
		dial:    dial,
	}
}

func dial(ctx context.Context, driver Driver, address string) (transport, error) {
	switch driver {
	case DriverNATS:
		return dialNATS(address)
	case DriverEtcd:
		return dialEtcd(ctx, address)
	default:
		return dialRedis(ctx, address)
	}
}

// acquire returns the transport for driver and address, connecting on first
// use. The returned release func drops the reference; the last release closes
// the transport.
func (p *pool) acquire(ctx context.Context, driver Driver, address string) (transport, func(), error) {
	key := poolKey{driver: driver, address: address}

	for {
		if t, ok := p.ref(key); ok {
			var once sync.Once
			release := func() {
				once.Do(func() { p.release(ctx, key) })
			}
			return t, release, nil
		}

		// Callers for the same key share one dial, detached from ctx so one
		// caller giving up does not fail the others. A connection nobody
		// waited for stays pooled for the next caller.
		ch := p.dials.DoChan(key.String(), func() (any, error) {
			t, err := p.dial(context.WithoutCancel(ctx), driver, address)
			if err != nil {
				return nil, err
			}
			p.mu.Lock()
			_, raced := p.entries[key]
			if !raced {
				p.entries[key] = &poolEntry{t: t}
			}
			p.mu.Unlock()

			if raced {
				// A dial that started before ours finished first.
				if err := t.close(); err != nil {
					ctxlog.FromContext(ctx).Warn("failed to close duplicate pubsub connection", "driver", driver, "error", err)
				}
				return nil, nil
			}
			ctxlog.FromContext(ctx).Debug("pubsub connection opened", "driver", driver)
			return nil, nil
		})

		select {
		case res := <-ch:
			if res.Err != nil {
				return nil, nil, res.Err
			}
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
}

// ref takes a reference on the open transport for key, if there is one.
func (p *pool) ref(key poolKey) (transport, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[key]
	if !ok {
		return nil, false
	}
	entry.refs++
	return entry.t, true
}

func (p *pool) release(ctx context.Context, key poolKey) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs > 0 {
		return
	}
	delete(p.entries, key)
	if err := entry.t.close(); err != nil {
		ctxlog.FromContext(ctx).Warn("failed to close pubsub connection", "driver", key.driver, "error", err)
	}
}

// size returns the number of open transports.
func (p *pool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
