package health

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/zero-day-ai/flowgraph/internal/ctxlog"
	"github.com/zero-day-ai/flowgraph/link"
	"github.com/zero-day-ai/flowgraph/link/pubsub"
)

// Default ports used when an address leaves the port out.
const (
	defaultNATSPort = 4222
	defaultEtcdPort = 2379
)

// CheckExchange reports whether the transport behind cfg is reachable
// without building a sender or receiver. Drop folders and sockets are
// inspected on disk; brokers are dialed over TCP.
func CheckExchange(ctx context.Context, cfg link.Config) Status {
	target, err := cfg.Resolve()
	if err != nil {
		return Unhealthy("import is not resolved", map[string]any{"error": err.Error()})
	}
	if err := target.Validate(); err != nil {
		return Unhealthy("invalid transport settings", map[string]any{"error": err.Error()})
	}

	switch target.Kind {
	case link.KindFile:
		return FileCheck(target.File.Dir)
	case link.KindUnix:
		return SocketCheck(target.Unix.Path)
	case link.KindAMQP:
		return amqpCheck(ctx, target.AMQP.ResolvedAddress(ctxlog.FromContext(ctx)))
	case link.KindPubSub:
		return pubsubCheck(ctx, target.PubSub)
	case link.KindNull:
		return Healthy("null exchange needs no transport")
	default:
		return Unhealthy(fmt.Sprintf("unsupported transport %q", target.Kind), nil)
	}
}

func amqpCheck(ctx context.Context, address string) Status {
	uri, err := amqp.ParseURI(address)
	if err != nil {
		return Unhealthy("invalid AMQP address", map[string]any{"error": err.Error()})
	}
	return NetworkCheck(ctx, uri.Host, uri.Port)
}

func pubsubCheck(ctx context.Context, cfg *pubsub.Config) Status {
	address := cfg.ResolvedAddress()

	switch cfg.ResolvedDriver() {
	case pubsub.DriverNATS:
		var checks []Status
		for _, server := range strings.Split(address, ",") {
			checks = append(checks, urlCheck(ctx, strings.TrimSpace(server), defaultNATSPort))
		}
		return Combine(checks...)
	case pubsub.DriverEtcd:
		var checks []Status
		for _, ep := range pubsub.Endpoints(address) {
			checks = append(checks, urlCheck(ctx, ep, defaultEtcdPort))
		}
		return Combine(checks...)
	default:
		opts, err := redis.ParseURL(address)
		if err != nil {
			return Unhealthy("invalid Redis URL", map[string]any{"error": err.Error()})
		}
		if opts.Network == "unix" {
			return SocketCheck(opts.Addr)
		}
		return AddressCheck(ctx, opts.Addr, 6379)
	}
}

// urlCheck dials the host of a URL, or of a bare host:port.
func urlCheck(ctx context.Context, address string, defaultPort int) Status {
	if !strings.Contains(address, "://") {
		return AddressCheck(ctx, address, defaultPort)
	}
	u, err := url.Parse(address)
	if err != nil {
		return Unhealthy(fmt.Sprintf("invalid address %q", address), map[string]any{"error": err.Error()})
	}
	return AddressCheck(ctx, u.Host, defaultPort)
}
