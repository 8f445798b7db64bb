package health

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/zero-day-ai/flowgraph/internal/ctxlog"
	"github.com/zero-day-ai/flowgraph/link"
	"github.com/zero-day-ai/flowgraph/ns"
)

const (
	defaultCheckTimeout = 3 * time.Second
	defaultParallelism  = 8
)

// Report is the outcome of checking every exchange of a dataflow.
type Report struct {
	// Overall combines the exchange statuses.
	Overall Status `json:"overall" yaml:"overall"`

	// Exchanges holds one status per exchange key.
	Exchanges map[string]Status `json:"exchanges" yaml:"exchanges"`
}

// Checker checks exchanges concurrently and exports their state as a gauge.
type Checker struct {
	timeout     time.Duration
	parallelism int
	logger      *slog.Logger
	gauge       *prometheus.GaugeVec
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithTimeout bounds each exchange check.
func WithTimeout(d time.Duration) CheckerOption {
	return func(c *Checker) {
		c.timeout = d
	}
}

// WithParallelism bounds how many exchanges are checked at once.
func WithParallelism(n int) CheckerOption {
	return func(c *Checker) {
		c.parallelism = n
	}
}

// WithLogger sets the logger for check results.
func WithLogger(logger *slog.Logger) CheckerOption {
	return func(c *Checker) {
		c.logger = logger
	}
}

// NewChecker returns a checker with an unregistered gauge.
func NewChecker(opts ...CheckerOption) *Checker {
	c := &Checker{
		timeout:     defaultCheckTimeout,
		parallelism: defaultParallelism,
		logger:      slog.Default(),
		gauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "flowgraph",
				Subsystem: "health",
				Name:      "exchange_status",
				Help:      "Exchange health: 1 healthy, 0.5 degraded, 0 unhealthy",
			},
			[]string{"exchange", "transport"},
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds the gauge to reg, reusing one registered earlier.
func (c *Checker) Register(reg prometheus.Registerer) error {
	if err := reg.Register(c.gauge); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if !errors.As(err, &alreadyRegErr) {
			return err
		}
		existing, ok := alreadyRegErr.ExistingCollector.(*prometheus.GaugeVec)
		if !ok {
			return err
		}
		c.gauge = existing
	}
	return nil
}

// Gauge returns the exchange status gauge.
func (c *Checker) Gauge() *prometheus.GaugeVec {
	return c.gauge
}

// Check checks every exchange. It returns early only if ctx is done.
func (c *Checker) Check(ctx context.Context, exchanges iter.Seq2[ns.Key, link.Config]) (Report, error) {
	ctx = ctxlog.WithLogger(ctx, c.logger)

	var (
		mu       sync.Mutex
		statuses = make(map[string]Status)
		order    []string
	)

	group, groupCtx := errgroup.WithContext(ctx)
	if c.parallelism > 0 {
		group.SetLimit(c.parallelism)
	}

	for key, cfg := range exchanges {
		order = append(order, key.String())
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			checkCtx, cancel := context.WithTimeout(groupCtx, c.timeout)
			defer cancel()

			status := CheckExchange(checkCtx, cfg)
			c.gauge.WithLabelValues(key.String(), string(cfg.Kind)).Set(status.score())
			c.logger.Debug("exchange checked",
				"exchange", key,
				"transport", cfg.String(),
				"status", status.State,
				"message", status.Message)

			mu.Lock()
			statuses[key.String()] = status
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return Report{}, err
	}

	checks := make([]Status, 0, len(order))
	for _, key := range order {
		checks = append(checks, statuses[key])
	}
	return Report{Overall: Combine(checks...), Exchanges: statuses}, nil
}
