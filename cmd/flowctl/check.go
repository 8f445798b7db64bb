package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/zero-day-ai/flowgraph/health"
)

var errUnhealthy = errors.New("one or more exchanges are unhealthy")

func newCheckCmd(a *app) *cobra.Command {
	var (
		timeout     time.Duration
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Check that the transport of every exchange is reachable",
		Long: `check inspects drop folders and sockets on disk and dials brokers for every
exchange of the flattened topology. It fails when any exchange is unhealthy.

With --metrics-addr the results are exported as a Prometheus gauge and
flowctl keeps serving /metrics until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			df, err := a.open(cmd, args[0])
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			checker := health.NewChecker(health.WithTimeout(timeout), health.WithLogger(a.logger))
			if err := checker.Register(reg); err != nil {
				return err
			}

			report, err := checker.Check(cmd.Context(), df.Exchanges())
			if err != nil {
				return err
			}
			if err := printReport(a, report); err != nil {
				return err
			}

			if metricsAddr != "" {
				if err := serveMetrics(cmd.Context(), a, metricsAddr, reg); err != nil {
					return err
				}
			}
			if report.Overall.IsUnhealthy() {
				return errUnhealthy
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "Timeout for each exchange check")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address after checking")
	return cmd
}

func printReport(a *app, report health.Report) error {
	keys := make([]string, 0, len(report.Exchanges))
	for key := range report.Exchanges {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EXCHANGE\tSTATUS\tMESSAGE")
	for _, key := range keys {
		status := report.Exchanges[key]
		fmt.Fprintf(tw, "%s\t%s\t%s\n", key, strings.ToUpper(string(status.State)), status.Message)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "\n%s: %s\n", report.Overall.State, report.Overall.Message)
	return nil
}

func serveMetrics(ctx context.Context, a *app, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
