// Package health checks whether the transports behind a dataflow's
// exchanges are reachable.
//
// Checks never build a sender or receiver and never move a message: drop
// folders and Unix sockets are inspected on disk, and AMQP, Redis, NATS and
// etcd servers are dialed over TCP.
//
// # Health Status Priority
//
// When combining health checks with Combine(), the result follows this priority:
//
//   - Unhealthy: If any check is unhealthy, the combined result is unhealthy
//   - Degraded: If any check is degraded (and none unhealthy), the result is degraded
//   - Healthy: If all checks are healthy, the result is healthy
//
// A folder or socket that does not exist yet is degraded rather than
// unhealthy, since the peer that creates it may simply not have started.
//
// # Usage Example
//
//	df, err := flowgraph.Open(ctx, "dataflow.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	checker := health.NewChecker(health.WithTimeout(2 * time.Second))
//	if err := checker.Register(prometheus.DefaultRegisterer); err != nil {
//	    log.Fatal(err)
//	}
//
//	report, err := checker.Check(ctx, df.Exchanges())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if report.Overall.IsUnhealthy() {
//	    log.Printf("Health check failed: %s", report.Overall.Message)
//	}
package health
