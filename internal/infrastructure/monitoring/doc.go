/*
Package monitoring collects Prometheus metrics for fetches.

# Metrics

  - toolfetch_transactions_total{kind, outcome, status}
  - toolfetch_transaction_duration_seconds{kind}
  - toolfetch_response_size_bytes{kind}
  - toolfetch_redirects_total{kind}
  - toolfetch_host_breaker_transitions_total{to}

status is a class ("2xx", "4xx") or "none" when no response arrived.

# Usage

	metrics := monitoring.NewMetrics()
	engine := netrequest.New(netrequest.WithObserver(metrics))

	// ... fetch ...

	if err := metrics.WriteTextfile("/var/lib/node_exporter/toolfetch.prom"); err != nil {
		logger.Warn("metrics not written", zap.Error(err))
	}

The collector owns its registry. Serve it with
promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}) when a
long-running process wants a scrape endpoint instead.
*/
package monitoring
