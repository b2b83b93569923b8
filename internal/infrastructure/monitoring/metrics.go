package monitoring

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/GriffinCanCode/toolfetch/internal/netrequest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the fetch metrics. It satisfies netrequest.Observer.
type Metrics struct {
	TransactionsTotal   *prometheus.CounterVec
	TransactionDuration *prometheus.HistogramVec
	ResponseSize        *prometheus.HistogramVec
	RedirectsTotal      *prometheus.CounterVec
	BreakerTransitions  *prometheus.CounterVec

	registry *prometheus.Registry

	snapshot MetricsSnapshot
	mu       sync.RWMutex
}

// MetricsSnapshot holds running totals for the CLI summary.
type MetricsSnapshot struct {
	Transactions  int64
	Failures      int64
	Redirects     int64
	BytesReceived int64
	TotalDuration time.Duration
}

var _ netrequest.Observer = (*Metrics)(nil)

// NewMetrics creates a collector backed by its own registry, so several
// engines in one process do not collide on the default one.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		TransactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolfetch_transactions_total",
				Help: "Total number of resolved transactions",
			},
			[]string{"kind", "outcome", "status"},
		),
		TransactionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolfetch_transaction_duration_seconds",
				Help:    "Transaction duration in seconds, connection to resolution",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolfetch_response_size_bytes",
				Help:    "Response body bytes delivered per transaction",
				Buckets: prometheus.ExponentialBuckets(256, 4, 10),
			},
			[]string{"kind"},
		),
		RedirectsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolfetch_redirects_total",
				Help: "Total number of redirects followed",
			},
			[]string{"kind"},
		),
		BreakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolfetch_host_breaker_transitions_total",
				Help: "Total number of host breaker state changes",
			},
			[]string{"to"},
		),
	}
}

// TransactionFinished records one resolved transaction.
func (m *Metrics) TransactionFinished(kind netrequest.Kind, state netrequest.State, status int, bytes int64, duration time.Duration) {
	k := string(kind)
	m.TransactionsTotal.WithLabelValues(k, state.String(), statusLabel(status)).Inc()
	m.TransactionDuration.WithLabelValues(k).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(k).Observe(float64(bytes))

	m.mu.Lock()
	m.snapshot.Transactions++
	if state == netrequest.StateFailed {
		m.snapshot.Failures++
	}
	m.snapshot.BytesReceived += bytes
	m.snapshot.TotalDuration += duration
	m.mu.Unlock()
}

// RedirectFollowed records one followed redirect.
func (m *Metrics) RedirectFollowed(kind netrequest.Kind) {
	m.RedirectsTotal.WithLabelValues(string(kind)).Inc()

	m.mu.Lock()
	m.snapshot.Redirects++
	m.mu.Unlock()
}

// RecordBreakerTransition records a host breaker entering state to.
func (m *Metrics) RecordBreakerTransition(to string) {
	m.BreakerTransitions.WithLabelValues(to).Inc()
}

// Snapshot returns the running totals.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Registry exposes the underlying registry, e.g. for promhttp.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes every metric in text exposition format to path,
// for node_exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

// statusLabel keeps label cardinality bounded: "none" when no response
// arrived, otherwise the class, e.g. "2xx".
func statusLabel(status int) string {
	if status <= 0 {
		return "none"
	}
	return strconv.Itoa(status/100) + "xx"
}
