package monitoring

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/GriffinCanCode/toolfetch/internal/netrequest"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsObserver(t *testing.T) {
	m := NewMetrics()

	m.TransactionFinished(netrequest.KindBinary, netrequest.StateRedirecting, 302, 0, 10*time.Millisecond)
	m.RedirectFollowed(netrequest.KindBinary)
	m.TransactionFinished(netrequest.KindBinary, netrequest.StateSucceeded, 200, 2048, 40*time.Millisecond)
	m.TransactionFinished(netrequest.KindJSON, netrequest.StateFailed, 0, 0, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransactionsTotal.WithLabelValues("binary", "succeeded", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransactionsTotal.WithLabelValues("binary", "redirecting", "3xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransactionsTotal.WithLabelValues("json", "failed", "none")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RedirectsTotal.WithLabelValues("binary")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.TransactionDuration))

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.Transactions)
	assert.Equal(t, int64(1), snap.Failures)
	assert.Equal(t, int64(1), snap.Redirects)
	assert.Equal(t, int64(2048), snap.BytesReceived)
	assert.Equal(t, 1050*time.Millisecond, snap.TotalDuration)
}

func TestMetricsIsolatedRegistries(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.RedirectFollowed(netrequest.KindText)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.RedirectsTotal.WithLabelValues("text")))
	assert.Equal(t, 0, testutil.CollectAndCount(b.RedirectsTotal))
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.RedirectFollowed(netrequest.KindDownload)

	path := filepath.Join(t.TempDir(), "toolfetch.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `toolfetch_redirects_total{kind="download"} 1`)

	err = testutil.GatherAndCompare(m.Registry(), strings.NewReader(`
# HELP toolfetch_redirects_total Total number of redirects followed
# TYPE toolfetch_redirects_total counter
toolfetch_redirects_total{kind="download"} 1
`), "toolfetch_redirects_total")
	assert.NoError(t, err)

	assert.Error(t, m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom")))
}

func TestRecordBreakerTransition(t *testing.T) {
	m := NewMetrics()
	m.RecordBreakerTransition("open")
	m.RecordBreakerTransition("open")
	m.RecordBreakerTransition("half-open")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerTransitions.WithLabelValues("open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakerTransitions.WithLabelValues("half-open")))
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "none", statusLabel(0))
	assert.Equal(t, "2xx", statusLabel(200))
	assert.Equal(t, "4xx", statusLabel(404))
	assert.Equal(t, "5xx", statusLabel(503))
}
