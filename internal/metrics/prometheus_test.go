package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics(t *testing.T) {
	m := NewPrometheusMetrics("txflow")

	m.IncSubmissions("local", "ok")
	m.IncSubmissions("local", "ok")
	m.IncReceiptPolls(1)
	m.IncReceipts("reverted")
	m.IncReceiptTimeouts()
	m.ObserveReceiptWait(2 * time.Second)
	m.IncMetadataFallbacks()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.submissions.WithLabelValues("local", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.receiptPolls.WithLabelValues("1")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.receipts.WithLabelValues("reverted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.metadataFallbacks))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "txflow_submissions_total")
	assert.Contains(t, string(body), "txflow_receipt_wait_seconds")
}

func TestNopMetrics(t *testing.T) {
	var m Metrics = NewNopMetrics()
	m.IncSubmissions("x", "y")
	m.ObserveReceiptWait(time.Second)
}
