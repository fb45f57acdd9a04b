package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements Metrics on a private Prometheus registry
type PrometheusMetrics struct {
	registry *prometheus.Registry

	submissions       *prometheus.CounterVec
	receiptPolls      *prometheus.CounterVec
	receipts          *prometheus.CounterVec
	receiptTimeouts   prometheus.Counter
	receiptWait       prometheus.Histogram
	metadataFallbacks prometheus.Counter
}

// NewPrometheusMetrics creates and registers all collectors under namespace
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	m := &PrometheusMetrics{
		registry: registry,
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Transactions handed to a wallet adapter",
			},
			[]string{"adapter", "result"},
		),
		receiptPolls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "receipt_polls_total",
				Help:      "Receipt lookups sent to a node",
			},
			[]string{"chain_id"},
		),
		receipts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "receipts_total",
				Help:      "Receipts resolved by status",
			},
			[]string{"status"},
		),
		receiptTimeouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "receipt_timeouts_total",
				Help:      "Receipt waits that hit their deadline or attempt limit",
			},
		),
		receiptWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "receipt_wait_seconds",
				Help:      "Time from first poll to inclusion",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
			},
		),
		metadataFallbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chain_metadata_fallbacks_total",
				Help:      "Chain metadata lookups answered with default values",
			},
		),
	}

	registry.MustRegister(
		m.submissions,
		m.receiptPolls,
		m.receipts,
		m.receiptTimeouts,
		m.receiptWait,
		m.metadataFallbacks,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PrometheusMetrics) IncSubmissions(adapter, result string) {
	m.submissions.WithLabelValues(adapter, result).Inc()
}

func (m *PrometheusMetrics) IncReceiptPolls(chainID uint64) {
	m.receiptPolls.WithLabelValues(strconv.FormatUint(chainID, 10)).Inc()
}

func (m *PrometheusMetrics) IncReceipts(status string) {
	m.receipts.WithLabelValues(status).Inc()
}

func (m *PrometheusMetrics) IncReceiptTimeouts() {
	m.receiptTimeouts.Inc()
}

func (m *PrometheusMetrics) ObserveReceiptWait(d time.Duration) {
	m.receiptWait.Observe(d.Seconds())
}

func (m *PrometheusMetrics) IncMetadataFallbacks() {
	m.metadataFallbacks.Inc()
}

var _ Metrics = (*PrometheusMetrics)(nil)
