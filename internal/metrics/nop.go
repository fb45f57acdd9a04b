package metrics

import "time"

// NopMetrics discards everything
type NopMetrics struct{}

// NewNopMetrics creates a new NopMetrics instance
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

func (m *NopMetrics) IncSubmissions(adapter, result string) {}
func (m *NopMetrics) IncReceiptPolls(chainID uint64)        {}
func (m *NopMetrics) IncReceipts(status string)             {}
func (m *NopMetrics) IncReceiptTimeouts()                   {}
func (m *NopMetrics) ObserveReceiptWait(d time.Duration)    {}
func (m *NopMetrics) IncMetadataFallbacks()                 {}

var _ Metrics = (*NopMetrics)(nil)
