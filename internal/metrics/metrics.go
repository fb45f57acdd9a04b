// Package metrics records pipeline activity. Components depend on the Metrics
// interface; PrometheusMetrics backs it in the CLI and NopMetrics everywhere
// else.
package metrics

import "time"

// Metrics is implemented by every metrics backend
type Metrics interface {
	// IncSubmissions counts executor submissions by adapter kind and result
	IncSubmissions(adapter, result string)
	// IncReceiptPolls counts single receipt lookups against a node
	IncReceiptPolls(chainID uint64)
	// IncReceipts counts resolved receipts by status ("success" or "reverted")
	IncReceipts(status string)
	// IncReceiptTimeouts counts waits that gave up
	IncReceiptTimeouts()
	// ObserveReceiptWait records how long a wait took to resolve
	ObserveReceiptWait(d time.Duration)
	// IncMetadataFallbacks counts chain metadata lookups that fell back to defaults
	IncMetadataFallbacks()
}
