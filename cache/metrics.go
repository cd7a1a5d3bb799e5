package cache

import "time"

// EvictReason explains why an entry was removed.
type EvictReason int

const (
	// EvictTTL — reaped after its deadline passed (janitor or pre-eviction cleanup).
	EvictTTL EvictReason = iota
	// EvictCapacity — removed by batch eviction to satisfy MaxEntries.
	EvictCapacity
)

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int)
	// BulkLoad reports one completed bulk preload pass.
	BulkLoad(loaded int, d time.Duration)
}

// NoopMetrics is a drop-in Metrics implementation that does nothing.
// It is safe for concurrent use and intended as the default when
// no observability backend is configured.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                        {}
func (NoopMetrics) Miss()                       {}
func (NoopMetrics) Evict(EvictReason)           {}
func (NoopMetrics) Size(int)                    {}
func (NoopMetrics) BulkLoad(int, time.Duration) {}

// Ensure NoopMetrics implements the Metrics interface at compile time.
var _ Metrics = NoopMetrics{}
