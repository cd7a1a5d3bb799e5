package cache

import "time"

// Defaults applied by New when the corresponding Options field is zero.
const (
	// DefaultTTL is the lifetime of entries written by fetch-on-miss
	// and Store.
	DefaultTTL = 5 * time.Minute

	// DefaultBulkTTL is the lifetime of entries written by bulk preload.
	// A full-table scan is expensive to repeat, so its data is trusted
	// for longer than a single-row fetch.
	DefaultBulkTTL = 30 * time.Minute

	// DefaultMaxEntries bounds the resident entry count.
	DefaultMaxEntries = 1000

	// DefaultEvictFraction is the share of oldest-expiring entries
	// dropped when cleanup alone cannot get back under MaxEntries.
	DefaultEvictFraction = 0.25

	// DefaultCleanupInterval is the janitor period.
	DefaultCleanupInterval = 10 * time.Minute
)

// Clock provides current time; useful for deterministic tests.
type Clock interface{ Now() time.Time }

// Options configures the cache behavior. Zero values are safe; sane
// defaults are applied in New(). To disable the janitor pass a negative
// CleanupInterval.
type Options struct {
	// TTL is the per-entry lifetime for fetch-on-miss and Store writes.
	TTL time.Duration

	// BulkTTL is the per-entry lifetime for bulk-preload writes. A bulk
	// store overrides the key's previous deadline; a later individual
	// store re-applies the shorter TTL. Both knobs are deliberately
	// explicit rather than coupled.
	BulkTTL time.Duration

	// MaxEntries is the resident entry bound. Exceeding it triggers
	// expired-entry cleanup, then batch eviction.
	MaxEntries int

	// EvictFraction is the share of MaxEntries evicted per batch
	// (oldest expiry first). 0 => DefaultEvictFraction.
	EvictFraction float64

	// CleanupInterval is how often the janitor reaps expired entries.
	// 0 => DefaultCleanupInterval; negative disables the janitor.
	CleanupInterval time.Duration

	// DisableAutoPreload suppresses the one-time background bulk preload
	// that the first Get on a never-preloaded cache otherwise schedules.
	DisableAutoPreload bool

	// Metrics receives Hit/Miss/Evict/Size/BulkLoad signals.
	// Nil => NoopMetrics; plug the prom adapter to export them.
	Metrics Metrics

	// Clock allows overriding the time source (tests). Nil => time.Now.
	Clock Clock
}

// withDefaults returns a copy of o with zero fields filled in.
func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.BulkTTL <= 0 {
		o.BulkTTL = DefaultBulkTTL
	}
	if o.MaxEntries <= 0 {
		o.MaxEntries = DefaultMaxEntries
	}
	if o.EvictFraction <= 0 || o.EvictFraction > 1 {
		o.EvictFraction = DefaultEvictFraction
	}
	if o.CleanupInterval == 0 {
		o.CleanupInterval = DefaultCleanupInterval
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	return o
}
