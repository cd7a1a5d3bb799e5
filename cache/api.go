package cache

import (
	"context"
	"time"

	"github.com/rosterops/rostercache/roster"
)

// Cache is an in-memory, TTL-based, read-through cache for personnel
// profiles. All methods are safe for concurrent use by multiple goroutines.
//
// The cache never surfaces backing-store errors: every failure path
// degrades to "serve the last cached value if one exists, else miss".
type Cache interface {
	// Get returns the profile for id, reading through to the backing
	// store on a miss. The second return is false when the user has no
	// record, when the key is mid-fetch by another goroutine (see the
	// loading-guard note on Get in cache.go), or when the store failed
	// and no cached value exists. Fresh negative entries are served
	// without a store call.
	Get(ctx context.Context, id int64) (roster.Profile, bool)

	// Refresh bypasses freshness and always consults the backing store;
	// the new result overwrites the cached one. On store failure the
	// previous cached value (even if expired) is returned instead.
	Refresh(ctx context.Context, id int64) (roster.Profile, bool)

	// Store writes a positive entry with the normal TTL. At capacity it
	// reaps expired entries first and then, if still full, evicts the
	// oldest-expiring batch.
	Store(id int64, p roster.Profile)

	// Invalidate removes id from the cache. Idempotent. Writers must
	// call this after every successful personnel mutation.
	Invalidate(id int64)

	// Clear drops all entries and resets the bulk-preload state, so the
	// next lookup may trigger a fresh bulk load.
	Clear()

	// CleanupExpired reaps entries whose deadline has passed and returns
	// how many were removed. Runs periodically via the janitor and
	// opportunistically before eviction.
	CleanupExpired() int

	// PreloadAll loads the entire personnel table in one pass.
	// Concurrent calls coalesce into a single load; within BulkTTL of
	// the last successful load it short-circuits with FromCache set.
	PreloadAll(ctx context.Context) PreloadResult

	// ForcePreloadAll is PreloadAll without the BulkTTL short-circuit.
	ForcePreloadAll(ctx context.Context) PreloadResult

	// PreloadUsers warms only the given keys, fetching those without a
	// fresh entry through the per-key path with bounded concurrency.
	// Per-key failures are counted in Errors and do not abort the batch.
	PreloadUsers(ctx context.Context, ids []int64) PreloadResult

	// Stats returns a point-in-time snapshot of the cache counters.
	Stats() Stats

	// Len returns the number of resident entries, expired ones included.
	Len() int

	// Close stops the cleanup janitor and marks the cache closed.
	Close() error
}

// Invalidator is the narrow write-side contract handed to components that
// mutate the backing store. Keeping it separate from Cache lets writers
// invalidate without being able to read.
type Invalidator interface {
	Invalidate(id int64)
	Clear()
}

// PreloadResult reports the outcome of one preload pass, full-table or
// subset.
type PreloadResult struct {
	Success     bool
	UsersLoaded int
	Errors      int // records skipped: unusable keys (bulk) or failed lookups (subset)
	LoadTime    time.Duration
	CacheSize   int
	FromCache   bool  // short-circuited: bulk load within BulkTTL, or every subset key fresh
	Err         error // set on total failure (the fetch-all itself failed)
}
