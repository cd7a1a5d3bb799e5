// Package cache provides a TTL-based, read-through, in-memory cache for
// personnel profiles, with bulk preload, negative-result caching, capacity
// eviction, stale-if-available degradation, and lightweight metrics hooks.
//
// Design
//
//   - Concurrency: a single RWMutex guards the entry map; hot counters are
//     cache-line padded atomics. All methods are safe for concurrent use.
//
//   - Read-through: Get serves fresh entries directly and otherwise fetches
//     from the injected roster.Source. Both outcomes of a fetch are cached:
//     a profile, or a negative entry recording that the user has no record,
//     so known-absent keys stop hammering the store.
//
//   - Loading guard: a key with a fetch already in flight fails fast — the
//     second caller gets a plain miss rather than waiting. This is a
//     deliberate simplification: callers must tolerate an occasional
//     spurious miss on hot keys under concurrent load. Bulk preload is the
//     actual stampede defense.
//
//   - TTL: entries carry absolute deadlines. Expired entries are treated as
//     misses but stay resident until the janitor (or pre-eviction cleanup)
//     reaps them, because they double as stale-fallback material when the
//     backing store is down.
//
//   - Bulk preload: PreloadAll fetches the whole personnel table in one
//     pass and stores every record with the longer BulkTTL. Concurrent
//     triggers coalesce into one load; within BulkTTL of the last pass the
//     call short-circuits. The first Get on a never-preloaded cache
//     schedules one background pass automatically. PreloadUsers warms a
//     chosen subset instead, fetching only not-fresh keys with bounded
//     concurrency and tolerating per-key failures.
//
//   - Capacity: when a store would exceed MaxEntries, expired entries are
//     reaped first; if that is not enough, the oldest-expiring
//     MaxEntries×EvictFraction entries are evicted in one batch.
//
//   - Failure policy: the cache never surfaces backing-store errors. A
//     failed lookup degrades to the last cached value (even expired) if one
//     exists, else a miss. A cache that can fail the user-facing operation
//     defeats its own purpose.
//
//   - Invalidation: writers (hiring, dismissal, rank/position/department
//     changes, blacklisting) call Invalidate after a successful mutation.
//     That is the system's only cross-component consistency mechanism;
//     a forgotten invalidation costs at most one TTL of staleness.
//
// Basic usage
//
//	c := cache.New(src, cache.Options{})
//	defer c.Close()
//
//	if p, ok := c.Get(ctx, 285404759983472640); ok {
//	    fmt.Println(p.FullName, p.Rank)
//	}
//
//	// After a successful write elsewhere:
//	c.Invalidate(285404759983472640)
//
// Warming up before a mass operation
//
//	res := c.PreloadAll(ctx)
//	if !res.Success {
//	    // individual misses will still retry per key
//	}
//
// Exporting metrics (Prometheus adapter)
//
//	m := prom.New(nil, "rostercache", "bot", nil)
//	c := cache.New(src, cache.Options{Metrics: m})
//
// See options.go for all knobs and package roster for the Profile type and
// the Source contract.
package cache
