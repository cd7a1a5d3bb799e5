package cache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/rosterops/rostercache/internal/singleflight"
	"github.com/rosterops/rostercache/internal/util"
	"github.com/rosterops/rostercache/roster"
)

var log = logging.Logger("rostercache")

// entry is one cached outcome. A nil profile is a negative entry: the user
// was looked up and confirmed absent. Expired entries are NOT removed at
// read time — they stay resident as stale-fallback material until the
// janitor or pre-eviction cleanup reaps them.
type entry struct {
	profile *roster.Profile
	exp     time.Time // absolute deadline; fresh iff now < exp
}

// userCache is the single shared profile cache. One RWMutex guards the
// entry map; hot counters live on separate cache lines.
type userCache struct {
	src roster.Source
	opt Options

	mu      sync.RWMutex
	entries map[int64]*entry
	// loading marks keys with a fetch in flight. A second Get for the
	// same key observes the marker and fails fast instead of waiting.
	loading map[int64]struct{}

	bulkLoaded   bool
	lastBulkLoad time.Time
	lastCleanup  time.Time

	// preload serializes bulk loads; concurrent triggers share one pass.
	preload singleflight.Flight[PreloadResult]
	// autoPreload flips once when the first Get schedules the background
	// bulk load; Clear resets it.
	autoPreload atomic.Bool

	closed atomic.Bool
	done   chan struct{}

	_         util.CacheLinePad
	hits      util.PaddedAtomicUint64
	misses    util.PaddedAtomicUint64
	requests  util.PaddedAtomicUint64
	evictions util.PaddedAtomicUint64
	bulkLoads util.PaddedAtomicUint64
}

// New constructs a profile cache in front of src. Defaults: see Options.
// A janitor goroutine reaps expired entries every CleanupInterval until
// Close is called (negative interval disables it).
func New(src roster.Source, opt Options) Cache {
	if src == nil {
		panic("cache: nil roster.Source")
	}
	opt = opt.withDefaults()

	c := &userCache{
		src:     src,
		opt:     opt,
		entries: make(map[int64]*entry),
		loading: make(map[int64]struct{}),
		done:    make(chan struct{}),
	}
	if opt.CleanupInterval > 0 {
		go c.janitor()
	}
	return c
}

// ---- Cache implementation ----

func (c *userCache) Get(ctx context.Context, id int64) (roster.Profile, bool) {
	return c.get(ctx, id, false)
}

func (c *userCache) Refresh(ctx context.Context, id int64) (roster.Profile, bool) {
	return c.get(ctx, id, true)
}

// get is the read-through path shared by Get and Refresh.
//
// Loading guard: between marking a key loading and the store call
// completing, another get for the same key returns a plain miss instead of
// waiting for the in-flight fetch. That miss is indistinguishable from
// "user not found" — a deliberate trade of an occasional spurious miss on
// hot keys for not holding callers hostage to someone else's fetch. Bulk
// preload, not per-key coalescing, is the stampede defense here.
func (c *userCache) get(ctx context.Context, id int64, force bool) (roster.Profile, bool) {
	if c.closed.Load() {
		return roster.Profile{}, false
	}
	c.requests.Add(1)
	c.maybeAutoPreload()

	if !force {
		c.mu.RLock()
		e, ok := c.entries[id]
		if ok && c.now().Before(e.exp) {
			p := e.profile
			c.mu.RUnlock()
			c.hits.Add(1)
			c.opt.Metrics.Hit()
			if p == nil {
				// Fresh negative entry: confirmed absent.
				return roster.Profile{}, false
			}
			return *p, true
		}
		c.mu.RUnlock()
	}
	c.misses.Add(1)
	c.opt.Metrics.Miss()

	c.mu.Lock()
	if _, busy := c.loading[id]; busy {
		c.mu.Unlock()
		return roster.Profile{}, false
	}
	c.loading[id] = struct{}{}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.loading, id)
		c.mu.Unlock()
	}()

	p, err := c.src.Lookup(ctx, id)
	if err != nil {
		log.Errorw("profile lookup failed", "user", id, "source", c.src, "err", err)
		return c.staleOrMiss(id)
	}

	c.mu.Lock()
	c.storeLocked(id, p, c.opt.TTL)
	c.mu.Unlock()

	if p == nil {
		return roster.Profile{}, false
	}
	return *p, true
}

// staleOrMiss serves the last cached value for id regardless of expiry,
// or reports a miss when nothing (or only a negative entry) is cached.
func (c *userCache) staleOrMiss(id int64) (roster.Profile, bool) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if ok && e.profile != nil {
		log.Warnw("serving stale profile after lookup failure", "user", id)
		return *e.profile, true
	}
	return roster.Profile{}, false
}

func (c *userCache) Store(id int64, p roster.Profile) {
	if c.closed.Load() {
		return
	}
	c.mu.Lock()
	c.storeLocked(id, &p, c.opt.TTL)
	c.mu.Unlock()
}

func (c *userCache) Invalidate(id int64) {
	c.mu.Lock()
	delete(c.entries, id)
	size := len(c.entries)
	c.mu.Unlock()
	c.opt.Metrics.Size(size)
}

func (c *userCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[int64]*entry)
	c.bulkLoaded = false
	c.lastBulkLoad = time.Time{}
	c.mu.Unlock()
	// Let the next Get schedule a fresh background bulk load.
	c.autoPreload.Store(false)
	c.opt.Metrics.Size(0)
}

func (c *userCache) CleanupExpired() int {
	c.mu.Lock()
	n := c.cleanupExpiredLocked()
	c.mu.Unlock()
	return n
}

func (c *userCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the janitor and marks the cache closed.
// Future reads and writes are ignored.
func (c *userCache) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		close(c.done)
	}
	return nil
}

// ---- internals (mu held) ----

// storeLocked writes id with a fresh deadline; last write wins. At or over
// capacity it reaps expired entries first, then evicts the oldest-expiring
// batch if cleanup alone was not enough.
func (c *userCache) storeLocked(id int64, p *roster.Profile, ttl time.Duration) {
	if len(c.entries) >= c.opt.MaxEntries {
		c.cleanupExpiredLocked()
		if len(c.entries) >= c.opt.MaxEntries {
			batch := int(float64(c.opt.MaxEntries) * c.opt.EvictFraction)
			if batch < 1 {
				batch = 1 // tiny caches: the fraction rounds to zero
			}
			c.evictOldestLocked(batch)
		}
	}
	if p != nil {
		cp := *p // detach from the caller's copy
		p = &cp
	}
	c.entries[id] = &entry{profile: p, exp: c.now().Add(ttl)}
	c.opt.Metrics.Size(len(c.entries))
}

// cleanupExpiredLocked removes every entry whose deadline has passed.
func (c *userCache) cleanupExpiredLocked() int {
	now := c.now()
	var n int
	for id, e := range c.entries {
		if !e.exp.After(now) {
			delete(c.entries, id)
			n++
			c.opt.Metrics.Evict(EvictTTL)
		}
	}
	if n > 0 {
		c.evictions.Add(uint64(n))
		log.Debugw("reaped expired profiles", "count", n)
	}
	c.lastCleanup = now
	c.opt.Metrics.Size(len(c.entries))
	return n
}

// evictOldestLocked drops the n entries closest to expiry.
func (c *userCache) evictOldestLocked(n int) {
	if n <= 0 || len(c.entries) == 0 {
		return
	}
	type victim struct {
		id  int64
		exp time.Time
	}
	all := make([]victim, 0, len(c.entries))
	for id, e := range c.entries {
		all = append(all, victim{id: id, exp: e.exp})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].exp.Before(all[j].exp) })

	if n > len(all) {
		n = len(all)
	}
	for _, v := range all[:n] {
		delete(c.entries, v.id)
		c.opt.Metrics.Evict(EvictCapacity)
	}
	c.evictions.Add(uint64(n))
	log.Debugw("evicted oldest-expiring profiles", "count", n)
	c.opt.Metrics.Size(len(c.entries))
}

func (c *userCache) now() time.Time {
	if c.opt.Clock != nil {
		return c.opt.Clock.Now()
	}
	return time.Now()
}

// janitor reaps expired entries every CleanupInterval until Close.
func (c *userCache) janitor() {
	t := time.NewTicker(c.opt.CleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.CleanupExpired()
		case <-c.done:
			return
		}
	}
}
