package cache

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// preloadParallelism caps concurrent source lookups during a subset preload.
const preloadParallelism = 5

// PreloadAll loads the whole personnel table in one pass, amortizing the
// cost of populating the cache ahead of bursts of lookups (mass rank sync,
// audit sweeps). Within BulkTTL of the last successful pass it does no work
// and reports FromCache. Concurrent triggers — a scheduled refresh racing a
// first-miss trigger — collapse into one actual load; the losers share the
// winner's result.
func (c *userCache) PreloadAll(ctx context.Context) PreloadResult {
	return c.preloadAll(ctx, false)
}

// ForcePreloadAll reloads unconditionally, ignoring the BulkTTL window.
func (c *userCache) ForcePreloadAll(ctx context.Context) PreloadResult {
	return c.preloadAll(ctx, true)
}

func (c *userCache) preloadAll(ctx context.Context, force bool) PreloadResult {
	if c.closed.Load() {
		return PreloadResult{}
	}
	res, err := c.preload.Do(ctx, func() (PreloadResult, error) {
		return c.doPreload(ctx, force), nil
	})
	if err != nil {
		// Cancelled while waiting on another caller's load.
		return PreloadResult{Err: err}
	}
	return res
}

func (c *userCache) doPreload(ctx context.Context, force bool) PreloadResult {
	c.mu.RLock()
	if !force && c.bulkLoaded && c.now().Sub(c.lastBulkLoad) < c.opt.BulkTTL {
		size := len(c.entries)
		c.mu.RUnlock()
		return PreloadResult{Success: true, FromCache: true, CacheSize: size}
	}
	c.mu.RUnlock()

	start := c.now()
	profiles, err := c.src.LookupAll(ctx)
	if err != nil {
		// Total failure: leave bulkLoaded unset so individual misses
		// keep retrying through the normal per-key path.
		log.Errorw("bulk preload failed", "source", c.src, "err", err)
		return PreloadResult{Err: err}
	}

	var loaded, skipped int
	c.mu.Lock()
	for i := range profiles {
		p := profiles[i]
		if !p.Valid() {
			// One malformed record must not block the rest.
			skipped++
			continue
		}
		c.storeLocked(p.UserID, &p, c.opt.BulkTTL)
		loaded++
	}
	c.bulkLoaded = true
	c.lastBulkLoad = c.now()
	size := len(c.entries)
	c.mu.Unlock()

	dur := c.now().Sub(start)
	c.bulkLoads.Add(1)
	c.opt.Metrics.BulkLoad(loaded, dur)
	if skipped > 0 {
		log.Warnw("bulk preload skipped malformed records", "skipped", skipped)
	}
	log.Infow("bulk preload complete", "users", loaded, "errors", skipped, "took", dur)

	return PreloadResult{
		Success:     true,
		UsersLoaded: loaded,
		Errors:      skipped,
		LoadTime:    dur,
		CacheSize:   size,
	}
}

// PreloadUsers warms a chosen subset of keys (one department, one event's
// participants) through the per-key path, fetching only keys without a
// fresh entry. Lookups run with bounded concurrency; a failed key is
// counted and skipped rather than aborting the batch. FromCache reports
// that every requested key was already fresh.
func (c *userCache) PreloadUsers(ctx context.Context, ids []int64) PreloadResult {
	if c.closed.Load() {
		return PreloadResult{}
	}
	start := c.now()

	missing := make([]int64, 0, len(ids))
	c.mu.RLock()
	now := c.now()
	for _, id := range ids {
		if e, ok := c.entries[id]; ok && now.Before(e.exp) {
			continue
		}
		missing = append(missing, id)
	}
	c.mu.RUnlock()

	var loaded, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(preloadParallelism)
	for _, id := range missing {
		id := id
		g.Go(func() error {
			if err := c.fetchUser(ctx, id); err != nil {
				failed.Add(1)
				log.Warnw("subset preload lookup failed", "user", id, "err", err)
				return nil
			}
			loaded.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res := PreloadResult{
		Success:     true,
		UsersLoaded: int(loaded.Load()),
		Errors:      int(failed.Load()),
		LoadTime:    c.now().Sub(start),
		CacheSize:   c.Len(),
		FromCache:   len(missing) == 0,
	}
	log.Debugw("subset preload complete", "requested", len(ids),
		"users", res.UsersLoaded, "errors", res.Errors, "took", res.LoadTime)
	return res
}

// fetchUser reads one key through to the source and caches either outcome.
// A key already mid-fetch by another goroutine is left to that fetch.
func (c *userCache) fetchUser(ctx context.Context, id int64) error {
	c.mu.Lock()
	if _, busy := c.loading[id]; busy {
		c.mu.Unlock()
		return nil
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
		return err
	}
	c.mu.Lock()
	c.storeLocked(id, p, c.opt.TTL)
	c.mu.Unlock()
	return nil
}

// maybeAutoPreload schedules a one-time background bulk load the first time
// the cache is read before any bulk load happened. Fire-and-forget: the
// current request proceeds through the normal per-key path.
func (c *userCache) maybeAutoPreload() {
	if c.opt.DisableAutoPreload {
		return
	}
	c.mu.RLock()
	loaded := c.bulkLoaded
	c.mu.RUnlock()
	if loaded {
		return
	}
	if !c.autoPreload.CompareAndSwap(false, true) {
		return
	}
	go func() {
		if res := c.PreloadAll(context.Background()); res.Err != nil {
			log.Errorw("background bulk preload failed", "err", res.Err)
		}
	}()
}
