package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rosterops/rostercache/roster"
)

// Two preloads in quick succession perform exactly one full-table fetch;
// the second reports FromCache and does no work.
func TestPreload_BulkShortCircuit(t *testing.T) {
	t.Parallel()

	src := newFakeSource(profile(1, "A", "R"), profile(2, "B", "R"))
	c := newTestCache(src, Options{})
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	res := c.PreloadAll(ctx)
	if !res.Success || res.FromCache || res.UsersLoaded != 2 || res.Errors != 0 {
		t.Fatalf("first preload: %+v", res)
	}

	res = c.PreloadAll(ctx)
	if !res.Success || !res.FromCache {
		t.Fatalf("second preload must short-circuit: %+v", res)
	}
	if n := src.lookupAlls.Load(); n != 1 {
		t.Fatalf("want exactly one full-table fetch, got %d", n)
	}

	// Force bypasses the window.
	if res := c.ForcePreloadAll(ctx); !res.Success || res.FromCache {
		t.Fatalf("forced preload must reload: %+v", res)
	}
	if n := src.lookupAlls.Load(); n != 2 {
		t.Fatalf("want a second fetch after force, got %d", n)
	}
}

// One malformed record must not block the batch: the rest load and are
// individually retrievable without further source calls.
func TestPreload_PartialFailureIsolation(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.all = []roster.Profile{
		profile(1, "A", "R"),
		{FullName: "no key"}, // malformed: unusable key
		profile(3, "C", "R"),
	}
	c := newTestCache(src, Options{})
	t.Cleanup(func() { _ = c.Close() })

	res := c.PreloadAll(context.Background())
	if !res.Success || res.UsersLoaded != 2 || res.Errors != 1 {
		t.Fatalf("partial failure: %+v", res)
	}

	for _, id := range []int64{1, 3} {
		if _, ok := c.Get(context.Background(), id); !ok {
			t.Fatalf("valid record %d must be resident", id)
		}
	}
	if n := src.lookups.Load(); n != 0 {
		t.Fatalf("preloaded records must not read through, got %d lookups", n)
	}
}

// Total failure reports the error and leaves the preloaded flag unset, so
// both per-key misses and later preloads retry.
func TestPreload_TotalFailure(t *testing.T) {
	t.Parallel()

	src := newFakeSource(profile(1, "A", "R"))
	src.fail(errors.New("relation does not exist"))
	c := newTestCache(src, Options{})
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	res := c.PreloadAll(ctx)
	if res.Success || res.Err == nil || res.UsersLoaded != 0 {
		t.Fatalf("total failure: %+v", res)
	}

	src.fail(nil)
	if _, ok := c.Get(ctx, 1); !ok {
		t.Fatal("per-key path must still work after a failed bulk load")
	}
	if res := c.PreloadAll(ctx); !res.Success || res.FromCache {
		t.Fatalf("preload after failure must do a real load: %+v", res)
	}
	if n := src.lookupAlls.Load(); n != 2 {
		t.Fatalf("want a retried full-table fetch, got %d", n)
	}
}

// Bulk entries outlive the per-key TTL; an individual store then re-applies
// the shorter TTL to that key.
func TestPreload_BulkTTLOutlivesEntryTTL(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	src := newFakeSource(profile(1, "A", "R"))
	c := newTestCache(src, Options{TTL: 5 * time.Minute, BulkTTL: 30 * time.Minute, Clock: clk})
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	if res := c.PreloadAll(ctx); !res.Success {
		t.Fatalf("preload: %+v", res)
	}

	clk.add(6 * time.Minute) // past TTL, within BulkTTL
	if _, ok := c.Get(ctx, 1); !ok {
		t.Fatal("bulk entry must still be fresh")
	}
	if n := src.lookups.Load(); n != 0 {
		t.Fatalf("bulk entry hit must not read through, got %d lookups", n)
	}

	// An individual store re-applies the short TTL.
	c.Store(1, profile(1, "A", "R"))
	clk.add(6 * time.Minute)
	c.Get(ctx, 1)
	if n := src.lookups.Load(); n != 1 {
		t.Fatalf("individually stored entry must expire on the short TTL, got %d lookups", n)
	}
}

// Clear drops the bulk state: the next preload is a real load again.
func TestPreload_ClearResetsBulkState(t *testing.T) {
	t.Parallel()

	src := newFakeSource(profile(1, "A", "R"))
	c := newTestCache(src, Options{})
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	c.PreloadAll(ctx)
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("clear must drop all entries, got %d", c.Len())
	}
	if res := c.PreloadAll(ctx); !res.Success || res.FromCache {
		t.Fatalf("preload after clear must reload: %+v", res)
	}
	if n := src.lookupAlls.Load(); n != 2 {
		t.Fatalf("want 2 full-table fetches, got %d", n)
	}
}

// Subset preload fetches only keys without a fresh entry; a failing key is
// counted and skipped without aborting the batch.
func TestPreload_SubsetWarmsOnlyMissing(t *testing.T) {
	t.Parallel()

	src := newFakeSource(
		profile(1, "A", "R"),
		profile(2, "B", "R"),
		profile(3, "C", "R"),
	)
	src.failID(4, errors.New("timeout"))
	c := newTestCache(src, Options{})
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	c.Get(ctx, 1) // key 1 is fresh before the preload

	// 1 fresh (skipped), 2+3 loaded, 4 fails, 5 confirmed absent (loaded
	// as a negative entry).
	res := c.PreloadUsers(ctx, []int64{1, 2, 3, 4, 5})
	if !res.Success || res.FromCache {
		t.Fatalf("subset preload: %+v", res)
	}
	if res.UsersLoaded != 3 || res.Errors != 1 {
		t.Fatalf("want 3 loaded / 1 error, got %d / %d", res.UsersLoaded, res.Errors)
	}
	if n := src.lookups.Load(); n != 5 {
		t.Fatalf("want 1 get + 4 preload lookups, got %d", n)
	}

	// Warmed keys hit; the absent key is a negative hit.
	for _, id := range []int64{2, 3} {
		if _, ok := c.Get(ctx, id); !ok {
			t.Fatalf("warmed key %d must hit", id)
		}
	}
	if _, ok := c.Get(ctx, 5); ok {
		t.Fatal("absent key must stay a negative entry")
	}
	if n := src.lookups.Load(); n != 5 {
		t.Fatalf("warmed keys must not read through, got %d lookups", n)
	}

	// Every key fresh: no fetches, FromCache set. The failed key retries.
	src.failID(4, nil)
	res = c.PreloadUsers(ctx, []int64{1, 2, 3, 5})
	if !res.FromCache || res.UsersLoaded != 0 || res.Errors != 0 {
		t.Fatalf("all-fresh subset preload: %+v", res)
	}
	if res = c.PreloadUsers(ctx, []int64{4}); res.UsersLoaded != 1 {
		t.Fatalf("recovered key must load: %+v", res)
	}
	if n := src.lookupAlls.Load(); n != 0 {
		t.Fatalf("subset preload must never do a full-table fetch, got %d", n)
	}
}

// Concurrent preload triggers collapse into one actual load; every caller
// gets a successful result.
func TestPreload_ConcurrentCoalesce(t *testing.T) {
	src := newFakeSource(profile(1, "A", "R"), profile(2, "B", "R"))
	src.entered = make(chan struct{}, 1)
	src.release = make(chan struct{})
	c := newTestCache(src, Options{})
	t.Cleanup(func() { _ = c.Close() })

	const N = 8
	var g errgroup.Group
	start := make(chan struct{})
	for i := 0; i < N; i++ {
		g.Go(func() error {
			<-start
			res := c.PreloadAll(context.Background())
			if !res.Success {
				return errors.New("preload failed")
			}
			return nil
		})
	}

	close(start)
	<-src.entered // the leader is inside the full-table fetch
	// Give the followers time to join the in-flight load.
	time.Sleep(100 * time.Millisecond)
	close(src.release)

	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if n := src.lookupAlls.Load(); n != 1 {
		t.Fatalf("want one coalesced full-table fetch, got %d", n)
	}
}

// The first Get on a never-preloaded cache schedules one background bulk
// load; other keys then hit without individual lookups.
func TestPreload_AutoTriggerOnFirstGet(t *testing.T) {
	src := newFakeSource(profile(1, "A", "R"), profile(2, "B", "R"))
	c := New(src, Options{}) // auto preload enabled
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	c.Get(ctx, 1) // serves via per-key path, schedules the bulk load

	deadline := time.Now().Add(2 * time.Second)
	for c.Stats().BulkLoads == 0 {
		if time.Now().After(deadline) {
			t.Fatal("background bulk preload never ran")
		}
		time.Sleep(5 * time.Millisecond)
	}

	perKey := src.lookups.Load()
	if _, ok := c.Get(ctx, 2); !ok {
		t.Fatal("preloaded key must hit")
	}
	if n := src.lookups.Load(); n != perKey {
		t.Fatalf("preloaded key must not read through, got %d extra lookups", n-perKey)
	}
	if n := src.lookupAlls.Load(); n != 1 {
		t.Fatalf("auto preload must run exactly once, got %d", n)
	}
}
