//go:build go1.18

package cache

import (
	"context"
	"strings"
	"testing"

	"github.com/rosterops/rostercache/roster"
)

// Fuzz basic Store/Get/Invalidate semantics under arbitrary inputs.
// Guards against panics and ensures core invariants hold.
func FuzzCache_StoreGetInvalidate(f *testing.F) {
	// Seed corpus: small ids, snowflake-sized ids, empty and Unicode names.
	f.Add(int64(1), "A B", "R1")
	f.Add(int64(285404759983472640), "Ivan Petrov", "Sergeant")
	f.Add(int64(-7), "", "")
	f.Add(int64(0), "αβγ", "🙂")
	f.Add(int64(1<<62), strings.Repeat("x", 256), "long")

	f.Fuzz(func(t *testing.T, id int64, name, rank string) {
		// Cap lengths to keep memory bounded during fuzzing.
		const limit = 1 << 12 // 4096
		if len(name) > limit {
			name = name[:limit]
		}

		src := newFakeSource()
		c := newTestCache(src, Options{MaxEntries: 16})
		t.Cleanup(func() { _ = c.Close() })

		ctx := context.Background()
		p := roster.Profile{UserID: id, FullName: name, Rank: rank}

		// Store -> Get must return the same value.
		c.Store(id, p)
		got, ok := c.Get(ctx, id)
		if !ok || got != p {
			t.Fatalf("after Store/Get: want %+v, got %+v ok=%v", p, got, ok)
		}
		// The hit must not have touched the source.
		if n := src.lookups.Load(); n != 0 {
			t.Fatalf("hit read through: %d lookups", n)
		}

		// Invalidate -> Get reads through and finds nothing.
		c.Invalidate(id)
		if _, ok := c.Get(ctx, id); ok {
			t.Fatal("value survived invalidation")
		}
		if n := src.lookups.Load(); n != 1 {
			t.Fatalf("post-invalidation get must read through once, got %d", n)
		}
	})
}
