package cache

import (
	"context"
	"testing"

	"github.com/rosterops/rostercache/roster"
)

// The fast accessors are pure projections with sentinel defaults: full
// profile → field, partial profile → "not specified"/"not assigned",
// missing user → "not found".
func TestAccessors(t *testing.T) {
	t.Parallel()

	src := newFakeSource(
		roster.Profile{
			UserID:     1,
			FullName:   "Ivan Petrov",
			Static:     "123-456",
			Rank:       "Sergeant",
			Department: "Military Academy",
			Position:   "Instructor",
		},
		roster.Profile{UserID: 2, FullName: "Fresh Intake"},
	)
	c := newTestCache(src, Options{})
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()

	if got := Name(ctx, c, 1); got != "Ivan Petrov" {
		t.Fatalf("Name: %q", got)
	}
	if got := Static(ctx, c, 1); got != "123-456" {
		t.Fatalf("Static: %q", got)
	}
	if got := Rank(ctx, c, 1); got != "Sergeant" {
		t.Fatalf("Rank: %q", got)
	}
	if got := Department(ctx, c, 1); got != "Military Academy" {
		t.Fatalf("Department: %q", got)
	}
	if got := Position(ctx, c, 1); got != "Instructor" {
		t.Fatalf("Position: %q", got)
	}

	// Record exists but fields are unset.
	if got := Rank(ctx, c, 2); got != roster.NotSpecified {
		t.Fatalf("unset rank: %q", got)
	}
	if got := Department(ctx, c, 2); got != roster.NotAssigned {
		t.Fatalf("unset department: %q", got)
	}
	if got := Position(ctx, c, 2); got != roster.NotAssigned {
		t.Fatalf("unset position: %q", got)
	}

	// No record at all.
	if got := Name(ctx, c, 3); got != roster.NotFound {
		t.Fatalf("missing user name: %q", got)
	}
	if got := Static(ctx, c, 3); got != roster.NotFound {
		t.Fatalf("missing user static: %q", got)
	}

	// All of it funnels through the cache: one lookup per distinct key.
	if n := src.lookups.Load(); n != 3 {
		t.Fatalf("want 3 lookups for 3 keys, got %d", n)
	}
}

// Fields returns the whole card in one lookup, with the same sentinel
// mapping as the single-field helpers.
func TestAccessors_Fields(t *testing.T) {
	t.Parallel()

	src := newFakeSource(
		roster.Profile{
			UserID:     1,
			FullName:   "Ivan Petrov",
			Static:     "123-456",
			Rank:       "Sergeant",
			Department: "Military Academy",
			Position:   "Instructor",
			Source:     "fakeSource",
		},
		roster.Profile{UserID: 2, FullName: "Fresh Intake", Source: "fakeSource"},
	)
	c := newTestCache(src, Options{})
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()

	got := Fields(ctx, c, 1)
	want := Display{
		Name:       "Ivan Petrov",
		Static:     "123-456",
		Rank:       "Sergeant",
		Department: "Military Academy",
		Position:   "Instructor",
		Source:     "fakeSource",
	}
	if got != want {
		t.Fatalf("full card: got %+v, want %+v", got, want)
	}

	got = Fields(ctx, c, 2)
	want = Display{
		Name:       "Fresh Intake",
		Static:     roster.NotSpecified,
		Rank:       roster.NotSpecified,
		Department: roster.NotAssigned,
		Position:   roster.NotAssigned,
		Source:     "fakeSource",
	}
	if got != want {
		t.Fatalf("partial card: got %+v, want %+v", got, want)
	}

	got = Fields(ctx, c, 3)
	if got.Name != roster.NotFound || got.Source != roster.NotFound {
		t.Fatalf("missing user card: %+v", got)
	}

	// One lookup per distinct key, same as the single-field helpers.
	if n := src.lookups.Load(); n != 3 {
		t.Fatalf("want 3 lookups for 3 keys, got %d", n)
	}
}
