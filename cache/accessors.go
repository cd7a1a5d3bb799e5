package cache

import (
	"context"

	"github.com/rosterops/rostercache/roster"
)

// Fast accessor helpers: pure projections of one profile field, with the
// roster sentinels as defaults. They carry no caching logic of their own —
// everything funnels through Cache.Get. Intended for call sites that only
// need one string (embed lines, nickname formatting, audit rows).

// Name returns the user's full name, roster.NotFound when there is no
// record, or roster.NotSpecified when the record has no name.
func Name(ctx context.Context, c Cache, id int64) string {
	p, ok := c.Get(ctx, id)
	switch {
	case !ok:
		return roster.NotFound
	case p.FullName == "":
		return roster.NotSpecified
	}
	return p.FullName
}

// Static returns the user's static identifier.
func Static(ctx context.Context, c Cache, id int64) string {
	p, ok := c.Get(ctx, id)
	switch {
	case !ok:
		return roster.NotFound
	case p.Static == "":
		return roster.NotSpecified
	}
	return p.Static
}

// Rank returns the user's rank.
func Rank(ctx context.Context, c Cache, id int64) string {
	p, ok := c.Get(ctx, id)
	switch {
	case !ok:
		return roster.NotFound
	case p.Rank == "":
		return roster.NotSpecified
	}
	return p.Rank
}

// Department returns the user's subdivision, roster.NotAssigned when the
// record exists but no subdivision is set.
func Department(ctx context.Context, c Cache, id int64) string {
	p, ok := c.Get(ctx, id)
	switch {
	case !ok:
		return roster.NotFound
	case p.Department == "":
		return roster.NotAssigned
	}
	return p.Department
}

// Position returns the user's position, roster.NotAssigned when the record
// exists but no position is held.
func Position(ctx context.Context, c Cache, id int64) string {
	p, ok := c.Get(ctx, id)
	switch {
	case !ok:
		return roster.NotFound
	case p.Position == "":
		return roster.NotAssigned
	}
	return p.Position
}

// Display is the composite projection: every display field with its
// sentinel already applied. Meant for call sites that render a whole card
// (embeds, audit rows) and would otherwise call the single-field helpers
// five times.
type Display struct {
	Name       string
	Static     string
	Rank       string
	Department string
	Position   string
	Source     string
}

// Fields returns all display fields for id in a single cache lookup, with
// the same sentinel mapping as the single-field helpers. Source names
// where the record came from, or roster.NotFound for a missing user.
func Fields(ctx context.Context, c Cache, id int64) Display {
	p, ok := c.Get(ctx, id)
	if !ok {
		return Display{
			Name:       roster.NotFound,
			Static:     roster.NotFound,
			Rank:       roster.NotFound,
			Department: roster.NotFound,
			Position:   roster.NotFound,
			Source:     roster.NotFound,
		}
	}
	return Display{
		Name:       orSentinel(p.FullName, roster.NotSpecified),
		Static:     orSentinel(p.Static, roster.NotSpecified),
		Rank:       orSentinel(p.Rank, roster.NotSpecified),
		Department: orSentinel(p.Department, roster.NotAssigned),
		Position:   orSentinel(p.Position, roster.NotAssigned),
		Source:     p.Source,
	}
}

func orSentinel(v, sentinel string) string {
	if v == "" {
		return sentinel
	}
	return v
}
