// Package roster defines the personnel domain types and the backing-store
// contract consumed by the cache layer.
package roster

import "context"

// Sentinel strings returned by the fast accessor helpers when a field (or
// the whole record) is absent.
const (
	NotFound     = "not found"
	NotSpecified = "not specified"
	NotAssigned  = "not assigned"
)

// Profile is a flat snapshot of one person's personnel record: the result of
// the relational joins across personnel, employees, ranks, subdivisions and
// positions. It is deliberately a value type — handing out copies by value
// is what keeps callers from mutating cached state.
type Profile struct {
	// UserID is the Discord snowflake the record is keyed by.
	UserID int64

	FullName   string
	Static     string
	Rank       string
	Department string
	Position   string

	// Source names where this snapshot came from (e.g. "postgres").
	Source string
}

// Valid reports whether the profile carries a usable key.
func (p Profile) Valid() bool { return p.UserID != 0 }

// Source is the authoritative (slow) personnel store the cache sits in
// front of. Implementations must be safe for concurrent use.
type Source interface {
	// Lookup returns the profile for one user, or (nil, nil) if the user
	// has no personnel record. "Confirmed absent" is a valid, cacheable
	// outcome, distinct from an error.
	Lookup(ctx context.Context, id int64) (*Profile, error)

	// LookupAll returns every personnel record in one pass. Used only by
	// bulk preload; each returned profile must carry its UserID.
	LookupAll(ctx context.Context) ([]Profile, error)

	// String describes the source for log output.
	String() string
}
