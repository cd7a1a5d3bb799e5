// Package postgres implements the personnel backing store on PostgreSQL:
// a roster.Source performing the relational joins the cache reads through,
// and the write path whose mutations own cache invalidation.
package postgres

import (
	"context"
	"errors"
	"fmt"

	logging "github.com/ipfs/go-log/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rosterops/rostercache/roster"
)

var log = logging.Logger("rostercache/pg")

// profileQuery flattens one personnel record across the join graph:
// personnel → employees → ranks / subdivisions / position_subdivision →
// positions. LEFT JOINs keep people without an active assignment (e.g.
// fresh academy intakes) visible with empty rank/department/position.
const profileQuery = `
SELECT p.discord_id,
       TRIM(CONCAT(p.first_name, ' ', p.last_name)) AS full_name,
       p.static,
       r.name   AS rank,
       s.name   AS department,
       pos.name AS position
FROM personnel p
LEFT JOIN employees e             ON p.id = e.personnel_id
LEFT JOIN ranks r                 ON e.rank_id = r.id
LEFT JOIN subdivisions s          ON e.subdivision_id = s.id
LEFT JOIN position_subdivision ps ON e.position_subdivision_id = ps.id
LEFT JOIN positions pos           ON ps.position_id = pos.id`

const lookupQuery = profileQuery + `
WHERE p.discord_id = $1`

// Source is a roster.Source backed by a pgx connection pool.
type Source struct {
	pool *pgxpool.Pool
}

// NewSource wraps an established pool. The pool's lifetime stays with the
// caller; closing it is not the source's job.
func NewSource(pool *pgxpool.Pool) *Source {
	return &Source{pool: pool}
}

// Lookup fetches one profile, or (nil, nil) when the user has no
// personnel record.
func (s *Source) Lookup(ctx context.Context, id int64) (*roster.Profile, error) {
	row := s.pool.QueryRow(ctx, lookupQuery, id)

	var (
		discordID                                pgtype.Int8
		fullName, static, rank, department, post pgtype.Text
	)
	err := row.Scan(&discordID, &fullName, &static, &rank, &department, &post)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup personnel %d: %w", id, err)
	}

	p := buildProfile(discordID.Int64, fullName, static, rank, department, post)
	return &p, nil
}

// LookupAll fetches the whole personnel table in one pass. Rows that fail
// to scan are skipped and logged rather than aborting the batch.
func (s *Source) LookupAll(ctx context.Context) ([]roster.Profile, error) {
	rows, err := s.pool.Query(ctx, profileQuery)
	if err != nil {
		return nil, fmt.Errorf("lookup all personnel: %w", err)
	}
	defer rows.Close()

	var profiles []roster.Profile
	for rows.Next() {
		var (
			discordID                                pgtype.Int8
			fullName, static, rank, department, post pgtype.Text
		)
		if err := rows.Scan(&discordID, &fullName, &static, &rank, &department, &post); err != nil {
			log.Warnw("skipping unscannable personnel row", "err", err)
			continue
		}
		profiles = append(profiles, buildProfile(discordID.Int64, fullName, static, rank, department, post))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lookup all personnel: %w", err)
	}
	return profiles, nil
}

func (s *Source) String() string { return "postgres" }

// buildProfile maps one scanned row to a Profile. NULL columns (no active
// assignment) become empty fields; the accessor helpers turn those into
// their sentinels.
func buildProfile(id int64, fullName, static, rank, department, position pgtype.Text) roster.Profile {
	return roster.Profile{
		UserID:     id,
		FullName:   textOrEmpty(fullName),
		Static:     textOrEmpty(static),
		Rank:       textOrEmpty(rank),
		Department: textOrEmpty(department),
		Position:   textOrEmpty(position),
		Source:     "postgres",
	}
}

func textOrEmpty(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

// Compile-time check: Source satisfies the backing-store contract.
var _ roster.Source = (*Source)(nil)
