package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rosterops/rostercache/cache"
)

// Personnel is the write side of the personnel store. Every successful
// mutation invalidates the affected key on the shared cache — the only
// cross-component consistency mechanism in the system. A forgotten
// invalidation costs at most one cache TTL of staleness.
type Personnel struct {
	pool *pgxpool.Pool
	inv  cache.Invalidator
}

// NewPersonnel wires the write path to the pool and the shared cache.
func NewPersonnel(pool *pgxpool.Pool, inv cache.Invalidator) *Personnel {
	return &Personnel{pool: pool, inv: inv}
}

// HireRecord is the minimal intake form for a new hire.
type HireRecord struct {
	DiscordID int64
	FirstName string
	LastName  string
	Static    string
}

// Hire creates (or refreshes) the personnel record for a new intake.
func (m *Personnel) Hire(ctx context.Context, rec HireRecord) error {
	if rec.DiscordID == 0 {
		return fmt.Errorf("hire: missing discord id")
	}
	_, err := m.pool.Exec(ctx, `
		INSERT INTO personnel (discord_id, first_name, last_name, static)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (discord_id) DO UPDATE
		SET first_name = EXCLUDED.first_name,
		    last_name  = EXCLUDED.last_name,
		    static     = EXCLUDED.static`,
		rec.DiscordID, strings.TrimSpace(rec.FirstName), strings.TrimSpace(rec.LastName), rec.Static)
	if err != nil {
		return fmt.Errorf("hire %d: %w", rec.DiscordID, err)
	}
	m.inv.Invalidate(rec.DiscordID)
	log.Infow("personnel hired", "user", rec.DiscordID)
	return nil
}

// Dismiss removes the user's active assignment and records the action in
// the history table. The personnel row itself is kept for the archive.
func (m *Personnel) Dismiss(ctx context.Context, id int64, reason string) error {
	err := m.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM employees
			WHERE personnel_id = (SELECT id FROM personnel WHERE discord_id = $1)`, id); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO history (personnel_id, action, details, action_date)
			SELECT id, 'dismissal', $2, NOW() FROM personnel WHERE discord_id = $1`, id, reason)
		return err
	})
	if err != nil {
		return fmt.Errorf("dismiss %d: %w", id, err)
	}
	m.inv.Invalidate(id)
	log.Infow("personnel dismissed", "user", id, "reason", reason)
	return nil
}

// SetRank reassigns the user's rank by name.
func (m *Personnel) SetRank(ctx context.Context, id int64, rank string) error {
	tag, err := m.pool.Exec(ctx, `
		UPDATE employees
		SET rank_id = (SELECT id FROM ranks WHERE name = $2)
		WHERE personnel_id = (SELECT id FROM personnel WHERE discord_id = $1)`, id, rank)
	if err != nil {
		return fmt.Errorf("set rank for %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set rank for %d: no active assignment", id)
	}
	m.inv.Invalidate(id)
	log.Infow("rank changed", "user", id, "rank", rank)
	return nil
}

// SetDepartment transfers the user to another subdivision by name.
func (m *Personnel) SetDepartment(ctx context.Context, id int64, department string) error {
	tag, err := m.pool.Exec(ctx, `
		UPDATE employees
		SET subdivision_id = (SELECT id FROM subdivisions WHERE name = $2)
		WHERE personnel_id = (SELECT id FROM personnel WHERE discord_id = $1)`, id, department)
	if err != nil {
		return fmt.Errorf("set department for %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set department for %d: no active assignment", id)
	}
	m.inv.Invalidate(id)
	log.Infow("department changed", "user", id, "department", department)
	return nil
}

// SetPosition assigns the named position within the user's current
// subdivision (positions are scoped to subdivisions via the junction
// table).
func (m *Personnel) SetPosition(ctx context.Context, id int64, position string) error {
	tag, err := m.pool.Exec(ctx, `
		UPDATE employees e
		SET position_subdivision_id = (
			SELECT ps.id
			FROM position_subdivision ps
			JOIN positions pos ON ps.position_id = pos.id
			WHERE pos.name = $2 AND ps.subdivision_id = e.subdivision_id
		)
		WHERE e.personnel_id = (SELECT id FROM personnel WHERE discord_id = $1)`, id, position)
	if err != nil {
		return fmt.Errorf("set position for %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set position for %d: no active assignment", id)
	}
	m.inv.Invalidate(id)
	log.Infow("position changed", "user", id, "position", position)
	return nil
}

// Blacklist adds the user to the blacklist.
func (m *Personnel) Blacklist(ctx context.Context, id int64, reason string) error {
	_, err := m.pool.Exec(ctx, `
		INSERT INTO blacklist (personnel_id, reason, added_at)
		SELECT id, $2, NOW() FROM personnel WHERE discord_id = $1`, id, reason)
	if err != nil {
		return fmt.Errorf("blacklist %d: %w", id, err)
	}
	m.inv.Invalidate(id)
	log.Infow("blacklisted", "user", id, "reason", reason)
	return nil
}

// Unblacklist removes the user from the blacklist. Idempotent.
func (m *Personnel) Unblacklist(ctx context.Context, id int64) error {
	_, err := m.pool.Exec(ctx, `
		DELETE FROM blacklist
		WHERE personnel_id = (SELECT id FROM personnel WHERE discord_id = $1)`, id)
	if err != nil {
		return fmt.Errorf("unblacklist %d: %w", id, err)
	}
	m.inv.Invalidate(id)
	log.Infow("unblacklisted", "user", id)
	return nil
}

// withTx runs fn inside a transaction, rolling back on error.
func (m *Personnel) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
