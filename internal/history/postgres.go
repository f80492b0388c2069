package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobmate/apply-service/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS apply_history (
	id         UUID PRIMARY KEY,
	title      TEXT NOT NULL,
	company    TEXT NOT NULL DEFAULT '',
	location   TEXT NOT NULL DEFAULT '',
	url        TEXT NOT NULL DEFAULT '',
	platform   TEXT NOT NULL,
	job_id     TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS apply_history_applied_at_idx ON apply_history (applied_at DESC);`

// Postgres is a Repository over the apply_history table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a repository using pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres { return &Postgres{pool: pool} }

// EnsureSchema creates the history table when it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure apply_history schema: %w", err)
	}
	return nil
}

// Add inserts rec and trims the table to the newest MaxRecords rows in the
// same transaction.
func (p *Postgres) Add(ctx context.Context, rec model.ApplicationRecord) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("history add begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO apply_history (id, title, company, location, url, platform, job_id, status, error, applied_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Title, rec.Company, rec.Location, rec.URL,
		string(rec.Platform), rec.JobID, string(rec.Status), rec.Error, rec.AppliedAt,
	)
	if err != nil {
		return fmt.Errorf("history add insert: %w", err)
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM apply_history
		 WHERE id IN (
		   SELECT id FROM apply_history ORDER BY applied_at DESC OFFSET $1
		 )`,
		MaxRecords,
	)
	if err != nil {
		return fmt.Errorf("history add trim: %w", err)
	}
	return tx.Commit(ctx)
}

// List returns records newest first.
func (p *Postgres) List(ctx context.Context, q Query) ([]model.ApplicationRecord, error) {
	const base = `
		SELECT id::text, title, company, location, url, platform, job_id, status, error, applied_at
		FROM apply_history`

	var (
		rows pgx.Rows
		err  error
	)
	if q.Platform != "" {
		rows, err = p.pool.Query(ctx, base+` WHERE platform = $1 ORDER BY applied_at DESC LIMIT $2`, string(q.Platform), q.limit())
	} else {
		rows, err = p.pool.Query(ctx, base+` ORDER BY applied_at DESC LIMIT $1`, q.limit())
	}
	if err != nil {
		return nil, fmt.Errorf("history list query: %w", err)
	}
	defer rows.Close()

	out := make([]model.ApplicationRecord, 0)
	for rows.Next() {
		var (
			r                model.ApplicationRecord
			platform, status string
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.Company, &r.Location, &r.URL,
			&platform, &r.JobID, &status, &r.Error, &r.AppliedAt); err != nil {
			return nil, fmt.Errorf("history list scan: %w", err)
		}
		r.Platform = model.Platform(platform)
		r.Status = model.Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}
