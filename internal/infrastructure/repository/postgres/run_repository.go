package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kirillkom/site-mapper/internal/core/domain"
)

const (
	schemaLockID        = int64(2026101501)
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// RunRepository is the run ledger: one row per site per mapping run.
type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS site_runs (
	run_id TEXT NOT NULL,
	slug TEXT NOT NULL,
	status TEXT NOT NULL,
	dry_run BOOLEAN NOT NULL DEFAULT FALSE,
	files_total INTEGER NOT NULL DEFAULT 0,
	files_unclassified INTEGER NOT NULL DEFAULT 0,
	lots_total INTEGER NOT NULL DEFAULT 0,
	lots_emitted INTEGER NOT NULL DEFAULT 0,
	lots_complete INTEGER NOT NULL DEFAULT 0,
	avg_completeness DOUBLE PRECISION NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, slug)
);

CREATE INDEX IF NOT EXISTS idx_site_runs_slug_started ON site_runs(slug, started_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *RunRepository) RecordSiteRun(ctx context.Context, rec domain.SiteRunRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO site_runs (
	run_id, slug, status, dry_run, files_total, files_unclassified, lots_total, lots_emitted,
	lots_complete, avg_completeness, error_message, started_at, finished_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (run_id, slug) DO UPDATE SET
	status = EXCLUDED.status,
	error_message = EXCLUDED.error_message,
	finished_at = EXCLUDED.finished_at
`,
		rec.RunID, rec.Slug, string(rec.Status), rec.DryRun, rec.FilesTotal, rec.FilesUnclassified,
		rec.LotsTotal, rec.LotsEmitted, rec.LotsComplete, rec.AvgCompleteness, rec.Error,
		rec.StartedAt, rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert site run: %w", err)
	}
	return nil
}

// ListSiteRuns returns the most recent runs of a site, newest first.
func (r *RunRepository) ListSiteRuns(ctx context.Context, slug string, limit int) ([]domain.SiteRunRecord, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list site runs", fmt.Errorf("slug is required"))
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	rows, err := r.db.QueryContext(ctx, `
SELECT run_id, slug, status, dry_run, files_total, files_unclassified, lots_total, lots_emitted,
	lots_complete, avg_completeness, error_message, started_at, finished_at
FROM site_runs
WHERE slug = $1
ORDER BY started_at DESC, run_id DESC
LIMIT $2
`, slug, limit)
	if err != nil {
		return nil, fmt.Errorf("query site runs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SiteRunRecord, 0, limit)
	for rows.Next() {
		var (
			rec    domain.SiteRunRecord
			status string
		)
		if err := rows.Scan(
			&rec.RunID, &rec.Slug, &status, &rec.DryRun, &rec.FilesTotal, &rec.FilesUnclassified,
			&rec.LotsTotal, &rec.LotsEmitted, &rec.LotsComplete, &rec.AvgCompleteness, &rec.Error,
			&rec.StartedAt, &rec.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan site run: %w", err)
		}
		rec.Status = domain.RunStatus(status)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate site runs: %w", err)
	}
	return out, nil
}
