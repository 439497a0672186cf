package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"leadgen-engine/internal/domain"
)

const jobColumns = `id, run_id, source_id, query, service, country, city, status, leads_found, leads_new,
leads_duplicate, leads_enriched, error_message, started_at, completed_at`

// CreateJob records a unit as running and returns its id.
func (d *DB) CreateJob(ctx context.Context, j domain.ScrapeJob) (int64, error) {
	res, err := d.Pool.ExecContext(ctx, `
INSERT INTO scrape_jobs (run_id, source_id, query, service, country, city, status, leads_found, leads_new,
  leads_duplicate, leads_enriched, error_message, started_at, completed_at)
VALUES (?,?,?,?,?,?,?,0,0,0,0,'',?,NULL);`,
		j.RunID, j.SourceID, j.Query, j.Service, j.Country, j.City, string(domain.JobRunning), ts(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("create scrape job: %w", err)
	}
	return res.LastInsertId()
}

// FinishJob moves a running job to its terminal status. A job that already
// left running is not touched again.
func (d *DB) FinishJob(ctx context.Context, j domain.ScrapeJob) error {
	if !j.Status.Terminal() {
		return fmt.Errorf("finish job %d: %q is not terminal", j.ID, j.Status)
	}
	res, err := d.Pool.ExecContext(ctx, `
UPDATE scrape_jobs
SET status = ?, leads_found = ?, leads_new = ?, leads_duplicate = ?, leads_enriched = ?,
    error_message = ?, completed_at = ?
WHERE id = ? AND status = ?;`,
		string(j.Status), j.LeadsFound, j.LeadsNew, j.LeadsDuplicate, j.LeadsEnriched,
		j.ErrorMessage, ts(time.Now()), j.ID, string(domain.JobRunning),
	)
	if err != nil {
		return fmt.Errorf("finish scrape job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *DB) GetJob(ctx context.Context, id int64) (domain.ScrapeJob, error) {
	row := d.Pool.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM scrape_jobs WHERE id = ?;`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ScrapeJob{}, ErrNotFound
	}
	return j, err
}

// ListJobs returns the most recent jobs, optionally restricted to one run.
func (d *DB) ListJobs(ctx context.Context, runID string, limit int) ([]domain.ScrapeJob, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	q := `SELECT ` + jobColumns + ` FROM scrape_jobs`
	var args []any
	if runID != "" {
		q += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	q += ` ORDER BY id DESC LIMIT ?;`
	args = append(args, limit)

	rows, err := d.Pool.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list scrape jobs: %w", err)
	}
	defer rows.Close()

	var out []domain.ScrapeJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func scanJob(r scanner) (domain.ScrapeJob, error) {
	var j domain.ScrapeJob
	var status string
	var started string
	var completed sql.NullString
	if err := r.Scan(&j.ID, &j.RunID, &j.SourceID, &j.Query, &j.Service, &j.Country, &j.City, &status,
		&j.LeadsFound, &j.LeadsNew, &j.LeadsDuplicate, &j.LeadsEnriched, &j.ErrorMessage, &started, &completed); err != nil {
		return j, err
	}
	j.Status = domain.JobStatus(status)
	j.StartedAt = parseTS(sql.NullString{String: started, Valid: true})
	j.CompletedAt = parseTS(completed)
	return j, nil
}
