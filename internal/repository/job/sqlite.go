package job

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ahmethakanbesel/yahoo-history/internal/apperror"
	"github.com/ahmethakanbesel/yahoo-history/internal/history"
	domain "github.com/ahmethakanbesel/yahoo-history/internal/job"
)

const selectColumns = `SELECT id, technical, symbol, start_date, end_date,
	status, kind, error, records_count, created_at, updated_at
	FROM jobs`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*domain.Job, error) {
	j := &domain.Job{}
	var startStr, endStr, status, createdStr, updatedStr string
	var kind, dbErr sql.NullString

	if err := s.Scan(
		&j.ID, &j.Technical, &j.Symbol,
		&startStr, &endStr, &status, &kind, &dbErr,
		&j.RecordsCount, &createdStr, &updatedStr,
	); err != nil {
		return nil, err
	}

	j.Status = domain.Status(status)
	j.Kind = apperror.Code(kind.String)
	j.Error = dbErr.String
	j.StartDate, _ = time.Parse(history.DateFormat, startStr)
	j.EndDate, _ = time.Parse(history.DateFormat, endStr)
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedStr)
	return j, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *Repository) Create(ctx context.Context, j *domain.Job) error {
	const query = `INSERT INTO jobs (technical, symbol, start_date, end_date, status)
		VALUES (?, ?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query,
		j.Technical, j.Symbol,
		j.StartDate.Format(history.DateFormat), j.EndDate.Format(history.DateFormat),
		string(j.Status),
	)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	j.ID, _ = res.LastInsertId()
	j.CreatedAt = time.Now().UTC()
	j.UpdatedAt = j.CreatedAt
	return nil
}

func (r *Repository) Update(ctx context.Context, j *domain.Job) error {
	const query = `UPDATE jobs SET status = ?, kind = ?, error = ?, records_count = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query,
		string(j.Status), nullable(string(j.Kind)), nullable(j.Error), j.RecordsCount, j.ID)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update job %d: %w", j.ID, domain.ErrNotFound)
	}
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*domain.Job, error) {
	j, err := scanJob(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// List returns matching jobs newest first.
func (r *Repository) List(ctx context.Context, f domain.Filter) ([]domain.Job, error) {
	query := selectColumns + ` WHERE 1=1`

	var args []any
	if f.Technical != "" {
		query += " AND technical = ?"
		args = append(args, f.Technical)
	}
	if f.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, f.Symbol)
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, string(f.Status))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *j)
	}

	return jobs, rows.Err()
}

func (r *Repository) FindActive(ctx context.Context, technical, symbol string, from, to string) (*domain.Job, error) {
	const where = ` WHERE technical = ? AND symbol = ?
		  AND start_date = ? AND end_date = ?
		  AND status IN ('pending', 'running')
		LIMIT 1`

	j, err := scanJob(r.db.QueryRowContext(ctx, selectColumns+where, technical, symbol, from, to))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active job: %w", err)
	}
	return j, nil
}

// ClaimPending flips the oldest matching pending job to running in a single
// statement, so concurrent claimers never receive the same job.
func (r *Repository) ClaimPending(ctx context.Context, technical string, from, to string) (*domain.Job, error) {
	const query = `UPDATE jobs SET status = 'running', updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'pending' AND technical = ? AND start_date = ? AND end_date = ?
			ORDER BY id ASC LIMIT 1
		)
		RETURNING id`

	var id int64
	err := r.db.QueryRowContext(ctx, query, technical, from, to).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim pending: %w", err)
	}

	return r.Get(ctx, id)
}

func (r *Repository) RecoverStale(ctx context.Context) (int64, error) {
	const query = `UPDATE jobs SET status = 'pending', kind = NULL, error = NULL,
		updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE status = 'running'`

	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}

	return res.RowsAffected()
}
