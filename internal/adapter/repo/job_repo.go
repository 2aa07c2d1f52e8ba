package repo

import (
	"context"
	"fmt"
	"time"

	"albumrender/internal/domain"
	"albumrender/internal/infra"
	"albumrender/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a new render job repository backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// Create inserts a running job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.RenderJob) error {
	if job.Status != domain.JobStatusRunning {
		return fmt.Errorf("%w: new jobs must be running", domain.ErrInvalidTransition)
	}
	requestedBy := ""
	if job.RequestedBy != nil {
		requestedBy = *job.RequestedBy
	}
	_, err := r.sql.Exec(ctx, sqlinline.QInsertRenderJob,
		job.ID,
		job.FamilyID,
		job.Period.Start,
		job.Period.End,
		requestedBy,
		job.RequestedAt,
	)
	if err != nil {
		return fmt.Errorf("insert render job: %w", err)
	}
	return nil
}

// Finalize persists the terminal state of job. It fails with
// domain.ErrJobFinalized when the stored row is no longer running.
func (r *JobRepositoryPG) Finalize(ctx context.Context, job *domain.RenderJob) error {
	if !job.Status.Terminal() {
		return fmt.Errorf("%w: finalize needs a terminal status, got %s", domain.ErrInvalidTransition, job.Status)
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QFinalizeRenderJob,
		job.ID,
		string(job.Status),
		job.PDFURL,
		job.PageCount,
		job.Error,
		job.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("finalize render job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: job %s is not running in storage", domain.ErrJobFinalized, job.ID)
	}
	return nil
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.RenderJob, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectRenderJob, jobID)
	var (
		job    domain.RenderJob
		status string
	)
	if err := row.Scan(
		&job.ID,
		&job.FamilyID,
		&job.Period.Start,
		&job.Period.End,
		&status,
		&job.PDFURL,
		&job.PageCount,
		&job.Error,
		&job.RequestedBy,
		&job.RequestedAt,
		&job.FinishedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load render job: %w", err)
	}
	job.Status = domain.JobStatus(status)
	job.Period.Start = civilDate(job.Period.Start)
	job.Period.End = civilDate(job.Period.End)
	if err := job.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("render job %s: %w", job.ID, err)
	}
	return &job, nil
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
