package render

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"albumrender/internal/domain"
)

const finalizeTimeout = 10 * time.Second

// Tracker owns every RenderJob transition: one insert when a render is
// accepted and one conditional update when it ends.
type Tracker struct {
	repo   domain.JobRepository
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
}

// NewTracker returns a tracker persisting through repo.
func NewTracker(repo domain.JobRepository, logger zerolog.Logger) *Tracker {
	return &Tracker{repo: repo, logger: logger, now: time.Now, newID: uuid.NewString}
}

// Start creates and persists a running job.
func (t *Tracker) Start(ctx context.Context, familyID string, period domain.Period, requestedBy *string) (*domain.RenderJob, error) {
	job := domain.NewRenderJob(t.newID(), familyID, period, requestedBy, t.now())
	if err := t.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create render job: %w", err)
	}
	t.logger.Info().Str("job_id", job.ID).Str("family_id", familyID).Str("period", period.String()).Msg("render: job started")
	return job, nil
}

// Succeed finalizes job as succeeded.
func (t *Tracker) Succeed(ctx context.Context, job *domain.RenderJob, pdfURL string, pageCount int) error {
	return t.finalize(ctx, job, func(next *domain.RenderJob, at time.Time) error {
		return next.Succeed(pdfURL, pageCount, at)
	})
}

// Fail finalizes job as failed with the cause's message.
func (t *Tracker) Fail(ctx context.Context, job *domain.RenderJob, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return t.finalize(ctx, job, func(next *domain.RenderJob, at time.Time) error {
		return next.Fail(msg, at)
	})
}

// Reload reads the stored state of job. Used when a finalize reply was lost
// and the row may hold a different outcome than the caller assumes.
func (t *Tracker) Reload(ctx context.Context, jobID string) (*domain.RenderJob, error) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	job, err := t.repo.GetByID(rctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("reload render job %s: %w", jobID, err)
	}
	return job, nil
}

// finalize applies a transition to a copy and only publishes it to job once
// storage accepted it. The write runs detached from ctx cancellation so a
// dropped client cannot leave the row running.
func (t *Tracker) finalize(ctx context.Context, job *domain.RenderJob, transition func(*domain.RenderJob, time.Time) error) error {
	next := *job
	if err := transition(&next, t.now()); err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	if err := t.repo.Finalize(wctx, &next); err != nil {
		return fmt.Errorf("finalize render job %s: %w", job.ID, err)
	}
	*job = next
	t.logger.Info().Str("job_id", job.ID).Str("status", string(job.Status)).Msg("render: job finalized")
	return nil
}
