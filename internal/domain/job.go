package domain

import (
	"fmt"
	"strings"
	"time"
)

// JobStatus enumerates render job lifecycle states.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// Valid reports whether s is one of the known states.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusRunning, JobStatusSucceeded, JobStatusFailed:
		return true
	}
	return false
}

const defaultFailureMessage = "render failed"

// RenderJob is one tracked attempt to produce an album for a family and
// period. It is created running and finalized exactly once through Succeed or
// Fail; every other field is read-only after construction.
type RenderJob struct {
	ID          string
	FamilyID    string
	Period      Period
	Status      JobStatus
	PDFURL      *string
	PageCount   *int
	Error       *string
	RequestedBy *string
	RequestedAt time.Time
	FinishedAt  *time.Time
}

// NewRenderJob returns a running job requested at now.
func NewRenderJob(id, familyID string, period Period, requestedBy *string, now time.Time) *RenderJob {
	var by *string
	if requestedBy != nil {
		if v := strings.TrimSpace(*requestedBy); v != "" {
			by = &v
		}
	}
	return &RenderJob{
		ID:          id,
		FamilyID:    familyID,
		Period:      period,
		Status:      JobStatusRunning,
		RequestedBy: by,
		RequestedAt: now.UTC(),
	}
}

// Succeed moves a running job to succeeded with its artifact locator.
func (j *RenderJob) Succeed(pdfURL string, pageCount int, at time.Time) error {
	if j.Status.Terminal() {
		return fmt.Errorf("%w: job %s is %s", ErrJobFinalized, j.ID, j.Status)
	}
	pdfURL = strings.TrimSpace(pdfURL)
	if pdfURL == "" || pageCount < 1 {
		return fmt.Errorf("%w: success needs a pdf url and at least one page", ErrInvalidTransition)
	}
	finished := at.UTC()
	j.Status = JobStatusSucceeded
	j.PDFURL = &pdfURL
	j.PageCount = &pageCount
	j.FinishedAt = &finished
	return nil
}

// Fail moves a running job to failed, recording msg verbatim.
func (j *RenderJob) Fail(msg string, at time.Time) error {
	if j.Status.Terminal() {
		return fmt.Errorf("%w: job %s is %s", ErrJobFinalized, j.ID, j.Status)
	}
	if strings.TrimSpace(msg) == "" {
		msg = defaultFailureMessage
	}
	finished := at.UTC()
	j.Status = JobStatusFailed
	j.Error = &msg
	j.FinishedAt = &finished
	return nil
}

// CheckInvariants verifies the terminal-state field rules. It is applied to
// rows loaded from storage so a hand-edited record is reported rather than
// served.
func (j *RenderJob) CheckInvariants() error {
	if !j.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, j.Status)
	}
	if (j.FinishedAt == nil) != (j.Status == JobStatusRunning) {
		return fmt.Errorf("%w: finished_at must be set iff status is terminal", ErrInvalidTransition)
	}
	hasArtifact := j.PDFURL != nil && j.PageCount != nil
	switch j.Status {
	case JobStatusSucceeded:
		if !hasArtifact {
			return fmt.Errorf("%w: succeeded job without artifact", ErrInvalidTransition)
		}
	case JobStatusFailed, JobStatusRunning:
		if j.PDFURL != nil || j.PageCount != nil {
			return fmt.Errorf("%w: %s job with artifact", ErrInvalidTransition, j.Status)
		}
	}
	return nil
}
