package render

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"albumrender/internal/domain"
)

func newTestTracker(repo domain.JobRepository) *Tracker {
	tr := NewTracker(repo, zerolog.Nop())
	tr.now = func() time.Time { return time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC) }
	tr.newID = func() string { return "job-1" }
	return tr
}

func testPeriod(t *testing.T) domain.Period {
	t.Helper()
	p, err := domain.ParsePeriod("2024-06-01", "2024-06-30")
	require.NoError(t, err)
	return p
}

func TestTrackerStartPersistsRunningJob(t *testing.T) {
	repo := newMemJobs()
	tr := newTestTracker(repo)

	job, err := tr.Start(context.Background(), testFamily, testPeriod(t), nil)
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, domain.JobStatusRunning, job.Status)
	assert.Nil(t, job.FinishedAt)

	stored, err := repo.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, *job, *stored)
}

func TestTrackerFinalizesOnlyOnce(t *testing.T) {
	repo := newMemJobs()
	tr := newTestTracker(repo)
	job, err := tr.Start(context.Background(), testFamily, testPeriod(t), nil)
	require.NoError(t, err)

	require.NoError(t, tr.Succeed(context.Background(), job, "https://cdn/a.pdf", 3))
	assert.Equal(t, domain.JobStatusSucceeded, job.Status)

	err = tr.Fail(context.Background(), job, errors.New("late failure"))
	assert.ErrorIs(t, err, domain.ErrJobFinalized)
	err = tr.Succeed(context.Background(), job, "https://cdn/b.pdf", 4)
	assert.ErrorIs(t, err, domain.ErrJobFinalized)

	stored, _ := repo.GetByID(context.Background(), "job-1")
	assert.Equal(t, domain.JobStatusSucceeded, stored.Status)
	assert.Equal(t, "https://cdn/a.pdf", *stored.PDFURL)
	assert.Nil(t, stored.Error)
}

func TestTrackerLeavesJobUntouchedWhenWriteFails(t *testing.T) {
	repo := newMemJobs()
	tr := newTestTracker(repo)
	job, err := tr.Start(context.Background(), testFamily, testPeriod(t), nil)
	require.NoError(t, err)

	repo.finalizeErr = errBoom
	err = tr.Succeed(context.Background(), job, "https://cdn/a.pdf", 1)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, domain.JobStatusRunning, job.Status)
	assert.Nil(t, job.PDFURL)

	repo.finalizeErr = nil
	require.NoError(t, tr.Fail(context.Background(), job, errBoom))
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, "boom", *job.Error)
}

func TestTrackerRejectsInvalidSuccess(t *testing.T) {
	tr := newTestTracker(newMemJobs())
	job, err := tr.Start(context.Background(), testFamily, testPeriod(t), nil)
	require.NoError(t, err)

	assert.ErrorIs(t, tr.Succeed(context.Background(), job, "", 2), domain.ErrInvalidTransition)
	assert.ErrorIs(t, tr.Succeed(context.Background(), job, "https://cdn/a.pdf", 0), domain.ErrInvalidTransition)
	assert.Equal(t, domain.JobStatusRunning, job.Status)
}

func TestTrackerFinalizeSurvivesCancelledContext(t *testing.T) {
	repo := newMemJobs()
	tr := newTestTracker(repo)
	job, err := tr.Start(context.Background(), testFamily, testPeriod(t), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, tr.Fail(ctx, job, errBoom))

	stored, _ := repo.GetByID(context.Background(), job.ID)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
}
