package repo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"albumrender/internal/domain"
)

func newJob() *domain.RenderJob {
	period, _ := domain.ParsePeriod("2024-03-01", "2024-03-31")
	by := "user-7"
	return domain.NewRenderJob("7d4c8f1e-2d7a-4a53-9d6e-6c1f4f1d2a10", "0b5c1e7e-11aa-4e8b-9a55-3c3f4a5b6c7d", period, &by, time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC))
}

func TestJobRepositoryCreate(t *testing.T) {
	exec := &stubExecutor{}
	repo := NewJobRepository(exec)
	job := newJob()
	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(exec.execs) != 1 {
		t.Fatalf("expected one exec, got %d", len(exec.execs))
	}
	call := exec.execs[0]
	if !strings.Contains(call.query, "insert into render_jobs") {
		t.Fatalf("unexpected query: %s", call.query)
	}
	if call.args[0] != job.ID || call.args[1] != job.FamilyID || call.args[4] != "user-7" {
		t.Fatalf("unexpected args: %#v", call.args)
	}
}

func TestJobRepositoryCreateRejectsTerminalJob(t *testing.T) {
	exec := &stubExecutor{}
	job := newJob()
	_ = job.Fail("boom", time.Now())
	if err := NewJobRepository(exec).Create(context.Background(), job); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if len(exec.execs) != 0 {
		t.Fatalf("no statement should run for an invalid job")
	}
}

func TestJobRepositoryFinalize(t *testing.T) {
	exec := &stubExecutor{execTag: pgconn.NewCommandTag("UPDATE 1")}
	job := newJob()
	if err := job.Succeed("https://cdn.example.com/a.pdf", 4, time.Now()); err != nil {
		t.Fatalf("Succeed: %v", err)
	}
	if err := NewJobRepository(exec).Finalize(context.Background(), job); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	call := exec.execs[0]
	if !strings.Contains(call.query, "status = 'running'") {
		t.Fatalf("finalize must be conditional on running status: %s", call.query)
	}
	if call.args[1] != "succeeded" {
		t.Fatalf("status arg = %v", call.args[1])
	}
}

func TestJobRepositoryFinalizeDetectsFinalizedRow(t *testing.T) {
	exec := &stubExecutor{execTag: pgconn.NewCommandTag("UPDATE 0")}
	job := newJob()
	_ = job.Fail("boom", time.Now())
	err := NewJobRepository(exec).Finalize(context.Background(), job)
	if !errors.Is(err, domain.ErrJobFinalized) {
		t.Fatalf("err = %v, want ErrJobFinalized", err)
	}
}

func TestJobRepositoryFinalizeRejectsRunningJob(t *testing.T) {
	exec := &stubExecutor{}
	err := NewJobRepository(exec).Finalize(context.Background(), newJob())
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestJobRepositoryGetByID(t *testing.T) {
	requested := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
	finished := requested.Add(time.Minute)
	pages := 6
	exec := &stubExecutor{row: []any{
		"job-1",
		"fam-1",
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		"succeeded",
		strPtr("https://cdn.example.com/a.pdf"),
		&pages,
		nil,
		nil,
		requested,
		&finished,
	}}
	job, err := NewJobRepository(exec).GetByID(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != domain.JobStatusSucceeded || *job.PageCount != 6 || job.RequestedBy != nil {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestJobRepositoryGetByIDNotFound(t *testing.T) {
	exec := &stubExecutor{rowErr: pgx.ErrNoRows}
	if _, err := NewJobRepository(exec).GetByID(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestJobRepositoryGetByIDRejectsCorruptRow(t *testing.T) {
	exec := &stubExecutor{row: []any{
		"job-1", "fam-1",
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		"succeeded", nil, nil, nil, nil,
		time.Now(), nil,
	}}
	if _, err := NewJobRepository(exec).GetByID(context.Background(), "job-1"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}
