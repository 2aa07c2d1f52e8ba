package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"albumrender/internal/domain"
)

var errEmptyJobID = errors.New("job id is required")

type jobResponse struct {
	ID          string     `json:"id"`
	FamilyID    string     `json:"family_id"`
	PeriodStart string     `json:"period_start"`
	PeriodEnd   string     `json:"period_end"`
	Status      string     `json:"status"`
	PDFURL      *string    `json:"pdf_url"`
	PageCount   *int       `json:"page_count"`
	Error       *string    `json:"error"`
	RequestedBy *string    `json:"requested_by"`
	RequestedAt time.Time  `json:"requested_at"`
	FinishedAt  *time.Time `json:"finished_at"`
}

func newJobResponse(job *domain.RenderJob) jobResponse {
	return jobResponse{
		ID:          job.ID,
		FamilyID:    job.FamilyID,
		PeriodStart: job.Period.Start.Format(domain.DateLayout),
		PeriodEnd:   job.Period.End.Format(domain.DateLayout),
		Status:      string(job.Status),
		PDFURL:      job.PDFURL,
		PageCount:   job.PageCount,
		Error:       job.Error,
		RequestedBy: job.RequestedBy,
		RequestedAt: job.RequestedAt,
		FinishedAt:  job.FinishedAt,
	}
}

// GetJob handles GET /jobs/{id}.
func (a *App) GetJob(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		a.error(w, http.StatusBadRequest, errEmptyJobID.Error())
		return
	}
	if _, err := uuid.Parse(id); err != nil {
		a.error(w, http.StatusNotFound, "job not found")
		return
	}
	job, err := a.Jobs.GetByID(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "job not found")
		return
	case err != nil:
		a.Logger.Error().Err(err).Str("job_id", id).Msg("jobs: lookup failed")
		a.error(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	a.json(w, http.StatusOK, newJobResponse(job))
}
