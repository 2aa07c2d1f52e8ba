// Package render orchestrates album renders: it validates a request, tracks
// the job, and drives fetch, resolve, layout, assembly and storage in order.
package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"albumrender/internal/assembler"
	"albumrender/internal/domain"
	"albumrender/internal/layout"
	"albumrender/internal/metrics"
	"albumrender/internal/resolver"
	"albumrender/internal/storage"
	"albumrender/internal/validation"
)

// Request is a render trigger as received on the wire.
type Request struct {
	FamilyID    string  `json:"family_id" validate:"required,uuid"`
	Start       string  `json:"start" validate:"required,datetime=2006-01-02"`
	End         string  `json:"end" validate:"required,datetime=2006-01-02"`
	RequestedBy *string `json:"requested_by,omitempty" validate:"omitempty,max=200"`
}

// Result is the definitive outcome of an accepted render.
type Result struct {
	OK        bool   `json:"ok"`
	JobID     string `json:"job_id"`
	PDFURL    string `json:"pdf_url,omitempty"`
	PageCount int    `json:"page_count,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ImageResolver resolves image references, returning one result per ref in
// input order.
type ImageResolver interface {
	ResolveAll(ctx context.Context, refs []domain.ImageRef) []resolver.Result
}

// Layouter paginates posts.
type Layouter interface {
	Layout(inputs []layout.Input) []layout.Page
}

// Assembler renders pages into a document.
type Assembler interface {
	Assemble(pages []layout.Page, meta assembler.Metadata) (*assembler.Document, error)
}

// Dependencies groups the collaborators of a Service.
type Dependencies struct {
	Posts     domain.PostRepository
	Jobs      domain.JobRepository
	Resolver  ImageResolver
	Layout    Layouter
	Assembler Assembler
	Store     storage.ArtifactStore
	Location  *time.Location
	Logger    zerolog.Logger
}

// Service is the render entry point. It is safe for concurrent use; it does
// not deduplicate concurrent renders of the same family and period.
type Service struct {
	posts     domain.PostRepository
	tracker   *Tracker
	resolver  ImageResolver
	layout    Layouter
	assembler Assembler
	store     storage.ArtifactStore
	loc       *time.Location
	logger    zerolog.Logger
}

// NewService wires a Service.
func NewService(deps Dependencies) *Service {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		posts:     deps.Posts,
		tracker:   NewTracker(deps.Jobs, deps.Logger),
		resolver:  deps.Resolver,
		layout:    deps.Layout,
		assembler: deps.Assembler,
		store:     deps.Store,
		loc:       loc,
		logger:    deps.Logger,
	}
}

// Render runs one album render synchronously. A returned error means the
// request was rejected before a job existed (validation wraps
// domain.ErrInvalidRequest) or the job row could not be created; every
// accepted render reports its outcome through Result.
func (s *Service) Render(ctx context.Context, req Request) (*Result, error) {
	if err := validation.Struct(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	period, err := domain.ParsePeriod(req.Start, req.End)
	if err != nil {
		return nil, err
	}

	job, err := s.tracker.Start(ctx, req.FamilyID, period, req.RequestedBy)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With().Str("job_id", job.ID).Str("family_id", job.FamilyID).Logger()
	started := time.Now()

	doc, url, err := s.run(ctx, logger, job)
	if err == nil {
		err = s.tracker.Succeed(ctx, job, url, doc.PageCount)
	}
	if err != nil {
		if ferr := s.tracker.Fail(ctx, job, err); ferr != nil {
			if errors.Is(ferr, domain.ErrJobFinalized) {
				if res, ok := s.storedOutcome(ctx, logger, job.ID, started); ok {
					return res, nil
				}
			}
			logger.Error().Err(ferr).Msg("render: could not record failure")
		}
		logger.Warn().Err(err).Dur("elapsed", time.Since(started)).Msg("render: failed")
		metrics.RecordRender(string(domain.JobStatusFailed), time.Since(started), 0)
		return &Result{OK: false, JobID: job.ID, Error: err.Error()}, nil
	}

	logger.Info().Int("pages", doc.PageCount).Int("bytes", doc.Size()).Str("pdf_url", url).
		Dur("elapsed", time.Since(started)).Msg("render: succeeded")
	metrics.RecordRender(string(domain.JobStatusSucceeded), time.Since(started), doc.PageCount)
	return &Result{OK: true, JobID: job.ID, PDFURL: url, PageCount: doc.PageCount}, nil
}

// storedOutcome reports the outcome already persisted for jobID. It covers a
// finalize whose write committed but whose reply was lost.
func (s *Service) storedOutcome(ctx context.Context, logger zerolog.Logger, jobID string, started time.Time) (*Result, bool) {
	stored, err := s.tracker.Reload(ctx, jobID)
	if err != nil {
		logger.Error().Err(err).Msg("render: could not reload finalized job")
		return nil, false
	}
	switch stored.Status {
	case domain.JobStatusSucceeded:
		if stored.PDFURL == nil || stored.PageCount == nil {
			return nil, false
		}
		logger.Warn().Msg("render: finalize reply lost, job already succeeded")
		metrics.RecordRender(string(domain.JobStatusSucceeded), time.Since(started), *stored.PageCount)
		return &Result{OK: true, JobID: jobID, PDFURL: *stored.PDFURL, PageCount: *stored.PageCount}, true
	case domain.JobStatusFailed:
		msg := ""
		if stored.Error != nil {
			msg = *stored.Error
		}
		metrics.RecordRender(string(domain.JobStatusFailed), time.Since(started), 0)
		return &Result{OK: false, JobID: jobID, Error: msg}, true
	}
	return nil, false
}

func (s *Service) run(ctx context.Context, logger zerolog.Logger, job *domain.RenderJob) (*assembler.Document, string, error) {
	from, to := job.Period.Bounds(s.loc)
	posts, err := s.posts.FetchPosts(ctx, job.FamilyID, from, to)
	if err != nil {
		return nil, "", fmt.Errorf("fetch posts: %w", err)
	}
	if len(posts) == 0 {
		return nil, "", domain.ErrNoPosts
	}
	logger.Debug().Int("posts", len(posts)).Msg("render: posts fetched")

	inputs := s.resolveImages(ctx, logger, posts)

	pages := s.layout.Layout(inputs)
	if len(pages) == 0 {
		return nil, "", domain.ErrNoPosts
	}
	logger.Debug().Int("pages", len(pages)).Msg("render: layout done")

	doc, err := s.assembler.Assemble(pages, documentMetadata(job))
	if err != nil {
		return nil, "", fmt.Errorf("assemble document: %w", err)
	}

	url, err := s.store.Store(ctx, ArtifactKey(job), doc.Data)
	if err != nil {
		return nil, "", fmt.Errorf("store artifact: %w", err)
	}
	return doc, url, nil
}

// resolveImages resolves every image of the album in one bounded batch and
// hands each post its own slice of results, still in reference order.
func (s *Service) resolveImages(ctx context.Context, logger zerolog.Logger, posts []domain.Post) []layout.Input {
	var refs []domain.ImageRef
	for _, p := range posts {
		refs = append(refs, p.Images...)
	}
	results := s.resolver.ResolveAll(ctx, refs)

	inputs := make([]layout.Input, len(posts))
	failures, offset := 0, 0
	for i, p := range posts {
		n := len(p.Images)
		inputs[i] = layout.Input{Post: p, Images: results[offset : offset+n]}
		for _, r := range inputs[i].Images {
			if r.Failure != nil {
				failures++
			}
		}
		offset += n
	}
	logger.Debug().Int("images", len(refs)).Int("failed", failures).Msg("render: images resolved")
	return inputs
}

// ArtifactKey namespaces a job's document by family and period. The job id
// keeps concurrent renders of the same period apart.
func ArtifactKey(job *domain.RenderJob) string {
	return fmt.Sprintf("albums/%s/%s/%s.pdf", job.FamilyID, job.Period.String(), job.ID)
}

func documentMetadata(job *domain.RenderJob) assembler.Metadata {
	return assembler.Metadata{
		Title:     fmt.Sprintf("Family album %s – %s", job.Period.Start.Format(domain.DateLayout), job.Period.End.Format(domain.DateLayout)),
		Author:    "albumrender",
		Subject:   "family " + job.FamilyID,
		CreatedAt: job.Period.End,
	}
}

// IsRejected reports whether err means the request never became a job
// because it was invalid.
func IsRejected(err error) bool {
	return errors.Is(err, domain.ErrInvalidRequest)
}
