package domain

import (
	"context"
	"time"
)

// JobRepository persists render jobs. Create inserts a running job; Finalize
// writes the terminal fields of a job that is still running in storage.
type JobRepository interface {
	Create(ctx context.Context, job *RenderJob) error
	Finalize(ctx context.Context, job *RenderJob) error
	GetByID(ctx context.Context, jobID string) (*RenderJob, error)
}

// PostRepository reads the posts of a family created in [from, to), newest
// first, with authors and image references resolved.
type PostRepository interface {
	FetchPosts(ctx context.Context, familyID string, from, to time.Time) ([]Post, error)
}
