package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"albumrender/internal/assembler"
	"albumrender/internal/domain"
	"albumrender/internal/layout"
	"albumrender/internal/resolver"
	"albumrender/internal/storage"
)

const testFamily = "7c9e6679-7425-40de-944b-e07fc1f90ae7"

type memJobs struct {
	mu          sync.Mutex
	jobs        map[string]domain.RenderJob
	createErr   error
	finalizeErr error
	// lostReply commits the next finalize and then reports it as failed.
	lostReply error
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: map[string]domain.RenderJob{}}
}

func (m *memJobs) Create(_ context.Context, job *domain.RenderJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *memJobs) Finalize(_ context.Context, job *domain.RenderJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finalizeErr != nil {
		return m.finalizeErr
	}
	stored, ok := m.jobs[job.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Status != domain.JobStatusRunning {
		return domain.ErrJobFinalized
	}
	m.jobs[job.ID] = *job
	if err := m.lostReply; err != nil {
		m.lostReply = nil
		return err
	}
	return nil
}

func (m *memJobs) GetByID(_ context.Context, id string) (*domain.RenderJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

func (m *memJobs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

type fakePosts struct {
	posts    []domain.Post
	err      error
	mu       sync.Mutex
	from, to time.Time
}

func (f *fakePosts) FetchPosts(_ context.Context, familyID string, from, to time.Time) ([]domain.Post, error) {
	f.mu.Lock()
	f.from, f.to = from, to
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.posts, nil
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (s *memStore) Store(_ context.Context, key string, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return "https://cdn.example.com/" + key, nil
}

func (s *memStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.objects {
		out = append(out, k)
	}
	return out
}

type imageObjects map[string][]byte

func (o imageObjects) Fetch(_ context.Context, ref string) ([]byte, error) {
	if data, ok := o[ref]; ok {
		return data, nil
	}
	return nil, storage.ErrObjectNotFound
}

// recordingLayout keeps the pages of the last layout for inspection.
type recordingLayout struct {
	engine *layout.Engine
	mu     sync.Mutex
	pages  []layout.Page
}

func (r *recordingLayout) Layout(inputs []layout.Input) []layout.Page {
	pages := r.engine.Layout(inputs)
	r.mu.Lock()
	r.pages = pages
	r.mu.Unlock()
	return pages
}

func pngFixture(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(3 * x), G: uint8(5 * y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type harness struct {
	service *Service
	jobs    *memJobs
	posts   *fakePosts
	store   *memStore
	layout  *recordingLayout
}

func newHarness(t *testing.T, posts []domain.Post, objects imageObjects) *harness {
	t.Helper()
	engine, err := layout.NewEngine(layout.Options{Geometry: layout.Letter})
	require.NoError(t, err)

	h := &harness{
		jobs:   newMemJobs(),
		posts:  &fakePosts{posts: posts},
		store:  newMemStore(),
		layout: &recordingLayout{engine: engine},
	}
	h.service = NewService(Dependencies{
		Posts:     h.posts,
		Jobs:      h.jobs,
		Resolver:  resolver.New(resolver.Options{Objects: objects, Timeout: time.Second, Logger: zerolog.Nop()}),
		Layout:    h.layout,
		Assembler: assembler.New(zerolog.Nop()),
		Store:     h.store,
		Logger:    zerolog.Nop(),
	})
	return h
}

func textPost(id, text string, at time.Time, images ...string) domain.Post {
	p := domain.Post{
		ID:        id,
		CreatedAt: at,
		Author:    domain.Author{ID: "u1", Name: "Dad"},
	}
	if text != "" {
		p.Content = &text
	}
	for i, ref := range images {
		p.Images = append(p.Images, domain.ImageRef{ID: id + "-img-" + strings.Repeat("x", i+1), URL: ref})
	}
	return p
}

func validRequest() Request {
	return Request{FamilyID: testFamily, Start: "2024-06-01", End: "2024-06-30"}
}

var errBoom = errors.New("boom")
