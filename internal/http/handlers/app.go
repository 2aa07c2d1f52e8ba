package handlers

import (
	"context"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"albumrender/internal/domain"
	"albumrender/internal/render"
)

// Renderer runs album renders.
type Renderer interface {
	Render(ctx context.Context, req render.Request) (*render.Result, error)
}

// JobReader loads render jobs by id.
type JobReader interface {
	GetByID(ctx context.Context, jobID string) (*domain.RenderJob, error)
}

type App struct {
	Renderer Renderer
	Jobs     JobReader
	Logger   zerolog.Logger
	Now      func() time.Time
}

func NewApp(renderer Renderer, jobs JobReader, logger zerolog.Logger) *App {
	return &App{Renderer: renderer, Jobs: jobs, Logger: logger, Now: time.Now}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (a *App) error(w http.ResponseWriter, code int, msg string) {
	a.json(w, code, errorResponse{OK: false, Error: msg})
}
