package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"albumrender/internal/http/handlers"
	"albumrender/internal/metrics"
	"albumrender/internal/middleware"
)

// Options configures the router's cross-cutting middleware.
type Options struct {
	Logger             zerolog.Logger
	CORSAllowedOrigins []string
	RateLimitPerMin    int
	// StaticDir, when set, is served under /static so filesystem artifact
	// URLs resolve.
	StaticDir string
}

func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSAllowedOrigins),
	)

	r.Get("/health", app.Health)
	r.Get("/openapi.json", app.OpenAPIJSON)
	r.Get("/docs", app.OpenAPIDocs)
	r.Method(stdhttp.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if opts.RateLimitPerMin > 0 {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		}
		r.Post("/render", app.Render)
	})
	r.Get("/jobs/{id}", app.GetJob)

	if opts.StaticDir != "" {
		fs := stdhttp.StripPrefix("/static/", stdhttp.FileServer(stdhttp.Dir(opts.StaticDir)))
		r.Method(stdhttp.MethodGet, "/static/*", fs)
	}

	return r
}
