// Package bootstrap wires configuration into a ready render service shared by
// the API server and the operator CLI.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"albumrender/internal/adapter/repo"
	"albumrender/internal/assembler"
	"albumrender/internal/domain"
	"albumrender/internal/imagecache"
	"albumrender/internal/infra"
	"albumrender/internal/layout"
	"albumrender/internal/render"
	"albumrender/internal/resolver"
	"albumrender/internal/storage"
)

// Runtime holds the long-lived collaborators of a process.
type Runtime struct {
	Service *render.Service
	Jobs    domain.JobRepository
	// StaticDir is the filesystem artifact root, empty for object storage.
	StaticDir string

	pool  *pgxpool.Pool
	cache imagecache.Cache
}

// New connects to the database and cache and assembles the render service.
func New(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*Runtime, error) {
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	runner := infra.NewSQLRunner(pool, infra.Component(logger, "sql"))

	stores, err := NewStores(cfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	cache := NewCache(ctx, cfg, logger)

	engine, err := layout.NewEngine(layout.Options{
		Geometry: Geometry(cfg),
		Measurer: assembler.NewFontMeasurer(),
		Location: cfg.AlbumTimezone,
	})
	if err != nil {
		pool.Close()
		_ = cache.Close()
		return nil, err
	}

	jobs := repo.NewJobRepository(runner)
	svc := render.NewService(render.Dependencies{
		Posts: repo.NewPostRepository(runner),
		Jobs:  jobs,
		Resolver: resolver.New(resolver.Options{
			Objects:      stores.Images,
			HTTPClient:   &http.Client{Timeout: cfg.ImageFetchTimeout},
			Cache:        cache,
			CacheTTL:     cfg.ImageCacheTTL,
			Timeout:      cfg.ImageFetchTimeout,
			Concurrency:  cfg.ImageFetchConcurrency,
			MaxDimension: cfg.ImageMaxDimension,
			MaxBytes:     cfg.ImageMaxBytes,
			Logger:       infra.Component(logger, "resolver"),
		}),
		Layout:    engine,
		Assembler: assembler.New(infra.Component(logger, "assembler")),
		Store:     stores.Artifacts,
		Location:  cfg.AlbumTimezone,
		Logger:    infra.Component(logger, "render"),
	})

	return &Runtime{Service: svc, Jobs: jobs, StaticDir: stores.StaticDir, pool: pool, cache: cache}, nil
}

// Close releases the database pool and cache connection.
func (r *Runtime) Close() {
	if r.cache != nil {
		_ = r.cache.Close()
	}
	if r.pool != nil {
		r.pool.Close()
	}
}

// Geometry converts configured page dimensions into layout geometry.
func Geometry(cfg *infra.Config) layout.Geometry {
	return layout.Geometry{
		TrimWidth:  cfg.PageWidth,
		TrimHeight: cfg.PageHeight,
		Margin:     cfg.PageMargin,
		Bleed:      cfg.PageBleed,
	}
}

// Stores is the storage backend selected by STORAGE_DRIVER.
type Stores struct {
	Artifacts storage.ArtifactStore
	Images    storage.ObjectFetcher
	StaticDir string
}

// NewStores builds the artifact store and image fetcher for the configured driver.
func NewStores(cfg *infra.Config, logger zerolog.Logger) (Stores, error) {
	switch cfg.StorageDriver {
	case infra.StorageDriverObject:
		store, err := storage.NewObjectStore(storage.ObjectOptions{
			BaseURL:     cfg.ObjectStorageURL,
			APIKey:      cfg.ObjectStorageKey,
			Bucket:      cfg.ObjectStorageBucket,
			ImageBucket: cfg.ImageBucket,
			MaxBytes:    cfg.ImageMaxBytes,
			HTTPClient:  &http.Client{Timeout: 60 * time.Second},
			Logger:      infra.Component(logger, "object_store"),
		})
		if err != nil {
			return Stores{}, err
		}
		return Stores{Artifacts: store, Images: store}, nil
	case infra.StorageDriverFilesystem, "":
		store, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
		if err != nil {
			return Stores{}, err
		}
		return Stores{Artifacts: store, Images: store, StaticDir: store.BasePath()}, nil
	default:
		return Stores{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// NewCache returns a Redis image cache when REDIS_URL is set. An unreachable
// Redis only disables caching.
func NewCache(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) imagecache.Cache {
	if cfg.RedisURL == "" {
		return imagecache.NewNullCache()
	}
	cache, err := imagecache.NewRedisCache(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("bootstrap: image cache disabled")
		return imagecache.NewNullCache()
	}
	return cache
}
