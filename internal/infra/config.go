package infra

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageDriverFilesystem = "filesystem"
	StorageDriverObject     = "object"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	CORSAllowedOrigins []string

	AlbumTimezone *time.Location

	StorageDriver       string
	StoragePath         string
	StorageBaseURL      string
	ObjectStorageURL    string
	ObjectStorageKey    string
	ObjectStorageBucket string
	ImageBucket         string

	ImageFetchTimeout     time.Duration
	ImageFetchConcurrency int
	ImageMaxDimension     int
	ImageMaxBytes         int64

	RedisURL      string
	ImageCacheTTL time.Duration

	PageWidth  float64
	PageHeight float64
	PageMargin float64
	PageBleed  float64
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               port,
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),

		StorageDriver:       strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverFilesystem)),
		StoragePath:         getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:      strings.TrimRight(getEnv("STORAGE_BASE_URL", "http://localhost:"+port+"/static"), "/"),
		ObjectStorageURL:    strings.TrimRight(os.Getenv("OBJECT_STORAGE_URL"), "/"),
		ObjectStorageKey:    os.Getenv("OBJECT_STORAGE_KEY"),
		ObjectStorageBucket: getEnv("OBJECT_STORAGE_BUCKET", "albums"),
		ImageBucket:         getEnv("IMAGE_BUCKET", "post-images"),

		ImageFetchTimeout:     time.Second * time.Duration(getEnvInt("IMAGE_FETCH_TIMEOUT_SECONDS", 15)),
		ImageFetchConcurrency: getEnvInt("IMAGE_FETCH_CONCURRENCY", 4),
		ImageMaxDimension:     getEnvInt("IMAGE_MAX_DIMENSION", 2000),
		ImageMaxBytes:         int64(getEnvInt("IMAGE_MAX_BYTES", 20<<20)),

		RedisURL:      os.Getenv("REDIS_URL"),
		ImageCacheTTL: time.Minute * time.Duration(getEnvInt("IMAGE_CACHE_TTL_MINUTES", 60)),

		PageWidth:  getEnvFloat("PAGE_WIDTH_PT", 612),
		PageHeight: getEnvFloat("PAGE_HEIGHT_PT", 792),
		PageMargin: getEnvFloat("PAGE_MARGIN_PT", 36),
		PageBleed:  getEnvFloat("PAGE_BLEED_PT", 9),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	loc, err := time.LoadLocation(getEnv("ALBUM_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("ALBUM_TIMEZONE: %w", err)
	}
	cfg.AlbumTimezone = loc

	switch cfg.StorageDriver {
	case StorageDriverFilesystem:
	case StorageDriverObject:
		if cfg.ObjectStorageURL == "" {
			return nil, fmt.Errorf("OBJECT_STORAGE_URL is required for the object storage driver")
		}
		if _, err := url.Parse(cfg.ObjectStorageURL); err != nil {
			return nil, fmt.Errorf("OBJECT_STORAGE_URL: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	if cfg.PageWidth <= 0 || cfg.PageHeight <= 0 {
		return nil, fmt.Errorf("page size must be positive")
	}
	if cfg.PageMargin < 0 || cfg.PageBleed < 0 {
		return nil, fmt.Errorf("page margin and bleed must not be negative")
	}
	if 2*cfg.PageMargin >= cfg.PageWidth || 2*cfg.PageMargin >= cfg.PageHeight {
		return nil, fmt.Errorf("page margins leave no content area")
	}
	if cfg.ImageFetchConcurrency <= 0 {
		cfg.ImageFetchConcurrency = 1
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
