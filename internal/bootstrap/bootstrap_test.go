package bootstrap

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"albumrender/internal/imagecache"
	"albumrender/internal/infra"
	"albumrender/internal/storage"
)

func TestNewStoresFilesystem(t *testing.T) {
	dir := t.TempDir()
	cfg := &infra.Config{StorageDriver: infra.StorageDriverFilesystem, StoragePath: dir, StorageBaseURL: "http://localhost:8080/static"}

	stores, err := NewStores(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStores: %v", err)
	}
	if stores.StaticDir != dir {
		t.Fatalf("StaticDir = %q, want %q", stores.StaticDir, dir)
	}
	if _, ok := stores.Artifacts.(*storage.FileStore); !ok {
		t.Fatalf("artifacts = %T", stores.Artifacts)
	}
}

func TestNewStoresObject(t *testing.T) {
	cfg := &infra.Config{
		StorageDriver:       infra.StorageDriverObject,
		ObjectStorageURL:    "https://baas.example.com/storage/v1",
		ObjectStorageBucket: "albums",
		ImageBucket:         "post-images",
	}

	stores, err := NewStores(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewStores: %v", err)
	}
	if stores.StaticDir != "" {
		t.Fatalf("object driver should not serve static files, got %q", stores.StaticDir)
	}
	if _, ok := stores.Images.(*storage.ObjectStore); !ok {
		t.Fatalf("images = %T", stores.Images)
	}
}

func TestNewStoresUnknownDriver(t *testing.T) {
	if _, err := NewStores(&infra.Config{StorageDriver: "ftp"}, zerolog.Nop()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewCacheWithoutRedisURL(t *testing.T) {
	cache := NewCache(context.Background(), &infra.Config{}, zerolog.Nop())
	if _, ok := cache.(imagecache.NullCache); !ok {
		t.Fatalf("cache = %T, want NullCache", cache)
	}
}

func TestNewCacheFallsBackOnBadURL(t *testing.T) {
	cache := NewCache(context.Background(), &infra.Config{RedisURL: "not-a-redis-url"}, zerolog.Nop())
	if _, ok := cache.(imagecache.NullCache); !ok {
		t.Fatalf("cache = %T, want NullCache", cache)
	}
}

func TestGeometry(t *testing.T) {
	g := Geometry(&infra.Config{PageWidth: 612, PageHeight: 792, PageMargin: 36, PageBleed: 9})
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if g.PageWidth() != 630 {
		t.Fatalf("PageWidth = %v", g.PageWidth())
	}
}
