// Package resolver turns stored image references into embeddable pixels.
//
// Every image is fetched under its own timeout, decoded, auto-oriented,
// downscaled and re-encoded as JPEG. Anything that goes wrong is reported as
// a ResolutionFailure for that image only; a batch never fails as a whole.
package resolver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"albumrender/internal/domain"
	"albumrender/internal/imagecache"
	"albumrender/internal/metrics"
	"albumrender/internal/storage"
)

// FailureKind classifies why an image could not be resolved.
type FailureKind string

const (
	FailureUnreachable       FailureKind = "unreachable"
	FailureCorrupt           FailureKind = "corrupt"
	FailureUnsupportedFormat FailureKind = "unsupported_format"
)

// ResolutionFailure is the typed outcome for an image that cannot be used.
type ResolutionFailure struct {
	Kind FailureKind
	Ref  domain.ImageRef
	Err  error
}

func (f *ResolutionFailure) Error() string {
	return fmt.Sprintf("image %s %s: %v", f.Ref.ID, f.Kind, f.Err)
}

func (f *ResolutionFailure) Unwrap() error { return f.Err }

// ResolvedImage is a normalised JPEG ready for embedding.
type ResolvedImage struct {
	Ref    domain.ImageRef
	Data   []byte
	Width  int
	Height int
}

// Result holds exactly one of Image or Failure.
type Result struct {
	Image   *ResolvedImage
	Failure *ResolutionFailure
}

// Options configures a Resolver.
type Options struct {
	Objects      storage.ObjectFetcher
	HTTPClient   *http.Client
	Cache        imagecache.Cache
	CacheTTL     time.Duration
	Timeout      time.Duration
	Concurrency  int
	MaxDimension int
	MaxBytes     int64
	JPEGQuality  int
	Logger       zerolog.Logger
}

// Resolver fetches and normalises post images.
type Resolver struct {
	objects      storage.ObjectFetcher
	httpClient   *http.Client
	cache        imagecache.Cache
	cacheTTL     time.Duration
	timeout      time.Duration
	concurrency  int
	maxDimension int
	maxBytes     int64
	quality      int
	logger       zerolog.Logger
}

// New constructs a Resolver with defaults applied.
func New(opts Options) *Resolver {
	r := &Resolver{
		objects:      opts.Objects,
		httpClient:   opts.HTTPClient,
		cache:        opts.Cache,
		cacheTTL:     opts.CacheTTL,
		timeout:      opts.Timeout,
		concurrency:  opts.Concurrency,
		maxDimension: opts.MaxDimension,
		maxBytes:     opts.MaxBytes,
		quality:      opts.JPEGQuality,
		logger:       opts.Logger,
	}
	if r.httpClient == nil {
		r.httpClient = &http.Client{}
	}
	if r.cache == nil {
		r.cache = imagecache.NewNullCache()
	}
	if r.timeout <= 0 {
		r.timeout = 15 * time.Second
	}
	if r.concurrency <= 0 {
		r.concurrency = 4
	}
	if r.maxDimension <= 0 {
		r.maxDimension = 2000
	}
	if r.maxBytes <= 0 {
		r.maxBytes = 20 << 20
	}
	if r.quality <= 0 || r.quality > 100 {
		r.quality = 85
	}
	return r
}

// ResolveAll resolves refs with bounded parallelism. The result at index i
// always belongs to refs[i], whatever order the fetches complete in.
func (r *Resolver) ResolveAll(ctx context.Context, refs []domain.ImageRef) []Result {
	results := make([]Result, len(refs))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			img, failure := r.Resolve(ctx, ref)
			results[i] = Result{Image: img, Failure: failure}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Resolve fetches and normalises a single image within the per-image timeout.
func (r *Resolver) Resolve(ctx context.Context, ref domain.ImageRef) (*ResolvedImage, *ResolutionFailure) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	img, failure := r.resolve(ctx, ref)
	if failure != nil {
		metrics.RecordResolutionFailure(string(failure.Kind))
		r.logger.Warn().Err(failure.Err).
			Str("image_id", ref.ID).
			Str("kind", string(failure.Kind)).
			Msg("resolver: image dropped")
	}
	return img, failure
}

func (r *Resolver) resolve(ctx context.Context, ref domain.ImageRef) (*ResolvedImage, *ResolutionFailure) {
	src := strings.TrimSpace(ref.URL)
	if src == "" {
		return nil, &ResolutionFailure{Kind: FailureUnreachable, Ref: ref, Err: errors.New("empty image reference")}
	}

	if cached, ok := r.lookup(ctx, src); ok {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(cached)); err == nil && cfg.Width > 0 && cfg.Height > 0 {
			return &ResolvedImage{Ref: ref, Data: cached, Width: cfg.Width, Height: cfg.Height}, nil
		}
	}

	raw, err := r.fetch(ctx, src)
	if err != nil {
		return nil, &ResolutionFailure{Kind: FailureUnreachable, Ref: ref, Err: err}
	}

	resolved, failure := r.normalize(ref, raw)
	if failure != nil {
		return nil, failure
	}
	if err := r.cache.Set(ctx, src, resolved.Data, r.cacheTTL); err != nil {
		r.logger.Debug().Err(err).Str("image_id", ref.ID).Msg("resolver: cache write failed")
	}
	return resolved, nil
}

func (r *Resolver) lookup(ctx context.Context, key string) ([]byte, bool) {
	data, ok, err := r.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.RecordCacheLookup("error")
		r.logger.Debug().Err(err).Msg("resolver: cache read failed")
		return nil, false
	case !ok:
		metrics.RecordCacheLookup("miss")
		return nil, false
	}
	metrics.RecordCacheLookup("hit")
	return data, true
}

func (r *Resolver) fetch(ctx context.Context, src string) ([]byte, error) {
	lower := strings.ToLower(src)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return r.fetchHTTP(ctx, src)
	}
	if r.objects == nil {
		return nil, errors.New("no object store configured")
	}
	return r.objects.Fetch(ctx, src)
}

func (r *Resolver) fetchHTTP(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, storage.ErrObjectNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, storage.ErrObjectDenied
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", r.maxBytes)
	}
	return data, nil
}

// normalize decodes raw, applies EXIF orientation, flattens transparency on
// white, fits the image inside maxDimension and re-encodes it as JPEG.
func (r *Resolver) normalize(ref domain.ImageRef, raw []byte) (*ResolvedImage, *ResolutionFailure) {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		kind := FailureCorrupt
		if errors.Is(err, image.ErrFormat) {
			kind = FailureUnsupportedFormat
		}
		return nil, &ResolutionFailure{Kind: kind, Ref: ref, Err: err}
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, &ResolutionFailure{Kind: FailureCorrupt, Ref: ref, Err: errors.New("image has no pixels")}
	}
	if bounds.Dx() > r.maxDimension || bounds.Dy() > r.maxDimension {
		img = imaging.Fit(img, r.maxDimension, r.maxDimension, imaging.Lanczos)
		bounds = img.Bounds()
	}
	canvas := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	flat := imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(r.quality)); err != nil {
		return nil, &ResolutionFailure{Kind: FailureCorrupt, Ref: ref, Err: err}
	}
	return &ResolvedImage{Ref: ref, Data: buf.Bytes(), Width: bounds.Dx(), Height: bounds.Dy()}, nil
}
