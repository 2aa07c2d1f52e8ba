package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"albumrender/internal/metrics"
)

// ObjectOptions configures the BaaS object storage client.
type ObjectOptions struct {
	BaseURL     string
	APIKey      string
	Bucket      string
	ImageBucket string
	MaxBytes    int64
	HTTPClient  *http.Client
	Logger      zerolog.Logger

	// FailureThreshold consecutive upstream failures open the breaker for
	// BreakerTimeout.
	FailureThreshold uint32
	BreakerTimeout   time.Duration
}

// ObjectStore talks to the BaaS storage REST API. Album uploads go to Bucket
// with upsert semantics; image fetches resolve "bucket/path" references or
// bare paths inside ImageBucket. Reads and writes trip separate circuit
// breakers, so failing image downloads never block the album upload.
type ObjectStore struct {
	baseURL     string
	apiKey      string
	bucket      string
	imageBucket string
	maxBytes    int64
	httpClient  *http.Client
	logger      zerolog.Logger
	reads       *gobreaker.CircuitBreaker[[]byte]
	writes      *gobreaker.CircuitBreaker[[]byte]
}

// NewObjectStore constructs an ObjectStore with defaults applied.
func NewObjectStore(opts ObjectOptions) (*ObjectStore, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("storage: object storage url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("storage: parse object storage url: %w", err)
	}
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, errors.New("storage: bucket is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	threshold := opts.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	timeout := opts.BreakerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	imageBucket := strings.TrimSpace(opts.ImageBucket)
	if imageBucket == "" {
		imageBucket = opts.Bucket
	}

	s := &ObjectStore{
		baseURL:     base,
		apiKey:      opts.APIKey,
		bucket:      strings.TrimSpace(opts.Bucket),
		imageBucket: imageBucket,
		maxBytes:    maxBytes,
		httpClient:  httpClient,
		logger:      opts.Logger,
	}
	s.reads = s.newBreaker("object-store-read", threshold, timeout, func(err error) bool {
		// A per-image deadline is the caller's budget running out, not an outage.
		return isAnswer(err) || errors.Is(err, context.DeadlineExceeded)
	})
	s.writes = s.newBreaker("object-store-write", threshold, timeout, isAnswer)
	return s, nil
}

func (s *ObjectStore) newBreaker(name string, threshold uint32, timeout time.Duration, successful func(error) bool) *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: successful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("storage: circuit breaker state change")
			metrics.SetBreakerState(name, int(to))
		},
	})
}

// isAnswer reports whether err is a definitive reply from storage rather than
// an outage. Missing or forbidden objects are answers.
func isAnswer(err error) bool {
	return err == nil || errors.Is(err, ErrObjectNotFound) || errors.Is(err, ErrObjectDenied) || errors.Is(err, context.Canceled)
}

// PublicURL returns the public locator of key in the album bucket.
func (s *ObjectStore) PublicURL(key string) string {
	return s.baseURL + "/object/public/" + s.bucket + "/" + escapePath(key)
}

// Store uploads data under key, overwriting any previous object.
func (s *ObjectStore) Store(ctx context.Context, key string, data []byte) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	endpoint := s.baseURL + "/object/" + s.bucket + "/" + escapePath(cleanKey)
	_, err = s.writes.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		s.authorize(req)
		contentType := mime.TypeByExtension(path.Ext(cleanKey))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("x-upsert", "true")
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("storage: upload %s: %w", cleanKey, err)
		}
		defer resp.Body.Close()
		if err := statusError(resp, cleanKey); err != nil {
			return nil, err
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, nil
	})
	if err != nil {
		return "", err
	}
	return s.PublicURL(cleanKey), nil
}

// Fetch downloads a stored image. ref is "bucket/path/to/object" when the
// first segment names a known bucket, otherwise a path in the image bucket.
func (s *ObjectStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	bucket, key, err := s.splitRef(ref)
	if err != nil {
		return nil, err
	}
	endpoint := s.baseURL + "/object/authenticated/" + bucket + "/" + escapePath(key)
	return s.reads.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		s.authorize(req)
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("storage: download %s: %w", key, err)
		}
		defer resp.Body.Close()
		if err := statusError(resp, key); err != nil {
			return nil, err
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
		if err != nil {
			return nil, fmt.Errorf("storage: read %s: %w", key, err)
		}
		if int64(len(data)) > s.maxBytes {
			return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrObjectDenied, key, s.maxBytes)
		}
		return data, nil
	})
}

// ReadState reports the image download breaker state name.
func (s *ObjectStore) ReadState() string {
	return s.reads.State().String()
}

// WriteState reports the album upload breaker state name.
func (s *ObjectStore) WriteState() string {
	return s.writes.State().String()
}

func (s *ObjectStore) splitRef(ref string) (string, string, error) {
	clean, err := sanitizeKey(ref)
	if err != nil {
		return "", "", err
	}
	if first, rest, ok := strings.Cut(clean, "/"); ok && (first == s.imageBucket || first == s.bucket) {
		return first, rest, nil
	}
	return s.imageBucket, clean, nil
}

func (s *ObjectStore) authorize(req *http.Request) {
	if s.apiKey == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("apikey", s.apiKey)
}

func statusError(resp *http.Response, key string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrObjectDenied, key)
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("storage: %s returned %d: %s", key, resp.StatusCode, strings.TrimSpace(string(snippet)))
}

func escapePath(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

var (
	_ ArtifactStore = (*ObjectStore)(nil)
	_ ObjectFetcher = (*ObjectStore)(nil)
)
