package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestObjectStore(t *testing.T, handler http.Handler) *ObjectStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	store, err := NewObjectStore(ObjectOptions{
		BaseURL:          srv.URL + "/storage/v1/",
		APIKey:           "service-key",
		Bucket:           "albums",
		ImageBucket:      "post-images",
		MaxBytes:         1024,
		HTTPClient:       srv.Client(),
		Logger:           zerolog.Nop(),
		FailureThreshold: 2,
		BreakerTimeout:   time.Minute,
	})
	require.NoError(t, err)
	return store
}

func TestObjectStoreUpload(t *testing.T) {
	var gotPath, gotAuth, gotUpsert, gotType, gotBody string
	store := newTestObjectStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotUpsert = r.Header.Get("x-upsert")
		gotType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))

	url, err := store.Store(context.Background(), "albums/fam 1/job.pdf", []byte("%PDF"))
	require.NoError(t, err)

	assert.Equal(t, "/storage/v1/object/albums/albums/fam 1/job.pdf", gotPath)
	assert.Equal(t, "Bearer service-key", gotAuth)
	assert.Equal(t, "true", gotUpsert)
	assert.Equal(t, "application/pdf", gotType)
	assert.Equal(t, "%PDF", gotBody)
	assert.Contains(t, url, "/storage/v1/object/public/albums/albums/fam%201/job.pdf")
}

func TestObjectStoreFetchResolvesBuckets(t *testing.T) {
	var paths []string
	store := newTestObjectStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte("img"))
	}))

	_, err := store.Fetch(context.Background(), "post-images/fam/a.jpg")
	require.NoError(t, err)
	_, err = store.Fetch(context.Background(), "fam/b.jpg")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/storage/v1/object/authenticated/post-images/fam/a.jpg",
		"/storage/v1/object/authenticated/post-images/fam/b.jpg",
	}, paths)
}

func TestObjectStoreTypedErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "not found", status: http.StatusNotFound, want: ErrObjectNotFound},
		{name: "forbidden", status: http.StatusForbidden, want: ErrObjectDenied},
		{name: "unauthorized", status: http.StatusUnauthorized, want: ErrObjectDenied},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newTestObjectStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			_, err := store.Fetch(context.Background(), "a.jpg")
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestObjectStoreRejectsOversizedObjects(t *testing.T) {
	store := newTestObjectStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 2048))
	}))
	_, err := store.Fetch(context.Background(), "big.jpg")
	require.ErrorIs(t, err, ErrObjectDenied)
}

func TestObjectStoreBreakerOpensOnOutage(t *testing.T) {
	var calls atomic.Int32
	store := newTestObjectStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))

	for i := 0; i < 2; i++ {
		_, err := store.Store(context.Background(), "a.pdf", []byte("x"))
		require.Error(t, err)
	}
	_, err := store.Store(context.Background(), "a.pdf", []byte("x"))
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "open", store.WriteState())
	assert.Equal(t, "closed", store.ReadState())
}

func TestObjectStoreNotFoundDoesNotTripBreaker(t *testing.T) {
	store := newTestObjectStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	for i := 0; i < 5; i++ {
		_, err := store.Fetch(context.Background(), "missing.jpg")
		require.ErrorIs(t, err, ErrObjectNotFound)
	}
	assert.Equal(t, "closed", store.ReadState())
}

func TestObjectStoreFailingReadsDoNotBlockUploads(t *testing.T) {
	store := newTestObjectStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		_, err := store.Fetch(context.Background(), "a.jpg")
		require.Error(t, err)
	}
	assert.Equal(t, "open", store.ReadState())

	_, err := store.Store(context.Background(), "albums/fam/job.pdf", []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "closed", store.WriteState())
}

func TestObjectStoreDeadlinesDoNotTripReadBreaker(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	store := newTestObjectStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))

	for i := 0; i < 4; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := store.Fetch(ctx, "slow.jpg")
		cancel()
		require.ErrorIs(t, err, context.DeadlineExceeded)
	}
	assert.Equal(t, "closed", store.ReadState())
}
