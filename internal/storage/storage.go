// Package storage persists rendered albums and reads stored post images.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrObjectNotFound is returned when a referenced object does not exist.
	ErrObjectNotFound = errors.New("storage: object not found")
	// ErrObjectDenied is returned when the store refuses access to an object.
	ErrObjectDenied = errors.New("storage: access denied")
)

// ArtifactStore writes a document under key and returns a public URL for it.
// Writing an existing key overwrites it.
type ArtifactStore interface {
	Store(ctx context.Context, key string, data []byte) (string, error)
}

// ObjectFetcher returns the bytes of a stored object reference.
type ObjectFetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}
