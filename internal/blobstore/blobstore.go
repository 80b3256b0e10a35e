// Package blobstore abstracts where uploaded file bytes live. The catalog
// rows in storage reference blobs by key; backends are a local directory and
// S3-compatible object storage.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Store reads and writes file bytes by key.
type Store interface {
	// Put streams r into the blob under key. Size is advisory; backends may
	// use it for content-length but must tolerate -1.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Open returns a reader over the blob. Callers must close it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Presigner is implemented by backends that can hand out direct download
// URLs, letting the object store serve the bytes itself.
type Presigner interface {
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
}

// NewKey generates a date-sharded storage key for a fresh upload.
func NewKey() string {
	now := time.Now().UTC()
	return fmt.Sprintf("assets/%d/%02d/%02d/%s", now.Year(), now.Month(), now.Day(), uuid.NewString())
}
