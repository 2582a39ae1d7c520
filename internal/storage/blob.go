package storage

import (
	"context"
	"errors"
	"io"
)

// ErrBlobNotFound is returned by Get when the key does not exist.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore is the object storage contract used by the API and the runner.
type BlobStore interface {
	// Put stores data under key, creating the bucket if needed. Existing objects are overwritten.
	Put(ctx context.Context, bucket, key string, data io.Reader, size int64, contentType string) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Delete(ctx context.Context, bucket, key string) error
}
