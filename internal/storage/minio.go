package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/linskybing/csvflow/internal/config"
	minioSDK "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore implements BlobStore on top of a MinIO (or any S3 compatible) endpoint.
type MinioStore struct {
	client *minioSDK.Client

	mu      sync.Mutex
	buckets map[string]bool
}

// NewMinioStore creates a client for the configured endpoint. It does not
// contact the server; buckets are checked lazily on first write.
func NewMinioStore(cfg config.BlobConfig) (*MinioStore, error) {
	opts := &minioSDK.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	}
	if cfg.UseSSL {
		opts.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
		}
	}

	client, err := minioSDK.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinioStore{client: client, buckets: make(map[string]bool)}, nil
}

func (s *MinioStore) Put(ctx context.Context, bucket, key string, data io.Reader, size int64, contentType string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("object name cannot be empty")
	}
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, bucket, key, data, size, minioSDK.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *MinioStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minioSDK.GetObjectOptions{})
	if err != nil {
		return nil, s.mapError(bucket, key, err)
	}
	defer func() {
		_ = obj.Close()
	}()

	// GetObject is lazy; Stat surfaces a missing key before we start reading.
	if _, err := obj.Stat(); err != nil {
		return nil, s.mapError(bucket, key, err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.mapError(bucket, key, err)
	}
	return data, nil
}

func (s *MinioStore) Delete(ctx context.Context, bucket, key string) error {
	if err := s.client.RemoveObject(ctx, bucket, key, minioSDK.RemoveObjectOptions{}); err != nil {
		return s.mapError(bucket, key, err)
	}
	return nil
}

func (s *MinioStore) ensureBucket(ctx context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buckets[bucket] {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minioSDK.MakeBucketOptions{}); err != nil {
			// Another writer may have created it between the check and the create.
			resp := minioSDK.ToErrorResponse(err)
			if resp.Code != "BucketAlreadyOwnedByYou" && resp.Code != "BucketAlreadyExists" {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}
	s.buckets[bucket] = true
	return nil
}

func (s *MinioStore) mapError(bucket, key string, err error) error {
	switch minioSDK.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%s/%s: %w", bucket, key, ErrBlobNotFound)
	}
	return fmt.Errorf("%s/%s: %w", bucket, key, err)
}
