package storage

import (
	"strings"

	"github.com/linskybing/csvflow/internal/config"
)

// New picks the backend named by the blob configuration.
func New(cfg config.BlobConfig) (BlobStore, error) {
	if strings.EqualFold(cfg.Endpoint, "memory") {
		return NewMemoryStore(), nil
	}
	return NewMinioStore(cfg)
}
