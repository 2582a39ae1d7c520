package application

import (
	"github.com/linskybing/csvflow/internal/config"
	"github.com/linskybing/csvflow/internal/messaging"
	"github.com/linskybing/csvflow/internal/repository"
	"github.com/linskybing/csvflow/internal/storage"
	"go.uber.org/zap"
)

type Services struct {
	Auth *AuthService
	Job  *JobService
}

func New(cfg *config.Config, repos *repository.Repos, blobs storage.BlobStore, notifier messaging.Notifier, logger *zap.Logger) *Services {
	return &Services{
		Auth: NewAuthService(repos, cfg.Auth, logger.Named("auth")),
		Job:  NewJobService(repos, blobs, notifier, cfg.Blob, logger.Named("job")),
	}
}
