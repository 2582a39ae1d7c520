package handlers

import (
	"net/http"

	"github.com/linskybing/csvflow/internal/application"
	"github.com/linskybing/csvflow/internal/config"
	"go.uber.org/zap"
)

type Handlers struct {
	Auth     *AuthHandler
	Job      *JobHandler
	Callback *CallbackHandler
	Stream   *StreamHandler
	Health   *HealthHandler
}

func New(cfg *config.Config, svc *application.Services, checks map[string]Pinger, checkOrigin func(*http.Request) bool, logger *zap.Logger) *Handlers {
	return &Handlers{
		Auth:     NewAuthHandler(svc.Auth, !cfg.IsDevelopment(), logger.Named("auth")),
		Job:      NewJobHandler(svc.Job, cfg.HTTP.MaxUploadBytes, logger.Named("job")),
		Callback: NewCallbackHandler(svc.Job, logger.Named("callback")),
		Stream:   NewStreamHandler(svc.Job, cfg.HTTP.StreamInterval, checkOrigin, logger.Named("stream")),
		Health:   NewHealthHandler(checks),
	}
}
