package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/linskybing/csvflow/internal/api/handlers"
	"github.com/linskybing/csvflow/internal/api/middleware"
	"github.com/linskybing/csvflow/internal/config"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/linskybing/csvflow/docs"
)

// NewRouter builds the engine with the shared middleware stack and all routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers, resolver middleware.TokenResolver, limiter middleware.Limiter, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(cfg.HTTP.CORSOrigins),
	)
	RegisterRoutes(r, cfg, h, resolver, limiter, logger)
	return r
}

func RegisterRoutes(r *gin.Engine, cfg *config.Config, h *handlers.Handlers, resolver middleware.TokenResolver, limiter middleware.Limiter, logger *zap.Logger) {
	r.GET("/healthz", h.Health.Healthz)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// --- public ---
	authLimit := func(c *gin.Context) { c.Next() }
	if limiter != nil {
		authLimit = middleware.RateLimit(limiter, "auth", logger)
	}
	r.POST("/signup", authLimit, h.Auth.Signup)
	r.POST("/token", authLimit, h.Auth.Token)

	// --- runner callback ---
	r.POST("/airflow/update-status", middleware.CallbackAuth(cfg.Auth.CallbackSecret), h.Callback.UpdateStatus)

	// --- JWT-protected routes ---
	auth := r.Group("/")
	auth.Use(middleware.JWTAuthMiddleware(resolver))
	{
		auth.POST("/upload", h.Job.Upload)
		auth.POST("/submit", h.Job.Submit)
		auth.GET("/ws/jobs", h.Stream.StreamJobs)

		JobRoutes(auth, h.Job)
	}
}
