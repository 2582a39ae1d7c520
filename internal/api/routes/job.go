package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/linskybing/csvflow/internal/api/handlers"
)

// JobRoutes registers job endpoints
func JobRoutes(rg *gin.RouterGroup, h *handlers.JobHandler) {
	jobs := rg.Group("/jobs")
	{
		jobs.GET("", h.ListJobs)
		jobs.GET("/:id", h.GetJob)
		jobs.GET("/:id/events", h.ListEvents)
		jobs.DELETE("/:id", h.DeleteJob)
		jobs.PATCH("/:id/retry", h.RetryJob)
	}
}
