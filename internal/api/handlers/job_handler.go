package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/linskybing/csvflow/internal/application"
	"github.com/linskybing/csvflow/pkg/response"
	"github.com/linskybing/csvflow/pkg/utils"
	"go.uber.org/zap"
)

// JobHandler handles the user-facing job endpoints.
type JobHandler struct {
	svc            *application.JobService
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewJobHandler(svc *application.JobService, maxUploadBytes int64, logger *zap.Logger) *JobHandler {
	return &JobHandler{svc: svc, maxUploadBytes: maxUploadBytes, logger: logger}
}

// Upload godoc
// @Summary Upload a CSV file
// @Description Stores the file and creates a Pending job owned by the caller.
// @Tags jobs
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "CSV file"
// @Success 200 {object} response.UploadResponse
// @Failure 400 {object} response.ErrorResponse "No file uploaded"
// @Failure 401 {object} response.ErrorResponse
// @Failure 413 {object} response.ErrorResponse "File too large"
// @Failure 500 {object} response.ErrorResponse "File upload failed"
// @Router /upload [post]
func (h *JobHandler) Upload(c *gin.Context) {
	uid, err := utils.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{Error: "Unauthorized"})
		return
	}

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, response.ErrorResponse{Error: "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Error: "No file uploaded"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Error: "Could not read uploaded file"})
		return
	}
	defer func() {
		_ = f.Close()
	}()

	j, err := h.svc.Upload(c.Request.Context(), uid, application.UploadInput{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Content:     f,
	})
	if err != nil {
		h.logger.Error("file upload failed", zap.Uint("user_id", uid), zap.Error(err))
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Error: "File upload failed"})
		return
	}

	c.JSON(http.StatusOK, response.UploadResponse{FileID: j.FileID, Status: "Uploaded"})
}

// Submit godoc
// @Summary Submit an uploaded file for processing
// @Tags jobs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body application.SubmitInput true "Job to submit"
// @Success 200 {object} response.StatusResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse "Job not found"
// @Failure 409 {object} response.ErrorResponse "Job is not Pending"
// @Router /submit [post]
func (h *JobHandler) Submit(c *gin.Context) {
	uid, err := utils.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{Error: "Unauthorized"})
		return
	}

	var input application.SubmitInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Error: bindingMessage(err)})
		return
	}

	if _, err := h.svc.Submit(c.Request.Context(), uid, input); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, response.StatusResponse{Status: "Job submitted successfully"})
}

// ListJobs godoc
// @Summary List the caller's jobs
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.JobsResponse
// @Failure 401 {object} response.ErrorResponse
// @Router /jobs [get]
func (h *JobHandler) ListJobs(c *gin.Context) {
	uid, err := utils.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{Error: "Unauthorized"})
		return
	}

	jobs, err := h.svc.List(c.Request.Context(), uid)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, response.JobsResponse{Jobs: jobs})
}

// GetJob godoc
// @Summary Get one job
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param id path int true "Job ID"
// @Success 200 {object} job.Job
// @Failure 400 {object} response.ErrorResponse "Invalid job id"
// @Failure 404 {object} response.ErrorResponse "Job not found"
// @Router /jobs/{id} [get]
func (h *JobHandler) GetJob(c *gin.Context) {
	uid, err := utils.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{Error: "Unauthorized"})
		return
	}
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Error: "Invalid job id"})
		return
	}

	j, err := h.svc.Get(c.Request.Context(), uid, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, j)
}

// ListEvents godoc
// @Summary Status history of a job
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param id path int true "Job ID"
// @Success 200 {object} response.EventsResponse
// @Failure 404 {object} response.ErrorResponse "Job not found"
// @Router /jobs/{id}/events [get]
func (h *JobHandler) ListEvents(c *gin.Context) {
	uid, err := utils.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{Error: "Unauthorized"})
		return
	}
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Error: "Invalid job id"})
		return
	}

	events, err := h.svc.History(c.Request.Context(), uid, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, response.EventsResponse{Events: events})
}

// DeleteJob godoc
// @Summary Delete a job and its files
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param id path int true "Job ID"
// @Success 200 {object} response.MessageResponse
// @Failure 404 {object} response.ErrorResponse "Job not found"
// @Router /jobs/{id} [delete]
func (h *JobHandler) DeleteJob(c *gin.Context) {
	uid, err := utils.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{Error: "Unauthorized"})
		return
	}
	id, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.JSON(http.StatusNotFound, response.ErrorResponse{Error: "Job not found"})
		return
	}

	if err := h.svc.Delete(c.Request.Context(), uid, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, response.MessageResponse{Message: "Job deleted successfully"})
}

// RetryJob godoc
// @Summary Retry a finished job
// @Description Sends a Completed or Failed job back to Running and clears its result.
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param id path string true "File ID of the job"
// @Success 200 {object} response.MessageResponse
// @Failure 404 {object} response.ErrorResponse "Job not found"
// @Failure 409 {object} response.ErrorResponse "Job is not finished"
// @Router /jobs/{id}/retry [patch]
func (h *JobHandler) RetryJob(c *gin.Context) {
	uid, err := utils.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{Error: "Unauthorized"})
		return
	}

	// The segment carries the file id; gin requires one wildcard name per position.
	if _, err := h.svc.Retry(c.Request.Context(), uid, c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, response.MessageResponse{Message: "Job retry initiated"})
}
