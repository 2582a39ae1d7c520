package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/linskybing/csvflow/internal/application"
	"github.com/linskybing/csvflow/pkg/response"
	"go.uber.org/zap"
)

// CallbackHandler receives status reports from the workflow runner.
type CallbackHandler struct {
	svc    *application.JobService
	logger *zap.Logger
}

func NewCallbackHandler(svc *application.JobService, logger *zap.Logger) *CallbackHandler {
	return &CallbackHandler{svc: svc, logger: logger}
}

// UpdateStatus godoc
// @Summary Runner status callback
// @Description Applies a status reported by the workflow runner. Repeating the current status and result_url is accepted without changes.
// @Tags runner
// @Accept json
// @Produce json
// @Param X-Callback-Token header string false "Shared secret, required when the server has one configured"
// @Param input body application.CallbackInput true "Status report"
// @Success 200 {object} response.MessageResponse
// @Failure 400 {object} response.ErrorResponse "Unknown status or missing result_url"
// @Failure 401 {object} response.ErrorResponse "Invalid callback token"
// @Failure 404 {object} response.ErrorResponse "Job not found"
// @Failure 409 {object} response.ErrorResponse "Illegal transition"
// @Router /airflow/update-status [post]
func (h *CallbackHandler) UpdateStatus(c *gin.Context) {
	var input application.CallbackInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Error: bindingMessage(err)})
		return
	}

	if _, _, err := h.svc.ApplyCallback(c.Request.Context(), input); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, response.MessageResponse{Message: "Job updated successfully"})
}
