package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/linskybing/csvflow/internal/application"
	"github.com/linskybing/csvflow/pkg/response"
	"go.uber.org/zap"
)

// respondError maps service errors onto status codes. Anything unknown is a
// 500 with a generic body; the cause only goes to the log.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status, msg := http.StatusInternalServerError, "internal server error"

	switch {
	case errors.Is(err, application.ErrJobNotFound):
		status, msg = http.StatusNotFound, "Job not found"
	case errors.Is(err, application.ErrUserNotFound):
		status, msg = http.StatusNotFound, "User not found"
	case errors.Is(err, application.ErrUsernameTaken):
		status, msg = http.StatusBadRequest, "Username already registered"
	case errors.Is(err, application.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, "Incorrect username or password"
	case errors.Is(err, application.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, "Could not validate credentials"
	case errors.Is(err, application.ErrInvalidTransition):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, application.ErrInvalidStatus),
		errors.Is(err, application.ErrMissingResultURL),
		errors.Is(err, application.ErrPasswordTooLong):
		status, msg = http.StatusBadRequest, err.Error()
	default:
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}

	_ = c.Error(err)
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	c.JSON(status, response.ErrorResponse{Error: msg})
}

var fieldLabels = map[string]string{
	"Username":  "username",
	"Password":  "password",
	"FileID":    "file_id",
	"JobName":   "job_name",
	"Status":    "status",
	"ResultURL": "result_url",
}

// bindingMessage turns validator errors into short messages for the frontend.
func bindingMessage(err error) string {
	var verr validator.ValidationErrors
	if !errors.As(err, &verr) {
		return "Invalid input"
	}

	msgs := make([]string, 0, len(verr))
	for _, fe := range verr {
		lbl, ok := fieldLabels[fe.StructField()]
		if !ok {
			lbl = strings.ToLower(fe.StructField())
		}

		var msg string
		switch fe.Tag() {
		case "required":
			msg = fmt.Sprintf("%s is required", lbl)
		case "min":
			msg = fmt.Sprintf("%s must be at least %s characters", lbl, fe.Param())
		case "max":
			msg = fmt.Sprintf("%s must be at most %s characters", lbl, fe.Param())
		default:
			msg = fmt.Sprintf("%s is invalid", lbl)
		}
		msgs = append(msgs, msg)
	}
	return strings.Join(msgs, "; ")
}
