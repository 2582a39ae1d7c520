package response

import (
	"time"

	"github.com/linskybing/csvflow/internal/domain/job"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// TokenResponse is returned by POST /token.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type UploadResponse struct {
	FileID string `json:"file_id"`
	Status string `json:"status"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type JobsResponse struct {
	Jobs []job.Job `json:"jobs"`
}

type EventsResponse struct {
	Events []job.Event `json:"events"`
}
