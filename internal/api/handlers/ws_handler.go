package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/linskybing/csvflow/internal/application"
	"github.com/linskybing/csvflow/pkg/response"
	"github.com/linskybing/csvflow/pkg/utils"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// StreamHandler pushes the caller's job list over a websocket.
type StreamHandler struct {
	svc      *application.JobService
	interval time.Duration
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewStreamHandler(svc *application.JobService, interval time.Duration, checkOrigin func(*http.Request) bool, logger *zap.Logger) *StreamHandler {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &StreamHandler{
		svc:      svc,
		interval: interval,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		logger:   logger,
	}
}

// StreamJobs godoc
// @Summary Stream the caller's jobs
// @Description Upgrades to a websocket and sends {"jobs":[...]} on connect and then periodically.
// @Tags jobs
// @Security BearerAuth
// @Param token query string false "Bearer token for clients that cannot set headers"
// @Success 101 {object} response.JobsResponse
// @Router /ws/jobs [get]
func (h *StreamHandler) StreamJobs(c *gin.Context) {
	uid, err := utils.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{Error: "Unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Reader consumes control frames and notices when the peer goes away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx := c.Request.Context()
	send := func() error {
		jobs, err := h.svc.List(ctx, uid)
		if err != nil {
			h.logger.Warn("job stream list failed", zap.Uint("user_id", uid), zap.Error(err))
			return nil
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(response.JobsResponse{Jobs: jobs})
	}

	if err := send(); err != nil {
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case <-ticker.C:
			if err := send(); err != nil {
				return
			}
		case <-pingTicker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
