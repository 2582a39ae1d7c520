package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/linskybing/csvflow/internal/application"
	"github.com/linskybing/csvflow/internal/domain/user"
	"github.com/linskybing/csvflow/pkg/response"
	"go.uber.org/zap"
)

type AuthHandler struct {
	svc          *application.AuthService
	secureCookie bool
	logger       *zap.Logger
}

func NewAuthHandler(svc *application.AuthService, secureCookie bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, secureCookie: secureCookie, logger: logger}
}

// Signup godoc
// @Summary Create an account
// @Tags auth
// @Accept json
// @Produce json
// @Param input body user.SignupInput true "Credentials"
// @Success 200 {object} response.MessageResponse "User created successfully"
// @Failure 400 {object} response.ErrorResponse "Invalid input or username already registered"
// @Failure 429 {object} response.ErrorResponse "Too many requests"
// @Failure 500 {object} response.ErrorResponse "Internal error"
// @Router /signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var input user.SignupInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Error: bindingMessage(err)})
		return
	}

	if _, err := h.svc.Signup(c.Request.Context(), input); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, response.MessageResponse{Message: "User created successfully"})
}

// Token godoc
// @Summary Exchange credentials for a bearer token
// @Tags auth
// @Accept x-www-form-urlencoded
// @Produce json
// @Param username formData string true "Username"
// @Param password formData string true "Password"
// @Success 200 {object} response.TokenResponse "Bearer token"
// @Failure 400 {object} response.ErrorResponse "Invalid input"
// @Failure 401 {object} response.ErrorResponse "Incorrect username or password"
// @Failure 429 {object} response.ErrorResponse "Too many requests"
// @Router /token [post]
func (h *AuthHandler) Token(c *gin.Context) {
	var input user.TokenInput
	if err := c.ShouldBind(&input); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Error: bindingMessage(err)})
		return
	}

	token, expiresAt, err := h.svc.Login(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		"token",
		token,
		int(time.Until(expiresAt).Seconds()),
		"/",
		"",
		h.secureCookie,
		true,
	)

	c.JSON(http.StatusOK, response.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
	})
}
