package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/linskybing/csvflow/internal/domain/user"
	"github.com/linskybing/csvflow/pkg/response"
	"github.com/linskybing/csvflow/pkg/utils"
)

// TokenResolver maps a bearer token to its user.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (*user.User, error)
}

// JWTAuthMiddleware validates the bearer token from the Authorization header,
// the "token" query parameter (websocket upgrades only, browsers cannot set
// headers there) or the "token" cookie, in that order.
func JWTAuthMiddleware(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenStr string

		authHeader := c.GetHeader("Authorization")
		switch {
		case authHeader != "":
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				unauthorized(c, "Authorization header format must be Bearer {token}")
				return
			}
			tokenStr = parts[1]
		case c.IsWebsocket() && c.Query("token") != "":
			tokenStr = c.Query("token")
		default:
			cookie, err := c.Cookie("token")
			if err != nil || cookie == "" {
				unauthorized(c, "Not authenticated")
				return
			}
			tokenStr = cookie
		}

		usr, err := resolver.Resolve(c.Request.Context(), tokenStr)
		if err != nil {
			unauthorized(c, "Could not validate credentials")
			return
		}

		c.Set(utils.ContextUserKey, usr)
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorResponse{Error: msg})
}
