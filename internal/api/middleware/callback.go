package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/linskybing/csvflow/pkg/response"
)

// CallbackTokenHeader carries the shared secret on runner callbacks.
const CallbackTokenHeader = "X-Callback-Token"

// CallbackAuth guards the runner callback with a shared secret. An empty
// secret leaves the endpoint open.
func CallbackAuth(secret string) gin.HandlerFunc {
	if secret == "" {
		return func(c *gin.Context) { c.Next() }
	}
	want := []byte(secret)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(CallbackTokenHeader))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorResponse{Error: "invalid callback token"})
			return
		}
		c.Next()
	}
}
