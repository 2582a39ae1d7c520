package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware allows the configured browser origins. Websocket upgrades
// skip CORS; the stream endpoint authenticates with a token instead.
func CORSMiddleware(origins []string) gin.HandlerFunc {
	allowed, allowAll := originSet(origins)

	config := cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return allowAll || allowed[strings.TrimRight(origin, "/")]
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: !allowAll,
		MaxAge:           12 * time.Hour,
	}

	corsHandler := cors.New(config)
	return func(c *gin.Context) {
		upgrade := c.GetHeader("Upgrade")
		if strings.EqualFold(upgrade, "websocket") {
			c.Next()
			return
		}
		corsHandler(c)
	}
}

// OriginChecker returns a websocket CheckOrigin func for the same origin list.
// Requests without an Origin header (non-browser clients) are accepted.
func OriginChecker(origins []string) func(*http.Request) bool {
	allowed, allowAll := originSet(origins)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowAll || allowed[strings.TrimRight(origin, "/")]
	}
}

func originSet(origins []string) (map[string]bool, bool) {
	allowed := make(map[string]bool, len(origins))
	allowAll := false
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return allowed, allowAll
}
