package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/linskybing/csvflow/internal/domain/user"
	"github.com/linskybing/csvflow/pkg/utils"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeResolver map[string]*user.User

func (f fakeResolver) Resolve(_ context.Context, token string) (*user.User, error) {
	if u, ok := f[token]; ok {
		return u, nil
	}
	return nil, errors.New("bad token")
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) {
		uid, _ := utils.GetUserIDFromContext(c)
		c.JSON(http.StatusOK, gin.H{"uid": uid})
	})
	r.POST("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuthMiddleware(t *testing.T) {
	r := newEngine(JWTAuthMiddleware(fakeResolver{"good": {ID: 5, Username: "alice"}}))

	cases := []struct {
		name   string
		setup  func(*http.Request)
		status int
	}{
		{"header", func(req *http.Request) { req.Header.Set("Authorization", "Bearer good") }, http.StatusOK},
		{"lowercase scheme", func(req *http.Request) { req.Header.Set("Authorization", "bearer good") }, http.StatusOK},
		{"cookie", func(req *http.Request) { req.AddCookie(&http.Cookie{Name: "token", Value: "good"}) }, http.StatusOK},
		{"bad header", func(req *http.Request) { req.Header.Set("Authorization", "Token good") }, http.StatusUnauthorized},
		{"bad token", func(req *http.Request) { req.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"missing", func(*http.Request) {}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			tc.setup(req)
			w := do(r, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.JSONEq(t, `{"uid":5}`, w.Body.String())
			} else {
				assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			}
		})
	}

	// The query token only counts on websocket upgrades.
	w := do(r, httptest.NewRequest(http.MethodGet, "/ping?token=good", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/ping?token=good", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	w = do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCallbackAuth(t *testing.T) {
	open := newEngine(CallbackAuth(""))
	assert.Equal(t, http.StatusOK, do(open, httptest.NewRequest(http.MethodPost, "/ping", nil)).Code)

	guarded := newEngine(CallbackAuth("s3cret"))
	assert.Equal(t, http.StatusUnauthorized, do(guarded, httptest.NewRequest(http.MethodPost, "/ping", nil)).Code)

	req := httptest.NewRequest(http.MethodPost, "/ping", nil)
	req.Header.Set(CallbackTokenHeader, "wrong")
	assert.Equal(t, http.StatusUnauthorized, do(guarded, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/ping", nil)
	req.Header.Set(CallbackTokenHeader, "s3cret")
	assert.Equal(t, http.StatusOK, do(guarded, req).Code)
}

func TestRateLimit_LocalLimiter(t *testing.T) {
	limiter := NewLocalLimiter(3, time.Minute)
	r := newEngine(RateLimit(limiter, "auth", zap.NewNop()))

	for i := 0; i < 3; i++ {
		w := do(r, httptest.NewRequest(http.MethodPost, "/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	}

	w := do(r, httptest.NewRequest(http.MethodPost, "/ping", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	// a different client has its own budget
	req := httptest.NewRequest(http.MethodPost, "/ping", nil)
	req.RemoteAddr = "10.0.0.9:1234"
	assert.Equal(t, http.StatusOK, do(r, req).Code)
}

func TestLocalLimiter_ZeroLimitDoesNotPanic(t *testing.T) {
	limiter := NewLocalLimiter(0, 0)
	assert.Equal(t, 1, limiter.Limit())
	assert.Equal(t, time.Minute, limiter.Window())

	allowed, _, err := limiter.Allow(context.Background(), "auth:1.2.3.4")
	assert.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, err = limiter.Allow(context.Background(), "auth:1.2.3.4")
	assert.NoError(t, err)
	assert.False(t, allowed)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, int, error) {
	return false, 0, errors.New("redis down")
}
func (failingLimiter) Limit() int            { return 1 }
func (failingLimiter) Window() time.Duration { return time.Second }

func TestRateLimit_FailsOpen(t *testing.T) {
	r := newEngine(RateLimit(failingLimiter{}, "auth", zap.NewNop()))
	assert.Equal(t, http.StatusOK, do(r, httptest.NewRequest(http.MethodPost, "/ping", nil)).Code)
}

func TestCORSMiddleware(t *testing.T) {
	r := newEngine(CORSMiddleware([]string{"http://localhost:4200"}))

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := do(r, req)
	assert.Equal(t, "http://localhost:4200", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://evil.test")
	w = do(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestOriginChecker(t *testing.T) {
	check := OriginChecker([]string{"http://localhost:4200/"})

	req := httptest.NewRequest(http.MethodGet, "/ws/jobs", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://localhost:4200")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://evil.test")
	assert.False(t, check(req))

	assert.True(t, OriginChecker([]string{"*"})(req))
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(LoggingMiddleware(zap.NewNop()), RecoveryMiddleware(zap.NewNop()))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := do(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}
