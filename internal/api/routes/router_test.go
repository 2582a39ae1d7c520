package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/linskybing/csvflow/internal/api/handlers"
	"github.com/linskybing/csvflow/internal/api/middleware"
	"github.com/linskybing/csvflow/internal/application"
	"github.com/linskybing/csvflow/internal/config"
	"github.com/linskybing/csvflow/internal/domain/job"
	"github.com/linskybing/csvflow/internal/domain/user"
	"github.com/linskybing/csvflow/internal/messaging"
	"github.com/linskybing/csvflow/internal/repository"
	"github.com/linskybing/csvflow/internal/repository/mock"
	"github.com/linskybing/csvflow/internal/storage"
	"github.com/linskybing/csvflow/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const callbackSecret = "runner-secret"

type testServer struct {
	router *gin.Engine
	users  *mock.MockUserRepo
	jobs   *mock.MockJobRepo
	events *mock.MockJobEventRepo
	blobs  *storage.MemoryStore
	svc    *application.Services
	alice  user.User
}

func setupServer(t *testing.T, limiter middleware.Limiter) *testServer {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(func() { ctrl.Finish() })

	s := &testServer{
		users:  mock.NewMockUserRepo(ctrl),
		jobs:   mock.NewMockJobRepo(ctrl),
		events: mock.NewMockJobEventRepo(ctrl),
		blobs:  storage.NewMemoryStore(),
		alice:  user.User{ID: 1, Username: "alice"},
	}
	s.build(limiter, s.jobs, s.events)
	return s
}

// build wires the router over the given job stores; users always come from the mock.
func (s *testServer) build(limiter middleware.Limiter, jobs repository.JobRepo, events repository.JobEventRepo) {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Env: "development",
		Auth: config.AuthConfig{
			JWTSecret:      "test-secret",
			TokenTTL:       time.Hour,
			Issuer:         "csvflow",
			CallbackSecret: callbackSecret,
		},
		Blob: config.BlobConfig{UploadBucket: "uploads", ResultBucket: "processed"},
		HTTP: config.HTTPConfig{
			CORSOrigins:    []string{"*"},
			MaxUploadBytes: 1 << 20,
			StreamInterval: time.Second,
		},
	}

	repos := &repository.Repos{User: s.users, Job: jobs, JobEvent: events}
	logger := zap.NewNop()

	s.svc = application.New(cfg, repos, s.blobs, messaging.NopNotifier{}, logger)
	h := handlers.New(cfg, s.svc, nil, nil, logger)
	s.router = NewRouter(cfg, h, s.svc.Auth, limiter, logger)
}

// token issues a bearer token for alice and lets the resolver find her.
func (s *testServer) token(t *testing.T) string {
	t.Helper()
	tok, _, err := s.svc.Auth.IssueToken(&s.alice)
	require.NoError(t, err)
	s.users.EXPECT().FindByUsername(gomock.Any(), "alice").Return(s.alice, nil).AnyTimes()
	return tok
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, path string, body any, token string) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestHealthz(t *testing.T) {
	s := setupServer(t, nil)
	w := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestSignup(t *testing.T) {
	s := setupServer(t, nil)

	s.users.EXPECT().FindByUsername(gomock.Any(), "alice").Return(user.User{}, gorm.ErrRecordNotFound)
	s.users.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u *user.User) error {
			assert.Equal(t, "alice", u.Username)
			assert.NotEqual(t, "password123", u.HashedPassword)
			u.ID = 1
			return nil
		})

	w := s.do(jsonRequest(http.MethodPost, "/signup", user.SignupInput{Username: "alice", Password: "password123"}, ""))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "User created successfully")
}

func TestSignup_DuplicateUsername(t *testing.T) {
	s := setupServer(t, nil)
	s.users.EXPECT().FindByUsername(gomock.Any(), "alice").Return(s.alice, nil)

	w := s.do(jsonRequest(http.MethodPost, "/signup", user.SignupInput{Username: "alice", Password: "password123"}, ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Username already registered")
}

func TestSignup_PasswordTooLong(t *testing.T) {
	s := setupServer(t, nil)

	w := s.do(jsonRequest(http.MethodPost, "/signup", user.SignupInput{Username: "alice", Password: strings.Repeat("p", 73)}, ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "password must be at most 72 characters")

	// Multi-byte input passes the length check but exceeds bcrypt's byte limit.
	s.users.EXPECT().FindByUsername(gomock.Any(), "alice").Return(user.User{}, gorm.ErrRecordNotFound)
	w = s.do(jsonRequest(http.MethodPost, "/signup", user.SignupInput{Username: "alice", Password: strings.Repeat("é", 40)}, ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "password must be at most 72 bytes")
}

func TestSignup_ShortPasswordRejected(t *testing.T) {
	s := setupServer(t, nil)
	w := s.do(jsonRequest(http.MethodPost, "/signup", map[string]string{"username": "alice", "password": "x"}, ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestToken(t *testing.T) {
	s := setupServer(t, nil)
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	stored := user.User{ID: 1, Username: "alice", HashedPassword: string(hash)}
	s.users.EXPECT().FindByUsername(gomock.Any(), "alice").Return(stored, nil).Times(2)

	form := url.Values{"username": {"alice"}, "password": {"password123"}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := s.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var tok response.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	assert.Equal(t, "bearer", tok.TokenType)
	assert.NotEmpty(t, tok.AccessToken)

	form.Set("password", "wrong")
	req = httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = s.do(req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Incorrect username or password")
}

func TestToken_RateLimited(t *testing.T) {
	s := setupServer(t, middleware.NewLocalLimiter(1, time.Minute))
	s.users.EXPECT().FindByUsername(gomock.Any(), "ghost").Return(user.User{}, gorm.ErrRecordNotFound)

	form := url.Values{"username": {"ghost"}, "password": {"whatever"}}
	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return s.do(req).Code
	}
	assert.Equal(t, http.StatusUnauthorized, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := setupServer(t, nil)
	for _, path := range []string{"/jobs", "/jobs/1", "/ws/jobs"} {
		w := s.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equalf(t, http.StatusUnauthorized, w.Code, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, s.do(req).Code)
}

func TestUpload(t *testing.T) {
	s := setupServer(t, nil)
	tok := s.token(t)

	var created *job.Job
	s.jobs.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, j *job.Job) error {
			j.ID = 7
			created = j
			return nil
		})

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "people.csv")
	require.NoError(t, err)
	_, _ = part.Write([]byte("id,data\n1,hello\n"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tok)
	w := s.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp response.UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, created)
	assert.Equal(t, created.FileID, resp.FileID)
	assert.Equal(t, "Uploaded", resp.Status)
	assert.Equal(t, job.StatusPending, created.Status)
	assert.Equal(t, uint(1), created.UserID)
	assert.True(t, s.blobs.Has("uploads", created.FileID+".csv"))
}

func TestUpload_MissingFile(t *testing.T) {
	s := setupServer(t, nil)
	tok := s.token(t)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tok)
	w := s.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "No file uploaded")
}

func TestSubmit(t *testing.T) {
	s := setupServer(t, nil)
	tok := s.token(t)

	pending := &job.Job{ID: 7, FileID: "f1", Status: job.StatusPending, UserID: 1}
	gomock.InOrder(
		s.jobs.EXPECT().LockByFileID(gomock.Any(), "f1").Return(pending, nil),
		s.jobs.EXPECT().UpdateStatus(gomock.Any(), "f1", job.StatusRunning).Return(nil),
		s.jobs.EXPECT().UpdateName(gomock.Any(), "f1", "nightly").Return(nil),
		s.events.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil),
	)

	w := s.do(jsonRequest(http.MethodPost, "/submit", application.SubmitInput{FileID: "f1", JobName: "nightly"}, tok))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Job submitted successfully")
}

func TestSubmit_OtherUsersJobIsNotFound(t *testing.T) {
	s := setupServer(t, nil)
	tok := s.token(t)

	s.jobs.EXPECT().LockByFileID(gomock.Any(), "f1").
		Return(&job.Job{ID: 7, FileID: "f1", Status: job.StatusPending, UserID: 2}, nil)

	w := s.do(jsonRequest(http.MethodPost, "/submit", application.SubmitInput{FileID: "f1", JobName: "x"}, tok))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Job not found")
}

func TestSubmit_AlreadyRunningConflicts(t *testing.T) {
	s := setupServer(t, nil)
	tok := s.token(t)

	s.jobs.EXPECT().LockByFileID(gomock.Any(), "f1").
		Return(&job.Job{ID: 7, FileID: "f1", Status: job.StatusRunning, UserID: 1}, nil)

	w := s.do(jsonRequest(http.MethodPost, "/submit", application.SubmitInput{FileID: "f1", JobName: "x"}, tok))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func callbackRequest(body any, secret string) *http.Request {
	req := jsonRequest(http.MethodPost, "/airflow/update-status", body, "")
	if secret != "" {
		req.Header.Set(middleware.CallbackTokenHeader, secret)
	}
	return req
}

func TestCallback(t *testing.T) {
	s := setupServer(t, nil)

	resultURL := "http://minio:9000/processed/f1_processed.csv"
	processing := &job.Job{ID: 7, FileID: "f1", Status: job.StatusProcessing, UserID: 1}
	gomock.InOrder(
		s.jobs.EXPECT().LockByFileID(gomock.Any(), "f1").Return(processing, nil),
		s.jobs.EXPECT().UpdateStatus(gomock.Any(), "f1", job.StatusCompleted).Return(nil),
		s.jobs.EXPECT().UpdateResultURL(gomock.Any(), "f1", gomock.Any()).Return(nil),
		s.events.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil),
	)

	w := s.do(callbackRequest(application.CallbackInput{FileID: "f1", Status: "completed", ResultURL: resultURL}, callbackSecret))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Job updated successfully")
}

func TestCallback_Errors(t *testing.T) {
	s := setupServer(t, nil)

	w := s.do(callbackRequest(application.CallbackInput{FileID: "f1", Status: "Completed", ResultURL: "u"}, ""))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(callbackRequest(application.CallbackInput{FileID: "f1", Status: "Done"}, callbackSecret))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(callbackRequest(application.CallbackInput{FileID: "f1", Status: "Completed"}, callbackSecret))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.jobs.EXPECT().LockByFileID(gomock.Any(), "missing").Return(nil, gorm.ErrRecordNotFound)
	w = s.do(callbackRequest(application.CallbackInput{FileID: "missing", Status: "Processing"}, callbackSecret))
	assert.Equal(t, http.StatusNotFound, w.Code)

	s.jobs.EXPECT().LockByFileID(gomock.Any(), "f2").
		Return(&job.Job{ID: 8, FileID: "f2", Status: job.StatusPending, UserID: 1}, nil)
	w = s.do(callbackRequest(application.CallbackInput{FileID: "f2", Status: "Processing"}, callbackSecret))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListJobs(t *testing.T) {
	s := setupServer(t, nil)
	tok := s.token(t)

	s.jobs.EXPECT().ListByUser(gomock.Any(), uint(1)).Return([]job.Job{
		{ID: 7, FileID: "f1", Status: job.StatusCompleted, UserID: 1},
	}, nil)

	w := s.do(jsonRequest(http.MethodGet, "/jobs", nil, tok))
	require.Equal(t, http.StatusOK, w.Code)

	var resp response.JobsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, "f1", resp.Jobs[0].FileID)
}

func TestListJobs_EmptyIsArray(t *testing.T) {
	s := setupServer(t, nil)
	tok := s.token(t)

	s.jobs.EXPECT().ListByUser(gomock.Any(), uint(1)).Return(nil, nil)

	w := s.do(jsonRequest(http.MethodGet, "/jobs", nil, tok))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"jobs":[]}`, w.Body.String())
}

func TestGetJob(t *testing.T) {
	s := setupServer(t, nil)
	tok := s.token(t)

	s.jobs.EXPECT().FindByID(gomock.Any(), uint(7)).Return(&job.Job{ID: 7, FileID: "f1", UserID: 1, Status: job.StatusRunning}, nil)
	w := s.do(jsonRequest(http.MethodGet, "/jobs/7", nil, tok))
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(jsonRequest(http.MethodGet, "/jobs/abc", nil, tok))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.jobs.EXPECT().FindByID(gomock.Any(), uint(8)).Return(&job.Job{ID: 8, FileID: "f2", UserID: 2}, nil)
	w = s.do(jsonRequest(http.MethodGet, "/jobs/8", nil, tok))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteJob(t *testing.T) {
	s := setupServer(t, nil)
	tok := s.token(t)
	require.NoError(t, s.blobs.Put(context.Background(), "uploads", "f1.csv", strings.NewReader("id,data\n"), 8, "text/csv"))

	s.jobs.EXPECT().FindByID(gomock.Any(), uint(7)).Return(&job.Job{ID: 7, FileID: "f1", UserID: 1, Status: job.StatusPending}, nil)
	s.events.EXPECT().DeleteByJob(gomock.Any(), uint(7)).Return(nil)
	s.jobs.EXPECT().Delete(gomock.Any(), uint(7)).Return(nil)

	w := s.do(jsonRequest(http.MethodDelete, "/jobs/7", nil, tok))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, s.blobs.Has("uploads", "f1.csv"))
}

func TestRetryJob(t *testing.T) {
	s := setupServer(t, nil)
	tok := s.token(t)

	resultURL := "http://minio:9000/processed/f1_processed.csv"
	gomock.InOrder(
		s.jobs.EXPECT().LockByFileID(gomock.Any(), "f1").
			Return(&job.Job{ID: 7, FileID: "f1", UserID: 1, Status: job.StatusCompleted, ResultURL: &resultURL}, nil),
		s.jobs.EXPECT().UpdateStatus(gomock.Any(), "f1", job.StatusRunning).Return(nil),
		s.jobs.EXPECT().UpdateResultURL(gomock.Any(), "f1", gomock.Nil()).Return(nil),
		s.events.EXPECT().Append(gomock.Any(), gomock.Any()).Return(nil),
	)

	w := s.do(jsonRequest(http.MethodPatch, "/jobs/f1/retry", nil, tok))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Job retry initiated")

	s.jobs.EXPECT().LockByFileID(gomock.Any(), "f2").
		Return(&job.Job{ID: 8, FileID: "f2", UserID: 1, Status: job.StatusRunning}, nil)
	w = s.do(jsonRequest(http.MethodPatch, "/jobs/f2/retry", nil, tok))
	assert.Equal(t, http.StatusConflict, w.Code)
}
