package runner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/linskybing/csvflow/internal/config"
	"github.com/linskybing/csvflow/internal/domain/job"
	"github.com/linskybing/csvflow/internal/messaging"
	"github.com/linskybing/csvflow/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticSource struct {
	jobs []job.Job
	err  error
}

func (s staticSource) ListRunnable(context.Context) ([]job.Job, error) {
	return s.jobs, s.err
}

type report struct {
	fileID    string
	status    job.Status
	resultURL string
}

type recordingNotifier struct {
	mu      sync.Mutex
	reports []report
	failOn  job.Status
}

func (n *recordingNotifier) Notify(_ context.Context, fileID string, status job.Status, resultURL string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, report{fileID, status, resultURL})
	if status == n.failOn {
		return errors.New("api unavailable")
	}
	return nil
}

func (n *recordingNotifier) statuses(fileID string) []job.Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []job.Status
	for _, r := range n.reports {
		if r.fileID == fileID {
			out = append(out, r.status)
		}
	}
	return out
}

var testBuckets = config.BlobConfig{
	UploadBucket: "uploads",
	ResultBucket: "processed",
	PublicURL:    "http://minio:9000/",
}

func newTestRunner(source JobSource, blobs storage.BlobStore, n Notifier) *Runner {
	return New(source, blobs, n, testBuckets, config.RunnerConfig{Concurrency: 2}, zap.NewNop())
}

func putUpload(t *testing.T, blobs *storage.MemoryStore, fileID, content string) {
	t.Helper()
	require.NoError(t, blobs.Put(context.Background(), "uploads", job.UploadKey(fileID), strings.NewReader(content), int64(len(content)), "text/csv"))
}

func TestProcess_Success(t *testing.T) {
	blobs := storage.NewMemoryStore()
	putUpload(t, blobs, "abc", "data\nhello\n")
	n := &recordingNotifier{}
	r := newTestRunner(staticSource{}, blobs, n)

	require.NoError(t, r.Process(context.Background(), "abc"))

	assert.Equal(t, []job.Status{job.StatusProcessing, job.StatusCompleted}, n.statuses("abc"))
	assert.Equal(t, "http://minio:9000/processed/abc_processed.csv", n.reports[1].resultURL)

	out, err := blobs.Get(context.Background(), "processed", "abc_processed.csv")
	require.NoError(t, err)
	assert.Equal(t, "data,processed\nhello,HELLO\n", string(out))
	assert.Equal(t, "application/csv", blobs.ContentType("processed", "abc_processed.csv"))
}

func TestProcess_MissingDataColumnFails(t *testing.T) {
	blobs := storage.NewMemoryStore()
	putUpload(t, blobs, "abc", "value\nhello\n")
	n := &recordingNotifier{}
	r := newTestRunner(staticSource{}, blobs, n)

	err := r.Process(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrMissingDataColumn)
	assert.Equal(t, []job.Status{job.StatusProcessing, job.StatusFailed}, n.statuses("abc"))
	assert.Empty(t, n.reports[1].resultURL)
}

func TestProcess_MissingUploadFails(t *testing.T) {
	n := &recordingNotifier{}
	r := newTestRunner(staticSource{}, storage.NewMemoryStore(), n)

	err := r.Process(context.Background(), "gone")
	assert.ErrorIs(t, err, storage.ErrBlobNotFound)
	assert.Equal(t, []job.Status{job.StatusProcessing, job.StatusFailed}, n.statuses("gone"))
}

func TestProcess_StopsWhenProcessingReportFails(t *testing.T) {
	blobs := storage.NewMemoryStore()
	putUpload(t, blobs, "abc", "data\nhello\n")
	n := &recordingNotifier{failOn: job.StatusProcessing}
	r := newTestRunner(staticSource{}, blobs, n)

	assert.Error(t, r.Process(context.Background(), "abc"))
	assert.Equal(t, []job.Status{job.StatusProcessing}, n.statuses("abc"))
	assert.False(t, blobs.Has("processed", "abc_processed.csv"))
}

func TestProcess_ReportsFailedWhenCompletedReportFails(t *testing.T) {
	blobs := storage.NewMemoryStore()
	putUpload(t, blobs, "abc", "data\nhello\n")
	n := &recordingNotifier{failOn: job.StatusCompleted}
	r := newTestRunner(staticSource{}, blobs, n)

	assert.Error(t, r.Process(context.Background(), "abc"))
	assert.Equal(t, []job.Status{job.StatusProcessing, job.StatusCompleted, job.StatusFailed}, n.statuses("abc"))
	assert.Empty(t, n.reports[2].resultURL)
}

func TestProcess_SkipsJobAlreadyInFlight(t *testing.T) {
	n := &recordingNotifier{}
	r := newTestRunner(staticSource{}, storage.NewMemoryStore(), n)
	require.True(t, r.claim("abc"))

	assert.NoError(t, r.Process(context.Background(), "abc"))
	assert.Empty(t, n.statuses("abc"))
}

func TestRunOnce_ProcessesEveryRunningJob(t *testing.T) {
	blobs := storage.NewMemoryStore()
	putUpload(t, blobs, "a", "data\nx\n")
	putUpload(t, blobs, "b", "nope\nx\n")
	putUpload(t, blobs, "c", "data\nz\n")
	n := &recordingNotifier{}
	r := newTestRunner(staticSource{jobs: []job.Job{{FileID: "a"}, {FileID: "b"}, {FileID: "c"}}}, blobs, n)

	require.NoError(t, r.RunOnce(context.Background()))

	assert.Equal(t, []job.Status{job.StatusProcessing, job.StatusCompleted}, n.statuses("a"))
	assert.Equal(t, []job.Status{job.StatusProcessing, job.StatusFailed}, n.statuses("b"))
	assert.Equal(t, []job.Status{job.StatusProcessing, job.StatusCompleted}, n.statuses("c"))
}

func TestRunOnce_SourceError(t *testing.T) {
	r := newTestRunner(staticSource{err: errors.New("db down")}, storage.NewMemoryStore(), &recordingNotifier{})
	assert.Error(t, r.RunOnce(context.Background()))
}

func TestHandleMessage(t *testing.T) {
	blobs := storage.NewMemoryStore()
	putUpload(t, blobs, "abc", "data\nq\n")
	n := &recordingNotifier{}
	r := newTestRunner(staticSource{}, blobs, n)

	require.NoError(t, r.HandleMessage(context.Background(), messaging.JobMessage{FileID: "abc", Event: messaging.RoutingJobSubmitted}))
	assert.Equal(t, []job.Status{job.StatusProcessing, job.StatusCompleted}, n.statuses("abc"))
}
