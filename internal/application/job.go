package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/linskybing/csvflow/internal/config"
	"github.com/linskybing/csvflow/internal/domain/job"
	"github.com/linskybing/csvflow/internal/messaging"
	"github.com/linskybing/csvflow/internal/repository"
	"github.com/linskybing/csvflow/internal/storage"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const csvContentType = "text/csv"

// JobService drives the job lifecycle for users and the workflow runner.
type JobService struct {
	Repos    *repository.Repos
	blobs    storage.BlobStore
	notifier messaging.Notifier
	buckets  config.BlobConfig
	logger   *zap.Logger

	newFileID func() string
}

func NewJobService(repos *repository.Repos, blobs storage.BlobStore, notifier messaging.Notifier, buckets config.BlobConfig, logger *zap.Logger) *JobService {
	if notifier == nil {
		notifier = messaging.NopNotifier{}
	}
	return &JobService{
		Repos:     repos,
		blobs:     blobs,
		notifier:  notifier,
		buckets:   buckets,
		logger:    logger,
		newFileID: uuid.NewString,
	}
}

// UploadInput describes one received file.
type UploadInput struct {
	Name        string
	Size        int64
	ContentType string
	Content     io.Reader
}

// CallbackInput is the runner's status report.
type CallbackInput struct {
	FileID    string `json:"file_id" binding:"required" example:"3f1c2a9e-6b1d-4c55-9a47-5a2f0f9b8e11"`
	Status    string `json:"status" binding:"required" example:"Completed"`
	ResultURL string `json:"result_url" example:"http://minio:9000/processed/3f1c2a9e-6b1d-4c55-9a47-5a2f0f9b8e11_processed.csv"`
}

// SubmitInput names a Pending job and starts it.
type SubmitInput struct {
	FileID  string `json:"file_id" binding:"required" example:"3f1c2a9e-6b1d-4c55-9a47-5a2f0f9b8e11"`
	JobName string `json:"job_name" binding:"required" example:"demo"`
}

// Upload stores the blob and creates a Pending job. If the insert fails the
// blob is removed again so no orphan is left behind.
func (s *JobService) Upload(ctx context.Context, userID uint, in UploadInput) (*job.Job, error) {
	fileID := s.newFileID()
	key := job.UploadKey(fileID)

	contentType := in.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = csvContentType
	}
	if err := s.blobs.Put(ctx, s.buckets.UploadBucket, key, in.Content, in.Size, contentType); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	j := &job.Job{
		FileID:       fileID,
		Status:       job.StatusPending,
		UserID:       userID,
		OriginalName: in.Name,
		SizeBytes:    in.Size,
	}
	if err := s.Repos.Job.Create(ctx, j); err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), s.buckets.UploadBucket, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned upload",
				zap.String("file_id", fileID), zap.Error(delErr))
		}
		return nil, fmt.Errorf("create job: %w", err)
	}

	s.logger.Info("file uploaded",
		zap.Uint("user_id", userID),
		zap.String("file_id", fileID),
		zap.Int64("size_bytes", in.Size))
	return j, nil
}

// Submit moves a Pending job to Running and records its name.
func (s *JobService) Submit(ctx context.Context, userID uint, in SubmitInput) (*job.Job, error) {
	var out *job.Job
	err := s.Repos.ExecTx(ctx, func(tx *repository.Repos) error {
		j, err := s.lockOwned(ctx, tx, userID, in.FileID)
		if err != nil {
			return err
		}
		if !job.CanTransition(j.Status, job.StatusRunning) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, job.StatusRunning)
		}

		if err := tx.Job.UpdateStatus(ctx, j.FileID, job.StatusRunning); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if err := tx.Job.UpdateName(ctx, j.FileID, in.JobName); err != nil {
			return fmt.Errorf("update name: %w", err)
		}
		if err := s.recordEvent(ctx, tx, j, job.StatusRunning, job.UserActor(userID), map[string]any{"job_name": in.JobName}); err != nil {
			return err
		}

		j.Status = job.StatusRunning
		name := in.JobName
		j.JobName = &name
		out = j
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.announce(ctx, out, messaging.RoutingJobSubmitted)
	return out, nil
}

// callbackTargets are the statuses the runner may report.
var callbackTargets = map[job.Status]bool{
	job.StatusProcessing: true,
	job.StatusCompleted:  true,
	job.StatusFailed:     true,
}

// ApplyCallback records a status report from the workflow runner. Replaying
// the current status with the current result_url succeeds without changes.
func (s *JobService) ApplyCallback(ctx context.Context, in CallbackInput) (*job.Job, bool, error) {
	status, err := job.ParseStatus(in.Status)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidStatus, in.Status)
	}
	resultURL := strings.TrimSpace(in.ResultURL)
	if status == job.StatusCompleted && resultURL == "" {
		return nil, false, ErrMissingResultURL
	}

	var (
		out     *job.Job
		changed bool
	)
	err = s.Repos.ExecTx(ctx, func(tx *repository.Repos) error {
		j, err := tx.Job.LockByFileID(ctx, in.FileID)
		if err != nil {
			return notFound(err, ErrJobNotFound)
		}
		out = j

		if !callbackTargets[status] {
			return fmt.Errorf("%w: runner cannot report %s", ErrInvalidTransition, status)
		}

		var nextURL *string
		if status == job.StatusCompleted {
			nextURL = &resultURL
		}
		if j.Status == status && sameURL(j.ResultURL, nextURL) {
			return nil
		}
		if !job.CanTransition(j.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, status)
		}

		if err := tx.Job.UpdateStatus(ctx, j.FileID, status); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if !sameURL(j.ResultURL, nextURL) {
			if err := tx.Job.UpdateResultURL(ctx, j.FileID, nextURL); err != nil {
				return fmt.Errorf("update result url: %w", err)
			}
		}

		var detail map[string]any
		if nextURL != nil {
			detail = map[string]any{"result_url": *nextURL}
		}
		if err := s.recordEvent(ctx, tx, j, status, job.ActorRunner, detail); err != nil {
			return err
		}

		j.Status = status
		j.ResultURL = nextURL
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if changed {
		s.logger.Info("job status updated by runner",
			zap.String("file_id", out.FileID),
			zap.String("status", string(out.Status)))
	} else {
		s.logger.Debug("duplicate runner callback ignored",
			zap.String("file_id", out.FileID),
			zap.String("status", string(status)))
	}
	return out, changed, nil
}

func sameURL(a, b *string) bool {
	if a == nil || *a == "" {
		return b == nil || *b == ""
	}
	return b != nil && *a == *b
}

func (s *JobService) List(ctx context.Context, userID uint) ([]job.Job, error) {
	jobs, err := s.Repos.Job.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	if jobs == nil {
		jobs = []job.Job{}
	}
	return jobs, nil
}

// ListRunnable returns every job waiting for the runner.
func (s *JobService) ListRunnable(ctx context.Context) ([]job.Job, error) {
	jobs, err := s.Repos.Job.ListByStatus(ctx, job.StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("list running jobs: %w", err)
	}
	return jobs, nil
}

func (s *JobService) Get(ctx context.Context, userID, id uint) (*job.Job, error) {
	j, err := s.Repos.Job.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrJobNotFound)
	}
	if j.UserID != userID {
		return nil, ErrJobNotFound
	}
	return j, nil
}

// Delete removes the job and its history. Blob removal is best effort and
// never blocks deleting the record.
func (s *JobService) Delete(ctx context.Context, userID, id uint) error {
	j, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	// A retried job has no result_url but may still own an earlier result object.
	s.removeBlob(ctx, s.buckets.UploadBucket, j.UploadKey())
	s.removeBlob(ctx, s.buckets.ResultBucket, j.ResultKey())

	err = s.Repos.ExecTx(ctx, func(tx *repository.Repos) error {
		if err := tx.JobEvent.DeleteByJob(ctx, j.ID); err != nil {
			return fmt.Errorf("delete job events: %w", err)
		}
		if err := tx.Job.Delete(ctx, j.ID); err != nil {
			return notFound(err, ErrJobNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("job deleted", zap.Uint("job_id", j.ID), zap.String("file_id", j.FileID))
	return nil
}

func (s *JobService) removeBlob(ctx context.Context, bucket, key string) {
	if err := s.blobs.Delete(ctx, bucket, key); err != nil {
		s.logger.Warn("could not delete blob",
			zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
	}
}

// Retry sends a finished job back to Running and clears its result.
func (s *JobService) Retry(ctx context.Context, userID uint, fileID string) (*job.Job, error) {
	var out *job.Job
	err := s.Repos.ExecTx(ctx, func(tx *repository.Repos) error {
		j, err := s.lockOwned(ctx, tx, userID, fileID)
		if err != nil {
			return err
		}
		if !j.Status.IsTerminal() || !job.CanTransition(j.Status, job.StatusRunning) {
			return fmt.Errorf("%w: cannot retry a %s job", ErrInvalidTransition, j.Status)
		}

		if err := tx.Job.UpdateStatus(ctx, j.FileID, job.StatusRunning); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if err := tx.Job.UpdateResultURL(ctx, j.FileID, nil); err != nil {
			return fmt.Errorf("clear result url: %w", err)
		}
		if err := s.recordEvent(ctx, tx, j, job.StatusRunning, job.UserActor(userID), map[string]any{"retry": true}); err != nil {
			return err
		}

		j.Status = job.StatusRunning
		j.ResultURL = nil
		out = j
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.announce(ctx, out, messaging.RoutingJobRetried)
	return out, nil
}

// History returns the status changes of a job, oldest first.
func (s *JobService) History(ctx context.Context, userID, id uint) ([]job.Event, error) {
	j, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	events, err := s.Repos.JobEvent.ListByJob(ctx, j.ID)
	if err != nil {
		return nil, fmt.Errorf("list job events: %w", err)
	}
	if events == nil {
		events = []job.Event{}
	}
	return events, nil
}

func (s *JobService) lockOwned(ctx context.Context, tx *repository.Repos, userID uint, fileID string) (*job.Job, error) {
	j, err := tx.Job.LockByFileID(ctx, fileID)
	if err != nil {
		return nil, notFound(err, ErrJobNotFound)
	}
	if j.UserID != userID {
		return nil, ErrJobNotFound
	}
	return j, nil
}

func (s *JobService) recordEvent(ctx context.Context, tx *repository.Repos, j *job.Job, to job.Status, actor string, detail map[string]any) error {
	ev := &job.Event{
		JobID:      j.ID,
		FromStatus: j.Status,
		ToStatus:   to,
		Actor:      actor,
	}
	if len(detail) > 0 {
		raw, err := json.Marshal(detail)
		if err != nil {
			return fmt.Errorf("encode event detail: %w", err)
		}
		ev.Detail = datatypes.JSON(raw)
	}
	if err := tx.JobEvent.Append(ctx, ev); err != nil {
		return fmt.Errorf("append job event: %w", err)
	}
	return nil
}

// announce publishes after commit. A broker outage leaves the job Running,
// where the runner's poller still finds it.
func (s *JobService) announce(ctx context.Context, j *job.Job, routingKey string) {
	err := s.notifier.Publish(ctx, messaging.JobMessage{
		JobID:  j.ID,
		FileID: j.FileID,
		UserID: j.UserID,
		Event:  routingKey,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("failed to publish job message",
			zap.String("file_id", j.FileID),
			zap.String("routing_key", routingKey),
			zap.Error(err))
	}
}
