package runner

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/linskybing/csvflow/internal/config"
	"github.com/linskybing/csvflow/internal/domain/job"
	"github.com/linskybing/csvflow/internal/messaging"
	"github.com/linskybing/csvflow/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const resultContentType = "application/csv"

// JobSource lists jobs waiting to be processed.
type JobSource interface {
	ListRunnable(ctx context.Context) ([]job.Job, error)
}

// Runner polls for Running jobs and processes them with bounded concurrency.
type Runner struct {
	source   JobSource
	blobs    storage.BlobStore
	notifier Notifier
	buckets  config.BlobConfig
	cfg      config.RunnerConfig
	logger   *zap.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

func New(source JobSource, blobs storage.BlobStore, notifier Notifier, buckets config.BlobConfig, cfg config.RunnerConfig, logger *zap.Logger) *Runner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Runner{
		source:   source,
		blobs:    blobs,
		notifier: notifier,
		buckets:  buckets,
		cfg:      cfg,
		logger:   logger,
		inFlight: make(map[string]bool),
	}
}

// Start polls until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	r.logger.Info("runner started",
		zap.Duration("poll_interval", r.cfg.PollInterval),
		zap.Int("concurrency", r.cfg.Concurrency))

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := r.RunOnce(ctx); err != nil {
			r.logger.Warn("poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			r.logger.Info("runner stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce processes every job that is Running right now. Failures of single
// jobs are reported through the callback and do not fail the batch.
func (r *Runner) RunOnce(ctx context.Context) error {
	jobs, err := r.source.ListRunnable(ctx)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}
	r.logger.Info("fetched running jobs", zap.Int("count", len(jobs)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i := range jobs {
		fileID := jobs[i].FileID
		g.Go(func() error {
			if err := r.Process(gctx, fileID); err != nil {
				r.logger.Warn("job processing failed", zap.String("file_id", fileID), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

// HandleMessage processes the job named by a broker message.
func (r *Runner) HandleMessage(ctx context.Context, msg messaging.JobMessage) error {
	return r.Process(ctx, msg.FileID)
}

// Process runs one job: Processing, then Completed with a result URL or Failed.
func (r *Runner) Process(ctx context.Context, fileID string) error {
	if !r.claim(fileID) {
		return nil
	}
	defer r.release(fileID)

	log := r.logger.With(zap.String("file_id", fileID))
	log.Info("starting job processing")

	if err := r.notifier.Notify(ctx, fileID, job.StatusProcessing, ""); err != nil {
		return err
	}

	resultURL, err := r.execute(ctx, fileID)
	if err == nil {
		err = r.notifier.Notify(ctx, fileID, job.StatusCompleted, resultURL)
	}
	if err != nil {
		// Processing jobs are never polled again; every failure past this point ends in Failed.
		log.Error("job failed", zap.Error(err))
		if nerr := r.notifier.Notify(context.WithoutCancel(ctx), fileID, job.StatusFailed, ""); nerr != nil {
			log.Error("failed to report failure", zap.Error(nerr))
		}
		return err
	}

	log.Info("job completed", zap.String("result_url", resultURL))
	return nil
}

func (r *Runner) execute(ctx context.Context, fileID string) (string, error) {
	raw, err := r.blobs.Get(ctx, r.buckets.UploadBucket, job.UploadKey(fileID))
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}

	var buf bytes.Buffer
	if err := Transform(bytes.NewReader(raw), &buf); err != nil {
		return "", fmt.Errorf("transform: %w", err)
	}

	key := job.ResultKey(fileID)
	if err := r.blobs.Put(ctx, r.buckets.ResultBucket, key, &buf, int64(buf.Len()), resultContentType); err != nil {
		return "", fmt.Errorf("upload result: %w", err)
	}
	return r.resultURL(key), nil
}

func (r *Runner) resultURL(key string) string {
	return strings.TrimRight(r.buckets.PublicURL, "/") + "/" + r.buckets.ResultBucket + "/" + key
}

func (r *Runner) claim(fileID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight[fileID] {
		return false
	}
	r.inFlight[fileID] = true
	return true
}

func (r *Runner) release(fileID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, fileID)
}
