package job

import "context"

// Repository defines data access interface for jobs
type Repository interface {
	Create(ctx context.Context, job *Job) error
	FindByFileID(ctx context.Context, fileID string) (*Job, error)
	FindByID(ctx context.Context, id uint) (*Job, error)
	// LockByFileID loads the job with a row lock; only meaningful inside a transaction.
	LockByFileID(ctx context.Context, fileID string) (*Job, error)
	ListByUser(ctx context.Context, userID uint) ([]Job, error)
	ListByStatus(ctx context.Context, status Status) ([]Job, error)
	UpdateStatus(ctx context.Context, fileID string, status Status) error
	UpdateResultURL(ctx context.Context, fileID string, url *string) error
	UpdateName(ctx context.Context, fileID string, name string) error
	Delete(ctx context.Context, id uint) error
}

// EventRepository stores the status history of jobs.
type EventRepository interface {
	Append(ctx context.Context, event *Event) error
	ListByJob(ctx context.Context, jobID uint) ([]Event, error)
	DeleteByJob(ctx context.Context, jobID uint) error
}
