package messaging

import (
	"context"
	"time"
)

const (
	RoutingJobSubmitted = "job.submitted"
	RoutingJobRetried   = "job.retried"

	// bindingAllJobs matches every job routing key on the topic exchange.
	bindingAllJobs = "job.*"
)

// JobMessage is the body published when a job becomes runnable.
type JobMessage struct {
	JobID  uint      `json:"job_id"`
	FileID string    `json:"file_id"`
	UserID uint      `json:"user_id"`
	Event  string    `json:"event"`
	At     time.Time `json:"at"`
}

// Notifier announces that a job entered Running.
type Notifier interface {
	Publish(ctx context.Context, msg JobMessage) error
}

// NopNotifier drops every message. Used when RABBITMQ_URL is not set.
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, JobMessage) error { return nil }
