package job

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Status represents the current state of a job
type Status string

const (
	StatusPending    Status = "Pending"    // Uploaded, not yet submitted
	StatusRunning    Status = "Running"    // Submitted, waiting for the runner
	StatusProcessing Status = "Processing" // Picked up by the runner
	StatusCompleted  Status = "Completed"  // Result uploaded
	StatusFailed     Status = "Failed"     // Runner gave up
)

var allStatuses = []Status{StatusPending, StatusRunning, StatusProcessing, StatusCompleted, StatusFailed}

// transitions lists every legal (from -> to) move.
var transitions = map[Status][]Status{
	StatusPending:    {StatusRunning},
	StatusRunning:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {StatusRunning},
	StatusFailed:     {StatusRunning},
}

// ParseStatus maps a free-form status string onto the enum. Matching is
// case-insensitive because older runners report "running".
func ParseStatus(raw string) (Status, error) {
	s := strings.TrimSpace(raw)
	for _, st := range allStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown job status %q", raw)
}

// IsTerminal reports whether the runner is done with the job.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a job may move from one status to another.
// Staying in the same status is never a transition.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Job is one uploaded CSV file and the processing state attached to it.
type Job struct {
	ID           uint      `gorm:"primaryKey;column:id" json:"id"`
	FileID       string    `gorm:"size:64;not null;uniqueIndex;column:file_id" json:"file_id"`
	Status       Status    `gorm:"size:20;not null;index;default:'Pending'" json:"status"`
	JobName      *string   `gorm:"size:255;column:job_name" json:"job_name,omitempty"`
	ResultURL    *string   `gorm:"type:text;column:result_url" json:"result_url,omitempty"`
	UserID       uint      `gorm:"not null;index;column:user_id" json:"user_id"`
	OriginalName string    `gorm:"size:255;column:original_name" json:"original_name,omitempty"`
	SizeBytes    int64     `gorm:"column:size_bytes" json:"size_bytes"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the database table name
func (Job) TableName() string {
	return "jobs"
}

// UploadKey is the object key of the raw upload.
func (j *Job) UploadKey() string {
	return UploadKey(j.FileID)
}

// ResultKey is the object key the runner writes the processed file to.
func (j *Job) ResultKey() string {
	return ResultKey(j.FileID)
}

func UploadKey(fileID string) string {
	return fileID + ".csv"
}

func ResultKey(fileID string) string {
	return fileID + "_processed.csv"
}

// Event records one status change of a job.
type Event struct {
	ID         uint           `gorm:"primaryKey;column:id" json:"id"`
	JobID      uint           `gorm:"not null;index;column:job_id" json:"job_id"`
	FromStatus Status         `gorm:"size:20;column:from_status" json:"from_status"`
	ToStatus   Status         `gorm:"size:20;not null;column:to_status" json:"to_status"`
	Actor      string         `gorm:"size:64;column:actor" json:"actor"`
	Detail     datatypes.JSON `gorm:"column:detail" json:"detail,omitempty" swaggertype:"object"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Event) TableName() string {
	return "job_events"
}

// ActorRunner marks events written by the workflow runner callback.
const ActorRunner = "runner"

// UserActor formats the actor string for a user-triggered change.
func UserActor(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}
