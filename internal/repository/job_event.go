package repository

//go:generate mockgen -source=job_event.go -destination=mock/job_event.go -package=mock

import (
	"context"

	"github.com/linskybing/csvflow/internal/domain/job"
	"gorm.io/gorm"
)

type JobEventRepo interface {
	job.EventRepository
	WithTx(tx *gorm.DB) JobEventRepo
}

type DBJobEventRepo struct {
	db *gorm.DB
}

func NewJobEventRepo(db *gorm.DB) *DBJobEventRepo {
	return &DBJobEventRepo{db: db}
}

func (r *DBJobEventRepo) Append(ctx context.Context, e *job.Event) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *DBJobEventRepo) ListByJob(ctx context.Context, jobID uint) ([]job.Event, error) {
	events := []job.Event{}
	err := r.db.WithContext(ctx).Where("job_id = ?", jobID).Order("id ASC").Find(&events).Error
	return events, err
}

func (r *DBJobEventRepo) DeleteByJob(ctx context.Context, jobID uint) error {
	return r.db.WithContext(ctx).Where("job_id = ?", jobID).Delete(&job.Event{}).Error
}

func (r *DBJobEventRepo) WithTx(tx *gorm.DB) JobEventRepo {
	if tx == nil {
		return r
	}
	return &DBJobEventRepo{db: tx}
}
