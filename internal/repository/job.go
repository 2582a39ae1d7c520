package repository

//go:generate mockgen -source=job.go -destination=mock/job.go -package=mock

import (
	"context"

	"github.com/linskybing/csvflow/internal/domain/job"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobRepo matches the domain job repository contract.
type JobRepo interface {
	job.Repository
	WithTx(tx *gorm.DB) JobRepo
}

type DBJobRepo struct {
	db *gorm.DB
}

func NewJobRepo(db *gorm.DB) *DBJobRepo {
	return &DBJobRepo{
		db: db,
	}
}

func (r *DBJobRepo) Create(ctx context.Context, j *job.Job) error {
	return r.db.WithContext(ctx).Create(j).Error
}

func (r *DBJobRepo) FindByFileID(ctx context.Context, fileID string) (*job.Job, error) {
	var j job.Job
	err := r.db.WithContext(ctx).Where("file_id = ?", fileID).First(&j).Error
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *DBJobRepo) LockByFileID(ctx context.Context, fileID string) (*job.Job, error) {
	var j job.Job
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("file_id = ?", fileID).
		First(&j).Error
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *DBJobRepo) FindByID(ctx context.Context, id uint) (*job.Job, error) {
	var j job.Job
	err := r.db.WithContext(ctx).First(&j, id).Error
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *DBJobRepo) ListByUser(ctx context.Context, userID uint) ([]job.Job, error) {
	jobs := []job.Job{}
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&jobs).Error
	return jobs, err
}

func (r *DBJobRepo) ListByStatus(ctx context.Context, status job.Status) ([]job.Job, error) {
	jobs := []job.Job{}
	err := r.db.WithContext(ctx).Where("status = ?", status).Order("id ASC").Find(&jobs).Error
	return jobs, err
}

func (r *DBJobRepo) UpdateStatus(ctx context.Context, fileID string, status job.Status) error {
	return r.updateColumn(ctx, fileID, "status", status)
}

func (r *DBJobRepo) UpdateResultURL(ctx context.Context, fileID string, url *string) error {
	return r.updateColumn(ctx, fileID, "result_url", url)
}

func (r *DBJobRepo) UpdateName(ctx context.Context, fileID string, name string) error {
	return r.updateColumn(ctx, fileID, "job_name", name)
}

func (r *DBJobRepo) updateColumn(ctx context.Context, fileID, column string, value any) error {
	res := r.db.WithContext(ctx).Model(&job.Job{}).
		Where("file_id = ?", fileID).
		Updates(map[string]any{column: value})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *DBJobRepo) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&job.Job{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *DBJobRepo) WithTx(tx *gorm.DB) JobRepo {
	if tx == nil {
		return r
	}
	return &DBJobRepo{
		db: tx,
	}
}
