package repository

import (
	"context"

	"gorm.io/gorm"
)

type Repos struct {
	User     UserRepo
	Job      JobRepo
	JobEvent JobEventRepo

	db *gorm.DB
}

func NewRepositories(db *gorm.DB) *Repos {
	return &Repos{
		User:     NewUserRepo(db),
		Job:      NewJobRepo(db),
		JobEvent: NewJobEventRepo(db),
		db:       db,
	}
}

func (r *Repos) WithTx(tx *gorm.DB) *Repos {
	return &Repos{
		User:     r.User.WithTx(tx),
		Job:      r.Job.WithTx(tx),
		JobEvent: r.JobEvent.WithTx(tx),
		db:       tx,
	}
}

// ExecTx runs fn inside one database transaction. Repos built without a
// database handle (unit tests) run fn directly against themselves.
func (r *Repos) ExecTx(ctx context.Context, fn func(*Repos) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
