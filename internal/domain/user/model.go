package user

import (
	"context"
	"time"
)

// User is an account that owns jobs.
type User struct {
	ID             uint      `gorm:"primaryKey;column:id" json:"id"`
	Username       string    `gorm:"size:50;not null;uniqueIndex" json:"username"`
	HashedPassword string    `gorm:"column:hashed_password;not null" json:"-"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}

// Repository defines data access for users.
type Repository interface {
	Create(ctx context.Context, u *User) error
	FindByUsername(ctx context.Context, username string) (User, error)
}
