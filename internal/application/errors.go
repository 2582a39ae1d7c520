package application

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrJobNotFound         = errors.New("job not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrUsernameTaken       = errors.New("username already registered")
	ErrInvalidCredentials  = errors.New("incorrect username or password")
	ErrUnauthorized        = errors.New("could not validate credentials")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrInvalidStatus       = errors.New("invalid job status")
	ErrMissingResultURL    = errors.New("result_url is required when status is Completed")
	ErrPasswordTooLong     = errors.New("password must be at most 72 bytes")
	ErrPasswordHashFailure = errors.New("failed to hash password")
)

// notFound maps a missing row onto the given sentinel.
func notFound(err error, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
