package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/linskybing/csvflow/internal/config"
	"github.com/linskybing/csvflow/internal/domain/user"
	"github.com/linskybing/csvflow/internal/repository"
	"github.com/linskybing/csvflow/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthService owns signup, password verification and bearer tokens.
type AuthService struct {
	Repos  *repository.Repos
	secret []byte
	ttl    time.Duration
	issuer string
	logger *zap.Logger

	now func() time.Time
}

func NewAuthService(repos *repository.Repos, cfg config.AuthConfig, logger *zap.Logger) *AuthService {
	return &AuthService{
		Repos:  repos,
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL,
		issuer: cfg.Issuer,
		logger: logger,
		now:    time.Now,
	}
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// equalizeTiming burns one bcrypt comparison so unknown usernames cost the
// same as wrong passwords.
func equalizeTiming(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("csvflow-dummy-password"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

func (s *AuthService) Signup(ctx context.Context, input user.SignupInput) (*user.User, error) {
	_, err := s.Repos.User.FindByUsername(ctx, input.Username)
	if err == nil {
		return nil, ErrUsernameTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		// bcrypt only reads 72 bytes; multi-byte input can pass the binding and still exceed it.
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, ErrPasswordTooLong
		}
		return nil, ErrPasswordHashFailure
	}

	usr := &user.User{
		Username:       input.Username,
		HashedPassword: string(hashed),
	}
	if err := s.Repos.User.Create(ctx, usr); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user signed up", zap.Uint("user_id", usr.ID), zap.String("username", usr.Username))
	return usr, nil
}

// isUniqueViolation catches the insert that lost a race with a concurrent signup.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Authenticate returns ErrInvalidCredentials for both unknown users and wrong passwords.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*user.User, error) {
	usr, err := s.Repos.User.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			equalizeTiming(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(usr.HashedPassword), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &usr, nil
}

// IssueToken signs an HS256 token whose subject is the username.
func (s *AuthService) IssueToken(usr *user.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := &types.Claims{
		UserID: usr.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   usr.Username,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Login authenticates and issues a token in one step.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	usr, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.IssueToken(usr)
}

// Resolve verifies a bearer token and loads the user it names.
func (s *AuthService) Resolve(ctx context.Context, tokenStr string) (*user.User, error) {
	claims := &types.Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrUnauthorized)
	}

	usr, err := s.Repos.User.FindByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrUnauthorized, ErrUserNotFound)
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return &usr, nil
}
