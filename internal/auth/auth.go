package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/i474232898/weather-risk/internal/common"
	"github.com/i474232898/weather-risk/internal/store"
)

const (
	minPasswordLen = 6
	maxPasswordLen = 72 // bcrypt ignores anything longer
)

var (
	ErrMissingCredentials = errors.New("email and password required")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", minPasswordLen)
	ErrPasswordTooLong    = fmt.Errorf("password must be at most %d bytes", maxPasswordLen)
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u store.User) (store.User, error)
	UserByEmail(ctx context.Context, email string) (store.User, error)
}

// Service registers and authenticates users. It issues no sessions.
type Service struct {
	users  UserStore
	cost   int
	logger *slog.Logger
}

func NewService(users UserStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, cost: bcrypt.DefaultCost, logger: logger}
}

// Register creates an account. Emails are compared case-insensitively.
func (s *Service) Register(ctx context.Context, email, password, fullName string) (store.User, error) {
	email = common.NormalizeEmail(email)
	if email == "" || password == "" {
		return store.User{}, ErrMissingCredentials
	}
	if len(password) < minPasswordLen {
		return store.User{}, ErrWeakPassword
	}
	if len(password) > maxPasswordLen {
		return store.User{}, ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.CreateUser(ctx, store.User{
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: string(hash),
	})
	if err != nil {
		return store.User{}, err
	}
	s.logger.Info("user registered", "user_id", u.ID)
	return u, nil
}

// Login checks the credentials and returns the matching account.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (store.User, error) {
	email = common.NormalizeEmail(email)
	if email == "" || password == "" {
		return store.User{}, ErrMissingCredentials
	}

	u, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	return u, nil
}
