package store

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")

	// ErrUserExists is returned when registering an email that is already taken.
	ErrUserExists = errors.New("user already exists")
)

// Prediction is one persisted hazard prediction.
type Prediction struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	City      string    `json:"city"`
	Label     string    `json:"prediction"`
	RiskScore float64   `json:"risk_score"`
	CreatedAt time.Time `json:"timestamp"`
}

// User is a registered account. PasswordHash is never serialised.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
