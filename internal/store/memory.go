package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// MemoryStore is a concurrency-safe in-memory store of predictions and users.
type MemoryStore struct {
	mu sync.RWMutex

	// oldest first
	predictions []Prediction

	// key: email
	users map[string]User

	// retention configuration
	maxHistory int // max number of predictions kept (0 = unlimited)

	clock clockwork.Clock
}

// NewMemoryStore creates a new MemoryStore.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		users:      make(map[string]User),
		maxHistory: maxHistory,
		clock:      clock,
	}
}

// SavePrediction assigns an ID and timestamp, appends the record and enforces retention.
func (s *MemoryStore) SavePrediction(_ context.Context, p Prediction) (Prediction, error) {
	p.ID = uuid.NewString()
	p.CreatedAt = s.clock.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.predictions = append(s.predictions, p)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(s.predictions) > s.maxHistory {
		over := len(s.predictions) - s.maxHistory
		s.predictions = append([]Prediction(nil), s.predictions[over:]...)
	}
	return p, nil
}

// RecentPredictions returns up to limit predictions, newest first. A non-empty email
// restricts the result to that user's predictions.
func (s *MemoryStore) RecentPredictions(_ context.Context, limit int, email string) ([]Prediction, error) {
	if limit <= 0 {
		return []Prediction{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Prediction, 0, limit)
	for i := len(s.predictions) - 1; i >= 0 && len(result) < limit; i-- {
		p := s.predictions[i]
		if email != "" && p.Email != email {
			continue
		}
		result = append(result, p)
	}
	return result, nil
}

// CreateUser stores a new account. The email must not be registered yet.
func (s *MemoryStore) CreateUser(_ context.Context, u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.Email]; ok {
		return User{}, ErrUserExists
	}
	u.ID = uuid.NewString()
	u.CreatedAt = s.clock.Now().UTC()
	s.users[u.Email] = u
	return u, nil
}

// UserByEmail returns the account registered under email.
func (s *MemoryStore) UserByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

// Close is a no-op so MemoryStore and SQLiteStore are interchangeable.
func (s *MemoryStore) Close() error { return nil }
