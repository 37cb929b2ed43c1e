package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"
)

//go:embed sql/schema.sql
var schemaSQL string

const (
	insertPredictionSQL = `INSERT INTO recent_predictions (id, email, city, prediction, risk_score, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

	trimPredictionsSQL = `DELETE FROM recent_predictions WHERE id NOT IN (
  SELECT id FROM recent_predictions ORDER BY created_at DESC, rowid DESC LIMIT ?)`

	recentPredictionsSQL = `SELECT id, email, city, prediction, risk_score, created_at
FROM recent_predictions ORDER BY created_at DESC, rowid DESC LIMIT ?`

	recentPredictionsByEmailSQL = `SELECT id, email, city, prediction, risk_score, created_at
FROM recent_predictions WHERE email = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`

	insertUserSQL = `INSERT INTO users (id, email, full_name, password_hash, created_at)
VALUES (?, ?, ?, ?, ?) ON CONFLICT(email) DO NOTHING`

	userByEmailSQL = `SELECT id, email, full_name, password_hash, created_at FROM users WHERE email = ?`
)

// SQLiteStore persists predictions and users in a SQLite file.
type SQLiteStore struct {
	db         *sql.DB
	maxHistory int
	clock      clockwork.Clock
	logger     *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(path string, maxHistory int, clock clockwork.Clock, logger *slog.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite: path not specified")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	// A single writer avoids "database is locked" under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Debug("sqlite store ready", "path", path)
	return &SQLiteStore{db: db, maxHistory: maxHistory, clock: clock, logger: logger}, nil
}

func (s *SQLiteStore) SavePrediction(ctx context.Context, p Prediction) (Prediction, error) {
	p.ID = uuid.NewString()
	p.CreatedAt = s.clock.Now().UTC().Truncate(time.Millisecond)

	if _, err := s.db.ExecContext(ctx, insertPredictionSQL,
		p.ID, p.Email, p.City, p.Label, p.RiskScore, p.CreatedAt.UnixMilli()); err != nil {
		return Prediction{}, fmt.Errorf("insert prediction: %w", err)
	}

	if s.maxHistory > 0 {
		if _, err := s.db.ExecContext(ctx, trimPredictionsSQL, s.maxHistory); err != nil {
			s.logger.Warn("trim predictions failed", "error", err)
		}
	}
	return p, nil
}

func (s *SQLiteStore) RecentPredictions(ctx context.Context, limit int, email string) ([]Prediction, error) {
	if limit <= 0 {
		return []Prediction{}, nil
	}

	var (
		rows *sql.Rows
		err  error
	)
	if email != "" {
		rows, err = s.db.QueryContext(ctx, recentPredictionsByEmailSQL, email, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, recentPredictionsSQL, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("close prediction rows", "error", err)
		}
	}()

	out := []Prediction{}
	for rows.Next() {
		var (
			p  Prediction
			ms int64
		)
		if err := rows.Scan(&p.ID, &p.Email, &p.City, &p.Label, &p.RiskScore, &ms); err != nil {
			return nil, err
		}
		p.CreatedAt = time.UnixMilli(ms).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u User) (User, error) {
	u.ID = uuid.NewString()
	u.CreatedAt = s.clock.Now().UTC().Truncate(time.Millisecond)

	res, err := s.db.ExecContext(ctx, insertUserSQL, u.ID, u.Email, u.FullName, u.PasswordHash, u.CreatedAt.UnixMilli())
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	if n == 0 {
		return User{}, ErrUserExists
	}
	return u, nil
}

func (s *SQLiteStore) UserByEmail(ctx context.Context, email string) (User, error) {
	var (
		u  User
		ms int64
	)
	err := s.db.QueryRowContext(ctx, userByEmailSQL, email).Scan(&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("query user: %w", err)
	}
	u.CreatedAt = time.UnixMilli(ms).UTC()
	return u, nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
