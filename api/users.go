package main

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

type userStore interface {
	getUserByEmail(ctx context.Context, email string) (*user, error)
	getUserByID(ctx context.Context, id int64) (*user, error)
	insertUser(ctx context.Context, u *user) error
	updateUserPassword(ctx context.Context, u *user) error
}

type userStorage struct {
	db      *sql.DB
	timeout time.Duration
}

func newUserStorage(db *sql.DB, timeout time.Duration) *userStorage {
	return &userStorage{db: db, timeout: timeout}
}

// getUserByEmail matches the email exactly, inactive users included, so that
// registration can see every address the unique index covers.
func (s *userStorage) getUserByEmail(ctx context.Context, email string) (*user, error) {
	query := `SELECT id, name, email, password_hash, is_active, created_at, updated_at
			  FROM users
			  WHERE email = $1`
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return scanUser(s.db.QueryRowContext(ctx, query, email))
}

func (s *userStorage) getUserByID(ctx context.Context, id int64) (*user, error) {
	query := `SELECT id, name, email, password_hash, is_active, created_at, updated_at
			  FROM users
			  WHERE id = $1`
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

func scanUser(row *sql.Row) (*user, error) {
	var u user
	var updatedAt sql.NullTime
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &updatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, errRecordNotFound
		default:
			return nil, err
		}
	}
	if updatedAt.Valid {
		u.UpdatedAt = &updatedAt.Time
	}
	return &u, nil
}

func (s *userStorage) insertUser(ctx context.Context, u *user) error {
	query := `INSERT INTO users (name, email, password_hash, is_active)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id, created_at`

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.db.QueryRowContext(ctx, query, u.Name, u.Email, u.PasswordHash, u.IsActive).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return errDuplicateEmail
		}
		return err
	}
	return nil
}

func (s *userStorage) updateUserPassword(ctx context.Context, u *user) error {
	query := `UPDATE users SET password_hash = $1, updated_at = now()
			  WHERE id = $2 AND is_active
			  RETURNING updated_at`
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx, query, u.PasswordHash, u.ID).Scan(&updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errRecordNotFound
		}
		return err
	}
	u.UpdatedAt = &updatedAt
	return nil
}

const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
