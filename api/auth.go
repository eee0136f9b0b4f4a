package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const minBcryptCost = 12

type authService struct {
	users    userStore
	tokens   *tokenIssuer
	throttle *loginThrottle
	hashCost int
	logger   *slog.Logger

	dummyOnce sync.Once
	dummyHash []byte
}

type loginResult struct {
	Token     string    `json:"token"`
	User      *user     `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *authService) hashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
}

// dummy returns a hash to compare against when no account matches, so that an
// unknown email costs the same time as a wrong password.
func (s *authService) dummy() []byte {
	s.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.hashCost)
		if err != nil {
			s.logger.Error("dummy_hash_failed", "error", err)
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

func (s *authService) Register(ctx context.Context, name, email, password string) (*user, error) {
	_, err := s.users.getUserByEmail(ctx, email)
	switch {
	case err == nil:
		s.logger.Warn("registration_rejected", "reason", "email already exists", "email", email)
		return nil, errDuplicateEmail
	case errors.Is(err, errRecordNotFound):
	default:
		s.logger.Error("registration_failed", "op", "get_user_by_email", "email", email, "error", err)
		return nil, fmt.Errorf("register %s: %w", email, err)
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("register %s: hash password: %w", email, err)
	}

	u := &user{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	}
	err = s.users.insertUser(ctx, u)
	if err != nil {
		if errors.Is(err, errDuplicateEmail) {
			s.logger.Warn("registration_rejected", "reason", "email already exists", "email", email)
			return nil, err
		}
		s.logger.Error("registration_failed", "op", "insert_user", "email", email, "error", err)
		return nil, fmt.Errorf("register %s: %w", email, err)
	}

	s.logger.Info("user_registered", "user_id", u.ID)
	return u, nil
}

// Authenticate fails with errInvalidCredentials for an unknown email, an
// inactive account, a wrong password and a throttled attempt alike. Failed
// attempts are counted per email and client address, so guesses from one
// address do not lock the owner out everywhere else.
func (s *authService) Authenticate(ctx context.Context, email, password, clientIP string) (*loginResult, error) {
	key := email + "|" + clientIP
	if s.throttle.Locked(key) {
		s.logger.Warn("login_throttled", "email", email, "ip", clientIP)
		return nil, errInvalidCredentials
	}

	u, err := s.users.getUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, errRecordNotFound) {
		s.logger.Error("login_failed", "op", "get_user_by_email", "email", email, "error", err)
		return nil, fmt.Errorf("authenticate %s: %w", email, err)
	}

	hash := s.dummy()
	if u != nil && u.IsActive {
		hash = u.PasswordHash
	}
	match := bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
	if u == nil || !u.IsActive || !match {
		s.throttle.Fail(key)
		s.logger.Warn("login_rejected", "email", email)
		return nil, errInvalidCredentials
	}
	s.throttle.Clear(key)

	token, expiresAt, err := s.tokens.issue(u)
	if err != nil {
		s.logger.Error("login_failed", "op", "issue_token", "user_id", u.ID, "error", err)
		return nil, fmt.Errorf("authenticate %s: issue token: %w", email, err)
	}

	s.logger.Info("user_logged_in", "user_id", u.ID)
	return &loginResult{Token: token, User: u, ExpiresAt: expiresAt}, nil
}

func (s *authService) activeUser(ctx context.Context, userID int64) (*user, error) {
	u, err := s.users.getUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, errRecordNotFound
	}
	return u, nil
}

func (s *authService) Profile(ctx context.Context, userID int64) (*user, error) {
	u, err := s.activeUser(ctx, userID)
	if err != nil {
		if errors.Is(err, errRecordNotFound) {
			return nil, err
		}
		s.logger.Error("profile_failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("profile %d: %w", userID, err)
	}
	return u, nil
}

func (s *authService) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) (*user, error) {
	u, err := s.activeUser(ctx, userID)
	if err != nil {
		if errors.Is(err, errRecordNotFound) {
			return nil, err
		}
		s.logger.Error("change_password_failed", "op", "get_user_by_id", "user_id", userID, "error", err)
		return nil, fmt.Errorf("change password %d: %w", userID, err)
	}

	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(currentPassword)) != nil {
		s.logger.Warn("change_password_rejected", "reason", "invalid current password", "user_id", userID)
		return nil, errInvalidCredentials
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("change password %d: hash password: %w", userID, err)
	}
	u.PasswordHash = hash

	err = s.users.updateUserPassword(ctx, u)
	if err != nil {
		if errors.Is(err, errRecordNotFound) {
			return nil, err
		}
		s.logger.Error("change_password_failed", "op", "update_user_password", "user_id", userID, "error", err)
		return nil, fmt.Errorf("change password %d: %w", userID, err)
	}

	s.logger.Info("password_changed", "user_id", userID)
	return u, nil
}

func (s *authService) ValidateToken(token string) (*tokenClaims, error) {
	return s.tokens.validate(token)
}
