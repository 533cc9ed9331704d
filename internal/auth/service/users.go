package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wardenauth/warden/internal/auth/audit"
	"github.com/wardenauth/warden/internal/auth/domain"
	"github.com/wardenauth/warden/internal/auth/store"
	"github.com/wardenauth/warden/pkg/idx"
	"github.com/wardenauth/warden/pkg/passhash"
)

// UserService covers account provisioning. It exists so the system is
// operable end to end; richer profile management lives elsewhere.
type UserService struct {
	Store  store.Store
	Hasher *passhash.Hasher
	Audit  audit.Sink
}

func NewUserService(st store.Store, hasher *passhash.Hasher, sink audit.Sink) *UserService {
	return &UserService{Store: st, Hasher: hasher, Audit: sink}
}

// RegisterUser creates an account with a freshly hashed password.
// Usernames are stored lower-cased so login lookups are case-insensitive.
func (s *UserService) RegisterUser(ctx context.Context, username, email, password string) (domain.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrUsernameTaken
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	s.Audit.Emit(ctx, audit.Event{
		Severity: audit.SeverityInfo,
		Category: "account",
		Message:  "user registered",
		UserID:   user.ID,
	})
	return user, nil
}

// GetUser returns the stored record for id.
func (s *UserService) GetUser(ctx context.Context, id string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, id)
}

// ChangePassword swaps the stored hash after proving the current password
// and revokes every refresh token in the same transaction, so stolen
// sessions die with the old credential.
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if newPassword == "" {
		return ErrInvalidCredentials
	}

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	if err := s.Hasher.Verify(currentPassword, user.PasswordHash); err != nil {
		if errors.Is(err, passhash.ErrMismatch) || errors.Is(err, passhash.ErrEmptyPassword) {
			s.Audit.Emit(ctx, audit.Event{
				Severity: audit.SeverityWarning,
				Category: "account",
				Message:  "password change rejected: wrong password",
				UserID:   user.ID,
			})
			return ErrInvalidCredentials
		}
		return fmt.Errorf("verify password: %w", err)
	}

	newHash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePasswordHash(ctx, user.ID, newHash); err != nil {
			return fmt.Errorf("update password hash: %w", err)
		}
		if err := tx.RefreshTokens().DeleteAllUserRefreshTokens(ctx, user.ID); err != nil {
			return fmt.Errorf("revoke refresh tokens: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.Audit.Emit(ctx, audit.Event{
		Severity: audit.SeverityAlert,
		Category: "account",
		Message:  "password changed",
		UserID:   user.ID,
	})
	return nil
}
