package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/wardenauth/warden/internal/auth/audit"
	"github.com/wardenauth/warden/internal/auth/domain"
	"github.com/wardenauth/warden/internal/auth/store"
)

// Refresh rotates a refresh token: the presented token is consumed and a
// new pair is issued atomically. A token that cannot be found, has
// expired, or loses a concurrent rotation race all fail closed with
// ErrInvalidRefresh.
func (s *LoginService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	var (
		pair    domain.TokenPair
		expired string
	)

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		rec, err := tx.RefreshTokens().GetRefreshTokenByToken(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return fmt.Errorf("load refresh token: %w", err)
		}

		if rec.Expired(s.now()) {
			expired = rec.Token
			return ErrInvalidRefresh
		}

		// The delete is the rotation tie-breaker: zero affected rows means
		// another request consumed this token first.
		if err := tx.RefreshTokens().DeleteRefreshToken(ctx, rec.Token); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.Audit.Emit(ctx, audit.Event{
					Severity: audit.SeverityAlert,
					Category: "refresh",
					Message:  "refresh token replayed",
					UserID:   rec.UserID,
				})
				return ErrInvalidRefresh
			}
			return fmt.Errorf("consume refresh token: %w", err)
		}

		user, err := tx.Users().GetUserByID(ctx, rec.UserID)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}

		pair, err = s.issueTokenPairTx(ctx, tx, user)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInvalidRefresh) {
			// The rejecting transaction rolled back, so an expired row has
			// to be dropped here, where the delete actually commits.
			// Housekeeping would sweep it eventually; doing it now keeps
			// replays of the token from reaching the store again.
			if expired != "" {
				_ = s.Store.RefreshTokens().DeleteRefreshToken(ctx, expired)
			}
			s.Audit.Emit(ctx, audit.Event{
				Severity: audit.SeverityWarning,
				Category: "refresh",
				Message:  "refresh rejected",
			})
		}
		return domain.TokenPair{}, err
	}

	return pair, nil
}

// RevokeAll deletes every refresh token a user holds, ending all of their
// renewable sessions at once.
func (s *LoginService) RevokeAll(ctx context.Context, userID string) error {
	if err := s.Store.RefreshTokens().DeleteAllUserRefreshTokens(ctx, userID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	s.Audit.Emit(ctx, audit.Event{
		Severity: audit.SeverityInfo,
		Category: "refresh",
		Message:  "all refresh tokens revoked",
		UserID:   userID,
	})
	return nil
}
