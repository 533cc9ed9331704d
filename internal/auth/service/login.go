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
	"github.com/wardenauth/warden/pkg/otpx"
	"github.com/wardenauth/warden/pkg/passhash"
	"github.com/wardenauth/warden/pkg/recovery"
	"github.com/wardenauth/warden/pkg/secretbox"
)

// LoginService drives the authentication state machine: password login,
// the pending second-factor verification, recovery-code redemption, and
// refresh rotation.
type LoginService struct {
	Store       store.Store
	Hasher      *passhash.Hasher
	Credentials *CredentialIssuer
	Box         *secretbox.Box
	Audit       audit.Sink
	Now         func() time.Time
}

func NewLoginService(st store.Store, hasher *passhash.Hasher, creds *CredentialIssuer, box *secretbox.Box, sink audit.Sink) *LoginService {
	return &LoginService{
		Store:       st,
		Hasher:      hasher,
		Credentials: creds,
		Box:         box,
		Audit:       sink,
		Now:         time.Now,
	}
}

func (s *LoginService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Login checks a username/password pair. With 2FA off it returns a full
// token pair and persists one refresh record; with 2FA on it returns only
// a challenge token and persists nothing. Unknown user and wrong password
// collapse into the same ErrInvalidCredentials.
func (s *LoginService) Login(ctx context.Context, username, password string) (domain.LoginResult, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Audit.Emit(ctx, audit.Event{
				Severity: audit.SeverityWarning,
				Category: "login",
				Message:  "login failed: unknown username",
			})
			return domain.LoginResult{}, ErrInvalidCredentials
		}
		return domain.LoginResult{}, fmt.Errorf("load user: %w", err)
	}

	if err := s.Hasher.Verify(password, user.PasswordHash); err != nil {
		if errors.Is(err, passhash.ErrMismatch) || errors.Is(err, passhash.ErrEmptyPassword) {
			s.Audit.Emit(ctx, audit.Event{
				Severity: audit.SeverityWarning,
				Category: "login",
				Message:  "login failed: wrong password",
				UserID:   user.ID,
			})
			return domain.LoginResult{}, ErrInvalidCredentials
		}
		return domain.LoginResult{}, fmt.Errorf("verify password: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return domain.LoginResult{}, err
	}

	if user.TwoFactorEnabled {
		challenge, err := s.Credentials.IssueChallengeToken(user.ID)
		if err != nil {
			return domain.LoginResult{}, err
		}
		s.Audit.Emit(ctx, audit.Event{
			Severity: audit.SeverityInfo,
			Category: "login",
			Message:  "login pending second factor",
			UserID:   user.ID,
		})
		return domain.LoginResult{
			RequiresTwoFactor: true,
			TwoFactorToken:    challenge,
		}, nil
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return domain.LoginResult{}, err
	}

	s.Audit.Emit(ctx, audit.Event{
		Severity: audit.SeverityInfo,
		Category: "login",
		Message:  "login succeeded",
		UserID:   user.ID,
	})
	return domain.LoginResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// VerifyTwoFactor completes a pending login: the challenge token proves
// the password step, the TOTP code proves the second factor.
func (s *LoginService) VerifyTwoFactor(ctx context.Context, challengeToken, code string) (domain.TokenPair, error) {
	userID, err := s.Credentials.VerifyChallengeToken(challengeToken)
	if err != nil {
		s.Audit.Emit(ctx, audit.Event{
			Severity: audit.SeverityWarning,
			Category: "2fa",
			Message:  "2fa verification failed: bad challenge token",
		})
		return domain.TokenPair{}, err
	}

	user, seed, err := s.loadTOTPSeed(ctx, userID)
	if err != nil {
		return domain.TokenPair{}, err
	}

	if !otpx.ValidateCodeAt(seed, code, s.now()) {
		s.Audit.Emit(ctx, audit.Event{
			Severity: audit.SeverityWarning,
			Category: "2fa",
			Message:  "2fa verification failed: wrong code",
			UserID:   user.ID,
		})
		return domain.TokenPair{}, ErrInvalidCode
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return domain.TokenPair{}, err
	}

	s.Audit.Emit(ctx, audit.Event{
		Severity: audit.SeverityInfo,
		Category: "2fa",
		Message:  "login completed with second factor",
		UserID:   user.ID,
	})
	return pair, nil
}

// UseRecoveryCode completes a pending login by redeeming one single-use
// recovery code instead of a TOTP code. An exhausted batch is reported
// distinctly from a code that simply didn't match.
func (s *LoginService) UseRecoveryCode(ctx context.Context, challengeToken, code string) (domain.TokenPair, error) {
	userID, err := s.Credentials.VerifyChallengeToken(challengeToken)
	if err != nil {
		s.Audit.Emit(ctx, audit.Event{
			Severity: audit.SeverityWarning,
			Category: "recovery",
			Message:  "recovery failed: bad challenge token",
		})
		return domain.TokenPair{}, err
	}

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrInvalidChallenge
		}
		return domain.TokenPair{}, fmt.Errorf("load user: %w", err)
	}
	if !user.TwoFactorEnabled {
		return domain.TokenPair{}, ErrTwoFactorDisabled
	}

	var pair domain.TokenPair
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		unused, err := tx.RecoveryCodes().ListUnusedByUser(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("list recovery codes: %w", err)
		}
		if len(unused) == 0 {
			return ErrNoRecoveryCodes
		}

		matched := ""
		for _, c := range unused {
			if recovery.Verify(code, c.CodeHash) {
				matched = c.ID
				break
			}
		}
		if matched == "" {
			return ErrInvalidRecovery
		}

		if err := tx.RecoveryCodes().MarkRecoveryCodeUsed(ctx, matched, s.now()); err != nil {
			// Already-used under a concurrent redeem loses here.
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRecovery
			}
			return fmt.Errorf("mark recovery code used: %w", err)
		}

		pair, err = s.issueTokenPairTx(ctx, tx, user)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNoRecoveryCodes) || errors.Is(err, ErrInvalidRecovery) {
			s.Audit.Emit(ctx, audit.Event{
				Severity: audit.SeverityWarning,
				Category: "recovery",
				Message:  "recovery failed: " + err.Error(),
				UserID:   user.ID,
			})
		}
		return domain.TokenPair{}, err
	}

	s.Audit.Emit(ctx, audit.Event{
		Severity: audit.SeverityAlert,
		Category: "recovery",
		Message:  "recovery code redeemed",
		UserID:   user.ID,
	})
	return pair, nil
}

// loadTOTPSeed fetches the user and decrypts their stored TOTP seed.
func (s *LoginService) loadTOTPSeed(ctx context.Context, userID string) (domain.User, string, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, "", ErrInvalidChallenge
		}
		return domain.User{}, "", fmt.Errorf("load user: %w", err)
	}
	if !user.TwoFactorEnabled || user.TOTPSecretEnc == nil {
		return domain.User{}, "", ErrTwoFactorDisabled
	}

	seed, err := s.Box.Decrypt(*user.TOTPSecretEnc)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("decrypt totp seed: %w", err)
	}
	return user, seed, nil
}

func (s *LoginService) issueTokenPair(ctx context.Context, user domain.User) (domain.TokenPair, error) {
	return s.issueTokenPairTx(ctx, s.Store, user)
}

// issueTokenPairTx mints an access token and persists exactly one refresh
// record through st, which may be a transaction.
func (s *LoginService) issueTokenPairTx(ctx context.Context, st store.Store, user domain.User) (domain.TokenPair, error) {
	access, err := s.Credentials.IssueAccess(user)
	if err != nil {
		return domain.TokenPair{}, err
	}

	refresh, err := s.Credentials.IssueRefresh(user.ID)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if err := st.RefreshTokens().CreateRefreshToken(ctx, refresh); err != nil {
		return domain.TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
	}

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh.Token,
	}, nil
}
