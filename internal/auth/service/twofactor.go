package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wardenauth/warden/internal/auth/audit"
	"github.com/wardenauth/warden/internal/auth/domain"
	"github.com/wardenauth/warden/internal/auth/store"
	"github.com/wardenauth/warden/pkg/idx"
	"github.com/wardenauth/warden/pkg/otpx"
	"github.com/wardenauth/warden/pkg/passhash"
	"github.com/wardenauth/warden/pkg/recovery"
	"github.com/wardenauth/warden/pkg/secretbox"
)

// TwoFactorService manages TOTP enrolment and the recovery-code batch:
// setup, confirmation, disable, and regeneration.
type TwoFactorService struct {
	Store       store.Store
	Hasher      *passhash.Hasher
	Credentials *CredentialIssuer
	Box         *secretbox.Box
	Audit       audit.Sink

	// Issuer is the human-facing name shown in authenticator apps.
	Issuer string

	Now func() time.Time
}

func NewTwoFactorService(st store.Store, hasher *passhash.Hasher, creds *CredentialIssuer, box *secretbox.Box, sink audit.Sink, issuer string) *TwoFactorService {
	return &TwoFactorService{
		Store:       st,
		Hasher:      hasher,
		Credentials: creds,
		Box:         box,
		Audit:       sink,
		Issuer:      issuer,
		Now:         time.Now,
	}
}

func (s *TwoFactorService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// BeginSetup starts TOTP enrolment for userID. Nothing is persisted: the
// fresh seed travels only inside the signed setup token and the returned
// provisioning material. Abandoning setup leaves no trace.
func (s *TwoFactorService) BeginSetup(ctx context.Context, userID string) (domain.TwoFactorSetup, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return domain.TwoFactorSetup{}, fmt.Errorf("load user: %w", err)
	}
	if user.TwoFactorEnabled {
		return domain.TwoFactorSetup{}, ErrTwoFactorEnabled
	}

	seed, err := otpx.GenerateSeed()
	if err != nil {
		return domain.TwoFactorSetup{}, err
	}

	setupToken, err := s.Credentials.IssueSetupToken(user.ID, seed)
	if err != nil {
		return domain.TwoFactorSetup{}, err
	}

	uri := otpx.BuildProvisioningURI(seed, user.Username, s.Issuer)
	png, err := otpx.RenderQRCode(uri, 0)
	if err != nil {
		return domain.TwoFactorSetup{}, err
	}

	s.Audit.Emit(ctx, audit.Event{
		Severity: audit.SeverityInfo,
		Category: "2fa",
		Message:  "2fa setup started",
		UserID:   user.ID,
	})
	return domain.TwoFactorSetup{
		SetupToken:      setupToken,
		Seed:            seed,
		ProvisioningURI: uri,
		QRCodePNG:       png,
	}, nil
}

// ConfirmSetup finishes enrolment: the setup token carries the pending
// seed, and the code proves the authenticator actually holds it. On
// success the encrypted seed and a fresh recovery batch are persisted in
// one transaction, and the plaintext codes are returned exactly once.
func (s *TwoFactorService) ConfirmSetup(ctx context.Context, userID, setupToken, code string) ([]string, error) {
	tokenUserID, seed, err := s.Credentials.VerifySetupToken(setupToken)
	if err != nil {
		return nil, err
	}
	if tokenUserID != userID {
		return nil, ErrInvalidSetup
	}

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorEnabled
	}

	if !otpx.ValidateCodeAt(seed, code, s.now()) {
		s.Audit.Emit(ctx, audit.Event{
			Severity: audit.SeverityWarning,
			Category: "2fa",
			Message:  "2fa setup confirmation failed: wrong code",
			UserID:   user.ID,
		})
		return nil, ErrInvalidCode
	}

	secretEnc, err := s.Box.Encrypt(seed)
	if err != nil {
		return nil, fmt.Errorf("encrypt totp seed: %w", err)
	}

	codes, err := s.persistEnable(ctx, user.ID, secretEnc)
	if err != nil {
		return nil, err
	}

	s.Audit.Emit(ctx, audit.Event{
		Severity: audit.SeverityInfo,
		Category: "2fa",
		Message:  "2fa enabled",
		UserID:   user.ID,
	})
	return codes, nil
}

// Disable turns 2FA off. It demands both proofs: the account password and
// a current TOTP code. The stored seed and the entire recovery batch are
// removed atomically.
func (s *TwoFactorService) Disable(ctx context.Context, userID, password, code string) error {
	user, _, err := s.requireBothFactors(ctx, userID, password, code)
	if err != nil {
		return err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().DisableTwoFactor(ctx, user.ID); err != nil {
			return fmt.Errorf("disable two factor: %w", err)
		}
		if err := tx.RecoveryCodes().DeleteAllByUser(ctx, user.ID); err != nil {
			return fmt.Errorf("delete recovery codes: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.Audit.Emit(ctx, audit.Event{
		Severity: audit.SeverityAlert,
		Category: "2fa",
		Message:  "2fa disabled",
		UserID:   user.ID,
	})
	return nil
}

// RegenerateRecoveryCodes replaces the whole batch under the same dual
// proof as Disable. Old codes stop working the moment the new batch
// commits.
func (s *TwoFactorService) RegenerateRecoveryCodes(ctx context.Context, userID, password, code string) ([]string, error) {
	user, _, err := s.requireBothFactors(ctx, userID, password, code)
	if err != nil {
		return nil, err
	}

	var codes []string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RecoveryCodes().DeleteAllByUser(ctx, user.ID); err != nil {
			return fmt.Errorf("delete recovery codes: %w", err)
		}
		codes, err = s.insertRecoveryBatch(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Audit.Emit(ctx, audit.Event{
		Severity: audit.SeverityInfo,
		Category: "2fa",
		Message:  "recovery codes regenerated",
		UserID:   user.ID,
	})
	return codes, nil
}

// requireBothFactors verifies the password and a current TOTP code for a
// user who must already have 2FA enabled.
func (s *TwoFactorService) requireBothFactors(ctx context.Context, userID, password, code string) (domain.User, string, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("load user: %w", err)
	}
	if !user.TwoFactorEnabled || user.TOTPSecretEnc == nil {
		return domain.User{}, "", ErrTwoFactorDisabled
	}

	if err := s.Hasher.Verify(password, user.PasswordHash); err != nil {
		if errors.Is(err, passhash.ErrMismatch) || errors.Is(err, passhash.ErrEmptyPassword) {
			s.Audit.Emit(ctx, audit.Event{
				Severity: audit.SeverityWarning,
				Category: "2fa",
				Message:  "2fa management rejected: wrong password",
				UserID:   user.ID,
			})
			return domain.User{}, "", ErrInvalidCredentials
		}
		return domain.User{}, "", fmt.Errorf("verify password: %w", err)
	}

	seed, err := s.Box.Decrypt(*user.TOTPSecretEnc)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("decrypt totp seed: %w", err)
	}
	if !otpx.ValidateCodeAt(seed, code, s.now()) {
		s.Audit.Emit(ctx, audit.Event{
			Severity: audit.SeverityWarning,
			Category: "2fa",
			Message:  "2fa management rejected: wrong code",
			UserID:   user.ID,
		})
		return domain.User{}, "", ErrInvalidCode
	}

	return user, seed, nil
}

// persistEnable flips the user's 2FA state and stores a fresh recovery
// batch in a single transaction.
func (s *TwoFactorService) persistEnable(ctx context.Context, userID, secretEnc string) ([]string, error) {
	var codes []string
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().EnableTwoFactor(ctx, userID, secretEnc, s.now()); err != nil {
			return fmt.Errorf("enable two factor: %w", err)
		}
		var err error
		codes, err = s.insertRecoveryBatch(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// insertRecoveryBatch generates a batch, stores the digests, and returns
// the display-formatted plaintext codes.
func (s *TwoFactorService) insertRecoveryBatch(ctx context.Context, tx store.Tx, userID string) ([]string, error) {
	batch, err := recovery.GenerateBatch()
	if err != nil {
		return nil, err
	}

	display := make([]string, 0, len(batch))
	for _, code := range batch {
		rc := domain.RecoveryCode{
			ID:       idx.New().String(),
			UserID:   userID,
			CodeHash: recovery.Hash(code),
		}
		if err := tx.RecoveryCodes().CreateRecoveryCode(ctx, rc); err != nil {
			return nil, fmt.Errorf("persist recovery code: %w", err)
		}
		display = append(display, recovery.FormatForDisplay(code))
	}
	return display, nil
}
