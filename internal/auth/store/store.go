package store

import (
	"context"
	"errors"
	"time"

	"github.com/wardenauth/warden/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement it.
// Sub-repositories keep concerns tidy; repositories own no business rules.
type Store interface {
	Users() Users
	RefreshTokens() RefreshTokens
	RecoveryCodes() RecoveryCodes

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction: rolled back if fn returns
	// an error, committed otherwise. This is the recommended way to run
	// multi-step operations that must be atomic (e.g. refresh rotation).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds
// Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is used during login. The caller is expected to
	// pass an already-normalized (lower-cased) username.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by the app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// EnableTwoFactor stores the encrypted TOTP seed and flips the
	// enabled flag in one statement, preserving the seed/flag invariant.
	EnableTwoFactor(ctx context.Context, userID string, secretEnc string, enabledAt time.Time) error

	// DisableTwoFactor clears the seed, flag, and enabled-at timestamp.
	DisableTwoFactor(ctx context.Context, userID string) error
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByToken returns the record for an opaque token string.
	GetRefreshTokenByToken(ctx context.Context, token string) (domain.RefreshToken, error)

	// DeleteRefreshToken removes the record for token. It returns
	// ErrNotFound when no row was deleted; under concurrent rotation of
	// the same token the affected-row count is the tie-breaker, so
	// exactly one caller observes success.
	DeleteRefreshToken(ctx context.Context, token string) error

	// DeleteAllUserRefreshTokens is bulk revocation for a user (e.g.
	// password reset).
	DeleteAllUserRefreshTokens(ctx context.Context, userID string) error

	// DeleteExpiredRefreshTokens is housekeeping.
	DeleteExpiredRefreshTokens(ctx context.Context) error
}

type RecoveryCodes interface {
	// CreateRecoveryCode stores one code digest of a batch.
	CreateRecoveryCode(ctx context.Context, c domain.RecoveryCode) error

	// ListUnusedByUser returns the user's not-yet-redeemed codes in
	// creation order.
	ListUnusedByUser(ctx context.Context, userID string) ([]domain.RecoveryCode, error)

	// MarkRecoveryCodeUsed marks a single code as redeemed. Returns
	// ErrNotFound if the code does not exist or was already used.
	MarkRecoveryCodeUsed(ctx context.Context, id string, usedAt time.Time) error

	// DeleteAllByUser removes the whole batch (2FA disable/regenerate).
	DeleteAllByUser(ctx context.Context, userID string) error

	// CountUnusedByUser returns how many codes remain redeemable.
	CountUnusedByUser(ctx context.Context, userID string) (int, error)
}
