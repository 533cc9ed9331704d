package domain

import (
	"errors"
	"time"
)

// ErrPastExpiry reports an attempt to construct a refresh token that is
// already expired. This is a construction bug in the caller, never a
// runtime state.
var ErrPastExpiry = errors.New("domain: refresh token expiry not in the future")

// RefreshToken models the stored renewal credential. Records are
// immutable after creation; rotation deletes the old row and inserts a
// new one.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string // opaque high-entropy token, unique
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewRefreshToken validates and builds a refresh token record. The expiry
// must be strictly in the future at creation time.
func NewRefreshToken(id, userID, token string, expiresAt, now time.Time) (RefreshToken, error) {
	if !expiresAt.After(now) {
		return RefreshToken{}, ErrPastExpiry
	}
	return RefreshToken{
		ID:        id,
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}, nil
}

// Expired reports whether the token's expiry has passed.
func (t RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// TokenPair is what a successful authentication returns.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// LoginResult is the unified login response: either a completed
// authentication or a pending second-factor challenge.
type LoginResult struct {
	RequiresTwoFactor bool   `json:"requires_two_factor"`
	TwoFactorToken    string `json:"two_factor_token,omitempty"`
	AccessToken       string `json:"access_token,omitempty"`
	RefreshToken      string `json:"refresh_token,omitempty"`
}

// TwoFactorSetup is returned by setup initiation. Nothing is persisted at
// this point; the seed travels only inside the signed setup token and this
// response.
type TwoFactorSetup struct {
	SetupToken      string `json:"setup_token"`
	Seed            string `json:"seed"`
	ProvisioningURI string `json:"provisioning_uri"`
	QRCodePNG       []byte `json:"qr_code_png,omitempty"`
}
