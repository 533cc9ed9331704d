package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token-use markers. A token minted for one purpose must never verify as
// another, so every token carries its purpose as a claim.
const (
	UseAccess    = "access"
	UseSetup     = "2fa_setup"
	UseChallenge = "2fa_challenge"
)

// Claims are the signed claims carried by access tokens and by the
// ephemeral setup/challenge tokens. Additive changes only, to keep old
// tokens parseable across deploys.
type Claims struct {
	jwt.RegisteredClaims

	// TokenUse distinguishes access tokens from the short-lived 2FA
	// setup and challenge tokens.
	TokenUse string `json:"token_use,omitempty"`

	// Username and Email identify the user on access tokens.
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`

	// Seed carries the pending TOTP seed on setup tokens only. It is
	// never present on access or challenge tokens.
	Seed string `json:"seed,omitempty"`
}

// NewClaims builds minimally-correct claims for the given purpose.
func NewClaims(use, subject string, ttl time.Duration, issuer string, audience []string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		TokenUse: use,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks the issuer matches the expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateUse checks the token was minted for the expected purpose.
func (c *Claims) ValidateUse(expected string) error {
	if c.TokenUse != expected {
		return ErrWrongUse
	}
	return nil
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't used
// before it is valid (nbf), against the supplied clock. A token without
// an exp claim would never expire, so it is rejected outright.
func (c *Claims) ValidateExpiry(now time.Time) error {
	if c.ExpiresAt == nil {
		return ErrExpired
	}
	if now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}
