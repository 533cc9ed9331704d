package service

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/wardenauth/warden/internal/auth/domain"
	"github.com/wardenauth/warden/pkg/idx"
	"github.com/wardenauth/warden/pkg/jwtx"
)

const (
	// refreshTokenBytes is the entropy behind each opaque refresh token.
	refreshTokenBytes = 64

	DefaultAccessTTL    = 15 * time.Minute
	DefaultRefreshTTL   = 30 * 24 * time.Hour
	DefaultSetupTTL     = 5 * time.Minute
	DefaultChallengeTTL = 5 * time.Minute
)

// CredentialIssuer mints and verifies every credential the service hands
// out: HS256 access tokens, opaque refresh tokens, and the short-lived
// setup and challenge tokens used by the 2FA flows.
type CredentialIssuer struct {
	Tokens   *jwtx.HS256
	Issuer   string
	Audience []string

	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	SetupTTL     time.Duration
	ChallengeTTL time.Duration

	Now func() time.Time
}

func NewCredentialIssuer(tokens *jwtx.HS256, issuer string, audience []string) *CredentialIssuer {
	return &CredentialIssuer{
		Tokens:       tokens,
		Issuer:       issuer,
		Audience:     audience,
		AccessTTL:    DefaultAccessTTL,
		RefreshTTL:   DefaultRefreshTTL,
		SetupTTL:     DefaultSetupTTL,
		ChallengeTTL: DefaultChallengeTTL,
		Now:          time.Now,
	}
}

func (ci *CredentialIssuer) now() time.Time {
	if ci.Now != nil {
		return ci.Now()
	}
	return time.Now()
}

// IssueAccess mints a bearer access token for an authenticated user.
func (ci *CredentialIssuer) IssueAccess(user domain.User) (string, error) {
	claims := jwtx.NewClaims(jwtx.UseAccess, user.ID, ci.AccessTTL, ci.Issuer, ci.Audience, ci.now())
	claims.Username = user.Username
	claims.Email = user.Email

	signed, err := ci.Tokens.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// VerifyAccess checks a presented access token and returns its claims,
// or nil if the token is unacceptable for any reason. Individual failure
// modes are only distinguished in logs.
func (ci *CredentialIssuer) VerifyAccess(token string) *jwtx.Claims {
	claims, err := ci.Tokens.Verify(token, ci.now())
	if err != nil {
		slog.Debug("access token rejected", "err", err)
		return nil
	}
	if err := claims.ValidateUse(jwtx.UseAccess); err != nil {
		slog.Debug("access token rejected", "err", err)
		return nil
	}
	return &claims
}

// IssueRefresh mints a fresh opaque refresh token record for userID. The
// caller is responsible for persisting it.
func (ci *CredentialIssuer) IssueRefresh(userID string) (domain.RefreshToken, error) {
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return domain.RefreshToken{}, fmt.Errorf("generate refresh token: %w", err)
	}

	now := ci.now()
	return domain.NewRefreshToken(
		idx.New().String(),
		userID,
		base64.RawURLEncoding.EncodeToString(raw),
		now.Add(ci.RefreshTTL),
		now,
	)
}

// IssueSetupToken binds a pending TOTP seed to userID for the duration of
// a 2FA enrolment. The seed only lives inside the signed token until the
// user confirms.
func (ci *CredentialIssuer) IssueSetupToken(userID, seed string) (string, error) {
	claims := jwtx.NewClaims(jwtx.UseSetup, userID, ci.SetupTTL, ci.Issuer, ci.Audience, ci.now())
	claims.Seed = seed

	signed, err := ci.Tokens.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("sign setup token: %w", err)
	}
	return signed, nil
}

// VerifySetupToken returns the user and pending seed carried by a setup
// token, or ErrInvalidSetup.
func (ci *CredentialIssuer) VerifySetupToken(token string) (userID, seed string, err error) {
	claims, err := ci.Tokens.Verify(token, ci.now())
	if err != nil {
		return "", "", ErrInvalidSetup
	}
	if claims.ValidateUse(jwtx.UseSetup) != nil || claims.Seed == "" {
		return "", "", ErrInvalidSetup
	}
	return claims.Subject, claims.Seed, nil
}

// IssueChallengeToken marks a half-finished login: the password was
// correct but the second factor is still outstanding.
func (ci *CredentialIssuer) IssueChallengeToken(userID string) (string, error) {
	claims := jwtx.NewClaims(jwtx.UseChallenge, userID, ci.ChallengeTTL, ci.Issuer, ci.Audience, ci.now())

	signed, err := ci.Tokens.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("sign challenge token: %w", err)
	}
	return signed, nil
}

// VerifyChallengeToken returns the user a challenge token was issued to,
// or ErrInvalidChallenge.
func (ci *CredentialIssuer) VerifyChallengeToken(token string) (string, error) {
	claims, err := ci.Tokens.Verify(token, ci.now())
	if err != nil {
		return "", ErrInvalidChallenge
	}
	if claims.ValidateUse(jwtx.UseChallenge) != nil {
		return "", ErrInvalidChallenge
	}
	return claims.Subject, nil
}
