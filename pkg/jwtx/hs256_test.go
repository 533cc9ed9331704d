package jwtx_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/wardenauth/warden/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newHS256(t *testing.T) *jwtx.HS256 {
	t.Helper()
	h, err := jwtx.NewHS256(testSecret, "warden", []string{"warden-api"})
	require.NoError(t, err)
	return h
}

func TestNewHS256RejectsShortSecret(t *testing.T) {
	t.Parallel()

	_, err := jwtx.NewHS256([]byte("too-short"), "warden", nil)
	require.Error(t, err)
}

func TestSignAndVerify(t *testing.T) {
	t.Parallel()

	h := newHS256(t)
	now := time.Now()

	claims := jwtx.NewClaims(jwtx.UseAccess, "user-1", 15*time.Minute, "warden", []string{"warden-api"}, now)
	claims.Username = "alice"
	claims.Email = "alice@example.com"

	token, err := h.Sign(claims)
	require.NoError(t, err)

	got, err := h.Verify(token, now)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.Subject)
	require.Equal(t, "alice", got.Username)
	require.Equal(t, "alice@example.com", got.Email)
	require.Equal(t, jwtx.UseAccess, got.TokenUse)
	require.NotEmpty(t, got.ID, "jti must be set")
}

func TestVerifyExpired(t *testing.T) {
	t.Parallel()

	h := newHS256(t)
	now := time.Now()

	claims := jwtx.NewClaims(jwtx.UseAccess, "user-1", time.Minute, "warden", []string{"warden-api"}, now)
	token, err := h.Sign(claims)
	require.NoError(t, err)

	_, err = h.Verify(token, now.Add(2*time.Minute))
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestVerifyNotYetValid(t *testing.T) {
	t.Parallel()

	h := newHS256(t)
	now := time.Now()

	claims := jwtx.NewClaims(jwtx.UseAccess, "user-1", time.Minute, "warden", []string{"warden-api"}, now)
	token, err := h.Sign(claims)
	require.NoError(t, err)

	_, err = h.Verify(token, now.Add(-time.Minute))
	require.ErrorIs(t, err, jwtx.ErrNotYetValid)
}

func TestVerifyRejectsMissingExpiry(t *testing.T) {
	t.Parallel()

	h := newHS256(t)
	now := time.Now()

	// A hand-built token without exp would never expire; it must not verify.
	claims := jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   "warden",
			Subject:  "user-1",
			Audience: jwt.ClaimStrings{"warden-api"},
			IssuedAt: jwt.NewNumericDate(now),
		},
		TokenUse: jwtx.UseAccess,
	}
	token, err := h.Sign(claims)
	require.NoError(t, err)

	_, err = h.Verify(token, now)
	require.ErrorIs(t, err, jwtx.ErrExpired)
}

func TestVerifyWrongIssuerAndAudience(t *testing.T) {
	t.Parallel()

	h := newHS256(t)
	now := time.Now()

	wrongIssuer := jwtx.NewClaims(jwtx.UseAccess, "user-1", time.Minute, "someone-else", []string{"warden-api"}, now)
	token, err := h.Sign(wrongIssuer)
	require.NoError(t, err)
	_, err = h.Verify(token, now)
	require.ErrorIs(t, err, jwtx.ErrIssuer)

	wrongAudience := jwtx.NewClaims(jwtx.UseAccess, "user-1", time.Minute, "warden", []string{"other-api"}, now)
	token, err = h.Sign(wrongAudience)
	require.NoError(t, err)
	_, err = h.Verify(token, now)
	require.ErrorIs(t, err, jwtx.ErrAudience)
}

func TestVerifyWrongSecret(t *testing.T) {
	t.Parallel()

	now := time.Now()
	h := newHS256(t)

	other, err := jwtx.NewHS256([]byte("ffffffffffffffffffffffffffffffff"), "warden", []string{"warden-api"})
	require.NoError(t, err)

	claims := jwtx.NewClaims(jwtx.UseAccess, "user-1", time.Minute, "warden", []string{"warden-api"}, now)
	token, err := other.Sign(claims)
	require.NoError(t, err)

	_, err = h.Verify(token, now)
	require.ErrorIs(t, err, jwtx.ErrInvalidSig)
}

func TestVerifyAlgorithmConfusion(t *testing.T) {
	t.Parallel()

	h := newHS256(t)
	now := time.Now()

	// A token claiming alg=none must never pass, even with a valid body.
	claims := jwtx.NewClaims(jwtx.UseAccess, "user-1", time.Minute, "warden", []string{"warden-api"}, now)
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = h.Verify(token, now)
	require.Error(t, err)
}

func TestVerifyMalformed(t *testing.T) {
	t.Parallel()

	h := newHS256(t)

	for _, token := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		_, err := h.Verify(token, time.Now())
		require.ErrorIs(t, err, jwtx.ErrMalformed, "token %q", token)
	}
}

func TestValidateUse(t *testing.T) {
	t.Parallel()

	claims := jwtx.NewClaims(jwtx.UseSetup, "user-1", time.Minute, "warden", nil, time.Now())
	require.NoError(t, claims.ValidateUse(jwtx.UseSetup))
	require.ErrorIs(t, claims.ValidateUse(jwtx.UseAccess), jwtx.ErrWrongUse)
}
