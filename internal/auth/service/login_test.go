package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wardenauth/warden/internal/auth/service"
	"github.com/wardenauth/warden/pkg/jwtx"
)

func TestLogin_Succeeds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.registerUser(t, "alice")

	res, err := env.Login.Login(ctx, "alice", testPassword)
	require.NoError(t, err)
	require.False(t, res.RequiresTwoFactor)
	require.Empty(t, res.TwoFactorToken)
	require.NotEmpty(t, res.AccessToken)
	require.NotEmpty(t, res.RefreshToken)

	claims := env.Creds.VerifyAccess(res.AccessToken)
	require.NotNil(t, claims)
	require.Equal(t, user.ID, claims.Subject)
	require.Equal(t, "alice", claims.Username)

	// Exactly one refresh record was persisted.
	rec, err := env.Store.RefreshTokens().GetRefreshTokenByToken(ctx, res.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, rec.UserID)
}

func TestLogin_UsernameIsCaseInsensitive(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "alice")

	res, err := env.Login.Login(context.Background(), "  ALICE ", testPassword)
	require.NoError(t, err)
	require.NotEmpty(t, res.AccessToken)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t, "alice")

	_, errUnknown := env.Login.Login(context.Background(), "nobody", testPassword)
	_, errWrongPw := env.Login.Login(context.Background(), "alice", "wrong password")

	require.ErrorIs(t, errUnknown, service.ErrInvalidCredentials)
	require.ErrorIs(t, errWrongPw, service.ErrInvalidCredentials)
}

func TestLogin_WithTwoFactorReturnsChallengeOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.registerUser(t, "alice")
	env.enableTwoFactor(t, user.ID)

	res, err := env.Login.Login(ctx, "alice", testPassword)
	require.NoError(t, err)
	require.True(t, res.RequiresTwoFactor)
	require.NotEmpty(t, res.TwoFactorToken)
	require.Empty(t, res.AccessToken)
	require.Empty(t, res.RefreshToken)

	// The challenge token must not pass as a bearer credential.
	require.Nil(t, env.Creds.VerifyAccess(res.TwoFactorToken))
}

func TestVerifyTwoFactor_CompletesLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.registerUser(t, "alice")
	seed, _ := env.enableTwoFactor(t, user.ID)

	res, err := env.Login.Login(ctx, "alice", testPassword)
	require.NoError(t, err)

	pair, err := env.Login.VerifyTwoFactor(ctx, res.TwoFactorToken, totpCode(t, seed, time.Now()))
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims := env.Creds.VerifyAccess(pair.AccessToken)
	require.NotNil(t, claims)
	require.Equal(t, user.ID, claims.Subject)
}

func TestVerifyTwoFactor_WrongCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.registerUser(t, "alice")
	env.enableTwoFactor(t, user.ID)

	res, err := env.Login.Login(ctx, "alice", testPassword)
	require.NoError(t, err)

	_, err = env.Login.VerifyTwoFactor(ctx, res.TwoFactorToken, "000000")
	require.ErrorIs(t, err, service.ErrInvalidCode)
}

func TestVerifyTwoFactor_RejectsAccessTokenAsChallenge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.registerUser(t, "alice")
	seed, _ := env.enableTwoFactor(t, user.ID)

	res, err := env.Login.Login(ctx, "alice", testPassword)
	require.NoError(t, err)
	pair, err := env.Login.VerifyTwoFactor(ctx, res.TwoFactorToken, totpCode(t, seed, time.Now()))
	require.NoError(t, err)

	_, err = env.Login.VerifyTwoFactor(ctx, pair.AccessToken, totpCode(t, seed, time.Now()))
	require.ErrorIs(t, err, service.ErrInvalidChallenge)
}

func TestUseRecoveryCode_RedeemsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.registerUser(t, "alice")
	_, codes := env.enableTwoFactor(t, user.ID)

	res, err := env.Login.Login(ctx, "alice", testPassword)
	require.NoError(t, err)

	pair, err := env.Login.UseRecoveryCode(ctx, res.TwoFactorToken, codes[0])
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)

	remaining, err := env.Store.RecoveryCodes().CountUnusedByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 9, remaining)

	// The same code cannot be redeemed twice.
	res2, err := env.Login.Login(ctx, "alice", testPassword)
	require.NoError(t, err)
	_, err = env.Login.UseRecoveryCode(ctx, res2.TwoFactorToken, codes[0])
	require.ErrorIs(t, err, service.ErrInvalidRecovery)
}

func TestUseRecoveryCode_ExhaustedBatchIsDistinct(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.registerUser(t, "alice")
	_, codes := env.enableTwoFactor(t, user.ID)

	for _, code := range codes {
		res, err := env.Login.Login(ctx, "alice", testPassword)
		require.NoError(t, err)
		_, err = env.Login.UseRecoveryCode(ctx, res.TwoFactorToken, code)
		require.NoError(t, err)
	}

	res, err := env.Login.Login(ctx, "alice", testPassword)
	require.NoError(t, err)
	_, err = env.Login.UseRecoveryCode(ctx, res.TwoFactorToken, codes[0])
	require.ErrorIs(t, err, service.ErrNoRecoveryCodes)
}

func TestVerifyAccess_RejectsSetupAndChallengeTokens(t *testing.T) {
	env := newTestEnv(t)

	challenge, err := env.Creds.IssueChallengeToken("user-1")
	require.NoError(t, err)
	require.Nil(t, env.Creds.VerifyAccess(challenge))

	setupToken, err := env.Creds.IssueSetupToken("user-1", "SEEDSEEDSEEDSEED")
	require.NoError(t, err)
	require.Nil(t, env.Creds.VerifyAccess(setupToken))
}

func TestVerifyAccess_RejectsExpiredToken(t *testing.T) {
	env := newTestEnv(t)

	past := time.Now().Add(-2 * env.Creds.AccessTTL)
	claims := jwtx.NewClaims(jwtx.UseAccess, "user-1", env.Creds.AccessTTL, testIssuer, testAudience, past)
	token, err := env.Creds.Tokens.Sign(claims)
	require.NoError(t, err)

	require.Nil(t, env.Creds.VerifyAccess(token))
}
