package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wardenauth/warden/internal/auth/service"
)

func TestChangePassword_RevokesAllSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.registerUser(t, "alice")

	res, err := env.Login.Login(ctx, "alice", testPassword)
	require.NoError(t, err)

	const newPassword = "an entirely new passphrase"
	require.NoError(t, env.Users.ChangePassword(ctx, user.ID, testPassword, newPassword))

	// The session issued under the old password is gone.
	_, err = env.Login.Refresh(ctx, res.RefreshToken)
	require.ErrorIs(t, err, service.ErrInvalidRefresh)

	// Only the new password logs in now.
	_, err = env.Login.Login(ctx, "alice", testPassword)
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
	_, err = env.Login.Login(ctx, "alice", newPassword)
	require.NoError(t, err)
}

func TestChangePassword_WrongCurrentPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.registerUser(t, "alice")

	err := env.Users.ChangePassword(ctx, user.ID, "not the password", "whatever comes next")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	// The old password still works.
	_, err = env.Login.Login(ctx, "alice", testPassword)
	require.NoError(t, err)
}

func TestChangePassword_RejectsEmptyNewPassword(t *testing.T) {
	env := newTestEnv(t)
	user := env.registerUser(t, "alice")

	err := env.Users.ChangePassword(context.Background(), user.ID, testPassword, "")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
}
