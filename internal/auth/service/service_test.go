package service_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wardenauth/warden/internal/auth/audit"
	"github.com/wardenauth/warden/internal/auth/domain"
	"github.com/wardenauth/warden/internal/auth/service"
	"github.com/wardenauth/warden/internal/auth/store/drivers/sqlite"
	"github.com/wardenauth/warden/pkg/jwtx"
	"github.com/wardenauth/warden/pkg/otpx"
	"github.com/wardenauth/warden/pkg/passhash"
	"github.com/wardenauth/warden/pkg/secretbox"
)

const (
	testIssuer   = "warden-test"
	testPassword = "correct horse battery staple"
)

var testAudience = []string{"warden-api"}

// testEnv wires every service against one throwaway sqlite database.
type testEnv struct {
	Store     *sqlite.Store
	Creds     *service.CredentialIssuer
	Login     *service.LoginService
	TwoFactor *service.TwoFactorService
	Users     *service.UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "warden.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	// Cheap argon2 parameters keep the suite fast; production uses
	// DefaultParams.
	hasher := passhash.New(passhash.Params{
		Memory:      16 * 1024,
		Iterations:  1,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	})

	tokens, err := jwtx.NewHS256([]byte("0123456789abcdef0123456789abcdef"), testIssuer, testAudience)
	require.NoError(t, err)
	creds := service.NewCredentialIssuer(tokens, testIssuer, testAudience)

	box, err := secretbox.New([]byte("an example very very secret key!"))
	require.NoError(t, err)

	sink := audit.NopSink{}

	return &testEnv{
		Store:     st,
		Creds:     creds,
		Login:     service.NewLoginService(st, hasher, creds, box, sink),
		TwoFactor: service.NewTwoFactorService(st, hasher, creds, box, sink, testIssuer),
		Users:     service.NewUserService(st, hasher, sink),
	}
}

func (e *testEnv) registerUser(t *testing.T, username string) domain.User {
	t.Helper()

	user, err := e.Users.RegisterUser(context.Background(), username, username+"@example.com", testPassword)
	require.NoError(t, err)
	return user
}

// enableTwoFactor walks the real setup flow and returns the seed and the
// plaintext recovery codes.
func (e *testEnv) enableTwoFactor(t *testing.T, userID string) (string, []string) {
	t.Helper()
	ctx := context.Background()

	setup, err := e.TwoFactor.BeginSetup(ctx, userID)
	require.NoError(t, err)

	code := totpCode(t, setup.Seed, time.Now())
	codes, err := e.TwoFactor.ConfirmSetup(ctx, userID, setup.SetupToken, code)
	require.NoError(t, err)
	require.Len(t, codes, 10)

	return setup.Seed, codes
}

func totpCode(t *testing.T, seed string, at time.Time) string {
	t.Helper()

	code, err := otpx.GenerateCodeAt(seed, at)
	require.NoError(t, err)
	return code
}
