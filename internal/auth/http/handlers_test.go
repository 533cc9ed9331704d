package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wardenauth/warden/internal/auth/audit"
	authhttp "github.com/wardenauth/warden/internal/auth/http"
	"github.com/wardenauth/warden/internal/auth/service"
	"github.com/wardenauth/warden/internal/auth/store/drivers/sqlite"
	"github.com/wardenauth/warden/pkg/jwtx"
	"github.com/wardenauth/warden/pkg/passhash"
	"github.com/wardenauth/warden/pkg/secretbox"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "warden.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	hasher := passhash.New(passhash.Params{
		Memory:      16 * 1024,
		Iterations:  1,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	})

	tokens, err := jwtx.NewHS256([]byte("0123456789abcdef0123456789abcdef"), "warden-test", []string{"warden-api"})
	require.NoError(t, err)
	creds := service.NewCredentialIssuer(tokens, "warden-test", []string{"warden-api"})

	box, err := secretbox.New([]byte("an example very very secret key!"))
	require.NoError(t, err)

	sink := audit.NopSink{}
	handler := authhttp.NewHandler(
		service.NewLoginService(st, hasher, creds, box, sink),
		service.NewTwoFactorService(st, hasher, creds, box, sink, "warden-test"),
		service.NewUserService(st, hasher, sink),
	)

	return authhttp.NewRouter(handler, creds, slog.Default())
}

// do posts a JSON body, faking a distinct client IP per call so the
// per-IP limiter never trips mid-test.
func do(t *testing.T, router http.Handler, path string, body any, bearer string) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", ipCounter()))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

var ipSeq int

func ipCounter() int {
	ipSeq = (ipSeq + 1) % 250
	return ipSeq + 1
}

func TestRouter_RegisterAndLogin(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, "/v1/auth/register", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "correct horse battery staple",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, router, "/v1/auth/login", map[string]string{
		"username": "alice",
		"password": "correct horse battery staple",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var res struct {
		RequiresTwoFactor bool   `json:"requires_two_factor"`
		AccessToken       string `json:"access_token"`
		RefreshToken      string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.False(t, res.RequiresTwoFactor)
	require.NotEmpty(t, res.AccessToken)
	require.NotEmpty(t, res.RefreshToken)

	rec = do(t, router, "/v1/auth/refresh", map[string]string{
		"refresh_token": res.RefreshToken,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_LoginFailureIsUniform(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, "/v1/auth/login", map[string]string{
		"username": "ghost",
		"password": "whatever",
	}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "invalid_credentials", body.Error)
}

func TestRouter_TwoFactorManagementRequiresBearer(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, "/v1/2fa/setup", map[string]string{}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")

	rec = do(t, router, "/v1/2fa/setup", map[string]string{}, "not-a-token")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_MalformedBody(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader([]byte("{not json")))
	req.Header.Set("X-Forwarded-For", "203.0.113.251")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_StrictRateLimit(t *testing.T) {
	router := newTestRouter(t)

	var last *httptest.ResponseRecorder
	for range 6 {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("X-Forwarded-For", "198.51.100.7")
		last = httptest.NewRecorder()
		router.ServeHTTP(last, req)
	}
	require.Equal(t, http.StatusTooManyRequests, last.Code)
	require.Equal(t, "60", last.Header().Get("Retry-After"))
}
