package http

import (
	"log/slog"
	"net/http"

	"github.com/wardenauth/warden/pkg/httpx"
	"github.com/wardenauth/warden/pkg/slogx"
)

// NewRouter assembles the public API. Unauthenticated credential
// endpoints sit behind the strict per-IP limit; account-management
// endpoints require a bearer token and get the moderate limit.
func NewRouter(h *Handler, verifier httpx.AccessVerifier, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	strict := httpx.RateLimitByIP(httpx.StrictLimit)
	moderate := httpx.RateLimitByIP(httpx.ModerateLimit)
	authed := httpx.AuthnMiddleware(verifier)

	mux.Handle("POST /v1/auth/register", httpx.Chain(http.HandlerFunc(h.handleRegister), strict))
	mux.Handle("POST /v1/auth/login", httpx.Chain(http.HandlerFunc(h.handleLogin), strict))
	mux.Handle("POST /v1/auth/refresh", httpx.Chain(http.HandlerFunc(h.handleRefresh), strict))
	mux.Handle("POST /v1/auth/2fa/verify", httpx.Chain(http.HandlerFunc(h.handleTwoFactorVerify), strict))
	mux.Handle("POST /v1/auth/2fa/recovery", httpx.Chain(http.HandlerFunc(h.handleRecoveryLogin), strict))

	mux.Handle("POST /v1/2fa/setup", httpx.Chain(http.HandlerFunc(h.handleSetup), moderate, authed))
	mux.Handle("POST /v1/2fa/confirm", httpx.Chain(http.HandlerFunc(h.handleConfirmSetup), moderate, authed))
	mux.Handle("POST /v1/2fa/disable", httpx.Chain(http.HandlerFunc(h.handleDisable), moderate, authed))
	mux.Handle("POST /v1/2fa/recovery-codes", httpx.Chain(http.HandlerFunc(h.handleRegenerateCodes), moderate, authed))

	mux.Handle("POST /v1/account/password", httpx.Chain(http.HandlerFunc(h.handleChangePassword), moderate, authed))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return slogx.HTTPMiddleware(logger)(mux)
}
