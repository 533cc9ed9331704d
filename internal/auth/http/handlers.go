// Package http exposes the authentication service over a JSON API.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wardenauth/warden/internal/auth/service"
	"github.com/wardenauth/warden/pkg/httpx"
	"github.com/wardenauth/warden/pkg/slogx"
)

// Handler bundles the services behind the HTTP surface.
type Handler struct {
	Login     *service.LoginService
	TwoFactor *service.TwoFactorService
	Users     *service.UserService
}

func NewHandler(login *service.LoginService, twoFactor *service.TwoFactorService, users *service.UserService) *Handler {
	return &Handler{Login: login, TwoFactor: twoFactor, Users: users}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type twoFactorVerifyRequest struct {
	TwoFactorToken string `json:"two_factor_token"`
	Code           string `json:"code"`
}

type recoveryLoginRequest struct {
	TwoFactorToken string `json:"two_factor_token"`
	RecoveryCode   string `json:"recovery_code"`
}

type confirmSetupRequest struct {
	SetupToken string `json:"setup_token"`
	Code       string `json:"code"`
}

type dualProofRequest struct {
	Password string `json:"password"`
	Code     string `json:"code"`
}

type recoveryCodesResponse struct {
	RecoveryCodes []string `json:"recovery_codes"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.Users.RegisterUser(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, registerResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.Login.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}

	pair, err := h.Login.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pair)
}

func (h *Handler) handleTwoFactorVerify(w http.ResponseWriter, r *http.Request) {
	var req twoFactorVerifyRequest
	if !decode(w, r, &req) {
		return
	}

	pair, err := h.Login.VerifyTwoFactor(r.Context(), req.TwoFactorToken, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pair)
}

func (h *Handler) handleRecoveryLogin(w http.ResponseWriter, r *http.Request) {
	var req recoveryLoginRequest
	if !decode(w, r, &req) {
		return
	}

	pair, err := h.Login.UseRecoveryCode(r.Context(), req.TwoFactorToken, req.RecoveryCode)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pair)
}

func (h *Handler) handleSetup(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(httpx.CtxKeyUserID).(string)
	if !ok || userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "missing authenticated user")
		return
	}

	setup, err := h.TwoFactor.BeginSetup(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, setup)
}

func (h *Handler) handleConfirmSetup(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(httpx.CtxKeyUserID).(string)
	if !ok || userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "missing authenticated user")
		return
	}

	var req confirmSetupRequest
	if !decode(w, r, &req) {
		return
	}

	codes, err := h.TwoFactor.ConfirmSetup(r.Context(), userID, req.SetupToken, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, recoveryCodesResponse{RecoveryCodes: codes})
}

func (h *Handler) handleDisable(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(httpx.CtxKeyUserID).(string)
	if !ok || userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "missing authenticated user")
		return
	}

	var req dualProofRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.TwoFactor.Disable(r.Context(), userID, req.Password, req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRegenerateCodes(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(httpx.CtxKeyUserID).(string)
	if !ok || userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "missing authenticated user")
		return
	}

	var req dualProofRequest
	if !decode(w, r, &req) {
		return
	}

	codes, err := h.TwoFactor.RegenerateRecoveryCodes(r.Context(), userID, req.Password, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, recoveryCodesResponse{RecoveryCodes: codes})
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(httpx.CtxKeyUserID).(string)
	if !ok || userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "missing authenticated user")
		return
	}

	var req changePasswordRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.Users.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return false
	}
	return true
}

// writeServiceError maps service sentinels onto HTTP statuses. Anything
// unrecognised is an internal error and is logged rather than leaked.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidRefresh),
		errors.Is(err, service.ErrInvalidChallenge),
		errors.Is(err, service.ErrInvalidSetup),
		errors.Is(err, service.ErrInvalidCode),
		errors.Is(err, service.ErrInvalidRecovery),
		errors.Is(err, service.ErrNoRecoveryCodes):
		httpx.WriteError(w, http.StatusUnauthorized, err.Error(), "")
	case errors.Is(err, service.ErrTwoFactorEnabled),
		errors.Is(err, service.ErrTwoFactorDisabled),
		errors.Is(err, service.ErrUsernameTaken):
		httpx.WriteError(w, http.StatusConflict, err.Error(), "")
	default:
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "")
	}
}
