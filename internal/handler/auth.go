package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/schelchok001-arch/boompoint/internal/service"
)

// AuthHandler serves the passwordless login flow.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

type loginStartRequest struct {
	Email string `json:"email"`
}

// HandleLoginStart mails a one-time login code.
//
// HTTP: POST /api/login/start
// BODY: {"email": "..."}
//
// 404 for unknown addresses, 502 when the mail relay fails (the caller may
// simply retry — a replaced code invalidates the old one).
func (h *AuthHandler) HandleLoginStart(w http.ResponseWriter, r *http.Request) {
	var req loginStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid JSON body"})
		return
	}

	if err := h.auth.StartLogin(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type loginVerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// HandleLoginVerify exchanges a login code for a session token.
//
// HTTP: POST /api/login/verify
// BODY: {"email": "...", "code": "123456"}
//
// Codes are single use and expire after 10 minutes; both failure modes come
// back as 400.
func (h *AuthHandler) HandleLoginVerify(w http.ResponseWriter, r *http.Request) {
	var req loginVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid JSON body"})
		return
	}

	token, user, err := h.auth.VerifyLogin(r.Context(), req.Email, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"token": token,
		"user":  user,
	})
}
