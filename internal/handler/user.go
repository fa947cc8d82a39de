// Package handler is the HTTP boundary: it parses requests, calls the
// services, and writes JSON. No business rules live here.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/schelchok001-arch/boompoint/internal/service"
)

// UserHandler serves signup, email verification, wallet reads, and the
// referral-link redirect.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

type signupRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Ref   string `json:"ref"`
}

type signupResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Code    string `json:"code"`
	Balance int64  `json:"balance"`
}

// HandleSignup registers a new account.
//
// HTTP: POST /api/signup
// BODY: {"name": "...", "email": "...", "ref": "<referral code, optional>"}
//
// 409 on duplicate email, 400 on missing email. The new account starts with
// the signup bonus already on its balance.
func (h *UserHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid JSON body"})
		return
	}

	user, balance, err := h.users.Signup(r.Context(), req.Name, req.Email, req.Ref)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, signupResponse{
		ID:      user.ID,
		Name:    user.Name,
		Email:   user.Email,
		Code:    user.ReferralCode,
		Balance: balance,
	})
}

type verifyEmailRequest struct {
	UserID string `json:"user_id"`
}

// HandleVerifyEmail flips the verified flag and pays out bonuses.
//
// HTTP: POST /api/verify-email
// BODY: {"user_id": "..."}
//
// Idempotent: repeat calls return ok with the current balance and award
// nothing further.
func (h *UserHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid JSON body"})
		return
	}

	balance, err := h.users.VerifyEmail(r.Context(), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "balance": balance})
}

// HandleWallet returns a user's balance and recent transactions.
//
// HTTP: GET /api/wallet/{id}
func (h *UserHandler) HandleWallet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "user id is required"})
		return
	}

	wallet, err := h.users.WalletFor(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, wallet)
}

// HandleReferralRedirect turns a share link into a signup page visit.
//
// HTTP: GET /r/{code} → 302 /?ref={code}
func (h *UserHandler) HandleReferralRedirect(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	http.Redirect(w, r, "/?ref="+url.QueryEscape(code), http.StatusFound)
}
