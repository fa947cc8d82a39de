package handler

import (
	"log/slog"
	"net/http"

	"github.com/schelchok001-arch/boompoint/internal/auth"
	"github.com/schelchok001-arch/boompoint/internal/model"
	"github.com/schelchok001-arch/boompoint/internal/service"
)

// RewardHandler serves the reward catalogue and redemption.
type RewardHandler struct {
	rewards *service.RewardService
	logger  *slog.Logger
}

// NewRewardHandler creates a RewardHandler.
func NewRewardHandler(rewards *service.RewardService, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{rewards: rewards, logger: logger}
}

// HandleList returns the reward catalogue.
//
// HTTP: GET /api/rewards
func (h *RewardHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.rewards.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rewards": rewards})
}

// HandleRedeem spends points on a reward for the authenticated user.
//
// HTTP: POST /api/rewards/{id}/redeem   (bearer auth)
//
// The identity comes from the session token, not the body — redemption is the
// one spend operation, so it is not triggerable on someone else's behalf.
// 409 when the reward is out of stock.
func (h *RewardHandler) HandleRedeem(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// RequireAuth should have stopped the request already.
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "valid authentication required"})
		return
	}

	balance, err := h.rewards.Redeem(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "balance": balance})
}
