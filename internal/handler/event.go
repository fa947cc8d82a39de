package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/schelchok001-arch/boompoint/internal/apperror"
	"github.com/schelchok001-arch/boompoint/internal/model"
	"github.com/schelchok001-arch/boompoint/internal/service"
)

// leaderboardWindow is the trailing range the leaderboard aggregates over.
const (
	leaderboardWindow = 7 * 24 * time.Hour
	leaderboardLimit  = 10
)

// EventHandler serves point-earning events and the leaderboard.
type EventHandler struct {
	ledger *service.LedgerService
	users  *service.UserService
	logger *slog.Logger
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(ledger *service.LedgerService, users *service.UserService, logger *slog.Logger) *EventHandler {
	return &EventHandler{ledger: ledger, users: users, logger: logger}
}

type eventRequest struct {
	UserID string `json:"user_id"`
	Action string `json:"action"`
}

// HandleEvent dispatches a point-earning event.
//
// HTTP: POST /api/event
// BODY: {"user_id": "...", "action": "daily_checkin"}
//
// daily_checkin is the only externally triggerable action — everything else
// (signup, verification, referral, redemption) is a side effect of its own
// endpoint. A second check-in on the same day answers
// {"ok":false,"msg":"already_checked"} and changes nothing.
func (h *EventHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid JSON body"})
		return
	}

	if req.Action != model.ActionDailyCheckIn {
		writeError(w, apperror.ValidationFailed("action", "unknown action"))
		return
	}

	// The engine trusts userID to exist; the boundary validates it.
	if _, err := h.users.GetByID(r.Context(), req.UserID); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.ledger.DailyCheckIn(r.Context(), req.UserID)
	if err != nil {
		// Two same-day check-ins racing: the storage constraint rejected the
		// loser. Same outward behavior as the ordinary repeat call.
		if errors.Is(err, apperror.ErrConflict) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": false, "msg": "already_checked"})
			return
		}
		writeError(w, err)
		return
	}

	if !result.Accepted {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "msg": "already_checked"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleLeaderboard returns the trailing-week top scorers.
//
// HTTP: GET /api/leaderboard
//
// Scores come from the raw log windowed to the last 7 days — an entry 8 days
// old still counts toward a wallet balance but not here.
func (h *EventHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-leaderboardWindow)

	top, err := h.ledger.Leaderboard(r.Context(), since, leaderboardLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"top": top})
}
