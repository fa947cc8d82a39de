package model

import (
	"encoding/json"
	"time"
)

// Point values awarded for the built-in actions. The action tag on a ledger
// entry is open-ended — new actions can be introduced without a schema change —
// but these are the ones the HTTP boundary currently produces.
const (
	ActionSignup            = "signup"
	ActionVerifyEmail       = "verify_email"
	ActionReferralConfirmed = "referral_confirmed"
	ActionDailyCheckIn      = "daily_checkin"
	ActionRewardRedeemed    = "reward_redeemed"

	SignupPoints   = 100
	VerifyPoints   = 50
	ReferralPoints = 200
)

// LedgerEntry is one immutable point-affecting event.
//
// Entries are append-only: once written they are never updated or deleted.
// The running balance in the balances table is a projection derived from
// these rows — summing Points over a user's entries must always reproduce
// their materialized balance.
//
// Meta holds free-form structured context, e.g. {"streak": 3, "day":
// "2026-08-29"} for a check-in or {"referee": "u_..."} for a referral bonus.
// It is kept as raw JSON rather than a typed struct because its shape varies
// per action.
type LedgerEntry struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Action    string          `json:"action"`
	Points    int64           `json:"points"` // signed: redemptions are negative
	Meta      json.RawMessage `json:"meta,omitempty"`
	Day       string          `json:"-"` // YYYY-MM-DD calendar stamp, set on check-in entries only
	CreatedAt time.Time       `json:"createdAt"`
}

// CheckInMeta is the structured metadata recorded on daily_checkin entries.
// Streak continuation is re-derived from the most recent prior entry's meta,
// so this is both display data and state.
type CheckInMeta struct {
	Day    string `json:"day"`
	Streak int    `json:"streak"`
}

// CheckInResult is what a daily check-in attempt returns. When Accepted is
// false (already checked in today) the remaining fields describe the current
// state: no entry was written and the balance is unchanged.
type CheckInResult struct {
	Accepted bool  `json:"ok"`
	Bonus    int64 `json:"bonus,omitempty"`
	Streak   int   `json:"streak,omitempty"`
	Balance  int64 `json:"balance"`
}

// LeaderboardRow is one entry of the windowed leaderboard: the sum of a
// user's points over entries inside the window. This is a separate
// aggregation from the all-time balance and is computed from the raw log.
type LeaderboardRow struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Score  int64  `json:"score"`
}
