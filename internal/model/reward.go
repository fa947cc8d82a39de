package model

import "time"

// Reward is a catalogue item points can be spent on.
// Stock counts down on redemption and redemption stops at zero; the points
// balance itself is allowed to go negative (spending is not floored).
type Reward struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Cost      int64     `json:"cost"`
	Stock     int64     `json:"stock"`
	CreatedAt time.Time `json:"createdAt"`
}

// LoginToken is a pending one-time login code.
//
// The code itself is never stored — only its bcrypt hash. Tokens are keyed by
// email (one outstanding code per address; requesting a new one replaces the
// old), are single use, and expire after a short TTL.
type LoginToken struct {
	Email     string
	CodeHash  string
	ExpiresAt time.Time
}
