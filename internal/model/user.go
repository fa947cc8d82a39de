// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Identity is an internal string ID (xid). The email address is the external
// identifier users log in with — it is stored lowercased and carries a UNIQUE
// constraint in the database.
//
// WHY ReferralCode AND ReferrerCode?
// Every user gets a short shareable code (ReferralCode) derived from their ID.
// If they signed up through someone else's link, that link's code is recorded
// as ReferrerCode. It is a loose reference by code, not a foreign key: the
// referrer is resolved when the referee verifies their email, and a dangling
// code simply means no bonus is paid.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	ReferralCode string    `json:"code"`
	ReferrerCode string    `json:"referrerCode,omitempty"` // empty when the user signed up without a link
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"createdAt"`
}
