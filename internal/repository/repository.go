// Package repository declares the storage interfaces the service layer is
// written against. The sqlite subpackage is the only implementation; tests
// substitute in-memory mocks.
package repository

import (
	"context"
	"time"

	"github.com/schelchok001-arch/boompoint/internal/model"
)

// UserRepository manages user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByReferralCode(ctx context.Context, code string) (*model.User, error)
	// MarkVerified flips the verified flag. Returns true when this call did
	// the transition (false means the user was already verified).
	MarkVerified(ctx context.Context, id string) (bool, error)
}

// LedgerRepository is the append-only point log plus its balance projection.
//
// Append is the one correctness-critical write in the system: the entry
// insert and the balance upsert must land together or not at all.
type LedgerRepository interface {
	Append(ctx context.Context, entry *model.LedgerEntry) (newBalance int64, err error)
	Balance(ctx context.Context, userID string) (int64, error)
	History(ctx context.Context, userID string, limit int) ([]model.LedgerEntry, error)
	// LastCheckIn returns the most recent daily_checkin entry for the user,
	// or nil when they have never checked in.
	LastCheckIn(ctx context.Context, userID string) (*model.LedgerEntry, error)
	Leaderboard(ctx context.Context, since time.Time, limit int) ([]model.LeaderboardRow, error)
	// RebuildBalances recomputes the projection from the log. Recovery path:
	// after a crash the projection can always be reproduced this way.
	RebuildBalances(ctx context.Context) error
}

// TokenRepository stores pending one-time login codes, keyed by email.
type TokenRepository interface {
	Put(ctx context.Context, token *model.LoginToken) error
	Get(ctx context.Context, email string) (*model.LoginToken, error)
	Delete(ctx context.Context, email string) error
}

// RewardRepository manages the reward catalogue.
type RewardRepository interface {
	CreateReward(ctx context.Context, reward *model.Reward) error
	ListRewards(ctx context.Context) ([]model.Reward, error)
	GetReward(ctx context.Context, id string) (*model.Reward, error)
	// DecrementStock atomically takes one unit of stock. Returns
	// apperror.ErrConflict when the reward is out of stock.
	DecrementStock(ctx context.Context, id string) error
}
