// Package service contains the business logic layer: point accounting,
// signup/referral flows, login, and reward redemption.
//
// Services accept the repository interfaces (not the concrete sqlite.DB) so
// tests can substitute in-memory mocks, and they return apperror values that
// the handler layer translates to HTTP status codes.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/schelchok001-arch/boompoint/internal/apperror"
	"github.com/schelchok001-arch/boompoint/internal/model"
	"github.com/schelchok001-arch/boompoint/internal/repository"
)

const (
	// DefaultHistoryLimit bounds the wallet transaction list.
	DefaultHistoryLimit = 100

	// Check-in bonus: base 10, +2 per extra consecutive day, capped at 30
	// (saturates once the streak reaches 11 days).
	checkInBase     = 10
	checkInStep     = 2
	checkInBonusCap = 20

	// dayFormat is the structured calendar stamp on check-in entries.
	// Plain equality on this string replaces the source system's substring
	// match over serialized metadata.
	dayFormat = "2006-01-02"
)

// LedgerService is the points engine: it records immutable entries, keeps the
// balance projection consistent, and derives check-in streaks and the
// windowed leaderboard.
type LedgerService struct {
	repo   repository.LedgerRepository
	logger *slog.Logger

	// now is the clock; tests override it to walk through calendar days.
	now func() time.Time

	// checkInMu serializes DailyCheckIn per user. The streak computation is
	// read-then-write (inspect last check-in, then append), and two
	// concurrent calls for the same user must not both pass the same-day
	// guard. One mutex per user id; different users proceed in parallel.
	mu        sync.Mutex
	checkInMu map[string]*sync.Mutex
}

// NewLedgerService creates a LedgerService.
func NewLedgerService(repo repository.LedgerRepository, logger *slog.Logger) *LedgerService {
	return &LedgerService{
		repo:      repo,
		logger:    logger,
		now:       time.Now,
		checkInMu: make(map[string]*sync.Mutex),
	}
}

// Record appends an immutable ledger entry and returns the post-write
// balance.
//
// points is a signed delta: all built-in earning actions are positive, reward
// redemptions are negative. The balance is allowed to go negative — no floor
// is enforced. meta may be nil; anything else is serialized into the entry.
//
// The entry insert and balance update are one atomic unit in storage: a
// failed Record has no observable effect and is safe to retry.
func (s *LedgerService) Record(ctx context.Context, userID string, points int64, action string, meta any) (int64, error) {
	if userID == "" {
		return 0, apperror.ValidationFailed("user_id", "user id is required")
	}
	if action == "" {
		return 0, apperror.ValidationFailed("action", "action is required")
	}

	entry, err := s.buildEntry(userID, points, action, meta)
	if err != nil {
		return 0, err
	}

	balance, err := s.repo.Append(ctx, entry)
	if err != nil {
		s.logger.Error("failed to record ledger entry",
			slog.String("user_id", userID),
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("recording %s: %w", action, err)
	}

	s.logger.Info("points recorded",
		slog.String("user_id", userID),
		slog.String("action", action),
		slog.Int64("points", points),
		slog.Int64("balance", balance),
	)

	return balance, nil
}

// Balance returns the user's materialized balance; 0 for a user who has
// never transacted.
func (s *LedgerService) Balance(ctx context.Context, userID string) (int64, error) {
	return s.repo.Balance(ctx, userID)
}

// History returns the user's most recent entries, newest first. limit is
// clamped to 1..DefaultHistoryLimit.
func (s *LedgerService) History(ctx context.Context, userID string, limit int) ([]model.LedgerEntry, error) {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}
	entries, err := s.repo.History(ctx, userID, limit)
	if err != nil {
		s.logger.Error("failed to list history",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing history: %w", err)
	}
	return entries, nil
}

// DailyCheckIn awards the daily bonus, at most once per calendar day per
// user.
//
// State machine: if a daily_checkin entry already exists for today the call
// is an accepted:false no-op — nothing is written, the balance is untouched,
// and repeating the call is harmless. Otherwise the streak is derived from
// the single most recent prior check-in: exactly-yesterday continues it,
// anything else resets to 1.
func (s *LedgerService) DailyCheckIn(ctx context.Context, userID string) (*model.CheckInResult, error) {
	if userID == "" {
		return nil, apperror.ValidationFailed("user_id", "user id is required")
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()
	today := now.Format(dayFormat)

	last, err := s.repo.LastCheckIn(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading last check-in: %w", err)
	}

	if last != nil && last.Day == today {
		balance, err := s.repo.Balance(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("reading balance: %w", err)
		}
		return &model.CheckInResult{Accepted: false, Balance: balance}, nil
	}

	streak := 1
	if last != nil {
		yesterday := now.AddDate(0, 0, -1).Format(dayFormat)
		if last.Day == yesterday {
			var prev model.CheckInMeta
			if err := json.Unmarshal(last.Meta, &prev); err == nil {
				streak = prev.Streak + 1
			}
		}
	}

	bonus := int64(checkInBase + min(checkInBonusCap, checkInStep*(streak-1)))

	entry, err := s.buildEntry(userID, bonus, model.ActionDailyCheckIn,
		model.CheckInMeta{Day: today, Streak: streak})
	if err != nil {
		return nil, err
	}
	entry.Day = today

	balance, err := s.repo.Append(ctx, entry)
	if err != nil {
		s.logger.Error("failed to record check-in",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("recording check-in: %w", err)
	}

	s.logger.Info("daily check-in",
		slog.String("user_id", userID),
		slog.Int("streak", streak),
		slog.Int64("bonus", bonus),
	)

	return &model.CheckInResult{
		Accepted: true,
		Bonus:    bonus,
		Streak:   streak,
		Balance:  balance,
	}, nil
}

// Leaderboard aggregates per-user scores over entries created at or after
// `since`, descending. The aggregation runs over the raw log, independent of
// the balance projection.
func (s *LedgerService) Leaderboard(ctx context.Context, since time.Time, limit int) ([]model.LeaderboardRow, error) {
	if limit <= 0 {
		limit = 10
	}
	top, err := s.repo.Leaderboard(ctx, since, limit)
	if err != nil {
		s.logger.Error("failed to query leaderboard", slog.String("error", err.Error()))
		return nil, fmt.Errorf("querying leaderboard: %w", err)
	}
	return top, nil
}

func (s *LedgerService) buildEntry(userID string, points int64, action string, meta any) (*model.LedgerEntry, error) {
	entry := &model.LedgerEntry{
		UserID:    userID,
		Action:    action,
		Points:    points,
		CreatedAt: s.now(),
	}
	if meta != nil {
		raw, err := json.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("encoding entry meta: %w", err)
		}
		entry.Meta = raw
	}
	return entry, nil
}

// userLock returns the per-user check-in mutex, creating it on first use.
// Entries are never evicted; the map grows with the number of distinct users
// who check in, a few dozen bytes each.
func (s *LedgerService) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.checkInMu[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.checkInMu[userID] = lock
	}
	return lock
}
