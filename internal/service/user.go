package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/schelchok001-arch/boompoint/internal/apperror"
	"github.com/schelchok001-arch/boompoint/internal/model"
	"github.com/schelchok001-arch/boompoint/internal/repository"
)

// UserService handles signup, email verification (with the referral bonus),
// and wallet reads. It drives the LedgerService for every point award rather
// than touching balances directly — all point movement goes through the log.
type UserService struct {
	users  repository.UserRepository
	ledger *LedgerService
	logger *slog.Logger
}

// NewUserService creates a UserService.
func NewUserService(users repository.UserRepository, ledger *LedgerService, logger *slog.Logger) *UserService {
	return &UserService{
		users:  users,
		ledger: ledger,
		logger: logger,
	}
}

// Wallet bundles a balance with recent history, the shape of GET /api/wallet.
type Wallet struct {
	Balance      int64               `json:"balance"`
	Transactions []model.LedgerEntry `json:"transactions"`
}

// Signup registers a new account and awards the signup bonus.
//
// Email is the unique key, stored lowercased. A duplicate email is rejected
// with Conflict and leaves no trace: the user insert fails before any ledger
// write happens, so balance and log are untouched.
//
// ref is an optional referral code from a share link. It is stored as-is; the
// referrer's bonus is paid later, when this user verifies their email.
func (s *UserService) Signup(ctx context.Context, name, email, ref string) (*model.User, int64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, 0, apperror.ValidationFailed("email", "email is required")
	}

	user := &model.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		ReferrerCode: strings.TrimSpace(ref),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if !errors.Is(err, apperror.ErrConflict) {
			s.logger.Error("failed to create user",
				slog.String("email", email),
				slog.String("error", err.Error()),
			)
		}
		return nil, 0, err
	}

	balance, err := s.ledger.Record(ctx, user.ID, model.SignupPoints, model.ActionSignup, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("awarding signup bonus: %w", err)
	}

	s.logger.Info("user signed up",
		slog.String("user_id", user.ID),
		slog.String("code", user.ReferralCode),
		slog.Bool("referred", user.ReferrerCode != ""),
	)

	return user, balance, nil
}

// VerifyEmail marks the user verified and pays the verification bonus, once.
//
// The flag transitions false→true at most once: MarkVerified reports whether
// this call did the transition, and only then are points awarded. Repeat
// calls are accepted no-ops, so the endpoint is idempotent.
//
// On first verification, if the user carries a referrer code that resolves to
// a real user, the referrer is paid the referral bonus with the referee
// recorded in the entry meta. An unresolvable code is silently ignored.
func (s *UserService) VerifyEmail(ctx context.Context, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, apperror.ValidationFailed("user_id", "user id is required")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}

	transitioned, err := s.users.MarkVerified(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("verifying user: %w", err)
	}

	if transitioned {
		if _, err := s.ledger.Record(ctx, userID, model.VerifyPoints, model.ActionVerifyEmail, nil); err != nil {
			return 0, fmt.Errorf("awarding verification bonus: %w", err)
		}

		if user.ReferrerCode != "" {
			referrer, err := s.users.GetByReferralCode(ctx, user.ReferrerCode)
			switch {
			case err == nil:
				if _, err := s.ledger.Record(ctx, referrer.ID, model.ReferralPoints,
					model.ActionReferralConfirmed, map[string]string{"referee": userID}); err != nil {
					return 0, fmt.Errorf("awarding referral bonus: %w", err)
				}
			case errors.Is(err, apperror.ErrNotFound):
				// Dangling referral code — the referee keeps their points,
				// nobody gets the referral bonus.
				s.logger.Warn("referrer code did not resolve",
					slog.String("user_id", userID),
					slog.String("code", user.ReferrerCode),
				)
			default:
				return 0, fmt.Errorf("resolving referrer: %w", err)
			}
		}
	}

	return s.ledger.Balance(ctx, userID)
}

// WalletFor returns the user's balance and recent transactions.
// The balance read is O(1) against the projection; history is capped at
// DefaultHistoryLimit entries.
func (s *UserService) WalletFor(ctx context.Context, userID string) (*Wallet, error) {
	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reading balance: %w", err)
	}

	entries, err := s.ledger.History(ctx, userID, DefaultHistoryLimit)
	if err != nil {
		return nil, err
	}

	return &Wallet{Balance: balance, Transactions: entries}, nil
}

// GetByID retrieves a user, NotFound if absent.
func (s *UserService) GetByID(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}
