package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/schelchok001-arch/boompoint/internal/apperror"
	"github.com/schelchok001-arch/boompoint/internal/model"
	"github.com/schelchok001-arch/boompoint/internal/repository"
)

// RewardService manages the reward catalogue and redemption.
type RewardService struct {
	rewards repository.RewardRepository
	ledger  *LedgerService
	logger  *slog.Logger
}

// NewRewardService creates a RewardService.
func NewRewardService(rewards repository.RewardRepository, ledger *LedgerService, logger *slog.Logger) *RewardService {
	return &RewardService{
		rewards: rewards,
		ledger:  ledger,
		logger:  logger,
	}
}

// List returns the reward catalogue.
func (s *RewardService) List(ctx context.Context) ([]model.Reward, error) {
	rewards, err := s.rewards.ListRewards(ctx)
	if err != nil {
		s.logger.Error("failed to list rewards", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing rewards: %w", err)
	}
	return rewards, nil
}

// Redeem spends points on a reward: the stock is taken first (atomic
// conditional decrement — sold out is a Conflict with no side effect), then
// the cost is recorded as a negative ledger entry.
//
// The balance is NOT checked: spending below zero is allowed, consistent with
// the rest of the engine never flooring balances.
func (s *RewardService) Redeem(ctx context.Context, userID, rewardID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, apperror.ValidationFailed("user_id", "user id is required")
	}

	reward, err := s.rewards.GetReward(ctx, rewardID)
	if err != nil {
		return 0, err
	}

	if err := s.rewards.DecrementStock(ctx, rewardID); err != nil {
		return 0, err
	}

	balance, err := s.ledger.Record(ctx, userID, -reward.Cost, model.ActionRewardRedeemed,
		map[string]string{"reward": rewardID, "title": reward.Title})
	if err != nil {
		return 0, fmt.Errorf("recording redemption: %w", err)
	}

	s.logger.Info("reward redeemed",
		slog.String("user_id", userID),
		slog.String("reward_id", rewardID),
		slog.Int64("cost", reward.Cost),
	)

	return balance, nil
}
