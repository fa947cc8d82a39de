package service

import (
	"context"
	"errors"
	"testing"

	"github.com/schelchok001-arch/boompoint/internal/apperror"
	"github.com/schelchok001-arch/boompoint/internal/model"
	"github.com/schelchok001-arch/boompoint/internal/repository"
)

type mockRewardRepo struct {
	rewards map[string]*model.Reward
}

func newMockRewardRepo() *mockRewardRepo {
	return &mockRewardRepo{rewards: make(map[string]*model.Reward)}
}

func (m *mockRewardRepo) CreateReward(_ context.Context, reward *model.Reward) error {
	reward.ID = "rw_mock-" + reward.Title
	stored := *reward
	m.rewards[reward.ID] = &stored
	return nil
}

func (m *mockRewardRepo) ListRewards(_ context.Context) ([]model.Reward, error) {
	var result []model.Reward
	for _, r := range m.rewards {
		result = append(result, *r)
	}
	return result, nil
}

func (m *mockRewardRepo) GetReward(_ context.Context, id string) (*model.Reward, error) {
	r, ok := m.rewards[id]
	if !ok {
		return nil, apperror.NotFound("reward", id)
	}
	result := *r
	return &result, nil
}

func (m *mockRewardRepo) DecrementStock(_ context.Context, id string) error {
	r, ok := m.rewards[id]
	if !ok {
		return apperror.NotFound("reward", id)
	}
	if r.Stock <= 0 {
		return apperror.Conflict("reward", id+" out of stock")
	}
	r.Stock--
	return nil
}

var _ repository.RewardRepository = (*mockRewardRepo)(nil)

func newTestRewardService(t *testing.T) (*RewardService, *mockRewardRepo, *mockLedgerRepo) {
	t.Helper()
	rewards := newMockRewardRepo()
	ledgerRepo := newMockLedgerRepo()
	ledger := NewLedgerService(ledgerRepo, testLogger())
	return NewRewardService(rewards, ledger, testLogger()), rewards, ledgerRepo
}

func TestRedeem(t *testing.T) {
	svc, rewards, ledger := newTestRewardService(t)

	reward := &model.Reward{Title: "mug", Cost: 150, Stock: 3}
	if err := rewards.CreateReward(context.Background(), reward); err != nil {
		t.Fatalf("CreateReward() error = %v", err)
	}
	ledger.balances["u1"] = 200

	balance, err := svc.Redeem(context.Background(), "u1", reward.ID)
	if err != nil {
		t.Fatalf("Redeem() error = %v", err)
	}
	if balance != 50 {
		t.Errorf("balance = %d, want 50", balance)
	}
	if rewards.rewards[reward.ID].Stock != 2 {
		t.Errorf("stock = %d, want 2", rewards.rewards[reward.ID].Stock)
	}

	// The redemption is a negative ledger entry, not a balance mutation.
	last := ledger.entries[len(ledger.entries)-1]
	if last.Action != model.ActionRewardRedeemed || last.Points != -150 {
		t.Errorf("entry = %+v, want reward_redeemed with -150 points", last)
	}
}

// Spending is not floored: redeeming with insufficient points drives the
// balance negative rather than failing.
func TestRedeem_AllowsNegativeBalance(t *testing.T) {
	svc, rewards, _ := newTestRewardService(t)

	reward := &model.Reward{Title: "mug", Cost: 150, Stock: 1}
	if err := rewards.CreateReward(context.Background(), reward); err != nil {
		t.Fatalf("CreateReward() error = %v", err)
	}

	balance, err := svc.Redeem(context.Background(), "u1", reward.ID)
	if err != nil {
		t.Fatalf("Redeem() error = %v", err)
	}
	if balance != -150 {
		t.Errorf("balance = %d, want -150", balance)
	}
}

func TestRedeem_OutOfStock(t *testing.T) {
	svc, rewards, ledger := newTestRewardService(t)

	reward := &model.Reward{Title: "mug", Cost: 150, Stock: 0}
	if err := rewards.CreateReward(context.Background(), reward); err != nil {
		t.Fatalf("CreateReward() error = %v", err)
	}

	_, err := svc.Redeem(context.Background(), "u1", reward.ID)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Redeem() error = %v, want ErrConflict", err)
	}
	if len(ledger.entries) != 0 {
		t.Error("rejected redemption must not write a ledger entry")
	}
}

func TestRedeem_UnknownReward(t *testing.T) {
	svc, _, _ := newTestRewardService(t)

	_, err := svc.Redeem(context.Background(), "u1", "rw_ghost")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Redeem() error = %v, want ErrNotFound", err)
	}
}
