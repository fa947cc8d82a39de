package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/schelchok001-arch/boompoint/internal/apperror"
	"github.com/schelchok001-arch/boompoint/internal/model"
	"github.com/schelchok001-arch/boompoint/internal/repository"
)

// =========================================================================
// MOCK LEDGER REPOSITORY
// =========================================================================
//
// In-memory implementation of repository.LedgerRepository. It maintains the
// same invariant as the sqlite implementation — balance equals the sum of
// entries — so service tests exercise real arithmetic, just without disk.

type mockLedgerRepo struct {
	entries  []model.LedgerEntry
	balances map[string]int64
	nextID   int
	failNext error // when set, the next Append fails with this error and clears it
}

func newMockLedgerRepo() *mockLedgerRepo {
	return &mockLedgerRepo{balances: make(map[string]int64)}
}

func (m *mockLedgerRepo) Append(_ context.Context, entry *model.LedgerEntry) (int64, error) {
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return 0, err
	}
	for _, e := range m.entries {
		if e.Action == model.ActionDailyCheckIn && entry.Action == model.ActionDailyCheckIn &&
			e.UserID == entry.UserID && e.Day == entry.Day {
			return 0, apperror.Conflict("ledger entry", entry.UserID+"/"+entry.Day)
		}
	}
	m.nextID++
	entry.ID = fmt.Sprintf("tx_mock-%d", m.nextID)
	m.entries = append(m.entries, *entry)
	m.balances[entry.UserID] += entry.Points
	return m.balances[entry.UserID], nil
}

func (m *mockLedgerRepo) Balance(_ context.Context, userID string) (int64, error) {
	return m.balances[userID], nil
}

func (m *mockLedgerRepo) History(_ context.Context, userID string, limit int) ([]model.LedgerEntry, error) {
	var result []model.LedgerEntry
	for i := len(m.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if m.entries[i].UserID == userID {
			result = append(result, m.entries[i])
		}
	}
	return result, nil
}

func (m *mockLedgerRepo) LastCheckIn(_ context.Context, userID string) (*model.LedgerEntry, error) {
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.UserID == userID && e.Action == model.ActionDailyCheckIn {
			return &e, nil
		}
	}
	return nil, nil
}

func (m *mockLedgerRepo) Leaderboard(_ context.Context, since time.Time, limit int) ([]model.LeaderboardRow, error) {
	scores := make(map[string]int64)
	for _, e := range m.entries {
		if !e.CreatedAt.Before(since) {
			scores[e.UserID] += e.Points
		}
	}
	var rows []model.LeaderboardRow
	for id, score := range scores {
		rows = append(rows, model.LeaderboardRow{UserID: id, Score: score})
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (m *mockLedgerRepo) RebuildBalances(_ context.Context) error {
	m.balances = make(map[string]int64)
	for _, e := range m.entries {
		m.balances[e.UserID] += e.Points
	}
	return nil
}

var _ repository.LedgerRepository = (*mockLedgerRepo)(nil)

// =========================================================================
// TEST HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestLedger creates a LedgerService over a mock repo with a fixed clock.
// The returned setNow function moves the clock; check-in tests use it to walk
// through calendar days.
func newTestLedger(t *testing.T) (*LedgerService, *mockLedgerRepo, func(time.Time)) {
	t.Helper()
	repo := newMockLedgerRepo()
	svc := NewLedgerService(repo, testLogger())

	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return current }
	return svc, repo, func(tm time.Time) { current = tm }
}

// =========================================================================
// RECORD TESTS
// =========================================================================

func TestRecord(t *testing.T) {
	svc, repo, _ := newTestLedger(t)

	balance, err := svc.Record(context.Background(), "u1", 100, model.ActionSignup, nil)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if balance != 100 {
		t.Errorf("Record() balance = %d, want 100", balance)
	}
	if len(repo.entries) != 1 {
		t.Fatalf("repo has %d entries, want 1", len(repo.entries))
	}
	if repo.entries[0].Action != model.ActionSignup {
		t.Errorf("Action = %q, want %q", repo.entries[0].Action, model.ActionSignup)
	}
}

func TestRecord_Validation(t *testing.T) {
	svc, _, _ := newTestLedger(t)

	if _, err := svc.Record(context.Background(), "", 10, "test", nil); err == nil {
		t.Error("Record() with empty user should fail")
	}
	if _, err := svc.Record(context.Background(), "u1", 10, "", nil); err == nil {
		t.Error("Record() with empty action should fail")
	}
}

func TestRecord_NegativeDeltaAllowed(t *testing.T) {
	svc, _, _ := newTestLedger(t)

	// Balances are deliberately not floored at zero.
	balance, err := svc.Record(context.Background(), "u1", -500, model.ActionRewardRedeemed, nil)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if balance != -500 {
		t.Errorf("Record() balance = %d, want -500", balance)
	}
}

// =========================================================================
// DAILY CHECK-IN TESTS
// =========================================================================

func checkInOn(t *testing.T, svc *LedgerService, setNow func(time.Time), day time.Time) *model.CheckInResult {
	t.Helper()
	setNow(day)
	result, err := svc.DailyCheckIn(context.Background(), "u1")
	if err != nil {
		t.Fatalf("DailyCheckIn() error = %v", err)
	}
	return result
}

func TestDailyCheckIn_First(t *testing.T) {
	svc, _, setNow := newTestLedger(t)

	result := checkInOn(t, svc, setNow, time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC))

	if !result.Accepted {
		t.Fatal("first check-in should be accepted")
	}
	if result.Streak != 1 {
		t.Errorf("Streak = %d, want 1", result.Streak)
	}
	if result.Bonus != 10 {
		t.Errorf("Bonus = %d, want 10", result.Bonus)
	}
	if result.Balance != 10 {
		t.Errorf("Balance = %d, want 10", result.Balance)
	}
}

func TestDailyCheckIn_SameDayRejected(t *testing.T) {
	svc, repo, setNow := newTestLedger(t)

	day := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	checkInOn(t, svc, setNow, day)

	// Later the same day — calendar day is what matters, not 24h elapsed.
	result := checkInOn(t, svc, setNow, day.Add(10*time.Hour))

	if result.Accepted {
		t.Fatal("second check-in on the same day should be rejected")
	}
	if result.Balance != 10 {
		t.Errorf("Balance = %d after rejected check-in, want 10", result.Balance)
	}
	if len(repo.entries) != 1 {
		t.Errorf("repo has %d entries, want 1 (no entry for rejected check-in)", len(repo.entries))
	}
}

// Day 1, 2, 3 build the streak; skipping day 4 resets day 5 to streak 1.
func TestDailyCheckIn_StreakSequence(t *testing.T) {
	svc, _, setNow := newTestLedger(t)
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		day        int // offset from start
		wantStreak int
		wantBonus  int64
	}{
		{0, 1, 10},
		{1, 2, 12},
		{2, 3, 14},
		// day 3 (offset) skipped
		{4, 1, 10},
	}

	for _, tt := range tests {
		result := checkInOn(t, svc, setNow, start.AddDate(0, 0, tt.day))
		if !result.Accepted {
			t.Fatalf("day +%d: check-in rejected", tt.day)
		}
		if result.Streak != tt.wantStreak {
			t.Errorf("day +%d: Streak = %d, want %d", tt.day, result.Streak, tt.wantStreak)
		}
		if result.Bonus != tt.wantBonus {
			t.Errorf("day +%d: Bonus = %d, want %d", tt.day, result.Bonus, tt.wantBonus)
		}
	}
}

// The bonus ramp saturates at 30 once the streak reaches 11 and stays capped
// far beyond.
func TestDailyCheckIn_BonusCap(t *testing.T) {
	svc, _, setNow := newTestLedger(t)
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	var last *model.CheckInResult
	for day := 0; day < 50; day++ {
		last = checkInOn(t, svc, setNow, start.AddDate(0, 0, day))
	}

	if last.Streak != 50 {
		t.Fatalf("Streak = %d, want 50", last.Streak)
	}
	if last.Bonus != 30 {
		t.Errorf("Bonus at streak 50 = %d, want 30 (capped)", last.Bonus)
	}

	// Spot-check the saturation point.
	svc2, _, setNow2 := newTestLedger(t)
	var at11 *model.CheckInResult
	for day := 0; day < 11; day++ {
		at11 = checkInOn(t, svc2, setNow2, start.AddDate(0, 0, day))
	}
	if at11.Streak != 11 || at11.Bonus != 30 {
		t.Errorf("streak 11: got streak=%d bonus=%d, want streak=11 bonus=30", at11.Streak, at11.Bonus)
	}
}

func TestDailyCheckIn_RecordsStructuredMeta(t *testing.T) {
	svc, repo, setNow := newTestLedger(t)

	checkInOn(t, svc, setNow, time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC))

	entry := repo.entries[0]
	if entry.Day != "2026-08-01" {
		t.Errorf("entry.Day = %q, want %q", entry.Day, "2026-08-01")
	}

	var meta model.CheckInMeta
	if err := json.Unmarshal(entry.Meta, &meta); err != nil {
		t.Fatalf("failed to decode check-in meta: %v", err)
	}
	if meta.Day != "2026-08-01" || meta.Streak != 1 {
		t.Errorf("meta = %+v, want day 2026-08-01 streak 1", meta)
	}
}

// =========================================================================
// LEADERBOARD / HISTORY TESTS
// =========================================================================

func TestLeaderboard_PassesWindow(t *testing.T) {
	svc, repo, _ := newTestLedger(t)

	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	repo.entries = append(repo.entries,
		model.LedgerEntry{UserID: "u1", Action: "test", Points: 50, CreatedAt: now.AddDate(0, 0, -8)},
		model.LedgerEntry{UserID: "u1", Action: "test", Points: 5, CreatedAt: now.Add(-time.Hour)},
	)

	top, err := svc.Leaderboard(context.Background(), now.AddDate(0, 0, -7), 10)
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	if len(top) != 1 || top[0].Score != 5 {
		t.Errorf("Leaderboard() = %+v, want one row with score 5", top)
	}
}

func TestHistory_ClampsLimit(t *testing.T) {
	svc, repo, _ := newTestLedger(t)

	for i := 0; i < 5; i++ {
		repo.entries = append(repo.entries,
			model.LedgerEntry{UserID: "u1", Action: "test", Points: int64(i)})
	}

	entries, err := svc.History(context.Background(), "u1", -1)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 5 {
		t.Errorf("History() returned %d entries, want 5", len(entries))
	}
}
