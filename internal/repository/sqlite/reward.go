package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/schelchok001-arch/boompoint/internal/apperror"
	"github.com/schelchok001-arch/boompoint/internal/model"
	"github.com/schelchok001-arch/boompoint/internal/repository"
)

// compile-time check that *DB implements repository.RewardRepository
var _ repository.RewardRepository = (*DB)(nil)

// CreateReward inserts a catalogue item.
func (db *DB) CreateReward(ctx context.Context, reward *model.Reward) error {
	reward.ID = "rw_" + xid.New().String()
	if reward.CreatedAt.IsZero() {
		reward.CreatedAt = time.Now()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO rewards (id, title, cost, stock, created_at) VALUES (?, ?, ?, ?, ?)`,
		reward.ID,
		reward.Title,
		reward.Cost,
		reward.Stock,
		reward.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting reward: %w", err)
	}
	return nil
}

// ListRewards returns the catalogue, newest first.
func (db *DB) ListRewards(ctx context.Context) ([]model.Reward, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, cost, stock, created_at FROM rewards ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		var r model.Reward
		if err := rows.Scan(&r.ID, &r.Title, &r.Cost, &r.Stock, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning reward row: %w", err)
		}
		rewards = append(rewards, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating rewards: %w", err)
	}

	return rewards, nil
}

// GetReward retrieves a reward by ID.
func (db *DB) GetReward(ctx context.Context, id string) (*model.Reward, error) {
	var r model.Reward
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, title, cost, stock, created_at FROM rewards WHERE id = ?`, id,
	).Scan(&r.ID, &r.Title, &r.Cost, &r.Stock, &r.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("reward", id)
		}
		return nil, fmt.Errorf("sqlite: getting reward %s: %w", id, err)
	}
	return &r, nil
}

// DecrementStock takes one unit of stock.
//
// The stock > 0 guard lives inside the UPDATE's WHERE clause, so the check
// and the decrement are one atomic statement: two concurrent redemptions of
// the last unit cannot both succeed. RowsAffected distinguishes "taken" from
// "sold out" (Conflict) and "no such reward" (NotFound).
func (db *DB) DecrementStock(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE rewards SET stock = stock - 1 WHERE id = ? AND stock > 0`, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: decrementing stock for %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		if _, err := db.GetReward(ctx, id); err != nil {
			return err // not found
		}
		return apperror.Conflict("reward", id+" out of stock")
	}
	return nil
}
