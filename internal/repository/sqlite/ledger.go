package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/schelchok001-arch/boompoint/internal/apperror"
	"github.com/schelchok001-arch/boompoint/internal/model"
	"github.com/schelchok001-arch/boompoint/internal/repository"
)

// compile-time check that *DB implements repository.LedgerRepository
var _ repository.LedgerRepository = (*DB)(nil)

// Append writes one immutable ledger entry and folds its points into the
// user's materialized balance, as a single transaction.
//
// ATOMICITY:
// This is the one write in the system where partial application would corrupt
// state: an entry without the balance update (or vice versa) leaves the
// projection out of sync with the log. Both statements run inside one
// transaction — a failure in either rolls back both.
//
// LOST UPDATES:
// The balance update is not read-modify-write. It is a single conditional
// write:
//
//	INSERT ... ON CONFLICT(user_id) DO UPDATE SET points = points + excluded.points
//
// so two concurrent appends for the same user cannot overwrite each other's
// increment — SQLite serializes the writes and each one adds its own delta.
//
// Returns the post-write balance.
func (db *DB) Append(ctx context.Context, entry *model.LedgerEntry) (int64, error) {
	entry.ID = "tx_" + xid.New().String()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if len(entry.Meta) == 0 {
		entry.Meta = json.RawMessage("{}")
	}

	// day is NULL for everything except check-in entries; the partial unique
	// index on (user_id, day) only applies where it is set.
	var day any
	if entry.Day != "" {
		day = entry.Day
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: beginning append tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (id, user_id, action, points, meta, day, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.UserID,
		entry.Action,
		entry.Points,
		string(entry.Meta),
		day,
		entry.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// Two same-day check-ins raced past the service-level guard; the
			// rollback discards this one entirely.
			return 0, apperror.Conflict("ledger entry", entry.UserID+"/"+entry.Day)
		}
		return 0, fmt.Errorf("sqlite: inserting ledger entry: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO balances (user_id, points) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET points = points + excluded.points`,
		entry.UserID,
		entry.Points,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: upserting balance for %s: %w", entry.UserID, err)
	}

	var balance int64
	err = tx.QueryRowContext(ctx,
		`SELECT points FROM balances WHERE user_id = ?`, entry.UserID,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("sqlite: reading balance for %s: %w", entry.UserID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: committing append: %w", err)
	}

	return balance, nil
}

// Balance returns the materialized balance, or 0 for a user who has never
// transacted. A missing row is not an error — it is the projection's zero
// value. This read never touches the entry log.
func (db *DB) Balance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT points FROM balances WHERE user_id = ?`, userID,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sqlite: getting balance for %s: %w", userID, err)
	}
	return balance, nil
}

// History returns the user's most recent entries, newest first.
func (db *DB) History(ctx context.Context, userID string, limit int) ([]model.LedgerEntry, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, action, points, meta, COALESCE(day, ''), created_at
		 FROM ledger_entries
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		userID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing history for %s: %w", userID, err)
	}
	defer rows.Close()

	entries := make([]model.LedgerEntry, 0, limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating history: %w", err)
	}

	return entries, nil
}

// LastCheckIn returns the single most recent daily_checkin entry for the
// user, or nil when they have never checked in. The check-in streak is
// re-derived from this row's meta and day stamp.
func (db *DB) LastCheckIn(ctx context.Context, userID string) (*model.LedgerEntry, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, action, points, meta, COALESCE(day, ''), created_at
		 FROM ledger_entries
		 WHERE user_id = ? AND action = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		userID,
		model.ActionDailyCheckIn,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting last check-in for %s: %w", userID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("sqlite: iterating last check-in: %w", err)
		}
		return nil, nil
	}
	return scanEntry(rows)
}

// Leaderboard aggregates points per user over entries created at or after
// `since`, descending by total.
//
// This deliberately scans the raw log rather than the balances projection:
// the projection answers "all-time balance", the leaderboard answers
// "score inside the window" — an entry older than the window still counts
// toward balance but must not count here.
func (db *DB) Leaderboard(ctx context.Context, since time.Time, limit int) ([]model.LeaderboardRow, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT u.id, u.name, SUM(t.points) AS score
		 FROM ledger_entries t
		 JOIN users u ON u.id = t.user_id
		 WHERE t.created_at >= ?
		 GROUP BY u.id
		 ORDER BY score DESC
		 LIMIT ?`,
		since,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying leaderboard: %w", err)
	}
	defer rows.Close()

	top := make([]model.LeaderboardRow, 0, limit)
	for rows.Next() {
		var r model.LeaderboardRow
		if err := rows.Scan(&r.UserID, &r.Name, &r.Score); err != nil {
			return nil, fmt.Errorf("sqlite: scanning leaderboard row: %w", err)
		}
		top = append(top, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating leaderboard: %w", err)
	}

	return top, nil
}

// RebuildBalances recomputes the projection from the entry log.
//
// The log is the source of truth; the balances table is derived. If a crash
// (or a bug) ever leaves them out of sync, this restores the invariant
// balance(u) == Σ points(u). Runs as one transaction so readers never observe
// a half-rebuilt table.
func (db *DB) RebuildBalances(ctx context.Context) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning rebuild tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM balances`); err != nil {
		return fmt.Errorf("sqlite: clearing balances: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO balances (user_id, points)
		 SELECT user_id, SUM(points) FROM ledger_entries GROUP BY user_id`,
	)
	if err != nil {
		return fmt.Errorf("sqlite: rebuilding balances: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing rebuild: %w", err)
	}
	return nil
}

// scanEntry reads one ledger_entries row. Works with both Query and QueryRow
// result shapes via the common Scan signature.
func scanEntry(rows *sql.Rows) (*model.LedgerEntry, error) {
	var e model.LedgerEntry
	var meta string
	if err := rows.Scan(
		&e.ID, &e.UserID, &e.Action, &e.Points, &meta, &e.Day, &e.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("sqlite: scanning ledger entry: %w", err)
	}
	e.Meta = json.RawMessage(meta)
	return &e, nil
}
