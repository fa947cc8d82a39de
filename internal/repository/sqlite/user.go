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

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// Create inserts a new user.
//
// ID and referral code are generated here: the ID is an xid and the referral
// code is its 6-char tail — short enough for a share link, and the UNIQUE
// constraint on code catches the (unlikely) collision.
//
// A duplicate email maps to apperror.ErrConflict so the signup handler can
// answer 409 without inspecting driver errors itself.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	user.ID = "u_" + xid.New().String()
	user.ReferralCode = user.ID[len(user.ID)-6:]
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, name, email, code, referrer_code, verified, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.ReferralCode,
		user.ReferrerCode,
		user.Verified,
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user (email=%s): %w", user.Email, err)
	}

	return nil
}

// GetByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, `id = ?`, id)
}

// GetByEmail retrieves a user by email. Callers are expected to lowercase the
// address before storage, so the lookup is a plain equality.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, `email = ?`, email)
}

// GetByReferralCode resolves a short referral code to its owner.
func (db *DB) GetByReferralCode(ctx context.Context, code string) (*model.User, error) {
	return db.getUser(ctx, `code = ?`, code)
}

func (db *DB) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User
	var verified int

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, email, code, referrer_code, verified, created_at
		 FROM users WHERE `+where,
		arg,
	).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.ReferralCode,
		&u.ReferrerCode,
		&verified,
		&u.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", fmt.Sprintf("%v", arg))
		}
		return nil, fmt.Errorf("sqlite: getting user %v: %w", arg, err)
	}

	u.Verified = verified != 0
	return &u, nil
}

// MarkVerified sets the verified flag, transitioning false→true at most once.
//
// The WHERE clause filters on verified = 0, so RowsAffected distinguishes
// "this call did the transition" (1) from "already verified" (0) in a single
// statement — no read-then-write race between two concurrent verify calls.
func (db *DB) MarkVerified(ctx context.Context, id string) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET verified = 1 WHERE id = ? AND verified = 0`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: verifying user %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}
