package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/schelchok001-arch/boompoint/internal/apperror"
	"github.com/schelchok001-arch/boompoint/internal/model"
	"github.com/schelchok001-arch/boompoint/internal/repository"
)

// compile-time check that *DB implements repository.TokenRepository
var _ repository.TokenRepository = (*DB)(nil)

// Put stores a pending login code, replacing any earlier one for the same
// email. INSERT OR REPLACE keys on the email primary key, so requesting a
// fresh code invalidates the previous code in the same statement.
func (db *DB) Put(ctx context.Context, token *model.LoginToken) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO login_tokens (email, code_hash, exp) VALUES (?, ?, ?)`,
		token.Email,
		token.CodeHash,
		token.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: storing login token for %s: %w", token.Email, err)
	}
	return nil
}

// Get returns the pending login token for an email.
func (db *DB) Get(ctx context.Context, email string) (*model.LoginToken, error) {
	var t model.LoginToken
	err := db.conn.QueryRowContext(ctx,
		`SELECT email, code_hash, exp FROM login_tokens WHERE email = ?`, email,
	).Scan(&t.Email, &t.CodeHash, &t.ExpiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("login token", email)
		}
		return nil, fmt.Errorf("sqlite: getting login token for %s: %w", email, err)
	}
	return &t, nil
}

// Delete removes a login token. Deleting an absent token is not an error —
// verify and expiry cleanup both call this unconditionally.
func (db *DB) Delete(ctx context.Context, email string) error {
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM login_tokens WHERE email = ?`, email,
	); err != nil {
		return fmt.Errorf("sqlite: deleting login token for %s: %w", email, err)
	}
	return nil
}
