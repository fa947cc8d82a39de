package sqlite

import (
	"context"
	"testing"

	"github.com/schelchok001-arch/boompoint/internal/model"
)

// newTestDB returns a DB backed by an in-memory SQLite database.
//
// The pool is pinned to a single connection: every database/sql connection to
// ":memory:" gets its OWN database, so a second pooled connection would see
// empty tables. One connection also serializes the concurrency tests, which
// is exactly what a single SQLite writer does in production.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	db.conn.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser creates a user and fails the test if it errors.
func createTestUser(t *testing.T, db *DB, name, email string) *model.User {
	t.Helper()
	user := &model.User{
		Name:  name,
		Email: email,
	}
	if err := db.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// appendEntry appends a ledger entry and fails the test if it errors.
// Returns the post-write balance.
func appendEntry(t *testing.T, db *DB, entry *model.LedgerEntry) int64 {
	t.Helper()
	balance, err := db.Append(context.Background(), entry)
	if err != nil {
		t.Fatalf("failed to append ledger entry: %v", err)
	}
	return balance
}
