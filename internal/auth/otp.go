// Package auth — one-time login code utilities.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor for hashing login codes.
//
// A 6-digit code has only a million possibilities, so the stored hash must be
// expensive to grind through if the login_tokens table ever leaks. Cost 12 at
// ~250ms per attempt puts a full sweep at roughly three days of CPU — and the
// codes expire after ten minutes anyway.
const defaultCost = 12

// CodeService generates one-time login codes and hashes them for storage.
//
// It's a struct (not free functions) so the bcrypt cost can be lowered in
// tests — cost 4 hashes in microseconds without changing the logic under
// test.
type CodeService struct {
	cost int
}

// NewCodeService creates a CodeService with the default cost.
func NewCodeService() *CodeService {
	return &CodeService{cost: defaultCost}
}

// NewCodeServiceWithCost creates a CodeService with a custom bcrypt cost.
func NewCodeServiceWithCost(cost int) *CodeService {
	return &CodeService{cost: cost}
}

// NewCode returns a random 6-digit code, zero-padded ("042913" is valid).
// crypto/rand, not math/rand — login codes are credentials.
func (s *CodeService) NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("auth: generating login code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Hash returns the bcrypt hash of a code for storage.
func (s *CodeService) Hash(code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing login code: %w", err)
	}
	return string(hash), nil
}

// Compare reports whether code matches the stored hash.
// A mismatch returns (false, nil); only unexpected failures return an error.
func (s *CodeService) Compare(hash, code string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("auth: comparing login code: %w", err)
}
