package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/schelchok001-arch/boompoint/internal/apperror"
	"github.com/schelchok001-arch/boompoint/internal/auth"
	"github.com/schelchok001-arch/boompoint/internal/mail"
	"github.com/schelchok001-arch/boompoint/internal/model"
	"github.com/schelchok001-arch/boompoint/internal/repository"
)

// loginCodeTTL is how long a mailed login code stays valid.
const loginCodeTTL = 10 * time.Minute

// AuthService implements passwordless email login: a one-time code is mailed
// out, and verifying it yields a JWT session token.
type AuthService struct {
	users   repository.UserRepository
	tokens  repository.TokenRepository
	codes   *auth.CodeService
	jwt     *auth.TokenService
	mailer  mail.Sender
	logger  *slog.Logger
	siteURL string

	// now is the clock; tests override it to expire codes.
	now func() time.Time
}

// NewAuthService creates an AuthService.
func NewAuthService(
	users repository.UserRepository,
	tokens repository.TokenRepository,
	codes *auth.CodeService,
	jwt *auth.TokenService,
	mailer mail.Sender,
	siteURL string,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:   users,
		tokens:  tokens,
		codes:   codes,
		jwt:     jwt,
		mailer:  mailer,
		logger:  logger,
		siteURL: siteURL,
		now:     time.Now,
	}
}

// StartLogin generates a fresh login code for the account behind email,
// stores its hash (replacing any earlier pending code), and mails it out.
//
// Unknown emails return NotFound — matching the source system, which did not
// hide account existence. A mail delivery failure surfaces as Unavailable;
// the stored code is harmless in that case and is replaced on retry.
func (s *AuthService) StartLogin(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return apperror.ValidationFailed("email", "email is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	code, err := s.codes.NewCode()
	if err != nil {
		return fmt.Errorf("generating login code: %w", err)
	}
	hash, err := s.codes.Hash(code)
	if err != nil {
		return fmt.Errorf("hashing login code: %w", err)
	}

	if err := s.tokens.Put(ctx, &model.LoginToken{
		Email:     user.Email,
		CodeHash:  hash,
		ExpiresAt: s.now().Add(loginCodeTTL),
	}); err != nil {
		return fmt.Errorf("storing login code: %w", err)
	}

	subject := "Your login code — BoomPoint"
	body := fmt.Sprintf(
		"Your login code: %s\nThe code is valid for 10 minutes. Open %s and enter it.",
		code, s.siteURL,
	)
	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		s.logger.Error("failed to send login code",
			slog.String("email", user.Email),
			slog.String("error", err.Error()),
		)
		return apperror.Unavailable("could not deliver login email")
	}

	s.logger.Info("login code sent", slog.String("email", user.Email))
	return nil
}

// VerifyLogin checks a login code and, on success, deletes the token (single
// use) and returns a session JWT plus the user record.
//
// Expired and mismatched codes both come back as Validation errors; an
// expired token is deleted on sight so it cannot be retried.
func (s *AuthService) VerifyLogin(ctx context.Context, email, code string) (string, *model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return "", nil, apperror.ValidationFailed("code", "email and code are required")
	}

	token, err := s.tokens.Get(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", nil, apperror.ValidationFailed("code", "invalid login code")
		}
		return "", nil, fmt.Errorf("loading login code: %w", err)
	}

	if s.now().After(token.ExpiresAt) {
		if err := s.tokens.Delete(ctx, email); err != nil {
			s.logger.Warn("failed to delete expired login token",
				slog.String("email", email),
				slog.String("error", err.Error()),
			)
		}
		return "", nil, apperror.ValidationFailed("code", "login code expired")
	}

	match, err := s.codes.Compare(token.CodeHash, code)
	if err != nil {
		return "", nil, fmt.Errorf("comparing login code: %w", err)
	}
	if !match {
		return "", nil, apperror.ValidationFailed("code", "invalid login code")
	}

	if err := s.tokens.Delete(ctx, email); err != nil {
		return "", nil, fmt.Errorf("consuming login code: %w", err)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}

	session, err := s.jwt.Generate(user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("issuing session token: %w", err)
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	return session, user, nil
}
