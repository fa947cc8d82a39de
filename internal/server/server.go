// Package server wires handlers, middleware, and routes, and owns the HTTP
// server lifecycle. It is the composition root: every dependency is
// constructed in New and handed down — no package-level state anywhere.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/schelchok001-arch/boompoint/internal/auth"
	"github.com/schelchok001-arch/boompoint/internal/handler"
	"github.com/schelchok001-arch/boompoint/internal/mail"
	"github.com/schelchok001-arch/boompoint/internal/middleware"
	sqliteRepo "github.com/schelchok001-arch/boompoint/internal/repository/sqlite"
	"github.com/schelchok001-arch/boompoint/internal/service"
)

// Config holds server configuration, loaded from the environment in
// cmd/server and passed here as a single value.
type Config struct {
	Port      int
	DBPath    string
	StaticDir string // directory served at /; skipped when empty or missing
	SiteURL   string // absolute base URL used inside login emails
	JWTSecret string
	SMTP      mail.Config
}

// Server is the HTTP server and its dependencies. It owns the database
// handle and closes it during shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the whole dependency chain:
// sqlite.DB → services → handlers → routes.
//
// Login routes are registered only when both a JWT secret and an SMTP host
// are configured; the points API works without them.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware and all route handlers.
//
// Route map:
//
//	POST /api/signup              create account (+signup bonus)
//	POST /api/login/start         mail a one-time login code
//	POST /api/login/verify        exchange code for session token
//	POST /api/verify-email        verify (+bonus, +referral payout)
//	POST /api/event               daily check-in
//	GET  /api/wallet/{id}         balance + recent transactions
//	GET  /api/leaderboard         trailing-week top 10
//	GET  /api/rewards             reward catalogue
//	POST /api/rewards/{id}/redeem spend points (bearer auth)
//	GET  /r/{code}                referral redirect
//	GET  /*                       static frontend
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// Two budgets, as in the source system: a loose global limit and a tight
	// one on the code-mailing routes.
	globalLimit := middleware.NewRateLimiter(120, 10*time.Minute)
	authLimit := middleware.NewRateLimiter(20, 10*time.Minute)
	s.router.Use(globalLimit.Handler)

	// === Services ===
	ledgerService := service.NewLedgerService(s.db, s.logger)
	userService := service.NewUserService(s.db, ledgerService, s.logger)
	rewardService := service.NewRewardService(s.db, ledgerService, s.logger)

	userHandler := handler.NewUserHandler(userService, s.logger)
	eventHandler := handler.NewEventHandler(ledgerService, userService, s.logger)
	rewardHandler := handler.NewRewardHandler(rewardService, s.logger)

	var tokenService *auth.TokenService
	if s.config.JWTSecret != "" {
		var err error
		tokenService, err = auth.NewTokenService(s.config.JWTSecret)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
	}

	s.router.Route("/api", func(r chi.Router) {
		r.With(authLimit.Handler).Post("/signup", userHandler.HandleSignup)
		r.Post("/verify-email", userHandler.HandleVerifyEmail)
		r.Post("/event", eventHandler.HandleEvent)
		r.Get("/wallet/{id}", userHandler.HandleWallet)
		r.Get("/leaderboard", eventHandler.HandleLeaderboard)
		r.Get("/rewards", rewardHandler.HandleList)

		if tokenService == nil {
			s.logger.Warn("JWT_SECRET not set — login and redemption disabled")
			return
		}

		r.With(auth.RequireAuth(tokenService)).
			Post("/rewards/{id}/redeem", rewardHandler.HandleRedeem)

		if s.config.SMTP.Host != "" {
			mailer, err := mail.NewSMTPSender(s.config.SMTP)
			if err != nil {
				s.logger.Warn("mailer unavailable — login routes disabled",
					slog.String("error", err.Error()))
				return
			}
			authService := service.NewAuthService(
				s.db, s.db, auth.NewCodeService(), tokenService,
				mailer, s.config.SiteURL, s.logger,
			)
			authHandler := handler.NewAuthHandler(authService, s.logger)
			r.With(authLimit.Handler).Post("/login/start", authHandler.HandleLoginStart)
			r.With(authLimit.Handler).Post("/login/verify", authHandler.HandleLoginVerify)
		} else {
			s.logger.Warn("SMTP_HOST not set — login disabled")
		}
	})

	s.router.Get("/r/{code}", userHandler.HandleReferralRedirect)

	if s.config.StaticDir != "" {
		if _, err := os.Stat(s.config.StaticDir); err == nil {
			s.router.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
		} else {
			s.logger.Warn("static dir missing — not serving frontend",
				slog.String("dir", s.config.StaticDir))
		}
	}

	return nil
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully:
// stop accepting connections, drain in-flight requests (30s), close the
// database (flushes the WAL and releases the file lock).
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
