// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: New opens the database and media store,
// builds every service over them, and hands the services to handlers.
// Each layer only receives what it needs. Services get repository
// interfaces (all implemented by the one *sqlite.DB), and handlers get
// services.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/family-trips/internal/assistant"
	"github.com/sakif/family-trips/internal/auth"
	"github.com/sakif/family-trips/internal/config"
	"github.com/sakif/family-trips/internal/handler"
	"github.com/sakif/family-trips/internal/media"
	"github.com/sakif/family-trips/internal/middleware"
	"github.com/sakif/family-trips/internal/realtime"
	sqliteRepo "github.com/sakif/family-trips/internal/repository/sqlite"
	"github.com/sakif/family-trips/internal/service"
)

// SessionPurgeInterval is how often expired refresh sessions are deleted.
const SessionPurgeInterval = time.Hour

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the database connection and the realtime hub. Both are
// released in Close, which Start calls during graceful shutdown.
type Server struct {
	router *chi.Mux
	config *config.Server
	logger *slog.Logger
	db     *sqliteRepo.DB
	hub    *realtime.Hub
	auth   *service.AuthService
}

// New creates a new Server with the given config.
func New(cfg *config.Server, logger *slog.Logger) (*Server, error) {
	// === CREATE DATABASE ===
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		hub:    realtime.NewHub(0, logger.With(slog.String("component", "realtime"))),
	}

	if err := s.setupRoutes(); err != nil {
		s.Close() // Clean up DB and hub if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                               → database ping
// GET    /media/{bucket}/{name}                 → uploaded files
// GET    /auth/github/login                     → start GitHub OAuth
// GET    /auth/github/callback                  → finish GitHub OAuth
// POST   /auth/refresh                          → rotate refresh token
// GET    /auth/session                          → current session from cookie
// POST   /auth/logout                           → revoke session
// *      /api/...                               → JSON API (requires a JWT)
//
// Middleware executes in the order it's added: request ID, real IP,
// panic recovery, then request logging.
func (s *Server) setupRoutes() error {
	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// === Media ===
	store, err := media.NewStore(s.config.MediaDir, s.config.PublicBaseURL+"/media", media.DefaultBuckets(),
		s.logger.With(slog.String("component", "media")))
	if err != nil {
		return fmt.Errorf("creating media store: %w", err)
	}
	s.router.Handle("/media/*", http.StripPrefix("/media/", store.Handler()))

	s.router.Get("/healthz", s.handleHealth)

	// === Auth ===
	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.AccessTokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	s.auth = service.NewAuthService(s.db, s.db, tokens, auth.NewSecretService(), s.config.RefreshTokenTTL,
		s.logger.With(slog.String("component", "auth")))

	var github handler.OAuthProvider
	if s.config.AuthEnabled() {
		github = auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)
	} else {
		s.logger.Warn("GITHUB_CLIENT_ID/GITHUB_CLIENT_SECRET not set, GitHub sign-in is disabled")
	}
	authHandler := handler.NewAuthHandler(github, s.auth, s.config.SecureCookies, s.logger)

	s.router.Route("/auth", func(r chi.Router) {
		if github != nil {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
		}
		r.Post("/refresh", authHandler.HandleRefresh)
		r.Get("/session", authHandler.HandleSession)
		r.Post("/logout", authHandler.HandleLogout)
	})

	// === API Routes ===
	llm := assistant.NewHTTPModel(s.config.AIEndpoint, s.config.AIAPIKey, s.config.AIModel,
		s.logger.With(slog.String("component", "assistant")))

	trips := service.NewTripService(s.db, s.db, s.hub, s.logger)
	tripH := handler.NewTripHandler(trips, s.logger)
	wishH := handler.NewWishlistHandler(service.NewWishlistService(s.db, s.db, s.db, s.hub, s.logger), s.logger)
	exploreH := handler.NewExploreHandler(service.NewExploreService(s.db, s.db, s.db, s.db, s.hub, s.logger), s.logger)
	memoryH := handler.NewMemoryHandler(service.NewMemoryService(s.db, s.db, s.db, store, s.hub, s.logger), s.logger)
	profileH := handler.NewProfileHandler(service.NewProfileService(s.db, s.db, store, s.hub, s.logger), s.logger)
	assistantH := handler.NewAssistantHandler(service.NewAssistantService(s.db, s.db, s.db, s.db, s.db, llm, s.logger), s.logger)
	eventsH := handler.NewEventsHandler(trips, s.hub, handler.DefaultHeartbeat, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Use(middleware.RecordUser)

		r.Get("/me", profileH.HandleMe)
		r.Patch("/me", profileH.HandleUpdate)
		r.Post("/me/avatar", profileH.HandleAvatar)

		r.Get("/trips", tripH.HandleList)
		r.Post("/trips", tripH.HandleCreate)
		r.Post("/trips/join", tripH.HandleJoin)
		r.Get("/members", tripH.HandleMembersForTrips)

		r.Route("/trips/{tripID}", func(r chi.Router) {
			r.Get("/", tripH.HandleGet)
			r.Patch("/", tripH.HandleUpdateSettings)
			r.Get("/members", tripH.HandleMembers)
			r.Put("/members/me", tripH.HandleUpdateTravel)

			r.Get("/wishlist", wishH.HandleList)
			r.Post("/wishlist", wishH.HandleAdd)
			r.Get("/explore", exploreH.HandleList)
			r.Post("/explore", exploreH.HandleCreate)
			r.Get("/memories", memoryH.HandleList)
			r.Post("/memories", memoryH.HandleCreate)
			r.Post("/media", memoryH.HandleUpload)

			r.Post("/assistant", assistantH.HandleAsk)
			r.Get("/events", eventsH.HandleStream)
		})

		r.Put("/wishlist/{itemID}", wishH.HandleUpdate)
		r.Put("/wishlist/{itemID}/completed", wishH.HandleSetCompleted)
		r.Delete("/wishlist/{itemID}", wishH.HandleDelete)

		r.Delete("/explore/{itemID}", exploreH.HandleDelete)
		r.Post("/explore/{itemID}/promote", exploreH.HandlePromote)

		r.Put("/memories/{memoryID}", memoryH.HandleUpdate)
		r.Delete("/memories/{memoryID}", memoryH.HandleDelete)

		r.Post("/weather", assistantH.HandleWeather)
	})

	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"status":"unavailable"}`)
		return
	}
	fmt.Fprint(w, `{"status":"ok"}`)
}

// purgeSessions deletes expired refresh sessions until ctx is cancelled.
func (s *Server) purgeSessions(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.auth.PurgeExpiredSessions(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn("purging sessions failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Close releases the hub and the database.
func (s *Server) Close() error {
	s.hub.Close()
	return s.db.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// On SIGINT/SIGTERM it stops accepting connections, waits up to 30s for
// in-flight requests, then closes the hub (ending event streams) and the
// database.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.purgeSessions(ctx, SessionPurgeInterval)

	// Channel to receive OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.PublicBaseURL),
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

		// Event streams only end when the hub closes, so close it first.
		s.hub.Close()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
