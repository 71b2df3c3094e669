// Authentication business logic.
//
// AuthService sits between the auth HTTP handler and the repositories:
//
//	AuthHandler (HTTP) → AuthService (rules) → ProfileRepository, SessionRepository (DB)
//	                                       ↘ TokenService (JWT), SecretService (bcrypt)
//
// SESSIONS:
// Signing in opens a server-side session. The client receives a short-lived
// JWT access token and a refresh token "<sessionID>.<secret>". Refreshing
// ROTATES the session: the old row is deleted and a new one created, so a
// stolen refresh token stops working as soon as the real client refreshes.

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/family-trips/internal/apperror"
	"github.com/sakif/family-trips/internal/auth"
	"github.com/sakif/family-trips/internal/model"
	"github.com/sakif/family-trips/internal/repository"
)

// DefaultRefreshTokenTTL is how long a session can go without refreshing.
const DefaultRefreshTokenTTL = 30 * 24 * time.Hour

// AuthService handles sign-in, refresh and sign-out.
//
// DEPENDENCIES (injected via NewAuthService):
//   - profiles  repository.ProfileRepository  → upsert the signed-in profile
//   - sessions  repository.SessionRepository  → refresh-token store
//   - tokens    *auth.TokenService            → JWT access tokens
//   - secrets   *auth.SecretService           → refresh secret hashing
type AuthService struct {
	profiles   repository.ProfileRepository
	sessions   repository.SessionRepository
	tokens     *auth.TokenService
	secrets    *auth.SecretService
	refreshTTL time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

func NewAuthService(
	profiles repository.ProfileRepository,
	sessions repository.SessionRepository,
	tokens *auth.TokenService,
	secrets *auth.SecretService,
	refreshTTL time.Duration,
	logger *slog.Logger,
) *AuthService {
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	return &AuthService{
		profiles:   profiles,
		sessions:   sessions,
		tokens:     tokens,
		secrets:    secrets,
		refreshTTL: refreshTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// TokenPair is what a client stores after signing in or refreshing.
// The field names match oauth2.Token's JSON so the tripsync client can
// decode it straight into one.
type TokenPair struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`

	RefreshExpiry time.Time `json:"-"`
}

// AuthResult bundles the signed-in profile with its fresh tokens.
type AuthResult struct {
	Profile *model.Profile
	Tokens  *TokenPair
}

// LoginGitHub upserts the profile for a GitHub identity and opens a session.
// The first sign-in creates the profile from the GitHub name and avatar.
func (s *AuthService) LoginGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	profile := &model.Profile{
		GitHubID:  gh.ID,
		Name:      gh.DisplayName(),
		AvatarURL: gh.AvatarURL,
	}
	if err := s.profiles.UpsertByGitHubID(ctx, profile); err != nil {
		return nil, fmt.Errorf("service/auth: upserting profile (githubID=%d): %w", gh.ID, err)
	}

	pair, err := s.openSession(ctx, profile.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user signed in via GitHub",
		slog.String("userID", profile.ID),
		slog.String("login", gh.Login),
	)
	return &AuthResult{Profile: profile, Tokens: pair}, nil
}

// Refresh exchanges a refresh token for a new token pair and invalidates the
// presented one. Every failure is reported as ErrUnauthorized (AUTH_ERROR):
// the client's only recovery is to sign in again.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	sessionID, secret, err := auth.SplitRefreshToken(refreshToken)
	if err != nil {
		return nil, apperror.Unauthorized("")
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("")
		}
		return nil, fmt.Errorf("service/auth: loading session: %w", err)
	}

	if session.Expired(s.now()) {
		s.deleteSession(ctx, sessionID)
		return nil, apperror.Unauthorized("session expired")
	}
	if err := s.secrets.Verify(session.SecretHash, secret); err != nil {
		if errors.Is(err, auth.ErrInvalidRefreshToken) {
			s.logger.Warn("refresh with wrong secret", slog.String("sessionID", sessionID))
			return nil, apperror.Unauthorized("")
		}
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	// Rotate: the old token must not work again, even if the new one is lost.
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// A concurrent refresh with the same token won the race.
			return nil, apperror.Unauthorized("")
		}
		return nil, fmt.Errorf("service/auth: rotating session: %w", err)
	}
	return s.openSession(ctx, session.UserID)
}

// Logout revokes the session behind refreshToken. Unknown or malformed
// tokens are ignored: the caller is signed out either way.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	sessionID, _, err := auth.SplitRefreshToken(refreshToken)
	if err != nil {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("service/auth: deleting session: %w", err)
	}
	return nil
}

// PurgeExpiredSessions deletes sessions past their expiry.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("service/auth: purging sessions: %w", err)
	}
	if n > 0 {
		s.logger.Info("expired sessions purged", slog.Int64("count", n))
	}
	return n, nil
}

func (s *AuthService) openSession(ctx context.Context, userID string) (*TokenPair, error) {
	secret, err := s.secrets.Generate()
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	hash, err := s.secrets.Hash(secret)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	session := &model.Session{
		ID:         xid.New().String(),
		UserID:     userID,
		SecretHash: hash,
		ExpiresAt:  s.now().Add(s.refreshTTL),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("service/auth: creating session: %w", err)
	}

	access, expiry, err := s.tokens.Generate(userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing access token for %s: %w", userID, err)
	}

	return &TokenPair{
		UserID:        userID,
		AccessToken:   access,
		TokenType:     "Bearer",
		RefreshToken:  auth.JoinRefreshToken(session.ID, secret),
		Expiry:        expiry,
		RefreshExpiry: session.ExpiresAt,
	}, nil
}

func (s *AuthService) deleteSession(ctx context.Context, id string) {
	if err := s.sessions.DeleteSession(ctx, id); err != nil && !errors.Is(err, apperror.ErrNotFound) {
		s.logger.Warn("deleting session failed", slog.String("sessionID", id), slog.String("error", err.Error()))
	}
}
