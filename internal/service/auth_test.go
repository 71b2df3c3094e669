package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/family-trips/internal/apperror"
	"github.com/sakif/family-trips/internal/auth"
)

// newTestAuthService returns an AuthService wired with the fake store and a
// minimum-cost bcrypt so tests stay fast.
func newTestAuthService(t *testing.T, store *fakeStore) *AuthService {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return NewAuthService(store, store, ts, auth.NewSecretServiceWithCost(bcrypt.MinCost), time.Hour, testLogger())
}

// =========================================================================
// LoginGitHub TESTS
// =========================================================================

func TestLoginGitHub_CreatesProfile(t *testing.T) {
	store := newFakeStore()
	svc := newTestAuthService(t, store)

	result, err := svc.LoginGitHub(context.Background(), &auth.GitHubUser{
		ID: 42, Login: "octocat", Name: "The Octocat", AvatarURL: "https://avatars/42",
	})
	if err != nil {
		t.Fatalf("LoginGitHub() error = %v", err)
	}

	if result.Profile.ID == "" {
		t.Error("Profile.ID should be set after upsert")
	}
	if result.Profile.Name != "The Octocat" {
		t.Errorf("Profile.Name = %q, want GitHub display name", result.Profile.Name)
	}
	if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Fatal("LoginGitHub() returned an empty token")
	}
	if len(store.sessions) != 1 {
		t.Errorf("sessions = %d, want 1", len(store.sessions))
	}
}

func TestLoginGitHub_AccessTokenIsValidJWT(t *testing.T) {
	store := newFakeStore()
	svc := newTestAuthService(t, store)

	result, err := svc.LoginGitHub(context.Background(), &auth.GitHubUser{ID: 1, Login: "tester"})
	if err != nil {
		t.Fatalf("LoginGitHub() error = %v", err)
	}

	userID, err := svc.tokens.Validate(result.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if userID != result.Profile.ID {
		t.Errorf("token subject = %q, want %q", userID, result.Profile.ID)
	}
	if result.Profile.Name != "tester" {
		t.Errorf("Name = %q, want login fallback", result.Profile.Name)
	}
}

func TestLoginGitHub_NilUser(t *testing.T) {
	svc := newTestAuthService(t, newFakeStore())
	if _, err := svc.LoginGitHub(context.Background(), nil); err == nil {
		t.Fatal("LoginGitHub() should return error for nil GitHubUser")
	}
}

// =========================================================================
// Refresh TESTS
// =========================================================================

func TestRefresh_RotatesSession(t *testing.T) {
	store := newFakeStore()
	svc := newTestAuthService(t, store)
	ctx := context.Background()

	login, _ := svc.LoginGitHub(ctx, &auth.GitHubUser{ID: 1, Login: "tester"})

	pair, err := svc.Refresh(ctx, login.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if pair.RefreshToken == login.Tokens.RefreshToken {
		t.Error("Refresh() must issue a new refresh token")
	}
	if pair.UserID != login.Profile.ID {
		t.Errorf("UserID = %q, want %q", pair.UserID, login.Profile.ID)
	}

	// The old token is now spent
	_, err = svc.Refresh(ctx, login.Tokens.RefreshToken)
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("reusing old token error = %v, want ErrUnauthorized", err)
	}
	if len(store.sessions) != 1 {
		t.Errorf("sessions = %d, want exactly the rotated one", len(store.sessions))
	}
}

func TestRefresh_Rejects(t *testing.T) {
	store := newFakeStore()
	svc := newTestAuthService(t, store)
	ctx := context.Background()
	login, _ := svc.LoginGitHub(ctx, &auth.GitHubUser{ID: 1, Login: "tester"})
	sessionID, _, _ := auth.SplitRefreshToken(login.Tokens.RefreshToken)

	tests := []struct {
		name  string
		token string
	}{
		{"malformed", "no-dot"},
		{"unknown session", "missing.secret"},
		{"wrong secret", sessionID + ".not-the-secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Refresh(ctx, tt.token)
			if !errors.Is(err, apperror.ErrUnauthorized) {
				t.Errorf("Refresh(%q) error = %v, want ErrUnauthorized", tt.token, err)
			}
		})
	}
}

func TestRefresh_ExpiredSessionIsDeleted(t *testing.T) {
	store := newFakeStore()
	svc := newTestAuthService(t, store)
	ctx := context.Background()
	login, _ := svc.LoginGitHub(ctx, &auth.GitHubUser{ID: 1, Login: "tester"})

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err := svc.Refresh(ctx, login.Tokens.RefreshToken)
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("Refresh() error = %v, want ErrUnauthorized", err)
	}
	if len(store.sessions) != 0 {
		t.Error("expired session should be removed")
	}
}

// =========================================================================
// Logout / purge TESTS
// =========================================================================

func TestLogout(t *testing.T) {
	store := newFakeStore()
	svc := newTestAuthService(t, store)
	ctx := context.Background()
	login, _ := svc.LoginGitHub(ctx, &auth.GitHubUser{ID: 1, Login: "tester"})

	if err := svc.Logout(ctx, login.Tokens.RefreshToken); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if len(store.sessions) != 0 {
		t.Error("Logout() should delete the session")
	}
	// Logging out twice, or with garbage, is harmless
	if err := svc.Logout(ctx, login.Tokens.RefreshToken); err != nil {
		t.Errorf("second Logout() error = %v", err)
	}
	if err := svc.Logout(ctx, "garbage"); err != nil {
		t.Errorf("Logout(garbage) error = %v", err)
	}
}

func TestPurgeExpiredSessions(t *testing.T) {
	store := newFakeStore()
	svc := newTestAuthService(t, store)
	ctx := context.Background()
	svc.LoginGitHub(ctx, &auth.GitHubUser{ID: 1, Login: "a"})
	svc.LoginGitHub(ctx, &auth.GitHubUser{ID: 2, Login: "b"})

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err := svc.PurgeExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("PurgeExpiredSessions() error = %v", err)
	}
	if n != 2 {
		t.Errorf("purged %d, want 2", n)
	}
}
