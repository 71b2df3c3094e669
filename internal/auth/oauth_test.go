package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// newFakeGitHub serves the two endpoints Exchange talks to: the token
// endpoint and the /user API.
func newFakeGitHub(t *testing.T, user map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "gh-token", "token_type": "bearer"})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(user)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGitHubProvider(srv *httptest.Server) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     "id",
			ClientSecret: "secret",
			Endpoint: oauth2.Endpoint{
				AuthURL:  srv.URL + "/login/oauth/authorize",
				TokenURL: srv.URL + "/login/oauth/access_token",
			},
		},
		userURL: srv.URL + "/user",
	}
}

func TestExchange(t *testing.T) {
	srv := newFakeGitHub(t, map[string]any{"id": 99, "login": "octo", "name": "Octo Cat", "avatar_url": "https://a/octo.png"})
	p := newTestGitHubProvider(srv)

	user, err := p.Exchange(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, int64(99), user.ID)
	assert.Equal(t, "Octo Cat", user.DisplayName())
	assert.Equal(t, "https://a/octo.png", user.AvatarURL)
}

func TestExchange_InvalidUser(t *testing.T) {
	srv := newFakeGitHub(t, map[string]any{"login": "ghost"})
	p := newTestGitHubProvider(srv)

	_, err := p.Exchange(context.Background(), "code")
	assert.Error(t, err)
}

func TestDisplayName_FallsBackToLogin(t *testing.T) {
	u := &GitHubUser{Login: "octo"}
	assert.Equal(t, "octo", u.DisplayName())
}

func TestAuthURL_CarriesState(t *testing.T) {
	p := NewGitHubProvider("client", "secret", "http://localhost/cb")
	assert.Contains(t, p.AuthURL("state-123"), "state=state-123")
}
