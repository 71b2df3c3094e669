package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// githubUserURL is the REST endpoint for the signed-in user.
const githubUserURL = "https://api.github.com/user"

// GitHubUser is the part of GitHub's /user response a profile is built from.
//
// GitHub API docs: https://docs.github.com/en/rest/users/users#get-the-authenticated-user
type GitHubUser struct {
	ID        int64  `json:"id"` // stable across renames; profiles are keyed on it
	Login     string `json:"login"`
	Name      string `json:"name"` // empty unless the user set one
	AvatarURL string `json:"avatar_url"`
}

// DisplayName is the name a new profile starts with: the GitHub display name,
// or the login when the user has none.
func (u *GitHubUser) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Login
}

// GitHubProvider is the only sign-in method of the trip backend.
//
// SIGN-IN FLOW:
//
//	GET /auth/github/login     → redirect to AuthURL(state), state kept in a cookie
//	GET /auth/github/callback  → Exchange(code) → GitHubUser
//	                           → service.AuthService.LoginGitHub opens a session
//
// The GitHub token is used for exactly one /user call and then dropped. Trip
// sessions are our own JWT + refresh token pair.
type GitHubProvider struct {
	config  *oauth2.Config
	userURL string
}

// NewGitHubProvider configures the flow for an OAuth App registered at
// https://github.com/settings/developers. callbackURL must equal the app's
// "Authorization callback URL", e.g. "http://localhost:8080/auth/github/callback".
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user"},
			Endpoint:     github.Endpoint,
		},
		userURL: githubUserURL,
	}
}

// AuthURL is where the login route sends the browser. state must come back
// unchanged on the callback; the handler compares it to its cookie.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the callback code for the GitHub account behind it.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	user, err := p.fetchUser(ctx, p.config.Client(ctx, tok))
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned a user without an id")
	}
	return user, nil
}

// fetchUser reads /user with an already-authorized client.
func (p *GitHubProvider) fetchUser(ctx context.Context, client *http.Client) (*GitHubUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building GitHub user request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub user API returned status %d", resp.StatusCode)
	}

	var user GitHubUser
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&user); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub user: %w", err)
	}
	return &user, nil
}
