package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/family-trips/internal/apperror"
	"github.com/sakif/family-trips/internal/auth"
	"github.com/sakif/family-trips/internal/service"
)

const stateCookie = "oauth_state"

// OAuthProvider is the part of *auth.GitHubProvider the handler needs.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// AuthHandler manages the GitHub OAuth login flow and session management.
//
// HANDLER RESPONSIBILITIES:
//   - HandleGitHubLogin    → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback → exchange the code, open a session, set cookies
//   - HandleRefresh        → rotate a refresh token into a new token pair
//   - HandleSession        → hand the browser's session to a non-browser client
//   - HandleLogout         → revoke the session and clear cookies
//
// Browsers carry the pair in two HttpOnly cookies; the tripsync CLI sends
// the refresh token in the JSON body and keeps the pair itself.
type AuthHandler struct {
	github OAuthProvider
	auth   *service.AuthService
	secure bool
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. secure marks cookies Secure, which
// needs HTTPS.
func NewAuthHandler(github OAuthProvider, authService *service.AuthService, secure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		github: github,
		auth:   authService,
		secure: secure,
		logger: logger,
	}
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When GitHub calls back, HandleGitHubCallback verifies the state matches.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub user profile
//  3. Upsert the profile and open a session
//  4. Store the token pair in HttpOnly cookies
//  5. Redirect to the app home page
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	// --- Step 1: Validate CSRF state ---
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// The state cookie is single-use
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	// --- Step 2: Exchange code for GitHub user profile ---
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}
	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// --- Step 3: Upsert profile, open session ---
	result, err := h.auth.LoginGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: sign-in failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// --- Step 4: Cookies ---
	h.setSessionCookies(w, result.Tokens)

	// --- Step 5: Redirect to the app ---
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// HandleRefresh exchanges a refresh token for a new pair.
//
// HTTP: POST /auth/refresh
// REQUEST BODY (optional): {"refresh_token": "..."}; browsers send the cookie instead.
//
// The presented token is spent: a second use returns 401 AUTH_ERROR.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	token, err := h.refreshTokenFrom(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	pair, err := h.auth.Refresh(r.Context(), token)
	if err != nil {
		if errors.Is(err, apperror.ErrUnauthorized) {
			h.clearSessionCookies(w)
		}
		writeError(w, err)
		return
	}

	h.setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, pair)
}

// HandleSession returns a fresh token pair for the browser's cookie session
// so it can be pasted into a CLI. It rotates the session like HandleRefresh.
//
// HTTP: GET /auth/session
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(auth.RefreshCookie)
	if err != nil || cookie.Value == "" {
		writeError(w, apperror.Unauthorized(""))
		return
	}
	pair, err := h.auth.Refresh(r.Context(), cookie.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	h.setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, pair)
}

// HandleLogout revokes the refresh session and clears the cookies.
//
// HTTP: POST /auth/logout
//
// WHY POST AND NOT GET?
// Logout changes state. A GET could be triggered by CSRF or link prefetching.
//
// The access JWT stays technically valid until it expires; its lifetime is
// short, and without the refresh session it cannot be renewed.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token, err := h.refreshTokenFrom(w, r)
	if err == nil {
		if err := h.auth.Logout(r.Context(), token); err != nil {
			writeError(w, err)
			return
		}
	}
	h.clearSessionCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// refreshTokenFrom reads the refresh token from the JSON body, falling back
// to the cookie.
func (h *AuthHandler) refreshTokenFrom(w http.ResponseWriter, r *http.Request) (string, error) {
	if r.ContentLength > 0 {
		var req refreshRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return "", err
		}
		if req.RefreshToken != "" {
			return req.RefreshToken, nil
		}
	}
	if cookie, err := r.Cookie(auth.RefreshCookie); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	return "", apperror.Unauthorized("")
}

// setSessionCookies stores both tokens in HttpOnly cookies.
// HttpOnly = JavaScript cannot read them (XSS protection).
// SameSite=Lax = sent on top-level navigations but not cross-site POSTs.
func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, pair *service.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.AccessCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		MaxAge:   int(time.Until(pair.Expiry).Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	// The refresh cookie is only needed by the /auth routes.
	http.SetCookie(w, &http.Cookie{
		Name:     auth.RefreshCookie,
		Value:    pair.RefreshToken,
		Path:     "/auth",
		MaxAge:   int(time.Until(pair.RefreshExpiry).Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookies(w http.ResponseWriter) {
	for name, path := range map[string]string{auth.AccessCookie: "/", auth.RefreshCookie: "/auth"} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     path,
			MaxAge:   -1, // tells the browser to delete the cookie immediately
			HttpOnly: true,
			Secure:   h.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
