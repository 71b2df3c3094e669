package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/family-trips/internal/auth"
	"github.com/sakif/family-trips/internal/config"
	"github.com/sakif/family-trips/internal/model"
)

const testSecret = "server-test-secret-0123456789"

func newTestServer(t *testing.T, githubEnabled bool) *Server {
	t.Helper()
	cfg := &config.Server{
		Port:          0,
		DBPath:        ":memory:",
		JWTSecret:     testSecret,
		MediaDir:      t.TempDir(),
		PublicBaseURL: "http://trips.test",
		AIEndpoint:    "http://127.0.0.1:1/unused",
		AIModel:       "test",
	}
	if githubEnabled {
		cfg.GitHubClientID = "id"
		cfg.GitHubClientSecret = "secret"
		cfg.GitHubCallbackURL = "http://trips.test/auth/github/callback"
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	srv, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, false)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("Content-Type"))
}

func TestServer_APIRequiresToken(t *testing.T) {
	srv := newTestServer(t, false)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/api/trips", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "AUTH_ERROR")
}

func TestServer_APIWithToken(t *testing.T) {
	srv := newTestServer(t, false)

	p := &model.Profile{GitHubID: 7, Name: "sam"}
	require.NoError(t, srv.db.UpsertByGitHubID(t.Context(), p))

	tokens, err := auth.NewTokenService(testSecret, time.Minute)
	require.NoError(t, err)
	token, _, err := tokens.Generate(p.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/trips", strings.NewReader(
		`{"name":"Ski","destination":"Tahoe","startDate":"2027-01-02","endDate":"2027-01-05"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rr := serve(srv, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var trip model.Trip
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&trip))
	assert.Equal(t, p.ID, trip.CreatedBy)

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = serve(srv, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestServer_GitHubRoutesOnlyWhenConfigured(t *testing.T) {
	off := newTestServer(t, false)
	rr := serve(off, httptest.NewRequest(http.MethodGet, "/auth/github/login", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	on := newTestServer(t, true)
	rr = serve(on, httptest.NewRequest(http.MethodGet, "/auth/github/login", nil))
	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	assert.Contains(t, rr.Header().Get("Location"), "github.com")
}

func TestServer_RefreshWithoutToken(t *testing.T) {
	srv := newTestServer(t, false)

	rr := serve(srv, httptest.NewRequest(http.MethodPost, "/auth/refresh", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestServer_MediaUnknownBucket(t *testing.T) {
	srv := newTestServer(t, false)

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/media/secrets/x.png", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
