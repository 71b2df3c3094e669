package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// echoUser writes the authenticated userID so tests can see what the
// middleware stored in the context.
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	id, _ := UserIDFromContext(r.Context())
	w.Write([]byte(id))
})

func TestRequireAuth_BearerHeader(t *testing.T) {
	ts := newTestTokenService(t)
	token, _, _ := ts.Generate("user-1")

	req := httptest.NewRequest(http.MethodGet, "/api/trips", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	RequireAuth(ts)(echoUser).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", rec.Body.String())
}

func TestRequireAuth_Cookie(t *testing.T) {
	ts := newTestTokenService(t)
	token, _, _ := ts.Generate("user-2")

	req := httptest.NewRequest(http.MethodGet, "/api/trips", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: token})
	rec := httptest.NewRecorder()
	RequireAuth(ts)(echoUser).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-2", rec.Body.String())
}

func TestRequireAuth_Rejects(t *testing.T) {
	ts := newTestTokenService(t)
	expired, _, _ := ts.GenerateWithDuration("user-1", -time.Minute)

	tests := []struct {
		name        string
		header      string
		wantMessage string
	}{
		{"no token", "", "valid authentication required"},
		{"wrong scheme", "Basic abc", "valid authentication required"},
		{"garbage", "Bearer not-a-jwt", "valid authentication required"},
		{"expired", "Bearer " + expired, "access token expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/trips", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			RequireAuth(ts)(echoUser).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"AUTH_ERROR","message":"`+tt.wantMessage+`"}`, rec.Body.String())
		})
	}
}
