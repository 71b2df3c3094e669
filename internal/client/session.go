package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/sakif/family-trips/internal/apperror"
)

// expiryDelta refreshes a little before the access token actually expires.
const expiryDelta = 10 * time.Second

// tokenResponse is the body of POST /auth/refresh.
type tokenResponse struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
}

// Session holds the signed-in user's token pair. Construct one at startup
// and share it; it is safe for concurrent use.
//
// Session implements oauth2.TokenSource, so Client sends requests through an
// oauth2.Transport that refreshes the access token when it expires.
type Session struct {
	baseURL string
	http    *http.Client
	flight  singleflight.Group

	mu     sync.Mutex
	userID string
	token  *oauth2.Token
	nextID int
	subs   map[int]func(oauth2.Token)
}

// NewSession starts from a previously saved token. tok may be nil for a
// signed-out session; every call then fails with AUTH_ERROR.
func NewSession(baseURL, userID string, tok *oauth2.Token, httpClient *http.Client) *Session {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Session{
		baseURL: baseURL,
		http:    httpClient,
		userID:  userID,
		token:   tok,
		subs:    make(map[int]func(oauth2.Token)),
	}
}

func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// SignedIn reports whether the session has a refresh token to work with.
func (s *Session) SignedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != nil && s.token.RefreshToken != ""
}

// Token returns a valid access token, refreshing first if the current one
// is expired or about to expire.
func (s *Session) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	tok := s.token
	s.mu.Unlock()

	if tok == nil {
		return nil, apperror.Unauthorized("")
	}
	if tok.AccessToken != "" && !tok.Expiry.IsZero() && time.Until(tok.Expiry) > expiryDelta {
		copied := *tok
		return &copied, nil
	}
	if err := s.Refresh(context.Background()); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *s.token
	return &copied, nil
}

// Refresh spends the refresh token for a new pair and notifies subscribers.
// The server rotates refresh tokens, so concurrent callers share one request;
// a second request would present an already spent token.
func (s *Session) Refresh(ctx context.Context) error {
	_, err, _ := s.flight.Do("refresh", func() (any, error) {
		return nil, s.refresh(ctx)
	})
	return err
}

func (s *Session) refresh(ctx context.Context) error {
	s.mu.Lock()
	var refreshToken string
	if s.token != nil {
		refreshToken = s.token.RefreshToken
	}
	s.mu.Unlock()

	if refreshToken == "" {
		return apperror.Unauthorized("not signed in")
	}

	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/auth/refresh", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("client: building refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: refreshing session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	var tr tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&tr); err != nil {
		return fmt.Errorf("client: decoding refresh response: %w", err)
	}

	tok := &oauth2.Token{
		AccessToken:  tr.AccessToken,
		TokenType:    tr.TokenType,
		RefreshToken: tr.RefreshToken,
		Expiry:       tr.Expiry,
	}

	s.mu.Lock()
	s.token = tok
	if tr.UserID != "" {
		s.userID = tr.UserID
	}
	subs := make([]func(oauth2.Token), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(*tok)
	}
	return nil
}

// Subscribe registers fn to receive every rotated token. The returned
// function unsubscribes.
func (s *Session) Subscribe(fn func(oauth2.Token)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}
