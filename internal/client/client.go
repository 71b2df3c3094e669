// Package client is the tripsync HTTP client for the trips API.
//
// Every request carries the session's bearer token. Non-2xx responses are
// decoded from the server's {"error","message","field"} body and rebuilt with
// apperror.FromStatus, so callers branch on errors.Is exactly as they would
// on the server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/family-trips/internal/apperror"
	"github.com/sakif/family-trips/internal/model"
)

// maxResponseBody caps how much of a response we read.
const maxResponseBody = 4 << 20

// Client talks to the trips API on behalf of one Session.
type Client struct {
	baseURL string
	http    *http.Client
	session *Session
	logger  *slog.Logger
}

// New creates a Client. base is the underlying transport; nil means
// http.DefaultTransport.
func New(baseURL string, session *Session, base http.RoundTripper, logger *slog.Logger) *Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &oauth2.Transport{Source: session, Base: base},
		},
		session: session,
		logger:  logger,
	}
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *Session {
	return c.session
}

// Ping is the cheapest authenticated read: one trip row at most.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/trips?limit=1", nil, nil)
}

// Me returns the signed-in profile.
func (c *Client) Me(ctx context.Context) (*model.Profile, error) {
	var p model.Profile
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListTrips lists the caller's trips. scope is "owned" or "joined".
func (c *Client) ListTrips(ctx context.Context, scope string) ([]model.Trip, error) {
	var trips []model.Trip
	if err := c.do(ctx, http.MethodGet, "/api/trips?scope="+url.QueryEscape(scope), nil, &trips); err != nil {
		return nil, err
	}
	return trips, nil
}

func (c *Client) GetTrip(ctx context.Context, tripID string) (*model.Trip, error) {
	var trip model.Trip
	if err := c.do(ctx, http.MethodGet, "/api/trips/"+url.PathEscape(tripID), nil, &trip); err != nil {
		return nil, err
	}
	return &trip, nil
}

// ListMembers returns a trip's members with profile name and avatar.
func (c *Client) ListMembers(ctx context.Context, tripID string) ([]model.TripMember, error) {
	var members []model.TripMember
	if err := c.do(ctx, http.MethodGet, "/api/trips/"+url.PathEscape(tripID)+"/members", nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// MembersForTrips returns membership rows for every listed trip the caller
// can see.
func (c *Client) MembersForTrips(ctx context.Context, tripIDs []string) ([]model.TripMember, error) {
	if len(tripIDs) == 0 {
		return nil, nil
	}
	var members []model.TripMember
	path := "/api/members?tripIds=" + url.QueryEscape(strings.Join(tripIDs, ","))
	if err := c.do(ctx, http.MethodGet, path, nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// CreateTrip validates in locally, then creates the trip.
func (c *Client) CreateTrip(ctx context.Context, in TripInput) (*model.Trip, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var trip model.Trip
	if err := c.do(ctx, http.MethodPost, "/api/trips", in, &trip); err != nil {
		return nil, err
	}
	return &trip, nil
}

// JoinTrip joins the trip behind an invite code.
func (c *Client) JoinTrip(ctx context.Context, inviteCode string) (*model.TripMember, error) {
	in := JoinInput{InviteCode: strings.ToUpper(strings.TrimSpace(inviteCode))}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var member model.TripMember
	if err := c.do(ctx, http.MethodPost, "/api/trips/join", in, &member); err != nil {
		return nil, err
	}
	return &member, nil
}

func (c *Client) ListWishlist(ctx context.Context, tripID string) ([]model.WishlistItem, error) {
	var items []model.WishlistItem
	if err := c.do(ctx, http.MethodGet, "/api/trips/"+url.PathEscape(tripID)+"/wishlist", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) AddWishlistItem(ctx context.Context, tripID string, in WishlistInput) (*model.WishlistItem, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var item model.WishlistItem
	if err := c.do(ctx, http.MethodPost, "/api/trips/"+url.PathEscape(tripID)+"/wishlist", in, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) SetWishlistCompleted(ctx context.Context, itemID string, completed bool) (*model.WishlistItem, error) {
	var item model.WishlistItem
	body := map[string]bool{"completed": completed}
	if err := c.do(ctx, http.MethodPut, "/api/wishlist/"+url.PathEscape(itemID)+"/completed", body, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// ListMemories returns the journal; an empty date means every day.
func (c *Client) ListMemories(ctx context.Context, tripID, date string) ([]model.Memory, error) {
	path := "/api/trips/" + url.PathEscape(tripID) + "/memories"
	if date != "" {
		path += "?date=" + url.QueryEscape(date)
	}
	var memories []model.Memory
	if err := c.do(ctx, http.MethodGet, path, nil, &memories); err != nil {
		return nil, err
	}
	return memories, nil
}

func (c *Client) CreateMemory(ctx context.Context, tripID string, in MemoryInput) (*model.Memory, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var memory model.Memory
	if err := c.do(ctx, http.MethodPost, "/api/trips/"+url.PathEscape(tripID)+"/memories", in, &memory); err != nil {
		return nil, err
	}
	return &memory, nil
}

// Ask sends a question to the trip assistant.
func (c *Client) Ask(ctx context.Context, tripID, question string) (*Answer, error) {
	var answer Answer
	body := map[string]string{"question": question}
	if err := c.do(ctx, http.MethodPost, "/api/trips/"+url.PathEscape(tripID)+"/assistant", body, &answer); err != nil {
		return nil, err
	}
	return &answer, nil
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("client: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(out); err != nil {
		return fmt.Errorf("client: decoding %s %s: %w", method, path, err)
	}
	return nil
}

// errorBody mirrors the server's error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

// decodeError turns a non-2xx response into an apperror kind.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		body.Message = strings.TrimSpace(string(data))
		if body.Message == "" {
			body.Message = http.StatusText(resp.StatusCode)
		}
	}
	// ACCESS_DENIED travels in the error code; keep it as the message so
	// callers can compare against apperror.CodeAccessDenied.
	if body.Error == apperror.CodeAccessDenied {
		body.Message = apperror.CodeAccessDenied
	}

	err := apperror.FromStatus(resp.StatusCode, body.Message)
	if appErr, ok := err.(*apperror.AppError); ok && body.Field != "" {
		appErr.Field = body.Field
	}
	return err
}
