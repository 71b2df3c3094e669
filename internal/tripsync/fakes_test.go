package tripsync

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sakif/family-trips/internal/apperror"
	"github.com/sakif/family-trips/internal/client"
	"github.com/sakif/family-trips/internal/localstore"
	"github.com/sakif/family-trips/internal/model"
)

// ========================================================================
// FAKE CLOCK
// ========================================================================

// fakeClock only moves when Advance is called. Due callbacks run
// synchronously inside Advance, in deadline order.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward by d, firing every timer that falls due,
// including timers scheduled by callbacks along the way.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		sort.SliceStable(c.timers, func(i, j int) bool { return c.timers[i].at.Before(c.timers[j].at) })
		var next *fakeTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && !t.at.After(target) {
				next = t
				break
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.fired = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()
		next.f()
	}
}

// pending counts timers that have neither fired nor been stopped.
func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// ========================================================================
// FAKE API
// ========================================================================

var errNetwork = errors.New("dial tcp 127.0.0.1:8080: connect: connection refused")

// fakeAPI is an in-memory server. Setting down makes every call fail with
// a network error.
type fakeAPI struct {
	mu      sync.Mutex
	down    bool
	calls   map[string]int
	trips   map[string]model.Trip
	members []model.TripMember
	owned   []string
	joined  []string

	pingErr     error
	refreshErr  error
	tripErr     error
	membersErr  error
	tripBlock   chan struct{}
	created     []client.TripInput
	createErr   error
	joinedCodes []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: make(map[string]int), trips: make(map[string]model.Trip)}
}

func (a *fakeAPI) hit(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls[name]++
	if a.down {
		return errNetwork
	}
	return nil
}

func (a *fakeAPI) count(name string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[name]
}

func (a *fakeAPI) setDown(down bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.down = down
}

func (a *fakeAPI) Ping(context.Context) error {
	if err := a.hit("ping"); err != nil {
		return err
	}
	return a.pingErr
}

func (a *fakeAPI) Refresh(context.Context) error {
	if err := a.hit("refresh"); err != nil {
		return err
	}
	return a.refreshErr
}

func (a *fakeAPI) GetTrip(ctx context.Context, id string) (*model.Trip, error) {
	if err := a.hit("trip"); err != nil {
		return nil, err
	}
	if a.tripBlock != nil {
		select {
		case <-a.tripBlock:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.tripErr != nil {
		return nil, a.tripErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.trips[id]
	if !ok {
		return nil, apperror.NotFound("trip", id)
	}
	return &t, nil
}

func (a *fakeAPI) ListMembers(_ context.Context, tripID string) ([]model.TripMember, error) {
	if err := a.hit("members"); err != nil {
		return nil, err
	}
	if a.membersErr != nil {
		return nil, a.membersErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []model.TripMember
	for _, m := range a.members {
		if m.TripID == tripID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (a *fakeAPI) ListTrips(_ context.Context, scope string) ([]model.Trip, error) {
	if err := a.hit("list_" + scope); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := a.joined
	if scope == "owned" {
		ids = a.owned
	}
	out := make([]model.Trip, 0, len(ids))
	for _, id := range ids {
		out = append(out, a.trips[id])
	}
	return out, nil
}

func (a *fakeAPI) MembersForTrips(_ context.Context, tripIDs []string) ([]model.TripMember, error) {
	if err := a.hit("members_for_trips"); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	want := make(map[string]bool, len(tripIDs))
	for _, id := range tripIDs {
		want[id] = true
	}
	var out []model.TripMember
	for _, m := range a.members {
		if want[m.TripID] {
			out = append(out, m)
		}
	}
	return out, nil
}

func (a *fakeAPI) CreateTrip(_ context.Context, in client.TripInput) (*model.Trip, error) {
	if err := a.hit("create_trip"); err != nil {
		return nil, err
	}
	if a.createErr != nil {
		return nil, a.createErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.created = append(a.created, in)
	return &model.Trip{ID: "new", Name: in.Name}, nil
}

func (a *fakeAPI) JoinTrip(_ context.Context, code string) (*model.TripMember, error) {
	if err := a.hit("join_trip"); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.joinedCodes = append(a.joinedCodes, code)
	return &model.TripMember{TripID: "t1"}, nil
}

func (a *fakeAPI) AddWishlistItem(_ context.Context, tripID string, in client.WishlistInput) (*model.WishlistItem, error) {
	if err := a.hit("add_wishlist_item"); err != nil {
		return nil, err
	}
	return &model.WishlistItem{TripID: tripID, Title: in.Title}, nil
}

func (a *fakeAPI) CreateMemory(_ context.Context, tripID string, in client.MemoryInput) (*model.Memory, error) {
	if err := a.hit("create_memory"); err != nil {
		return nil, err
	}
	return &model.Memory{TripID: tripID, Content: in.Content}, nil
}

// ========================================================================
// HELPERS
// ========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testEnv struct {
	Env
	clock *fakeClock
	store *localstore.Safe
	api   *fakeAPI
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := newFakeClock()
	store := localstore.NewMemory(testLogger())
	return &testEnv{
		Env: Env{
			Store:   store,
			Network: NewMonitor(true),
			Clock:   clock,
			Policy:  DefaultPolicy(),
			Logger:  testLogger(),
		},
		clock: clock,
		store: store,
		api:   newFakeAPI(),
	}
}

// seedTrip stores a trip created by owner, with one membership row per
// listed member.
func (e *testEnv) seedTrip(id, owner string, members ...string) model.Trip {
	trip := model.Trip{
		ID: id, Name: "Trip " + id, Destination: "Outer Banks",
		StartDate: "2026-08-01", EndDate: "2026-08-07", CreatedBy: owner,
	}
	e.api.trips[id] = trip
	for _, m := range members {
		e.api.members = append(e.api.members, model.TripMember{ID: id + "-" + m, TripID: id, UserID: m, Role: model.RoleMember})
	}
	return trip
}
