package tripsync

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sakif/family-trips/internal/apperror"
	"github.com/sakif/family-trips/internal/model"
)

// DashboardAPI is the part of the server API the dashboard reads.
type DashboardAPI interface {
	ListTrips(ctx context.Context, scope string) ([]model.Trip, error)
	MembersForTrips(ctx context.Context, tripIDs []string) ([]model.TripMember, error)
}

// DashboardTrip is a trip as listed on the dashboard.
type DashboardTrip struct {
	model.Trip
	Owned bool `json:"owned"`
	// MemberCount is the number of distinct users with a membership row.
	MemberCount int `json:"memberCount"`
	// DisplayMemberCount adds one for trips the user created.
	DisplayMemberCount int `json:"displayMemberCount"`
}

// DashboardResult is what FetchTrips and background refreshes deliver.
type DashboardResult struct {
	Trips     []DashboardTrip
	FromCache bool
	Offline   bool
}

// Dashboard loads the user's trip list, retrying in the background.
//
// A failed load is retried after DashboardBackoffBase·2^attempt, up to
// MaxDashboardAttempts times. After that a slow loop retries every
// BackgroundRetryInterval until one load succeeds. Every success schedules
// another refresh DashboardRefreshInterval later. Background results go to
// the OnUpdate callback.
type Dashboard struct {
	env  Env
	api  DashboardAPI
	conn *Connection

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	closed     bool
	attempts   int
	retry      Timer
	refresh    Timer
	background Timer
	onUpdate   func(*DashboardResult)
}

func NewDashboard(env Env, api DashboardAPI, conn *Connection) *Dashboard {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dashboard{env: env.withDefaults(), api: api, conn: conn, ctx: ctx, cancel: cancel}
}

// OnUpdate sets the callback for results of background loads.
func (d *Dashboard) OnUpdate(fn func(*DashboardResult)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onUpdate = fn
}

func dashboardKey(userID string) string {
	return dashboardKeyPrefix + userID
}

// FetchTrips returns the trips userID created or joined.
func (d *Dashboard) FetchTrips(ctx context.Context, userID string, force bool) (*DashboardResult, error) {
	policy := d.env.Policy
	key := dashboardKey(userID)

	if !force {
		if snap, ok := readCache[[]DashboardTrip](d.env.Store, key, policy.CacheVersion); ok &&
			snap.age(d.env.Clock.Now()) < policy.DashboardCacheTTL {
			if d.env.Network.Online() {
				d.schedule(&d.refresh, 0, userID)
			}
			return &DashboardResult{Trips: snap.Value, FromCache: true}, nil
		}
	}

	status := d.conn.CheckConnection(ctx, false)
	if status.Status != StatusConnected && !d.conn.AttemptReconnect(ctx) {
		d.env.Logger.Info("dashboard offline, using cached trips", slog.String("error", status.Error))
		d.scheduleRetry(userID)
		return d.fallback(key, true, apperror.Offline("unable to reach the server: "+status.Error))
	}

	trips, err := d.load(ctx, userID)
	if err != nil {
		d.env.Logger.Warn("loading dashboard failed", slog.String("error", err.Error()))
		d.scheduleRetry(userID)
		return d.fallback(key, false, err)
	}

	if err := writeCache(d.env.Store, key, policy.CacheVersion, d.env.Clock.Now(), trips); err != nil {
		d.env.Logger.Warn("caching dashboard failed", slog.String("error", err.Error()))
	}
	d.succeeded(userID)
	return &DashboardResult{Trips: trips}, nil
}

// load fetches owned and joined trips and annotates member counts.
func (d *Dashboard) load(ctx context.Context, userID string) ([]DashboardTrip, error) {
	owned, err := d.api.ListTrips(ctx, "owned")
	if err != nil {
		return nil, fmt.Errorf("tripsync: listing owned trips: %w", err)
	}
	joined, err := d.api.ListTrips(ctx, "joined")
	if err != nil {
		return nil, fmt.Errorf("tripsync: listing joined trips: %w", err)
	}

	seen := make(map[string]bool, len(owned)+len(joined))
	trips := make([]DashboardTrip, 0, len(owned)+len(joined))
	for _, t := range owned {
		if !seen[t.ID] {
			seen[t.ID] = true
			trips = append(trips, DashboardTrip{Trip: t, Owned: true})
		}
	}
	for _, t := range joined {
		if !seen[t.ID] {
			seen[t.ID] = true
			trips = append(trips, DashboardTrip{Trip: t, Owned: t.CreatedBy == userID})
		}
	}
	if len(trips) == 0 {
		return trips, nil
	}

	ids := make([]string, len(trips))
	for i, t := range trips {
		ids[i] = t.ID
	}
	members, err := d.api.MembersForTrips(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("tripsync: listing members: %w", err)
	}

	// A set per trip so duplicate rows never inflate the count.
	users := make(map[string]map[string]struct{}, len(trips))
	for _, m := range members {
		if users[m.TripID] == nil {
			users[m.TripID] = make(map[string]struct{})
		}
		users[m.TripID][m.UserID] = struct{}{}
	}
	for i := range trips {
		trips[i].MemberCount = len(users[trips[i].ID])
		trips[i].DisplayMemberCount = trips[i].MemberCount
		if trips[i].CreatedBy == userID {
			trips[i].DisplayMemberCount++
		}
	}

	sort.SliceStable(trips, func(i, j int) bool {
		return trips[i].StartDate < trips[j].StartDate
	})
	return trips, nil
}

// fallback serves the newest cached list of any age, or err without one.
func (d *Dashboard) fallback(key string, offline bool, err error) (*DashboardResult, error) {
	snap, ok := readCache[[]DashboardTrip](d.env.Store, key, d.env.Policy.CacheVersion)
	if !ok {
		return nil, err
	}
	return &DashboardResult{Trips: snap.Value, FromCache: true, Offline: offline}, nil
}

// succeeded resets the retry state and schedules the periodic refresh.
func (d *Dashboard) succeeded(userID string) {
	d.mu.Lock()
	d.attempts = 0
	stop(&d.retry)
	stop(&d.background)
	d.mu.Unlock()

	d.schedule(&d.refresh, d.env.Policy.DashboardRefreshInterval, userID)
}

// scheduleRetry schedules the next short retry, or the background loop
// once the short retries are used up.
func (d *Dashboard) scheduleRetry(userID string) {
	d.mu.Lock()
	if d.attempts < d.env.Policy.MaxDashboardAttempts {
		delay := d.env.Policy.dashboardBackoff(d.attempts)
		d.attempts++
		attempt := d.attempts
		d.mu.Unlock()

		d.env.Logger.Info("dashboard retry scheduled",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
		)
		d.schedule(&d.retry, delay, userID)
		return
	}
	d.mu.Unlock()

	d.schedule(&d.background, d.env.Policy.BackgroundRetryInterval, userID)
}

// schedule replaces the timer in slot with a forced background load.
func (d *Dashboard) schedule(slot *Timer, delay time.Duration, userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	stop(slot)
	*slot = d.env.Clock.AfterFunc(delay, func() {
		d.runBackground(userID)
	})
}

func (d *Dashboard) runBackground(userID string) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return
	}

	result, err := d.FetchTrips(d.ctx, userID, true)
	if err != nil || result == nil {
		return
	}

	d.mu.Lock()
	fn := d.onUpdate
	d.mu.Unlock()
	if fn != nil {
		fn(result)
	}
}

// Close stops every scheduled load. Loads already running see a cancelled
// context.
func (d *Dashboard) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	stop(&d.retry)
	stop(&d.refresh)
	stop(&d.background)
	d.cancel()
}

func stop(slot *Timer) {
	if *slot != nil {
		(*slot).Stop()
		*slot = nil
	}
}
