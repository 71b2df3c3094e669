package tripsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/sakif/family-trips/internal/apperror"
	"github.com/sakif/family-trips/internal/model"
)

// TripAPI is the part of the server API the trip fetcher reads.
type TripAPI interface {
	GetTrip(ctx context.Context, tripID string) (*model.Trip, error)
	ListMembers(ctx context.Context, tripID string) ([]model.TripMember, error)
}

// TripDetails is one trip with its members.
type TripDetails struct {
	Trip    model.Trip         `json:"trip"`
	Members []model.TripMember `json:"members"`

	FromCache bool `json:"-"`
	Offline   bool `json:"-"`
}

// TripFetcher loads trip details cache-first.
//
// Concurrent fetches of the same trip share one request, so the cache is
// written once per fetch instead of racing.
type TripFetcher struct {
	env    Env
	api    TripAPI
	flight singleflight.Group
}

func NewTripFetcher(env Env, api TripAPI) *TripFetcher {
	return &TripFetcher{env: env.withDefaults(), api: api}
}

func tripCacheKey(tripID string) string {
	return tripCachePrefix + tripID
}

// FetchTripDetails returns the trip and its members.
//
//  1. Unless force is set, a snapshot younger than TripCacheTTL is returned.
//  2. Offline, any snapshot is returned (Offline set); without one the
//     call fails with apperror.ErrOffline.
//  3. Otherwise the trip is fetched live within TripFetchTimeout. Members
//     are fetched too; a member failure is logged and yields no members.
//  4. userID must be the creator or a member, else ACCESS_DENIED.
//  5. The result is cached.
//
// If anything after step 2 fails, the newest snapshot of any age is
// returned instead of the error.
func (f *TripFetcher) FetchTripDetails(ctx context.Context, tripID, userID string, force bool) (*TripDetails, error) {
	key := tripCacheKey(tripID)
	policy := f.env.Policy

	if !force {
		if snap, ok := readCache[TripDetails](f.env.Store, key, policy.CacheVersion); ok &&
			snap.age(f.env.Clock.Now()) < policy.TripCacheTTL {
			snap.Value.FromCache = true
			return &snap.Value, nil
		}
	}

	if !f.env.Network.Online() {
		if snap, ok := readCache[TripDetails](f.env.Store, key, policy.CacheVersion); ok {
			snap.Value.FromCache = true
			snap.Value.Offline = true
			return &snap.Value, nil
		}
		return nil, apperror.Offline("you are offline and this trip has not been loaded before")
	}

	// The shared fetch is bounded by TripFetchTimeout only, so one caller
	// giving up does not fail the others waiting on it.
	shared := context.WithoutCancel(ctx)
	flight := f.flight.DoChan(tripID+"|"+userID, func() (any, error) {
		return f.fetchLive(shared, tripID, userID)
	})

	var v any
	var err error
	select {
	case res := <-flight:
		v, err = res.Val, res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		if snap, ok := readCache[TripDetails](f.env.Store, key, policy.CacheVersion); ok {
			f.env.Logger.Warn("trip fetch failed, serving cached copy",
				slog.String("tripID", tripID),
				slog.Duration("age", snap.age(f.env.Clock.Now())),
				slog.String("error", err.Error()),
			)
			snap.Value.FromCache = true
			return &snap.Value, nil
		}
		return nil, err
	}

	// Callers sharing the flight must not share the struct.
	details := *v.(*TripDetails)
	details.Members = append(make([]model.TripMember, 0, len(details.Members)), details.Members...)
	return &details, nil
}

func (f *TripFetcher) fetchLive(ctx context.Context, tripID, userID string) (*TripDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, f.env.Policy.TripFetchTimeout)
	defer cancel()

	trip, err := f.api.GetTrip(ctx, tripID)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperror.Timeout("trip fetch")
		}
		return nil, fmt.Errorf("tripsync: fetching trip %s: %w", tripID, err)
	}

	members, err := f.api.ListMembers(ctx, tripID)
	if err != nil {
		f.env.Logger.Warn("fetching trip members failed",
			slog.String("tripID", tripID),
			slog.String("error", err.Error()),
		)
		members = nil
	}
	if members == nil {
		members = []model.TripMember{}
	}

	if !isParticipant(trip, members, userID) {
		return nil, apperror.AccessDenied()
	}

	details := &TripDetails{Trip: *trip, Members: members}
	if err := writeCache(f.env.Store, tripCacheKey(tripID), f.env.Policy.CacheVersion, f.env.Clock.Now(), details); err != nil {
		f.env.Logger.Warn("caching trip failed", slog.String("tripID", tripID), slog.String("error", err.Error()))
	}
	return details, nil
}

// isParticipant treats the creator as a member even without a row.
func isParticipant(trip *model.Trip, members []model.TripMember, userID string) bool {
	if trip.CreatedBy == userID {
		return true
	}
	for _, m := range members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
