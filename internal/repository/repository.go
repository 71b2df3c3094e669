// Package repository declares the data-access interfaces the service layer
// depends on. The sqlite subpackage implements all of them on one *DB.
package repository

import (
	"context"
	"time"

	"github.com/sakif/family-trips/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// ProfileRepository reads and writes user profiles.
type ProfileRepository interface {
	// UpsertByGitHubID creates the profile on first sign-in and refreshes
	// name/avatar on later sign-ins.
	UpsertByGitHubID(ctx context.Context, profile *model.Profile) error
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, profile *model.Profile) error
}

// TripRepository reads and writes trips.
type TripRepository interface {
	// CreateTrip inserts the trip and the creator's admin membership atomically.
	CreateTrip(ctx context.Context, trip *model.Trip) error
	GetTrip(ctx context.Context, id string) (*model.Trip, error)
	GetTripByInviteCode(ctx context.Context, code string) (*model.Trip, error)
	InviteCodeExists(ctx context.Context, code string) (bool, error)
	ListTripsCreatedBy(ctx context.Context, userID string, opts ListOptions) ([]model.Trip, error)
	ListTripsJoinedBy(ctx context.Context, userID string, opts ListOptions) ([]model.Trip, error)
	UpdateTrip(ctx context.Context, trip *model.Trip) error
}

// MemberRepository reads and writes trip memberships.
type MemberRepository interface {
	AddMember(ctx context.Context, member *model.TripMember) error
	GetMember(ctx context.Context, tripID, userID string) (*model.TripMember, error)
	ListMembers(ctx context.Context, tripID string) ([]model.TripMember, error)
	ListMembersForTrips(ctx context.Context, tripIDs []string) ([]model.TripMember, error)
	UpdateTravelInfo(ctx context.Context, member *model.TripMember) error
}

// WishlistRepository reads and writes wishlist items.
type WishlistRepository interface {
	CreateWishlistItem(ctx context.Context, item *model.WishlistItem) error
	GetWishlistItem(ctx context.Context, id string) (*model.WishlistItem, error)
	ListWishlistItems(ctx context.Context, tripID string) ([]model.WishlistItem, error)
	UpdateWishlistItem(ctx context.Context, item *model.WishlistItem) error
	DeleteWishlistItem(ctx context.Context, id string) error
}

// ExploreRepository reads and writes curated explore items.
type ExploreRepository interface {
	CreateExploreItem(ctx context.Context, item *model.ExploreItem) error
	GetExploreItem(ctx context.Context, id string) (*model.ExploreItem, error)
	ListExploreItems(ctx context.Context, tripID string) ([]model.ExploreItem, error)
	DeleteExploreItem(ctx context.Context, id string) error
}

// MemoryRepository reads and writes journal entries.
type MemoryRepository interface {
	CreateMemory(ctx context.Context, memory *model.Memory) error
	GetMemory(ctx context.Context, id string) (*model.Memory, error)
	// ListMemories returns a trip's memories; an empty date means all dates.
	ListMemories(ctx context.Context, tripID, date string) ([]model.Memory, error)
	UpdateMemory(ctx context.Context, memory *model.Memory) error
	DeleteMemory(ctx context.Context, id string) error
}

// SessionRepository stores refresh-token sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}
