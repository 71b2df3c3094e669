package tripsync

import (
	"context"
	"encoding/json"

	"github.com/sakif/family-trips/internal/client"
	"github.com/sakif/family-trips/internal/model"
)

// Operation kinds the client queues while offline.
const (
	KindCreateTrip      = "create_trip"
	KindJoinTrip        = "join_trip"
	KindAddWishlistItem = "add_wishlist_item"
	KindCreateMemory    = "create_memory"
)

// MutationAPI is the part of the server API queued operations replay.
type MutationAPI interface {
	CreateTrip(ctx context.Context, in client.TripInput) (*model.Trip, error)
	JoinTrip(ctx context.Context, inviteCode string) (*model.TripMember, error)
	AddWishlistItem(ctx context.Context, tripID string, in client.WishlistInput) (*model.WishlistItem, error)
	CreateMemory(ctx context.Context, tripID string, in client.MemoryInput) (*model.Memory, error)
}

type JoinTripPayload struct {
	InviteCode string `json:"inviteCode"`
}

type WishlistPayload struct {
	TripID string               `json:"tripId"`
	Item   client.WishlistInput `json:"item"`
}

type MemoryPayload struct {
	TripID string             `json:"tripId"`
	Memory client.MemoryInput `json:"memory"`
}

// RegisterMutations registers a handler for each operation kind.
func RegisterMutations(q *Queue, api MutationAPI) {
	q.Register(KindCreateTrip, func(ctx context.Context, payload json.RawMessage) error {
		var in client.TripInput
		if err := json.Unmarshal(payload, &in); err != nil {
			return err
		}
		_, err := api.CreateTrip(ctx, in)
		return err
	})
	q.Register(KindJoinTrip, func(ctx context.Context, payload json.RawMessage) error {
		var p JoinTripPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		_, err := api.JoinTrip(ctx, p.InviteCode)
		return err
	})
	q.Register(KindAddWishlistItem, func(ctx context.Context, payload json.RawMessage) error {
		var p WishlistPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		_, err := api.AddWishlistItem(ctx, p.TripID, p.Item)
		return err
	})
	q.Register(KindCreateMemory, func(ctx context.Context, payload json.RawMessage) error {
		var p MemoryPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		_, err := api.CreateMemory(ctx, p.TripID, p.Memory)
		return err
	})
}
