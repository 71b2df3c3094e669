package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/family-trips/internal/apperror"
	"github.com/sakif/family-trips/internal/model"
)

func TestAddMember_DuplicateIsConflict(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestProfile(t, db, 1, "owner")
	guest := createTestProfile(t, db, 2, "guest")
	trip := createTestTrip(t, db, owner.ID, "ABC123")

	if err := db.AddMember(ctx, &model.TripMember{TripID: trip.ID, UserID: guest.ID}); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	err := db.AddMember(ctx, &model.TripMember{TripID: trip.ID, UserID: guest.ID})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("second AddMember() error = %v, want ErrConflict", err)
	}
}

func TestListMembers_JoinsProfile(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestProfile(t, db, 1, "owner")
	guest := createTestProfile(t, db, 2, "guest")
	trip := createTestTrip(t, db, owner.ID, "ABC123")
	db.AddMember(ctx, &model.TripMember{TripID: trip.ID, UserID: guest.ID})

	members, err := db.ListMembers(ctx, trip.ID)
	if err != nil {
		t.Fatalf("ListMembers() error = %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("got %d members, want 2", len(members))
	}
	if members[1].Name != "guest" || members[1].Role != model.RoleMember {
		t.Errorf("second member = %+v, want guest with member role", members[1])
	}
}

func TestListMembersForTrips(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestProfile(t, db, 1, "owner")
	t1 := createTestTrip(t, db, owner.ID, "AAAAA1")
	t2 := createTestTrip(t, db, owner.ID, "AAAAA2")
	createTestTrip(t, db, owner.ID, "AAAAA3")

	members, err := db.ListMembersForTrips(ctx, []string{t1.ID, t2.ID})
	if err != nil {
		t.Fatalf("ListMembersForTrips() error = %v", err)
	}
	if len(members) != 2 {
		t.Errorf("got %d rows, want 2", len(members))
	}

	empty, err := db.ListMembersForTrips(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Errorf("ListMembersForTrips(nil) = %v, %v; want empty", empty, err)
	}
}

func TestUpdateTravelInfo(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestProfile(t, db, 1, "owner")
	trip := createTestTrip(t, db, owner.ID, "ABC123")

	err := db.UpdateTravelInfo(ctx, &model.TripMember{
		TripID: trip.ID, UserID: owner.ID,
		ArrivalDate: "2026-07-01", ArrivalTime: "14:30", TravelMethod: "flight",
	})
	if err != nil {
		t.Fatalf("UpdateTravelInfo() error = %v", err)
	}

	m, _ := db.GetMember(ctx, trip.ID, owner.ID)
	if m.ArrivalTime != "14:30" || m.TravelMethod != "flight" {
		t.Errorf("travel info not saved: %+v", m)
	}

	err = db.UpdateTravelInfo(ctx, &model.TripMember{TripID: trip.ID, UserID: "stranger"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("non-member update error = %v, want ErrNotFound", err)
	}
}
