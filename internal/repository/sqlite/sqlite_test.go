package sqlite

import (
	"context"
	"testing"

	"github.com/sakif/family-trips/internal/model"
)

// TESTING WITH IN-MEMORY SQLITE:
// Using ":memory:" creates a fresh database that exists only during the test.
// Each test gets its own isolated database, destroyed when the connection closes.
//
// newTestDB is a test helper. t.Helper() makes failures point at the caller's line.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestProfile signs a fake GitHub user in and returns the stored profile.
func createTestProfile(t *testing.T, db *DB, githubID int64, name string) *model.Profile {
	t.Helper()
	p := &model.Profile{GitHubID: githubID, Name: name, AvatarURL: "https://example.com/" + name + ".png"}
	if err := db.UpsertByGitHubID(context.Background(), p); err != nil {
		t.Fatalf("failed to create test profile: %v", err)
	}
	return p
}

// createTestTrip creates a trip owned by creatorID with the given invite code.
func createTestTrip(t *testing.T, db *DB, creatorID, code string) *model.Trip {
	t.Helper()
	trip := &model.Trip{
		Name:        "Lake House",
		Destination: "Lake Tahoe",
		StartDate:   "2026-07-01",
		EndDate:     "2026-07-08",
		InviteCode:  code,
		CreatedBy:   creatorID,
	}
	if err := db.CreateTrip(context.Background(), trip); err != nil {
		t.Fatalf("failed to create test trip: %v", err)
	}
	return trip
}

func TestPlaceholders(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, ""},
		{1, "?"},
		{3, "?, ?, ?"},
	}
	for _, tt := range tests {
		if got := placeholders(tt.n); got != tt.want {
			t.Errorf("placeholders(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}
