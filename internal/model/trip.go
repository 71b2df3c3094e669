package model

import "time"

// DateLayout is the wire and storage format for calendar dates.
// Trips, memories and explore items are day-granular, so we keep them as
// plain "YYYY-MM-DD" strings instead of time.Time to avoid time zone drift.
const DateLayout = "2006-01-02"

// InviteCodeLength is the number of characters in a trip invite code.
const InviteCodeLength = 6

// Trip is a planned family trip.
//
// The creator is inserted as an "admin" member in the same transaction that
// creates the trip. Trips are never hard-deleted.
type Trip struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Destination string    `json:"destination"`
	StartDate   string    `json:"startDate"`
	EndDate     string    `json:"endDate"`
	InviteCode  string    `json:"inviteCode"`
	AlbumURL    string    `json:"albumUrl,omitempty"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Contains reports whether the given YYYY-MM-DD date falls inside the trip.
// String comparison is safe because the layout is zero-padded and big-endian.
func (t *Trip) Contains(date string) bool {
	return date >= t.StartDate && date <= t.EndDate
}

// TripSettings carries the fields the creator may change after creation.
// Nil pointers mean "leave unchanged".
type TripSettings struct {
	Name        *string `json:"name,omitempty"`
	Destination *string `json:"destination,omitempty"`
	StartDate   *string `json:"startDate,omitempty"`
	EndDate     *string `json:"endDate,omitempty"`
	AlbumURL    *string `json:"albumUrl,omitempty"`
}
