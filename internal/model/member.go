package model

import "time"

// Role is a member's permission level within a trip.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// TripMember links a profile to a trip.
// There is exactly one row per (trip, user) pair.
//
// Name and AvatarURL are not columns of trip_members; they are joined in from
// profiles on reads so clients can render the member list in one request.
type TripMember struct {
	ID            string    `json:"id"`
	TripID        string    `json:"tripId"`
	UserID        string    `json:"userId"`
	Role          Role      `json:"role"`
	ArrivalDate   string    `json:"arrivalDate,omitempty"`
	ArrivalTime   string    `json:"arrivalTime,omitempty"`
	DepartureDate string    `json:"departureDate,omitempty"`
	DepartureTime string    `json:"departureTime,omitempty"`
	TravelMethod  string    `json:"travelMethod,omitempty"`
	TravelDetails string    `json:"travelDetails,omitempty"`
	JoinedAt      time.Time `json:"joinedAt"`

	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// IsAdmin reports whether the member may manage trip-level content.
func (m *TripMember) IsAdmin() bool {
	return m.Role == RoleAdmin
}

// TravelInfo is the set of optional travel fields a member edits for themselves.
type TravelInfo struct {
	ArrivalDate   string `json:"arrivalDate"`
	ArrivalTime   string `json:"arrivalTime"`
	DepartureDate string `json:"departureDate"`
	DepartureTime string `json:"departureTime"`
	TravelMethod  string `json:"travelMethod"`
	TravelDetails string `json:"travelDetails"`
}
