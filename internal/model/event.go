package model

// ChangeType describes what happened to a row.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// Table names used by the realtime change feed.
const (
	TableProfiles      = "profiles"
	TableTrips         = "trips"
	TableTripMembers   = "trip_members"
	TableWishlistItems = "wishlist_items"
	TableMemories      = "memories"
	TableExploreItems  = "explore_items"
)

// ChangeEvent is published whenever a row scoped to a trip changes.
type ChangeEvent struct {
	Table  string     `json:"table"`
	Type   ChangeType `json:"type"`
	TripID string     `json:"tripId"`
	Record any        `json:"record"`
}
