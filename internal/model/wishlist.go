package model

import "time"

// WishlistItem is an activity somebody in the trip would like to do.
// Only its creator may change or delete it.
type WishlistItem struct {
	ID            string    `json:"id"`
	TripID        string    `json:"tripId"`
	CreatedBy     string    `json:"createdBy"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Category      Category  `json:"category"`
	Completed     bool      `json:"completed"`
	ExploreItemID string    `json:"exploreItemId,omitempty"` // set when promoted from an ExploreItem
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ExploreItem is a curated local suggestion authored by a trip admin.
// Promoting one copies it into the wishlist; the explore item itself stays.
type ExploreItem struct {
	ID          string    `json:"id"`
	TripID      string    `json:"tripId"`
	CreatedBy   string    `json:"createdBy"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Category    Category  `json:"category"`
	Date        string    `json:"date,omitempty"`
	URL         string    `json:"url,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
