package model

import "time"

// Memory is a dated journal entry on a trip.
// Date must fall within the trip's start and end dates.
type Memory struct {
	ID        string    `json:"id"`
	TripID    string    `json:"tripId"`
	CreatedBy string    `json:"createdBy"`
	Date      string    `json:"date"`
	Content   string    `json:"content"`
	MediaURLs []string  `json:"mediaUrls"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
