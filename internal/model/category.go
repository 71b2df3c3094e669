package model

// Category classifies wishlist and explore items. It is a closed set.
type Category string

const (
	CategoryAttractions Category = "Attractions"
	CategoryEvents      Category = "Events"
	CategoryRestaurants Category = "Restaurants"
	CategoryOther       Category = "Other"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryAttractions,
	CategoryEvents,
	CategoryRestaurants,
	CategoryOther,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}
