package domain

// TravelMode is the mode requested from the directions provider.
type TravelMode string

const (
	TravelModeWalking   TravelMode = "walking"
	TravelModeBicycling TravelMode = "bicycling"
	TravelModeDriving   TravelMode = "driving"
)

// DirectionsRequest asks a provider for a route between two free-text places.
type DirectionsRequest struct {
	Origin      string     `json:"origin"`
	Destination string     `json:"destination"`
	Mode        TravelMode `json:"mode"`
}

// Directions is a provider response: one or more alternative routes.
type Directions struct {
	Routes []DirectionsRoute `json:"routes"`
}

// DirectionsRoute is a single route made of legs between waypoints.
type DirectionsRoute struct {
	Summary string `json:"summary,omitempty"`
	Legs    []Leg  `json:"legs"`
}

// Leg is the part of a route between two waypoints.
type Leg struct {
	StartLocation GeoPoint `json:"start_location"`
	EndLocation   GeoPoint `json:"end_location"`
	StartAddress  string   `json:"start_address"`
	EndAddress    string   `json:"end_address"`
	Steps         []Step   `json:"steps"`
}

// Step is one turn-by-turn instruction with its detailed geometry.
type Step struct {
	DistanceMeters float64    `json:"distance_meters"`
	Points         []GeoPoint `json:"points"`
}
