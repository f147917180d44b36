package domain

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// RouteEndpoint is the first or last location of a route together with the
// human-readable address the directions provider reported for it.
type RouteEndpoint struct {
	Location GeoPoint `json:"location"`
	Address  string   `json:"address"`
}
