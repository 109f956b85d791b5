package domain

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ParsedLocation is one place extracted from a completed assistant turn.
// Coordinates is nil until the geocoder resolves the address; no other
// field is mutated after creation.
type ParsedLocation struct {
	Name        string      `json:"name"`
	Address     string      `json:"address"`
	Rating      float64     `json:"rating"`
	Coordinates *Coordinate `json:"coordinates,omitempty"`
}

// MarkerKind distinguishes the user's own position from extracted places.
type MarkerKind string

const (
	// MarkerUser marks the user's last known position.
	MarkerUser MarkerKind = "user"
	// MarkerPlace marks a geocoded extracted location.
	MarkerPlace MarkerKind = "place"
)

// Marker is one renderable map marker.
type Marker struct {
	Kind       MarkerKind `json:"kind"`
	Label      string     `json:"label"`
	Coordinate Coordinate `json:"coordinate"`
	Rating     float64    `json:"rating,omitempty"`
}
