package entities

// Facility is a real-world place returned by nearby search
type Facility struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Address     string      `json:"address"`
	Types       []string    `json:"types,omitempty"`
	Location    *Coordinate `json:"location,omitempty"`
	DistanceKm  *float64    `json:"distance_km,omitempty"`
	Rating      float64     `json:"rating,omitempty"`
	Placeholder bool        `json:"placeholder,omitempty"`
}
