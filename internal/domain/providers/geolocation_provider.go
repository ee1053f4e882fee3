package providers

import (
	"context"

	"github.com/zatekoja/labbook/internal/domain/entities"
)

// LocationProvider obtains the caller's current position.
// Failures are reported as LOCATION AppErrors.
type LocationProvider interface {
	CurrentPosition(ctx context.Context) (*entities.Coordinate, error)
}

// PlacesProvider defines the interface for third-party place search
type PlacesProvider interface {
	// NearbySearch finds places matching keyword within radiusMeters of center
	NearbySearch(ctx context.Context, center entities.Coordinate, radiusMeters int, keyword string) ([]*Place, error)
}

// Place represents a geographical place returned by a places provider
type Place struct {
	ID          string
	Name        string
	Address     string
	Coordinates entities.Coordinate
	Types       []string
	Rating      float64
}
