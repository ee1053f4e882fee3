package geolocation

import (
	"context"

	"github.com/zatekoja/labbook/internal/domain/entities"
	"github.com/zatekoja/labbook/internal/domain/providers"
)

// StaticProvider reports a fixed, configured position.
type StaticProvider struct {
	position entities.Coordinate
}

var _ providers.LocationProvider = (*StaticProvider)(nil)

// NewStaticProvider creates a provider that always reports lat/lng.
func NewStaticProvider(lat, lng float64) *StaticProvider {
	return &StaticProvider{position: entities.Coordinate{Latitude: lat, Longitude: lng}}
}

// CurrentPosition returns the configured position.
func (s *StaticProvider) CurrentPosition(ctx context.Context) (*entities.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	position := s.position
	return &position, nil
}
