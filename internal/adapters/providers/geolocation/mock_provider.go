package geolocation

import (
	"context"
	"fmt"

	"github.com/zatekoja/labbook/internal/domain/entities"
	"github.com/zatekoja/labbook/internal/domain/providers"
)

// MockProvider implements a mock location and places provider for local development
type MockProvider struct {
	Position entities.Coordinate
}

var (
	_ providers.LocationProvider = (*MockProvider)(nil)
	_ providers.PlacesProvider   = (*MockProvider)(nil)
)

// NewMockProvider creates a mock provider centred on Bengaluru
func NewMockProvider() *MockProvider {
	return &MockProvider{Position: entities.Coordinate{Latitude: 12.9716, Longitude: 77.5946}}
}

// CurrentPosition returns the mock position
func (m *MockProvider) CurrentPosition(ctx context.Context) (*entities.Coordinate, error) {
	position := m.Position
	return &position, nil
}

// NearbySearch returns a few mock facilities around center
func (m *MockProvider) NearbySearch(ctx context.Context, center entities.Coordinate, radiusMeters int, keyword string) ([]*providers.Place, error) {
	return []*providers.Place{
		{
			ID:          "mock-" + keyword + "-1",
			Name:        fmt.Sprintf("Mock %s Centre", keyword),
			Address:     "1 Residency Road",
			Coordinates: entities.Coordinate{Latitude: center.Latitude + 0.01, Longitude: center.Longitude + 0.01},
			Types:       []string{"health", "point_of_interest"},
		},
		{
			ID:          "mock-shared-clinic",
			Name:        "Mock Family Clinic",
			Address:     "22 Church Street",
			Coordinates: entities.Coordinate{Latitude: center.Latitude - 0.005, Longitude: center.Longitude - 0.005},
			Types:       []string{"doctor", "health"},
		},
		{
			ID:          "mock-" + keyword + "-cafe",
			Name:        "Mock Coffee House",
			Address:     "5 Brigade Road",
			Coordinates: entities.Coordinate{Latitude: center.Latitude + 0.002, Longitude: center.Longitude},
			Types:       []string{"cafe", "food"},
		},
	}, nil
}
