package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/labbook/internal/application/services"
	"github.com/zatekoja/labbook/internal/domain/entities"
	"github.com/zatekoja/labbook/internal/domain/providers"
)

var nearbyOrigin = entities.Coordinate{Latitude: 12.9716, Longitude: 77.5946}

func place(id, name string, dLat float64, types ...string) *providers.Place {
	return &providers.Place{
		ID:          id,
		Name:        name,
		Address:     name + " Road",
		Coordinates: entities.Coordinate{Latitude: nearbyOrigin.Latitude + dLat, Longitude: nearbyOrigin.Longitude},
		Types:       types,
	}
}

func onKeyword(p *mockPlacesProvider, keyword string, places []*providers.Place, err error) {
	p.On("NearbySearch", mock.Anything, nearbyOrigin, services.DefaultNearbyRadius, keyword).Return(places, err)
}

func assertSortedByDistance(t *testing.T, facilities []*entities.Facility) {
	t.Helper()
	for i := 1; i < len(facilities); i++ {
		assert.LessOrEqual(t, *facilities[i-1].DistanceKm, *facilities[i].DistanceKm)
	}
}

func TestSearchNearby_FiltersDedupesAndCaps(t *testing.T) {
	var labs []*providers.Place
	for i := 12; i >= 1; i-- {
		labs = append(labs, place(fmt.Sprintf("lab-%02d", i), fmt.Sprintf("Diagnostic Lab %d", i), float64(i)*0.001))
	}
	cafe := place("cafe", "Corner Cafe", 0.0001, "cafe", "food")

	provider := new(mockPlacesProvider)
	onKeyword(provider, "diagnostic lab", append(labs, cafe), nil)
	onKeyword(provider, "pathology lab", []*providers.Place{
		place("lab-01", "Diagnostic Lab 1", 0.001),
	}, nil)
	onKeyword(provider, "hospital", []*providers.Place{
		place("other-id", "Diagnostic Lab 2", 0.002),
	}, nil)
	onKeyword(provider, "clinic", []*providers.Place{}, nil)

	result, err := services.NewNearbySearchService(provider, nil, nil).SearchNearby(context.Background(), nearbyOrigin, 0)
	require.NoError(t, err)

	assert.False(t, result.Fallback)
	require.Len(t, result.Facilities, services.MaxNearbyFacilities)
	assertSortedByDistance(t, result.Facilities)
	assert.Equal(t, "lab-01", result.Facilities[0].ID)
	assert.Equal(t, "lab-10", result.Facilities[9].ID)

	ids := make(map[string]int)
	for _, f := range result.Facilities {
		ids[f.ID]++
		assert.False(t, f.Placeholder)
	}
	assert.NotContains(t, ids, "cafe")
	assert.NotContains(t, ids, "other-id")
	for id, n := range ids {
		assert.Equal(t, 1, n, id)
	}
}

func TestSearchNearby_ZeroResultsFallsBack(t *testing.T) {
	provider := new(mockPlacesProvider)
	for _, kw := range []string{"diagnostic lab", "pathology lab", "hospital", "clinic"} {
		onKeyword(provider, kw, []*providers.Place{}, nil)
	}

	tracker := services.NewActivityTracker()
	result, err := services.NewNearbySearchService(provider, tracker, nil).SearchNearby(context.Background(), nearbyOrigin, 0)
	require.NoError(t, err)

	assert.True(t, result.Fallback)
	assert.NotEmpty(t, result.Notice)
	require.Len(t, result.Facilities, 3)
	for _, f := range result.Facilities {
		assert.True(t, f.Placeholder)
		require.NotNil(t, f.DistanceKm)
	}
	assertSortedByDistance(t, result.Facilities)
	assert.False(t, tracker.Busy(services.ActivitySearching))
}

func TestSearchNearby_ProviderFailureFallsBack(t *testing.T) {
	provider := new(mockPlacesProvider)
	provider.On("NearbySearch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("quota exceeded"))

	result, err := services.NewNearbySearchService(provider, nil, nil).SearchNearby(context.Background(), nearbyOrigin, 2000)
	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Len(t, result.Facilities, 3)
}

func TestSearchNearby_PartialFailureUsesRemainingQueries(t *testing.T) {
	provider := new(mockPlacesProvider)
	onKeyword(provider, "diagnostic lab", nil, errors.New("timeout"))
	onKeyword(provider, "pathology lab", nil, errors.New("timeout"))
	onKeyword(provider, "hospital", []*providers.Place{place("h1", "St. Mary", 0.01, "hospital")}, nil)
	onKeyword(provider, "clinic", nil, errors.New("timeout"))

	result, err := services.NewNearbySearchService(provider, nil, nil).SearchNearby(context.Background(), nearbyOrigin, 0)
	require.NoError(t, err)
	assert.False(t, result.Fallback)
	require.Len(t, result.Facilities, 1)
	assert.Equal(t, "h1", result.Facilities[0].ID)
}

func TestSearchNearby_NoProvider(t *testing.T) {
	result, err := services.NewNearbySearchService(nil, nil, nil).SearchNearby(context.Background(), nearbyOrigin, 0)
	require.NoError(t, err)
	assert.True(t, result.Fallback)
}

func TestSearchNearby_InvalidOrigin(t *testing.T) {
	_, err := services.NewNearbySearchService(nil, nil, nil).SearchNearby(context.Background(), entities.Coordinate{Latitude: 91}, 0)
	assert.Error(t, err)
}
