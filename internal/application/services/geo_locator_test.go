package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/labbook/internal/application/services"
	"github.com/zatekoja/labbook/internal/domain/entities"
	apperrors "github.com/zatekoja/labbook/pkg/errors"
)

func TestGeoLocator_ReusesFreshFix(t *testing.T) {
	provider := new(mockLocationProvider)
	provider.On("CurrentPosition", mock.Anything).
		Return(&entities.Coordinate{Latitude: 12.97, Longitude: 77.59}, nil).Twice()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	locator := services.NewGeoLocator(provider, nil, services.WithLocatorClock(func() time.Time { return now }))

	first, err := locator.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12.97, first.Latitude)

	now = now.Add(4 * time.Minute)
	_, err = locator.Locate(context.Background())
	require.NoError(t, err)
	provider.AssertNumberOfCalls(t, "CurrentPosition", 1)

	now = now.Add(2 * time.Minute)
	_, err = locator.Locate(context.Background())
	require.NoError(t, err)
	provider.AssertNumberOfCalls(t, "CurrentPosition", 2)
}

func TestGeoLocator_SharesInFlightAcquisition(t *testing.T) {
	release := make(chan struct{})
	provider := new(mockLocationProvider)
	provider.On("CurrentPosition", mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(&entities.Coordinate{Latitude: 1, Longitude: 2}, nil)

	tracker := services.NewActivityTracker()
	locator := services.NewGeoLocator(provider, tracker)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := locator.Locate(context.Background())
			assert.NoError(t, err)
		}()
	}

	assert.Eventually(t, func() bool { return tracker.Busy(services.ActivityLocating) }, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	provider.AssertNumberOfCalls(t, "CurrentPosition", 1)
	assert.False(t, tracker.Busy(services.ActivityLocating))
}

func TestGeoLocator_TimeoutIsClassified(t *testing.T) {
	provider := new(mockLocationProvider)
	provider.On("CurrentPosition", mock.Anything).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(nil, context.DeadlineExceeded)

	locator := services.NewGeoLocator(provider, nil, services.WithLocationTimeout(20*time.Millisecond))
	_, err := locator.Locate(context.Background())

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeLocation))
	assert.Equal(t, apperrors.ReasonTimeout, apperrors.ReasonOf(err))
	assert.Contains(t, services.LocationMessage(err), "too long")
}

func TestGeoLocator_NoAutomaticRetry(t *testing.T) {
	provider := new(mockLocationProvider)
	denied := apperrors.NewLocationError(apperrors.ReasonPermissionDenied, "denied", nil)
	provider.On("CurrentPosition", mock.Anything).Return(nil, denied).Once()
	provider.On("CurrentPosition", mock.Anything).Return(&entities.Coordinate{Latitude: 3, Longitude: 4}, nil).Once()

	locator := services.NewGeoLocator(provider, nil)

	_, err := locator.Locate(context.Background())
	assert.Equal(t, apperrors.ReasonPermissionDenied, apperrors.ReasonOf(err))
	provider.AssertNumberOfCalls(t, "CurrentPosition", 1)

	last, lastErr := locator.Last()
	assert.Nil(t, last)
	assert.Equal(t, denied, lastErr)

	position, err := locator.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3.0, position.Latitude)
}

func TestGeoLocator_ProviderErrorsAreWrapped(t *testing.T) {
	provider := new(mockLocationProvider)
	provider.On("CurrentPosition", mock.Anything).Return(nil, errors.New("socket closed"))

	_, err := services.NewGeoLocator(provider, nil).Locate(context.Background())
	assert.Equal(t, apperrors.ReasonPositionUnavailable, apperrors.ReasonOf(err))
}

func TestGeoLocator_NilProviderIsUnsupported(t *testing.T) {
	_, err := services.NewGeoLocator(nil, nil).Locate(context.Background())
	assert.Equal(t, apperrors.ReasonUnsupported, apperrors.ReasonOf(err))
	assert.False(t, apperrors.Retryable(err))
}
