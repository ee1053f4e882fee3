package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/zatekoja/labbook/internal/domain/entities"
	"github.com/zatekoja/labbook/internal/domain/providers"
	"github.com/zatekoja/labbook/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/labbook/pkg/errors"
)

const (
	DefaultLocationTimeout = 10 * time.Second
	DefaultLocationMaxAge  = 5 * time.Minute
)

// GeoLocator obtains the caller's position once and reuses it while it is
// fresh. It never retries on its own; callers expose Retry to the user.
type GeoLocator struct {
	provider providers.LocationProvider
	activity *ActivityTracker
	timeout  time.Duration
	maxAge   time.Duration
	now      func() time.Time

	group   singleflight.Group
	mu      sync.Mutex
	fix     *entities.Coordinate
	fixedAt time.Time
	lastErr error
}

// GeoLocatorOption configures a GeoLocator
type GeoLocatorOption func(*GeoLocator)

// WithLocationTimeout bounds a single acquisition
func WithLocationTimeout(d time.Duration) GeoLocatorOption {
	return func(g *GeoLocator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithLocationMaxAge sets how long a fix is reused
func WithLocationMaxAge(d time.Duration) GeoLocatorOption {
	return func(g *GeoLocator) {
		if d > 0 {
			g.maxAge = d
		}
	}
}

// WithLocatorClock overrides the clock
func WithLocatorClock(now func() time.Time) GeoLocatorOption {
	return func(g *GeoLocator) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGeoLocator creates a new locator. A nil provider reports every lookup as unsupported.
func NewGeoLocator(provider providers.LocationProvider, activity *ActivityTracker, opts ...GeoLocatorOption) *GeoLocator {
	g := &GeoLocator{
		provider: provider,
		activity: activity,
		timeout:  DefaultLocationTimeout,
		maxAge:   DefaultLocationMaxAge,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Locate returns the cached fix while fresh, otherwise acquires a new one.
// Concurrent callers share a single acquisition.
func (g *GeoLocator) Locate(ctx context.Context) (entities.Coordinate, error) {
	g.mu.Lock()
	if g.fix != nil && g.now().Sub(g.fixedAt) < g.maxAge {
		fix := *g.fix
		g.mu.Unlock()
		return fix, nil
	}
	g.mu.Unlock()

	result := g.group.DoChan("locate", func() (interface{}, error) {
		return g.acquire(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return entities.Coordinate{}, apperrors.NewLocationError(apperrors.ReasonTimeout, "location request was abandoned", ctx.Err())
	case res := <-result:
		if res.Err != nil {
			return entities.Coordinate{}, res.Err
		}
		return res.Val.(entities.Coordinate), nil
	}
}

// Retry drops any cached fix and acquires again
func (g *GeoLocator) Retry(ctx context.Context) (entities.Coordinate, error) {
	g.mu.Lock()
	g.fix = nil
	g.mu.Unlock()
	return g.Locate(ctx)
}

// Last returns the most recent fix, fresh or not
func (g *GeoLocator) Last() (*entities.Coordinate, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fix == nil {
		return nil, g.lastErr
	}
	fix := *g.fix
	return &fix, nil
}

func (g *GeoLocator) acquire(ctx context.Context) (entities.Coordinate, error) {
	done := g.activity.Begin(ActivityLocating)
	defer done()

	ctx, span := observability.StartSpan(ctx, "geo.locate")
	defer span.End()

	if g.provider == nil {
		err := apperrors.NewLocationError(apperrors.ReasonUnsupported, "location is not supported", nil)
		g.remember(nil, err)
		return entities.Coordinate{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	position, err := g.provider.CurrentPosition(ctx)
	if err == nil && position == nil {
		err = apperrors.NewLocationError(apperrors.ReasonPositionUnavailable, "no position reported", nil)
	}
	if err != nil {
		err = classifyLocationError(ctx, err)
		observability.RecordError(span, err)
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("Location lookup failed")
		g.remember(nil, err)
		return entities.Coordinate{}, err
	}

	g.remember(position, nil)
	return *position, nil
}

func (g *GeoLocator) remember(position *entities.Coordinate, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastErr = err
	if position != nil {
		fix := *position
		g.fix = &fix
		g.fixedAt = g.now()
	}
}

func classifyLocationError(ctx context.Context, err error) error {
	if apperrors.IsType(err, apperrors.ErrorTypeLocation) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.NewLocationError(apperrors.ReasonTimeout, "locating took too long", err)
	}
	return apperrors.NewLocationError(apperrors.ReasonPositionUnavailable, "position unavailable", err)
}

// LocationMessage renders a location failure for the user
func LocationMessage(err error) string {
	if err == nil {
		return ""
	}
	switch apperrors.ReasonOf(err) {
	case apperrors.ReasonPermissionDenied:
		return "Location access was denied. Allow location access to see labs near you, or browse all labs."
	case apperrors.ReasonTimeout:
		return "Finding your location took too long. Try again, or browse all labs."
	case apperrors.ReasonUnsupported:
		return "Location is not available here. Showing all labs instead."
	default:
		return "Your location could not be determined. Showing all labs instead."
	}
}
