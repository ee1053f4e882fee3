package services

import (
	"context"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zatekoja/labbook/internal/domain/entities"
	"github.com/zatekoja/labbook/internal/domain/providers"
	"github.com/zatekoja/labbook/internal/geo"
	"github.com/zatekoja/labbook/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/labbook/pkg/errors"
)

const (
	MaxNearbyFacilities = 10
	DefaultNearbyRadius = 5000
)

// nearbyQueryKeywords are sent to the places provider, one query each.
var nearbyQueryKeywords = []string{"diagnostic lab", "pathology lab", "hospital", "clinic"}

// facilityKeywords decide whether a returned place is a plausible medical facility.
var facilityKeywords = []string{"hospital", "health", "medical", "clinic", "lab", "diagnostic"}

// NearbyResult is the facility list shown on the nearby page
type NearbyResult struct {
	Facilities []*entities.Facility `json:"facilities"`
	Fallback   bool                 `json:"fallback"`
	Notice     string               `json:"notice,omitempty"`
}

// NearbySearchService finds real-world medical facilities around a point and
// degrades to a placeholder list when the provider fails or finds nothing.
type NearbySearchService struct {
	places   providers.PlacesProvider
	activity *ActivityTracker
	metrics  *observability.Metrics
}

// NewNearbySearchService creates a new nearby search service
func NewNearbySearchService(places providers.PlacesProvider, activity *ActivityTracker, metrics *observability.Metrics) *NearbySearchService {
	return &NearbySearchService{places: places, activity: activity, metrics: metrics}
}

// SearchNearby queries the provider for every keyword in parallel, keeps the
// medical facilities, dedupes them and returns the closest ten. Provider
// failures never surface as errors; they produce a fallback result.
func (s *NearbySearchService) SearchNearby(ctx context.Context, origin entities.Coordinate, radiusMeters int) (*NearbyResult, error) {
	if origin.Latitude < -90 || origin.Latitude > 90 || origin.Longitude < -180 || origin.Longitude > 180 {
		return nil, apperrors.NewValidationError("origin is not a valid coordinate")
	}
	if radiusMeters <= 0 {
		radiusMeters = DefaultNearbyRadius
	}

	done := s.activity.Begin(ActivitySearching)
	defer done()

	ctx, span := observability.StartSpan(ctx, "nearby.search")
	defer span.End()
	logger := observability.LoggerFromContext(ctx)

	if s.places == nil {
		return fallbackResult(origin, "Nearby search is not available. Showing sample facilities."), nil
	}

	var (
		mu       sync.Mutex
		failures int
		lastErr  error
	)
	results := make([][]*providers.Place, len(nearbyQueryKeywords))
	g, gctx := errgroup.WithContext(ctx)
	for i, keyword := range nearbyQueryKeywords {
		g.Go(func() error {
			places, err := s.places.NearbySearch(gctx, origin, radiusMeters, keyword)
			observability.RecordPlacesQuery(gctx, s.metrics, keyword, err == nil)
			if err != nil {
				logger.Warn().Err(err).Str("keyword", keyword).Msg("Nearby query failed")
				mu.Lock()
				failures++
				lastErr = err
				mu.Unlock()
				return nil
			}
			results[i] = places
			return nil
		})
	}
	_ = g.Wait()

	var found []*providers.Place
	for _, places := range results {
		found = append(found, places...)
	}

	if failures == len(nearbyQueryKeywords) {
		observability.RecordError(span, lastErr)
		return fallbackResult(origin, "Nearby search is unavailable right now. Showing sample facilities."), nil
	}

	facilities := rankFacilities(origin, dedupePlaces(filterMedical(found)))
	if len(facilities) == 0 {
		return fallbackResult(origin, "No labs or clinics were found nearby. Showing sample facilities."), nil
	}
	return &NearbyResult{Facilities: facilities}, nil
}

func filterMedical(places []*providers.Place) []*providers.Place {
	out := make([]*providers.Place, 0, len(places))
	for _, p := range places {
		if p != nil && isMedicalFacility(p) {
			out = append(out, p)
		}
	}
	return out
}

func isMedicalFacility(p *providers.Place) bool {
	for _, t := range p.Types {
		if containsKeyword(t) {
			return true
		}
	}
	return containsKeyword(p.Name)
}

func containsKeyword(text string) bool {
	text = strings.ToLower(text)
	for _, kw := range facilityKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// dedupePlaces drops repeats by place id and by name plus address, keeping the first.
func dedupePlaces(places []*providers.Place) []*providers.Place {
	seenIDs := make(map[string]struct{}, len(places))
	seenNames := make(map[string]struct{}, len(places))
	out := make([]*providers.Place, 0, len(places))
	for _, p := range places {
		nameKey := strings.ToLower(strings.TrimSpace(p.Name)) + "|" + strings.ToLower(strings.TrimSpace(p.Address))
		if p.ID != "" {
			if _, ok := seenIDs[p.ID]; ok {
				continue
			}
		}
		if _, ok := seenNames[nameKey]; ok {
			continue
		}
		if p.ID != "" {
			seenIDs[p.ID] = struct{}{}
		}
		seenNames[nameKey] = struct{}{}
		out = append(out, p)
	}
	return out
}

func rankFacilities(origin entities.Coordinate, places []*providers.Place) []*entities.Facility {
	facilities := make([]*entities.Facility, 0, len(places))
	for _, p := range places {
		location := p.Coordinates
		km := geo.Distance(origin, location)
		facilities = append(facilities, &entities.Facility{
			ID:         p.ID,
			Name:       p.Name,
			Address:    p.Address,
			Types:      p.Types,
			Location:   &location,
			DistanceKm: &km,
			Rating:     p.Rating,
		})
	}
	sort.SliceStable(facilities, func(i, j int) bool {
		return *facilities[i].DistanceKm < *facilities[j].DistanceKm
	})
	if len(facilities) > MaxNearbyFacilities {
		facilities = facilities[:MaxNearbyFacilities]
	}
	return facilities
}

// placeholderFacilities are offsets from the origin in degrees.
var placeholderFacilities = []struct {
	name    string
	address string
	dLat    float64
	dLng    float64
}{
	{"City Diagnostic Centre", "Main Road", 0.006, 0.004},
	{"Community Health Clinic", "Market Street", -0.009, 0.007},
	{"General Hospital Laboratory", "Hospital Road", 0.015, -0.012},
}

func fallbackResult(origin entities.Coordinate, notice string) *NearbyResult {
	facilities := make([]*entities.Facility, 0, len(placeholderFacilities))
	for i, p := range placeholderFacilities {
		location := entities.Coordinate{Latitude: origin.Latitude + p.dLat, Longitude: origin.Longitude + p.dLng}
		km := geo.Distance(origin, location)
		facilities = append(facilities, &entities.Facility{
			ID:          "placeholder-" + string(rune('a'+i)),
			Name:        p.name,
			Address:     p.address,
			Types:       []string{"health"},
			Location:    &location,
			DistanceKm:  &km,
			Placeholder: true,
		})
	}
	sort.SliceStable(facilities, func(i, j int) bool {
		return *facilities[i].DistanceKm < *facilities[j].DistanceKm
	})
	return &NearbyResult{Facilities: facilities, Fallback: true, Notice: notice}
}
