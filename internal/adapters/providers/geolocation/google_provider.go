package geolocation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/zatekoja/labbook/internal/domain/entities"
	"github.com/zatekoja/labbook/internal/domain/providers"
	apperrors "github.com/zatekoja/labbook/pkg/errors"
)

const (
	googleGeolocateURL    = "https://www.googleapis.com/geolocation/v1/geolocate"
	googlePlacesNearbyURL = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"
	defaultHTTPTimeout    = 8 * time.Second
	defaultPlacesQPS      = 5
)

// GoogleProvider locates the caller with the Google Geolocation API and
// finds nearby facilities with Places Nearby Search.
type GoogleProvider struct {
	apiKey       string
	httpClient   *http.Client
	geolocateURL string
	placesURL    string
	limiter      *rate.Limiter
}

var (
	_ providers.LocationProvider = (*GoogleProvider)(nil)
	_ providers.PlacesProvider   = (*GoogleProvider)(nil)
)

// GoogleOption configures a GoogleProvider.
type GoogleOption func(*GoogleProvider)

// WithEndpoints overrides the API endpoints (used for tests).
func WithEndpoints(geolocateURL, placesURL string) GoogleOption {
	return func(g *GoogleProvider) {
		if strings.TrimSpace(geolocateURL) != "" {
			g.geolocateURL = geolocateURL
		}
		if strings.TrimSpace(placesURL) != "" {
			g.placesURL = placesURL
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) GoogleOption {
	return func(g *GoogleProvider) {
		if client != nil {
			g.httpClient = client
		}
	}
}

// WithPlacesQPS caps the rate of Places requests per second.
func WithPlacesQPS(qps float64) GoogleOption {
	return func(g *GoogleProvider) {
		if qps > 0 {
			g.limiter = rate.NewLimiter(rate.Limit(qps), 1)
		}
	}
}

// NewGoogleProvider creates a new Google location and places provider.
func NewGoogleProvider(apiKey string, opts ...GoogleOption) *GoogleProvider {
	g := &GoogleProvider{
		apiKey:       strings.TrimSpace(apiKey),
		httpClient:   &http.Client{Timeout: defaultHTTPTimeout},
		geolocateURL: googleGeolocateURL,
		placesURL:    googlePlacesNearbyURL,
		limiter:      rate.NewLimiter(rate.Limit(defaultPlacesQPS), 1),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CurrentPosition asks the Geolocation API for the caller's position based on its IP.
func (g *GoogleProvider) CurrentPosition(ctx context.Context) (*entities.Coordinate, error) {
	if g.apiKey == "" {
		return nil, apperrors.NewLocationError(apperrors.ReasonUnsupported, "location lookup is not configured", nil)
	}

	body, _ := json.Marshal(map[string]bool{"considerIp": true})
	reqURL := fmt.Sprintf("%s?%s", g.geolocateURL, url.Values{"key": []string{g.apiKey}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewLocationError(apperrors.ReasonPositionUnavailable, "failed to build geolocation request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, apperrors.NewLocationError(apperrors.ReasonTimeout, "location request timed out", err)
		}
		return nil, apperrors.NewLocationError(apperrors.ReasonPositionUnavailable, "geolocation request failed", err)
	}
	defer resp.Body.Close()

	var payload googleGeolocateResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&payload)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, apperrors.NewLocationError(apperrors.ReasonPermissionDenied, payload.message("location access denied"), nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, apperrors.NewLocationError(apperrors.ReasonPositionUnavailable, payload.message("position unavailable"), nil)
	case decodeErr != nil:
		return nil, apperrors.NewLocationError(apperrors.ReasonPositionUnavailable, "failed to decode geolocation response", decodeErr)
	}

	return &entities.Coordinate{
		Latitude:  payload.Location.Lat,
		Longitude: payload.Location.Lng,
	}, nil
}

// NearbySearch finds places matching keyword around center.
func (g *GoogleProvider) NearbySearch(ctx context.Context, center entities.Coordinate, radiusMeters int, keyword string) ([]*providers.Place, error) {
	if g.apiKey == "" {
		return nil, apperrors.NewNetworkError(apperrors.ReasonUnreachable, "places search is not configured", nil)
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewNetworkError(apperrors.ReasonTimeout, "places search rate limit wait aborted", err)
	}

	params := url.Values{}
	params.Set("location", fmt.Sprintf("%f,%f", center.Latitude, center.Longitude))
	params.Set("radius", strconv.Itoa(radiusMeters))
	params.Set("keyword", keyword)
	params.Set("key", g.apiKey)

	reqURL := fmt.Sprintf("%s?%s", g.placesURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build places request", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, apperrors.NewNetworkError(apperrors.ReasonTimeout, "places search timed out", err)
		}
		return nil, apperrors.NewNetworkError(apperrors.ReasonUnreachable, "places search request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewNetworkError(apperrors.ReasonServerError, fmt.Sprintf("places search returned status %d", resp.StatusCode), nil)
	}

	var payload googlePlacesNearbyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.NewNetworkError(apperrors.ReasonParseError, "failed to decode places response", err)
	}

	switch payload.Status {
	case "OK":
	case "ZERO_RESULTS":
		return []*providers.Place{}, nil
	default:
		msg := fmt.Sprintf("places search failed: %s", payload.Status)
		if payload.ErrorMessage != "" {
			msg = fmt.Sprintf("%s - %s", msg, payload.ErrorMessage)
		}
		return nil, apperrors.NewNetworkError(apperrors.ReasonServerError, msg, nil)
	}

	places := make([]*providers.Place, 0, len(payload.Results))
	for _, result := range payload.Results {
		places = append(places, &providers.Place{
			ID:      result.PlaceID,
			Name:    result.Name,
			Address: firstNonEmpty(result.Vicinity, result.FormattedAddress),
			Coordinates: entities.Coordinate{
				Latitude:  result.Geometry.Location.Lat,
				Longitude: result.Geometry.Location.Lng,
			},
			Types:  result.Types,
			Rating: result.Rating,
		})
	}
	return places, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

type googleLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type googleGeometry struct {
	Location googleLocation `json:"location"`
}

type googleGeolocateResponse struct {
	Location googleLocation `json:"location"`
	Accuracy float64        `json:"accuracy"`
	Error    *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (r googleGeolocateResponse) message(fallback string) string {
	if r.Error != nil && r.Error.Message != "" {
		return r.Error.Message
	}
	return fallback
}

type googlePlacesNearbyResponse struct {
	Status       string                     `json:"status"`
	ErrorMessage string                     `json:"error_message,omitempty"`
	Results      []googlePlacesNearbyResult `json:"results"`
}

type googlePlacesNearbyResult struct {
	PlaceID          string         `json:"place_id"`
	Name             string         `json:"name"`
	Vicinity         string         `json:"vicinity"`
	FormattedAddress string         `json:"formatted_address"`
	Geometry         googleGeometry `json:"geometry"`
	Types            []string       `json:"types"`
	Rating           float64        `json:"rating"`
}
