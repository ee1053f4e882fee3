package handlers

import (
	"net/http"

	"github.com/zatekoja/labbook/internal/application/services"
)

// NearbyHandler serves the nearby facilities page
type NearbyHandler struct {
	service *services.NearbySearchService
	locator Locator
	radius  int
}

// NewNearbyHandler creates a new nearby handler
func NewNearbyHandler(service *services.NearbySearchService, locator Locator, radiusMeters int) *NearbyHandler {
	if radiusMeters <= 0 {
		radiusMeters = services.DefaultNearbyRadius
	}
	return &NearbyHandler{service: service, locator: locator, radius: radiusMeters}
}

// SearchNearby handles GET /api/nearby?lat=...&lng=...&radius=...
func (h *NearbyHandler) SearchNearby(w http.ResponseWriter, r *http.Request) {
	origin, explicit, err := coordinateFromQuery(r)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	if !explicit {
		if h.locator == nil {
			respondWithError(w, http.StatusBadRequest, "lat and lng parameters are required")
			return
		}
		position, err := h.locator.Locate(r.Context())
		if err != nil {
			respondWithAppError(w, err)
			return
		}
		origin = &position
	}

	result, err := h.service.SearchNearby(r.Context(), *origin, intFromQuery(r, "radius", h.radius))
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	if result.Fallback {
		// placeholder list; the next request should try the provider again
		w.Header().Set("Cache-Control", "no-store")
	}
	respondWithJSON(w, http.StatusOK, result)
}
