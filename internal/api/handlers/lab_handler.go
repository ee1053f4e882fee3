package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/zatekoja/labbook/internal/application/services"
	"github.com/zatekoja/labbook/internal/domain/entities"
	"github.com/zatekoja/labbook/internal/domain/repositories"
	"github.com/zatekoja/labbook/internal/infrastructure/observability"
)

// Locator is the part of GeoLocator the handlers need
type Locator interface {
	Locate(ctx context.Context) (entities.Coordinate, error)
	Retry(ctx context.Context) (entities.Coordinate, error)
	Last() (*entities.Coordinate, error)
}

// LabHandler serves the lab list screen
type LabHandler struct {
	directory   *services.LabDirectory
	labs        repositories.LabRepository
	locator     Locator
	nearbyCount int
}

// NewLabHandler creates a new lab handler
func NewLabHandler(directory *services.LabDirectory, labs repositories.LabRepository, locator Locator, nearbyCount int) *LabHandler {
	if nearbyCount <= 0 {
		nearbyCount = services.DefaultNearbyCount
	}
	return &LabHandler{directory: directory, labs: labs, locator: locator, nearbyCount: nearbyCount}
}

type labListResponse struct {
	services.DirectoryView
	LocationError   *errorResponse `json:"location_error,omitempty"`
	LocationMessage string         `json:"location_message,omitempty"`
}

// ListLabs handles GET /api/labs?term=...&lat=...&lng=...
// Without lat/lng the last known position is used; the list is fetched on first use.
func (h *LabHandler) ListLabs(w http.ResponseWriter, r *http.Request) {
	origin, explicit, err := coordinateFromQuery(r)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	resp := labListResponse{}
	if !explicit && h.locator != nil {
		last, locErr := h.locator.Last()
		if locErr != nil {
			body := appErrorBody(locErr)
			resp.LocationError = &body
			resp.LocationMessage = services.LocationMessage(locErr)
		}
		origin = last
	}

	if h.directory.Labs() == nil {
		if _, err := h.directory.FetchAll(r.Context()); err != nil && h.directory.Labs() == nil {
			respondWithAppError(w, err)
			return
		}
	}

	resp.DirectoryView = h.directory.View(origin, intFromQuery(r, "nearby", h.nearbyCount), r.URL.Query().Get("term"))
	respondWithJSON(w, http.StatusOK, resp)
}

// cacheInvalidator is implemented by cached lab repositories
type cacheInvalidator interface {
	Invalidate(ctx context.Context, id string) error
}

// RefreshLabs handles POST /api/labs/refresh. A cached catalog is dropped first.
func (h *LabHandler) RefreshLabs(w http.ResponseWriter, r *http.Request) {
	if inv, ok := h.labs.(cacheInvalidator); ok {
		if err := inv.Invalidate(r.Context(), ""); err != nil {
			observability.LoggerFromContext(r.Context()).Warn().Err(err).Msg("Failed to invalidate lab cache")
		}
	}
	labs, err := h.directory.FetchAll(r.Context())
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"count": len(labs)})
}

// GetLab handles GET /api/labs/{id}
func (h *LabHandler) GetLab(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "lab id is required")
		return
	}
	lab, err := h.labs.GetByID(r.Context(), id)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, lab)
}
