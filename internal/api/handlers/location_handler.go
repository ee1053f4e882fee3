package handlers

import (
	"net/http"

	"github.com/zatekoja/labbook/internal/application/services"
	"github.com/zatekoja/labbook/internal/domain/entities"
	apperrors "github.com/zatekoja/labbook/pkg/errors"
)

// LocationHandler exposes the caller position
type LocationHandler struct {
	locator  Locator
	activity *services.ActivityTracker
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(locator Locator, activity *services.ActivityTracker) *LocationHandler {
	return &LocationHandler{locator: locator, activity: activity}
}

type locationResponse struct {
	Position *entities.Coordinate `json:"position,omitempty"`
	Error    *errorResponse       `json:"error,omitempty"`
	Message  string               `json:"message,omitempty"`
}

// GetLocation handles GET /api/location
func (h *LocationHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	position, err := h.locator.Locate(r.Context())
	h.respond(w, position, err)
}

// RetryLocation handles POST /api/location/retry
func (h *LocationHandler) RetryLocation(w http.ResponseWriter, r *http.Request) {
	position, err := h.locator.Retry(r.Context())
	h.respond(w, position, err)
}

// GetActivity handles GET /api/activity
func (h *LocationHandler) GetActivity(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.activity.Snapshot())
}

// respond always answers 200 so the client can fall back to the unranked list
func (h *LocationHandler) respond(w http.ResponseWriter, position entities.Coordinate, err error) {
	if err != nil {
		body := appErrorBody(err)
		respondWithJSON(w, http.StatusOK, locationResponse{Error: &body, Message: services.LocationMessage(err)})
		return
	}
	respondWithJSON(w, http.StatusOK, locationResponse{Position: &position})
}

func appErrorBody(err error) errorResponse {
	if appErr, ok := apperrors.As(err); ok {
		return errorBody(appErr)
	}
	return errorResponse{Error: err.Error()}
}
