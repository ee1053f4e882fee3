package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/labbook/internal/domain/entities"
	apperrors "github.com/zatekoja/labbook/pkg/errors"
)

type errorResponse struct {
	Error     string `json:"error"`
	Type      string `json:"type,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable"`
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, errorResponse{Error: message})
}

// respondWithAppError maps the error taxonomy onto HTTP statuses
func respondWithAppError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		log.Error().Err(err).Msg("Unclassified error")
		respondWithError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondWithJSON(w, statusFor(appErr), errorBody(appErr))
}

func errorBody(appErr *apperrors.AppError) errorResponse {
	return errorResponse{
		Error:     appErr.Message,
		Type:      string(appErr.Type),
		Reason:    string(appErr.Reason),
		Field:     appErr.Field,
		Retryable: apperrors.Retryable(appErr),
	}
}

func statusFor(appErr *apperrors.AppError) int {
	switch appErr.Type {
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeValidation:
		if appErr.Reason == apperrors.ReasonPaymentPending {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case apperrors.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrorTypeLocation:
		return http.StatusServiceUnavailable
	case apperrors.ErrorTypeNetwork:
		if appErr.Reason == apperrors.ReasonTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case apperrors.ErrorTypePayment:
		return http.StatusPaymentRequired
	}
	return http.StatusInternalServerError
}

func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.NewValidationError("invalid request payload")
	}
	return nil
}

// coordinateFromQuery reads lat and lng. ok is false when both are absent.
func coordinateFromQuery(r *http.Request) (*entities.Coordinate, bool, error) {
	latStr := strings.TrimSpace(r.URL.Query().Get("lat"))
	lngStr := strings.TrimSpace(r.URL.Query().Get("lng"))
	if latStr == "" && lngStr == "" {
		return nil, false, nil
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, false, apperrors.NewValidationError("invalid lat parameter")
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil || lng < -180 || lng > 180 {
		return nil, false, apperrors.NewValidationError("invalid lng parameter")
	}
	return &entities.Coordinate{Latitude: lat, Longitude: lng}, true, nil
}

func intFromQuery(r *http.Request, key string, defaultValue int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil && v > 0 {
		return v
	}
	return defaultValue
}
