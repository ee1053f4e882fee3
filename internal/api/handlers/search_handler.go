package handlers

import (
	"net/http"
	"strings"

	"github.com/zatekoja/labbook/internal/application/services"
)

// SearchHandler serves as-you-type suggestions and the search history
type SearchHandler struct {
	suggestions *services.SuggestionService
	history     *services.SearchHistoryService
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(suggestions *services.SuggestionService, history *services.SearchHistoryService) *SearchHandler {
	return &SearchHandler{suggestions: suggestions, history: history}
}

// Suggest handles GET /api/search/suggest?q=...
func (h *SearchHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	suggestions, err := h.suggestions.Lookup(r.Context(), query)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"query":       strings.TrimSpace(query),
		"suggestions": suggestions,
	})
}

// ListHistory handles GET /api/search/history
func (h *SearchHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.history.List(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to load search history")
		return
	}
	respondWithJSON(w, http.StatusOK, entries)
}

type recordSearchRequest struct {
	Query string `json:"query"`
}

// RecordSearch handles POST /api/search/history
func (h *SearchHandler) RecordSearch(w http.ResponseWriter, r *http.Request) {
	var payload recordSearchRequest
	if err := decodeJSON(r, &payload); err != nil {
		respondWithAppError(w, err)
		return
	}
	entries, err := h.history.Record(r.Context(), payload.Query)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to save search history")
		return
	}
	respondWithJSON(w, http.StatusOK, entries)
}

// RemoveSearch handles DELETE /api/search/history/{query}
func (h *SearchHandler) RemoveSearch(w http.ResponseWriter, r *http.Request) {
	entries, err := h.history.Remove(r.Context(), r.PathValue("query"))
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to save search history")
		return
	}
	respondWithJSON(w, http.StatusOK, entries)
}

// ClearHistory handles DELETE /api/search/history
func (h *SearchHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.history.Clear(r.Context()); err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to clear search history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
