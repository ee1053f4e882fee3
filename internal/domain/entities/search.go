package entities

import "time"

// SearchSuggestion is a single as-you-type suggestion
type SearchSuggestion struct {
	LabID string `json:"lab_id,omitempty"`
	Text  string `json:"text"`
	City  string `json:"city,omitempty"`
}

// SearchHistoryEntry is one remembered free-text query
type SearchHistoryEntry struct {
	Query      string    `json:"query"`
	SearchedAt time.Time `json:"searched_at"`
}
