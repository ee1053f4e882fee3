package providers

import (
	"context"

	"github.com/zatekoja/labbook/internal/domain/entities"
)

// SuggestionProvider returns as-you-type suggestions for a partial query
type SuggestionProvider interface {
	Suggest(ctx context.Context, query string, limit int) ([]entities.SearchSuggestion, error)
}
