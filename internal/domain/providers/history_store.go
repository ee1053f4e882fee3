package providers

import (
	"context"

	"github.com/zatekoja/labbook/internal/domain/entities"
)

// HistoryStore persists the search history list, newest first
type HistoryStore interface {
	Load(ctx context.Context) ([]entities.SearchHistoryEntry, error)
	Save(ctx context.Context, entries []entities.SearchHistoryEntry) error
}
