package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/zatekoja/labbook/internal/domain/entities"
	"github.com/zatekoja/labbook/internal/domain/providers"
)

const MaxHistoryEntries = 10

// SearchHistoryService keeps the most recent unique free-text searches, newest first
type SearchHistoryService struct {
	store providers.HistoryStore
	now   func() time.Time
	mu    sync.Mutex
}

// NewSearchHistoryService creates a new search history service
func NewSearchHistoryService(store providers.HistoryStore) *SearchHistoryService {
	return &SearchHistoryService{store: store, now: time.Now}
}

// Record moves query to the front of the history. Blank queries are ignored.
func (s *SearchHistoryService) Record(ctx context.Context, query string) ([]entities.SearchHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return entries, nil
	}

	updated := make([]entities.SearchHistoryEntry, 0, len(entries)+1)
	updated = append(updated, entities.SearchHistoryEntry{Query: query, SearchedAt: s.now().UTC()})
	for _, e := range entries {
		if !strings.EqualFold(strings.TrimSpace(e.Query), query) {
			updated = append(updated, e)
		}
	}
	updated = normalizeHistory(updated)

	if err := s.store.Save(ctx, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// List returns the stored history
func (s *SearchHistoryService) List(ctx context.Context) ([]entities.SearchHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Remove deletes one query from the history
func (s *SearchHistoryService) Remove(ctx context.Context, query string) ([]entities.SearchHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	kept := make([]entities.SearchHistoryEntry, 0, len(entries))
	for _, e := range entries {
		if !strings.EqualFold(e.Query, query) {
			kept = append(kept, e)
		}
	}
	if err := s.store.Save(ctx, kept); err != nil {
		return nil, err
	}
	return kept, nil
}

// Clear empties the history
func (s *SearchHistoryService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Save(ctx, []entities.SearchHistoryEntry{})
}

func (s *SearchHistoryService) load(ctx context.Context) ([]entities.SearchHistoryEntry, error) {
	entries, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return normalizeHistory(entries), nil
}

// normalizeHistory drops blank and repeated queries, keeping the first, and caps the list.
func normalizeHistory(entries []entities.SearchHistoryEntry) []entities.SearchHistoryEntry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]entities.SearchHistoryEntry, 0, min(len(entries), MaxHistoryEntries))
	for _, e := range entries {
		e.Query = strings.TrimSpace(e.Query)
		key := strings.ToLower(e.Query)
		if e.Query == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
		if len(out) == MaxHistoryEntries {
			break
		}
	}
	return out
}
