package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zatekoja/labbook/internal/domain/entities"
	"github.com/zatekoja/labbook/internal/domain/providers"
)

// FileStore keeps the search history in a JSON file on the local machine
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ providers.HistoryStore = (*FileStore)(nil)

// NewFileStore creates a history store backed by path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the stored entries. A missing file is an empty history.
func (s *FileStore) Load(ctx context.Context) ([]entities.SearchHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []entities.SearchHistoryEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read search history: %w", err)
	}

	var entries []entities.SearchHistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode search history: %w", err)
	}
	return entries, nil
}

// Save replaces the stored entries, writing through a temp file
func (s *FileStore) Save(ctx context.Context, entries []entities.SearchHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode search history: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp history file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write search history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write search history: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace search history: %w", err)
	}
	return nil
}
