package services

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/zatekoja/labbook/internal/domain/entities"
	"github.com/zatekoja/labbook/internal/domain/providers"
	"github.com/zatekoja/labbook/internal/infrastructure/observability"
)

const (
	SuggestionDebounce     = 300 * time.Millisecond
	MinSuggestionRunes     = 3
	defaultSuggestionLimit = 5
	suggestionTimeout      = 5 * time.Second
)

// SuggestionUpdate is published whenever the visible suggestions change
type SuggestionUpdate struct {
	Seq         uint64                      `json:"seq"`
	Query       string                      `json:"query"`
	Suggestions []entities.SearchSuggestion `json:"suggestions"`
	Err         error                       `json:"-"`
}

// SuggestionService debounces as-you-type queries and publishes only the
// answer to the most recently typed query.
type SuggestionService struct {
	provider providers.SuggestionProvider
	activity *ActivityTracker
	debounce time.Duration
	limit    int
	onUpdate func(SuggestionUpdate)

	mu       sync.Mutex
	seq      uint64
	timer    *time.Timer
	inflight context.CancelFunc
	latest   SuggestionUpdate
	closed   bool
}

// SuggestionOption configures a SuggestionService
type SuggestionOption func(*SuggestionService)

// WithDebounce overrides the debounce window
func WithDebounce(d time.Duration) SuggestionOption {
	return func(s *SuggestionService) {
		if d >= 0 {
			s.debounce = d
		}
	}
}

// WithSuggestionLimit caps the number of suggestions
func WithSuggestionLimit(n int) SuggestionOption {
	return func(s *SuggestionService) {
		if n > 0 {
			s.limit = n
		}
	}
}

// OnSuggestions registers the callback receiving every published update
func OnSuggestions(fn func(SuggestionUpdate)) SuggestionOption {
	return func(s *SuggestionService) {
		s.onUpdate = fn
	}
}

// NewSuggestionService creates a new suggestion service
func NewSuggestionService(provider providers.SuggestionProvider, activity *ActivityTracker, opts ...SuggestionOption) *SuggestionService {
	s := &SuggestionService{
		provider: provider,
		activity: activity,
		debounce: SuggestionDebounce,
		limit:    defaultSuggestionLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Type records the current input. Queries shorter than the minimum clear the
// suggestions at once; longer ones are looked up after the debounce window
// unless more input arrives first.
func (s *SuggestionService) Type(query string) {
	query = strings.TrimSpace(query)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.seq++
	seq := s.seq
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.inflight != nil {
		s.inflight()
		s.inflight = nil
	}

	if utf8.RuneCountInString(query) < MinSuggestionRunes {
		update := SuggestionUpdate{Seq: seq, Query: query, Suggestions: []entities.SearchSuggestion{}}
		s.latest = update
		s.mu.Unlock()
		s.publish(update)
		return
	}

	s.timer = time.AfterFunc(s.debounce, func() { s.run(seq, query) })
	s.mu.Unlock()
}

// Latest returns the most recently published update
func (s *SuggestionService) Latest() SuggestionUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Lookup fetches suggestions immediately, without debounce or sequencing.
func (s *SuggestionService) Lookup(ctx context.Context, query string) ([]entities.SearchSuggestion, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinSuggestionRunes || s.provider == nil {
		return []entities.SearchSuggestion{}, nil
	}

	done := s.activity.Begin(ActivitySearching)
	defer done()

	ctx, cancel := context.WithTimeout(ctx, suggestionTimeout)
	defer cancel()
	return s.provider.Suggest(ctx, query, s.limit)
}

// Close stops pending lookups; later input is ignored
func (s *SuggestionService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.inflight != nil {
		s.inflight()
	}
}

func (s *SuggestionService) run(seq uint64, query string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.mu.Lock()
	if seq != s.seq || s.closed {
		s.mu.Unlock()
		return
	}
	s.inflight = cancel
	s.mu.Unlock()

	suggestions, err := s.Lookup(ctx, query)

	s.mu.Lock()
	if seq != s.seq || s.closed {
		s.mu.Unlock()
		return
	}
	s.inflight = nil
	if err != nil {
		observability.LoggerFromContext(ctx).Debug().Err(err).Str("query", query).Msg("Suggestion lookup failed")
		suggestions = []entities.SearchSuggestion{}
	}
	update := SuggestionUpdate{Seq: seq, Query: query, Suggestions: suggestions, Err: err}
	s.latest = update
	s.mu.Unlock()

	s.publish(update)
}

func (s *SuggestionService) publish(update SuggestionUpdate) {
	if s.onUpdate != nil {
		s.onUpdate(update)
	}
}
