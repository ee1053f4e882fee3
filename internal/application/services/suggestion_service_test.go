package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/labbook/internal/application/services"
	"github.com/zatekoja/labbook/internal/domain/entities"
)

type updateRecorder struct {
	mu      sync.Mutex
	updates []services.SuggestionUpdate
}

func (r *updateRecorder) record(u services.SuggestionUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *updateRecorder) queries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.updates))
	for _, u := range r.updates {
		out = append(out, u.Query)
	}
	return out
}

func TestSuggestionService_DebouncesTyping(t *testing.T) {
	provider := new(mockSuggestionProvider)
	provider.On("Suggest", mock.Anything, "cbc t", 5).
		Return([]entities.SearchSuggestion{{Text: "CBC Test"}}, nil).Once()

	recorder := &updateRecorder{}
	svc := services.NewSuggestionService(provider, nil,
		services.WithDebounce(50*time.Millisecond),
		services.OnSuggestions(recorder.record),
	)
	defer svc.Close()

	svc.Type("c")
	svc.Type("cbc")
	svc.Type("cbc t")

	assert.Eventually(t, func() bool { return svc.Latest().Query == "cbc t" }, time.Second, 5*time.Millisecond)
	latest := svc.Latest()
	assert.Equal(t, []entities.SearchSuggestion{{Text: "CBC Test"}}, latest.Suggestions)
	assert.Equal(t, uint64(3), latest.Seq)
	assert.Equal(t, []string{"c", "cbc t"}, recorder.queries())
	provider.AssertNumberOfCalls(t, "Suggest", 1)
}

func TestSuggestionService_ShortQueryClearsImmediately(t *testing.T) {
	provider := new(mockSuggestionProvider)
	svc := services.NewSuggestionService(provider, nil)
	defer svc.Close()

	svc.Type("ab")
	latest := svc.Latest()
	assert.Equal(t, "ab", latest.Query)
	assert.Empty(t, latest.Suggestions)
	provider.AssertNotCalled(t, "Suggest", mock.Anything, mock.Anything, mock.Anything)
}

func TestSuggestionService_StaleAnswerIsDropped(t *testing.T) {
	release := make(chan struct{})
	provider := new(mockSuggestionProvider)
	provider.On("Suggest", mock.Anything, "vit", 5).
		Run(func(mock.Arguments) { <-release }).
		Return([]entities.SearchSuggestion{{Text: "Vitamin B12"}}, nil)
	provider.On("Suggest", mock.Anything, "vitamin d", 5).
		Return([]entities.SearchSuggestion{{Text: "Vitamin D"}}, nil)

	tracker := services.NewActivityTracker()
	recorder := &updateRecorder{}
	svc := services.NewSuggestionService(provider, tracker,
		services.WithDebounce(time.Millisecond),
		services.OnSuggestions(recorder.record),
	)
	defer svc.Close()

	svc.Type("vit")
	assert.Eventually(t, func() bool { return tracker.Busy(services.ActivitySearching) }, time.Second, time.Millisecond)

	svc.Type("vitamin d")
	assert.Eventually(t, func() bool { return svc.Latest().Query == "vitamin d" }, time.Second, 5*time.Millisecond)

	close(release)
	assert.Never(t, func() bool {
		for _, q := range recorder.queries() {
			if q == "vit" {
				return true
			}
		}
		return false
	}, 100*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, []entities.SearchSuggestion{{Text: "Vitamin D"}}, svc.Latest().Suggestions)
}

func TestSuggestionService_Lookup(t *testing.T) {
	provider := new(mockSuggestionProvider)
	provider.On("Suggest", mock.Anything, "lipid", 3).
		Return([]entities.SearchSuggestion{{Text: "Lipid Profile"}}, nil)

	svc := services.NewSuggestionService(provider, nil, services.WithSuggestionLimit(3))

	got, err := svc.Lookup(context.Background(), "  lipid ")
	require.NoError(t, err)
	assert.Equal(t, []entities.SearchSuggestion{{Text: "Lipid Profile"}}, got)

	got, err = svc.Lookup(context.Background(), "li")
	require.NoError(t, err)
	assert.Empty(t, got)
	provider.AssertNumberOfCalls(t, "Suggest", 1)
}
