package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/typesense/typesense-go/v2/typesense/api"

	"github.com/zatekoja/labbook/internal/domain/entities"
)

type mockLabIndex struct {
	mock.Mock
}

func (m *mockLabIndex) InitSchema(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockLabIndex) UpsertLab(ctx context.Context, document map[string]interface{}) error {
	return m.Called(ctx, document).Error(0)
}

func (m *mockLabIndex) DeleteLab(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockLabIndex) SearchLabs(ctx context.Context, params *api.SearchCollectionParams) (*api.SearchResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.SearchResult), args.Error(1)
}

func hitsOf(docs ...map[string]interface{}) *api.SearchResult {
	hits := make([]api.SearchResultHit, 0, len(docs))
	for i := range docs {
		doc := docs[i]
		hits = append(hits, api.SearchResultHit{Document: &doc})
	}
	return &api.SearchResult{Hits: &hits}
}

func TestTypesenseAdapter_Suggest(t *testing.T) {
	index := new(mockLabIndex)
	adapter := NewTypesenseAdapter(index)

	index.On("SearchLabs", mock.Anything, mock.MatchedBy(func(p *api.SearchCollectionParams) bool {
		return *p.Q == "city" && *p.PerPage == 2 && *p.FilterBy == "is_active:=true"
	})).Return(hitsOf(
		map[string]interface{}{"id": "lab-1", "name": "City Diagnostics", "city": "Bengaluru"},
		map[string]interface{}{"id": "lab-2", "name": "city diagnostics", "city": "Mysuru"},
		map[string]interface{}{"id": "lab-3", "name": "Citywide Labs"},
	), nil)

	suggestions, err := adapter.Suggest(context.Background(), " city ", 2)
	require.NoError(t, err)
	assert.Equal(t, []entities.SearchSuggestion{
		{LabID: "lab-1", Text: "City Diagnostics", City: "Bengaluru"},
		{LabID: "lab-3", Text: "Citywide Labs"},
	}, suggestions)
	index.AssertExpectations(t)
}

func TestTypesenseAdapter_SuggestBlankQuery(t *testing.T) {
	index := new(mockLabIndex)
	suggestions, err := NewTypesenseAdapter(index).Suggest(context.Background(), "   ", 5)
	require.NoError(t, err)
	assert.Empty(t, suggestions)
	index.AssertNotCalled(t, "SearchLabs", mock.Anything, mock.Anything)
}

func TestTypesenseAdapter_SuggestError(t *testing.T) {
	index := new(mockLabIndex)
	index.On("SearchLabs", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	_, err := NewTypesenseAdapter(index).Suggest(context.Background(), "lipid", 5)
	assert.ErrorContains(t, err, "connection refused")
}

func TestTypesenseAdapter_Index(t *testing.T) {
	index := new(mockLabIndex)
	adapter := NewTypesenseAdapter(index)
	adapter.now = func() time.Time { return time.Unix(1700000000, 0) }

	price := 500.0
	lab := &entities.Lab{
		ID:       "lab-1",
		Name:     " City Diagnostics ",
		Address:  entities.Address{Street: "12 MG Road", City: "Bengaluru"},
		Location: &entities.Coordinate{Latitude: 12.98, Longitude: 77.60},
		Tests: []entities.TestRef{
			{ID: "t1", Name: "Lipid Profile", Price: &price},
			{ID: "t2", Name: "CBC"},
			{ID: "t3", Name: "cbc"},
		},
		IsActive: true,
	}

	index.On("UpsertLab", mock.Anything, mock.MatchedBy(func(doc map[string]interface{}) bool {
		return doc["id"] == "lab-1" &&
			doc["name"] == "City Diagnostics" &&
			doc["address"] == "12 MG Road, Bengaluru" &&
			assert.ObjectsAreEqual([]string{"CBC", "Lipid Profile"}, doc["test_names"]) &&
			assert.ObjectsAreEqual([]float64{12.98, 77.60}, doc["location"]) &&
			doc["updated_at"] == int64(1700000000)
	})).Return(nil)

	require.NoError(t, adapter.Index(context.Background(), lab))
	index.AssertExpectations(t)

	assert.Error(t, adapter.Index(context.Background(), &entities.Lab{}))
}
