package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/zatekoja/labbook/internal/domain/entities"
	"github.com/zatekoja/labbook/internal/domain/providers"
	"github.com/zatekoja/labbook/internal/infrastructure/observability"
)

// labIndex is the slice of the Typesense client the adapter needs.
type labIndex interface {
	InitSchema(ctx context.Context) error
	UpsertLab(ctx context.Context, document map[string]interface{}) error
	DeleteLab(ctx context.Context, id string) error
	SearchLabs(ctx context.Context, params *api.SearchCollectionParams) (*api.SearchResult, error)
}

// TypesenseAdapter serves lab suggestions from the Typesense labs collection
type TypesenseAdapter struct {
	client labIndex
	now    func() time.Time
}

var _ providers.SuggestionProvider = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client labIndex) *TypesenseAdapter {
	return &TypesenseAdapter{client: client, now: time.Now}
}

// InitSchema ensures the collection exists
func (a *TypesenseAdapter) InitSchema(ctx context.Context) error {
	return a.client.InitSchema(ctx)
}

// Index upserts a lab document
func (a *TypesenseAdapter) Index(ctx context.Context, lab *entities.Lab) error {
	if lab == nil || strings.TrimSpace(lab.ID) == "" {
		return fmt.Errorf("lab id is required for indexing")
	}
	if err := a.client.UpsertLab(ctx, a.buildDocument(lab)); err != nil {
		return fmt.Errorf("failed to index lab %s: %w", lab.ID, err)
	}
	return nil
}

// Delete removes a lab from the index
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	if err := a.client.DeleteLab(ctx, id); err != nil {
		return fmt.Errorf("failed to delete lab %s from index: %w", id, err)
	}
	return nil
}

// Suggest returns lab names, test names and cities matching a partial query
func (a *TypesenseAdapter) Suggest(ctx context.Context, query string, limit int) ([]entities.SearchSuggestion, error) {
	ctx, span := observability.StartSpan(ctx, "search.suggest")
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return []entities.SearchSuggestion{}, nil
	}
	if limit <= 0 {
		limit = 5
	}

	params := &api.SearchCollectionParams{
		Q:        pointer.String(query),
		QueryBy:  pointer.String("name,test_names,package_names,city"),
		FilterBy: pointer.String("is_active:=true"),
		Prefix:   pointer.String("true"),
		PerPage:  pointer.Int(limit),
	}

	result, err := a.client.SearchLabs(ctx, params)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to search labs: %w", err)
	}

	suggestions := make([]entities.SearchSuggestion, 0, limit)
	if result == nil || result.Hits == nil {
		return suggestions, nil
	}
	seen := make(map[string]struct{})
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		doc := *hit.Document
		id, _ := doc["id"].(string)
		name, _ := doc["name"].(string)
		city, _ := doc["city"].(string)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		suggestions = append(suggestions, entities.SearchSuggestion{LabID: id, Text: name, City: city})
		if len(suggestions) == limit {
			break
		}
	}
	return suggestions, nil
}

func (a *TypesenseAdapter) buildDocument(lab *entities.Lab) map[string]interface{} {
	document := map[string]interface{}{
		"id":            lab.ID,
		"name":          strings.TrimSpace(lab.Name),
		"city":          strings.TrimSpace(lab.Address.City),
		"address":       lab.Address.String(),
		"test_names":    uniqueNames(testNames(lab)),
		"package_names": uniqueNames(packageNames(lab)),
		"is_active":     lab.IsActive,
		"updated_at":    a.now().Unix(),
	}
	if lab.Location != nil {
		document["location"] = []float64{lab.Location.Latitude, lab.Location.Longitude}
	}
	return document
}

func testNames(lab *entities.Lab) []string {
	names := make([]string, 0, len(lab.Tests))
	for _, t := range lab.Tests {
		names = append(names, t.Name)
	}
	return names
}

func packageNames(lab *entities.Lab) []string {
	names := make([]string, 0, len(lab.Packages))
	for _, p := range lab.Packages {
		names = append(names, p.Name)
	}
	return names
}

func uniqueNames(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
