package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zatekoja/labbook/internal/domain/entities"
	"github.com/zatekoja/labbook/internal/domain/providers"
	"github.com/zatekoja/labbook/internal/domain/repositories"
	"github.com/zatekoja/labbook/internal/geo"
	"github.com/zatekoja/labbook/internal/infrastructure/observability"
)

const DefaultNearbyCount = 5

// LabDirectory fetches the backend lab list and derives the nearby and
// searchable views. A failed fetch keeps the last good list.
type LabDirectory struct {
	repo     repositories.LabRepository
	activity *ActivityTracker

	mu        sync.RWMutex
	labs      []*entities.Lab
	fetchedAt time.Time
	lastErr   error
}

var _ providers.SuggestionProvider = (*LabDirectory)(nil)

// DirectoryView is what the lab list screen renders
type DirectoryView struct {
	Origin    *entities.Coordinate `json:"origin,omitempty"`
	Nearby    []*entities.Lab      `json:"nearby"`
	All       []*entities.Lab      `json:"all"`
	Term      string               `json:"term,omitempty"`
	FetchedAt time.Time            `json:"fetched_at"`
	Notice    string               `json:"notice,omitempty"`
}

// NewLabDirectory creates a new lab directory
func NewLabDirectory(repo repositories.LabRepository, activity *ActivityTracker) *LabDirectory {
	return &LabDirectory{repo: repo, activity: activity}
}

// FetchAll loads the lab list. On failure the error is returned together
// with the previous successful list, which stays in place.
func (d *LabDirectory) FetchAll(ctx context.Context) ([]*entities.Lab, error) {
	done := d.activity.Begin(ActivityLoadingLabs)
	defer done()

	ctx, span := observability.StartSpan(ctx, "labs.fetch_all")
	defer span.End()

	labs, err := d.repo.List(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		observability.RecordError(span, err)
		observability.LoggerFromContext(ctx).Warn().Err(err).Int("kept", len(d.labs)).Msg("Lab list fetch failed, keeping previous list")
		d.lastErr = err
		return cloneLabs(d.labs), err
	}

	d.labs = cloneLabs(labs)
	d.fetchedAt = time.Now()
	d.lastErr = nil
	return cloneLabs(d.labs), nil
}

// Labs returns the last successfully fetched list
func (d *LabDirectory) Labs() []*entities.Lab {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return cloneLabs(d.labs)
}

// LastError returns the error of the most recent fetch, if it failed
func (d *LabDirectory) LastError() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastErr
}

// View ranks the active labs around origin, returns the nearest ones and the
// full list filtered by term. A nil origin yields the location-independent
// listing with no nearby section.
func (d *LabDirectory) View(origin *entities.Coordinate, nearbyCount int, term string) DirectoryView {
	d.mu.RLock()
	labs := activeLabs(d.labs)
	fetchedAt := d.fetchedAt
	lastErr := d.lastErr
	d.mu.RUnlock()

	ranked := RankByProximity(labs, origin)
	view := DirectoryView{
		Origin:    origin,
		Nearby:    []*entities.Lab{},
		All:       Search(ranked, term),
		Term:      strings.TrimSpace(term),
		FetchedAt: fetchedAt,
	}
	if origin != nil {
		located := make([]*entities.Lab, 0, len(ranked))
		for _, lab := range ranked {
			if lab.DistanceKm != nil {
				located = append(located, lab)
			}
		}
		view.Nearby = Nearest(located, nearbyCount)
	}
	if lastErr != nil {
		view.Notice = "Could not refresh labs. Showing the last loaded list."
	}
	return view
}

// Suggest matches lab, test and package names in the loaded list
func (d *LabDirectory) Suggest(ctx context.Context, query string, limit int) ([]entities.SearchSuggestion, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	suggestions := []entities.SearchSuggestion{}
	if query == "" {
		return suggestions, nil
	}
	if limit <= 0 {
		limit = 5
	}

	seen := make(map[string]struct{})
	add := func(labID, text, city string) bool {
		key := strings.ToLower(text)
		if _, ok := seen[key]; ok {
			return false
		}
		seen[key] = struct{}{}
		suggestions = append(suggestions, entities.SearchSuggestion{LabID: labID, Text: text, City: city})
		return len(suggestions) >= limit
	}

	for _, lab := range activeLabs(d.Labs()) {
		if strings.Contains(strings.ToLower(lab.Name), query) && add(lab.ID, lab.Name, lab.Address.City) {
			return suggestions, nil
		}
	}
	for _, lab := range activeLabs(d.Labs()) {
		for _, t := range lab.Tests {
			if strings.Contains(strings.ToLower(t.Name), query) && add("", t.Name, "") {
				return suggestions, nil
			}
		}
		for _, p := range lab.Packages {
			if strings.Contains(strings.ToLower(p.Name), query) && add("", p.Name, "") {
				return suggestions, nil
			}
		}
	}
	return suggestions, nil
}

// RankByProximity returns copies of labs with DistanceKm attached, sorted
// ascending. The sort is stable, labs without a location go last, and a nil
// origin keeps the input order with distances cleared.
func RankByProximity(labs []*entities.Lab, origin *entities.Coordinate) []*entities.Lab {
	ranked := make([]*entities.Lab, 0, len(labs))
	for _, lab := range labs {
		if lab == nil {
			continue
		}
		c := *lab
		c.DistanceKm = nil
		if km, ok := geo.DistanceBetween(origin, lab.Location); ok {
			c.DistanceKm = &km
		}
		ranked = append(ranked, &c)
	}
	if origin == nil {
		return ranked
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].DistanceKm, ranked[j].DistanceKm
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
	return ranked
}

// Nearest returns the first n labs of an already ranked list
func Nearest(ranked []*entities.Lab, n int) []*entities.Lab {
	if n <= 0 {
		return []*entities.Lab{}
	}
	n = min(n, len(ranked))
	out := make([]*entities.Lab, n)
	copy(out, ranked[:n])
	return out
}

// Search keeps labs whose name or address contains term, ignoring case.
// A blank term returns the input unchanged.
func Search(labs []*entities.Lab, term string) []*entities.Lab {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return labs
	}
	matches := make([]*entities.Lab, 0, len(labs))
	for _, lab := range labs {
		if lab == nil {
			continue
		}
		haystack := strings.ToLower(lab.Name + " " + lab.Address.SearchText())
		if strings.Contains(haystack, term) {
			matches = append(matches, lab)
		}
	}
	return matches
}

func activeLabs(labs []*entities.Lab) []*entities.Lab {
	active := make([]*entities.Lab, 0, len(labs))
	for _, lab := range labs {
		if lab != nil && lab.IsActive {
			active = append(active, lab)
		}
	}
	return active
}

func cloneLabs(labs []*entities.Lab) []*entities.Lab {
	if labs == nil {
		return nil
	}
	out := make([]*entities.Lab, len(labs))
	copy(out, labs)
	return out
}
