package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/ytmirror/internal/models"
	"github.com/desertthunder/ytmirror/internal/shared"
)

// DefaultSearchResults is the number of candidates ranked per track.
const DefaultSearchResults = 5

const watchURL = "https://www.youtube.com/watch?v="

// Searcher is the subset of [services.VideoPlatform] the resolver needs.
type Searcher interface {
	SearchVideos(ctx context.Context, query string, max int) ([]string, error)
	ViewCounts(ctx context.Context, ids []string) (map[string]uint64, error)
}

// Resolver maps an (artist, title) pair to the most viewed video among the top search hits.
type Resolver struct {
	searcher   Searcher
	maxResults int
}

// NewResolver creates a resolver ranking up to maxResults hits; non-positive values use [DefaultSearchResults].
func NewResolver(s Searcher, maxResults int) *Resolver {
	if maxResults <= 0 {
		maxResults = DefaultSearchResults
	}
	return &Resolver{searcher: s, maxResults: maxResults}
}

// Query builds the search string for a track.
func Query(artist, title string) string {
	return artist + " - " + title
}

// Resolve searches for the track and returns the candidate with the highest view count.
// Ties go to the earlier search result.
//
// Fails with [shared.ErrNoMatch] when the search is empty and with [shared.ErrAmbiguousSourceData]
// when any candidate lacks statistics.
func (r *Resolver) Resolve(ctx context.Context, artist, title string) (models.Candidate, error) {
	query := Query(artist, title)

	ids, err := r.searcher.SearchVideos(ctx, query, r.maxResults)
	if err != nil {
		return models.Candidate{}, err
	}
	if len(ids) == 0 {
		return models.Candidate{}, fmt.Errorf("%w: %q", shared.ErrNoMatch, query)
	}

	counts, err := r.searcher.ViewCounts(ctx, ids)
	if err != nil {
		return models.Candidate{}, err
	}

	candidates := make([]models.Candidate, len(ids))
	for i, id := range ids {
		count, ok := counts[id]
		if !ok {
			return models.Candidate{}, fmt.Errorf("%w: no view count for %s%s (query %q)", shared.ErrAmbiguousSourceData, watchURL, id, query)
		}
		candidates[i] = models.Candidate{VideoID: id, ViewCount: count}
	}

	return candidates[best(candidates)], nil
}

// best returns the index of the first candidate with the maximum view count.
func best(candidates []models.Candidate) int {
	idx := 0
	for i, c := range candidates[1:] {
		if c.ViewCount > candidates[idx].ViewCount {
			idx = i + 1
		}
	}
	return idx
}
