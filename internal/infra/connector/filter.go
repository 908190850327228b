package connector

import (
	"sort"
	"strings"

	"omnisearch/internal/domain"
)

// applyFilters returns copies of the records matching opts. Filters are AND-combined
// and MaxResults keeps the highest scoring matches.
func applyFilters(data []domain.SearchResult, opts domain.SearchOptions) []domain.SearchResult {
	query := strings.ToLower(strings.TrimSpace(opts.Query))

	out := make([]domain.SearchResult, 0)
	for _, item := range data {
		if query != "" && !matchesQuery(item, query) {
			continue
		}
		if len(opts.ContentTypes) > 0 && !containsFold(opts.ContentTypes, item.ContentType) {
			continue
		}
		if opts.DateRange != nil && !opts.DateRange.Contains(item.Timestamp) {
			continue
		}
		out = append(out, item.Clone())
	}

	if opts.MaxResults > 0 && len(out) > opts.MaxResults {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].RelevanceScore > out[j].RelevanceScore
		})
		out = out[:opts.MaxResults]
	}
	return out
}

func matchesQuery(item domain.SearchResult, query string) bool {
	return strings.Contains(strings.ToLower(item.Title), query) ||
		strings.Contains(strings.ToLower(item.Body), query)
}

func containsFold(values []string, target string) bool {
	for _, value := range values {
		if strings.EqualFold(strings.TrimSpace(value), target) {
			return true
		}
	}
	return false
}
