package domain

import "time"

// SearchResult is one record returned by a connector.
type SearchResult struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	ToolID         string         `json:"toolId"`
	ContentType    string         `json:"contentType"`
	URL            string         `json:"url"`
	Timestamp      time.Time      `json:"timestamp"`
	Author         string         `json:"author"`
	RelevanceScore float64        `json:"relevanceScore"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Clone returns a copy whose metadata shares nothing with r, nested slices
// and maps included.
func (r SearchResult) Clone() SearchResult {
	if r.Metadata != nil {
		meta := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = cloneMetadataValue(v)
		}
		r.Metadata = meta
	}
	return r
}

func cloneMetadataValue(v any) any {
	switch value := v.(type) {
	case []string:
		return append([]string(nil), value...)
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = cloneMetadataValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, item := range value {
			out[k] = cloneMetadataValue(item)
		}
		return out
	default:
		return v
	}
}

// DateRange bounds result timestamps. A zero bound is open.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range, bounds inclusive.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// SearchOptions is the query shape passed unchanged to every connector.
type SearchOptions struct {
	Query        string     `json:"query,omitempty"`
	MaxResults   int        `json:"maxResults,omitempty"`
	ContentTypes []string   `json:"contentTypes,omitempty"`
	DateRange    *DateRange `json:"dateRange,omitempty"`
}

// SearchFailure records a connector that contributed nothing to a fan-out.
type SearchFailure struct {
	ToolID string `json:"toolId"`
	Error  string `json:"error"`
}

// SearchResponse is the merged output of one fan-out.
type SearchResponse struct {
	SearchID string          `json:"searchId"`
	Results  []SearchResult  `json:"results"`
	Queried  []string        `json:"queried"`
	Failures []SearchFailure `json:"failures,omitempty"`
	Dropped  int             `json:"duplicatesDropped"`
	Duration time.Duration   `json:"duration"`
}
