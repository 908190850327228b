package aggregator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"omnisearch/internal/domain"
	"omnisearch/internal/infra/deadline"
	"omnisearch/internal/infra/telemetry"
)

// ConnectorSource provides the connected tool set and their connectors.
type ConnectorSource interface {
	Get(toolID string) (domain.Connector, error)
	ConnectedToolIDs() []string
}

// Options configures an Aggregator.
type Options struct {
	// Timeout bounds each connector call.
	Timeout time.Duration
	// Concurrency caps parallel connector calls; zero means one worker per tool.
	Concurrency int
	// KeepDuplicates disables deduplication by result id.
	KeepDuplicates bool
	Metrics        domain.Metrics
	Logger         *zap.Logger
	Tracer         trace.Tracer
}

// Aggregator fans a query out to every connected connector and merges the results.
type Aggregator struct {
	source  ConnectorSource
	cfg     Options
	metrics domain.Metrics
	logger  *zap.Logger
	tracer  trace.Tracer
}

// New constructs an Aggregator.
func New(source ConnectorSource, opts Options) *Aggregator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("omnisearch/aggregator")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(domain.DefaultSearchTimeoutSeconds) * time.Second
	}
	return &Aggregator{
		source:  source,
		cfg:     opts,
		metrics: metrics,
		logger:  logger.Named("aggregator"),
		tracer:  tracer,
	}
}

// SearchAll returns the ranked, deduplicated results of every connected connector.
func (a *Aggregator) SearchAll(ctx context.Context, opts domain.SearchOptions) []domain.SearchResult {
	return a.Search(ctx, opts).Results
}

type partial struct {
	index   int
	toolID  string
	results []domain.SearchResult
	err     error
}

// Search runs one fan-out. A failing, slow or panicking connector contributes no
// results and is reported in Failures; the search itself never fails.
func (a *Aggregator) Search(ctx context.Context, opts domain.SearchOptions) domain.SearchResponse {
	started := time.Now()
	searchID := uuid.NewString()
	ids := a.source.ConnectedToolIDs()

	ctx, span := a.tracer.Start(ctx, "search.fanout", trace.WithAttributes(
		attribute.String("search.id", searchID),
		attribute.Int("search.connectors", len(ids)),
	))
	defer span.End()

	response := domain.SearchResponse{
		SearchID: searchID,
		Queried:  ids,
		Results:  []domain.SearchResult{},
	}
	if len(ids) == 0 {
		response.Duration = time.Since(started)
		a.metrics.ObserveFanOut(0, 0, response.Duration)
		return response
	}

	partials := a.fanOut(ctx, searchID, ids, opts)

	merged := make([]domain.SearchResult, 0)
	for _, p := range partials {
		if p.err != nil {
			response.Failures = append(response.Failures, domain.SearchFailure{ToolID: p.toolID, Error: p.err.Error()})
			continue
		}
		merged = append(merged, p.results...)
	}

	if !a.cfg.KeepDuplicates {
		merged, response.Dropped = dedupe(merged)
	}
	rank(merged)
	if opts.MaxResults > 0 && len(merged) > opts.MaxResults {
		merged = merged[:opts.MaxResults]
	}

	response.Results = merged
	response.Duration = time.Since(started)
	a.metrics.ObserveFanOut(len(ids), len(merged), response.Duration)
	span.SetAttributes(
		attribute.Int("search.results", len(merged)),
		attribute.Int("search.failures", len(response.Failures)),
	)
	telemetry.LoggerFor(ctx, a.logger).Debug("search complete",
		telemetry.SearchIDField(searchID),
		zap.Int("connectors", len(ids)),
		zap.Int("results", len(merged)),
		zap.Int("failures", len(response.Failures)),
		telemetry.DurationField(response.Duration),
	)
	return response
}

// fanOut queries every tool through a bounded worker pool and returns the partials in ids order.
func (a *Aggregator) fanOut(ctx context.Context, searchID string, ids []string, opts domain.SearchOptions) []partial {
	type job struct {
		index  int
		toolID string
	}

	workerCount := workerCount(a.cfg.Concurrency, len(ids))
	jobs := make(chan job)
	results := make(chan partial, len(ids))

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- a.searchOne(ctx, searchID, j.index, j.toolID, opts)
			}
		}()
	}

	go func() {
		for i, id := range ids {
			jobs <- job{index: i, toolID: id}
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]partial, len(ids))
	for res := range results {
		out[res.index] = res
	}
	return out
}

func (a *Aggregator) searchOne(ctx context.Context, searchID string, index int, toolID string, opts domain.SearchOptions) partial {
	ctx, span := a.tracer.Start(ctx, "search.connector", trace.WithAttributes(attribute.String("tool.id", toolID)))
	defer span.End()

	start := time.Now()
	res := partial{index: index, toolID: toolID}
	conn, err := a.source.Get(toolID)
	if err == nil {
		res.results, err = deadline.Value(ctx, a.cfg.Timeout, func(ctx context.Context) ([]domain.SearchResult, error) {
			return conn.Search(ctx, opts)
		})
	}
	duration := time.Since(start)
	a.metrics.ObserveConnectorSearch(toolID, duration, len(res.results), err)

	if err != nil {
		res.results = nil
		res.err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		telemetry.LoggerFor(ctx, a.logger).Warn("connector search failed",
			telemetry.EventField(telemetry.EventSearchFailure),
			telemetry.SearchIDField(searchID),
			telemetry.ToolField(toolID),
			telemetry.DurationField(duration),
			zap.Error(err),
		)
		return res
	}
	for i := range res.results {
		if res.results[i].ToolID == "" {
			res.results[i].ToolID = toolID
		}
	}
	span.SetAttributes(attribute.Int("search.results", len(res.results)))
	return res
}

// dedupe keeps the first occurrence of every result id.
func dedupe(results []domain.SearchResult) ([]domain.SearchResult, int) {
	seen := make(map[string]struct{}, len(results))
	out := results[:0]
	dropped := 0
	for _, r := range results {
		if _, dup := seen[r.ID]; dup {
			dropped++
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out, dropped
}

// rank orders by relevance descending. Ties keep their merge order, which follows
// the catalog order of tools, so repeated searches over unchanged data agree.
func rank(results []domain.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
}

func workerCount(limit, total int) int {
	if total <= 0 {
		return 0
	}
	if limit <= 0 || limit > total {
		return total
	}
	return limit
}
