package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"omnisearch/internal/domain"
	"omnisearch/internal/infra/aggregator"
	"omnisearch/internal/infra/connector"
	"omnisearch/internal/infra/health"
	"omnisearch/internal/infra/notifications"
	"omnisearch/internal/infra/reconnect"
	"omnisearch/internal/infra/registry"
	"omnisearch/internal/infra/state"
	"omnisearch/internal/infra/telemetry"
)

// Options injects collaborators. Every field is optional.
type Options struct {
	Factory     *connector.Factory
	Credentials domain.CredentialProvider
	Probe       domain.HealthProbe
	Metrics     domain.Metrics
	Logger      *zap.Logger
	Tracer      trace.Tracer
	// Now overrides the clock of the store, the monitor and simulated connectors.
	Now func() time.Time
}

// Engine is one isolated instance of the connector lifecycle, health monitor and
// search fan-out. Instances share no state.
type Engine struct {
	catalog    domain.Catalog
	store      *state.Store
	registry   *registry.Registry
	monitor    *health.Monitor
	aggregator *aggregator.Aggregator
	reconnect  *reconnect.Policy
	events     *notifications.EventHub
	metrics    domain.Metrics
	logger     *zap.Logger

	mu       sync.Mutex
	started  bool
	shutdown bool
	cancel   context.CancelFunc
}

// New builds an engine from catalog. Every tool starts disconnected.
func New(catalog domain.Catalog, opts Options) (*Engine, error) {
	if len(catalog.Tools) == 0 {
		return nil, errors.New("catalog has no tools")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	runtime := catalog.Runtime

	store, err := state.NewStore(catalog.ToolIDs(), state.Options{Logger: logger, Now: opts.Now})
	if err != nil {
		return nil, err
	}
	reg, err := registry.New(catalog.Tools, store, registry.Options{
		Factory:          opts.Factory,
		Credentials:      opts.Credentials,
		Metrics:          metrics,
		Logger:           logger,
		OperationTimeout: runtime.OperationTimeout(),
		Now:              opts.Now,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		catalog:  catalog,
		store:    store,
		registry: reg,
		monitor: health.NewMonitor(reg, store, health.Options{
			Probe:         opts.Probe,
			Interval:      runtime.Health.Interval(),
			ProbeTimeout:  runtime.Health.ProbeTimeout(),
			SlowThreshold: runtime.Health.SlowThreshold(),
			Concurrency:   runtime.Health.Concurrency,
			Metrics:       metrics,
			Logger:        logger,
			Now:           opts.Now,
		}),
		aggregator: aggregator.New(reg, aggregator.Options{
			Timeout:        runtime.Search.Timeout(),
			Concurrency:    runtime.Search.Concurrency,
			KeepDuplicates: !runtime.Search.Dedupe,
			Metrics:        metrics,
			Logger:         logger,
			Tracer:         opts.Tracer,
		}),
		events:  notifications.NewEventHub(),
		metrics: metrics,
		logger:  logger.Named("engine"),
	}
	if runtime.Reconnect.Enabled {
		policyOpts := reconnect.OptionsFromConfig(runtime.Reconnect)
		policyOpts.Metrics = metrics
		policyOpts.Logger = logger
		e.reconnect = reconnect.New(reg, store, policyOpts)
	}

	store.AddConnectionListener(e.events.PublishConnections)
	store.AddHealthListener(e.events.PublishHealth)
	return e, nil
}

// Start launches the health tick and the reconnect policy. It is a no-op after
// the first call or after Shutdown.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started || e.shutdown {
		return
	}
	ctx, e.cancel = context.WithCancel(ctx)
	e.started = true

	if e.reconnect != nil {
		e.reconnect.Start(ctx)
	}
	e.monitor.Start(ctx)
	e.logger.Info("engine started", zap.Int("tools", len(e.catalog.Tools)), zap.Bool("reconnect", e.reconnect != nil))
}

// Shutdown stops background work and waits for it to finish. Connection records
// keep their last state. Safe to call repeatedly.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return
	}
	e.shutdown = true
	cancel := e.cancel
	e.mu.Unlock()

	if e.reconnect != nil {
		e.reconnect.Stop()
	}
	e.monitor.Stop()
	if cancel != nil {
		cancel()
	}
	e.logger.Info("engine stopped")
}

// Running reports whether the health tick is active.
func (e *Engine) Running() bool {
	return e.monitor.Running()
}

// Tools returns the catalog in order.
func (e *Engine) Tools() []domain.ToolSpec {
	return append([]domain.ToolSpec(nil), e.catalog.Tools...)
}

// Runtime returns the runtime configuration the engine was built with.
func (e *Engine) Runtime() domain.RuntimeConfig {
	return e.catalog.Runtime
}

// Volume returns the data-volume tier assigned to toolID.
func (e *Engine) Volume(toolID string) (domain.DataVolume, error) {
	return e.registry.Volume(toolID)
}

// Events exposes the connection and health event stream.
func (e *Engine) Events() *notifications.EventHub {
	return e.events
}

func (e *Engine) Connections() []domain.Connection {
	return e.store.Connections()
}

func (e *Engine) Connection(toolID string) (domain.Connection, error) {
	return e.store.Connection(toolID)
}

func (e *Engine) HealthStatuses() []domain.HealthStatus {
	return e.store.HealthStatuses()
}

func (e *Engine) Health(toolID string) (domain.HealthStatus, error) {
	return e.store.Health(toolID)
}

func (e *Engine) Stats() domain.ConnectionStats {
	return e.store.Stats()
}

// AddConnectionListener registers fn for every connection change. Listeners run
// synchronously on the mutating goroutine, in revision order, and must not block
// or change connection state themselves.
func (e *Engine) AddConnectionListener(fn domain.ConnectionListener) domain.ListenerID {
	return e.store.AddConnectionListener(fn)
}

func (e *Engine) RemoveConnectionListener(id domain.ListenerID) bool {
	return e.store.RemoveConnectionListener(id)
}

func (e *Engine) AddHealthListener(fn domain.HealthListener) domain.ListenerID {
	return e.store.AddHealthListener(fn)
}

func (e *Engine) RemoveHealthListener(id domain.ListenerID) bool {
	return e.store.RemoveHealthListener(id)
}

// Connect performs the handshake for toolID. The connection ends in connected or error.
func (e *Engine) Connect(ctx context.Context, toolID string) error {
	return e.registry.Connect(ctx, toolID)
}

// ConnectAll connects every catalog tool with at most limit handshakes in flight.
func (e *Engine) ConnectAll(ctx context.Context, limit int) error {
	return e.registry.ConnectAll(ctx, nil, limit)
}

// ConnectTools connects the listed tools concurrently. An empty list means every tool.
func (e *Engine) ConnectTools(ctx context.Context, toolIDs []string, limit int) error {
	return e.registry.ConnectAll(ctx, toolIDs, limit)
}

func (e *Engine) Disconnect(ctx context.Context, toolID string) error {
	return e.registry.Disconnect(ctx, toolID)
}

// SyncTool refreshes a connected tool.
func (e *Engine) SyncTool(ctx context.Context, toolID string) error {
	return e.registry.Sync(ctx, toolID)
}

// SyncAllConnectedTools refreshes every connected tool and joins the failures.
func (e *Engine) SyncAllConnectedTools(ctx context.Context) error {
	return e.registry.SyncAll(ctx)
}

// Search fans opts out to connected tools and reports per-tool failures.
func (e *Engine) Search(ctx context.Context, opts domain.SearchOptions) domain.SearchResponse {
	return e.aggregator.Search(ctx, opts)
}

// SearchAll returns only the merged results of Search.
func (e *Engine) SearchAll(ctx context.Context, opts domain.SearchOptions) []domain.SearchResult {
	return e.aggregator.SearchAll(ctx, opts)
}

// CheckHealth runs one probe cycle now, independent of the tick.
func (e *Engine) CheckHealth(ctx context.Context) domain.HealthReport {
	return e.monitor.CheckNow(ctx)
}

// ReconnectPending reports whether an automatic retry is scheduled for toolID.
func (e *Engine) ReconnectPending(toolID string) bool {
	if e.reconnect == nil {
		return false
	}
	return e.reconnect.Pending(toolID)
}
