package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"omnisearch/internal/domain"
	"omnisearch/internal/infra/connector"
	"omnisearch/internal/infra/deadline"
	"omnisearch/internal/infra/state"
	"omnisearch/internal/infra/telemetry"
)

// Options configures a Registry.
type Options struct {
	Factory          *connector.Factory
	Credentials      domain.CredentialProvider
	Metrics          domain.Metrics
	Logger           *zap.Logger
	OperationTimeout time.Duration
	// Now overrides the clock handed to connectors; used by tests.
	Now func() time.Time
}

type entry struct {
	mu        sync.Mutex
	spec      domain.ToolSpec
	volume    domain.DataVolume
	connector domain.Connector
}

// Registry owns one connector per catalog tool and applies connection outcomes to the store.
type Registry struct {
	store   *state.Store
	metrics domain.Metrics
	logger  *zap.Logger
	timeout time.Duration

	order   []string
	entries map[string]*entry
}

// New builds a connector for every tool in specs, in order.
func New(specs []domain.ToolSpec, store *state.Store, opts Options) (*Registry, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	factory := opts.Factory
	if factory == nil {
		factory = connector.NewFactory()
	}
	timeout := opts.OperationTimeout
	if timeout <= 0 {
		timeout = time.Duration(domain.DefaultOperationTimeoutSeconds) * time.Second
	}

	r := &Registry{
		store:   store,
		metrics: metrics,
		logger:  logger.Named("registry"),
		timeout: timeout,
		order:   make([]string, 0, len(specs)),
		entries: make(map[string]*entry, len(specs)),
	}
	for _, spec := range specs {
		if _, dup := r.entries[spec.ID]; dup {
			return nil, fmt.Errorf("duplicate tool id %q", spec.ID)
		}
		if !store.Has(spec.ID) {
			return nil, fmt.Errorf("tool %q missing from state store", spec.ID)
		}
		volume := VolumeFor(spec)
		conn := factory.Build(connector.Options{
			Spec:        spec,
			Volume:      volume,
			Credentials: opts.Credentials,
			Now:         opts.Now,
		})
		r.order = append(r.order, spec.ID)
		r.entries[spec.ID] = &entry{spec: spec, volume: volume, connector: conn}
	}
	// Snapshots arrive in revision order, so the gauge ends on the latest count.
	store.AddConnectionListener(func(snapshot domain.ConnectionSnapshot) {
		metrics.SetConnectedTools(snapshot.ConnectedCount())
	})
	return r, nil
}

// Get returns the connector for toolID.
func (r *Registry) Get(toolID string) (domain.Connector, error) {
	e, err := r.entry(toolID)
	if err != nil {
		return nil, err
	}
	return e.connector, nil
}

// Tools returns the catalog entries in order.
func (r *Registry) Tools() []domain.Tool {
	out := make([]domain.Tool, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].spec.Tool)
	}
	return out
}

// Volume returns the data-volume tier assigned to toolID.
func (r *Registry) Volume(toolID string) (domain.DataVolume, error) {
	e, err := r.entry(toolID)
	if err != nil {
		return "", err
	}
	return e.volume, nil
}

// ConnectedToolIDs returns the tools currently connected according to the store.
func (r *Registry) ConnectedToolIDs() []string {
	return r.store.ConnectedToolIDs()
}

// Connect performs the handshake for toolID and records the outcome. Connecting an
// already connected tool is a no-op. The tool never stays in connecting: any failure,
// timeout or panic resolves it to error.
func (r *Registry) Connect(ctx context.Context, toolID string) (err error) {
	e, err := r.entry(toolID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := r.store.Connection(toolID)
	if err != nil {
		return err
	}
	if current.Status == domain.StatusConnected {
		return nil
	}

	if err := r.store.BeginConnect(toolID); err != nil {
		return err
	}
	r.logger.Info("connecting tool", telemetry.EventField(telemetry.EventConnectAttempt), telemetry.ToolField(toolID))

	start := time.Now()
	resolved := false
	defer func() {
		if resolved {
			return
		}
		msg := "connect interrupted"
		if rec := recover(); rec != nil {
			msg = fmt.Sprintf("connect panicked: %v", rec)
			err = domain.ConnectionError(toolID, fmt.Errorf("%w: %v", domain.ErrOperationPanicked, rec))
		}
		if markErr := r.store.MarkError(toolID, msg, domain.FailureUnknown); markErr != nil {
			r.logger.Error("failed to resolve interrupted connect", telemetry.ToolField(toolID), zap.Error(markErr))
		}
	}()

	finished, callErr := deadline.Watch(ctx, r.timeout, e.connector.Connect)
	duration := time.Since(start)
	r.metrics.ObserveConnect(toolID, duration, callErr)

	if callErr != nil {
		e.connector.Disconnect()
		go r.disconnectWhenFinished(e, finished)
		connErr := domain.ConnectionError(toolID, callErr)
		kind := domain.ClassifyFailure(callErr)
		resolved = true
		if markErr := r.store.MarkError(toolID, callErr.Error(), kind); markErr != nil {
			return errors.Join(connErr, markErr)
		}
		telemetry.LoggerFor(ctx, r.logger).Warn("connect failed",
			telemetry.EventField(telemetry.EventConnectFailure),
			telemetry.ToolField(toolID),
			telemetry.DurationField(duration),
			telemetry.FailureKindField(string(kind)),
			zap.Error(callErr),
		)
		return connErr
	}

	lastSync := time.Now()
	if status := e.connector.ConnectionStatus(); status.LastSync != nil {
		lastSync = *status.LastSync
	}
	resolved = true
	if err := r.store.MarkConnected(toolID, lastSync); err != nil {
		return err
	}
	r.logger.Info("tool connected",
		telemetry.EventField(telemetry.EventConnectSuccess),
		telemetry.ToolField(toolID),
		telemetry.DurationField(duration),
	)
	return nil
}

// disconnectWhenFinished tears down a connector whose failed Connect is still
// running past its deadline, unless the tool has connected again since.
func (r *Registry) disconnectWhenFinished(e *entry, finished <-chan struct{}) {
	<-finished
	e.mu.Lock()
	defer e.mu.Unlock()
	current, err := r.store.Connection(e.spec.ID)
	if err != nil || current.Status == domain.StatusConnected {
		return
	}
	e.connector.Disconnect()
}

// Disconnect tears down toolID. It always succeeds for catalog tools.
func (r *Registry) Disconnect(_ context.Context, toolID string) error {
	e, err := r.entry(toolID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.connector.Disconnect()
	if err := r.store.MarkDisconnected(toolID); err != nil {
		return err
	}
	r.metrics.ObserveDisconnect(toolID)
	r.logger.Info("tool disconnected", telemetry.EventField(telemetry.EventDisconnect), telemetry.ToolField(toolID))
	return nil
}

// MarkUnhealthy moves a connected tool to error after repeated probe failures.
// Tools that are no longer connected are left alone.
func (r *Registry) MarkUnhealthy(toolID, reason string, kind domain.FailureKind) error {
	e, err := r.entry(toolID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := r.store.Connection(toolID)
	if err != nil {
		return err
	}
	if current.Status != domain.StatusConnected {
		return nil
	}
	e.connector.Disconnect()
	return r.store.MarkError(toolID, reason, kind)
}

// Sync refreshes toolID without reconnecting.
func (r *Registry) Sync(ctx context.Context, toolID string) error {
	e, err := r.entry(toolID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := r.store.Connection(toolID)
	if err != nil {
		return err
	}
	if current.Status != domain.StatusConnected {
		return domain.NotConnectedError("sync", toolID)
	}

	start := time.Now()
	callErr := deadline.Run(ctx, r.timeout, e.connector.Sync)
	duration := time.Since(start)
	r.metrics.ObserveSync(toolID, duration, callErr)
	if callErr != nil {
		telemetry.LoggerFor(ctx, r.logger).Warn("sync failed",
			telemetry.EventField(telemetry.EventSyncFailure),
			telemetry.ToolField(toolID),
			telemetry.DurationField(duration),
			zap.Error(callErr),
		)
		return domain.Wrap(domain.CodeUnavailable, "sync", callErr)
	}

	lastSync := time.Now()
	if status := e.connector.ConnectionStatus(); status.LastSync != nil {
		lastSync = *status.LastSync
	}
	if err := r.store.RecordSync(toolID, lastSync); err != nil {
		return err
	}
	r.logger.Debug("tool synced", telemetry.EventField(telemetry.EventSyncSuccess), telemetry.ToolField(toolID), telemetry.DurationField(duration))
	return nil
}

func (r *Registry) entry(toolID string) (*entry, error) {
	e, ok := r.entries[toolID]
	if !ok {
		return nil, domain.UnknownToolError(toolID)
	}
	return e, nil
}
