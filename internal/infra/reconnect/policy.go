package reconnect

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"omnisearch/internal/domain"
	"omnisearch/internal/infra/state"
	"omnisearch/internal/infra/telemetry"
)

// Registry is the part of the connector registry the policy drives.
type Registry interface {
	Connect(ctx context.Context, toolID string) error
	MarkUnhealthy(toolID, reason string, kind domain.FailureKind) error
}

// Options configures a Policy.
type Options struct {
	BaseDelay              time.Duration
	MaxDelay               time.Duration
	MaxRetries             int
	RatePerSecond          float64
	Burst                  int
	HealthFailureThreshold int
	Metrics                domain.Metrics
	Logger                 *zap.Logger
}

// OptionsFromConfig maps the runtime reconnect section onto Options.
func OptionsFromConfig(cfg domain.ReconnectConfig) Options {
	return Options{
		BaseDelay:              cfg.BaseDelay(),
		MaxDelay:               cfg.MaxDelay(),
		MaxRetries:             cfg.MaxRetries,
		RatePerSecond:          cfg.RatePerSecond,
		Burst:                  cfg.Burst,
		HealthFailureThreshold: cfg.HealthFailureThreshold,
	}
}

// Policy retries failed connections with exponential backoff and turns
// repeated probe failures into connection errors. Retries always run on
// their own goroutine, never inside a store listener.
type Policy struct {
	registry   Registry
	store      *state.Store
	backoff    backoff
	maxRetries int
	threshold  int
	limiter    *rate.Limiter
	metrics    domain.Metrics
	logger     *zap.Logger

	mu           sync.Mutex
	running      bool
	ctx          context.Context
	cancel       context.CancelFunc
	lastRevision uint64
	attempts     map[string]int
	pending      map[string]*time.Timer
	inflight     map[string]struct{}
	halted       map[string]struct{}
	connListener domain.ListenerID
	hlthListener domain.ListenerID

	wg sync.WaitGroup
}

// New constructs a Policy. It does nothing until Start.
func New(registry Registry, store *state.Store, opts Options) *Policy {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Policy{
		registry:   registry,
		store:      store,
		backoff:    newBackoff(opts.BaseDelay, opts.MaxDelay),
		maxRetries: opts.MaxRetries,
		threshold:  opts.HealthFailureThreshold,
		limiter:    rate.NewLimiter(limit, burst),
		metrics:    metrics,
		logger:     logger.Named("reconnect"),
		attempts:   make(map[string]int),
		pending:    make(map[string]*time.Timer),
		inflight:   make(map[string]struct{}),
		halted:     make(map[string]struct{}),
	}
}

// Start subscribes to connection and health changes. Calling Start twice is a no-op.
func (p *Policy) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	p.connListener = p.store.AddConnectionListener(p.onSnapshot)
	p.hlthListener = p.store.AddHealthListener(p.onHealth)
}

// Stop cancels pending retries and waits for in-flight ones to return.
func (p *Policy) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.store.RemoveConnectionListener(p.connListener)
	p.store.RemoveHealthListener(p.hlthListener)
	p.cancel()
	for id, timer := range p.pending {
		if timer.Stop() {
			p.wg.Done()
		}
		delete(p.pending, id)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// Attempts returns how many retries have been scheduled for toolID since it last connected.
func (p *Policy) Attempts(toolID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts[toolID]
}

// Pending reports whether a retry is scheduled or running for toolID.
func (p *Policy) Pending(toolID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, scheduled := p.pending[toolID]
	_, running := p.inflight[toolID]
	return scheduled || running
}

func (p *Policy) onSnapshot(snapshot domain.ConnectionSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running || snapshot.Revision < p.lastRevision {
		return
	}
	p.lastRevision = snapshot.Revision

	for _, conn := range snapshot.Connections {
		switch conn.Status {
		case domain.StatusConnected, domain.StatusDisconnected:
			p.resetLocked(conn.ToolID)
		case domain.StatusError:
			p.scheduleLocked(conn)
		}
	}
}

func (p *Policy) onHealth(status domain.HealthStatus) {
	if status.State != domain.HealthError || p.threshold <= 0 {
		return
	}
	if status.ConsecutiveFailures < p.threshold || status.FailureKind == domain.FailureMisconfigured {
		return
	}

	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	kind := status.FailureKind
	if kind == domain.FailureNone {
		kind = domain.FailureUnknown
	}
	reason := fmt.Sprintf("health check failed %d times: %s", status.ConsecutiveFailures, status.ErrorMessage)
	go func() {
		defer p.wg.Done()
		if err := p.registry.MarkUnhealthy(status.ToolID, reason, kind); err != nil {
			p.logger.Warn("failed to mark tool unhealthy", telemetry.ToolField(status.ToolID), zap.Error(err))
		}
	}()
}

func (p *Policy) resetLocked(toolID string) {
	if timer, ok := p.pending[toolID]; ok {
		if timer.Stop() {
			p.wg.Done()
		}
		delete(p.pending, toolID)
	}
	delete(p.attempts, toolID)
	delete(p.halted, toolID)
}

func (p *Policy) scheduleLocked(conn domain.Connection) {
	id := conn.ToolID
	if _, ok := p.pending[id]; ok {
		return
	}
	if _, ok := p.inflight[id]; ok {
		return
	}
	if _, ok := p.halted[id]; ok {
		return
	}
	if !conn.FailureKind.Retryable() {
		p.halted[id] = struct{}{}
		p.logger.Info("not retrying connection",
			telemetry.ToolField(id),
			telemetry.FailureKindField(string(conn.FailureKind)),
		)
		return
	}
	attempt := p.attempts[id]
	if attempt >= p.maxRetries {
		p.halted[id] = struct{}{}
		p.logger.Warn("giving up on reconnect",
			telemetry.EventField(telemetry.EventReconnectGiveUp),
			telemetry.ToolField(id),
			telemetry.AttemptField(attempt),
		)
		return
	}

	p.attempts[id] = attempt + 1
	delay := p.backoff.Delay(attempt)
	p.wg.Add(1)
	p.pending[id] = time.AfterFunc(delay, func() {
		defer p.wg.Done()
		p.retry(id, attempt+1)
	})
	p.logger.Info("reconnect scheduled",
		telemetry.EventField(telemetry.EventReconnectSchedule),
		telemetry.ToolField(id),
		telemetry.AttemptField(attempt+1),
		telemetry.DurationField(delay),
	)
}

func (p *Policy) retry(toolID string, attempt int) {
	p.mu.Lock()
	delete(p.pending, toolID)
	if !p.running {
		p.mu.Unlock()
		return
	}
	ctx := p.ctx
	p.inflight[toolID] = struct{}{}
	p.mu.Unlock()

	err := p.attempt(ctx, toolID)
	if err != nil && ctx.Err() == nil {
		p.logger.Warn("reconnect failed",
			telemetry.ToolField(toolID),
			telemetry.AttemptField(attempt),
			zap.Error(err),
		)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, toolID)
	if !p.running || ctx.Err() != nil {
		return
	}
	// Failures observed while in flight were skipped by onSnapshot.
	if conn, err := p.store.Connection(toolID); err == nil && conn.Status == domain.StatusError {
		p.scheduleLocked(conn)
	}
}

func (p *Policy) attempt(ctx context.Context, toolID string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	conn, err := p.store.Connection(toolID)
	if err != nil {
		return err
	}
	if conn.Status != domain.StatusError {
		return nil
	}
	err = p.registry.Connect(ctx, toolID)
	p.metrics.ObserveReconnect(toolID, err)
	return err
}
