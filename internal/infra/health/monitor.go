package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"omnisearch/internal/domain"
	"omnisearch/internal/infra/deadline"
	"omnisearch/internal/infra/state"
	"omnisearch/internal/infra/telemetry"
)

// ConnectorSource resolves connectors by tool id.
type ConnectorSource interface {
	Get(toolID string) (domain.Connector, error)
}

// Options configures a Monitor.
type Options struct {
	Probe         domain.HealthProbe
	Interval      time.Duration
	ProbeTimeout  time.Duration
	SlowThreshold time.Duration
	Concurrency   int
	Metrics       domain.Metrics
	Logger        *zap.Logger
	Now           func() time.Time
}

// Monitor periodically probes connected tools and records the outcome as HealthStatus.
// It never changes connection status.
type Monitor struct {
	source  ConnectorSource
	store   *state.Store
	probe   domain.HealthProbe
	metrics domain.Metrics
	logger  *zap.Logger
	now     func() time.Time

	interval      time.Duration
	probeTimeout  time.Duration
	slowThreshold time.Duration
	concurrency   int

	mu     sync.Mutex
	ticker *time.Ticker
	stop   chan struct{}
	done   chan struct{}

	fatalMu     sync.Mutex
	fatalLogged map[string]struct{}
}

// NewMonitor constructs a Monitor.
func NewMonitor(source ConnectorSource, store *state.Store, opts Options) *Monitor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Duration(domain.DefaultHealthIntervalSeconds) * time.Second
	}
	probeTimeout := opts.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = time.Duration(domain.DefaultProbeTimeoutSeconds) * time.Second
	}
	probe := opts.Probe
	if probe == nil {
		probe = &SearchProbe{Timeout: probeTimeout}
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = domain.DefaultHealthConcurrency
	}

	return &Monitor{
		source:        source,
		store:         store,
		probe:         probe,
		metrics:       metrics,
		logger:        logger.Named("health"),
		now:           now,
		interval:      interval,
		probeTimeout:  probeTimeout,
		slowThreshold: opts.SlowThreshold,
		concurrency:   concurrency,
		fatalLogged:   make(map[string]struct{}),
	}
}

// Start runs one immediate check and then one check per interval until Stop or ctx ends.
// Calling Start on a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.ticker != nil {
		m.mu.Unlock()
		return
	}
	m.ticker = time.NewTicker(m.interval)
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	ticker, stop, done := m.ticker, m.stop, m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		m.CheckNow(ctx)
		for {
			select {
			case <-ticker.C:
				m.CheckNow(ctx)
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the tick and waits for an in-flight check to finish. Safe to call repeatedly.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.ticker == nil {
		m.mu.Unlock()
		return
	}
	m.ticker.Stop()
	m.ticker = nil
	close(m.stop)
	done := m.done
	m.mu.Unlock()

	<-done
}

// Running reports whether the periodic tick is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ticker != nil
}

// CheckNow probes every tool connected at call time. Probe failures are recorded,
// never returned.
func (m *Monitor) CheckNow(ctx context.Context) domain.HealthReport {
	started := m.now()
	ids := m.store.ConnectedToolIDs()

	results := make([]*domain.HealthStatus, len(ids))
	var group errgroup.Group
	group.SetLimit(m.concurrency)
	for i, id := range ids {
		group.Go(func() error {
			status, ok := m.checkTool(ctx, id)
			if ok {
				results[i] = &status
			}
			return nil
		})
	}
	_ = group.Wait()

	report := domain.HealthReport{StartedAt: started, Checked: make([]domain.HealthStatus, 0, len(ids))}
	for _, status := range results {
		if status != nil {
			report.Checked = append(report.Checked, *status)
		}
	}
	report.Duration = m.now().Sub(started)
	m.logger.Debug("health cycle complete", zap.Int("checked", len(report.Checked)), telemetry.DurationField(report.Duration))
	return report
}

func (m *Monitor) checkTool(ctx context.Context, toolID string) (domain.HealthStatus, bool) {
	previous, err := m.store.Health(toolID)
	if err != nil {
		m.logFatalOnce(toolID, err)
		return domain.HealthStatus{}, false
	}

	var probeErr error
	start := time.Now()
	conn, err := m.source.Get(toolID)
	if err != nil {
		probeErr = err
	} else {
		probeErr = deadline.Run(ctx, m.probeTimeout, func(ctx context.Context) error {
			return m.probe.Probe(ctx, conn)
		})
		if errors.Is(probeErr, context.DeadlineExceeded) && !errors.Is(probeErr, domain.ErrProbeTimeout) {
			probeErr = fmt.Errorf("%w: %w", domain.ErrProbeTimeout, probeErr)
		}
	}
	elapsed := time.Since(start)
	checkedAt := m.now()

	record, err := m.store.Connection(toolID)
	if err != nil || record.Status != domain.StatusConnected {
		// Disconnected while probing; leave its health record alone.
		return domain.HealthStatus{}, false
	}

	status := domain.HealthStatus{
		ToolID:    toolID,
		LastCheck: &checkedAt,
	}
	if probeErr != nil {
		kind := domain.ClassifyFailure(probeErr)
		status.State = domain.HealthError
		status.ErrorMessage = probeErr.Error()
		status.FailureKind = kind
		status.ConsecutiveFailures = previous.ConsecutiveFailures + 1
		if kind == domain.FailureMisconfigured {
			m.logFatalOnce(toolID, probeErr)
		} else {
			m.logger.Warn("health probe failed",
				telemetry.EventField(telemetry.EventProbeFailure),
				telemetry.ToolField(toolID),
				telemetry.FailureKindField(string(kind)),
				telemetry.DurationField(elapsed),
				zap.Int("consecutiveFailures", status.ConsecutiveFailures),
				zap.Error(probeErr),
			)
		}
	} else {
		responseMs := elapsed.Milliseconds()
		status.State = domain.HealthHealthy
		status.ResponseTimeMs = &responseMs
		if record.LastSync != nil {
			uptime := checkedAt.Sub(*record.LastSync).Milliseconds()
			if uptime < 0 {
				uptime = 0
			}
			status.UptimeMs = &uptime
		}
		if m.slowThreshold > 0 && elapsed > m.slowThreshold {
			status.State = domain.HealthWarning
			m.logger.Info("health probe slow",
				telemetry.EventField(telemetry.EventProbeSlow),
				telemetry.ToolField(toolID),
				telemetry.DurationField(elapsed),
			)
		}
	}

	m.metrics.ObserveProbe(toolID, status.State, elapsed)
	if err := m.store.UpdateHealth(status); err != nil {
		m.logger.Error("failed to record health", telemetry.ToolField(toolID), zap.Error(err))
		return domain.HealthStatus{}, false
	}
	return status, true
}

func (m *Monitor) logFatalOnce(toolID string, err error) {
	m.fatalMu.Lock()
	_, seen := m.fatalLogged[toolID]
	m.fatalLogged[toolID] = struct{}{}
	m.fatalMu.Unlock()
	if seen {
		return
	}
	m.logger.Error("tool misconfigured",
		telemetry.ToolField(toolID),
		telemetry.FailureKindField(string(domain.FailureMisconfigured)),
		zap.Error(err),
	)
}
