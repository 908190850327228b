package connector

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"omnisearch/internal/domain"
)

// Options configures a connector built by the factory.
type Options struct {
	Spec        domain.ToolSpec
	Volume      domain.DataVolume
	Failures    domain.FailureModel
	Credentials domain.CredentialProvider
	// Now overrides the clock; used by tests.
	Now func() time.Time
}

// Simulated is an in-memory connector with sampled latency and injected failures.
type Simulated struct {
	tool     domain.Tool
	kind     Kind
	latency  domain.LatencyRange
	failures domain.FailureModel
	now      func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	mu        sync.RWMutex
	connected bool
	lastSync  *time.Time
	data      []domain.SearchResult
}

// NewSimulated builds a simulated connector producing records of the given kind.
func NewSimulated(kind Kind, opts Options) *Simulated {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	failures := opts.Failures
	if failures == nil {
		failures = NeverFail{}
	}
	volume := opts.Volume
	if volume == "" {
		volume = opts.Spec.Volume
	}
	seed := seedFor(opts.Spec.ID)

	return &Simulated{
		tool:     opts.Spec.Tool,
		kind:     kind,
		latency:  opts.Spec.Latency,
		failures: failures,
		now:      now,
		rng:      rand.New(rand.NewPCG(seed, uint64(now().UnixNano()))),
		data:     generateDataset(opts.Spec.ID, kind, volume, now()),
	}
}

func (s *Simulated) Tool() domain.Tool { return s.tool }

// Kind reports the record shape this connector yields.
func (s *Simulated) Kind() Kind { return s.kind }

func (s *Simulated) Connect(ctx context.Context) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	if err := s.failures.Fail(domain.OpConnect); err != nil {
		s.mu.Lock()
		s.connected = false
		s.lastSync = nil
		s.mu.Unlock()
		return fmt.Errorf("%s handshake: %w: %w", s.tool.ID, domain.ErrConnectionFailed, err)
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	// A caller that gave up must not find the connector connected later.
	if err := ctx.Err(); err != nil {
		return err
	}
	s.connected = true
	s.lastSync = &now
	return nil
}

func (s *Simulated) Disconnect() {
	s.mu.Lock()
	s.connected = false
	s.lastSync = nil
	s.mu.Unlock()
}

func (s *Simulated) Search(ctx context.Context, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	if !s.isConnected() {
		return nil, domain.NotConnectedError("search", s.tool.ID)
	}
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if err := s.failures.Fail(domain.OpSearch); err != nil {
		return nil, fmt.Errorf("%s search: %w", s.tool.ID, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return nil, domain.NotConnectedError("search", s.tool.ID)
	}
	return applyFilters(s.data, opts), nil
}

func (s *Simulated) Sync(ctx context.Context) error {
	if !s.isConnected() {
		return domain.NotConnectedError("sync", s.tool.ID)
	}
	if err := s.wait(ctx); err != nil {
		return err
	}
	if err := s.failures.Fail(domain.OpSync); err != nil {
		return fmt.Errorf("%s sync: %w", s.tool.ID, err)
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return domain.NotConnectedError("sync", s.tool.ID)
	}
	s.lastSync = &now
	return nil
}

func (s *Simulated) ConnectionStatus() domain.ConnectorStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := domain.ConnectorStatus{IsConnected: s.connected}
	if s.lastSync != nil {
		v := *s.lastSync
		status.LastSync = &v
	}
	return status
}

func (s *Simulated) isConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// wait blocks for a latency sampled from the configured range or until ctx ends.
func (s *Simulated) wait(ctx context.Context) error {
	delay := s.sampleLatency()
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Simulated) sampleLatency() time.Duration {
	lo := s.latency.MinLatency()
	hi := s.latency.MaxLatency()
	if hi <= lo {
		return lo
	}
	s.rngMu.Lock()
	jitter := time.Duration(s.rng.Int64N(int64(hi - lo + 1)))
	s.rngMu.Unlock()
	return lo + jitter
}

var _ domain.Connector = (*Simulated)(nil)
