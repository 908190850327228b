package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"omnisearch/internal/domain"
)

// SearchProbe checks a connector with a single-result search.
type SearchProbe struct {
	Timeout time.Duration
}

func (p *SearchProbe) Probe(ctx context.Context, conn domain.Connector) error {
	if conn == nil {
		return errors.New("connector is nil")
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := conn.Search(probeCtx, domain.SearchOptions{MaxResults: 1}); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", domain.ErrProbeTimeout, err)
		}
		return fmt.Errorf("%w: %w", domain.ErrProbeFailure, err)
	}
	return nil
}

// StatusProbe only reads the connector's self-reported status.
type StatusProbe struct{}

func (StatusProbe) Probe(_ context.Context, conn domain.Connector) error {
	if conn == nil {
		return errors.New("connector is nil")
	}
	if !conn.ConnectionStatus().IsConnected {
		return fmt.Errorf("%w: %w", domain.ErrProbeFailure, domain.ErrNotConnected)
	}
	return nil
}

var (
	_ domain.HealthProbe = (*SearchProbe)(nil)
	_ domain.HealthProbe = StatusProbe{}
)
