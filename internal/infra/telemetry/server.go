package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"omnisearch/internal/domain"
)

// StatsSource reports aggregate connection health for /healthz.
type StatsSource interface {
	Stats() domain.ConnectionStats
}

type HTTPServerOptions struct {
	Addr          string
	EnableMetrics bool
	EnableHealthz bool
	Stats         StatsSource
	Registry      prometheus.Gatherer
}

// HealthzReport is the /healthz body.
type HealthzReport struct {
	Status         string `json:"status"`
	TotalTools     int    `json:"totalTools"`
	ConnectedTools int    `json:"connectedTools"`
	UnhealthyTools int    `json:"unhealthyTools"`
}

// NewObservabilityHandler builds the /metrics and /healthz mux.
func NewObservabilityHandler(opts HTTPServerOptions) http.Handler {
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	if opts.EnableMetrics {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	if opts.EnableHealthz {
		mux.Handle("/healthz", healthHandler(opts.Stats))
	}
	return mux
}

// StartHTTPServer serves the observability endpoints until ctx ends.
func StartHTTPServer(ctx context.Context, opts HTTPServerOptions, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !opts.EnableMetrics && !opts.EnableHealthz {
		return nil
	}

	addr := opts.Addr
	if addr == "" {
		addr = domain.DefaultObservabilityListenAddress
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           NewObservabilityHandler(opts),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("observability server listening",
			zap.String("addr", server.Addr),
			zap.Bool("metrics", opts.EnableMetrics),
			zap.Bool("healthz", opts.EnableHealthz),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("observability server failed to start: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("observability server shutdown error", zap.Error(err))
			return err
		}
		logger.Info("observability server stopped")
		return nil
	}
}

// HealthzFromStats is ok unless every connected tool failed its last probe.
func HealthzFromStats(stats domain.ConnectionStats) HealthzReport {
	report := HealthzReport{
		Status:         "ok",
		TotalTools:     stats.TotalTools,
		ConnectedTools: stats.ConnectedTools,
		UnhealthyTools: stats.UnhealthyTools,
	}
	if stats.ConnectedTools > 0 && stats.UnhealthyTools >= stats.ConnectedTools {
		report.Status = "degraded"
	}
	return report
}

func healthHandler(source StatsSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := HealthzReport{Status: "ok"}
		if source != nil {
			report = HealthzFromStats(source.Stats())
		}

		status := http.StatusOK
		if report.Status != "ok" {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(report)
	})
}
