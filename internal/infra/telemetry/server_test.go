package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"omnisearch/internal/domain"
)

type staticStats domain.ConnectionStats

func (s staticStats) Stats() domain.ConnectionStats { return domain.ConnectionStats(s) }

func TestObservabilityHandler_Metrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(registry)
	metrics.SetConnectedTools(2)

	handler := NewObservabilityHandler(HTTPServerOptions{EnableMetrics: true, Registry: registry})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "omnisearch_connected_tools 2")
}

func TestObservabilityHandler_Healthz(t *testing.T) {
	tests := []struct {
		name   string
		stats  domain.ConnectionStats
		status int
		want   string
	}{
		{"nothing connected", domain.ConnectionStats{TotalTools: 3}, http.StatusOK, "ok"},
		{"some healthy", domain.ConnectionStats{TotalTools: 3, ConnectedTools: 2, UnhealthyTools: 1}, http.StatusOK, "ok"},
		{"all unhealthy", domain.ConnectionStats{TotalTools: 3, ConnectedTools: 2, UnhealthyTools: 2}, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewObservabilityHandler(HTTPServerOptions{EnableHealthz: true, Stats: staticStats(tt.stats)})
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			require.Equal(t, tt.status, rec.Code)
			var report HealthzReport
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
			require.Equal(t, tt.want, report.Status)
			require.Equal(t, tt.stats.ConnectedTools, report.ConnectedTools)
		})
	}
}

func TestObservabilityHandler_DisabledEndpoints(t *testing.T) {
	handler := NewObservabilityHandler(HTTPServerOptions{EnableHealthz: true})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartHTTPServer_DisabledReturnsImmediately(t *testing.T) {
	err := StartHTTPServer(context.Background(), HTTPServerOptions{}, nil)
	require.NoError(t, err)
}

func TestStartHTTPServer_GracefulShutdown(t *testing.T) {
	listener := mustListen(t)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- StartHTTPServer(ctx, HTTPServerOptions{
			Addr:          fmt.Sprintf("127.0.0.1:%d", port),
			EnableMetrics: true,
			EnableHealthz: true,
			Registry:      prometheus.NewRegistry(),
		}, zap.NewNop())
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/healthz", port))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 25*time.Millisecond)

	cancel()

	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop in time")
	}
}

func TestStartHTTPServer_PortInUse(t *testing.T) {
	listener := mustListen(t)
	defer listener.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := StartHTTPServer(ctx, HTTPServerOptions{
		Addr:          listener.Addr().String(),
		EnableMetrics: true,
	}, zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "address already in use")
}

func mustListen(t *testing.T) net.Listener {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skip test due to listen error: %v", err)
	}
	return listener
}
