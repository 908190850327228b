package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"omnisearch/internal/domain"
)

const testCatalog = `
tools:
  - id: alpha
    category: docs
    latency: {minMs: 1, maxMs: 2}
  - id: slack
    category: communication
    latency: {minMs: 1, maxMs: 2}
reconnect:
  enabled: false
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "omnisearch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimSpace(content)), 0o600))
	return path
}

func TestNewLogging(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LoggingConfig
		wantErr string
	}{
		{name: "defaults", cfg: LoggingConfig{}},
		{name: "console debug", cfg: LoggingConfig{Level: "debug", Format: "console"}},
		{name: "bad level", cfg: LoggingConfig{Level: "loud"}, wantErr: "invalid log level"},
		{name: "bad format", cfg: LoggingConfig{Format: "xml"}, wantErr: "invalid log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logging, err := NewLogging(tt.cfg)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logging.Logger)
			require.NotNil(t, logging.Broadcaster)
		})
	}
}

func TestNewLogging_TeesIntoBroadcaster(t *testing.T) {
	logging, err := NewLogging(LoggingConfig{Logger: zap.NewNop(), Level: "info"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	entries := logging.Broadcaster.Subscribe(ctx)

	logging.Logger.Named("engine").Info("engine started")
	select {
	case entry := <-entries:
		require.Equal(t, "engine", entry.Logger)
		require.Equal(t, "engine started", entry.Message)
	case <-time.After(time.Second):
		t.Fatal("log entry not broadcast")
	}
}

func TestResolveObservability(t *testing.T) {
	base := domain.ObservabilityConfig{ListenAddress: "127.0.0.1:9000", Metrics: true, Healthz: true}

	require.Equal(t, base, resolveObservability(base, nil))

	t.Setenv(envMetricsEnabled, "false")
	got := resolveObservability(base, nil)
	require.False(t, got.Metrics)
	require.True(t, got.Healthz)

	enabled, disabled := true, false
	got = resolveObservability(base, &ObservabilityOptions{MetricsEnabled: &enabled, HealthzEnabled: &disabled})
	require.True(t, got.Metrics)
	require.False(t, got.Healthz)
	require.Equal(t, base.ListenAddress, got.ListenAddress)
}

func TestResolveAPIAddress(t *testing.T) {
	cfg := domain.APIConfig{ListenAddress: "127.0.0.1:7000"}
	require.Equal(t, "127.0.0.1:7000", resolveAPIAddress(cfg, ""))
	require.Equal(t, domain.DefaultAPIListenAddress, resolveAPIAddress(domain.APIConfig{}, ""))

	t.Setenv(envAPIAddress, "0.0.0.0:9999")
	require.Equal(t, "0.0.0.0:9999", resolveAPIAddress(cfg, ""))
	require.Equal(t, ":8081", resolveAPIAddress(cfg, ":8081"))
}

func TestApp_ValidateConfig(t *testing.T) {
	application := New(Logging{Logger: zap.NewNop()})

	require.NoError(t, application.ValidateConfig(context.Background(), ValidateConfig{ConfigPath: writeConfig(t, testCatalog)}))

	err := application.ValidateConfig(context.Background(), ValidateConfig{ConfigPath: writeConfig(t, `
tools:
  - id: alpha
    failureRate: 2
`)})
	require.Error(t, err)
}

func TestApp_SearchJSON(t *testing.T) {
	application := New(Logging{Logger: zap.NewNop()})
	var out bytes.Buffer

	resp, err := application.Search(context.Background(), SearchConfig{
		ConfigPath: writeConfig(t, testCatalog),
		Query:      "roadmap",
		MaxResults: 5,
		Tools:      []string{"alpha"},
		JSON:       true,
		Out:        &out,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"alpha"}, resp.Queried)
	require.LessOrEqual(t, len(resp.Results), 5)

	var decoded domain.SearchResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Equal(t, resp.SearchID, decoded.SearchID)
	require.Len(t, decoded.Results, len(resp.Results))
}

func TestPrintSearchResponse(t *testing.T) {
	resp := domain.SearchResponse{
		SearchID: "search-1",
		Queried:  []string{"slack", "jira"},
		Results: []domain.SearchResult{{
			ID:             "slack-1",
			Title:          "Q3 budget review thread",
			ToolID:         "slack",
			ContentType:    "message",
			Timestamp:      time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
			RelevanceScore: 0.87,
		}},
		Failures: []domain.SearchFailure{{ToolID: "jira", Error: "deadline exceeded"}},
		Dropped:  2,
	}

	var out bytes.Buffer
	require.NoError(t, printSearchResponse(&out, resp))
	text := out.String()
	assert.Contains(t, text, "search search-1: 1 results from 2 tools")
	assert.Contains(t, text, "Q3 budget review thread")
	assert.Contains(t, text, "0.87")
	assert.Contains(t, text, "2026-03-04")
	assert.Contains(t, text, "jira: deadline exceeded")
	assert.Contains(t, text, "2 duplicate results dropped")
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", truncate("  short ", 10))
	require.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
