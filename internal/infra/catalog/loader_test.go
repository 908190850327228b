package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"omnisearch/internal/domain"
)

func TestLoader_Success(t *testing.T) {
	file := writeTempConfig(t, `
tools:
  - id: slack
    name: Slack
    category: Communication
    volume: large
    failureRate: 0.1
    latency: {minMs: 10, maxMs: 20}
  - id: gmail
    simulated: false
    credentialEnv: GMAIL_TOKEN
search:
  concurrency: 3
	`)

	loader := NewLoader(zap.NewNop())
	catalog, err := loader.Load(context.Background(), file)
	require.NoError(t, err)

	want := []domain.ToolSpec{
		{
			Tool:        domain.Tool{ID: "slack", Name: "Slack", Category: "communication", Simulated: true},
			Volume:      domain.VolumeLarge,
			Latency:     domain.LatencyRange{MinMs: 10, MaxMs: 20},
			FailureRate: 0.1,
		},
		{
			Tool:          domain.Tool{ID: "gmail", Name: "gmail", Category: "general", Simulated: false},
			Latency:       domain.LatencyRange{MinMs: domain.DefaultLatencyMinMs, MaxMs: domain.DefaultLatencyMaxMs},
			CredentialEnv: "GMAIL_TOKEN",
		},
	}
	if diff := cmp.Diff(want, catalog.Tools); diff != "" {
		t.Fatalf("tools mismatch (-want +got):\n%s", diff)
	}

	wantRuntime := domain.DefaultRuntimeConfig()
	wantRuntime.Search.Concurrency = 3
	if diff := cmp.Diff(wantRuntime, catalog.Runtime); diff != "" {
		t.Fatalf("runtime mismatch (-want +got):\n%s", diff)
	}
}

func TestLoader_LatencyBounds(t *testing.T) {
	tests := []struct {
		name    string
		latency string
		want    domain.LatencyRange
	}{
		{name: "unset", latency: "", want: domain.LatencyRange{MinMs: domain.DefaultLatencyMinMs, MaxMs: domain.DefaultLatencyMaxMs}},
		{name: "explicit zero", latency: "latency: {minMs: 0, maxMs: 0}", want: domain.LatencyRange{}},
		{name: "zero min only", latency: "latency: {minMs: 0}", want: domain.LatencyRange{MinMs: 0, MaxMs: domain.DefaultLatencyMaxMs}},
		{name: "min above default max", latency: "latency: {minMs: 2000}", want: domain.LatencyRange{MinMs: 2000, MaxMs: 2000}},
		{name: "max only", latency: "latency: {maxMs: 300}", want: domain.LatencyRange{MinMs: domain.DefaultLatencyMinMs, MaxMs: 300}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := writeTempConfig(t, "tools:\n  - id: alpha\n    "+tt.latency+"\n")

			catalog, err := NewLoader(zap.NewNop()).Load(context.Background(), file)
			require.NoError(t, err)
			require.Len(t, catalog.Tools, 1)
			require.Equal(t, tt.want, catalog.Tools[0].Latency)
		})
	}
}

func TestLoader_EmptyPathUsesDefaults(t *testing.T) {
	loader := NewLoader(nil)
	catalog, err := loader.Load(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, Default(), catalog)
}

func TestLoader_NoToolsUsesBuiltInCatalog(t *testing.T) {
	file := writeTempConfig(t, `
operationTimeoutSeconds: 5
`)

	loader := NewLoader(zap.NewNop())
	catalog, err := loader.Load(context.Background(), file)
	require.NoError(t, err)
	require.Equal(t, DefaultTools(), catalog.Tools)
	require.Equal(t, 5, catalog.Runtime.OperationTimeoutSeconds)
}

func TestLoader_EnvExpansion(t *testing.T) {
	t.Setenv("SLACK_NAME", "Slack \"prod\"")
	t.Setenv("SEARCH_TIMEOUT", "4")
	t.Setenv("DEDUPE", "false")
	file := writeTempConfig(t, `
tools:
  - id: slack
    name: "${SLACK_NAME}"
search:
  timeoutSeconds: ${SEARCH_TIMEOUT}
  dedupe: ${DEDUPE}
`)

	loader := NewLoader(zap.NewNop())
	catalog, err := loader.Load(context.Background(), file)
	require.NoError(t, err)
	require.Equal(t, "Slack \"prod\"", catalog.Tools[0].Name)
	require.Equal(t, 4, catalog.Runtime.Search.TimeoutSeconds)
	require.False(t, catalog.Runtime.Search.Dedupe)
}

func TestLoader_InvalidTools(t *testing.T) {
	file := writeTempConfig(t, `
tools:
  - id: slack
  - id: slack
  - name: nameless
  - id: bad-rate
    failureRate: 1.5
  - id: bad-latency
    latency: {minMs: 500, maxMs: 100}
  - id: bad-volume
    volume: huge
  - id: real
    simulated: false
`)

	loader := NewLoader(zap.NewNop())
	_, err := loader.Load(context.Background(), file)
	require.Error(t, err)
	for _, fragment := range []string{
		`tools[1]: duplicate id "slack"`,
		"tools[2]: id is required",
		"tools[3]: failureRate",
		"tools[4]: latency.maxMs",
		"tools[5]: volume",
		"tools[6]: credentialEnv",
	} {
		require.Contains(t, err.Error(), fragment)
	}
}

func TestLoader_InvalidRuntimeConfig(t *testing.T) {
	file := writeTempConfig(t, `
operationTimeoutSeconds: 0
health:
  intervalSeconds: 0
  probeTimeoutSeconds: -1
  slowThresholdMs: -5
search:
  timeoutSeconds: 0
  concurrency: -1
reconnect:
  baseSeconds: 10
  maxSeconds: 5
  maxRetries: -1
  ratePerSecond: -1
api:
  listenAddress: " "
  requestTimeoutSeconds: 0
`)

	loader := NewLoader(zap.NewNop())
	_, err := loader.Load(context.Background(), file)
	require.Error(t, err)
	for _, key := range []string{
		"operationTimeoutSeconds",
		"health.intervalSeconds",
		"health.probeTimeoutSeconds",
		"health.slowThresholdMs",
		"search.timeoutSeconds",
		"search.concurrency",
		"reconnect.maxSeconds",
		"reconnect.maxRetries",
		"reconnect.ratePerSecond",
		"api.listenAddress",
		"api.requestTimeoutSeconds",
	} {
		require.Contains(t, err.Error(), key)
	}
}

func TestLoader_ContextCanceled(t *testing.T) {
	file := writeTempConfig(t, `
tools:
  - id: ok
`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loader := NewLoader(zap.NewNop())
	_, err := loader.Load(ctx, file)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoader_MissingFile(t *testing.T) {
	loader := NewLoader(zap.NewNop())
	_, err := loader.Load(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "read config")
}

func TestDefaultTools_AreUniqueAndValid(t *testing.T) {
	seen := make(map[string]struct{})
	for i, spec := range DefaultTools() {
		require.Empty(t, validateToolSpec(spec, i))
		_, dup := seen[spec.ID]
		require.False(t, dup, spec.ID)
		seen[spec.ID] = struct{}{}
	}
}

func TestExpandConfigEnv_ReportsMissing(t *testing.T) {
	t.Setenv("PRESENT", "yes")
	_, missing, err := expandConfigEnv([]byte("a: ${PRESENT}\nb: ${ZZ_ABSENT}\nc: ${AA_ABSENT}\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"AA_ABSENT", "ZZ_ABSENT"}, missing)
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "omnisearch.yaml")
	normalized := strings.ReplaceAll(content, "\t", "  ")
	if err := os.WriteFile(path, []byte(normalized), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}
