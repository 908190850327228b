package reconnect

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"omnisearch/internal/domain"
	"omnisearch/internal/infra/state"
)

type fakeRegistry struct {
	store *state.Store

	mu        sync.Mutex
	failures  int
	failWith  error
	calls     int
	unhealthy []string
}

func (f *fakeRegistry) Connect(_ context.Context, toolID string) error {
	f.mu.Lock()
	f.calls++
	fail := f.failures != 0
	if f.failures > 0 {
		f.failures--
	}
	failWith := f.failWith
	f.mu.Unlock()

	if err := f.store.BeginConnect(toolID); err != nil {
		return err
	}
	if fail {
		_ = f.store.MarkError(toolID, failWith.Error(), domain.ClassifyFailure(failWith))
		return failWith
	}
	return f.store.MarkConnected(toolID, time.Now())
}

func (f *fakeRegistry) MarkUnhealthy(toolID, reason string, kind domain.FailureKind) error {
	f.mu.Lock()
	f.unhealthy = append(f.unhealthy, toolID)
	f.mu.Unlock()

	conn, err := f.store.Connection(toolID)
	if err != nil || conn.Status != domain.StatusConnected {
		return err
	}
	return f.store.MarkError(toolID, reason, kind)
}

func (f *fakeRegistry) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newHarness(t *testing.T, failures int, failWith error, opts Options) (*fakeRegistry, *state.Store, *Policy) {
	t.Helper()
	store, err := state.NewStore([]string{"slack", "jira"}, state.Options{})
	require.NoError(t, err)
	reg := &fakeRegistry{store: store, failures: failures, failWith: failWith}
	policy := New(reg, store, opts)
	policy.Start(context.Background())
	t.Cleanup(policy.Stop)
	return reg, store, policy
}

func fastOptions() Options {
	return Options{
		BaseDelay:              5 * time.Millisecond,
		MaxDelay:               20 * time.Millisecond,
		MaxRetries:             5,
		HealthFailureThreshold: 3,
	}
}

func status(t *testing.T, store *state.Store, id string) domain.ConnectionStatus {
	t.Helper()
	conn, err := store.Connection(id)
	require.NoError(t, err)
	return conn.Status
}

func TestPolicy_RetriesUntilConnected(t *testing.T) {
	reg, store, policy := newHarness(t, 3, domain.ErrTransient, fastOptions())

	require.Error(t, reg.Connect(context.Background(), "slack"))

	require.Eventually(t, func() bool {
		return status(t, store, "slack") == domain.StatusConnected
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, 4, reg.Calls())
	require.Eventually(t, func() bool { return !policy.Pending("slack") }, time.Second, 5*time.Millisecond)
	require.Zero(t, policy.Attempts("slack"))
}

func TestPolicy_GivesUpAfterMaxRetries(t *testing.T) {
	opts := fastOptions()
	opts.MaxRetries = 2
	reg, store, policy := newHarness(t, -1, domain.ErrTransient, opts)

	require.Error(t, reg.Connect(context.Background(), "slack"))

	require.Eventually(t, func() bool {
		return reg.Calls() == 3 && !policy.Pending("slack")
	}, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 3, reg.Calls())
	require.Equal(t, domain.StatusError, status(t, store, "slack"))
}

func TestPolicy_SkipsNonRetryableFailures(t *testing.T) {
	reg, store, policy := newHarness(t, -1, domain.ErrAuthExpired, fastOptions())

	require.Error(t, reg.Connect(context.Background(), "slack"))
	time.Sleep(50 * time.Millisecond)

	require.Equal(t, 1, reg.Calls())
	require.False(t, policy.Pending("slack"))
	conn, err := store.Connection("slack")
	require.NoError(t, err)
	require.Equal(t, domain.FailureAuthExpired, conn.FailureKind)
}

func TestPolicy_DisconnectCancelsPendingRetry(t *testing.T) {
	opts := fastOptions()
	opts.BaseDelay = time.Hour
	opts.MaxDelay = time.Hour
	reg, store, policy := newHarness(t, -1, domain.ErrTransient, opts)

	require.Error(t, reg.Connect(context.Background(), "slack"))
	require.True(t, policy.Pending("slack"))

	require.NoError(t, store.MarkDisconnected("slack"))
	require.False(t, policy.Pending("slack"))
	require.Zero(t, policy.Attempts("slack"))
}

func TestPolicy_StopCancelsTimers(t *testing.T) {
	opts := fastOptions()
	opts.BaseDelay = time.Hour
	opts.MaxDelay = time.Hour
	reg, _, policy := newHarness(t, -1, domain.ErrTransient, opts)

	require.Error(t, reg.Connect(context.Background(), "slack"))
	require.True(t, policy.Pending("slack"))

	done := make(chan struct{})
	go func() {
		policy.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	require.Equal(t, 1, reg.Calls())
	policy.Stop()
}

func TestPolicy_HealthThresholdMarksUnhealthyThenReconnects(t *testing.T) {
	reg, store, _ := newHarness(t, 0, nil, fastOptions())
	require.NoError(t, reg.Connect(context.Background(), "jira"))

	below := domain.HealthStatus{ToolID: "jira", State: domain.HealthError, FailureKind: domain.FailureTransient, ConsecutiveFailures: 2}
	require.NoError(t, store.UpdateHealth(below))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, domain.StatusConnected, status(t, store, "jira"))

	at := below
	at.ConsecutiveFailures = 3
	require.NoError(t, store.UpdateHealth(at))

	require.Eventually(t, func() bool {
		reg.mu.Lock()
		defer reg.mu.Unlock()
		return len(reg.unhealthy) == 1
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return reg.Calls() == 2 && status(t, store, "jira") == domain.StatusConnected
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPolicy_MisconfiguredHealthIsIgnored(t *testing.T) {
	reg, store, _ := newHarness(t, 0, nil, fastOptions())
	require.NoError(t, reg.Connect(context.Background(), "jira"))

	require.NoError(t, store.UpdateHealth(domain.HealthStatus{
		ToolID:              "jira",
		State:               domain.HealthError,
		FailureKind:         domain.FailureMisconfigured,
		ConsecutiveFailures: 10,
	}))
	time.Sleep(20 * time.Millisecond)

	reg.mu.Lock()
	defer reg.mu.Unlock()
	require.Empty(t, reg.unhealthy)
}

func TestBackoffDelay(t *testing.T) {
	b := newBackoff(time.Second, 10*time.Second)
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{30, 10 * time.Second},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, b.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}
