package connector

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omnisearch/internal/domain"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestConnector(t *testing.T, id string, kind Kind, failures domain.FailureModel) *Simulated {
	t.Helper()
	return NewSimulated(kind, Options{
		Spec: domain.ToolSpec{
			Tool:   domain.Tool{ID: id, Name: id, Simulated: true},
			Volume: domain.VolumeMedium,
		},
		Failures: failures,
		Now:      func() time.Time { return fixedNow },
	})
}

func TestSimulated_ConnectSuccess(t *testing.T) {
	conn := newTestConnector(t, "alpha", KindDocument, nil)

	require.False(t, conn.ConnectionStatus().IsConnected)
	require.NoError(t, conn.Connect(context.Background()))

	status := conn.ConnectionStatus()
	require.True(t, status.IsConnected)
	require.NotNil(t, status.LastSync)
	require.Equal(t, fixedNow, *status.LastSync)
}

func TestSimulated_ConnectFailure(t *testing.T) {
	conn := newTestConnector(t, "alpha", KindDocument, NewRandomFailure(1, 1))

	err := conn.Connect(context.Background())
	require.ErrorIs(t, err, domain.ErrConnectionFailed)

	status := conn.ConnectionStatus()
	require.False(t, status.IsConnected)
	require.Nil(t, status.LastSync)
}

func TestSimulated_ConnectHonoursContext(t *testing.T) {
	conn := NewSimulated(KindMessage, Options{
		Spec: domain.ToolSpec{
			Tool:    domain.Tool{ID: "slow", Simulated: true},
			Latency: domain.LatencyRange{MinMs: 5000, MaxMs: 5000},
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := conn.Connect(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)
	require.False(t, conn.ConnectionStatus().IsConnected)
}

func TestSimulated_ConnectCanceledAfterLatencyStaysDisconnected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn := newTestConnector(t, "alpha", KindDocument, FailureFunc(func(domain.Operation) error {
		cancel()
		return nil
	}))

	err := conn.Connect(ctx)
	require.ErrorIs(t, err, context.Canceled)
	status := conn.ConnectionStatus()
	require.False(t, status.IsConnected)
	require.Nil(t, status.LastSync)
}

func TestSimulated_DisconnectIsIdempotent(t *testing.T) {
	conn := newTestConnector(t, "alpha", KindDocument, nil)

	conn.Disconnect()
	conn.Disconnect()
	require.False(t, conn.ConnectionStatus().IsConnected)

	require.NoError(t, conn.Connect(context.Background()))
	conn.Disconnect()
	status := conn.ConnectionStatus()
	require.False(t, status.IsConnected)
	require.Nil(t, status.LastSync)
}

func TestSimulated_SearchRequiresConnection(t *testing.T) {
	conn := newTestConnector(t, "alpha", KindDocument, nil)

	_, err := conn.Search(context.Background(), domain.SearchOptions{})
	require.ErrorIs(t, err, domain.ErrNotConnected)

	err = conn.Sync(context.Background())
	require.ErrorIs(t, err, domain.ErrNotConnected)
}

func TestSimulated_SearchQueryMatchesTitleOrBody(t *testing.T) {
	for _, kind := range []Kind{KindMessage, KindIssue, KindPullRequest, KindEmail, KindEvent, KindDocument} {
		t.Run(string(kind), func(t *testing.T) {
			conn := newTestConnector(t, "tool-"+string(kind), kind, nil)
			require.NoError(t, conn.Connect(context.Background()))

			results, err := conn.Search(context.Background(), domain.SearchOptions{Query: "  BUDGET "})
			require.NoError(t, err)
			require.NotEmpty(t, results)
			for _, r := range results {
				text := strings.ToLower(r.Title + " " + r.Body)
				assert.Contains(t, text, "budget")
				assert.Equal(t, string(kind), r.ContentType)
				assert.Equal(t, "tool-"+string(kind), r.ToolID)
			}
		})
	}
}

func TestSimulated_SearchFiltersCombine(t *testing.T) {
	conn := newTestConnector(t, "jira", KindIssue, nil)
	require.NoError(t, conn.Connect(context.Background()))
	ctx := context.Background()

	all, err := conn.Search(ctx, domain.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, all, domain.VolumeMedium.ItemCount())

	none, err := conn.Search(ctx, domain.SearchOptions{ContentTypes: []string{"email"}})
	require.NoError(t, err)
	require.Empty(t, none)

	window := &domain.DateRange{Start: fixedNow.Add(-48 * time.Hour), End: fixedNow}
	recent, err := conn.Search(ctx, domain.SearchOptions{DateRange: window})
	require.NoError(t, err)
	require.NotEmpty(t, recent)
	require.Less(t, len(recent), len(all))
	for _, r := range recent {
		require.True(t, window.Contains(r.Timestamp))
	}

	limited, err := conn.Search(ctx, domain.SearchOptions{ContentTypes: []string{"ISSUE"}, MaxResults: 3})
	require.NoError(t, err)
	require.Len(t, limited, 3)
	require.GreaterOrEqual(t, limited[0].RelevanceScore, limited[1].RelevanceScore)
	require.GreaterOrEqual(t, limited[1].RelevanceScore, limited[2].RelevanceScore)
}

func TestSimulated_SearchReturnsCopies(t *testing.T) {
	conn := newTestConnector(t, "slack", KindMessage, nil)
	require.NoError(t, conn.Connect(context.Background()))

	first, err := conn.Search(context.Background(), domain.SearchOptions{MaxResults: 1})
	require.NoError(t, err)
	first[0].Metadata["channel"] = "mutated"

	second, err := conn.Search(context.Background(), domain.SearchOptions{MaxResults: 1})
	require.NoError(t, err)
	require.NotEqual(t, "mutated", second[0].Metadata["channel"])
}

func TestSimulated_SearchCopiesNestedMetadata(t *testing.T) {
	conn := newTestConnector(t, "gmail", KindEmail, nil)
	require.NoError(t, conn.Connect(context.Background()))

	first, err := conn.Search(context.Background(), domain.SearchOptions{MaxResults: 1})
	require.NoError(t, err)
	labels, ok := first[0].Metadata["labels"].([]string)
	require.True(t, ok)
	require.Equal(t, "inbox", labels[0])
	labels[0] = "mutated"

	second, err := conn.Search(context.Background(), domain.SearchOptions{MaxResults: 1})
	require.NoError(t, err)
	require.Equal(t, first[0].ID, second[0].ID)
	require.Equal(t, "inbox", second[0].Metadata["labels"].([]string)[0])
}

func TestSimulated_DatasetIsDeterministic(t *testing.T) {
	a := generateDataset("github", KindPullRequest, domain.VolumeSmall, fixedNow)
	b := generateDataset("github", KindPullRequest, domain.VolumeSmall, fixedNow)
	require.Equal(t, a, b)

	other := generateDataset("gitlab", KindPullRequest, domain.VolumeSmall, fixedNow)
	require.NotEqual(t, a[0].ID, other[0].ID)
}

func TestSimulated_SyncUpdatesLastSync(t *testing.T) {
	current := fixedNow
	conn := NewSimulated(KindEvent, Options{
		Spec: domain.ToolSpec{Tool: domain.Tool{ID: "calendar", Simulated: true}},
		Now:  func() time.Time { return current },
	})
	require.NoError(t, conn.Connect(context.Background()))

	current = fixedNow.Add(time.Minute)
	require.NoError(t, conn.Sync(context.Background()))
	require.Equal(t, current, *conn.ConnectionStatus().LastSync)
}

func TestSimulated_SearchFailureModel(t *testing.T) {
	boom := errors.New("upstream 503")
	conn := newTestConnector(t, "drive", KindDocument, FailWith{Err: boom, Ops: []domain.Operation{domain.OpSearch}})
	require.NoError(t, conn.Connect(context.Background()))

	_, err := conn.Search(context.Background(), domain.SearchOptions{})
	require.ErrorIs(t, err, boom)
}
