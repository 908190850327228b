package connector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"omnisearch/internal/domain"
)

type staticCredentials struct {
	signedIn bool
	token    string
}

func (s staticCredentials) IsSignedIn(context.Context) bool { return s.signedIn }

func (s staticCredentials) Credentials(context.Context) (string, bool) {
	return s.token, s.token != ""
}

func TestFactory_KnownAndFallbackKinds(t *testing.T) {
	f := NewFactory()

	tests := []struct {
		id   string
		want Kind
	}{
		{id: "slack", want: KindMessage},
		{id: "jira", want: KindIssue},
		{id: "github", want: KindPullRequest},
		{id: "gmail", want: KindEmail},
		{id: "calendar", want: KindEvent},
		{id: "alpha", want: KindDocument},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			conn := f.Build(Options{Spec: domain.ToolSpec{Tool: domain.Tool{ID: tt.id, Simulated: true}}})
			sim, ok := conn.(*Simulated)
			require.True(t, ok)
			require.Equal(t, tt.want, sim.Kind())
			require.Equal(t, tt.id, sim.Tool().ID)
		})
	}
	require.True(t, f.Registered("slack"))
	require.False(t, f.Registered("alpha"))
}

func TestFactory_RegisterOverrides(t *testing.T) {
	f := NewFactory()
	f.Register("alpha", Of(KindEmail))

	conn := f.Build(Options{Spec: domain.ToolSpec{Tool: domain.Tool{ID: "alpha", Simulated: true}}})
	require.Equal(t, KindEmail, conn.(*Simulated).Kind())
}

func TestFactory_RealToolRequiresCredentials(t *testing.T) {
	f := NewFactory()
	spec := domain.ToolSpec{Tool: domain.Tool{ID: "gmail", Simulated: false}}

	conn := f.Build(Options{Spec: spec, Credentials: staticCredentials{}})
	err := conn.Connect(context.Background())
	require.ErrorIs(t, err, domain.ErrAuthExpired)
	require.False(t, conn.ConnectionStatus().IsConnected)

	conn = f.Build(Options{Spec: spec, Credentials: staticCredentials{signedIn: true, token: "tok"}})
	require.NoError(t, conn.Connect(context.Background()))
	results, err := conn.Search(context.Background(), domain.SearchOptions{Query: "budget"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
}

func TestEnvCredentials(t *testing.T) {
	t.Setenv("OMNISEARCH_TEST_TOKEN", "secret")

	creds := EnvCredentials{Var: "OMNISEARCH_TEST_TOKEN"}
	require.True(t, creds.IsSignedIn(context.Background()))
	token, ok := creds.Credentials(context.Background())
	require.True(t, ok)
	require.Equal(t, "secret", token)

	require.False(t, EnvCredentials{Var: "OMNISEARCH_TEST_MISSING"}.IsSignedIn(context.Background()))
	require.False(t, EnvCredentials{}.IsSignedIn(context.Background()))
}

func TestEnvCredentials_Expiry(t *testing.T) {
	t.Setenv("OMNISEARCH_TEST_TOKEN", "secret")
	creds := EnvCredentials{Var: "OMNISEARCH_TEST_TOKEN"}

	t.Setenv("OMNISEARCH_TEST_TOKEN"+ExpirySuffix, time.Now().Add(time.Hour).Format(time.RFC3339))
	require.True(t, creds.IsSignedIn(context.Background()))

	t.Setenv("OMNISEARCH_TEST_TOKEN"+ExpirySuffix, time.Now().Add(-time.Hour).Format(time.RFC3339))
	require.False(t, creds.IsSignedIn(context.Background()))

	t.Setenv("OMNISEARCH_TEST_TOKEN"+ExpirySuffix, "tomorrow")
	_, err := creds.Token()
	require.Error(t, err)
	require.False(t, creds.IsSignedIn(context.Background()))
}

func TestTokenSourceCredentials(t *testing.T) {
	require.False(t, TokenSourceCredentials{}.IsSignedIn(context.Background()))

	creds := TokenSourceCredentials{Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"})}
	token, ok := creds.Credentials(context.Background())
	require.True(t, ok)
	require.Equal(t, "tok", token)
}

func TestRandomFailure_Bounds(t *testing.T) {
	never := NewRandomFailure(0, 7)
	always := NewRandomFailure(1, 7)
	for i := 0; i < 50; i++ {
		require.NoError(t, never.Fail(domain.OpConnect))
		require.ErrorIs(t, always.Fail(domain.OpConnect), domain.ErrTransient)
		require.NoError(t, always.Fail(domain.OpSearch))
	}

	searchOnly := NewRandomFailure(1, 7, domain.OpSearch)
	require.NoError(t, searchOnly.Fail(domain.OpConnect))
	require.Error(t, searchOnly.Fail(domain.OpSearch))
}
