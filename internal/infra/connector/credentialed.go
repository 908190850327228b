package connector

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"omnisearch/internal/domain"
)

// Credentialed gates a connector behind an external credential check.
type Credentialed struct {
	domain.Connector
	credentials domain.CredentialProvider
}

// WithCredentials wraps inner so connect, search and sync require a signed-in provider.
func WithCredentials(inner domain.Connector, provider domain.CredentialProvider) *Credentialed {
	return &Credentialed{Connector: inner, credentials: provider}
}

func (c *Credentialed) Connect(ctx context.Context) error {
	if err := c.check(ctx); err != nil {
		c.Connector.Disconnect()
		return err
	}
	return c.Connector.Connect(ctx)
}

func (c *Credentialed) Search(ctx context.Context, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	return c.Connector.Search(ctx, opts)
}

func (c *Credentialed) Sync(ctx context.Context) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	return c.Connector.Sync(ctx)
}

func (c *Credentialed) check(ctx context.Context) error {
	id := c.Connector.Tool().ID
	if c.credentials == nil || !c.credentials.IsSignedIn(ctx) {
		return fmt.Errorf("%s: not signed in: %w", id, domain.ErrAuthExpired)
	}
	if token, ok := c.credentials.Credentials(ctx); !ok || token == "" {
		return fmt.Errorf("%s: no credentials: %w", id, domain.ErrAuthExpired)
	}
	return nil
}

// ExpirySuffix names the optional companion variable holding an RFC 3339 token expiry.
const ExpirySuffix = "_EXPIRY"

// EnvCredentials reads an access token from an environment variable. When
// Var+ExpirySuffix is set the token stops being valid at that instant.
type EnvCredentials struct {
	Var string
}

// Token implements oauth2.TokenSource.
func (e EnvCredentials) Token() (*oauth2.Token, error) {
	if e.Var == "" {
		return nil, fmt.Errorf("no credential variable: %w", domain.ErrAuthExpired)
	}
	value, ok := os.LookupEnv(e.Var)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return nil, fmt.Errorf("%s is not set: %w", e.Var, domain.ErrAuthExpired)
	}
	token := &oauth2.Token{AccessToken: value, TokenType: "Bearer"}
	if raw := strings.TrimSpace(os.Getenv(e.Var + ExpirySuffix)); raw != "" {
		expiry, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("%s%s: %w", e.Var, ExpirySuffix, err)
		}
		token.Expiry = expiry
	}
	return token, nil
}

func (e EnvCredentials) IsSignedIn(ctx context.Context) bool {
	return TokenSourceCredentials{Source: e}.IsSignedIn(ctx)
}

func (e EnvCredentials) Credentials(ctx context.Context) (string, bool) {
	return TokenSourceCredentials{Source: e}.Credentials(ctx)
}

// TokenSourceCredentials adapts an oauth2.TokenSource. Expired tokens count as signed out.
type TokenSourceCredentials struct {
	Source oauth2.TokenSource
}

func (t TokenSourceCredentials) IsSignedIn(ctx context.Context) bool {
	_, ok := t.Credentials(ctx)
	return ok
}

func (t TokenSourceCredentials) Credentials(context.Context) (string, bool) {
	if t.Source == nil {
		return "", false
	}
	token, err := t.Source.Token()
	if err != nil || !token.Valid() {
		return "", false
	}
	return token.AccessToken, true
}

var _ domain.Connector = (*Credentialed)(nil)
var _ domain.CredentialProvider = EnvCredentials{}
var _ domain.CredentialProvider = TokenSourceCredentials{}
var _ oauth2.TokenSource = EnvCredentials{}
