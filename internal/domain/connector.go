package domain

import "context"

// Connector adapts one external tool. Implementations must be safe for concurrent use.
type Connector interface {
	Tool() Tool
	Connect(ctx context.Context) error
	Disconnect()
	Search(ctx context.Context, opts SearchOptions) ([]SearchResult, error)
	Sync(ctx context.Context) error
	ConnectionStatus() ConnectorStatus
}

// Operation names a connector call for failure injection and metrics.
type Operation string

const (
	OpConnect Operation = "connect"
	OpSearch  Operation = "search"
	OpSync    Operation = "sync"
)

// FailureModel decides whether a connector operation fails.
// Real connectors use a model that never fails.
type FailureModel interface {
	Fail(op Operation) error
}

// CredentialProvider is the opaque credential check used by non-simulated connectors.
type CredentialProvider interface {
	IsSignedIn(ctx context.Context) bool
	Credentials(ctx context.Context) (string, bool)
}

// HealthProbe runs a cheap read-only call against a connector.
type HealthProbe interface {
	Probe(ctx context.Context, conn Connector) error
}

// ConnectionListener receives the full connection snapshot after every mutation.
type ConnectionListener func(ConnectionSnapshot)

// HealthListener receives a health record after each probe.
type HealthListener func(HealthStatus)

// ListenerID identifies a registered listener for removal.
type ListenerID uint64
