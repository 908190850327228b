package connector

import (
	"sync"
	"time"

	"omnisearch/internal/domain"
)

// Constructor builds a connector for one catalog entry.
type Constructor func(Options) domain.Connector

// Factory maps tool ids to constructors with an explicit fallback.
type Factory struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	fallback     Constructor
}

// Of returns a constructor for simulated connectors of the given kind.
func Of(kind Kind) Constructor {
	return func(opts Options) domain.Connector {
		return NewSimulated(kind, opts)
	}
}

// NewFactory returns a factory pre-populated with the known tools.
func NewFactory() *Factory {
	f := &Factory{
		constructors: make(map[string]Constructor),
		fallback:     Of(KindDocument),
	}
	for id, kind := range map[string]Kind{
		"slack":      KindMessage,
		"teams":      KindMessage,
		"jira":       KindIssue,
		"linear":     KindIssue,
		"github":     KindPullRequest,
		"gitlab":     KindPullRequest,
		"gmail":      KindEmail,
		"outlook":    KindEmail,
		"calendar":   KindEvent,
		"confluence": KindDocument,
		"notion":     KindDocument,
		"drive":      KindDocument,
	} {
		f.constructors[id] = Of(kind)
	}
	return f
}

// Register adds or replaces the constructor for toolID.
func (f *Factory) Register(toolID string, ctor Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[toolID] = ctor
}

// SetFallback replaces the constructor used for unregistered tool ids.
func (f *Factory) SetFallback(ctor Constructor) {
	if ctor == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallback = ctor
}

// Registered reports whether toolID has its own constructor.
func (f *Factory) Registered(toolID string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.constructors[toolID]
	return ok
}

// Build creates the connector for opts.Spec. Simulated tools get a random failure
// model from their failure rate; real tools never fail by simulation and are gated
// behind the credential provider.
func (f *Factory) Build(opts Options) domain.Connector {
	f.mu.RLock()
	ctor, ok := f.constructors[opts.Spec.ID]
	if !ok {
		ctor = f.fallback
	}
	f.mu.RUnlock()

	if opts.Spec.Simulated {
		if opts.Failures == nil {
			opts.Failures = NewRandomFailure(opts.Spec.FailureRate, seedFor(opts.Spec.ID)^uint64(time.Now().UnixNano()))
		}
		return ctor(opts)
	}

	if opts.Failures == nil {
		opts.Failures = NeverFail{}
	}
	provider := opts.Credentials
	if provider == nil {
		provider = EnvCredentials{Var: opts.Spec.CredentialEnv}
	}
	return WithCredentials(ctor(opts), provider)
}
