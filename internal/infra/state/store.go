package state

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"omnisearch/internal/domain"
	"omnisearch/internal/infra/telemetry"
)

// Store owns the connection and health records for every catalog tool.
// Mutations notify connection listeners synchronously before returning, and
// listeners observe snapshots in revision order. Listeners may read the store
// but must not mutate it from the notifying goroutine.
type Store struct {
	logger *zap.Logger
	now    func() time.Time

	mu          sync.RWMutex
	order       []string
	connections map[string]domain.Connection
	health      map[string]domain.HealthStatus
	revision    uint64

	listeners *listenerSet
}

// Options configures a Store.
type Options struct {
	Logger *zap.Logger
	Now    func() time.Time
}

var allowed = map[domain.ConnectionStatus]map[domain.ConnectionStatus]bool{
	domain.StatusDisconnected: {domain.StatusConnecting: true, domain.StatusDisconnected: true},
	domain.StatusConnecting:   {domain.StatusConnected: true, domain.StatusError: true, domain.StatusDisconnected: true},
	domain.StatusConnected:    {domain.StatusDisconnected: true, domain.StatusError: true},
	domain.StatusError:        {domain.StatusConnecting: true, domain.StatusDisconnected: true},
}

// CanTransition reports whether from -> to is a legal connection transition.
func CanTransition(from, to domain.ConnectionStatus) bool {
	return allowed[from][to]
}

// NewStore creates disconnected connection and health records for every tool id, in order.
func NewStore(toolIDs []string, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Store{
		logger:      logger.Named("state"),
		now:         now,
		order:       make([]string, 0, len(toolIDs)),
		connections: make(map[string]domain.Connection, len(toolIDs)),
		health:      make(map[string]domain.HealthStatus, len(toolIDs)),
	}
	s.listeners = newListenerSet(s.logger)

	created := now()
	for _, id := range toolIDs {
		if id == "" {
			return nil, fmt.Errorf("tool id is required")
		}
		if _, dup := s.connections[id]; dup {
			return nil, fmt.Errorf("duplicate tool id %q", id)
		}
		s.order = append(s.order, id)
		s.connections[id] = domain.Connection{ToolID: id, Status: domain.StatusDisconnected, UpdatedAt: created}
		s.health[id] = domain.HealthStatus{ToolID: id, State: domain.HealthDisconnected}
	}
	return s, nil
}

// ToolIDs returns the catalog order.
func (s *Store) ToolIDs() []string {
	return append([]string(nil), s.order...)
}

// Has reports whether toolID is in the catalog.
func (s *Store) Has(toolID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.connections[toolID]
	return ok
}

// Revision returns the number of mutations applied so far.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Snapshot returns every connection in catalog order.
func (s *Store) Snapshot() domain.ConnectionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Connections returns every connection in catalog order.
func (s *Store) Connections() []domain.Connection {
	return s.Snapshot().Connections
}

// Connection returns the record for toolID.
func (s *Store) Connection(toolID string) (domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conn, ok := s.connections[toolID]
	if !ok {
		return domain.Connection{}, domain.UnknownToolError(toolID)
	}
	return conn.Clone(), nil
}

// ConnectedToolIDs returns the tools currently connected, in catalog order.
func (s *Store) ConnectedToolIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.order))
	for _, id := range s.order {
		if s.connections[id].Status == domain.StatusConnected {
			ids = append(ids, id)
		}
	}
	return ids
}

// HealthStatuses returns every health record in catalog order.
func (s *Store) HealthStatuses() []domain.HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.HealthStatus, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.health[id].Clone())
	}
	return out
}

// Health returns the health record for toolID.
func (s *Store) Health(toolID string) (domain.HealthStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.health[toolID]
	if !ok {
		return domain.HealthStatus{}, domain.UnknownToolError(toolID)
	}
	return status.Clone(), nil
}

// BeginConnect moves toolID to connecting.
func (s *Store) BeginConnect(toolID string) error {
	return s.transition(toolID, domain.StatusConnecting, func(c *domain.Connection) {
		c.Error = ""
		c.FailureKind = domain.FailureNone
	})
}

// MarkConnected records a successful handshake.
func (s *Store) MarkConnected(toolID string, lastSync time.Time) error {
	return s.transition(toolID, domain.StatusConnected, func(c *domain.Connection) {
		c.Error = ""
		c.FailureKind = domain.FailureNone
		c.LastSync = &lastSync
	})
}

// MarkError records a failed operation with a human readable message.
func (s *Store) MarkError(toolID, message string, kind domain.FailureKind) error {
	return s.transition(toolID, domain.StatusError, func(c *domain.Connection) {
		c.Error = message
		c.FailureKind = kind
		c.LastSync = nil
	})
}

// MarkDisconnected resets toolID to disconnected. It is legal from every state.
func (s *Store) MarkDisconnected(toolID string) error {
	return s.transition(toolID, domain.StatusDisconnected, func(c *domain.Connection) {
		c.Error = ""
		c.FailureKind = domain.FailureNone
		c.LastSync = nil
	})
}

// RecordSync stores a new last-sync time for a connected tool.
func (s *Store) RecordSync(toolID string, at time.Time) error {
	s.mu.Lock()
	conn, ok := s.connections[toolID]
	if !ok {
		s.mu.Unlock()
		return domain.UnknownToolError(toolID)
	}
	if conn.Status != domain.StatusConnected {
		s.mu.Unlock()
		return domain.NotConnectedError("sync", toolID)
	}
	conn.LastSync = &at
	conn.UpdatedAt = s.now()
	s.connections[toolID] = conn
	s.revision++
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.listeners.notifyConnections(snapshot)
	return nil
}

// UpdateHealth replaces the health record for status.ToolID and notifies health listeners.
func (s *Store) UpdateHealth(status domain.HealthStatus) error {
	s.mu.Lock()
	if _, ok := s.health[status.ToolID]; !ok {
		s.mu.Unlock()
		return domain.UnknownToolError(status.ToolID)
	}
	s.health[status.ToolID] = status.Clone()
	s.mu.Unlock()

	s.listeners.notifyHealth(status.Clone())
	return nil
}

// AddConnectionListener registers fn and returns its id.
func (s *Store) AddConnectionListener(fn domain.ConnectionListener) domain.ListenerID {
	return s.listeners.addConnection(fn)
}

// RemoveConnectionListener unregisters a connection listener. Safe to call from inside a listener.
func (s *Store) RemoveConnectionListener(id domain.ListenerID) bool {
	return s.listeners.removeConnection(id)
}

// AddHealthListener registers fn and returns its id.
func (s *Store) AddHealthListener(fn domain.HealthListener) domain.ListenerID {
	return s.listeners.addHealth(fn)
}

// RemoveHealthListener unregisters a health listener.
func (s *Store) RemoveHealthListener(id domain.ListenerID) bool {
	return s.listeners.removeHealth(id)
}

func (s *Store) transition(toolID string, to domain.ConnectionStatus, mutate func(*domain.Connection)) error {
	s.mu.Lock()
	conn, ok := s.connections[toolID]
	if !ok {
		s.mu.Unlock()
		return domain.UnknownToolError(toolID)
	}
	from := conn.Status
	if !CanTransition(from, to) {
		s.mu.Unlock()
		return &domain.Error{
			Code:    domain.CodeFailedPrecond,
			Op:      "transition",
			Message: fmt.Sprintf("%s: %s -> %s", toolID, from, to),
			Cause:   domain.ErrInvalidTransition,
			Meta:    map[string]string{"toolId": toolID},
		}
	}
	conn.Status = to
	if mutate != nil {
		mutate(&conn)
	}
	conn.UpdatedAt = s.now()
	s.connections[toolID] = conn
	s.revision++
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Debug("connection transition",
		telemetry.ToolField(toolID),
		zap.String("from", string(from)),
		telemetry.StateField(string(to)),
		zap.Uint64("revision", snapshot.Revision),
	)
	s.listeners.notifyConnections(snapshot)
	return nil
}

func (s *Store) snapshotLocked() domain.ConnectionSnapshot {
	conns := make([]domain.Connection, 0, len(s.order))
	for _, id := range s.order {
		conns = append(conns, s.connections[id].Clone())
	}
	return domain.ConnectionSnapshot{Revision: s.revision, Connections: conns}
}
