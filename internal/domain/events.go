package domain

// EventKind names an engine event stream.
type EventKind string

const (
	EventConnections EventKind = "connections"
	EventHealth      EventKind = "health"
)

// Event is a connection snapshot or a health update, as streamed to API clients.
type Event struct {
	Kind     EventKind           `json:"kind"`
	Snapshot *ConnectionSnapshot `json:"snapshot,omitempty"`
	Health   *HealthStatus       `json:"health,omitempty"`
}
