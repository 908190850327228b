package domain

import "time"

// Metrics records engine activity.
type Metrics interface {
	ObserveConnect(toolID string, duration time.Duration, err error)
	ObserveDisconnect(toolID string)
	ObserveSync(toolID string, duration time.Duration, err error)
	ObserveConnectorSearch(toolID string, duration time.Duration, results int, err error)
	ObserveFanOut(connectors int, results int, duration time.Duration)
	ObserveProbe(toolID string, state HealthState, duration time.Duration)
	SetConnectedTools(count int)
	ObserveReconnect(toolID string, err error)
}
