package domain

import "time"

// Tool is a static catalog entry for one external system.
type Tool struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Simulated bool   `json:"simulated"`
}

// DataVolume sizes a simulated connector dataset.
type DataVolume string

const (
	VolumeSmall  DataVolume = "small"
	VolumeMedium DataVolume = "medium"
	VolumeLarge  DataVolume = "large"
)

// ItemCount returns the number of records a dataset of this tier holds.
func (v DataVolume) ItemCount() int {
	switch v {
	case VolumeLarge:
		return 120
	case VolumeMedium:
		return 40
	default:
		return 12
	}
}

// Valid reports whether v is a known tier. The empty tier is valid and means "registry default".
func (v DataVolume) Valid() bool {
	switch v {
	case "", VolumeSmall, VolumeMedium, VolumeLarge:
		return true
	default:
		return false
	}
}

// LatencyRange bounds the simulated latency of a connector operation.
type LatencyRange struct {
	MinMs int `json:"minMs"`
	MaxMs int `json:"maxMs"`
}

// ToolSpec is a catalog entry plus connector tuning.
type ToolSpec struct {
	Tool
	Volume        DataVolume   `json:"volume,omitempty"`
	Latency       LatencyRange `json:"latency"`
	FailureRate   float64      `json:"failureRate"`
	CredentialEnv string       `json:"credentialEnv,omitempty"`
}

// ConnectionStatus is the state of one tool's connection.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusError        ConnectionStatus = "error"
)

// Connection is the engine-owned record of the last connection operation for a tool.
type Connection struct {
	ToolID      string           `json:"toolId"`
	Status      ConnectionStatus `json:"status"`
	LastSync    *time.Time       `json:"lastSync,omitempty"`
	Error       string           `json:"error,omitempty"`
	FailureKind FailureKind      `json:"failureKind,omitempty"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// Clone returns a copy that shares no pointers with c.
func (c Connection) Clone() Connection {
	c.LastSync = cloneTime(c.LastSync)
	return c
}

// ConnectionSnapshot is the full connection state delivered to listeners.
type ConnectionSnapshot struct {
	Revision    uint64       `json:"revision"`
	Connections []Connection `json:"connections"`
}

// Connection returns the record for toolID from the snapshot.
func (s ConnectionSnapshot) Connection(toolID string) (Connection, bool) {
	for _, conn := range s.Connections {
		if conn.ToolID == toolID {
			return conn, true
		}
	}
	return Connection{}, false
}

// ConnectedCount returns how many tools the snapshot shows connected.
func (s ConnectionSnapshot) ConnectedCount() int {
	n := 0
	for _, conn := range s.Connections {
		if conn.Status == StatusConnected {
			n++
		}
	}
	return n
}

// ConnectorStatus is what a connector reports about itself.
type ConnectorStatus struct {
	IsConnected bool       `json:"isConnected"`
	LastSync    *time.Time `json:"lastSync,omitempty"`
}

// ConnectionStats aggregates connection and health records.
type ConnectionStats struct {
	TotalTools            int        `json:"totalTools"`
	ConnectedTools        int        `json:"connectedTools"`
	ConnectingTools       int        `json:"connectingTools"`
	ErrorTools            int        `json:"errorTools"`
	DisconnectedTools     int        `json:"disconnectedTools"`
	HealthyTools          int        `json:"healthyTools"`
	WarningTools          int        `json:"warningTools"`
	UnhealthyTools        int        `json:"unhealthyTools"`
	AverageResponseTimeMs int64      `json:"averageResponseTimeMs"`
	LastSync              *time.Time `json:"lastSync,omitempty"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
