package domain

import "time"

// HealthState is the outcome of the last health probe for a tool.
type HealthState string

const (
	HealthHealthy      HealthState = "healthy"
	HealthWarning      HealthState = "warning"
	HealthError        HealthState = "error"
	HealthDisconnected HealthState = "disconnected"
)

// FailureKind classifies why a probe or operation failed.
type FailureKind string

const (
	FailureNone          FailureKind = ""
	FailureAuthExpired   FailureKind = "auth_expired"
	FailureTransient     FailureKind = "transient"
	FailureMisconfigured FailureKind = "misconfigured"
	FailureTimeout       FailureKind = "timeout"
	FailureUnknown       FailureKind = "unknown"
)

// Retryable reports whether a failure of this kind may clear on its own.
func (k FailureKind) Retryable() bool {
	switch k {
	case FailureTransient, FailureTimeout, FailureUnknown:
		return true
	default:
		return false
	}
}

// HealthStatus is the passive observation track for a tool.
type HealthStatus struct {
	ToolID              string      `json:"toolId"`
	State               HealthState `json:"status"`
	LastCheck           *time.Time  `json:"lastCheck,omitempty"`
	ResponseTimeMs      *int64      `json:"responseTimeMs,omitempty"`
	UptimeMs            *int64      `json:"uptimeMs,omitempty"`
	ErrorMessage        string      `json:"errorMessage,omitempty"`
	FailureKind         FailureKind `json:"failureKind,omitempty"`
	ConsecutiveFailures int         `json:"consecutiveFailures"`
}

// Clone returns a copy that shares no pointers with h.
func (h HealthStatus) Clone() HealthStatus {
	h.LastCheck = cloneTime(h.LastCheck)
	h.ResponseTimeMs = cloneInt64(h.ResponseTimeMs)
	h.UptimeMs = cloneInt64(h.UptimeMs)
	return h
}

// HealthReport summarizes one health monitor cycle.
type HealthReport struct {
	StartedAt time.Time      `json:"startedAt"`
	Duration  time.Duration  `json:"duration"`
	Checked   []HealthStatus `json:"checked"`
}
