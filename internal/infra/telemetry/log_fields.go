package telemetry

import (
	"time"

	"go.uber.org/zap"
)

const (
	FieldEvent       = "event"
	FieldToolID      = "toolID"
	FieldState       = "state"
	FieldDurationMs  = "duration_ms"
	FieldSearchID    = "search_id"
	FieldFailureKind = "failure_kind"
	FieldAttempt     = "attempt"
	FieldLogSource   = "log_source"
	FieldRequestID   = "request_id"
	FieldTraceID     = "trace_id"
	FieldSpanID      = "span_id"
)

const (
	EventConnectAttempt    = "connect_attempt"
	EventConnectSuccess    = "connect_success"
	EventConnectFailure    = "connect_failure"
	EventDisconnect        = "disconnect"
	EventSyncSuccess       = "sync_success"
	EventSyncFailure       = "sync_failure"
	EventProbeFailure      = "probe_failure"
	EventProbeSlow         = "probe_slow"
	EventSearchFailure     = "search_failure"
	EventReconnectSchedule = "reconnect_scheduled"
	EventReconnectGiveUp   = "reconnect_give_up"
)

const (
	LogSourceCore = "core"
	LogSourceAPI  = "api"
)

func EventField(event string) zap.Field {
	return zap.String(FieldEvent, event)
}

func ToolField(toolID string) zap.Field {
	return zap.String(FieldToolID, toolID)
}

func StateField(state string) zap.Field {
	return zap.String(FieldState, state)
}

func DurationField(duration time.Duration) zap.Field {
	return zap.Int64(FieldDurationMs, duration.Milliseconds())
}

func SearchIDField(value string) zap.Field {
	return zap.String(FieldSearchID, value)
}

func FailureKindField(kind string) zap.Field {
	return zap.String(FieldFailureKind, kind)
}

func AttemptField(attempt int) zap.Field {
	return zap.Int(FieldAttempt, attempt)
}

func RequestIDField(value string) zap.Field {
	return zap.String(FieldRequestID, value)
}
