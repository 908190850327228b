package domain

import "time"

// LogLevel is the severity attached to a streamed log entry.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelFatal LogLevel = "fatal"
)

// LogEntry is one structured log line delivered to log stream subscribers.
type LogEntry struct {
	Logger    string         `json:"logger"`
	Level     LogLevel       `json:"level"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields,omitempty"`
}
