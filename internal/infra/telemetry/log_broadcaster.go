package telemetry

import (
	"context"
	"sync"

	"go.uber.org/zap/zapcore"

	"omnisearch/internal/domain"
)

// DefaultLogBufferSize is the per-subscriber channel capacity.
const DefaultLogBufferSize = 256

// LogBroadcaster fans zap entries out to live subscribers. Slow subscribers drop entries.
type LogBroadcaster struct {
	minLevel zapcore.Level
	mu       sync.RWMutex
	subs     map[chan domain.LogEntry]struct{}
}

func NewLogBroadcaster(minLevel zapcore.Level) *LogBroadcaster {
	return &LogBroadcaster{
		minLevel: minLevel,
		subs:     make(map[chan domain.LogEntry]struct{}),
	}
}

// Core returns a zapcore.Core to tee into the process logger.
func (b *LogBroadcaster) Core() zapcore.Core {
	return &logBroadcasterCore{broadcaster: b}
}

// Subscribe returns a channel of entries that closes when ctx ends.
func (b *LogBroadcaster) Subscribe(ctx context.Context) <-chan domain.LogEntry {
	ch := make(chan domain.LogEntry, DefaultLogBufferSize)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

// Subscribers returns the number of live subscriptions.
func (b *LogBroadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *LogBroadcaster) publish(entry domain.LogEntry) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- entry:
		default:
		}
	}
}

type logBroadcasterCore struct {
	broadcaster *LogBroadcaster
	fields      []zapcore.Field
}

func (c *logBroadcasterCore) Enabled(level zapcore.Level) bool {
	return level >= c.broadcaster.minLevel
}

func (c *logBroadcasterCore) With(fields []zapcore.Field) zapcore.Core {
	if len(fields) == 0 {
		return c
	}
	combined := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	combined = append(combined, c.fields...)
	combined = append(combined, fields...)
	return &logBroadcasterCore{broadcaster: c.broadcaster, fields: combined}
}

func (c *logBroadcasterCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *logBroadcasterCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	encoder := zapcore.NewMapObjectEncoder()
	for _, field := range c.fields {
		field.AddTo(encoder)
	}
	for _, field := range fields {
		field.AddTo(encoder)
	}

	logged := domain.LogEntry{
		Logger:    entry.LoggerName,
		Level:     mapZapLevel(entry.Level),
		Message:   entry.Message,
		Timestamp: entry.Time.UTC(),
	}
	if logged.Logger == "" {
		logged.Logger = "omnisearch"
	}
	if len(encoder.Fields) > 0 {
		logged.Fields = encoder.Fields
	}
	c.broadcaster.publish(logged)
	return nil
}

func (c *logBroadcasterCore) Sync() error {
	return nil
}

func mapZapLevel(level zapcore.Level) domain.LogLevel {
	switch level {
	case zapcore.DebugLevel:
		return domain.LogLevelDebug
	case zapcore.WarnLevel:
		return domain.LogLevelWarn
	case zapcore.ErrorLevel:
		return domain.LogLevelError
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return domain.LogLevelFatal
	default:
		return domain.LogLevelInfo
	}
}

var _ zapcore.Core = (*logBroadcasterCore)(nil)
