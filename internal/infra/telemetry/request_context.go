package telemetry

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RequestIDHeader carries the control API request id.
const RequestIDHeader = "X-Request-Id"

type requestContextKey struct{}

// RequestMeta correlates engine logs with the API request and trace that caused them.
type RequestMeta struct {
	RequestID string
	TraceID   string
	SpanID    string
}

func (m RequestMeta) IsZero() bool {
	return m.RequestID == "" && m.TraceID == "" && m.SpanID == ""
}

// WithRequestID attaches requestID and the active span of ctx. An empty id is
// replaced by a fresh uuid, or by the id already on ctx.
func WithRequestID(ctx context.Context, requestID string) (context.Context, RequestMeta) {
	if requestID == "" {
		if existing, ok := RequestMetaFromContext(ctx); ok {
			requestID = existing.RequestID
		}
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	meta := RequestMeta{RequestID: requestID}
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		meta.TraceID = spanCtx.TraceID().String()
		meta.SpanID = spanCtx.SpanID().String()
	}
	return context.WithValue(ctx, requestContextKey{}, meta), meta
}

func RequestMetaFromContext(ctx context.Context) (RequestMeta, bool) {
	if ctx == nil {
		return RequestMeta{}, false
	}
	meta, ok := ctx.Value(requestContextKey{}).(RequestMeta)
	return meta, ok && !meta.IsZero()
}

// RequestFields returns the correlation fields found on ctx, if any.
func RequestFields(ctx context.Context) []zap.Field {
	meta, ok := RequestMetaFromContext(ctx)
	if !ok {
		return nil
	}
	fields := make([]zap.Field, 0, 3)
	if meta.RequestID != "" {
		fields = append(fields, RequestIDField(meta.RequestID))
	}
	if meta.TraceID != "" {
		fields = append(fields, zap.String(FieldTraceID, meta.TraceID))
	}
	if meta.SpanID != "" {
		fields = append(fields, zap.String(FieldSpanID, meta.SpanID))
	}
	return fields
}

// LoggerFor decorates base with the correlation fields of ctx.
func LoggerFor(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	if fields := RequestFields(ctx); len(fields) > 0 {
		return base.With(fields...)
	}
	return base
}
