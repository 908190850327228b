package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"omnisearch/internal/domain"
	"omnisearch/internal/infra/notifications"
	"omnisearch/internal/infra/telemetry"
)

// Engine is the surface of the search engine the control API exposes.
type Engine interface {
	Tools() []domain.ToolSpec
	Connections() []domain.Connection
	Connection(toolID string) (domain.Connection, error)
	HealthStatuses() []domain.HealthStatus
	Stats() domain.ConnectionStats
	Connect(ctx context.Context, toolID string) error
	Disconnect(ctx context.Context, toolID string) error
	SyncTool(ctx context.Context, toolID string) error
	SyncAllConnectedTools(ctx context.Context) error
	CheckHealth(ctx context.Context) domain.HealthReport
	Search(ctx context.Context, opts domain.SearchOptions) domain.SearchResponse
	Events() *notifications.EventHub
}

// Options configures the control API.
type Options struct {
	Engine Engine
	// Logs enables /v1/logs/stream when set.
	Logs           *telemetry.LogBroadcaster
	Logger         *zap.Logger
	RequestTimeout time.Duration
}

// NewRouter builds the chi router for the control API.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String(telemetry.FieldLogSource, telemetry.LogSourceAPI)).Named("api")
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = time.Duration(domain.DefaultAPIRequestTimeoutSeconds) * time.Second
	}

	h := &handlers{engine: opts.Engine, logs: opts.Logs, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))
			h.registerRoutes(r)
		})
		// Streams outlive the request timeout.
		r.Get("/events", h.streamEvents)
		r.Get("/logs/stream", h.streamLogs)
	})
	return r
}

// Serve runs the control API on addr until ctx ends.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if addr == "" {
		addr = domain.DefaultAPIListenAddress
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("control api listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("control api failed to start: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("control api shutdown error", zap.Error(err))
			return err
		}
		logger.Info("control api stopped")
		return nil
	}
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, meta := telemetry.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Header().Set(telemetry.RequestIDHeader, meta.RequestID)
			next.ServeHTTP(ww, r.WithContext(ctx))

			fields := []zap.Field{
				telemetry.RequestIDField(meta.RequestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				telemetry.DurationField(time.Since(start)),
			}
			if ww.Status() >= http.StatusInternalServerError {
				logger.Warn("request failed", fields...)
				return
			}
			logger.Debug("request served", fields...)
		})
	}
}
