package app

import (
	"context"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"omnisearch/internal/domain"
	"omnisearch/internal/engine"
	"omnisearch/internal/infra/catalog"
	"omnisearch/internal/infra/httpapi"
	"omnisearch/internal/infra/telemetry"
)

type App struct {
	logger *zap.Logger
	logs   *telemetry.LogBroadcaster
}

type ServeConfig struct {
	ConfigPath string
	// APIAddress overrides api.listenAddress from the catalog.
	APIAddress string
	// ConnectOnStart connects every tool before the API starts accepting requests.
	ConnectOnStart bool
	Observability  *ObservabilityOptions
}

type ValidateConfig struct {
	ConfigPath string
}

// SearchConfig drives a one-shot search from the command line.
type SearchConfig struct {
	ConfigPath   string
	Query        string
	ContentTypes []string
	MaxResults   int
	// Tools limits the connected tools; empty means every tool.
	Tools []string
	JSON  bool
	Out   io.Writer
}

func New(logging Logging) *App {
	logger := logging.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		logger: logger.Named("app"),
		logs:   logging.Broadcaster,
	}
}

// Serve runs the engine, the control API and the observability listener until ctx ends.
func (a *App) Serve(ctx context.Context, cfg ServeConfig) error {
	catalogData, err := catalog.NewLoader(a.logger).Load(ctx, cfg.ConfigPath)
	if err != nil {
		return err
	}
	a.logger.Info("configuration loaded",
		zap.String("config", cfg.ConfigPath),
		zap.Int("tools", len(catalogData.Tools)),
		zap.String("version", Version),
	)

	registry := NewMetricsRegistry()
	eng, err := engine.New(catalogData, engine.Options{
		Metrics: NewMetrics(registry),
		Logger:  a.logger,
		Tracer:  NewTracer(),
	})
	if err != nil {
		return err
	}
	eng.Start(ctx)
	defer eng.Shutdown()

	if cfg.ConnectOnStart {
		if err := eng.ConnectAll(ctx, catalogData.Runtime.Health.Concurrency); err != nil {
			a.logger.Warn("some tools failed to connect", zap.Error(err))
		}
	}

	runtime := catalogData.Runtime
	obs := resolveObservability(runtime.Observability, cfg.Observability)
	router := httpapi.NewRouter(httpapi.Options{
		Engine:         eng,
		Logs:           a.logs,
		Logger:         a.logger,
		RequestTimeout: runtime.API.RequestTimeout(),
	})

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return telemetry.StartHTTPServer(groupCtx, telemetry.HTTPServerOptions{
			Addr:          obs.ListenAddress,
			EnableMetrics: obs.Metrics,
			EnableHealthz: obs.Healthz,
			Stats:         eng,
			Registry:      registry,
		}, a.logger)
	})
	group.Go(func() error {
		return httpapi.Serve(groupCtx, resolveAPIAddress(runtime.API, cfg.APIAddress), router, a.logger)
	})
	return group.Wait()
}

// Search connects the selected tools, runs one fan-out and prints the response.
// Connect failures are reported but do not abort the search.
func (a *App) Search(ctx context.Context, cfg SearchConfig) (domain.SearchResponse, error) {
	catalogData, err := catalog.NewLoader(a.logger).Load(ctx, cfg.ConfigPath)
	if err != nil {
		return domain.SearchResponse{}, err
	}
	// One-shot runs never retry in the background.
	catalogData.Runtime.Reconnect.Enabled = false

	eng, err := engine.New(catalogData, engine.Options{Logger: a.logger, Tracer: NewTracer()})
	if err != nil {
		return domain.SearchResponse{}, err
	}
	defer eng.Shutdown()

	if err := eng.ConnectTools(ctx, cfg.Tools, catalogData.Runtime.Health.Concurrency); err != nil {
		a.logger.Warn("some tools failed to connect", zap.Error(err))
	}

	resp := eng.Search(ctx, domain.SearchOptions{
		Query:        cfg.Query,
		ContentTypes: cfg.ContentTypes,
		MaxResults:   cfg.MaxResults,
	})

	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	if cfg.JSON {
		return resp, writeJSON(out, resp)
	}
	return resp, printSearchResponse(out, resp)
}
