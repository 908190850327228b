package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"omnisearch/internal/domain"
)

// Loader reads a YAML config file into a validated domain.Catalog.
type Loader struct {
	logger *zap.Logger
}

func newRuntimeViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setRuntimeDefaults(v)
	return v
}

func setRuntimeDefaults(v *viper.Viper) {
	v.SetDefault("operationTimeoutSeconds", domain.DefaultOperationTimeoutSeconds)
	v.SetDefault("health.intervalSeconds", domain.DefaultHealthIntervalSeconds)
	v.SetDefault("health.probeTimeoutSeconds", domain.DefaultProbeTimeoutSeconds)
	v.SetDefault("health.slowThresholdMs", domain.DefaultSlowThresholdMs)
	v.SetDefault("health.concurrency", domain.DefaultHealthConcurrency)
	v.SetDefault("search.timeoutSeconds", domain.DefaultSearchTimeoutSeconds)
	v.SetDefault("search.concurrency", 0)
	v.SetDefault("search.dedupe", domain.DefaultSearchDedupe)
	v.SetDefault("reconnect.enabled", domain.DefaultReconnectEnabled)
	v.SetDefault("reconnect.baseSeconds", domain.DefaultReconnectBaseSeconds)
	v.SetDefault("reconnect.maxSeconds", domain.DefaultReconnectMaxSeconds)
	v.SetDefault("reconnect.maxRetries", domain.DefaultReconnectMaxRetries)
	v.SetDefault("reconnect.ratePerSecond", domain.DefaultReconnectRatePerSecond)
	v.SetDefault("reconnect.burst", domain.DefaultReconnectBurst)
	v.SetDefault("reconnect.healthFailureThreshold", domain.DefaultHealthFailureThreshold)
	v.SetDefault("observability.listenAddress", domain.DefaultObservabilityListenAddress)
	v.SetDefault("observability.metrics", true)
	v.SetDefault("observability.healthz", true)
	v.SetDefault("api.listenAddress", domain.DefaultAPIListenAddress)
	v.SetDefault("api.requestTimeoutSeconds", domain.DefaultAPIRequestTimeoutSeconds)
}

type rawCatalog struct {
	Tools            []rawToolSpec `mapstructure:"tools"`
	rawRuntimeConfig `mapstructure:",squash"`
}

type rawToolSpec struct {
	ID            string     `mapstructure:"id"`
	Name          string     `mapstructure:"name"`
	Category      string     `mapstructure:"category"`
	Simulated     *bool      `mapstructure:"simulated"`
	Volume        string     `mapstructure:"volume"`
	FailureRate   float64    `mapstructure:"failureRate"`
	Latency       rawLatency `mapstructure:"latency"`
	CredentialEnv string     `mapstructure:"credentialEnv"`
}

// rawLatency bounds are pointers so an explicit 0 is kept.
type rawLatency struct {
	MinMs *int `mapstructure:"minMs"`
	MaxMs *int `mapstructure:"maxMs"`
}

type rawRuntimeConfig struct {
	OperationTimeoutSeconds int                    `mapstructure:"operationTimeoutSeconds"`
	Health                  rawHealthConfig        `mapstructure:"health"`
	Search                  rawSearchConfig        `mapstructure:"search"`
	Reconnect               rawReconnectConfig     `mapstructure:"reconnect"`
	Observability           rawObservabilityConfig `mapstructure:"observability"`
	API                     rawAPIConfig           `mapstructure:"api"`
}

type rawHealthConfig struct {
	IntervalSeconds     int `mapstructure:"intervalSeconds"`
	ProbeTimeoutSeconds int `mapstructure:"probeTimeoutSeconds"`
	SlowThresholdMs     int `mapstructure:"slowThresholdMs"`
	Concurrency         int `mapstructure:"concurrency"`
}

type rawSearchConfig struct {
	TimeoutSeconds int  `mapstructure:"timeoutSeconds"`
	Concurrency    int  `mapstructure:"concurrency"`
	Dedupe         bool `mapstructure:"dedupe"`
}

type rawReconnectConfig struct {
	Enabled                bool    `mapstructure:"enabled"`
	BaseSeconds            int     `mapstructure:"baseSeconds"`
	MaxSeconds             int     `mapstructure:"maxSeconds"`
	MaxRetries             int     `mapstructure:"maxRetries"`
	RatePerSecond          float64 `mapstructure:"ratePerSecond"`
	Burst                  int     `mapstructure:"burst"`
	HealthFailureThreshold int     `mapstructure:"healthFailureThreshold"`
}

type rawObservabilityConfig struct {
	ListenAddress string `mapstructure:"listenAddress"`
	Metrics       bool   `mapstructure:"metrics"`
	Healthz       bool   `mapstructure:"healthz"`
}

type rawAPIConfig struct {
	ListenAddress         string `mapstructure:"listenAddress"`
	RequestTimeoutSeconds int    `mapstructure:"requestTimeoutSeconds"`
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		return &Loader{logger: zap.NewNop()}
	}
	return &Loader{logger: logger.Named("catalog")}
}

// Load reads path. An empty path yields the built-in catalog.
func (l *Loader) Load(ctx context.Context, path string) (domain.Catalog, error) {
	if path == "" {
		l.logger.Info("no config file given, using built-in catalog")
		return Default(), ctx.Err()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("read config: %w", err)
	}
	return l.Parse(ctx, data, path)
}

// Parse decodes a YAML document. source is only used in log output.
func (l *Loader) Parse(ctx context.Context, data []byte, source string) (domain.Catalog, error) {
	expanded, missing, err := expandConfigEnv(data)
	if err != nil {
		return domain.Catalog{}, err
	}
	if len(missing) > 0 {
		l.logger.Warn("missing environment variables in config", zap.String("path", source), zap.Strings("missing", missing))
	}

	v := newRuntimeViper()
	if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
		return domain.Catalog{}, fmt.Errorf("parse config: %w", err)
	}

	var cfg rawCatalog
	if err := v.Unmarshal(&cfg); err != nil {
		return domain.Catalog{}, fmt.Errorf("decode config: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return domain.Catalog{}, err
	}

	runtime, validationErrors := normalizeRuntimeConfig(cfg.rawRuntimeConfig)

	tools := make([]domain.ToolSpec, 0, len(cfg.Tools))
	seen := make(map[string]struct{}, len(cfg.Tools))
	for i, raw := range cfg.Tools {
		spec := normalizeToolSpec(raw)
		if _, dup := seen[spec.ID]; dup {
			validationErrors = append(validationErrors, fmt.Sprintf("tools[%d]: duplicate id %q", i, spec.ID))
		} else if spec.ID != "" {
			seen[spec.ID] = struct{}{}
		}
		if errs := validateToolSpec(spec, i); len(errs) > 0 {
			validationErrors = append(validationErrors, errs...)
			continue
		}
		tools = append(tools, spec)
	}

	if len(validationErrors) > 0 {
		return domain.Catalog{}, errors.New(strings.Join(validationErrors, "; "))
	}

	if len(tools) == 0 {
		l.logger.Info("config lists no tools, using built-in catalog", zap.String("path", source))
		tools = DefaultTools()
	}
	return domain.Catalog{Tools: tools, Runtime: runtime}, nil
}

func normalizeToolSpec(raw rawToolSpec) domain.ToolSpec {
	id := strings.TrimSpace(raw.ID)
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		name = id
	}
	category := strings.ToLower(strings.TrimSpace(raw.Category))
	if category == "" {
		category = "general"
	}
	simulated := true
	if raw.Simulated != nil {
		simulated = *raw.Simulated
	}
	latency := domain.LatencyRange{MinMs: domain.DefaultLatencyMinMs, MaxMs: domain.DefaultLatencyMaxMs}
	if raw.Latency.MinMs != nil {
		latency.MinMs = *raw.Latency.MinMs
	}
	if raw.Latency.MaxMs != nil {
		latency.MaxMs = *raw.Latency.MaxMs
	} else if latency.MaxMs < latency.MinMs {
		latency.MaxMs = latency.MinMs
	}

	return domain.ToolSpec{
		Tool: domain.Tool{
			ID:        id,
			Name:      name,
			Category:  category,
			Simulated: simulated,
		},
		Volume:        domain.DataVolume(strings.ToLower(strings.TrimSpace(raw.Volume))),
		Latency:       latency,
		FailureRate:   raw.FailureRate,
		CredentialEnv: strings.TrimSpace(raw.CredentialEnv),
	}
}

func validateToolSpec(spec domain.ToolSpec, index int) []string {
	var errs []string

	if spec.ID == "" {
		errs = append(errs, fmt.Sprintf("tools[%d]: id is required", index))
	}
	if !spec.Volume.Valid() {
		errs = append(errs, fmt.Sprintf("tools[%d]: volume must be small, medium or large", index))
	}
	if spec.FailureRate < 0 || spec.FailureRate > 1 {
		errs = append(errs, fmt.Sprintf("tools[%d]: failureRate must be between 0 and 1", index))
	}
	if spec.Latency.MinMs < 0 {
		errs = append(errs, fmt.Sprintf("tools[%d]: latency.minMs must be >= 0", index))
	}
	if spec.Latency.MaxMs < spec.Latency.MinMs {
		errs = append(errs, fmt.Sprintf("tools[%d]: latency.maxMs must be >= latency.minMs", index))
	}
	if !spec.Simulated && spec.CredentialEnv == "" {
		errs = append(errs, fmt.Sprintf("tools[%d]: credentialEnv is required when simulated is false", index))
	}
	return errs
}

func normalizeRuntimeConfig(cfg rawRuntimeConfig) (domain.RuntimeConfig, []string) {
	var errs []string

	if cfg.OperationTimeoutSeconds <= 0 {
		errs = append(errs, "operationTimeoutSeconds must be > 0")
	}

	if cfg.Health.IntervalSeconds <= 0 {
		errs = append(errs, "health.intervalSeconds must be > 0")
	}
	if cfg.Health.ProbeTimeoutSeconds <= 0 {
		errs = append(errs, "health.probeTimeoutSeconds must be > 0")
	}
	if cfg.Health.SlowThresholdMs < 0 {
		errs = append(errs, "health.slowThresholdMs must be >= 0")
	}
	if cfg.Health.Concurrency < 0 {
		errs = append(errs, "health.concurrency must be >= 0")
	}

	if cfg.Search.TimeoutSeconds <= 0 {
		errs = append(errs, "search.timeoutSeconds must be > 0")
	}
	if cfg.Search.Concurrency < 0 {
		errs = append(errs, "search.concurrency must be >= 0")
	}

	reconnect := cfg.Reconnect
	if reconnect.BaseSeconds <= 0 {
		errs = append(errs, "reconnect.baseSeconds must be > 0")
	}
	if reconnect.MaxSeconds < reconnect.BaseSeconds {
		errs = append(errs, "reconnect.maxSeconds must be >= reconnect.baseSeconds")
	}
	if reconnect.MaxRetries < 0 {
		errs = append(errs, "reconnect.maxRetries must be >= 0")
	}
	if reconnect.RatePerSecond < 0 {
		errs = append(errs, "reconnect.ratePerSecond must be >= 0")
	}
	if reconnect.Burst < 0 {
		errs = append(errs, "reconnect.burst must be >= 0")
	}
	if reconnect.HealthFailureThreshold < 0 {
		errs = append(errs, "reconnect.healthFailureThreshold must be >= 0")
	}

	observability := strings.TrimSpace(cfg.Observability.ListenAddress)
	if observability == "" {
		observability = domain.DefaultObservabilityListenAddress
	}

	apiAddr := strings.TrimSpace(cfg.API.ListenAddress)
	if apiAddr == "" {
		errs = append(errs, "api.listenAddress is required")
	}
	if cfg.API.RequestTimeoutSeconds <= 0 {
		errs = append(errs, "api.requestTimeoutSeconds must be > 0")
	}

	return domain.RuntimeConfig{
		OperationTimeoutSeconds: cfg.OperationTimeoutSeconds,
		Health: domain.HealthConfig{
			IntervalSeconds:     cfg.Health.IntervalSeconds,
			ProbeTimeoutSeconds: cfg.Health.ProbeTimeoutSeconds,
			SlowThresholdMs:     cfg.Health.SlowThresholdMs,
			Concurrency:         cfg.Health.Concurrency,
		},
		Search: domain.SearchConfig{
			TimeoutSeconds: cfg.Search.TimeoutSeconds,
			Concurrency:    cfg.Search.Concurrency,
			Dedupe:         cfg.Search.Dedupe,
		},
		Reconnect: domain.ReconnectConfig{
			Enabled:                reconnect.Enabled,
			BaseSeconds:            reconnect.BaseSeconds,
			MaxSeconds:             reconnect.MaxSeconds,
			MaxRetries:             reconnect.MaxRetries,
			RatePerSecond:          reconnect.RatePerSecond,
			Burst:                  reconnect.Burst,
			HealthFailureThreshold: reconnect.HealthFailureThreshold,
		},
		Observability: domain.ObservabilityConfig{
			ListenAddress: observability,
			Metrics:       cfg.Observability.Metrics,
			Healthz:       cfg.Observability.Healthz,
		},
		API: domain.APIConfig{
			ListenAddress:         apiAddr,
			RequestTimeoutSeconds: cfg.API.RequestTimeoutSeconds,
		},
	}, errs
}
