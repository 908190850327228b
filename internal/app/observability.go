package app

import "omnisearch/internal/domain"

// ObservabilityOptions overrides the catalog's observability section.
type ObservabilityOptions struct {
	MetricsEnabled *bool
	HealthzEnabled *bool
}

// resolveObservability applies environment overrides, then explicit options,
// on top of the catalog config.
func resolveObservability(cfg domain.ObservabilityConfig, opts *ObservabilityOptions) domain.ObservabilityConfig {
	if value, ok := envBoolOptional(envMetricsEnabled); ok {
		cfg.Metrics = value
	}
	if value, ok := envBoolOptional(envHealthzEnabled); ok {
		cfg.Healthz = value
	}
	if opts != nil {
		if opts.MetricsEnabled != nil {
			cfg.Metrics = *opts.MetricsEnabled
		}
		if opts.HealthzEnabled != nil {
			cfg.Healthz = *opts.HealthzEnabled
		}
	}
	return cfg
}

func resolveAPIAddress(cfg domain.APIConfig, override string) string {
	if override != "" {
		return override
	}
	if value, ok := envString(envAPIAddress); ok {
		return value
	}
	if cfg.ListenAddress != "" {
		return cfg.ListenAddress
	}
	return domain.DefaultAPIListenAddress
}
