package domain

// Catalog is the validated configuration the engine is built from.
type Catalog struct {
	Tools   []ToolSpec
	Runtime RuntimeConfig
}

// ToolIDs returns the catalog order of tool ids.
func (c Catalog) ToolIDs() []string {
	ids := make([]string, 0, len(c.Tools))
	for _, spec := range c.Tools {
		ids = append(ids, spec.ID)
	}
	return ids
}

// RuntimeConfig holds engine-wide tuning.
type RuntimeConfig struct {
	OperationTimeoutSeconds int
	Health                  HealthConfig
	Search                  SearchConfig
	Reconnect               ReconnectConfig
	Observability           ObservabilityConfig
	API                     APIConfig
}

// HealthConfig tunes the health monitor.
type HealthConfig struct {
	IntervalSeconds     int
	ProbeTimeoutSeconds int
	SlowThresholdMs     int
	Concurrency         int
}

// SearchConfig tunes the search aggregator.
type SearchConfig struct {
	TimeoutSeconds int
	Concurrency    int
	Dedupe         bool
}

// ReconnectConfig tunes the automatic reconnect policy.
type ReconnectConfig struct {
	Enabled                bool
	BaseSeconds            int
	MaxSeconds             int
	MaxRetries             int
	RatePerSecond          float64
	Burst                  int
	HealthFailureThreshold int
}

// ObservabilityConfig configures the metrics and healthz listener.
type ObservabilityConfig struct {
	ListenAddress string
	Metrics       bool
	Healthz       bool
}

// APIConfig configures the HTTP control API.
type APIConfig struct {
	ListenAddress         string
	RequestTimeoutSeconds int
}

// DefaultRuntimeConfig returns the runtime config used when no file is loaded.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		OperationTimeoutSeconds: DefaultOperationTimeoutSeconds,
		Health: HealthConfig{
			IntervalSeconds:     DefaultHealthIntervalSeconds,
			ProbeTimeoutSeconds: DefaultProbeTimeoutSeconds,
			SlowThresholdMs:     DefaultSlowThresholdMs,
			Concurrency:         DefaultHealthConcurrency,
		},
		Search: SearchConfig{
			TimeoutSeconds: DefaultSearchTimeoutSeconds,
			Dedupe:         DefaultSearchDedupe,
		},
		Reconnect: ReconnectConfig{
			Enabled:                DefaultReconnectEnabled,
			BaseSeconds:            DefaultReconnectBaseSeconds,
			MaxSeconds:             DefaultReconnectMaxSeconds,
			MaxRetries:             DefaultReconnectMaxRetries,
			RatePerSecond:          DefaultReconnectRatePerSecond,
			Burst:                  DefaultReconnectBurst,
			HealthFailureThreshold: DefaultHealthFailureThreshold,
		},
		Observability: ObservabilityConfig{
			ListenAddress: DefaultObservabilityListenAddress,
			Metrics:       true,
			Healthz:       true,
		},
		API: APIConfig{
			ListenAddress:         DefaultAPIListenAddress,
			RequestTimeoutSeconds: DefaultAPIRequestTimeoutSeconds,
		},
	}
}
