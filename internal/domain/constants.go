package domain

const (
	DefaultOperationTimeoutSeconds    = 15
	DefaultHealthIntervalSeconds      = 30
	DefaultProbeTimeoutSeconds        = 5
	DefaultSlowThresholdMs            = 2000
	DefaultHealthConcurrency          = 4
	DefaultSearchTimeoutSeconds       = 10
	DefaultSearchDedupe               = true
	DefaultReconnectEnabled           = true
	DefaultReconnectBaseSeconds       = 2
	DefaultReconnectMaxSeconds        = 60
	DefaultReconnectMaxRetries        = 5
	DefaultReconnectRatePerSecond     = 1.0
	DefaultReconnectBurst             = 3
	DefaultHealthFailureThreshold     = 3
	DefaultLatencyMinMs               = 200
	DefaultLatencyMaxMs               = 900
	DefaultObservabilityListenAddress = "127.0.0.1:9464"
	DefaultAPIListenAddress           = "127.0.0.1:8080"
	DefaultAPIRequestTimeoutSeconds   = 30
)
