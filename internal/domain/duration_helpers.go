package domain

import "time"

// MinLatency returns the lower latency bound.
func (r LatencyRange) MinLatency() time.Duration {
	if r.MinMs <= 0 {
		return 0
	}
	return time.Duration(r.MinMs) * time.Millisecond
}

// MaxLatency returns the upper latency bound, never below MinLatency.
func (r LatencyRange) MaxLatency() time.Duration {
	if r.MaxMs < r.MinMs {
		return r.MinLatency()
	}
	return time.Duration(r.MaxMs) * time.Millisecond
}

// OperationTimeout bounds connect and sync calls.
func (c RuntimeConfig) OperationTimeout() time.Duration {
	return secondsOr(c.OperationTimeoutSeconds, DefaultOperationTimeoutSeconds)
}

// Interval returns the health tick period.
func (c HealthConfig) Interval() time.Duration {
	return secondsOr(c.IntervalSeconds, DefaultHealthIntervalSeconds)
}

// ProbeTimeout bounds a single health probe.
func (c HealthConfig) ProbeTimeout() time.Duration {
	return secondsOr(c.ProbeTimeoutSeconds, DefaultProbeTimeoutSeconds)
}

// SlowThreshold is the response time above which a healthy probe is downgraded to warning.
// Zero disables the warning state.
func (c HealthConfig) SlowThreshold() time.Duration {
	if c.SlowThresholdMs <= 0 {
		return 0
	}
	return time.Duration(c.SlowThresholdMs) * time.Millisecond
}

// Timeout bounds each per-connector search call.
func (c SearchConfig) Timeout() time.Duration {
	return secondsOr(c.TimeoutSeconds, DefaultSearchTimeoutSeconds)
}

// BaseDelay returns the first reconnect backoff.
func (c ReconnectConfig) BaseDelay() time.Duration {
	return secondsOr(c.BaseSeconds, DefaultReconnectBaseSeconds)
}

// MaxDelay caps the reconnect backoff.
func (c ReconnectConfig) MaxDelay() time.Duration {
	return secondsOr(c.MaxSeconds, DefaultReconnectMaxSeconds)
}

// RequestTimeout bounds one API request.
func (c APIConfig) RequestTimeout() time.Duration {
	return secondsOr(c.RequestTimeoutSeconds, DefaultAPIRequestTimeoutSeconds)
}

func secondsOr(seconds, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}
