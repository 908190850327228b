package reconnect

import "time"

type backoff struct {
	base time.Duration
	max  time.Duration
}

func newBackoff(base, maxDelay time.Duration) backoff {
	if base <= 0 {
		base = time.Second
	}
	if maxDelay < base {
		maxDelay = base
	}
	return backoff{base: base, max: maxDelay}
}

// Delay returns the wait before retry number attempt (zero based).
func (b backoff) Delay(attempt int) time.Duration {
	delay := b.base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= b.max {
			return b.max
		}
	}
	return delay
}
