package realtime

import (
	"math/rand/v2"
	"time"
)

const (
	DefaultReconnectBaseInterval = 1000 * time.Millisecond
	DefaultMaxReconnectAttempts  = 5
	DefaultMaxBackoff            = 30000 * time.Millisecond
	DefaultMaxJitter             = 1000 * time.Millisecond
)

// JitterFunc returns the random part of a reconnect delay.
type JitterFunc func() time.Duration

// UniformJitter draws uniformly from [0, max).
func UniformJitter(max time.Duration) JitterFunc {
	return func() time.Duration {
		if max <= 0 {
			return 0
		}
		return rand.N(max)
	}
}

// NoJitter keeps reconnect delays deterministic.
func NoJitter() time.Duration {
	return 0
}

// ShouldReconnect reports whether another reconnect attempt is allowed.
func ShouldReconnect(attempts int, maxAttempts int) bool {
	return attempts < maxAttempts
}

// BaseDelay is the deterministic part of the delay before reconnect attempt number
// attempts (1-based): base * 2^(attempts-1), capped at maxBackoff.
func BaseDelay(attempts int, base time.Duration, maxBackoff time.Duration) time.Duration {
	if attempts < 1 {
		attempts = 1
	}

	delay := base
	for i := 1; i < attempts; i++ {
		if delay >= maxBackoff {
			break
		}
		delay *= 2
	}

	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}

// ReconnectDelay adds jitter on top of the capped base delay.  The jitter is never
// folded into the cap.
func ReconnectDelay(attempts int, base time.Duration, maxBackoff time.Duration, jitter JitterFunc) time.Duration {
	delay := BaseDelay(attempts, base, maxBackoff)
	if jitter != nil {
		delay += jitter()
	}
	return delay
}
