package coordinator

import (
	"log/slog"
	"math/rand/v2"
	"time"
)

// DefaultInterval is used when no positive interval is configured
const DefaultInterval = 3 * time.Minute

// jitterFraction bounds the random offset applied to every interval
const jitterFraction = 0.1

// getSyncInterval returns interval, or DefaultInterval when it is not positive
func getSyncInterval(interval time.Duration) time.Duration {
	if interval > 0 {
		return interval
	}
	slog.Warn("Invalid sync interval, using default",
		"interval", interval,
		"default", DefaultInterval)
	return DefaultInterval
}

// withJitter returns base shifted by a random offset of up to ±10%.
func withJitter(base time.Duration) time.Duration {
	jitter := time.Duration(float64(base) * jitterFraction)
	if jitter <= 0 {
		return base
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for polling jitter
	offset := time.Duration(rand.Int64N(int64(2*jitter))) - jitter
	return base + offset
}
