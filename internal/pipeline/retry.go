package pipeline

import (
	"math/rand/v2"
	"time"
)

// Backoff returns base*2^attempt (attempt is 0-indexed) capped at 30s, plus
// up to 50% jitter.
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base << uint(attempt)
	if d > 30*time.Second || d <= 0 {
		d = 30 * time.Second
	}
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
	}
	return d
}

// MaxWriteAttempts bounds artifact writes: the first try plus one retry.
const MaxWriteAttempts = 2
