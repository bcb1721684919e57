package resilience

import (
	"math/rand/v2"
	"time"
)

// Backoff returns base doubled per attempt (attempt 1 is base) with up to
// jitterPct of symmetric jitter, e.g. 0.2 spreads the delay by ±20%.
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	attempt = max(attempt, 1)
	d := base << uint(attempt-1)
	if jitterPct <= 0 {
		return d
	}
	spread := float64(d) * min(jitterPct, 1)
	return d + time.Duration((rand.Float64()*2-1)*spread)
}
