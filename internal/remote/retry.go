package remote

import (
	"math/rand"
	"time"
)

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	if attempt > 5 {
		attempt = 5
	}
	base := time.Duration(1<<uint(attempt)) * 250 * time.Millisecond
	if base > 8*time.Second {
		base = 8 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}
