package syncer

import (
	"math/rand/v2"
	"time"
)

// backoffDelay doubles the base delay per attempt, caps it, and applies
// full jitter so a fleet of hooks retrying after the same outage does
// not stampede the service.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	d := base << (attempt - 1)
	if d > max || d <= 0 {
		d = max
	}
	return time.Duration(rand.Int64N(int64(d))) + d/2
}
