package consumer

import (
	"math/rand"
	"time"
)

// retryBackoff returns a full-jitter exponential delay for the given attempt.
// Full jitter keeps concurrent workers from retrying in lockstep against a
// struggling store.
func retryBackoff(attempt int, base, max time.Duration) time.Duration {
	d := base << attempt
	if d > max || d <= 0 {
		d = max
	}
	return time.Duration(rand.Int63n(int64(d) + 1))
}
