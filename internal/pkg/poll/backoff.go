package poll

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// NewBackoff returns the backoff used for bounded remediation retries.
// Randomization is disabled so retry timing is deterministic in tests.
func NewBackoff(maxElapsedTime time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.RandomizationFactor = 0
	b.InitialInterval = 1 * time.Second
	b.Multiplier = 2
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = maxElapsedTime
	b.Reset()
	return b
}
