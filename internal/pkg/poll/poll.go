// Package poll provides the poll-until-timeout utility shared by
// the health monitor and the verification gate.
package poll

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/stackops/upctl/internal/pkg/utils/errors"
)

// ErrTimeout is returned when the predicate does not report done before the timeout.
var ErrTimeout = errors.New("timeout reached")

// Predicate reports whether the awaited condition holds.
// A false result means "not yet", polling continues.
// An error aborts polling immediately.
type Predicate func(ctx context.Context) (done bool, err error)

// Until polls the predicate at a fixed interval until it reports done,
// the timeout elapses, or the context is cancelled.
// The interval is fixed, not exponential: expected latency is roughly known per service class.
// The predicate is evaluated once immediately, before the first interval.
func Until(ctx context.Context, clk clockwork.Clock, interval, timeout time.Duration, fn Predicate) error {
	if interval <= 0 || timeout <= 0 {
		return errors.Errorf("invalid poll configuration: interval=%s, timeout=%s", interval, timeout)
	}

	timer := clk.NewTimer(timeout)
	defer timer.Stop()
	ticker := clk.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.Chan():
			return ErrTimeout
		case <-ticker.Chan():
			// next attempt
		}
	}
}
