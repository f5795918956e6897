package health

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/stackops/upctl/internal/pkg/log"
	"github.com/stackops/upctl/internal/pkg/poll"
	"github.com/stackops/upctl/internal/pkg/utils/errors"
)

type dependencies interface {
	Clock() clockwork.Clock
	Logger() log.Logger
}

type Monitor struct {
	clock  clockwork.Clock
	logger log.Logger
}

func NewMonitor(d dependencies) *Monitor {
	return &Monitor{clock: d.Clock(), logger: d.Logger().WithComponent("health")}
}

// WaitUntilHealthy polls the probe at a fixed interval until it reports ready
// or the timeout elapses. It never blocks past the timeout.
// Probe errors are treated as "not yet": a service that is starting up
// may be unreachable or return garbage for a while.
func (m *Monitor) WaitUntilHealthy(ctx context.Context, probe Probe, interval, timeout time.Duration) bool {
	start := m.clock.Now()
	err := poll.Until(ctx, m.clock, interval, timeout, func(ctx context.Context) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		ok, err := probe.Check(ctx)
		if err != nil {
			m.logger.Debugf(ctx, `probe "%s" not ready: %s`, probe.Name(), err)
			return false, nil
		}
		return ok, nil
	})

	switch {
	case err == nil:
		m.logger.Debugf(ctx, `probe "%s" is healthy after %s`, probe.Name(), m.clock.Since(start))
		return true
	case errors.Is(err, poll.ErrTimeout):
		m.logger.Warnf(ctx, `probe "%s" is not healthy after %s`, probe.Name(), timeout)
		return false
	default:
		m.logger.Warnf(ctx, `probe "%s" aborted: %s`, probe.Name(), err)
		return false
	}
}
