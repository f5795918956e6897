// Package verify gates step completion on the step's external effect
// actually taking hold.
package verify

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/stackops/upctl/internal/pkg/health"
	"github.com/stackops/upctl/internal/pkg/log"
	"github.com/stackops/upctl/internal/pkg/poll"
	"github.com/stackops/upctl/internal/pkg/utils/errors"
)

// ErrNotVerified is a distinguished outcome: the observed value did not match
// the expectation before the timeout. The caller may attempt remediation
// before declaring the step failed.
var ErrNotVerified = errors.New("verification timeout")

const (
	// ShortInterval/ShortTimeout suit local service readiness.
	ShortInterval = 5 * time.Second
	ShortTimeout  = 2 * time.Minute
	// LongInterval/LongTimeout suit steps that trigger background data migration.
	LongInterval = 15 * time.Second
	LongTimeout  = 10 * time.Minute
)

// Check pairs a probe with its polling bounds.
type Check struct {
	Probe    health.Probe
	Interval time.Duration
	Timeout  time.Duration
}

// Short builds a check with bounds for local service readiness.
func Short(probe health.Probe) Check {
	return Check{Probe: probe, Interval: ShortInterval, Timeout: ShortTimeout}
}

// Long builds a check with bounds for background data migration.
// The probe should report done once a minimum progress threshold is observed:
// background completion is not the orchestrator's responsibility past that point.
func Long(probe health.Probe) Check {
	return Check{Probe: probe, Interval: LongInterval, Timeout: LongTimeout}
}

type dependencies interface {
	Clock() clockwork.Clock
	Logger() log.Logger
}

type Gate struct {
	clock  clockwork.Clock
	logger log.Logger
}

func NewGate(d dependencies) *Gate {
	return &Gate{clock: d.Clock(), logger: d.Logger().WithComponent("verify")}
}

// Verify polls the check until the expectation holds or the timeout elapses.
// An unreachable service and a reachable service with a not-yet-matching value
// are both "not yet". On timeout, ErrNotVerified is returned.
func (g *Gate) Verify(ctx context.Context, check Check) error {
	err := poll.Until(ctx, g.clock, check.Interval, check.Timeout, func(ctx context.Context) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		ok, err := check.Probe.Check(ctx)
		if err != nil {
			g.logger.Debugf(ctx, `verification "%s" not yet: %s`, check.Probe.Name(), err)
			return false, nil
		}
		return ok, nil
	})

	switch {
	case err == nil:
		g.logger.Infof(ctx, `verified "%s"`, check.Probe.Name())
		return nil
	case errors.Is(err, poll.ErrTimeout):
		return errors.PrefixErrorf(ErrNotVerified, `check "%s" did not pass within %s`, check.Probe.Name(), check.Timeout)
	default:
		return err
	}
}
