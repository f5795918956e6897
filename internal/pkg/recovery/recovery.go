// Package recovery reconciles mixed installation state, restarts crashed
// managed services and performs explicit rollback.
package recovery

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"

	"github.com/stackops/upctl/internal/pkg/artifact"
	"github.com/stackops/upctl/internal/pkg/diag"
	"github.com/stackops/upctl/internal/pkg/errclass"
	"github.com/stackops/upctl/internal/pkg/health"
	"github.com/stackops/upctl/internal/pkg/log"
	"github.com/stackops/upctl/internal/pkg/poll"
	"github.com/stackops/upctl/internal/pkg/service"
	"github.com/stackops/upctl/internal/pkg/utils/errors"
	"github.com/stackops/upctl/internal/pkg/verify"
)

// Decision is the reconciliation outcome for an observed old/new artifact state.
type Decision int

const (
	NoOp Decision = iota
	RemoveOld
	InstallNew
	InstallNewThenRemoveOld
)

func (d Decision) String() string {
	switch d {
	case RemoveOld:
		return "remove old"
	case InstallNew:
		return "install new"
	case InstallNewThenRemoveOld:
		return "install new, then remove old"
	default:
		return "no-op"
	}
}

// Reconcile maps the observed presence of the old and new artifact to a decision.
// The old artifact is never reintroduced, only removed.
func Reconcile(oldPresent, newPresent bool) Decision {
	switch {
	case oldPresent && newPresent:
		return RemoveOld
	case oldPresent:
		return InstallNewThenRemoveOld
	case newPresent:
		return NoOp
	default:
		return InstallNew
	}
}

// Installer provides the callbacks a reconciliation decision is applied with.
type Installer interface {
	InstallNew(ctx context.Context) error
	RemoveOld(ctx context.Context) error
}

type dependencies interface {
	Clock() clockwork.Clock
	Logger() log.Logger
}

type Config struct {
	// RestartAttempts bounds crash-recovery restarts of one service.
	RestartAttempts int
	// RemediationAttempts bounds retries of a remediable step failure.
	RemediationAttempts int
	ReadinessInterval   time.Duration
	ReadinessTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		RestartAttempts:     3,
		RemediationAttempts: 2,
		ReadinessInterval:   verify.ShortInterval,
		ReadinessTimeout:    verify.ShortTimeout,
	}
}

type Coordinator struct {
	clock      clockwork.Clock
	logger     log.Logger
	monitor    *health.Monitor
	diag       *diag.Collector
	classifier *errclass.Classifier
	config     Config
}

func NewCoordinator(d dependencies, monitor *health.Monitor, collector *diag.Collector, classifier *errclass.Classifier, config Config) *Coordinator {
	return &Coordinator{
		clock:      d.Clock(),
		logger:     d.Logger().WithComponent("recovery"),
		monitor:    monitor,
		diag:       collector,
		classifier: classifier,
		config:     config,
	}
}

// Apply executes a reconciliation decision through the installer callbacks.
func (c *Coordinator) Apply(ctx context.Context, decision Decision, installer Installer) error {
	c.logger.Infof(ctx, `reconciliation: %s`, decision)
	switch decision {
	case RemoveOld:
		return installer.RemoveOld(ctx)
	case InstallNew:
		return installer.InstallNew(ctx)
	case InstallNewThenRemoveOld:
		if err := installer.InstallNew(ctx); err != nil {
			return err
		}
		return installer.RemoveOld(ctx)
	default:
		return nil
	}
}

// EnsureRunning brings a crashed or unhealthy service back up.
// Restarts are bounded, on exhaustion the error carries a diagnostic snapshot.
func (c *Coordinator) EnsureRunning(ctx context.Context, svc service.Controller, readiness health.Probe) error {
	running, err := svc.IsRunning(ctx)
	if err != nil {
		return errors.PrefixErrorf(err, `cannot determine state of service "%s"`, svc.Name())
	}
	if running && c.monitor.WaitUntilHealthy(ctx, readiness, c.config.ReadinessInterval, c.config.ReadinessTimeout) {
		return nil
	}

	retry := poll.NewBackoff(0)
	for attempt := 1; attempt <= c.config.RestartAttempts; attempt++ {
		c.logger.Warnf(ctx, `service "%s" is not ready, restarting (attempt %d/%d)`, svc.Name(), attempt, c.config.RestartAttempts)
		if err := svc.Restart(ctx); err != nil {
			c.logger.Warnf(ctx, `cannot restart service "%s": %s`, svc.Name(), err)
		} else if c.monitor.WaitUntilHealthy(ctx, readiness, c.config.ReadinessInterval, c.config.ReadinessTimeout) {
			return nil
		}
		if attempt < c.config.RestartAttempts {
			if err := c.sleep(ctx, retry.NextBackOff()); err != nil {
				return err
			}
		}
	}

	snapshot := c.diag.Collect(ctx)
	return errors.Errorf(
		"service \"%s\" is not ready after %d restart attempts\n%s",
		svc.Name(), c.config.RestartAttempts, snapshot.String(),
	)
}

// Remediate retries a remediable step failure a bounded number of times.
// Only a verification timeout or a transient error class is remediable,
// everything else is returned unchanged and becomes the step failure.
func (c *Coordinator) Remediate(ctx context.Context, cause error, remedy func(ctx context.Context) error) error {
	if !c.remediable(cause) {
		return cause
	}

	retry := poll.NewBackoff(0)
	for attempt := 1; attempt <= c.config.RemediationAttempts; attempt++ {
		c.logger.Warnf(ctx, `remediating (attempt %d/%d): %s`, attempt, c.config.RemediationAttempts, cause)
		err := remedy(ctx)
		if err == nil {
			c.logger.Infof(ctx, "remediation succeeded")
			return nil
		}
		if !c.remediable(err) {
			return err
		}
		cause = err
		if attempt < c.config.RemediationAttempts {
			if err := c.sleep(ctx, retry.NextBackOff()); err != nil {
				return err
			}
		}
	}
	return errors.PrefixErrorf(cause, "remediation failed after %d attempts", c.config.RemediationAttempts)
}

func (c *Coordinator) remediable(err error) bool {
	if errors.Is(err, verify.ErrNotVerified) {
		return true
	}
	return c.classifier.ClassifyErr(err) == errclass.Transient
}

// RestartTarget pairs a service with its readiness probe for rollback.
type RestartTarget struct {
	Controller service.Controller
	Readiness  health.Probe
}

// Rollback restores the configuration snapshot and brings the services back up.
// It is never triggered automatically and fails immediately without a snapshot.
func (c *Coordinator) Rollback(ctx context.Context, backup *artifact.Backup, targets ...RestartTarget) error {
	manifest, err := backup.Restore(ctx)
	if err != nil {
		return errors.PrefixError(err, "rollback failed")
	}
	c.logger.Infof(ctx, `restored snapshot from %s`, manifest.CreatedAt.Format(time.RFC3339))

	for _, target := range targets {
		if err := target.Controller.Restart(ctx); err != nil {
			return errors.PrefixErrorf(err, `rollback: cannot restart service "%s"`, target.Controller.Name())
		}
		if err := c.EnsureRunning(ctx, target.Controller, target.Readiness); err != nil {
			return errors.PrefixError(err, "rollback")
		}
	}
	return nil
}

func (c *Coordinator) sleep(ctx context.Context, delay time.Duration) error {
	if delay == backoff.Stop {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(delay):
		return nil
	}
}
