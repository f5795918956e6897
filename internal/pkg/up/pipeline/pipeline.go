// Package pipeline wires the upgrade steps into one fixed, ordered run.
package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/stackops/upctl/internal/pkg/artifact"
	"github.com/stackops/upctl/internal/pkg/baseline"
	"github.com/stackops/upctl/internal/pkg/health"
	"github.com/stackops/upctl/internal/pkg/ledger"
	"github.com/stackops/upctl/internal/pkg/log"
	"github.com/stackops/upctl/internal/pkg/recovery"
	"github.com/stackops/upctl/internal/pkg/runner"
	"github.com/stackops/upctl/internal/pkg/service"
	"github.com/stackops/upctl/internal/pkg/utils/errors"
	"github.com/stackops/upctl/internal/pkg/verify"
)

// Step names, in execution order. The names are ledger keys:
// renaming a step makes previous runs forget its completion.
const (
	StepCaptureBaseline    = "capture-baseline"
	StepBackupConfig       = "backup-config"
	StepUndeployOldApp     = "undeploy-old-app"
	StepStopRuntime        = "stop-runtime"
	StepReconcileRuntime   = "reconcile-runtime"
	StepStartRuntime       = "start-runtime"
	StepDeployNewApp       = "deploy-new-app"
	StepUpgradeIndexConfig = "upgrade-index-config"
	StepRestartIndex       = "restart-index"
	StepReindex            = "reindex"
	StepFinalReport        = "final-report"
)

// StepNames returns all step names in execution order.
func StepNames() []string {
	return []string{
		StepCaptureBaseline,
		StepBackupConfig,
		StepUndeployOldApp,
		StepStopRuntime,
		StepReconcileRuntime,
		StepStartRuntime,
		StepDeployNewApp,
		StepUpgradeIndexConfig,
		StepRestartIndex,
		StepReindex,
		StepFinalReport,
	}
}

// Baseline metric names.
const (
	MetricIndexedDocuments = "indexed-documents"
	MetricDeployedApps     = "deployed-apps"
)

type Config struct {
	// OldArtifact and NewArtifact are artifact file names, e.g. "app-2.4.0.war".
	OldArtifact      string
	NewArtifact      string
	ArtifactURL      string
	ArtifactChecksum string
	// TargetVersion is the application version expected after the upgrade.
	TargetVersion string
	// AppsDir is the runtime directory where deployed applications are expanded.
	AppsDir string
	// ConfigDirs are snapshotted before any destructive step.
	ConfigDirs []string
	// MinReindexRatio is the fraction of the baseline document count that must
	// be indexed again before the reindex step is considered verified.
	MinReindexRatio float64
}

// Collaborators are the wired components and managed service surfaces.
type Collaborators struct {
	Fs       afero.Fs
	Ledger   *ledger.Ledger
	Gate     *verify.Gate
	Recovery *recovery.Coordinator
	Baseline *baseline.Tracker
	Backup   *artifact.Backup
	Store    *artifact.Store

	Runtime  service.Controller
	Index    service.Controller
	Deployer service.Deployer
	Admin    service.AdminAPI
	IndexAPI service.IndexAPI

	// RuntimeReadiness and IndexReadiness probe the respective service.
	RuntimeReadiness health.Probe
	IndexReadiness   health.Probe

	// UpgradeIndexConfig applies the deployment-specific index schema change.
	UpgradeIndexConfig runner.Action
}

type dependencies interface {
	Clock() clockwork.Clock
	Logger() log.Logger
}

type Pipeline struct {
	logger log.Logger
	runner *runner.Runner
	config Config
	c      Collaborators
}

func New(d dependencies, config Config, c Collaborators) (*Pipeline, error) {
	errs := errors.NewMultiError()
	if config.NewArtifact == "" {
		errs.Append(errors.New("missing new artifact name"))
	}
	if config.TargetVersion == "" {
		errs.Append(errors.New("missing target version"))
	}
	if c.UpgradeIndexConfig == nil {
		errs.Append(errors.New("missing index config upgrade action"))
	}
	if config.MinReindexRatio <= 0 || config.MinReindexRatio > 1 {
		errs.Append(errors.Errorf("invalid minimum reindex ratio %f", config.MinReindexRatio))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, errors.PrefixError(err, "invalid pipeline setup")
	}

	return &Pipeline{
		logger: d.Logger().WithComponent("pipeline"),
		runner: runner.New(d.Logger(), c.Ledger),
		config: config,
		c:      c,
	}, nil
}

// Run executes the steps in order and halts on the first error.
// A re-run skips completed steps, interrupted steps are re-attempted.
func (p *Pipeline) Run(ctx context.Context) error {
	interrupted, err := p.c.Ledger.ReconcileInterrupted(ctx)
	if err != nil {
		return err
	}
	if len(interrupted) > 0 {
		p.logger.Warnf(ctx, `re-attempting interrupted step(s): %s`, strings.Join(interrupted, ", "))
	}

	steps := []struct {
		name string
		run  func(ctx context.Context) error
	}{
		{StepCaptureBaseline, p.captureBaseline},
		{StepBackupConfig, p.backupConfig},
		{StepUndeployOldApp, p.undeployOldApp},
		{StepStopRuntime, p.stopRuntime},
		{StepReconcileRuntime, p.reconcileRuntime},
		{StepStartRuntime, p.startRuntime},
		{StepDeployNewApp, p.deployNewApp},
		{StepUpgradeIndexConfig, p.upgradeIndexConfig},
		{StepRestartIndex, p.restartIndex},
		{StepReindex, p.reindex},
		{StepFinalReport, p.finalReport},
	}
	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			return err
		}
	}

	p.logger.Info(ctx, "upgrade finished")
	return nil
}

// captureBaseline measures the pre-change metrics once. An existing baseline
// file is kept: on resume the destructive steps may have run already and a
// fresh measurement would no longer be a baseline.
func (p *Pipeline) captureBaseline(ctx context.Context) error {
	return p.runner.Run(ctx, StepCaptureBaseline, func(ctx context.Context) error {
		if exists, err := p.c.Baseline.Exists(); err != nil {
			return err
		} else if exists {
			p.logger.Info(ctx, "baseline already captured, keeping it")
			return nil
		}
		_, err := p.c.Baseline.Capture(ctx)
		return err
	})
}

func (p *Pipeline) backupConfig(ctx context.Context) error {
	return p.runner.Run(ctx, StepBackupConfig, func(ctx context.Context) error {
		_, err := p.c.Backup.Snapshot(ctx, p.config.ConfigDirs...)
		return err
	})
}

func (p *Pipeline) undeployOldApp(ctx context.Context) error {
	return p.runner.Run(ctx, StepUndeployOldApp, func(ctx context.Context) error {
		if p.config.OldArtifact == "" {
			p.logger.Info(ctx, "no old artifact configured, nothing to undeploy")
			return nil
		}
		deployed, err := p.c.Deployer.ListDeployed(ctx)
		if err != nil {
			return err
		}
		if !artifact.IsDeployed(deployed, p.config.OldArtifact) {
			p.logger.Infof(ctx, `"%s" is not deployed, nothing to undeploy`, p.config.OldArtifact)
			return nil
		}
		return p.c.Deployer.Undeploy(ctx, deploymentName(p.config.OldArtifact))
	})
}

func (p *Pipeline) stopRuntime(ctx context.Context) error {
	return p.runner.Run(ctx, StepStopRuntime, func(ctx context.Context) error {
		return p.c.Runtime.Stop(ctx)
	})
}

// reconcileRuntime resolves mixed state left by an interrupted previous run:
// a leftover expanded old application and a missing new artifact.
func (p *Pipeline) reconcileRuntime(ctx context.Context) error {
	return p.runner.Run(ctx, StepReconcileRuntime, func(ctx context.Context) error {
		oldPresent, err := p.oldAppDirExists()
		if err != nil {
			return err
		}
		newPresent, err := p.c.Store.Exists(p.config.NewArtifact)
		if err != nil {
			return err
		}
		decision := recovery.Reconcile(oldPresent, newPresent)
		return p.c.Recovery.Apply(ctx, decision, &installer{pipeline: p})
	})
}

func (p *Pipeline) startRuntime(ctx context.Context) error {
	check := verify.Short(p.c.RuntimeReadiness)
	return p.runner.Run(ctx, StepStartRuntime,
		func(ctx context.Context) error {
			return p.c.Runtime.Start(ctx)
		},
		p.verified(check, func(ctx context.Context) error {
			return p.c.Recovery.EnsureRunning(ctx, p.c.Runtime, p.c.RuntimeReadiness)
		}),
	)
}

func (p *Pipeline) deployNewApp(ctx context.Context) error {
	versionCheck := verify.Short(health.ProbeFunc("application-version", func(ctx context.Context) (bool, error) {
		version, err := p.c.Admin.Version(ctx)
		if err != nil {
			return false, err
		}
		return version == p.config.TargetVersion, nil
	}))
	// Background migrations may keep running long after the deploy returns
	migrationCheck := verify.Long(health.ProbeFunc("pending-migrations", func(ctx context.Context) (bool, error) {
		pending, err := p.c.Admin.PendingMigrations(ctx)
		if err != nil {
			return false, err
		}
		return pending == 0, nil
	}))

	return p.runner.Run(ctx, StepDeployNewApp,
		func(ctx context.Context) error {
			if err := p.fetchNewArtifact(ctx); err != nil {
				return err
			}
			return p.c.Deployer.Deploy(ctx, p.c.Store.Path(p.config.NewArtifact))
		},
		p.verified(versionCheck, func(ctx context.Context) error {
			return p.c.Recovery.EnsureRunning(ctx, p.c.Runtime, p.c.RuntimeReadiness)
		}),
		p.verified(migrationCheck, nil),
	)
}

func (p *Pipeline) upgradeIndexConfig(ctx context.Context) error {
	return p.runner.Run(ctx, StepUpgradeIndexConfig, p.c.UpgradeIndexConfig)
}

func (p *Pipeline) restartIndex(ctx context.Context) error {
	check := verify.Short(p.c.IndexReadiness)
	return p.runner.Run(ctx, StepRestartIndex,
		func(ctx context.Context) error {
			return p.c.Index.Restart(ctx)
		},
		p.verified(check, func(ctx context.Context) error {
			return p.c.Recovery.EnsureRunning(ctx, p.c.Index, p.c.IndexReadiness)
		}),
	)
}

// reindex triggers a full reindex and waits for a minimum progress threshold
// derived from the baseline document count. Reaching the threshold is enough,
// background indexing past that point is not the orchestrator's concern.
func (p *Pipeline) reindex(ctx context.Context) error {
	b, err := p.c.Baseline.Load()
	if err != nil {
		return errors.PrefixError(err, "cannot determine reindex threshold")
	}
	threshold := int(float64(b.Metrics[MetricIndexedDocuments]) * p.config.MinReindexRatio)

	progressCheck := verify.Long(health.ProbeFunc("reindex-progress", func(ctx context.Context) (bool, error) {
		indexed, err := p.c.IndexAPI.IndexedCount(ctx)
		if err != nil {
			return false, err
		}
		return indexed >= threshold, nil
	}))

	return p.runner.Run(ctx, StepReindex,
		func(ctx context.Context) error {
			p.logger.Infof(ctx, `starting reindex, waiting for at least %d document(s)`, threshold)
			return p.c.IndexAPI.TriggerReindex(ctx)
		},
		p.verified(progressCheck, nil),
	)
}

// finalReport classifies post-change measurements against the baseline.
// The classification is reporting only, a Warning does not fail the run.
func (p *Pipeline) finalReport(ctx context.Context) error {
	return p.runner.Run(ctx, StepFinalReport, func(ctx context.Context) error {
		b, err := p.c.Baseline.Load()
		if err != nil {
			return err
		}
		entries, err := p.c.Baseline.Report(ctx, b)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			message := `metric "%s": baseline %d, current %d (%s)`
			if entry.Level == baseline.Warning {
				p.logger.Warnf(ctx, message, entry.Metric, entry.Baseline, entry.Current, entry.Level)
			} else {
				p.logger.Infof(ctx, message, entry.Metric, entry.Baseline, entry.Current, entry.Level)
			}
		}
		return nil
	})
}

// verified adapts a gate check into a step verification. A verification
// timeout is handed to the recovery coordinator before failing the step.
func (p *Pipeline) verified(check verify.Check, remedy func(ctx context.Context) error) runner.Verification {
	return func(ctx context.Context) error {
		err := p.c.Gate.Verify(ctx, check)
		if err == nil || remedy == nil {
			return err
		}
		return p.c.Recovery.Remediate(ctx, err, func(ctx context.Context) error {
			if err := remedy(ctx); err != nil {
				return err
			}
			return p.c.Gate.Verify(ctx, check)
		})
	}
}

func (p *Pipeline) fetchNewArtifact(ctx context.Context) error {
	if exists, err := p.c.Store.Exists(p.config.NewArtifact); err != nil {
		return err
	} else if exists {
		p.logger.Infof(ctx, `artifact "%s" is already downloaded`, p.config.NewArtifact)
		return nil
	}
	_, err := p.c.Store.Fetch(ctx, p.config.ArtifactURL, p.config.NewArtifact, p.config.ArtifactChecksum)
	return err
}

func (p *Pipeline) oldAppDirExists() (bool, error) {
	if p.config.OldArtifact == "" || p.config.AppsDir == "" {
		return false, nil
	}
	return afero.DirExists(p.c.Fs, filepath.Join(p.config.AppsDir, deploymentName(p.config.OldArtifact)))
}

// installer applies a reconciliation decision:
// the new artifact is fetched, the leftover old application dir is removed.
type installer struct {
	pipeline *Pipeline
}

func (i *installer) InstallNew(ctx context.Context) error {
	return i.pipeline.fetchNewArtifact(ctx)
}

func (i *installer) RemoveOld(ctx context.Context) error {
	p := i.pipeline
	dir := filepath.Join(p.config.AppsDir, deploymentName(p.config.OldArtifact))
	p.logger.Infof(ctx, `removing leftover application dir "%s"`, dir)
	return p.c.Fs.RemoveAll(dir)
}

func deploymentName(artifactName string) string {
	return strings.TrimSuffix(artifactName, filepath.Ext(artifactName))
}
