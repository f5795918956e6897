package cli

import (
	"context"
	"path/filepath"

	"github.com/go-resty/resty/v2"

	"github.com/stackops/upctl/internal/pkg/artifact"
	"github.com/stackops/upctl/internal/pkg/baseline"
	"github.com/stackops/upctl/internal/pkg/cli/options"
	"github.com/stackops/upctl/internal/pkg/diag"
	"github.com/stackops/upctl/internal/pkg/errclass"
	"github.com/stackops/upctl/internal/pkg/health"
	"github.com/stackops/upctl/internal/pkg/ledger"
	"github.com/stackops/upctl/internal/pkg/recovery"
	"github.com/stackops/upctl/internal/pkg/service"
	"github.com/stackops/upctl/internal/pkg/up/pipeline"
	"github.com/stackops/upctl/internal/pkg/utils/errors"
	"github.com/stackops/upctl/internal/pkg/verify"
)

// minReindexRatio is the minimum reindex progress relative to the baseline.
const minReindexRatio = 0.8

// wiring holds the components assembled for one command execution.
type wiring struct {
	config   pipeline.Config
	col      pipeline.Collaborators
	backup   *artifact.Backup
	recovery *recovery.Coordinator
	targets  []recovery.RestartTarget
}

type services struct {
	runtime          service.Controller
	index            service.Controller
	deployer         service.Deployer
	admin            service.AdminAPI
	indexAPI         service.IndexAPI
	runtimeReadiness health.Probe
	indexReadiness   health.Probe
}

// build assembles all components. The ledger lock is taken only by
// mutating commands, a read-only status must not block a running upgrade.
func (root *rootCommand) build(ctx context.Context, d *provider, o options.UpgradeOptions, withLock bool) (*wiring, error) {
	for _, dir := range []string{filepath.Dir(o.LedgerPath), o.BackupDir, o.ArtifactsDir} {
		if err := root.fs.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	var ledgerOpts []ledger.Option
	if withLock {
		ledgerOpts = append(ledgerOpts, ledger.WithFileLock(o.LockPath))
	}
	stepLedger, err := ledger.Open(ctx, d.Logger(), root.fs, o.LedgerPath, ledgerOpts...)
	if err != nil {
		return nil, err
	}

	classifier, err := errclass.NewClassifier(errclass.DefaultRules())
	if err != nil {
		return nil, err
	}

	svc, err := root.buildServices(d, o, classifier)
	if err != nil {
		return nil, err
	}

	tracker := baseline.NewTracker(d, root.fs, o.BaselinePath,
		baseline.SourceFunc(pipeline.MetricIndexedDocuments, func(ctx context.Context) (int, error) {
			return svc.indexAPI.Count(ctx, "*")
		}),
		baseline.SourceFunc(pipeline.MetricDeployedApps, func(ctx context.Context) (int, error) {
			deployed, err := svc.deployer.ListDeployed(ctx)
			return len(deployed), err
		}),
	)

	var logPath string
	if root.logFile != nil {
		logPath = root.logFile.Path()
	}
	coordinator := recovery.NewCoordinator(
		d,
		health.NewMonitor(d),
		diag.NewCollector(d, root.fs, logPath),
		classifier,
		recovery.DefaultConfig(),
	)

	w := &wiring{
		config: pipeline.Config{
			OldArtifact:      o.OldArtifact,
			NewArtifact:      o.NewArtifact,
			ArtifactURL:      o.ArtifactURL,
			ArtifactChecksum: o.ArtifactChecksum,
			TargetVersion:    o.TargetVersion,
			AppsDir:          o.AppsDir,
			ConfigDirs:       o.ConfigDirs,
			MinReindexRatio:  minReindexRatio,
		},
		col: pipeline.Collaborators{
			Fs:                 root.fs,
			Ledger:             stepLedger,
			Gate:               verify.NewGate(d),
			Recovery:           coordinator,
			Baseline:           tracker,
			Backup:             artifact.NewBackup(d, root.fs, o.BackupDir),
			Store:              artifact.NewStore(d, resty.New(), root.fs, o.ArtifactsDir),
			Runtime:            svc.runtime,
			Index:              svc.index,
			Deployer:           svc.deployer,
			Admin:              svc.admin,
			IndexAPI:           svc.indexAPI,
			RuntimeReadiness:   svc.runtimeReadiness,
			IndexReadiness:     svc.indexReadiness,
			UpgradeIndexConfig: root.indexConfigAction(d, o),
		},
		recovery: coordinator,
		targets: []recovery.RestartTarget{
			{Controller: svc.runtime, Readiness: svc.runtimeReadiness},
			{Controller: svc.index, Readiness: svc.indexReadiness},
		},
	}
	w.backup = w.col.Backup
	return w, nil
}

func (root *rootCommand) buildServices(d *provider, o options.UpgradeOptions, classifier *errclass.Classifier) (*services, error) {
	if o.DryRun {
		return dryRunServices(o), nil
	}

	runtime, err := service.NewCLIController(d, classifier, "runtime", systemdCommands(o.RuntimeService))
	if err != nil {
		return nil, err
	}
	index, err := service.NewCLIController(d, classifier, "index", systemdCommands(o.IndexService))
	if err != nil {
		return nil, err
	}
	deployer, err := service.NewCLIDeployer(d, classifier, service.DeployCommands{
		Bin:          o.DeployBin,
		ListArgs:     []string{"list-applications"},
		DeployArgs:   []string{"deploy"},
		UndeployArgs: []string{"undeploy"},
	})
	if err != nil {
		return nil, err
	}

	client := resty.New()
	return &services{
		runtime:  runtime,
		index:    index,
		deployer: deployer,
		admin:    service.NewHTTPAdminAPI(client, o.AdminURL),
		indexAPI: service.NewHTTPIndexAPI(client, o.IndexURL),
		runtimeReadiness: health.NewHTTPProbe(
			"runtime-ready", client, o.AdminURL+"/admin/about", health.ExpectStatusOK(),
		),
		indexReadiness: health.NewHTTPProbe(
			"index-ready", client, o.IndexURL+"/reindex/status", health.ExpectStatusOK(),
		),
	}, nil
}

// dryRunServices replace the real installation, the run then exercises
// the whole pipeline without touching any system.
func dryRunServices(o options.UpgradeOptions) *services {
	runtime := &service.FakeController{ServiceName: "runtime", Running: true}
	index := &service.FakeController{ServiceName: "index", Running: true}
	var deployed []string
	if o.OldArtifact != "" {
		deployed = []string{deploymentName(o.OldArtifact)}
	}
	return &services{
		runtime:  runtime,
		index:    index,
		deployer: &service.FakeDeployer{Deployed: deployed},
		admin:    &service.FakeAdminAPI{AppVersion: o.TargetVersion},
		indexAPI: &service.FakeIndexAPI{Documents: 1000},
		runtimeReadiness: health.ProbeFunc("runtime-ready", func(ctx context.Context) (bool, error) {
			return runtime.IsRunning(ctx)
		}),
		indexReadiness: health.ProbeFunc("index-ready", func(ctx context.Context) (bool, error) {
			return index.IsRunning(ctx)
		}),
	}
}

func (root *rootCommand) indexConfigAction(d *provider, o options.UpgradeOptions) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if o.IndexConfigCmd == "" || o.DryRun {
			d.Logger().Info(ctx, "no index config change configured, skipping")
			return nil
		}
		if _, err := d.Executor().Run(ctx, "sh", "-c", o.IndexConfigCmd); err != nil {
			return errors.PrefixError(err, "cannot apply index config change")
		}
		return nil
	}
}

func systemdCommands(name string) service.ControlCommands {
	return service.ControlCommands{
		Bin:          "systemctl",
		StartArgs:    []string{"start", name},
		StopArgs:     []string{"stop", name},
		RestartArgs:  []string{"restart", name},
		StatusArgs:   []string{"is-active", name},
		RunningMatch: `^active`,
	}
}

func deploymentName(artifactName string) string {
	return artifactName[:len(artifactName)-len(filepath.Ext(artifactName))]
}
