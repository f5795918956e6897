package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackops/upctl/internal/pkg/artifact"
	"github.com/stackops/upctl/internal/pkg/cmdexec"
	"github.com/stackops/upctl/internal/pkg/diag"
	"github.com/stackops/upctl/internal/pkg/errclass"
	"github.com/stackops/upctl/internal/pkg/health"
	"github.com/stackops/upctl/internal/pkg/log"
	"github.com/stackops/upctl/internal/pkg/service"
	"github.com/stackops/upctl/internal/pkg/utils/errors"
	"github.com/stackops/upctl/internal/pkg/verify"
)

type testDeps struct {
	clock    clockwork.Clock
	logger   log.Logger
	executor *cmdexec.Executor
}

func (d *testDeps) Clock() clockwork.Clock      { return d.clock }
func (d *testDeps) Logger() log.Logger          { return d.logger }
func (d *testDeps) Executor() *cmdexec.Executor { return d.executor }

func newTestCoordinator(t *testing.T, clk clockwork.Clock) *Coordinator {
	t.Helper()
	logger := log.NewDebugLogger()
	d := &testDeps{clock: clk, logger: logger, executor: cmdexec.NewExecutor(logger)}
	classifier, err := errclass.NewClassifier(errclass.DefaultRules())
	require.NoError(t, err)
	return NewCoordinator(
		d,
		health.NewMonitor(d),
		diag.NewCollector(d, afero.NewMemMapFs(), ""),
		classifier,
		Config{
			RestartAttempts:     2,
			RemediationAttempts: 2,
			ReadinessInterval:   1 * time.Second,
			ReadinessTimeout:    10 * time.Second,
		},
	)
}

func TestReconcile(t *testing.T) {
	t.Parallel()
	assert.Equal(t, RemoveOld, Reconcile(true, true))
	assert.Equal(t, InstallNewThenRemoveOld, Reconcile(true, false))
	assert.Equal(t, InstallNew, Reconcile(false, false))
	assert.Equal(t, NoOp, Reconcile(false, true))
}

type fakeInstaller struct {
	calls      []string
	installErr error
}

func (i *fakeInstaller) InstallNew(ctx context.Context) error {
	i.calls = append(i.calls, "install")
	return i.installErr
}

func (i *fakeInstaller) RemoveOld(ctx context.Context) error {
	i.calls = append(i.calls, "remove")
	return nil
}

func TestApply(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newTestCoordinator(t, clockwork.NewFakeClock())

	installer := &fakeInstaller{}
	require.NoError(t, c.Apply(ctx, InstallNewThenRemoveOld, installer))
	assert.Equal(t, []string{"install", "remove"}, installer.calls)

	installer = &fakeInstaller{}
	require.NoError(t, c.Apply(ctx, NoOp, installer))
	assert.Empty(t, installer.calls)

	// A failed installation must not remove the old artifact
	installer = &fakeInstaller{installErr: errors.New("disk full")}
	require.Error(t, c.Apply(ctx, InstallNewThenRemoveOld, installer))
	assert.Equal(t, []string{"install"}, installer.calls)
}

func readinessOf(ctrl service.Controller) health.Probe {
	return health.ProbeFunc("ready", func(ctx context.Context) (bool, error) {
		return ctrl.IsRunning(ctx)
	})
}

func TestEnsureRunning_AlreadyHealthy(t *testing.T) {
	t.Parallel()
	c := newTestCoordinator(t, clockwork.NewFakeClock())

	ctrl := &service.FakeController{ServiceName: "runtime", Running: true}
	require.NoError(t, c.EnsureRunning(context.Background(), ctrl, readinessOf(ctrl)))
	assert.NotContains(t, ctrl.Calls(), "start")
}

func TestEnsureRunning_RestartRecovers(t *testing.T) {
	t.Parallel()
	c := newTestCoordinator(t, clockwork.NewFakeClock())

	ctrl := &service.FakeController{ServiceName: "runtime", Running: false}
	require.NoError(t, c.EnsureRunning(context.Background(), ctrl, readinessOf(ctrl)))
	assert.Contains(t, ctrl.Calls(), "start")
}

func TestEnsureRunning_Escalates(t *testing.T) {
	t.Parallel()
	clk := clockwork.NewFakeClock()
	c := newTestCoordinator(t, clk)

	ctrl := &service.FakeController{
		ServiceName: "runtime",
		Running:     false,
		StartErr:    errors.New("boot loop"),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.EnsureRunning(context.Background(), ctrl, readinessOf(ctrl))
	}()

	// The retry delay between the two restart attempts
	clk.BlockUntil(1)
	clk.Advance(1 * time.Second)

	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), `service "runtime" is not ready after 2 restart attempts`)
	assert.Contains(t, err.Error(), "diagnostic snapshot")
}

func TestRemediate_NotRemediable(t *testing.T) {
	t.Parallel()
	c := newTestCoordinator(t, clockwork.NewFakeClock())

	cause := errors.New("permission denied")
	remedyCalled := false
	err := c.Remediate(context.Background(), cause, func(ctx context.Context) error {
		remedyCalled = true
		return nil
	})
	assert.Equal(t, cause, err)
	assert.False(t, remedyCalled)
}

func TestRemediate_VerificationTimeout(t *testing.T) {
	t.Parallel()
	c := newTestCoordinator(t, clockwork.NewFakeClock())

	cause := errors.PrefixError(verify.ErrNotVerified, "version check")
	err := c.Remediate(context.Background(), cause, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)
}

func TestRemediate_Exhausted(t *testing.T) {
	t.Parallel()
	clk := clockwork.NewFakeClock()
	c := newTestCoordinator(t, clk)

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Remediate(context.Background(), errors.New("connection refused"), func(ctx context.Context) error {
			return errors.New("connection refused")
		})
	}()

	// The retry delay between the two remediation attempts
	clk.BlockUntil(1)
	clk.Advance(1 * time.Second)

	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remediation failed after 2 attempts")
}

func TestRollback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clk := clockwork.NewFakeClock()
	c := newTestCoordinator(t, clk)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "config/domain.xml", []byte("original"), 0o600))

	logger := log.NewDebugLogger()
	backup := artifact.NewBackup(&testDeps{clock: clk, logger: logger, executor: cmdexec.NewExecutor(logger)}, fs, "backup")
	_, err := backup.Snapshot(ctx, "config")
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(fs, "config/domain.xml", []byte("broken"), 0o600))

	ctrl := &service.FakeController{ServiceName: "runtime", Running: true}
	require.NoError(t, c.Rollback(ctx, backup, RestartTarget{Controller: ctrl, Readiness: readinessOf(ctrl)}))

	content, err := afero.ReadFile(fs, "config/domain.xml")
	require.NoError(t, err)
	assert.Equal(t, "original", string(content))
	assert.Contains(t, ctrl.Calls(), "stop")
	assert.Contains(t, ctrl.Calls(), "start")
}

func TestRollback_NoSnapshot(t *testing.T) {
	t.Parallel()
	clk := clockwork.NewFakeClock()
	c := newTestCoordinator(t, clk)

	logger := log.NewDebugLogger()
	backup := artifact.NewBackup(&testDeps{clock: clk, logger: logger, executor: cmdexec.NewExecutor(logger)}, afero.NewMemMapFs(), "backup")

	err := c.Rollback(context.Background(), backup)
	require.ErrorIs(t, err, artifact.ErrNoSnapshot)
}
