package ledger

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackops/upctl/internal/pkg/log"
	"github.com/stackops/upctl/internal/pkg/utils/errors"
)

const testPath = "upgrade.ledger"

func testLedger(t *testing.T, fs afero.Fs) *Ledger {
	t.Helper()
	l, err := Open(context.Background(), log.NewDebugLogger(), fs, testPath)
	require.NoError(t, err)
	return l
}

func TestLedger_EmptyFile(t *testing.T) {
	t.Parallel()
	l := testLedger(t, afero.NewMemMapFs())
	assert.False(t, l.IsComplete("some-step"))
	assert.Equal(t, StatusPending, l.Status("some-step"))
}

func TestLedger_Transitions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	l := testLedger(t, fs)

	require.NoError(t, l.MarkRunning(ctx, "stop-runtime"))
	assert.Equal(t, StatusRunning, l.Status("stop-runtime"))

	// Running token is persisted immediately
	content, err := afero.ReadFile(fs, testPath)
	require.NoError(t, err)
	assert.Equal(t, "stop-runtime_running\n", string(content))

	// Completion compacts the transient token
	require.NoError(t, l.MarkComplete(ctx, "stop-runtime"))
	assert.True(t, l.IsComplete("stop-runtime"))
	content, err = afero.ReadFile(fs, testPath)
	require.NoError(t, err)
	assert.Equal(t, "stop-runtime\n", string(content))
}

func TestLedger_MarkFailed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	l := testLedger(t, fs)

	require.NoError(t, l.MarkRunning(ctx, "deploy-app"))
	require.NoError(t, l.MarkFailed(ctx, "deploy-app"))
	assert.Equal(t, StatusFailed, l.Status("deploy-app"))

	content, err := afero.ReadFile(fs, testPath)
	require.NoError(t, err)
	assert.Equal(t, "deploy-app_failed\n", string(content))
}

func TestLedger_CompleteNeverRegresses(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := testLedger(t, afero.NewMemMapFs())

	require.NoError(t, l.MarkRunning(ctx, "step"))
	require.NoError(t, l.MarkComplete(ctx, "step"))
	require.Error(t, l.MarkRunning(ctx, "step"))
	require.Error(t, l.MarkFailed(ctx, "step"))
	assert.True(t, l.IsComplete("step"))
}

func TestLedger_Reload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fs := afero.NewMemMapFs()

	l := testLedger(t, fs)
	require.NoError(t, l.MarkRunning(ctx, "a"))
	require.NoError(t, l.MarkComplete(ctx, "a"))
	require.NoError(t, l.MarkRunning(ctx, "b"))

	// A new instance sees the same state
	reloaded := testLedger(t, fs)
	assert.True(t, reloaded.IsComplete("a"))
	assert.Equal(t, StatusRunning, reloaded.Status("b"))
	assert.Equal(t, []string{"a", "b"}, reloaded.Names())
}

func TestLedger_BareNameTakesPrecedence(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()

	// Transient tokens may remain in the file after a non-atomic write
	require.NoError(t, afero.WriteFile(fs, testPath, []byte("step_running\nstep_failed\nstep\n"), 0o600))
	l := testLedger(t, fs)
	assert.True(t, l.IsComplete("step"))

	require.NoError(t, afero.WriteFile(fs, testPath, []byte("step\nstep_running\n"), 0o600))
	l = testLedger(t, fs)
	assert.True(t, l.IsComplete("step"))
}

func TestLedger_ReconcileInterrupted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, testPath, []byte("a\nb_running\nc_running\nd_failed\n"), 0o600))

	l := testLedger(t, fs)
	interrupted, err := l.ReconcileInterrupted(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, interrupted)

	// Markers are removed, the steps will be re-attempted
	assert.Equal(t, StatusPending, l.Status("b"))
	assert.Equal(t, StatusPending, l.Status("c"))
	assert.True(t, l.IsComplete("a"))
	assert.Equal(t, StatusFailed, l.Status("d"))

	content, err := afero.ReadFile(fs, testPath)
	require.NoError(t, err)
	assert.Equal(t, "a\nd_failed\n", string(content))

	// No interrupted steps on the second call
	interrupted, err = l.ReconcileInterrupted(ctx)
	require.NoError(t, err)
	assert.Empty(t, interrupted)
}

func TestLedger_Reset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	l := testLedger(t, fs)

	require.NoError(t, l.MarkRunning(ctx, "a"))
	require.NoError(t, l.MarkComplete(ctx, "a"))
	require.NoError(t, l.Reset(ctx))

	assert.False(t, l.IsComplete("a"))
	exists, err := afero.Exists(fs, testPath)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLedger_ValidateName(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := testLedger(t, afero.NewMemMapFs())
	require.Error(t, l.MarkRunning(ctx, ""))
	require.Error(t, l.MarkRunning(ctx, "has space"))
	require.Error(t, l.MarkRunning(ctx, "step_running"))
	require.Error(t, l.MarkRunning(ctx, "step_failed"))
}

// failingRenameFs simulates a crash during the atomic replace.
type failingRenameFs struct {
	afero.Fs
}

func (f *failingRenameFs) Rename(oldname, newname string) error {
	return errors.New("simulated rename failure")
}

func TestLedger_CompactFailureKeepsPreviousState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	base := afero.NewMemMapFs()

	// Persist one completed step
	l := testLedger(t, base)
	require.NoError(t, l.MarkRunning(ctx, "a"))
	require.NoError(t, l.MarkComplete(ctx, "a"))

	// Next completion fails during the compaction rewrite
	logger := log.NewDebugLogger()
	failing, err := Open(ctx, logger, &failingRenameFs{Fs: base}, testPath)
	require.NoError(t, err)
	require.NoError(t, failing.MarkRunning(ctx, "b"))
	require.NoError(t, failing.MarkComplete(ctx, "b")) // warning, not error
	assert.Contains(t, logger.WarnAndErrorMessages(), `cannot persist completion of step "b"`)

	// Previously persisted entries are intact
	reloaded := testLedger(t, base)
	assert.True(t, reloaded.IsComplete("a"))
	assert.False(t, reloaded.IsComplete("b"))
}
