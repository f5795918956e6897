package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackops/upctl/internal/pkg/env"
)

type cliRun struct {
	fs       afero.Fs
	out      bytes.Buffer
	errOut   bytes.Buffer
	exitCode int
}

func runCli(t *testing.T, fs afero.Fs, args ...string) *cliRun {
	t.Helper()
	r := &cliRun{fs: fs}

	// The run log must not leak into the system temp dir
	args = append(args, "--log-file", filepath.Join(t.TempDir(), "run.log"))

	root := NewRootCommand(strings.NewReader(""), &r.out, &r.errOut, env.Empty(), fs)
	root.cmd.SetArgs(args)
	r.exitCode = root.Execute()
	return r
}

func dryRunArgs(t *testing.T) []string {
	t.Helper()
	return []string{
		"run",
		"--dry-run",
		"--new-artifact", "app-2.4.1.war",
		"--target-version", "2.4.1",
		"--config-dirs", "config",
		"--lock-file", filepath.Join(t.TempDir(), "ledger.lock"),
	}
}

func newRunFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "config/domain.xml", []byte("config"), 0o600))
	// The artifact is already downloaded, the dry run must not hit the network
	require.NoError(t, afero.WriteFile(fs, ".upctl/artifacts/app-2.4.1.war", []byte("artifact"), 0o600))
	return fs
}

func TestRunCommand_DryRun(t *testing.T) {
	t.Parallel()
	fs := newRunFs(t)

	r := runCli(t, fs, dryRunArgs(t)...)
	assert.Equal(t, 0, r.exitCode, r.errOut.String())
	assert.Contains(t, r.out.String(), "Upgrade finished.")

	// The ledger records all completed steps
	content, err := afero.ReadFile(fs, ".upctl/ledger")
	require.NoError(t, err)
	assert.Contains(t, string(content), "capture-baseline")
	assert.Contains(t, string(content), "final-report")
}

func TestRunCommand_MissingOptions(t *testing.T) {
	t.Parallel()
	r := runCli(t, afero.NewMemMapFs(), "run", "--dry-run")
	assert.Equal(t, 1, r.exitCode)
	assert.Contains(t, r.errOut.String(), "invalid options")
}

func TestStatusCommand_EmptyLedger(t *testing.T) {
	t.Parallel()
	r := runCli(t, afero.NewMemMapFs(), "status")
	assert.Equal(t, 0, r.exitCode, r.errOut.String())
	assert.Contains(t, r.out.String(), "[ ] capture-baseline")
	assert.Contains(t, r.out.String(), "No baseline captured.")
}

func TestStatusCommand_AfterRun(t *testing.T) {
	t.Parallel()
	fs := newRunFs(t)
	require.Equal(t, 0, runCli(t, fs, dryRunArgs(t)...).exitCode)

	r := runCli(t, fs, "status")
	assert.Equal(t, 0, r.exitCode, r.errOut.String())
	assert.Contains(t, r.out.String(), "[x] final-report")
	assert.Contains(t, r.out.String(), "indexed-documents = 1000")
}

func TestRollbackCommand(t *testing.T) {
	t.Parallel()
	fs := newRunFs(t)
	require.Equal(t, 0, runCli(t, fs, dryRunArgs(t)...).exitCode)

	r := runCli(t, fs,
		"rollback",
		"--dry-run",
		"--new-artifact", "app-2.4.1.war",
		"--target-version", "2.4.1",
		"--config-dirs", "config",
		"--lock-file", filepath.Join(t.TempDir(), "ledger.lock"),
	)
	assert.Equal(t, 0, r.exitCode, r.errOut.String())
	assert.Contains(t, r.out.String(), "Rollback finished.")
}

func TestRollbackCommand_NoSnapshot(t *testing.T) {
	t.Parallel()
	r := runCli(t, afero.NewMemMapFs(),
		"rollback",
		"--dry-run",
		"--new-artifact", "app-2.4.1.war",
		"--target-version", "2.4.1",
		"--config-dirs", "config",
		"--lock-file", filepath.Join(t.TempDir(), "ledger.lock"),
	)
	assert.Equal(t, 1, r.exitCode)
	assert.Contains(t, r.errOut.String(), "no snapshot found")
}

func TestResetCommand_RequiresForce(t *testing.T) {
	t.Parallel()
	r := runCli(t, afero.NewMemMapFs(), "reset")
	assert.Equal(t, 1, r.exitCode)
	assert.Contains(t, r.errOut.String(), "--force")
}

func TestResetCommand(t *testing.T) {
	t.Parallel()
	fs := newRunFs(t)
	lockFile := filepath.Join(t.TempDir(), "ledger.lock")
	require.Equal(t, 0, runCli(t, fs, dryRunArgs(t)...).exitCode)

	r := runCli(t, fs, "reset", "--force", "--lock-file", lockFile)
	assert.Equal(t, 0, r.exitCode, r.errOut.String())

	r = runCli(t, fs, "status")
	assert.Contains(t, r.out.String(), "[ ] capture-baseline")
}
