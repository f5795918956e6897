package cmdexec

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackops/upctl/internal/pkg/log"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell is required")
	}
}

func TestExecutor_Direct(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	e := NewExecutor(log.NewDebugLogger(), Direct())
	result, err := e.Run(context.Background(), "sh", "-c", "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "direct", result.Strategy)
	assert.Equal(t, "hello\n", result.StdOut)
	assert.Equal(t, 0, result.ExitCode)
}

func TestExecutor_Failure(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	e := NewExecutor(log.NewDebugLogger(), Direct())
	result, err := e.Run(context.Background(), "sh", "-c", "echo oops >&2; exit 3")
	require.Error(t, err)
	assert.Equal(t, 3, result.ExitCode)
	assert.Contains(t, result.StdErr, "oops")
	assert.Contains(t, err.Error(), `command "sh" failed`)
}

func TestExecutor_StrategyFallbackOrder(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	// The first strategy produces a non-existing command, the second succeeds.
	broken := Strategy{
		Name: "broken",
		Wrap: func(name string, args []string) (string, []string) {
			return "definitely-not-a-command-xyz", nil
		},
	}

	e := NewExecutor(log.NewDebugLogger(), broken, Direct())
	result, err := e.Run(context.Background(), "sh", "-c", "echo fallback")
	require.NoError(t, err)
	assert.Equal(t, "direct", result.Strategy)
	assert.Equal(t, "fallback\n", result.StdOut)
}

func TestExecutor_AllStrategiesFail(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	e := NewExecutor(log.NewDebugLogger(), Direct(), Direct())
	_, err := e.Run(context.Background(), "sh", "-c", "exit 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `strategy "direct"`)
}

func TestExecutor_DefaultStrategy(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	e := NewExecutor(log.NewDebugLogger())
	result, err := e.Run(context.Background(), "sh", "-c", "true")
	require.NoError(t, err)
	assert.Equal(t, "direct", result.Strategy)
}
