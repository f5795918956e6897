package log

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/keboola/go-utils/pkg/wildcards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCliLogger_File(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	filePath := filepath.Join(t.TempDir(), "run.log")
	file, err := NewLogFile(filePath)
	require.NoError(t, err)

	var stdout, stderr bytes.Buffer
	logger := NewCliLogger(&stdout, &stderr, file, false)

	logger.Debug(ctx, "Debug msg")
	logger.Info(ctx, "Info msg")
	logger.Warn(ctx, "Warn msg")
	logger.Error(ctx, "Error msg")
	require.NoError(t, file.File().Close())

	// All levels go to the file, with timestamps
	expected := `
%s	DEBUG	Debug msg
%s	INFO	Info msg
%s	WARN	Warn msg
%s	ERROR	Error msg
`
	content, err := os.ReadFile(filePath)
	require.NoError(t, err)
	wildcards.Assert(t, expected, string(content))
}

func TestCliLogger_VerboseFalse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var stdout, stderr bytes.Buffer
	logger := NewCliLogger(&stdout, &stderr, nil, false)

	logger.Debug(ctx, "Debug msg")
	logger.Info(ctx, "Info msg")
	logger.Warn(ctx, "Warn msg")
	logger.Error(ctx, "Error msg")

	assert.Equal(t, "Info msg\n", stdout.String())
	wildcards.Assert(t, "WARN	Warn msg\nERROR	Error msg\n", stderr.String())
}

func TestCliLogger_VerboseTrue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var stdout, stderr bytes.Buffer
	logger := NewCliLogger(&stdout, &stderr, nil, true)

	logger.Debug(ctx, "Debug msg")
	logger.Info(ctx, "Info msg")

	assert.Equal(t, "Debug msg\nInfo msg\n", stdout.String())
	assert.Equal(t, "", stderr.String())
}

func TestLogFile_Temp(t *testing.T) {
	t.Parallel()
	file, err := NewLogFile("")
	require.NoError(t, err)
	assert.True(t, file.IsTemp())

	// On success the temp file is removed
	file.TearDown(false)
	_, err = os.Stat(file.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestLogFile_TempKeptOnError(t *testing.T) {
	t.Parallel()
	file, err := NewLogFile("")
	require.NoError(t, err)

	// On error the temp file is preserved for the failure summary
	file.TearDown(true)
	_, err = os.Stat(file.Path())
	require.NoError(t, err)
	require.NoError(t, os.Remove(file.Path()))
}

func TestDebugLogger(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	logger := NewDebugLogger()

	logger.Infof(ctx, "message %d", 1)
	logger.WithComponent("ledger").Warn(ctx, "message 2")

	assert.Equal(t, "INFO  message 1\nWARN  ledger: message 2\n", logger.AllMessages())
	assert.Equal(t, "WARN  ledger: message 2\n", logger.WarnAndErrorMessages())

	logger.Truncate()
	assert.Equal(t, "", logger.AllMessages())
}
