package options

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackops/upctl/internal/pkg/env"
	"github.com/stackops/upctl/internal/pkg/log"
)

func TestValuesPriority(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	logger := log.NewDebugLogger()
	fs := afero.NewMemMapFs()

	flags := &pflag.FlagSet{}
	flags.String("target-version", "", "")
	o := NewOptions()

	// No values defined
	require.NoError(t, o.Load(ctx, logger, env.Empty(), fs, flags))
	assert.Equal(t, "", o.GetString("target-version"))

	// 1. Lowest priority, ".env" file
	require.NoError(t, afero.WriteFile(fs, ".env", []byte("UPCTL_TARGET_VERSION=1.0.0\n"), 0o600))
	require.NoError(t, o.Load(ctx, logger, env.Empty(), fs, flags))
	assert.Equal(t, "1.0.0", o.GetString("target-version"))

	// 2. Higher priority, ENV defined in OS
	osEnvs := env.Empty()
	osEnvs.Set("UPCTL_TARGET_VERSION", "2.0.0")
	require.NoError(t, o.Load(ctx, logger, osEnvs, fs, flags))
	assert.Equal(t, "2.0.0", o.GetString("target-version"))

	// 3. The highest priority, flag
	require.NoError(t, flags.Set("target-version", "3.0.0"))
	require.NoError(t, o.Load(ctx, logger, osEnvs, fs, flags))
	assert.Equal(t, "3.0.0", o.GetString("target-version"))
}

func TestGetStringSlice(t *testing.T) {
	t.Parallel()
	o := NewOptions()
	o.Set("config-dirs", "glassfish/domains, solr/conf ,")
	assert.Equal(t, []string{"glassfish/domains", "solr/conf"}, o.GetStringSlice("config-dirs"))

	o.Set("config-dirs", "")
	assert.Empty(t, o.GetStringSlice("config-dirs"))
}

func TestDumpOptions(t *testing.T) {
	t.Parallel()
	o := NewOptions()
	o.Set("admin-url", "http://localhost:4848")
	o.Set("admin-token", "12345-67890123abcd")
	expected := "Parsed options:\n  admin-token = \"12345-6*****\"\n  admin-url = \"http://localhost:4848\"\n"
	assert.Equal(t, expected, o.Dump())
}

func TestUpgradeOptions(t *testing.T) {
	t.Parallel()
	o := NewOptions()
	o.Set("ledger-file", ".upctl/ledger")
	o.Set("lock-file", ".upctl/ledger.lock")
	o.Set("baseline-file", ".upctl/baseline.json")
	o.Set("backup-dir", ".upctl/backup")
	o.Set("artifacts-dir", ".upctl/artifacts")
	o.Set("new-artifact", "app-2.4.1.war")
	o.Set("target-version", "2.4.1")
	o.Set("config-dirs", "config")
	o.Set("dry-run", "true")

	v, err := o.UpgradeOptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "app-2.4.1.war", v.NewArtifact)
	assert.True(t, v.DryRun)

	// A real run requires the managed service surfaces
	o.Set("dry-run", "false")
	_, err = o.UpgradeOptions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid options")
}
