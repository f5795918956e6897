// Package options loads CLI configuration from flags, OS environment
// variables and ".env" files, in that order of precedence.
package options

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/stackops/upctl/internal/pkg/env"
	"github.com/stackops/upctl/internal/pkg/log"
	"github.com/stackops/upctl/internal/pkg/utils/errors"
	"github.com/stackops/upctl/internal/pkg/validator"
)

type Options struct {
	naming *env.NamingConvention
	data   map[string]string
}

func NewOptions() *Options {
	return &Options{
		naming: env.NewNamingConvention(),
		data:   make(map[string]string),
	}
}

// Load fills the options from all sources. For each defined flag the value is,
// in increasing priority: flag default, ".env" file, OS environment, flag.
func (o *Options) Load(ctx context.Context, logger log.Logger, osEnvs *env.Map, fs afero.Fs, flags *pflag.FlagSet) error {
	envs := env.LoadDotEnv(ctx, logger, osEnvs, fs, ".")

	flags.VisitAll(func(flag *pflag.Flag) {
		value := flag.DefValue
		if envValue, found := envs.Lookup(o.naming.FlagToEnv(flag.Name)); found {
			value = envValue
		}
		if flag.Changed {
			value = flag.Value.String()
		}
		o.data[flag.Name] = value
	})
	return nil
}

func (o *Options) Set(key, value string) {
	o.data[key] = value
}

func (o *Options) GetString(key string) string {
	return o.data[key]
}

func (o *Options) GetBool(key string) bool {
	v, _ := strconv.ParseBool(o.data[key])
	return v
}

// GetStringSlice splits a comma-separated value, empty items are dropped.
func (o *Options) GetStringSlice(key string) []string {
	var out []string
	for _, item := range strings.Split(o.data[key], ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Dump formats the parsed options for the debug log, secrets are masked.
func (o *Options) Dump() string {
	keys := make([]string, 0, len(o.data))
	for key := range o.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var out strings.Builder
	out.WriteString("Parsed options:\n")
	for _, key := range keys {
		value := o.data[key]
		if isSecret(key) && len(value) > 0 {
			if len(value) > 7 {
				value = value[:7] + "*****"
			} else {
				value = "*****"
			}
		}
		out.WriteString(fmt.Sprintf("  %s = %q\n", key, value))
	}
	return out.String()
}

func isSecret(key string) bool {
	for _, word := range []string{"token", "password", "secret"} {
		if strings.Contains(key, word) {
			return true
		}
	}
	return false
}

// UpgradeOptions is the typed, validated view of the options an upgrade run needs.
type UpgradeOptions struct {
	DryRun  bool `json:"dryRun"`
	Verbose bool `json:"verbose"`

	LedgerPath   string `json:"ledgerFile" validate:"required"`
	LockPath     string `json:"lockFile" validate:"required"`
	BaselinePath string `json:"baselineFile" validate:"required"`
	BackupDir    string `json:"backupDir" validate:"required"`
	ArtifactsDir string `json:"artifactsDir" validate:"required"`

	OldArtifact      string   `json:"oldArtifact"`
	NewArtifact      string   `json:"newArtifact" validate:"required"`
	ArtifactURL      string   `json:"artifactUrl" validate:"required_unless=DryRun true,omitempty,url"`
	ArtifactChecksum string   `json:"artifactChecksum"`
	TargetVersion    string   `json:"targetVersion" validate:"required"`
	AppsDir          string   `json:"appsDir"`
	ConfigDirs       []string `json:"configDirs" validate:"min=1"`

	RuntimeService string `json:"runtimeService" validate:"required_unless=DryRun true"`
	IndexService   string `json:"indexService" validate:"required_unless=DryRun true"`
	DeployBin      string `json:"deployBin" validate:"required_unless=DryRun true"`
	AdminURL       string `json:"adminUrl" validate:"required_unless=DryRun true,omitempty,url"`
	IndexURL       string `json:"indexUrl" validate:"required_unless=DryRun true,omitempty,url"`
	ServiceUser    string `json:"serviceUser"`
	IndexConfigCmd string `json:"indexConfigCmd"`
}

// UpgradeOptions builds and validates the typed view.
func (o *Options) UpgradeOptions(ctx context.Context) (UpgradeOptions, error) {
	v := UpgradeOptions{
		DryRun:           o.GetBool("dry-run"),
		Verbose:          o.GetBool("verbose"),
		LedgerPath:       o.GetString("ledger-file"),
		LockPath:         o.GetString("lock-file"),
		BaselinePath:     o.GetString("baseline-file"),
		BackupDir:        o.GetString("backup-dir"),
		ArtifactsDir:     o.GetString("artifacts-dir"),
		OldArtifact:      o.GetString("old-artifact"),
		NewArtifact:      o.GetString("new-artifact"),
		ArtifactURL:      o.GetString("artifact-url"),
		ArtifactChecksum: o.GetString("artifact-checksum"),
		TargetVersion:    o.GetString("target-version"),
		AppsDir:          o.GetString("apps-dir"),
		ConfigDirs:       o.GetStringSlice("config-dirs"),
		RuntimeService:   o.GetString("runtime-service"),
		IndexService:     o.GetString("index-service"),
		DeployBin:        o.GetString("deploy-bin"),
		AdminURL:         o.GetString("admin-url"),
		IndexURL:         o.GetString("index-url"),
		ServiceUser:      o.GetString("service-user"),
		IndexConfigCmd:   o.GetString("index-config-cmd"),
	}
	if err := validator.Validate(ctx, v); err != nil {
		return UpgradeOptions{}, errors.PrefixError(err, "invalid options")
	}
	return v, nil
}
