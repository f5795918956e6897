// Package cli implements the upctl command line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/stackops/upctl/internal/pkg/cli/options"
	"github.com/stackops/upctl/internal/pkg/env"
	"github.com/stackops/upctl/internal/pkg/log"
	"github.com/stackops/upctl/internal/pkg/utils/errors"
	"github.com/stackops/upctl/internal/pkg/version"
)

const description = `
Upgrade orchestrator

Drives a multi-step upgrade of a live installation:
runtime container, search index and application artifact.

Progress is persisted to a step ledger, an interrupted run
can be re-executed and resumes from the first incomplete step.
`

type rootCommand struct {
	cmd     *cobra.Command
	fs      afero.Fs
	envs    *env.Map
	options *options.Options

	initialized bool
	logFile     *log.File
	logFileErr  error
	logger      log.Logger
}

// NewRootCommand creates the parent of all sub-commands.
func NewRootCommand(stdin io.Reader, stdout io.Writer, stderr io.Writer, envs *env.Map, fs afero.Fs) *rootCommand {
	root := &rootCommand{
		fs:      fs,
		envs:    envs,
		options: options.NewOptions(),
	}

	root.cmd = &cobra.Command{
		Use:           path.Base(os.Args[0]),
		Version:       version.Version(),
		Short:         description,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Print help if no command specified
			return root.cmd.Help()
		},
	}

	root.cmd.SetIn(stdin)
	root.cmd.SetOut(stdout)
	root.cmd.SetErr(stderr)
	root.cmd.SetVersionTemplate("{{.Version}}")

	// Persistent flags for all sub-commands,
	// every flag can also be set by the UPCTL_* environment variable.
	flags := root.cmd.PersistentFlags()
	flags.SortFlags = true
	flags.BoolP("help", "h", false, "print help for command")
	flags.StringP("log-file", "l", "", "path to a log file for details")
	flags.BoolP("verbose", "v", false, "print details")
	flags.Bool("dry-run", false, "run against in-memory services instead of the real installation")

	flags.String("ledger-file", ".upctl/ledger", "path to the step ledger file")
	flags.String("lock-file", ".upctl/ledger.lock", "path to the exclusive lock file")
	flags.String("baseline-file", ".upctl/baseline.json", "path to the captured baseline")
	flags.String("backup-dir", ".upctl/backup", "directory for the configuration snapshot")
	flags.String("artifacts-dir", ".upctl/artifacts", "directory for downloaded artifacts")

	flags.String("old-artifact", "", "file name of the currently deployed artifact")
	flags.String("new-artifact", "", "file name of the new artifact")
	flags.String("artifact-url", "", "download URL of the new artifact")
	flags.String("artifact-checksum", "", "expected SHA-256 checksum of the new artifact")
	flags.String("target-version", "", "application version expected after the upgrade")
	flags.String("apps-dir", "", "runtime directory with expanded applications")
	flags.String("config-dirs", "", "comma-separated configuration directories to snapshot")

	flags.String("runtime-service", "", "system service name of the runtime container")
	flags.String("index-service", "", "system service name of the search index")
	flags.String("deploy-bin", "", "admin binary used to (un)deploy applications")
	flags.String("admin-url", "", "base URL of the runtime admin endpoint")
	flags.String("index-url", "", "base URL of the search index endpoint")
	flags.String("service-user", "", "system user owning the managed services")
	flags.String("index-config-cmd", "", "shell command applying the index schema change")

	root.cmd.Flags().SortFlags = true
	root.cmd.Flags().BoolP("version", "V", false, "print version")

	// Init when flags are parsed
	root.cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return root.init(cmd)
	}

	root.cmd.AddCommand(
		runCommand(root),
		statusCommand(root),
		resetCommand(root),
		rollbackCommand(root),
	)

	return root
}

// Execute runs the command, the exit code is 0 only on full success.
func (root *rootCommand) Execute() (exitCode int) {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			root.logFile.TearDown(true)
			panic(panicErr)
		}
	}()

	if err := root.cmd.Execute(); err != nil {
		// Init can be incomplete if the error occurred before PersistentPreRun
		_ = root.init(root.cmd)
		root.printError(err)
		root.tearDown(true)
		return 1
	}

	root.tearDown(false)
	return 0
}

// printError writes the failure summary to stderr
// and points the operator to the full run log.
func (root *rootCommand) printError(err error) {
	stderr := root.cmd.ErrOrStderr()
	printer := color.New(color.FgRed)
	printer.Fprintln(stderr, prefixEachError(err))
	if root.logFile != nil {
		printer.Fprintf(stderr, "\nDetails can be found in the log file \"%s\".\n", root.logFile.Path())
	}
}

func prefixEachError(err error) string {
	var multi errors.MultiError
	if errors.As(err, &multi) {
		return "Errors:\n" + err.Error()
	}
	return "Error: " + err.Error()
}

// init sets up the logger and options once the flags are parsed.
func (root *rootCommand) init(cmd *cobra.Command) error {
	if root.initialized {
		return nil
	}
	root.initialized = true

	ctx := context.Background()
	tmpLogger := log.NewNopLogger()
	if err := root.options.Load(ctx, tmpLogger, root.envs, root.fs, cmd.Flags()); err != nil {
		return err
	}

	root.setupLogger()
	root.logger.Debug(ctx, version.Version())
	root.logger.Debugf(ctx, "Running command %v", os.Args)
	root.logger.Debug(ctx, root.options.Dump())
	return nil
}

func (root *rootCommand) setupLogger() {
	root.logFile, root.logFileErr = log.NewLogFile(root.options.GetString("log-file"))
	root.logger = log.NewCliLogger(
		root.cmd.OutOrStdout(),
		root.cmd.ErrOrStderr(),
		root.logFile,
		root.options.GetBool("verbose"),
	)
	if root.logFileErr != nil {
		root.logger.Warnf(context.Background(), "Cannot open log file: %s", root.logFileErr)
	}
}

// tearDown closes the run log, a temp log file is kept only when an error occurred.
func (root *rootCommand) tearDown(errorOccurred bool) {
	if root.logger != nil {
		_ = root.logger.Sync()
	}
	root.logFile.TearDown(errorOccurred)
}
