package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/stackops/upctl/internal/pkg/cmdexec"
	"github.com/stackops/upctl/internal/pkg/errclass"
	"github.com/stackops/upctl/internal/pkg/log"
	"github.com/stackops/upctl/internal/pkg/utils/errors"
)

// ControlCommands maps controller operations to an admin binary invocation.
// RestartArgs may be empty, the controller then falls back to Stop + Start.
type ControlCommands struct {
	Bin          string
	StartArgs    []string
	StopArgs     []string
	RestartArgs  []string
	StatusArgs   []string
	RunningMatch string
}

type controllerDeps interface {
	Logger() log.Logger
	Executor() *cmdexec.Executor
}

// CLIController controls a service through its vendor admin binary.
// Benign outcomes, e.g. stopping an already stopped service, are logged and ignored.
type CLIController struct {
	name       string
	logger     log.Logger
	executor   *cmdexec.Executor
	classifier *errclass.Classifier
	commands   ControlCommands
	runningRe  *regexp.Regexp
}

func NewCLIController(d controllerDeps, classifier *errclass.Classifier, name string, commands ControlCommands) (*CLIController, error) {
	if commands.Bin == "" {
		return nil, errors.Errorf(`missing admin binary for service "%s"`, name)
	}
	runningRe, err := regexp.Compile(commands.RunningMatch)
	if err != nil {
		return nil, errors.PrefixErrorf(err, `invalid running pattern for service "%s"`, name)
	}
	return &CLIController{
		name:       name,
		logger:     d.Logger().WithComponent("service." + name),
		executor:   d.Executor(),
		classifier: classifier,
		commands:   commands,
		runningRe:  runningRe,
	}, nil
}

func (c *CLIController) Name() string {
	return c.name
}

func (c *CLIController) Start(ctx context.Context) error {
	return c.control(ctx, "start", c.commands.StartArgs)
}

func (c *CLIController) Stop(ctx context.Context) error {
	return c.control(ctx, "stop", c.commands.StopArgs)
}

func (c *CLIController) Restart(ctx context.Context) error {
	if len(c.commands.RestartArgs) == 0 {
		if err := c.Stop(ctx); err != nil {
			return err
		}
		return c.Start(ctx)
	}
	return c.control(ctx, "restart", c.commands.RestartArgs)
}

// IsRunning reports the service state from the status command output.
// A status command failing with a benign "not running" signal is a clean stopped state.
func (c *CLIController) IsRunning(ctx context.Context) (bool, error) {
	result, err := c.executor.Run(ctx, c.commands.Bin, c.commands.StatusArgs...)
	if err != nil {
		if c.classifier.ClassifyErr(err) == errclass.Benign {
			return false, nil
		}
		return false, errors.PrefixErrorf(err, `cannot query status of service "%s"`, c.name)
	}
	return c.runningRe.MatchString(result.Output()), nil
}

func (c *CLIController) control(ctx context.Context, operation string, args []string) error {
	c.logger.Infof(ctx, `%s service "%s"`, operation, c.name)
	_, err := c.executor.Run(ctx, c.commands.Bin, args...)
	if err != nil {
		if c.classifier.ClassifyErr(err) == errclass.Benign {
			c.logger.Infof(ctx, `%s service "%s": already in desired state`, operation, c.name)
			return nil
		}
		return errors.PrefixErrorf(err, `cannot %s service "%s"`, operation, c.name)
	}
	c.logger.Infof(ctx, `%s service "%s": done`, operation, c.name)
	return nil
}

// DeployCommands maps deployer operations to an admin binary invocation.
// The artifact path, or the deployment name, is appended as the last argument.
type DeployCommands struct {
	Bin          string
	ListArgs     []string
	DeployArgs   []string
	UndeployArgs []string
}

// CLIDeployer manages runtime deployments through the vendor admin binary.
type CLIDeployer struct {
	logger     log.Logger
	executor   *cmdexec.Executor
	classifier *errclass.Classifier
	commands   DeployCommands
}

func NewCLIDeployer(d controllerDeps, classifier *errclass.Classifier, commands DeployCommands) (*CLIDeployer, error) {
	if commands.Bin == "" {
		return nil, errors.New("missing admin binary for the deployer")
	}
	return &CLIDeployer{
		logger:     d.Logger().WithComponent("service.deployer"),
		executor:   d.Executor(),
		classifier: classifier,
		commands:   commands,
	}, nil
}

// ListDeployed returns deployment names, one per non-empty output line.
// Trailing tool chatter, e.g. a final "command executed" line, is skipped.
func (d *CLIDeployer) ListDeployed(ctx context.Context) ([]string, error) {
	result, err := d.executor.Run(ctx, d.commands.Bin, d.commands.ListArgs...)
	if err != nil {
		return nil, errors.PrefixError(err, "cannot list deployments")
	}

	var names []string
	for _, line := range strings.Split(result.StdOut, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || toolChatterRe.MatchString(line) {
			continue
		}
		// Deployment listings may append an engine tag, the name is the first field
		names = append(names, strings.Fields(line)[0])
	}
	return names, nil
}

var toolChatterRe = regexp.MustCompile(`(?i)^command .* executed`)

func (d *CLIDeployer) Deploy(ctx context.Context, path string) error {
	d.logger.Infof(ctx, `deploying "%s"`, path)
	args := append(append([]string{}, d.commands.DeployArgs...), path)
	if _, err := d.executor.Run(ctx, d.commands.Bin, args...); err != nil {
		if d.classifier.ClassifyErr(err) == errclass.Benign {
			d.logger.Infof(ctx, `deploying "%s": already deployed`, path)
			return nil
		}
		return errors.PrefixErrorf(err, `cannot deploy "%s"`, path)
	}
	return nil
}

func (d *CLIDeployer) Undeploy(ctx context.Context, name string) error {
	d.logger.Infof(ctx, `undeploying "%s"`, name)
	args := append(append([]string{}, d.commands.UndeployArgs...), name)
	if _, err := d.executor.Run(ctx, d.commands.Bin, args...); err != nil {
		if d.classifier.ClassifyErr(err) == errclass.Benign {
			d.logger.Infof(ctx, `undeploying "%s": not deployed`, name)
			return nil
		}
		return errors.PrefixErrorf(err, `cannot undeploy "%s"`, name)
	}
	return nil
}
