// Package cmdexec runs external commands with ordered invocation strategies.
//
// Some managed services must be controlled as a different user. Instead of
// per-call-site privilege fallback blocks, one executor tries the configured
// strategies in sequence and returns the first successful result.
package cmdexec

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/stackops/upctl/internal/pkg/log"
	"github.com/stackops/upctl/internal/pkg/utils/errors"
)

// Strategy transforms a command invocation, e.g. wraps it in sudo.
type Strategy struct {
	Name string
	Wrap func(name string, args []string) (string, []string)
}

func Direct() Strategy {
	return Strategy{
		Name: "direct",
		Wrap: func(name string, args []string) (string, []string) {
			return name, args
		},
	}
}

func Sudo() Strategy {
	return Strategy{
		Name: "sudo",
		Wrap: func(name string, args []string) (string, []string) {
			return "sudo", append([]string{"-n", name}, args...)
		},
	}
}

// SudoAs runs the command as the given user, e.g. the service account owning the runtime.
func SudoAs(user string) Strategy {
	return Strategy{
		Name: "sudo:" + user,
		Wrap: func(name string, args []string) (string, []string) {
			return "sudo", append([]string{"-n", "-u", user, name}, args...)
		},
	}
}

type Result struct {
	Strategy string
	ExitCode int
	StdOut   string
	StdErr   string
}

// Output returns combined output for error classification.
func (r Result) Output() string {
	return strings.TrimSpace(r.StdOut + "\n" + r.StdErr)
}

type Executor struct {
	logger     log.Logger
	strategies []Strategy
}

// NewExecutor creates an executor, strategies are tried in the given order.
func NewExecutor(logger log.Logger, strategies ...Strategy) *Executor {
	if len(strategies) == 0 {
		strategies = []Strategy{Direct()}
	}
	return &Executor{logger: logger.WithComponent("cmdexec"), strategies: strategies}
}

// Run tries each strategy in order and returns the first successful result.
// If all strategies fail, the errors are aggregated.
func (e *Executor) Run(ctx context.Context, name string, args ...string) (Result, error) {
	errs := errors.NewMultiError()
	var lastResult Result

	for _, strategy := range e.strategies {
		result, err := e.run(ctx, strategy, name, args...)
		if err == nil {
			return result, nil
		}
		lastResult = result
		errs.AppendWithPrefixf(err, `strategy "%s"`, strategy.Name)

		// Cancellation is not a strategy failure
		if ctx.Err() != nil {
			break
		}
	}

	return lastResult, errors.PrefixErrorf(errs.ErrorOrNil(), `command "%s" failed`, name)
}

func (e *Executor) run(ctx context.Context, strategy Strategy, name string, args ...string) (Result, error) {
	cmdName, cmdArgs := strategy.Wrap(name, args)
	e.logger.Debugf(ctx, `running [%s]: %s %s`, strategy.Name, cmdName, strings.Join(cmdArgs, " "))

	var stdOutBuffer bytes.Buffer
	var stdErrBuffer bytes.Buffer

	cmd := exec.CommandContext(ctx, cmdName, cmdArgs...)
	cmd.Stdout = &stdOutBuffer
	cmd.Stderr = &stdErrBuffer
	cmd.Env = os.Environ()

	err := cmd.Run()
	result := Result{Strategy: strategy.Name}
	result.StdOut = stdOutBuffer.String()
	result.StdErr = stdErrBuffer.String()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			result.ExitCode = exitError.ExitCode()
		}
		return result, errors.Errorf(`%w: %s`, err, result.Output())
	}

	return result, nil
}
