package cli

import (
	"github.com/jonboulle/clockwork"

	"github.com/stackops/upctl/internal/pkg/cmdexec"
	"github.com/stackops/upctl/internal/pkg/log"
)

// provider carries the shared dependencies of the wired components.
type provider struct {
	clock    clockwork.Clock
	logger   log.Logger
	executor *cmdexec.Executor
}

func newProvider(logger log.Logger, serviceUser string) *provider {
	strategies := []cmdexec.Strategy{cmdexec.Direct(), cmdexec.Sudo()}
	if serviceUser != "" {
		strategies = append(strategies, cmdexec.SudoAs(serviceUser))
	}
	return &provider{
		clock:    clockwork.NewRealClock(),
		logger:   logger,
		executor: cmdexec.NewExecutor(logger, strategies...),
	}
}

func (p *provider) Clock() clockwork.Clock      { return p.clock }
func (p *provider) Logger() log.Logger          { return p.logger }
func (p *provider) Executor() *cmdexec.Executor { return p.executor }
