// Package runner executes named upgrade steps against the ledger.
package runner

import (
	"context"

	"github.com/stackops/upctl/internal/pkg/log"
	"github.com/stackops/upctl/internal/pkg/utils/errors"
)

// Ledger is the persisted step status record, see the ledger package.
type Ledger interface {
	IsComplete(name string) bool
	MarkRunning(ctx context.Context, name string) error
	MarkComplete(ctx context.Context, name string) error
	MarkFailed(ctx context.Context, name string) error
}

// Action performs the step's side effect.
type Action func(ctx context.Context) error

// Verification confirms the step's external effect took hold, see the verify package.
type Verification func(ctx context.Context) error

type Runner struct {
	logger log.Logger
	ledger Ledger
}

func New(logger log.Logger, ledger Ledger) *Runner {
	return &Runner{logger: logger.WithComponent("runner"), ledger: ledger}
}

// Run executes one step:
//  1. A step already complete in the ledger is skipped without side effects.
//  2. The running marker is persisted before the action starts.
//  3. An action error marks the step failed and aborts.
//  4. All verifications must pass, otherwise the step is marked failed.
//  5. Completion is persisted.
func (r *Runner) Run(ctx context.Context, name string, action Action, verifications ...Verification) error {
	if r.ledger.IsComplete(name) {
		r.logger.Infof(ctx, `step "%s" is already complete, skipping`, name)
		return nil
	}

	r.logger.Infof(ctx, `step "%s" started`, name)
	if err := r.ledger.MarkRunning(ctx, name); err != nil {
		return errors.PrefixErrorf(err, `cannot start step "%s"`, name)
	}

	if err := action(ctx); err != nil {
		if markErr := r.ledger.MarkFailed(ctx, name); markErr != nil {
			r.logger.Warnf(ctx, `cannot mark step "%s" as failed: %s`, name, markErr)
		}
		return errors.PrefixErrorf(err, `step "%s" failed`, name)
	}

	for _, verification := range verifications {
		if err := verification(ctx); err != nil {
			if markErr := r.ledger.MarkFailed(ctx, name); markErr != nil {
				r.logger.Warnf(ctx, `cannot mark step "%s" as failed: %s`, name, markErr)
			}
			return errors.PrefixErrorf(err, `step "%s" verification failed`, name)
		}
	}

	if err := r.ledger.MarkComplete(ctx, name); err != nil {
		return errors.PrefixErrorf(err, `cannot complete step "%s"`, name)
	}

	r.logger.Infof(ctx, `step "%s" finished`, name)
	return nil
}
