// Package ledger persists the status of every upgrade step,
// so an interrupted run can resume from the first incomplete step.
//
// The file format is a newline-delimited token list:
//   - "<name>"         - the step is complete
//   - "<name>_running" - the step was started and did not finish yet
//   - "<name>_failed"  - the step failed
//
// A bare "<name>" token always takes precedence over the transient tokens
// for the same name that may remain in the file after a non-atomic write.
package ledger

import (
	"bufio"
	"context"
	"os"
	"sort"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"

	"github.com/stackops/upctl/internal/pkg/log"
	"github.com/stackops/upctl/internal/pkg/utils/errors"
)

const (
	runningSuffix = "_running"
	failedSuffix  = "_failed"
	filePerm      = 0o600
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

type Ledger struct {
	fs     afero.Fs
	logger log.Logger
	path   string
	fsLock *flock.Flock

	statuses map[string]Status
	order    []string
}

type Option func(*Ledger)

// WithFileLock enables an exclusive lock file, concurrent orchestrator
// instances then fail fast instead of corrupting each other's state.
func WithFileLock(lockPath string) Option {
	return func(l *Ledger) {
		l.fsLock = flock.New(lockPath)
	}
}

// Open loads the ledger file. A missing file is a valid empty ledger.
func Open(ctx context.Context, logger log.Logger, fs afero.Fs, path string, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		fs:       fs,
		logger:   logger.WithComponent("ledger"),
		path:     path,
		statuses: make(map[string]Status),
	}
	for _, o := range opts {
		o(l)
	}

	if l.fsLock != nil {
		if locked, err := l.fsLock.TryLock(); err != nil {
			return nil, errors.Errorf(`cannot acquire ledger lock "%s": %w`, l.fsLock.Path(), err)
		} else if !locked {
			return nil, errors.Errorf(`cannot acquire ledger lock "%s": another instance is running`, l.fsLock.Path())
		}
	}

	if err := l.load(); err != nil {
		return nil, err
	}

	l.logger.Debugf(ctx, `loaded ledger "%s", %d steps tracked`, path, len(l.order))
	return l, nil
}

// Close releases the lock file, if any.
func (l *Ledger) Close() error {
	if l.fsLock == nil {
		return nil
	}
	errs := errors.NewMultiError()
	if err := l.fsLock.Unlock(); err != nil {
		errs.AppendWithPrefixf(err, `cannot release ledger lock "%s"`, l.fsLock.Path())
	}
	if err := os.Remove(l.fsLock.Path()); err != nil && !os.IsNotExist(err) {
		errs.AppendWithPrefixf(err, `cannot remove ledger lock "%s"`, l.fsLock.Path())
	}
	return errs.ErrorOrNil()
}

func (l *Ledger) IsComplete(name string) bool {
	return l.statuses[name] == StatusComplete
}

func (l *Ledger) Status(name string) Status {
	if s, found := l.statuses[name]; found {
		return s
	}
	return StatusPending
}

// Names returns all tracked step names in the order of first appearance.
func (l *Ledger) Names() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// MarkRunning appends the running token, it is compacted away
// when the step completes or fails.
func (l *Ledger) MarkRunning(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if l.statuses[name] == StatusComplete {
		return errors.Errorf(`step "%s" is already complete, status cannot regress`, name)
	}

	if err := l.appendToken(name + runningSuffix); err != nil {
		return errors.PrefixErrorf(err, `cannot mark step "%s" as running`, name)
	}

	l.track(name, StatusRunning)
	return nil
}

// MarkComplete records the completion and compacts the transient tokens of the step.
// If the atomic replace of the ledger file fails, the previous on-disk state is kept:
// losing the most recent transition is acceptable, corrupting the ledger is not.
func (l *Ledger) MarkComplete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	l.track(name, StatusComplete)
	if err := l.compact(); err != nil {
		l.logger.Warnf(ctx, `cannot persist completion of step "%s", the last transition may be lost: %s`, name, err)
	}
	return nil
}

// MarkFailed records the failure and compacts the running token of the step.
func (l *Ledger) MarkFailed(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if l.statuses[name] == StatusComplete {
		return errors.Errorf(`step "%s" is already complete, status cannot regress`, name)
	}

	l.track(name, StatusFailed)
	if err := l.compact(); err != nil {
		l.logger.Warnf(ctx, `cannot persist failure of step "%s", the last transition may be lost: %s`, name, err)
	}
	return nil
}

// ReconcileInterrupted finds steps left running by a crashed process,
// removes their markers so they are re-attempted, and returns their names.
// It is called once at startup.
func (l *Ledger) ReconcileInterrupted(ctx context.Context) ([]string, error) {
	var interrupted []string
	for name, status := range l.statuses {
		if status == StatusRunning {
			interrupted = append(interrupted, name)
		}
	}
	sort.Strings(interrupted)

	if len(interrupted) == 0 {
		return nil, nil
	}

	for _, name := range interrupted {
		delete(l.statuses, name)
		l.untrack(name)
	}
	if err := l.compact(); err != nil {
		return nil, errors.PrefixError(err, "cannot reconcile interrupted steps")
	}

	l.logger.Infof(ctx, `found %d interrupted step(s): %s`, len(interrupted), strings.Join(interrupted, ", "))
	return interrupted, nil
}

// Reset clears the ledger, all steps become pending.
func (l *Ledger) Reset(ctx context.Context) error {
	l.statuses = make(map[string]Status)
	l.order = nil
	if err := l.fs.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return errors.PrefixErrorf(err, `cannot reset ledger "%s"`, l.path)
	}
	l.logger.Infof(ctx, `ledger "%s" has been reset`, l.path)
	return nil
}

func (l *Ledger) load() error {
	content, err := afero.ReadFile(l.fs, l.path)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return errors.PrefixErrorf(err, `cannot read ledger "%s"`, l.path)
	}

	// Transient tokens first, a bare name read later always wins.
	scanner := bufio.NewScanner(strings.NewReader(string(content)))
	for scanner.Scan() {
		token := strings.TrimSpace(scanner.Text())
		if token == "" {
			continue
		}
		switch {
		case strings.HasSuffix(token, runningSuffix):
			name := strings.TrimSuffix(token, runningSuffix)
			if l.statuses[name] != StatusComplete && l.statuses[name] != StatusFailed {
				l.track(name, StatusRunning)
			}
		case strings.HasSuffix(token, failedSuffix):
			name := strings.TrimSuffix(token, failedSuffix)
			if l.statuses[name] != StatusComplete {
				l.track(name, StatusFailed)
			}
		default:
			l.track(token, StatusComplete)
		}
	}
	return nil
}

func (l *Ledger) track(name string, status Status) {
	if _, found := l.statuses[name]; !found {
		l.order = append(l.order, name)
	}
	l.statuses[name] = status
}

func (l *Ledger) untrack(name string) {
	delete(l.statuses, name)
	for i, n := range l.order {
		if n == name {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

func (l *Ledger) appendToken(token string) error {
	file, err := l.fs.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return err
	}

	_, writeErr := file.WriteString(token + "\n")
	syncErr := file.Sync()
	closeErr := file.Close()

	if writeErr != nil {
		return writeErr
	} else if syncErr != nil {
		return syncErr
	}
	return closeErr
}

// compact rewrites the ledger through a temporary path and atomically replaces the original.
func (l *Ledger) compact() error {
	var out strings.Builder
	for _, name := range l.order {
		switch l.statuses[name] {
		case StatusComplete:
			out.WriteString(name + "\n")
		case StatusFailed:
			out.WriteString(name + failedSuffix + "\n")
		case StatusRunning:
			out.WriteString(name + runningSuffix + "\n")
		}
	}

	tempPath := l.path + ".tmp"
	if err := afero.WriteFile(l.fs, tempPath, []byte(out.String()), filePerm); err != nil {
		return errors.PrefixErrorf(err, `cannot write temporary ledger "%s"`, tempPath)
	}
	if err := l.fs.Rename(tempPath, l.path); err != nil {
		// Clean up the temp file, the original ledger is untouched.
		_ = l.fs.Remove(tempPath)
		return errors.PrefixErrorf(err, `cannot replace ledger "%s"`, l.path)
	}
	return nil
}

func validateName(name string) error {
	switch {
	case name == "":
		return errors.New("step name cannot be empty")
	case strings.ContainsAny(name, " \t\n"):
		return errors.Errorf(`step name "%s" cannot contain whitespace`, name)
	case strings.HasSuffix(name, runningSuffix), strings.HasSuffix(name, failedSuffix):
		return errors.Errorf(`step name "%s" cannot end with a reserved suffix`, name)
	}
	return nil
}
