// Package baseline captures pre-change metrics and classifies post-change
// measurements. The classification is for reporting only, it never gates
// pipeline success on its own.
package baseline

import (
	"context"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/stackops/upctl/internal/pkg/encoding/json"
	"github.com/stackops/upctl/internal/pkg/log"
	"github.com/stackops/upctl/internal/pkg/utils/errors"
)

// Baseline is an immutable snapshot of named counters,
// written once before any destructive step runs.
type Baseline struct {
	CapturedAt time.Time      `json:"capturedAt"`
	Metrics    map[string]int `json:"metrics"`
}

type Level string

const (
	Healthy       Level = "healthy"
	Informational Level = "informational"
	Warning       Level = "warning"
)

// Classify compares a post-change measurement against the baseline:
// at least 95% is Healthy, below 80% is Warning, anything between is Informational.
func Classify(current, baseline int) Level {
	if baseline <= 0 {
		return Healthy
	}
	ratio := float64(current) / float64(baseline)
	switch {
	case ratio >= 0.95:
		return Healthy
	case ratio < 0.80:
		return Warning
	default:
		return Informational
	}
}

// Source measures one named counter, e.g. the indexed document count.
type Source interface {
	Name() string
	Measure(ctx context.Context) (int, error)
}

// SourceFunc adapts a function to the Source interface.
func SourceFunc(name string, fn func(ctx context.Context) (int, error)) Source {
	return &sourceFunc{name: name, fn: fn}
}

type sourceFunc struct {
	name string
	fn   func(ctx context.Context) (int, error)
}

func (s *sourceFunc) Name() string { return s.name }

func (s *sourceFunc) Measure(ctx context.Context) (int, error) { return s.fn(ctx) }

type dependencies interface {
	Clock() clockwork.Clock
	Logger() log.Logger
}

type Tracker struct {
	clock   clockwork.Clock
	logger  log.Logger
	fs      afero.Fs
	path    string
	sources []Source
}

func NewTracker(d dependencies, fs afero.Fs, path string, sources ...Source) *Tracker {
	return &Tracker{
		clock:   d.Clock(),
		logger:  d.Logger().WithComponent("baseline"),
		fs:      fs,
		path:    path,
		sources: sources,
	}
}

// Capture measures all sources and persists the snapshot.
// The file is human-readable JSON, so operators can diff it by hand.
func (t *Tracker) Capture(ctx context.Context) (Baseline, error) {
	b := Baseline{CapturedAt: t.clock.Now().UTC(), Metrics: make(map[string]int)}

	errs := errors.NewMultiError()
	for _, source := range t.sources {
		value, err := source.Measure(ctx)
		if err != nil {
			errs.AppendWithPrefixf(err, `cannot measure "%s"`, source.Name())
			continue
		}
		b.Metrics[source.Name()] = value
		t.logger.Infof(ctx, `captured baseline metric "%s" = %d`, source.Name(), value)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return Baseline{}, errors.PrefixError(err, "cannot capture baseline")
	}

	data, err := json.Encode(b, true)
	if err != nil {
		return Baseline{}, err
	}
	if err := afero.WriteFile(t.fs, t.path, data, 0o600); err != nil {
		return Baseline{}, errors.PrefixErrorf(err, `cannot write baseline "%s"`, t.path)
	}

	return b, nil
}

// Load reads a previously captured baseline.
func (t *Tracker) Load() (Baseline, error) {
	content, err := afero.ReadFile(t.fs, t.path)
	if err != nil {
		return Baseline{}, errors.PrefixErrorf(err, `cannot read baseline "%s"`, t.path)
	}
	b := Baseline{}
	if err := json.Decode(content, &b); err != nil {
		return Baseline{}, errors.PrefixErrorf(err, `cannot parse baseline "%s"`, t.path)
	}
	return b, nil
}

// Exists reports whether a baseline has been captured already.
func (t *Tracker) Exists() (bool, error) {
	return afero.Exists(t.fs, t.path)
}

// ReportEntry is one classified post-change measurement.
type ReportEntry struct {
	Metric   string
	Baseline int
	Current  int
	Level    Level
}

// Report measures all sources again and classifies them against the baseline.
func (t *Tracker) Report(ctx context.Context, b Baseline) ([]ReportEntry, error) {
	var entries []ReportEntry
	for _, source := range t.sources {
		current, err := source.Measure(ctx)
		if err != nil {
			return nil, errors.PrefixErrorf(err, `cannot measure "%s"`, source.Name())
		}
		entries = append(entries, ReportEntry{
			Metric:   source.Name(),
			Baseline: b.Metrics[source.Name()],
			Current:  current,
			Level:    Classify(current, b.Metrics[source.Name()]),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Metric < entries[j].Metric
	})
	return entries, nil
}
