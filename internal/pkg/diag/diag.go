// Package diag collects a diagnostic snapshot attached to fatal escalations:
// recent run log tail, process listing, disk and memory usage.
package diag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"github.com/stackops/upctl/internal/pkg/cmdexec"
	"github.com/stackops/upctl/internal/pkg/log"
)

const (
	logTailLines   = 25
	maxSectionSize = 4096
)

type Snapshot struct {
	CreatedAt time.Time `json:"createdAt"`
	LogTail   string    `json:"logTail"`
	LogSize   string    `json:"logSize"`
	Processes string    `json:"processes"`
	DiskUsage string    `json:"diskUsage"`
	Memory    string    `json:"memory"`
}

func (s Snapshot) String() string {
	var out strings.Builder
	out.WriteString(fmt.Sprintf("diagnostic snapshot (%s)\n", s.CreatedAt.Format(time.RFC3339)))
	section := func(title, content string) {
		out.WriteString("--- " + title + " ---\n")
		out.WriteString(strings.TrimRight(content, "\n"))
		out.WriteString("\n")
	}
	section(fmt.Sprintf("run log tail (%s)", s.LogSize), s.LogTail)
	section("processes", s.Processes)
	section("disk usage", s.DiskUsage)
	section("memory", s.Memory)
	return out.String()
}

type dependencies interface {
	Clock() clockwork.Clock
	Logger() log.Logger
	Executor() *cmdexec.Executor
}

type Collector struct {
	clock    clockwork.Clock
	logger   log.Logger
	executor *cmdexec.Executor
	fs       afero.Fs
	logPath  string
}

func NewCollector(d dependencies, fs afero.Fs, logPath string) *Collector {
	return &Collector{
		clock:    d.Clock(),
		logger:   d.Logger().WithComponent("diag"),
		executor: d.Executor(),
		fs:       fs,
		logPath:  logPath,
	}
}

// Collect is best-effort: a probe that cannot be taken is reported
// as unavailable instead of failing the whole snapshot.
func (c *Collector) Collect(ctx context.Context) Snapshot {
	s := Snapshot{CreatedAt: c.clock.Now().UTC()}
	s.LogTail, s.LogSize = c.logTail(ctx)
	s.Processes = c.command(ctx, "ps", "aux")
	s.DiskUsage = c.command(ctx, "df", "-h")
	s.Memory = c.command(ctx, "free", "-m")
	return s
}

func (c *Collector) logTail(ctx context.Context) (tail string, size string) {
	if c.logPath == "" {
		return "unavailable: no run log file", "0 B"
	}
	info, err := c.fs.Stat(c.logPath)
	if err != nil {
		return "unavailable: " + err.Error(), "0 B"
	}
	content, err := afero.ReadFile(c.fs, c.logPath)
	if err != nil {
		c.logger.Debugf(ctx, `cannot read run log "%s": %s`, c.logPath, err)
		return "unavailable: " + err.Error(), humanize.Bytes(uint64(info.Size()))
	}

	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if len(lines) > logTailLines {
		lines = lines[len(lines)-logTailLines:]
	}
	return strings.Join(lines, "\n"), humanize.Bytes(uint64(info.Size()))
}

func (c *Collector) command(ctx context.Context, name string, args ...string) string {
	result, err := c.executor.Run(ctx, name, args...)
	if err != nil {
		c.logger.Debugf(ctx, `diagnostic command "%s" failed: %s`, name, err)
		return "unavailable: " + err.Error()
	}
	out := result.StdOut
	if len(out) > maxSectionSize {
		out = out[:maxSectionSize] + "\n... truncated"
	}
	return out
}
