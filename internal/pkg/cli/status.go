package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/go-resty/resty/v2"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/stackops/upctl/internal/pkg/baseline"
	"github.com/stackops/upctl/internal/pkg/ledger"
	"github.com/stackops/upctl/internal/pkg/service"
	"github.com/stackops/upctl/internal/pkg/up/pipeline"
)

func statusCommand(root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the step ledger and the captured baseline",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			// Read-only, the lock is not taken so a running upgrade is not blocked
			stepLedger, err := ledger.Open(ctx, root.logger, root.fs, root.options.GetString("ledger-file"))
			if err != nil {
				return err
			}

			fmt.Fprintln(out, "Steps:")
			for _, name := range pipeline.StepNames() {
				printStep(out, name, stepLedger.Status(name))
			}

			return root.printBaseline(cmd)
		},
	}
}

func printStep(out io.Writer, name string, status ledger.Status) {
	switch status {
	case ledger.StatusComplete:
		color.New(color.FgGreen).Fprintf(out, "  [x] %s\n", name)
	case ledger.StatusFailed:
		color.New(color.FgRed).Fprintf(out, "  [!] %s (failed)\n", name)
	case ledger.StatusRunning:
		color.New(color.FgYellow).Fprintf(out, "  [~] %s (interrupted)\n", name)
	default:
		fmt.Fprintf(out, "  [ ] %s\n", name)
	}
}

func (root *rootCommand) printBaseline(cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	path := root.options.GetString("baseline-file")

	if exists, err := afero.Exists(root.fs, path); err != nil {
		return err
	} else if !exists {
		fmt.Fprintln(out, "\nNo baseline captured.")
		return nil
	}

	d := newProvider(root.logger, "")
	b, err := baseline.NewTracker(d, root.fs, path).Load()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nBaseline captured at %s:\n", b.CapturedAt.Format(time.RFC3339))
	metrics := make([]string, 0, len(b.Metrics))
	for metric := range b.Metrics {
		metrics = append(metrics, metric)
	}
	sort.Strings(metrics)
	for _, metric := range metrics {
		fmt.Fprintf(out, "  %s = %d\n", metric, b.Metrics[metric])
	}

	// With a reachable index the current count is classified against the baseline
	if indexURL := root.options.GetString("index-url"); indexURL != "" {
		api := service.NewHTTPIndexAPI(resty.New(), indexURL)
		current, err := api.Count(ctx, "*")
		if err != nil {
			root.logger.Warnf(ctx, "cannot measure current index count: %s", err)
			return nil
		}
		level := baseline.Classify(current, b.Metrics[pipeline.MetricIndexedDocuments])
		fmt.Fprintf(out, "\nCurrent indexed documents: %d (%s)\n", current, level)
	}
	return nil
}
