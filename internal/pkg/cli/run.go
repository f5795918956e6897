package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stackops/upctl/internal/pkg/up/pipeline"
)

func runCommand(root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the upgrade, resuming from the first incomplete step",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			o, err := root.options.UpgradeOptions(ctx)
			if err != nil {
				return err
			}

			d := newProvider(root.logger, o.ServiceUser)
			w, err := root.build(ctx, d, o, true)
			if err != nil {
				return err
			}
			defer func() {
				if err := w.col.Ledger.Close(); err != nil {
					root.logger.Warnf(ctx, "%s", err)
				}
			}()

			p, err := pipeline.New(d, w.config, w.col)
			if err != nil {
				return err
			}
			if err := p.Run(ctx); err != nil {
				return err
			}

			color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "Upgrade finished.")
			return nil
		},
	}
}
