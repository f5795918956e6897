package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func rollbackCommand(root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Restore the configuration snapshot and restart the services",
		Long: "Restore the configuration snapshot taken by the backup step and restart\n" +
			"the managed services. Rollback is never triggered automatically and fails\n" +
			"immediately if no snapshot exists.",
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

			if err := w.recovery.Rollback(ctx, w.backup, w.targets...); err != nil {
				return err
			}

			color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "Rollback finished.")
			return nil
		},
	}
}
