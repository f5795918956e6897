package cli

import (
	"github.com/spf13/cobra"

	"github.com/stackops/upctl/internal/pkg/ledger"
	"github.com/stackops/upctl/internal/pkg/utils/errors"
)

func resetCommand(root *rootCommand) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the step ledger, the next run starts from scratch",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			force, _ := cmd.Flags().GetBool("force")
			if !force {
				return errors.New("reset discards all recorded progress, pass --force to confirm")
			}

			stepLedger, err := ledger.Open(
				ctx, root.logger, root.fs,
				root.options.GetString("ledger-file"),
				ledger.WithFileLock(root.options.GetString("lock-file")),
			)
			if err != nil {
				return err
			}
			defer func() {
				if err := stepLedger.Close(); err != nil {
					root.logger.Warnf(ctx, "%s", err)
				}
			}()

			return stepLedger.Reset(ctx)
		},
	}
	cmd.Flags().Bool("force", false, "confirm discarding all recorded progress")
	return cmd
}
