package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cesargomez89/artshelf/internal/constants"
)

func newClearTempCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "clear-temp",
		Short: "Delete extractor temp thumbnails older than --days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}
			env, err := ctx.ensureEnv(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			res, err := env.maintenance.ClearTemp(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d temp thumbnails from %s\n", res.Removed, res.TempDir)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", constants.DefaultClearTempDays, "Minimum age in days")
	return cmd
}
