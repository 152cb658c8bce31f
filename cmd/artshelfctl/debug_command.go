package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDebugCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "debug <file.procreate>",
		Short: "Print the archive entries and raw document plist of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := ctx.ensureEnv(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			out, err := env.extractor.Debug(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}
