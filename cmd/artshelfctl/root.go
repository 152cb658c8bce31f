package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var dbFlag string
	var logLevelFlag string

	ctx := newCommandContext(&dbFlag, &logLevelFlag)

	rootCmd := &cobra.Command{
		Use:           "artshelfctl",
		Short:         "Operate the artshelf ingest queue",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "Database path (overrides DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(newEnqueueCommand(ctx))
	rootCmd.AddCommand(newResumeCommand(ctx))
	rootCmd.AddCommand(newQueueCommand(ctx))
	rootCmd.AddCommand(newLibraryCommand(ctx))
	rootCmd.AddCommand(newRecomputeCommand(ctx))
	rootCmd.AddCommand(newClearTempCommand(ctx))
	rootCmd.AddCommand(newDebugCommand(ctx))

	return rootCmd
}
