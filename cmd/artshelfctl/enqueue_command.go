package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cesargomez89/artshelf/internal/domain"
	"github.com/cesargomez89/artshelf/internal/pipeline"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "enqueue <path>...",
		Short: "Queue .procreate files for ingestion",
		Long: "Queue .procreate files for ingestion. Without --wait the rows are only inserted and\n" +
			"a running server or a later `artshelfctl resume` processes them.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := ctx.ensureEnv(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if !wait {
				for _, arg := range args {
					path, err := pipeline.NormalizePath(arg)
					if err != nil {
						return err
					}
					added, err := env.queue.Enqueue(cmd.Context(), domain.MetadataPayload{FilePath: path})
					if err != nil {
						return err
					}
					printEnqueued(cmd, path, added)
				}
				return nil
			}

			p := env.newPipeline()
			defer p.Stop()
			for _, arg := range args {
				added, err := p.EnqueueFile(cmd.Context(), arg)
				if err != nil {
					return err
				}
				printEnqueued(cmd, arg, added)
			}
			if err := p.WaitIdle(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(out, "All queues drained")
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Process the files now and wait until every queue is idle")
	return cmd
}

func printEnqueued(cmd *cobra.Command, path string, added bool) {
	if added {
		fmt.Fprintf(cmd.OutOrStdout(), "Queued %s\n", path)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Already queued %s\n", path)
}
