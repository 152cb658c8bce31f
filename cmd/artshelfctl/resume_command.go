package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cesargomez89/artshelf/internal/domain"
)

func newResumeCommand(ctx *commandContext) *cobra.Command {
	var progressEvery time.Duration

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Recover stale items and drain every queue, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := ctx.ensureEnv(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p := env.newPipeline()
			defer p.Stop()
			if err := p.Resume(runCtx); err != nil {
				return err
			}

			waitCtx, done := context.WithCancel(runCtx)
			g, gCtx := errgroup.WithContext(waitCtx)
			g.Go(func() error {
				defer done()
				return p.WaitIdle(gCtx)
			})
			if progressEvery > 0 {
				g.Go(func() error {
					ticker := time.NewTicker(progressEvery)
					defer ticker.Stop()
					for {
						select {
						case <-gCtx.Done():
							return nil
						case <-ticker.C:
							printPending(gCtx, cmd, env)
						}
					}
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			stats, err := env.queue.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(queueStatsHeaders, buildQueueStatsRows(stats), queueStatsAligns))
			return nil
		},
	}

	cmd.Flags().DurationVar(&progressEvery, "progress", 10*time.Second, "Print pending counts at this interval (0 disables)")
	return cmd
}

func printPending(ctx context.Context, cmd *cobra.Command, env *environment) {
	for _, qt := range domain.QueueTypes {
		n, err := env.db.PendingCount(ctx, qt)
		if err != nil {
			return
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d pending\n", qt, n)
	}
}
