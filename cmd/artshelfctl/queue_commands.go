package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cesargomez89/artshelf/internal/domain"
	"github.com/cesargomez89/artshelf/internal/store"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the processing queue",
	}

	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

var (
	queueStatsHeaders = []string{"Queue", "Pending", "Processing", "Completed", "Failed"}
	queueStatsAligns  = []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight}
)

func buildQueueStatsRows(stats store.QueueStats) [][]string {
	rows := make([][]string, 0, len(domain.QueueTypes))
	for _, qt := range domain.QueueTypes {
		rows = append(rows, []string{
			string(qt),
			strconv.Itoa(stats.Count(qt, domain.QueueStatusPending)),
			strconv.Itoa(stats.Count(qt, domain.QueueStatusProcessing)),
			strconv.Itoa(stats.Count(qt, domain.QueueStatusCompleted)),
			strconv.Itoa(stats.Count(qt, domain.QueueStatusFailed)),
		})
	}
	return rows
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show item counts per queue and status",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := ctx.ensureEnv(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			stats, err := env.queue.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, stats)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(queueStatsHeaders, buildQueueStatsRows(stats), queueStatsAligns))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func payloadSummary(item *domain.QueueItem) string {
	p, err := item.Decode()
	if err != nil {
		return item.Payload
	}
	switch v := p.(type) {
	case domain.MetadataPayload:
		return v.FilePath
	case domain.VectorPayload:
		return fmt.Sprintf("file %d", v.FileID)
	case domain.ColorTagPayload:
		return v.FileHash
	}
	return item.Payload
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func buildQueueListRows(items []*domain.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		errMsg := ""
		if item.ErrorMessage.Valid {
			errMsg = truncate(item.ErrorMessage.String, 60)
		}
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			string(item.QueueType),
			string(item.Status),
			strconv.Itoa(item.RetryCount),
			item.UpdatedAt.Local().Format(time.DateTime),
			payloadSummary(item),
			errMsg,
		})
	}
	return rows
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var (
		queueType string
		status    string
		limit     int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := ctx.ensureEnv(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			items, err := env.queue.ListItems(cmd.Context(), store.QueueFilter{
				Type:   domain.QueueType(queueType),
				Status: domain.QueueStatus(status),
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, items)
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Queue", "Status", "Retries", "Updated", "Payload", "Error"},
				buildQueueListRows(items),
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&queueType, "type", "t", "", "Filter by queue (metadata, vector, color_tag)")
	cmd.Flags().StringVarP(&status, "status", "s", "", "Filter by status (pending, processing, completed, failed)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of items")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <id>...",
		Short: "Move failed items back to pending",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := ctx.ensureEnv(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid item id %q", arg)
				}
				item, err := env.queue.RetryItem(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item %d (%s) is pending again\n", item.ID, item.QueueType)
			}
			return nil
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "clear-finished",
		Short: "Delete completed and failed items",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := ctx.ensureEnv(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			removed, err := env.queue.ClearFinished(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d finished items\n", removed)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Only clear items last updated before this age")
	return cmd
}
