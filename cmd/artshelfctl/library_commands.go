package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newLibraryCommand(ctx *commandContext) *cobra.Command {
	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "Inspect ingested files and their derived state",
	}

	libraryCmd.AddCommand(newLibraryStatsCommand(ctx))
	libraryCmd.AddCommand(newLibrarySimilarCommand(ctx))
	return libraryCmd
}

func newLibraryStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show file, vector, edge and color tag counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := ctx.ensureEnv(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			stats, err := env.library.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, stats)
			}

			rows := [][]string{
				{"Files", strconv.Itoa(stats.Files)},
				{"With thumbnail", strconv.Itoa(stats.WithThumbnail)},
				{"With vector", strconv.Itoa(stats.WithVector)},
				{"Distinct hashes", strconv.Itoa(stats.DistinctHashes)},
				{"Similarity edges", strconv.Itoa(stats.Edges)},
				{"Color tags", strconv.Itoa(stats.ColorTags)},
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Library", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newLibrarySimilarCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "similar <file-id>",
		Short: "List the files most similar to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id < 1 {
				return fmt.Errorf("invalid file id %q", args[0])
			}
			env, err := ctx.ensureEnv(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			similar, err := env.library.Similar(cmd.Context(), id, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, similar)
			}
			if len(similar) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No similar files for %d\n", id)
				return nil
			}

			rows := make([][]string, 0, len(similar))
			for _, s := range similar {
				rows = append(rows, []string{
					strconv.FormatInt(s.FileID, 10),
					strconv.FormatFloat(s.Score, 'f', 4, 64),
					s.FilePath,
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"ID", "Score", "Path"}, rows, []columnAlignment{alignRight, alignRight, alignLeft}))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of files (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
