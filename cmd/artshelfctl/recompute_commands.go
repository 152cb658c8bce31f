package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cesargomez89/artshelf/internal/maintenance"
)

func newRecomputeCommand(ctx *commandContext) *cobra.Command {
	recomputeCmd := &cobra.Command{
		Use:   "recompute",
		Short: "Rebuild derived state from stored data",
	}

	recomputeCmd.AddCommand(newRecomputeSimilarityCommand(ctx))
	recomputeCmd.AddCommand(newRecomputeColorTagsCommand(ctx))
	return recomputeCmd
}

func reportTitle(dryRun bool) string {
	if dryRun {
		return "Dry run, nothing was written"
	}
	return "Changes applied"
}

func newRecomputeSimilarityCommand(ctx *commandContext) *cobra.Command {
	var opts maintenance.Options
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "similarity",
		Short: "Recompute every similarity edge",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := ctx.ensureEnv(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			report, err := env.maintenance.RecomputeSimilarity(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, report)
			}

			rows := [][]string{
				{"Threshold", strconv.FormatFloat(report.Threshold, 'f', -1, 64)},
				{"Files", strconv.Itoa(report.Files)},
				{"Vectors", strconv.Itoa(report.Vectors)},
				{"Vectors regenerated", strconv.Itoa(report.VectorsRegenerated)},
				{"Vectors failed", strconv.Itoa(report.VectorsFailed)},
				{"Malformed vectors", strconv.Itoa(report.Malformed)},
				{"Edges before", strconv.Itoa(report.EdgesBefore)},
				{"Edges after", strconv.Itoa(report.EdgesAfter)},
				{"Added", strconv.Itoa(report.Added)},
				{"Removed", strconv.Itoa(report.Removed)},
				{"Changed", strconv.Itoa(report.Changed)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), reportTitle(report.DryRun))
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Similarity", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Report the difference without writing")
	cmd.Flags().BoolVar(&opts.RegenerateVectors, "regenerate-vectors", false, "Re-embed every thumbnail first")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}

func newRecomputeColorTagsCommand(ctx *commandContext) *cobra.Command {
	var opts maintenance.Options
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "color-tags",
		Short: "Re-classify thumbnails and replace automatic color tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := ctx.ensureEnv(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			report, err := env.maintenance.RecomputeColorTags(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, report)
			}

			rows := [][]string{
				{"Limit", strconv.Itoa(report.Limit)},
				{"Min confidence", strconv.FormatFloat(report.MinConfidence, 'f', -1, 64)},
				{"Hashes", strconv.Itoa(report.Hashes)},
				{"Analyzed", strconv.Itoa(report.Analyzed)},
				{"Failed", strconv.Itoa(report.Failed)},
				{"Untouched hashes", strconv.Itoa(report.Untouched)},
				{"Associations before", strconv.Itoa(report.AssociationsBefore)},
				{"Associations after", strconv.Itoa(report.AssociationsAfter)},
				{"Added", strconv.Itoa(report.Added)},
				{"Removed", strconv.Itoa(report.Removed)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), reportTitle(report.DryRun))
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Color tags", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Report the difference without writing")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
