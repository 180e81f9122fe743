package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ratfun/tripgraph/internal/graph"
)

var stalenessFormat string

var stalenessCmd = &cobra.Command{
	Use:   "staleness",
	Short: "Show outcomes stored since the last graph rebuild",
	Long:  "Compares the stored outcome count with a fresh build and reports whether the policy in rebuild.* would recommend a rebuild.",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		c := newCache(d)
		info, err := c.Rebuild(cmd.Context(), worldID)
		if err != nil {
			return fmt.Errorf("building graph: %w", err)
		}
		stored, err := d.CountOutcomes(cmd.Context(), worldID)
		if err != nil {
			return fmt.Errorf("counting outcomes: %w", err)
		}

		report, err := c.Staleness(worldID)
		if err != nil {
			return err
		}
		if done, err := writeStructured(stalenessFormat, report); done || err != nil {
			return err
		}
		printStaleness(report, info.Outcomes, stored)
		return nil
	},
}

func init() {
	stalenessCmd.Flags().StringVarP(&stalenessFormat, "format", "f", "text", "Output format: text, json or yaml")
	rootCmd.AddCommand(stalenessCmd)
}

func printStaleness(r *graph.StalenessReport, built, stored int) {
	fmt.Printf("\n  World %s rebuilt %s ago\n", r.WorldID, (time.Duration(r.AgeSeconds) * time.Second).String())
	fmt.Printf("  outcomes: %d stored, %d used, %d skipped as malformed\n", stored, built, stored-built)
	fmt.Printf("  incremental since rebuild: %d  stale trips: %d\n", r.OutcomesSinceRebuild, r.StaleNodeCount)
	if r.RebuildRecommended {
		fmt.Println("  rebuild recommended:")
		for _, reason := range r.Reasons {
			fmt.Printf("    ! %s\n", reason)
		}
	}
	fmt.Println()
}
