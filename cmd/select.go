package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ratfun/tripgraph/internal/cache"
	"ratfun/tripgraph/internal/db"
	"ratfun/tripgraph/internal/graph"
	"ratfun/tripgraph/internal/selector"
)

var (
	selectValue    int64
	selectPath     []string
	selectTrips    []string
	selectFormat   string
	selectMaxSteps int
)

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Recommend the next trip for an agent",
	Long:  "Builds the world's trip graph and recommends the next trip for an agent with --value, having already taken --path (trip IDs, prefixes or prompt keywords).",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, c, available, path, err := prepareSelection(ctx)
		if err != nil {
			return err
		}
		defer d.Close()

		res := selector.New(c, logger).SelectTrip(ctx, worldID, available, selectValue, path)
		if done, err := writeStructured(selectFormat, res); done || err != nil {
			return err
		}
		if res == nil {
			fmt.Println("No trip available.")
			return nil
		}
		fmt.Printf("\n  %s  %s\n", truncID(res.Trip.ID), truncTitle(res.Trip.Prompt, 60))
		fmt.Printf("  pool=%d  tier=%s\n", res.Trip.Balance, res.Tier)
		fmt.Printf("  %s\n\n", res.Explanation)
		return nil
	},
}

var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Plan the next trips for an agent with expected value",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, c, available, path, err := prepareSelection(ctx)
		if err != nil {
			return err
		}
		defer d.Close()

		steps := selector.New(c, logger).RecommendedPath(ctx, worldID, available, selectValue, path, selectMaxSteps)
		if done, err := writeStructured(selectFormat, steps); done || err != nil {
			return err
		}
		if len(steps) == 0 {
			fmt.Println("No path available.")
			return nil
		}
		var prompts map[string]string
		_ = c.View(worldID, func(g *graph.TripGraph) {
			prompts = make(map[string]string, len(steps))
			for _, s := range steps {
				if n := g.Node(s.TripID); n != nil {
					prompts[s.TripID] = n.Prompt
				}
			}
		})
		fmt.Println()
		for i, s := range steps {
			fmt.Printf("  %d. %s  expected=%+7.1f  cumulative=%+7.1f  value→%d  %s\n",
				i+1, truncID(s.TripID), s.ExpectedValue, s.CumulativeValue, s.ProjectedValue, truncTitle(prompts[s.TripID], 40))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{selectCmd, pathCmd} {
		c.Flags().Int64Var(&selectValue, "value", 0, "Agent's current value")
		c.Flags().StringSliceVar(&selectPath, "path", nil, "Trips already taken this session, in order")
		c.Flags().StringSliceVar(&selectTrips, "trips", nil, "Restrict to these available trips (default: all active trips)")
		c.Flags().StringVarP(&selectFormat, "format", "f", "text", "Output format: text, json or yaml")
		_ = c.MarkFlagRequired("value")
		rootCmd.AddCommand(c)
	}
	pathCmd.Flags().IntVar(&selectMaxSteps, "max-steps", selector.DefaultMaxSteps, "Maximum plan length")
}

// prepareSelection opens the store, builds the world graph and resolves the
// available trips and current path from flags.
func prepareSelection(ctx context.Context) (*db.DB, *cache.Cache, []graph.Trip, []string, error) {
	d, err := OpenDatabase()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	fail := func(err error) (*db.DB, *cache.Cache, []graph.Trip, []string, error) {
		d.Close()
		return nil, nil, nil, nil, err
	}

	c := newCache(d)
	if _, err := c.Rebuild(ctx, worldID); err != nil {
		return fail(fmt.Errorf("building graph: %w", err))
	}

	path, err := resolvePath(ctx, d, worldID, selectPath)
	if err != nil {
		return fail(err)
	}

	var available []graph.Trip
	if len(selectTrips) > 0 {
		for _, ref := range selectTrips {
			row, err := ResolveTrip(ctx, d, worldID, ref)
			if err != nil {
				return fail(err)
			}
			available = append(available, graph.TripFromRow(*row))
		}
	} else if available, err = c.ActiveTrips(worldID); err != nil {
		return fail(err)
	}
	return d, c, available, path, nil
}
