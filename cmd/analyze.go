package cmd

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"ratfun/tripgraph/internal/graph"
)

var (
	analyzeFormat       string
	analyzeTopN         int
	analyzeHubThreshold int
	analyzeMinSamples   int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze the trip graph: coverage, topology, journeys, risky and profitable trips",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := OpenDatabase()
		if err != nil {
			return err
		}
		defer d.Close()

		c := newCache(d)
		if _, err := c.Rebuild(cmd.Context(), worldID); err != nil {
			return fmt.Errorf("building graph: %w", err)
		}

		config := &graph.AnalyzerConfig{
			HubThreshold: analyzeHubThreshold,
			TopN:         analyzeTopN,
			MinSamples:   analyzeMinSamples,
			Staleness:    cfg.StalenessPolicy(),
		}
		report, err := c.Analyze(worldID, config)
		if err != nil {
			return err
		}

		if done, err := writeStructured(analyzeFormat, report); done || err != nil {
			return err
		}
		return c.View(worldID, func(g *graph.TripGraph) {
			printHumanReadable(report, g)
		})
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "text", "Output format: text, json or yaml")
	analyzeCmd.Flags().IntVar(&analyzeTopN, "top-n", 10, "Number of top items to show per section")
	analyzeCmd.Flags().IntVar(&analyzeHubThreshold, "hub-threshold", 6, "Minimum transition degree to consider a trip a hub")
	analyzeCmd.Flags().IntVar(&analyzeMinSamples, "min-samples", 5, "Outcomes from which a trip counts as sampled")
	rootCmd.AddCommand(analyzeCmd)
}

func printHumanReadable(report *graph.AnalysisReport, g *graph.TripGraph) {
	// Coverage bar
	barLen := int(report.CoverageScore * 20)
	if barLen > 20 {
		barLen = 20
	}
	bar := strings.Repeat("█", barLen) + strings.Repeat("░", 20-barLen)
	fmt.Printf("\n  World %s coverage: %.0f%%  [%s]\n", report.WorldID, report.CoverageScore*100, bar)
	fmt.Printf("  breakdown: sampled=%.2f connected=%.2f proven=%.2f freshness=%.2f\n\n",
		report.CoverageBreakdown.Sampled,
		report.CoverageBreakdown.Connected,
		report.CoverageBreakdown.Proven,
		report.CoverageBreakdown.Freshness)

	// Topology
	t := report.Topology
	fmt.Println("  TOPOLOGY")
	fmt.Println("  ────────────────────────────────────────")
	fmt.Printf("  Trips: %d (%d active)  Transitions: %d  Components: %d\n", t.TotalNodes, t.ActiveNodes, t.TotalEdges, t.NumComponents)
	fmt.Printf("  Largest component: %d\n", t.LargestComponent)

	if t.OrphanCount > 0 {
		fmt.Printf("  Orphans: %d trips with no recurring transition\n", t.OrphanCount)
		limit := 5
		if len(t.OrphanIDs) < limit {
			limit = len(t.OrphanIDs)
		}
		for _, id := range t.OrphanIDs[:limit] {
			prompt := "?"
			if node := g.Node(id); node != nil {
				prompt = truncTitle(node.Prompt, 50)
			}
			fmt.Printf("    - %s (%s)\n", truncID(id), prompt)
		}
		if t.OrphanCount > 5 {
			fmt.Printf("    ... and %d more\n", t.OrphanCount-5)
		}
	}

	// Degree distribution
	fmt.Println("\n  Degree distribution:")
	for _, b := range t.DegreeHistogram {
		if b.Count > 0 {
			barWidth := int(math.Log2(float64(b.Count))) + 2
			fmt.Printf("    %5s: %4d  %s\n", b.Label, b.Count, strings.Repeat("=", barWidth))
		}
	}

	// Hubs
	if len(t.Hubs) > 0 {
		fmt.Println("\n  Top hubs (degree > threshold):")
		for _, hub := range t.Hubs {
			fmt.Printf("    %s degree=%d (in=%d, out=%d)  %s\n",
				truncID(hub.ID), hub.Degree, hub.InDegree, hub.OutDegree, truncTitle(hub.Prompt, 40))
		}
	}

	// Journeys
	j := report.Journeys
	fmt.Println("\n  JOURNEYS")
	fmt.Println("  ────────────────────────────────────────")
	fmt.Printf("  %d journeys, %d successful, best peak %d\n", j.TotalJourneys, j.SuccessfulJourneys, j.BestPeakValue)
	if j.PatternCount > 0 {
		fmt.Printf("  %d recurring path pattern%s:\n", j.PatternCount, plural(j.PatternCount))
		for _, p := range j.TopPatterns {
			ids := make([]string, len(p.TripIDs))
			for i, id := range p.TripIDs {
				ids[i] = truncID(id)
			}
			fmt.Printf("    %s  x%d  gain=%+.0f  completion=%.0f%%  entry=%d-%d\n",
				strings.Join(ids, " -> "), p.Occurrences, p.AvgValueGain, p.CompletionRate*100,
				p.OptimalEntry.Min, p.OptimalEntry.Max)
		}
	}

	printSummaries("MOST PROFITABLE", report.MostProfitable)
	printSummaries("RISKIEST", report.Riskiest)

	if cp := report.Chokepoints; cp != nil && len(cp.Chokepoints) > 0 {
		fmt.Println("\n  CHOKEPOINTS")
		fmt.Println("  ────────────────────────────────────────")
		for _, c := range cp.Chokepoints {
			state := ""
			if !c.Active {
				state = "  [depleted]"
			}
			fmt.Printf("  %-8s %-40s %d neighbor%s%s\n",
				truncID(c.ID), truncTitle(c.Prompt, 40), c.Neighbors, plural(c.Neighbors), state)
		}
		if n := len(cp.SoleTransitions); n > 0 {
			fmt.Printf("  %d sole transition%s\n", n, plural(n))
		}
	}

	// Staleness
	s := report.Staleness
	if s.OutcomesSinceRebuild > 0 || s.RebuildRecommended {
		fmt.Println("\n  STALENESS")
		fmt.Println("  ────────────────────────────────────────")
		fmt.Printf("  %d outcome%s since rebuild, %d stale trip%s\n",
			s.OutcomesSinceRebuild, plural(s.OutcomesSinceRebuild), s.StaleNodeCount, plural(s.StaleNodeCount))
		for _, r := range s.Reasons {
			fmt.Printf("    ! %s\n", r)
		}
	}

	fmt.Println()
}

func printSummaries(title string, trips []graph.TripSummary) {
	if len(trips) == 0 {
		return
	}
	fmt.Printf("\n  %s\n", title)
	fmt.Println("  ────────────────────────────────────────")
	for _, s := range trips {
		fmt.Printf("    %s n=%-4d survival=%3.0f%%  avg=%+7.1f  pool=%-6d %s\n",
			truncID(s.ID), s.Outcomes, s.SurvivalRate*100, s.AvgValueChange, s.Balance, truncTitle(s.Prompt, 40))
	}
}
