package graph

import (
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// Build runs a full rebuild of a world's graph from its trips and outcome history.
// Outcomes on trips absent from trips still produce nodes.
func Build(worldID string, trips []Trip, outcomes []Outcome, opts BuildOptions) *TripGraph {
	logger := opts.logger()
	start := time.Now()

	g := &TripGraph{
		WorldID:         worldID,
		Nodes:           make(map[string]*TripNode, len(trips)),
		MinValuePercent: opts.MinValuePercent,
		buckets:         opts.Buckets,
	}
	for _, t := range trips {
		g.Nodes[t.ID] = NewNode(t, opts.MinValuePercent)
	}

	byTrip := make(map[string][]Outcome)
	valid := make([]Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.TripID == "" || o.AgentID == "" || o.CreatedAt.IsZero() {
			g.SkippedOutcomes++
			continue
		}
		valid = append(valid, o)
		byTrip[o.TripID] = append(byTrip[o.TripID], o)
		if _, ok := g.Nodes[o.TripID]; !ok {
			g.Nodes[o.TripID] = NewNode(Trip{ID: o.TripID}, opts.MinValuePercent)
		}
	}
	if g.SkippedOutcomes > 0 {
		logger.Warn("skipped malformed outcomes", "world", worldID, "skipped", g.SkippedOutcomes)
	}

	tl := buildTimelines(valid)
	computeNodeStatistics(g, byTrip, tl, opts)

	journeys := ReconstructJourneys(valid, logger)
	successful := FilterSuccessfulJourneys(journeys, opts.Success)
	RankByPeak(successful)

	limit := opts.PatternLimit
	if limit <= 0 {
		limit = DefaultPatternLimit
	}

	g.JourneyCount = len(journeys)
	g.SuccessfulJourneys = successful
	g.Patterns = extractPathPatterns(successful, opts.PatternMinOccurrences, opts.PatternMaxLength, limit)
	g.Edges = BuildEdges(journeys, opts.BeneficialItemDelta)
	g.OutcomeCount = len(valid)
	g.LastRebuild = time.Now()

	logger.Info("trip graph built",
		"world", worldID,
		"nodes", len(g.Nodes),
		"edges", g.EdgeCount(),
		"journeys", g.JourneyCount,
		"successful", len(successful),
		"patterns", len(g.Patterns),
		"outcomes", g.OutcomeCount,
		"duration", time.Since(start))
	return g
}

// computeNodeStatistics fills every node's statistics. Nodes are independent,
// so the work fans out across a bounded group; each goroutine writes only its
// own slot.
func computeNodeStatistics(g *TripGraph, byTrip map[string][]Outcome, tl timelines, opts BuildOptions) {
	ids := g.NodeIDs()
	results := make([]TripStatistics, len(ids))

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	var eg errgroup.Group
	eg.SetLimit(workers)
	for i, id := range ids {
		eg.Go(func() error {
			results[i] = calculateStatistics(id, byTrip[id], tl, opts.Buckets)
			return nil
		})
	}
	_ = eg.Wait()

	for i, id := range ids {
		g.Nodes[id].Stats = results[i]
	}
}
