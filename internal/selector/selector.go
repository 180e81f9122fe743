// Package selector picks the next trip for an agent from the cached trip graph.
//
// Selection degrades through tiers as the historical signal thins out:
//
//	no_history     no successful journeys yet; highest pool balance wins
//	exact_match    a proven journey starts with the agent's path so far
//	journey_score  best peak x position score of any proven journey step
//	heuristic      highest pool balance (also used when the graph is unavailable)
package selector

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"ratfun/tripgraph/internal/cache"
	"ratfun/tripgraph/internal/graph"
)

// Tier names the selection strategy that produced a result.
type Tier string

const (
	TierNoHistory    Tier = "no_history"
	TierExactMatch   Tier = "exact_match"
	TierJourneyScore Tier = "journey_score"
	TierHeuristic    Tier = "heuristic"
)

// DefaultMaxSteps is the plan length RecommendedPath uses when none is given.
const DefaultMaxSteps = 5

// Result is a trip recommendation.
type Result struct {
	Trip        graph.Trip `json:"trip"`
	Explanation string     `json:"explanation"`
	Tier        Tier       `json:"tier"`
	// Journey is the agent whose journey is being followed, if any.
	Journey string `json:"journey,omitempty"`
	// Step is the 1-based position of Trip in that journey.
	Step  int     `json:"step,omitempty"`
	Score float64 `json:"score,omitempty"`
}

// RecommendedPathStep is one step of an advisory multi-trip plan.
type RecommendedPathStep struct {
	TripID          string  `json:"trip_id"`
	ExpectedValue   float64 `json:"expected_value"`
	CumulativeValue float64 `json:"cumulative_value"`
	ProjectedValue  int64   `json:"projected_value"`
}

// Selector answers selection queries against a graph cache.
type Selector struct {
	cache  *cache.Cache
	logger *slog.Logger
}

// New creates a Selector reading from c.
func New(c *cache.Cache, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{cache: c, logger: logger}
}

// SelectTrip recommends one of the available trips for an agent holding
// agentValue that has already taken currentPath in this session.
// It returns nil only when no trip is available. Graph failures never
// escape; they degrade to the heuristic tier.
func (s *Selector) SelectTrip(ctx context.Context, worldID string, available []graph.Trip, agentValue int64, currentPath []string) *Result {
	if len(available) == 0 {
		return nil
	}
	eligible := gate(available, agentValue, s.cache.BuildOptions().MinValuePercent)

	var res *Result
	if err := s.cache.Ensure(ctx, worldID); err != nil {
		s.logger.Warn("trip graph unavailable, using heuristic", "world", worldID, "error", err)
	} else {
		err = s.cache.View(worldID, func(g *graph.TripGraph) {
			res = decide(g, eligible, currentPath)
		})
		if err != nil {
			s.logger.Warn("trip graph unavailable, using heuristic", "world", worldID, "error", err)
		}
	}
	if res == nil {
		res = highestBalance(eligible, TierHeuristic)
	}
	selections.WithLabelValues(string(res.Tier)).Inc()
	s.logger.Debug("trip selected", "world", worldID, "trip", res.Trip.ID, "tier", res.Tier)
	return res
}

// RecommendedPath plans up to maxSteps trips ahead using the same matching as
// SelectTrip. Each step's expected value is the trip's average value change in
// the bucket of the projected agent value, falling back to its overall average.
// The plan stops early when the projected value reaches zero.
func (s *Selector) RecommendedPath(ctx context.Context, worldID string, available []graph.Trip, agentValue int64, currentPath []string, maxSteps int) []RecommendedPathStep {
	if len(available) == 0 {
		return nil
	}
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	eligible := gate(available, agentValue, s.cache.BuildOptions().MinValuePercent)

	if err := s.cache.Ensure(ctx, worldID); err != nil {
		s.logger.Warn("trip graph unavailable, no path", "world", worldID, "error", err)
		return nil
	}
	var steps []RecommendedPathStep
	err := s.cache.View(worldID, func(g *graph.TripGraph) {
		steps = plan(g, eligible, agentValue, currentPath, maxSteps)
	})
	if err != nil {
		s.logger.Warn("trip graph unavailable, no path", "world", worldID, "error", err)
		return nil
	}
	return steps
}

// gate drops trips the agent cannot enter. If that leaves nothing, the
// original list is returned unchanged.
func gate(available []graph.Trip, agentValue int64, percent float64) []graph.Trip {
	var out []graph.Trip
	for _, t := range available {
		if t.Balance <= 0 {
			continue
		}
		if graph.MinEntryValue(t.CreationCost, percent) > agentValue {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return available
	}
	return out
}

func decide(g *graph.TripGraph, available []graph.Trip, currentPath []string) *Result {
	if len(g.SuccessfulJourneys) == 0 {
		return highestBalance(available, TierNoHistory)
	}
	byID := index(available)

	if m, ok := exactMatch(g.SuccessfulJourneys, byID, currentPath); ok {
		j := &g.SuccessfulJourneys[m.journey]
		return &Result{
			Trip:        byID[j.Steps[m.step].TripID],
			Explanation: fmt.Sprintf("Following %s's journey (peak %d): step %d of %d", agentLabel(j), j.PeakValue, m.step+1, len(j.Steps)),
			Tier:        TierExactMatch,
			Journey:     j.AgentID,
			Step:        m.step + 1,
			Score:       float64(j.PeakValue),
		}
	}

	if m, ok := bestScored(g.SuccessfulJourneys, byID); ok {
		j := &g.SuccessfulJourneys[m.journey]
		return &Result{
			Trip:        byID[j.Steps[m.step].TripID],
			Explanation: fmt.Sprintf("Step %d of %d in %s's journey (peak %d), score %.0f", m.step+1, len(j.Steps), agentLabel(j), j.PeakValue, m.score),
			Tier:        TierJourneyScore,
			Journey:     j.AgentID,
			Step:        m.step + 1,
			Score:       m.score,
		}
	}
	return nil
}

type match struct {
	journey int
	step    int
	score   float64
}

// exactMatch finds the highest-peak journey whose trip sequence starts with
// path and whose next trip is available. Journeys are ranked by peak already.
func exactMatch(journeys []graph.RatJourney, available map[string]graph.Trip, path []string) (match, bool) {
	for ji := range journeys {
		steps := journeys[ji].Steps
		if len(steps) <= len(path) {
			continue
		}
		prefix := true
		for i, id := range path {
			if steps[i].TripID != id {
				prefix = false
				break
			}
		}
		if !prefix {
			continue
		}
		if _, ok := available[steps[len(path)].TripID]; ok {
			return match{journey: ji, step: len(path)}, true
		}
	}
	return match{}, false
}

// bestScored scores each available trip by the best peak x positionBonus of
// any journey step it occupies. positionBonus is (total-i)/total, so earlier
// steps weigh more. Ties go to the larger pool, then the smaller id.
func bestScored(journeys []graph.RatJourney, available map[string]graph.Trip) (match, bool) {
	best := make(map[string]match)
	for ji := range journeys {
		j := &journeys[ji]
		total := len(j.Steps)
		for i, step := range j.Steps {
			if _, ok := available[step.TripID]; !ok {
				continue
			}
			score := float64(j.PeakValue) * positionBonus(i, total)
			if cur, seen := best[step.TripID]; !seen || score > cur.score {
				best[step.TripID] = match{journey: ji, step: i, score: score}
			}
		}
	}
	if len(best) == 0 {
		return match{}, false
	}

	ids := make([]string, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool {
		ma, mb := best[ids[a]], best[ids[b]]
		if ma.score != mb.score {
			return ma.score > mb.score
		}
		ba, bb := available[ids[a]].Balance, available[ids[b]].Balance
		if ba != bb {
			return ba > bb
		}
		return ids[a] < ids[b]
	})
	return best[ids[0]], true
}

func positionBonus(i, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(total-i) / float64(total)
}

func highestBalance(available []graph.Trip, tier Tier) *Result {
	if len(available) == 0 {
		return nil
	}
	best := available[0]
	for _, t := range available[1:] {
		if t.Balance > best.Balance || (t.Balance == best.Balance && t.ID < best.ID) {
			best = t
		}
	}
	explanation := fmt.Sprintf("Highest pool balance (%d)", best.Balance)
	if tier == TierNoHistory {
		explanation = fmt.Sprintf("No proven journeys yet; highest pool balance (%d)", best.Balance)
	}
	return &Result{Trip: best, Explanation: explanation, Tier: tier}
}

func plan(g *graph.TripGraph, available []graph.Trip, agentValue int64, currentPath []string, maxSteps int) []RecommendedPathStep {
	var route []string
	byID := index(available)
	switch {
	case len(g.SuccessfulJourneys) == 0:
		if r := highestBalance(available, TierNoHistory); r != nil {
			route = []string{r.Trip.ID}
		}
	default:
		m, ok := exactMatch(g.SuccessfulJourneys, byID, currentPath)
		if !ok {
			m, ok = bestScored(g.SuccessfulJourneys, byID)
		}
		if !ok {
			if r := highestBalance(available, TierHeuristic); r != nil {
				route = []string{r.Trip.ID}
			}
			break
		}
		for _, s := range g.SuccessfulJourneys[m.journey].Steps[m.step:] {
			route = append(route, s.TripID)
		}
	}

	var steps []RecommendedPathStep
	value := agentValue
	var cumulative float64
	for i, id := range route {
		if len(steps) == maxSteps || value <= 0 {
			break
		}
		node := g.Node(id)
		// Later steps must still be enterable; the first was gated by the caller.
		if i > 0 && (node == nil || !node.Active) {
			break
		}
		expected := expectedChange(g, node, value)
		cumulative += expected
		value += int64(math.Round(expected))
		if value < 0 {
			value = 0
		}
		steps = append(steps, RecommendedPathStep{
			TripID:          id,
			ExpectedValue:   expected,
			CumulativeValue: cumulative,
			ProjectedValue:  value,
		})
	}
	return steps
}

func expectedChange(g *graph.TripGraph, node *graph.TripNode, value int64) float64 {
	if node == nil {
		return 0
	}
	if m, ok := node.Stats.ByBucket[g.Buckets().BucketFor(value)]; ok && m.Count > 0 {
		return m.AvgValueChange
	}
	return node.Stats.AvgValueChange
}

func index(trips []graph.Trip) map[string]graph.Trip {
	m := make(map[string]graph.Trip, len(trips))
	for _, t := range trips {
		m[t.ID] = t
	}
	return m
}

func agentLabel(j *graph.RatJourney) string {
	if j.AgentName != "" {
		return j.AgentName
	}
	return j.AgentID
}
