package graph

import (
	"sort"
	"time"
)

// TripSummary is a one-line view of a node for reports.
type TripSummary struct {
	ID             string  `json:"id" yaml:"id"`
	Prompt         string  `json:"prompt" yaml:"prompt"`
	Outcomes       int     `json:"outcomes" yaml:"outcomes"`
	SurvivalRate   float64 `json:"survival_rate" yaml:"survival_rate"`
	AvgValueChange float64 `json:"avg_value_change" yaml:"avg_value_change"`
	Balance        int64   `json:"balance" yaml:"balance"`
}

// HubTrip is a trip with many observed transitions
type HubTrip struct {
	ID        string `json:"id" yaml:"id"`
	Prompt    string `json:"prompt" yaml:"prompt"`
	Degree    int    `json:"degree" yaml:"degree"`
	InDegree  int    `json:"in_degree" yaml:"in_degree"`
	OutDegree int    `json:"out_degree" yaml:"out_degree"`
}

// DegreeBucket is one bucket in the degree histogram
type DegreeBucket struct {
	Label string `json:"label" yaml:"label"`
	Count int    `json:"count" yaml:"count"`
}

// TopologyReport describes the transition structure of the graph
type TopologyReport struct {
	TotalNodes       int            `json:"total_nodes" yaml:"total_nodes"`
	ActiveNodes      int            `json:"active_nodes" yaml:"active_nodes"`
	TotalEdges       int            `json:"total_edges" yaml:"total_edges"`
	NumComponents    int            `json:"num_components" yaml:"num_components"`
	LargestComponent int            `json:"largest_component" yaml:"largest_component"`
	OrphanCount      int            `json:"orphan_count" yaml:"orphan_count"`
	OrphanIDs        []string       `json:"orphan_ids" yaml:"orphan_ids"`
	DegreeHistogram  []DegreeBucket `json:"degree_histogram" yaml:"degree_histogram"`
	Hubs             []HubTrip      `json:"hubs" yaml:"hubs"`
}

// JourneyReport summarizes mined journeys and patterns
type JourneyReport struct {
	TotalJourneys      int           `json:"total_journeys" yaml:"total_journeys"`
	SuccessfulJourneys int           `json:"successful_journeys" yaml:"successful_journeys"`
	BestPeakValue      int64         `json:"best_peak_value" yaml:"best_peak_value"`
	PatternCount       int           `json:"pattern_count" yaml:"pattern_count"`
	TopPatterns        []PathPattern `json:"top_patterns" yaml:"top_patterns"`
}

// CoverageBreakdown shows the sub-scores of the coverage formula
type CoverageBreakdown struct {
	Sampled   float64 `json:"sampled" yaml:"sampled"`
	Connected float64 `json:"connected" yaml:"connected"`
	Proven    float64 `json:"proven" yaml:"proven"`
	Freshness float64 `json:"freshness" yaml:"freshness"`
}

// AnalysisReport is the full analysis result
type AnalysisReport struct {
	WorldID           string            `json:"world_id" yaml:"world_id"`
	CoverageScore     float64           `json:"coverage_score" yaml:"coverage_score"`
	CoverageBreakdown CoverageBreakdown `json:"coverage_breakdown" yaml:"coverage_breakdown"`
	Topology          *TopologyReport   `json:"topology" yaml:"topology"`
	Journeys          *JourneyReport    `json:"journeys" yaml:"journeys"`
	MostProfitable    []TripSummary     `json:"most_profitable" yaml:"most_profitable"`
	Riskiest          []TripSummary     `json:"riskiest" yaml:"riskiest"`
	Chokepoints       *ChokepointReport `json:"chokepoints" yaml:"chokepoints"`
	Staleness         *StalenessReport  `json:"staleness" yaml:"staleness"`
}

// AnalyzerConfig holds analysis parameters
type AnalyzerConfig struct {
	HubThreshold int
	TopN         int
	// MinSamples is the outcome count from which a node counts as sampled.
	MinSamples int
	Staleness  StalenessPolicy
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *AnalyzerConfig {
	return &AnalyzerConfig{
		HubThreshold: 6,
		TopN:         10,
		MinSamples:   5,
		Staleness:    StalenessPolicy{MaxOutcomes: 500, MaxAge: time.Hour},
	}
}

// Analyze runs all analyses and computes a composite coverage score
func Analyze(g *TripGraph, config *AnalyzerConfig) *AnalysisReport {
	topology := ComputeTopology(g, config.HubThreshold, config.TopN)
	staleness := ComputeStaleness(g, config.Staleness, time.Now())
	journeys := summarizeJourneys(g, config.TopN)

	var summaries []TripSummary
	sampled := 0
	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		if n.Stats.Count >= config.MinSamples {
			sampled++
		}
		if n.Stats.Count == 0 {
			continue
		}
		summaries = append(summaries, TripSummary{
			ID:             n.ID,
			Prompt:         n.Prompt,
			Outcomes:       n.Stats.Count,
			SurvivalRate:   n.Stats.SurvivalRate,
			AvgValueChange: n.Stats.AvgValueChange,
			Balance:        n.Balance,
		})
	}

	profitable := append([]TripSummary(nil), summaries...)
	sort.SliceStable(profitable, func(i, j int) bool { return profitable[i].AvgValueChange > profitable[j].AvgValueChange })
	risky := append([]TripSummary(nil), summaries...)
	sort.SliceStable(risky, func(i, j int) bool { return risky[i].SurvivalRate < risky[j].SurvivalRate })

	total := float64(topology.TotalNodes)
	var b CoverageBreakdown
	if total > 0 {
		b.Sampled = clamp(float64(sampled)/total, 0, 1)
		b.Connected = clamp(1.0-float64(topology.OrphanCount)/total, 0, 1)
	}
	if journeys.TotalJourneys > 0 {
		b.Proven = clamp(float64(journeys.SuccessfulJourneys)/float64(journeys.TotalJourneys)*5.0, 0, 1)
	}
	b.Freshness = 1.0
	if config.Staleness.MaxOutcomes > 0 {
		b.Freshness = clamp(1.0-float64(staleness.OutcomesSinceRebuild)/float64(config.Staleness.MaxOutcomes), 0, 1)
	}

	return &AnalysisReport{
		WorldID:           g.WorldID,
		CoverageScore:     0.35*b.Sampled + 0.25*b.Connected + 0.25*b.Proven + 0.15*b.Freshness,
		CoverageBreakdown: b,
		Topology:          topology,
		Journeys:          journeys,
		MostProfitable:    headSummaries(profitable, config.TopN),
		Riskiest:          headSummaries(risky, config.TopN),
		Chokepoints:       ComputeChokepoints(g),
		Staleness:         staleness,
	}
}

// ComputeTopology analyzes the transition graph: components, orphans, degree distribution, hubs
func ComputeTopology(g *TripGraph, hubThreshold, topN int) *TopologyReport {
	ids := g.NodeIDs()
	if len(ids) == 0 {
		return &TopologyReport{DegreeHistogram: defaultHistogram()}
	}

	inDeg := make(map[string]int, len(ids))
	outDeg := make(map[string]int, len(ids))
	uf := NewUnionFind(ids)
	for from, edges := range g.Edges {
		for _, e := range edges {
			outDeg[from]++
			inDeg[e.To]++
			uf.Union(from, e.To)
		}
	}

	r := &TopologyReport{
		TotalNodes:      len(ids),
		TotalEdges:      g.EdgeCount(),
		DegreeHistogram: defaultHistogram(),
	}
	components := uf.Components(func(a, b string) bool { return a < b })
	r.NumComponents = len(components)
	if len(components) > 0 {
		r.LargestComponent = len(components[0])
	}

	for _, id := range ids {
		n := g.Nodes[id]
		if n.Active {
			r.ActiveNodes++
		}
		degree := inDeg[id] + outDeg[id]
		r.DegreeHistogram[degreeBucket(degree)].Count++
		if degree == 0 {
			r.OrphanCount++
			if len(r.OrphanIDs) < topN {
				r.OrphanIDs = append(r.OrphanIDs, id)
			}
		}
		if degree > hubThreshold {
			r.Hubs = append(r.Hubs, HubTrip{
				ID:        id,
				Prompt:    n.Prompt,
				Degree:    degree,
				InDegree:  inDeg[id],
				OutDegree: outDeg[id],
			})
		}
	}
	sort.SliceStable(r.Hubs, func(i, j int) bool { return r.Hubs[i].Degree > r.Hubs[j].Degree })
	if len(r.Hubs) > topN {
		r.Hubs = r.Hubs[:topN]
	}
	return r
}

func summarizeJourneys(g *TripGraph, topN int) *JourneyReport {
	r := &JourneyReport{
		TotalJourneys:      g.JourneyCount,
		SuccessfulJourneys: len(g.SuccessfulJourneys),
		PatternCount:       len(g.Patterns),
	}
	for _, j := range g.SuccessfulJourneys {
		if j.PeakValue > r.BestPeakValue {
			r.BestPeakValue = j.PeakValue
		}
	}
	r.TopPatterns = g.Patterns
	if len(r.TopPatterns) > topN {
		r.TopPatterns = r.TopPatterns[:topN]
	}
	return r
}

func headSummaries(s []TripSummary, n int) []TripSummary {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func defaultHistogram() []DegreeBucket {
	return []DegreeBucket{
		{Label: "0"}, {Label: "1"}, {Label: "2-3"},
		{Label: "4-7"}, {Label: "8-15"}, {Label: "16-31"}, {Label: "32+"},
	}
}

func degreeBucket(degree int) int {
	switch {
	case degree == 0:
		return 0
	case degree == 1:
		return 1
	case degree <= 3:
		return 2
	case degree <= 7:
		return 3
	case degree <= 15:
		return 4
	case degree <= 31:
		return 5
	default:
		return 6
	}
}

func clamp(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
