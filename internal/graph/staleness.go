package graph

import (
	"fmt"
	"sort"
	"time"
)

// StalenessPolicy decides when incremental drift warrants a full rebuild.
// Zero values disable the corresponding check.
type StalenessPolicy struct {
	MaxOutcomes int
	MaxAge      time.Duration
}

// StaleNode is a node whose median and stddev have drifted since the last rebuild
type StaleNode struct {
	ID       string `json:"id" yaml:"id"`
	Prompt   string `json:"prompt" yaml:"prompt"`
	Outcomes int    `json:"outcomes" yaml:"outcomes"`
}

// StalenessReport describes how far the graph has drifted from a full rebuild
type StalenessReport struct {
	WorldID              string      `json:"world_id" yaml:"world_id"`
	LastRebuild          time.Time   `json:"last_rebuild" yaml:"last_rebuild"`
	AgeSeconds           int64       `json:"age_seconds" yaml:"age_seconds"`
	OutcomesSinceRebuild int         `json:"outcomes_since_rebuild" yaml:"outcomes_since_rebuild"`
	StaleNodes           []StaleNode `json:"stale_nodes" yaml:"stale_nodes"`
	StaleNodeCount       int         `json:"stale_node_count" yaml:"stale_node_count"`
	RebuildRecommended   bool        `json:"rebuild_recommended" yaml:"rebuild_recommended"`
	Reasons              []string    `json:"reasons,omitempty" yaml:"reasons,omitempty"`
}

// ComputeStaleness reports incremental drift and whether a rebuild is due
func ComputeStaleness(g *TripGraph, policy StalenessPolicy, now time.Time) *StalenessReport {
	age := now.Sub(g.LastRebuild)
	if age < 0 {
		age = 0
	}

	var stale []StaleNode
	for _, n := range g.Nodes {
		if !n.Stats.Stale {
			continue
		}
		stale = append(stale, StaleNode{ID: n.ID, Prompt: n.Prompt, Outcomes: n.Stats.Count})
	}
	sort.Slice(stale, func(i, j int) bool {
		if stale[i].Outcomes != stale[j].Outcomes {
			return stale[i].Outcomes > stale[j].Outcomes
		}
		return stale[i].ID < stale[j].ID
	})

	r := &StalenessReport{
		WorldID:              g.WorldID,
		LastRebuild:          g.LastRebuild,
		AgeSeconds:           int64(age / time.Second),
		OutcomesSinceRebuild: g.OutcomesSinceRebuild,
		StaleNodes:           stale,
		StaleNodeCount:       len(stale),
	}
	if policy.MaxOutcomes > 0 && g.OutcomesSinceRebuild >= policy.MaxOutcomes {
		r.Reasons = append(r.Reasons, fmt.Sprintf("%d outcomes since last rebuild (limit %d)", g.OutcomesSinceRebuild, policy.MaxOutcomes))
	}
	if policy.MaxAge > 0 && age >= policy.MaxAge {
		r.Reasons = append(r.Reasons, fmt.Sprintf("last rebuild %s ago (limit %s)", age.Round(time.Second), policy.MaxAge))
	}
	r.RebuildRecommended = len(r.Reasons) > 0
	return r
}
