package graph

import (
	"math"
	"sort"
	"time"
)

// TripNode is one vertex of the trip graph.
type TripNode struct {
	ID            string         `json:"id" yaml:"id"`
	Prompt        string         `json:"prompt" yaml:"prompt"`
	Balance       int64          `json:"balance" yaml:"balance"`
	CreationCost  int64          `json:"creation_cost" yaml:"creation_cost"`
	MinEntryValue int64          `json:"min_entry_value" yaml:"min_entry_value"`
	Active        bool           `json:"active" yaml:"active"`
	Stats         TripStatistics `json:"stats" yaml:"stats"`
}

// TripGraph is the full in-memory model of one world.
type TripGraph struct {
	WorldID              string                `json:"world_id"`
	Nodes                map[string]*TripNode  `json:"nodes"`
	Edges                map[string][]TripEdge `json:"edges"`
	SuccessfulJourneys   []RatJourney          `json:"successful_journeys"`
	Patterns             []PathPattern         `json:"patterns"`
	JourneyCount         int                   `json:"journey_count"`
	SkippedOutcomes      int                   `json:"skipped_outcomes"`
	LastRebuild          time.Time             `json:"last_rebuild"`
	OutcomeCount         int                   `json:"outcome_count"`
	OutcomesSinceRebuild int                   `json:"outcomes_since_rebuild"`
	MinValuePercent      float64               `json:"min_value_percent"`

	buckets BucketScheme
}

// MinEntryValue is the agent value a trip requires: floor(cost x percent / 100).
func MinEntryValue(creationCost int64, percent float64) int64 {
	return int64(math.Floor(float64(creationCost) * percent / 100))
}

// NewNode builds a node for trip with neutral statistics.
func NewNode(t Trip, percent float64) *TripNode {
	return &TripNode{
		ID:            t.ID,
		Prompt:        t.Prompt,
		Balance:       t.Balance,
		CreationCost:  t.CreationCost,
		MinEntryValue: MinEntryValue(t.CreationCost, percent),
		Active:        t.Balance > 0,
		Stats:         NeutralStatistics(),
	}
}

// Buckets returns the value bucket scheme the graph was built with.
func (g *TripGraph) Buckets() BucketScheme {
	return g.buckets
}

// Node returns the node for tripID, or nil.
func (g *TripGraph) Node(tripID string) *TripNode {
	return g.Nodes[tripID]
}

// EdgeCount returns the number of directed edges.
func (g *TripGraph) EdgeCount() int {
	n := 0
	for _, es := range g.Edges {
		n += len(es)
	}
	return n
}

// EdgesFrom returns the outgoing edges of tripID ordered by count.
func (g *TripGraph) EdgesFrom(tripID string) []TripEdge {
	return g.Edges[tripID]
}

// ApplyOutcome folds a completed trip into the graph without a rebuild.
// Unknown trips get a fresh neutral node.
func (g *TripGraph) ApplyOutcome(tripID string, o Outcome) {
	node := g.Nodes[tripID]
	if node == nil {
		node = NewNode(Trip{ID: tripID, Balance: o.BalanceAfter}, g.MinValuePercent)
		g.Nodes[tripID] = node
	}
	UpdateWithOutcome(&node.Stats, o, g.buckets)
	if o.BalanceAfter > 0 || o.BalanceBefore > 0 {
		node.Balance = o.BalanceAfter
		node.Active = node.Balance > 0
	}
	g.OutcomeCount++
	g.OutcomesSinceRebuild++
}

// MarkTripDepleted deactivates a trip whose pool ran dry. It reports whether the trip was known.
func (g *TripGraph) MarkTripDepleted(tripID string) bool {
	node := g.Nodes[tripID]
	if node == nil {
		return false
	}
	node.Balance = 0
	node.Active = false
	return true
}

// AddTrip inserts a new trip with neutral statistics. An existing trip is updated instead.
func (g *TripGraph) AddTrip(t Trip) {
	if _, ok := g.Nodes[t.ID]; ok {
		g.UpdateTrip(t)
		return
	}
	g.Nodes[t.ID] = NewNode(t, g.MinValuePercent)
}

// UpdateTrip refreshes trip metadata and keeps statistics. It reports whether the trip was known.
func (g *TripGraph) UpdateTrip(t Trip) bool {
	node := g.Nodes[t.ID]
	if node == nil {
		return false
	}
	if t.Prompt != "" {
		node.Prompt = t.Prompt
	}
	node.Balance = t.Balance
	node.CreationCost = t.CreationCost
	node.MinEntryValue = MinEntryValue(t.CreationCost, g.MinValuePercent)
	node.Active = t.Balance > 0
	return true
}

// AccessibleTrips returns active nodes the agent can afford to enter, richest pool first.
func (g *TripGraph) AccessibleTrips(agentValue int64) []TripNode {
	var out []TripNode
	for _, n := range g.Nodes {
		if !n.Active || n.MinEntryValue > agentValue {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Balance != out[j].Balance {
			return out[i].Balance > out[j].Balance
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// NodeIDs returns a sorted list of all node IDs (for deterministic output)
func (g *TripGraph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ActiveTrips returns every active node as a Trip, richest pool first.
func (g *TripGraph) ActiveTrips() []Trip {
	var out []Trip
	for _, n := range g.AccessibleTrips(math.MaxInt64) {
		out = append(out, Trip{
			ID:           n.ID,
			WorldID:      g.WorldID,
			Prompt:       n.Prompt,
			Balance:      n.Balance,
			CreationCost: n.CreationCost,
		})
	}
	return out
}
