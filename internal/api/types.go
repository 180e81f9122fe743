package api

import (
	"ratfun/tripgraph/internal/cache"
	"ratfun/tripgraph/internal/graph"
	"ratfun/tripgraph/internal/selector"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// SelectRequest asks for the next trip. Trips defaults to the world's active
// trips when omitted.
type SelectRequest struct {
	Trips       []graph.Trip `json:"trips"`
	AgentValue  int64        `json:"agent_value" binding:"gte=0"`
	CurrentPath []string     `json:"current_path" binding:"omitempty,dive,required"`
}

// SelectResponse carries the recommendation; Result is null when no trip is available.
type SelectResponse struct {
	Result *selector.Result `json:"result"`
}

// PathRequest asks for a multi-step plan.
type PathRequest struct {
	Trips       []graph.Trip `json:"trips"`
	AgentValue  int64        `json:"agent_value" binding:"gte=0"`
	CurrentPath []string     `json:"current_path" binding:"omitempty,dive,required"`
	MaxSteps    int          `json:"max_steps" binding:"gte=0,lte=50"`
}

// PathResponse is an advisory plan.
type PathResponse struct {
	Steps           []selector.RecommendedPathStep `json:"steps"`
	CumulativeValue float64                        `json:"cumulative_value"`
}

// OutcomeResponse acknowledges an ingested outcome.
type OutcomeResponse struct {
	ID                   string `json:"id"`
	TripID               string `json:"trip_id"`
	Died                 bool   `json:"died"`
	Persisted            bool   `json:"persisted"`
	OutcomesSinceRebuild int    `json:"outcomes_since_rebuild"`
}

// AccessibleResponse lists trips an agent may enter.
type AccessibleResponse struct {
	AgentValue int64            `json:"agent_value"`
	Trips      []graph.TripNode `json:"trips"`
}

// RebuildResponse reports a completed rebuild.
type RebuildResponse struct {
	cache.BuildInfo
}

// HealthResponse reports liveness and loaded worlds.
type HealthResponse struct {
	Status string   `json:"status"`
	Worlds []string `json:"worlds"`
}
