// Package api serves the trip graph over HTTP.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ratfun/tripgraph/internal/cache"
	"ratfun/tripgraph/internal/db"
	"ratfun/tripgraph/internal/graph"
	"ratfun/tripgraph/internal/selector"
)

// Handlers contains the HTTP handlers for the advisory API.
type Handlers struct {
	cache    *cache.Cache
	selector *selector.Selector
	store    *db.DB
	logger   *slog.Logger
}

// NewHandlers creates handlers over c. store may be nil, in which case
// ingested outcomes only update the in-memory graph.
func NewHandlers(c *cache.Cache, sel *selector.Selector, store *db.DB, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{cache: c, selector: sel, store: store, logger: logger}
}

// HandleSelect handles POST /v1/worlds/:world/select.
func (h *Handlers) HandleSelect(c *gin.Context) {
	world := c.Param("world")
	logger := h.logger.With("request_id", requestID(c), "handler", "HandleSelect", "world", world)

	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	trips, ok := h.availableTrips(c, world, req.Trips, logger)
	if !ok {
		return
	}
	res := h.selector.SelectTrip(c.Request.Context(), world, trips, req.AgentValue, req.CurrentPath)
	c.JSON(http.StatusOK, SelectResponse{Result: res})
}

// HandlePath handles POST /v1/worlds/:world/path.
func (h *Handlers) HandlePath(c *gin.Context) {
	world := c.Param("world")
	logger := h.logger.With("request_id", requestID(c), "handler", "HandlePath", "world", world)

	var req PathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	trips, ok := h.availableTrips(c, world, req.Trips, logger)
	if !ok {
		return
	}
	steps := h.selector.RecommendedPath(c.Request.Context(), world, trips, req.AgentValue, req.CurrentPath, req.MaxSteps)
	resp := PathResponse{Steps: steps}
	if len(steps) > 0 {
		resp.CumulativeValue = steps[len(steps)-1].CumulativeValue
	}
	c.JSON(http.StatusOK, resp)
}

// HandleOutcome handles POST /v1/worlds/:world/outcomes. The outcome is
// stored (when a store is configured) and folded into the cached graph.
func (h *Handlers) HandleOutcome(c *gin.Context) {
	world := c.Param("world")
	logger := h.logger.With("request_id", requestID(c), "handler", "HandleOutcome", "world", world)

	var raw graph.RawOutcome
	if err := c.ShouldBindJSON(&raw); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}
	if raw.ID == "" {
		raw.ID = uuid.NewString()
	}
	o, err := graph.Normalize(raw)
	if err != nil {
		logger.Warn("Rejected outcome", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_OUTCOME"})
		return
	}

	resp := OutcomeResponse{ID: o.ID, TripID: o.TripID, Died: o.Died}
	loaded := h.cache.Loaded(world)
	if h.store != nil {
		row, err := graph.RowFromRaw(world, raw)
		if err == nil {
			_, err = h.store.InsertOutcome(c.Request.Context(), row)
		}
		if err != nil {
			logger.Error("Persisting outcome failed", "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "STORE_FAILED"})
			return
		}
		resp.Persisted = true
	}

	if err := h.cache.Ensure(c.Request.Context(), world); err != nil {
		// Persisted outcomes are picked up by the next successful build.
		logger.Warn("Graph unavailable, outcome not applied", "error", err)
		c.JSON(http.StatusAccepted, resp)
		return
	}
	// A first load from the store already includes the persisted outcome.
	if loaded || !resp.Persisted {
		if err := h.cache.UpdateWithOutcome(world, o.TripID, o); err != nil {
			logger.Warn("Applying outcome failed", "error", err)
			c.JSON(http.StatusAccepted, resp)
			return
		}
	}
	_ = h.cache.View(world, func(g *graph.TripGraph) {
		resp.OutcomesSinceRebuild = g.OutcomesSinceRebuild
	})
	c.JSON(http.StatusOK, resp)
}

// HandleDepleted handles POST /v1/worlds/:world/trips/:trip/depleted.
func (h *Handlers) HandleDepleted(c *gin.Context) {
	world, trip := c.Param("world"), c.Param("trip")
	logger := h.logger.With("request_id", requestID(c), "handler", "HandleDepleted", "world", world, "trip", trip)

	if err := h.cache.MarkTripDepleted(world, trip); err != nil {
		h.writeCacheError(c, logger, err)
		return
	}
	if h.store != nil {
		if err := h.store.SetTripBalance(c.Request.Context(), trip, 0); err != nil {
			logger.Warn("Persisting depletion failed", "error", err)
		}
	}
	c.Status(http.StatusNoContent)
}

// HandleAccessible handles GET /v1/worlds/:world/trips/accessible?value=N.
func (h *Handlers) HandleAccessible(c *gin.Context) {
	world := c.Param("world")
	logger := h.logger.With("request_id", requestID(c), "handler", "HandleAccessible", "world", world)

	value, err := strconv.ParseInt(c.Query("value"), 10, 64)
	if err != nil || value < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "value must be a non-negative integer", Code: "INVALID_VALUE"})
		return
	}
	if err := h.cache.Ensure(c.Request.Context(), world); err != nil {
		h.writeCacheError(c, logger, err)
		return
	}
	nodes, err := h.cache.AccessibleTrips(world, value)
	if err != nil {
		h.writeCacheError(c, logger, err)
		return
	}
	if nodes == nil {
		nodes = []graph.TripNode{}
	}
	c.JSON(http.StatusOK, AccessibleResponse{AgentValue: value, Trips: nodes})
}

// HandleStaleness handles GET /v1/worlds/:world/staleness.
func (h *Handlers) HandleStaleness(c *gin.Context) {
	world := c.Param("world")
	logger := h.logger.With("request_id", requestID(c), "handler", "HandleStaleness", "world", world)

	report, err := h.cache.Staleness(world)
	if err != nil {
		h.writeCacheError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandleRebuild handles POST /v1/worlds/:world/rebuild.
func (h *Handlers) HandleRebuild(c *gin.Context) {
	world := c.Param("world")
	logger := h.logger.With("request_id", requestID(c), "handler", "HandleRebuild", "world", world)

	info, err := h.cache.Rebuild(c.Request.Context(), world)
	if err != nil {
		logger.Error("Rebuild failed", "error", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error(), Code: "REBUILD_FAILED"})
		return
	}
	logger.Info("Graph rebuilt", "nodes", info.Nodes, "edges", info.Edges, "shared", info.Shared)
	c.JSON(http.StatusOK, RebuildResponse{BuildInfo: info})
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Worlds: h.cache.Worlds()})
}

// availableTrips returns the request's trips or, when it named none, the
// world's active trips. It writes the error response and returns false on failure.
func (h *Handlers) availableTrips(c *gin.Context, world string, trips []graph.Trip, logger *slog.Logger) ([]graph.Trip, bool) {
	for _, t := range trips {
		if t.ID == "" {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "trip id is required", Code: "INVALID_REQUEST"})
			return nil, false
		}
	}
	if len(trips) > 0 {
		return trips, true
	}
	if err := h.cache.Ensure(c.Request.Context(), world); err != nil {
		h.writeCacheError(c, logger, err)
		return nil, false
	}
	active, err := h.cache.ActiveTrips(world)
	if err != nil {
		h.writeCacheError(c, logger, err)
		return nil, false
	}
	return active, true
}

func (h *Handlers) writeCacheError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := http.StatusBadGateway, "GRAPH_UNAVAILABLE"
	switch {
	case errors.Is(err, cache.ErrWorldNotLoaded):
		status, code = http.StatusNotFound, "WORLD_NOT_LOADED"
	case errors.Is(err, cache.ErrTripNotFound):
		status, code = http.StatusNotFound, "TRIP_NOT_FOUND"
	}
	logger.Warn("Graph request failed", "error", err)
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func requestID(c *gin.Context) string {
	id := c.GetHeader("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	c.Header("X-Request-ID", id)
	return id
}
