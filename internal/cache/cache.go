// Package cache owns one trip graph per world and serializes every mutation
// of it. Full rebuilds run off-lock and replace the previous generation in a
// single swap; concurrent rebuild requests for a world share one build.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"ratfun/tripgraph/internal/graph"
)

var (
	// ErrWorldNotLoaded is returned when a world has not been initialized.
	ErrWorldNotLoaded = errors.New("world graph not loaded")
	// ErrTripNotFound is returned for operations on a trip the graph does not know.
	ErrTripNotFound = errors.New("trip not found")
)

// Source is the external outcome store.
type Source interface {
	FetchTrips(ctx context.Context, worldID string) ([]graph.Trip, error)
	FetchOutcomes(ctx context.Context, worldID string, tripIDs []string) ([]graph.Outcome, error)
}

// BuildInfo summarizes a completed rebuild.
type BuildInfo struct {
	WorldID            string        `json:"world_id"`
	Nodes              int           `json:"nodes"`
	Edges              int           `json:"edges"`
	Journeys           int           `json:"journeys"`
	SuccessfulJourneys int           `json:"successful_journeys"`
	Patterns           int           `json:"patterns"`
	Outcomes           int           `json:"outcomes"`
	Skipped            int           `json:"skipped"`
	Duration           time.Duration `json:"duration"`
	Shared             bool          `json:"shared"`
}

// Option configures a Cache.
type Option func(*Cache)

// WithBuildOptions sets the graph build parameters.
func WithBuildOptions(o graph.BuildOptions) Option {
	return func(c *Cache) { c.opts = o }
}

// WithStalenessPolicy sets when a rebuild is recommended.
func WithStalenessPolicy(p graph.StalenessPolicy) Option {
	return func(c *Cache) { c.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// Cache holds the current graph generation of every loaded world.
//
// Thread Safety:
//
//	Safe for concurrent use. The world map has its own mutex; each world
//	has an RWMutex guarding its graph. Reads hold the read lock for the
//	duration of the callback.
type Cache struct {
	mu     sync.Mutex
	worlds map[string]*world
	flight singleflight.Group
	source Source
	opts   graph.BuildOptions
	policy graph.StalenessPolicy
	logger *slog.Logger
}

type world struct {
	mu    sync.RWMutex
	graph *graph.TripGraph
}

// New creates a Cache backed by source.
func New(source Source, opts ...Option) *Cache {
	c := &Cache{
		worlds: make(map[string]*world),
		source: source,
		opts:   graph.DefaultBuildOptions(),
		policy: graph.DefaultConfig().Staleness,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.opts.Logger == nil {
		c.opts.Logger = c.logger
	}
	return c
}

func (c *Cache) entry(worldID string) *world {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.worlds[worldID]
	if !ok {
		w = &world{}
		c.worlds[worldID] = w
	}
	return w
}

func (c *Cache) lookup(worldID string) (*world, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.worlds[worldID]
	return w, ok
}

// Initialize fully rebuilds worldID from trips and the world's complete
// outcome history. If a rebuild of the same world is already running, the
// caller waits for it and receives its result instead of starting another.
// The previous generation keeps serving reads until the new one is ready.
func (c *Cache) Initialize(ctx context.Context, worldID string, trips []graph.Trip) (BuildInfo, error) {
	v, err, shared := c.flight.Do(worldID, func() (any, error) {
		start := time.Now()
		outcomes, err := c.source.FetchOutcomes(ctx, worldID, nil)
		if err != nil {
			graphBuilds.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("fetching outcomes for world %s: %w", worldID, err)
		}

		g := graph.Build(worldID, trips, outcomes, c.opts)

		w := c.entry(worldID)
		w.mu.Lock()
		w.graph = g
		w.mu.Unlock()

		elapsed := time.Since(start)
		graphBuilds.WithLabelValues("ok").Inc()
		graphBuildDuration.Observe(elapsed.Seconds())
		graphNodes.WithLabelValues(worldID).Set(float64(len(g.Nodes)))
		outcomesSinceRebuild.WithLabelValues(worldID).Set(0)

		return BuildInfo{
			WorldID:            worldID,
			Nodes:              len(g.Nodes),
			Edges:              g.EdgeCount(),
			Journeys:           g.JourneyCount,
			SuccessfulJourneys: len(g.SuccessfulJourneys),
			Patterns:           len(g.Patterns),
			Outcomes:           g.OutcomeCount,
			Skipped:            g.SkippedOutcomes,
			Duration:           elapsed,
		}, nil
	})
	if err != nil {
		return BuildInfo{}, err
	}
	info := v.(BuildInfo)
	if shared {
		sharedBuilds.Inc()
		info.Shared = true
	}
	return info, nil
}

// Rebuild reloads trips from the source and fully rebuilds worldID.
func (c *Cache) Rebuild(ctx context.Context, worldID string) (BuildInfo, error) {
	trips, err := c.source.FetchTrips(ctx, worldID)
	if err != nil {
		return BuildInfo{}, fmt.Errorf("fetching trips for world %s: %w", worldID, err)
	}
	return c.Initialize(ctx, worldID, trips)
}

// Ensure loads worldID on first use and is a no-op once it is loaded.
func (c *Cache) Ensure(ctx context.Context, worldID string) error {
	if c.Loaded(worldID) {
		return nil
	}
	_, err := c.Rebuild(ctx, worldID)
	return err
}

// Loaded reports whether a graph generation exists for worldID.
func (c *Cache) Loaded(worldID string) bool {
	w, ok := c.lookup(worldID)
	if !ok {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.graph != nil
}

// View runs fn with read access to the current graph of worldID.
// fn must not retain or modify the graph.
func (c *Cache) View(worldID string, fn func(g *graph.TripGraph)) error {
	w, ok := c.lookup(worldID)
	if !ok {
		return ErrWorldNotLoaded
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.graph == nil {
		return ErrWorldNotLoaded
	}
	fn(w.graph)
	return nil
}

func (c *Cache) update(worldID string, fn func(g *graph.TripGraph) error) error {
	w, ok := c.lookup(worldID)
	if !ok {
		return ErrWorldNotLoaded
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.graph == nil {
		return ErrWorldNotLoaded
	}
	return fn(w.graph)
}

// UpdateWithOutcome folds a completed trip into the cached graph in O(1).
// Median, stddev, journeys and patterns stay stale until the next rebuild;
// Staleness reports how far the graph has drifted.
func (c *Cache) UpdateWithOutcome(worldID, tripID string, o graph.Outcome) error {
	return c.update(worldID, func(g *graph.TripGraph) error {
		g.ApplyOutcome(tripID, o)
		incrementalUpdates.Inc()
		outcomesSinceRebuild.WithLabelValues(worldID).Set(float64(g.OutcomesSinceRebuild))
		return nil
	})
}

// MarkTripDepleted deactivates a trip whose pool is exhausted.
func (c *Cache) MarkTripDepleted(worldID, tripID string) error {
	return c.update(worldID, func(g *graph.TripGraph) error {
		if !g.MarkTripDepleted(tripID) {
			return fmt.Errorf("%w: %s", ErrTripNotFound, tripID)
		}
		return nil
	})
}

// AddTrip registers a newly created trip.
func (c *Cache) AddTrip(worldID string, t graph.Trip) error {
	return c.update(worldID, func(g *graph.TripGraph) error {
		g.AddTrip(t)
		graphNodes.WithLabelValues(worldID).Set(float64(len(g.Nodes)))
		return nil
	})
}

// UpdateTrip refreshes trip metadata, keeping its statistics.
func (c *Cache) UpdateTrip(worldID string, t graph.Trip) error {
	return c.update(worldID, func(g *graph.TripGraph) error {
		if !g.UpdateTrip(t) {
			return fmt.Errorf("%w: %s", ErrTripNotFound, t.ID)
		}
		return nil
	})
}

// AccessibleTrips returns the active trips an agent with agentValue may enter.
func (c *Cache) AccessibleTrips(worldID string, agentValue int64) ([]graph.TripNode, error) {
	var nodes []graph.TripNode
	err := c.View(worldID, func(g *graph.TripGraph) {
		nodes = g.AccessibleTrips(agentValue)
	})
	return nodes, err
}

// Staleness reports incremental drift of worldID against the cache policy.
func (c *Cache) Staleness(worldID string) (*graph.StalenessReport, error) {
	var r *graph.StalenessReport
	err := c.View(worldID, func(g *graph.TripGraph) {
		r = graph.ComputeStaleness(g, c.policy, time.Now())
	})
	return r, err
}

// Analyze runs the graph report for worldID.
func (c *Cache) Analyze(worldID string, config *graph.AnalyzerConfig) (*graph.AnalysisReport, error) {
	if config == nil {
		config = graph.DefaultConfig()
		config.Staleness = c.policy
	}
	var r *graph.AnalysisReport
	err := c.View(worldID, func(g *graph.TripGraph) {
		r = graph.Analyze(g, config)
	})
	return r, err
}

// Invalidate drops the cached graph of worldID.
func (c *Cache) Invalidate(worldID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.worlds, worldID)
	graphNodes.DeleteLabelValues(worldID)
	outcomesSinceRebuild.DeleteLabelValues(worldID)
}

// Worlds returns the ids of all loaded worlds, sorted.
func (c *Cache) Worlds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.worlds))
	for id := range c.worlds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BuildOptions returns the options graphs are built with.
func (c *Cache) BuildOptions() graph.BuildOptions {
	return c.opts
}

// ActiveTrips returns the active trips of worldID as the graph last saw them.
func (c *Cache) ActiveTrips(worldID string) ([]graph.Trip, error) {
	var trips []graph.Trip
	err := c.View(worldID, func(g *graph.TripGraph) {
		trips = g.ActiveTrips()
	})
	return trips, err
}
