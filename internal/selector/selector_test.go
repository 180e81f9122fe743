package selector

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratfun/tripgraph/internal/cache"
	"ratfun/tripgraph/internal/graph"
)

type stubSource struct {
	trips    []graph.Trip
	outcomes []graph.Outcome
	err      error
}

func (s *stubSource) FetchTrips(ctx context.Context, worldID string) ([]graph.Trip, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.trips, nil
}

func (s *stubSource) FetchOutcomes(ctx context.Context, worldID string, tripIDs []string) ([]graph.Outcome, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.outcomes, nil
}

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func trip(id string, balance, cost int64) graph.Trip {
	return graph.Trip{ID: id, WorldID: "w1", Prompt: "Trip " + id, Balance: balance, CreationCost: cost}
}

// journey walks an agent from value 100 through trips, gaining 150, 150, 200...
func journey(agent, name string, tripIDs ...string) []graph.Outcome {
	gains := []int64{150, 150, 200, 200, 200}
	var outs []graph.Outcome
	value := int64(100)
	for i, id := range tripIDs {
		outs = append(outs, graph.Outcome{
			ID:          fmt.Sprintf("%s-%d", agent, i),
			TripID:      id,
			AgentID:     agent,
			AgentName:   name,
			CreatedAt:   t0.Add(time.Duration(i) * time.Minute),
			ValueBefore: value,
			ValueAfter:  value + gains[i],
			ValueChange: gains[i],
		})
		value += gains[i]
	}
	return outs
}

func newSelector(src *stubSource) *Selector {
	return New(cache.New(src), nil)
}

func TestSelectTrip_NoTrips(t *testing.T) {
	s := newSelector(&stubSource{})
	assert.Nil(t, s.SelectTrip(context.Background(), "w1", nil, 100, nil))
}

func TestSelectTrip_FollowsJourneyPrefix(t *testing.T) {
	src := &stubSource{
		trips:    []graph.Trip{trip("T1", 1000, 1000), trip("T2", 1000, 1000), trip("T3", 1000, 1000), trip("T9", 5000, 1000)},
		outcomes: journey("r1", "Whiskers", "T1", "T2", "T3"),
	}
	s := newSelector(src)

	available := []graph.Trip{trip("T2", 1000, 1000), trip("T3", 1000, 1000), trip("T9", 5000, 1000)}
	res := s.SelectTrip(context.Background(), "w1", available, 250, []string{"T1"})
	require.NotNil(t, res)
	assert.Equal(t, "T2", res.Trip.ID)
	assert.Equal(t, TierExactMatch, res.Tier)
	assert.Equal(t, 2, res.Step)
	assert.Equal(t, "r1", res.Journey)
	assert.Equal(t, "Following Whiskers's journey (peak 600): step 2 of 3", res.Explanation)
}

func TestSelectTrip_ProvenJourneyBeatsBalance(t *testing.T) {
	available := []graph.Trip{trip("A", 500, 1000), trip("B", 2000, 1000)}

	withHistory := newSelector(&stubSource{
		trips:    append(available, trip("C", 1000, 1000), trip("E", 1000, 1000)),
		outcomes: journey("r1", "", "A", "C", "E"),
	})
	res := withHistory.SelectTrip(context.Background(), "w1", available, 200, nil)
	require.NotNil(t, res)
	assert.Equal(t, "A", res.Trip.ID)
	assert.Equal(t, TierExactMatch, res.Tier)

	noHistory := newSelector(&stubSource{trips: available})
	res = noHistory.SelectTrip(context.Background(), "w1", available, 200, nil)
	require.NotNil(t, res)
	assert.Equal(t, "B", res.Trip.ID)
	assert.Equal(t, TierNoHistory, res.Tier)
	assert.Contains(t, res.Explanation, "2000")
}

func TestSelectTrip_JourneyScore(t *testing.T) {
	src := &stubSource{
		trips:    []graph.Trip{trip("A", 1000, 1000), trip("C", 1000, 1000), trip("E", 1000, 1000)},
		outcomes: journey("r1", "", "A", "C", "E"),
	}
	s := newSelector(src)

	// path X matches no journey; C scores 600 * 2/3 and E 600 * 1/3
	available := []graph.Trip{trip("E", 9000, 1000), trip("C", 100, 1000)}
	res := s.SelectTrip(context.Background(), "w1", available, 200, []string{"X"})
	require.NotNil(t, res)
	assert.Equal(t, "C", res.Trip.ID)
	assert.Equal(t, TierJourneyScore, res.Tier)
	assert.InDelta(t, 400, res.Score, 1e-9)
	assert.Equal(t, 2, res.Step)
}

func TestSelectTrip_UnmatchedTripsFallBackToHeuristic(t *testing.T) {
	src := &stubSource{
		trips:    []graph.Trip{trip("A", 1000, 1000), trip("C", 1000, 1000), trip("E", 1000, 1000)},
		outcomes: journey("r1", "", "A", "C", "E"),
	}
	s := newSelector(src)

	available := []graph.Trip{trip("P", 300, 1000), trip("Q", 700, 1000)}
	res := s.SelectTrip(context.Background(), "w1", available, 200, nil)
	require.NotNil(t, res)
	assert.Equal(t, "Q", res.Trip.ID)
	assert.Equal(t, TierHeuristic, res.Tier)
}

func TestSelectTrip_GraphUnavailable(t *testing.T) {
	s := newSelector(&stubSource{err: errors.New("store offline")})

	available := []graph.Trip{trip("A", 500, 1000), trip("B", 800, 1000), trip("C", 800, 1000)}
	res := s.SelectTrip(context.Background(), "w1", available, 200, nil)
	require.NotNil(t, res)
	assert.Equal(t, "B", res.Trip.ID, "ties go to the smaller id")
	assert.Equal(t, TierHeuristic, res.Tier)
}

func TestSelectTrip_EntryGate(t *testing.T) {
	s := newSelector(&stubSource{})
	available := []graph.Trip{trip("big", 5000, 1000), trip("small", 200, 300), trip("dry", 0, 10)}

	// min entry: big 100, small 30, dry has no pool
	res := s.SelectTrip(context.Background(), "w1", available, 50, nil)
	require.NotNil(t, res)
	assert.Equal(t, "small", res.Trip.ID)

	// nothing enterable: the ungated list is used
	res = s.SelectTrip(context.Background(), "w1", available, 10, nil)
	require.NotNil(t, res)
	assert.Equal(t, "big", res.Trip.ID)
}

func TestRecommendedPath(t *testing.T) {
	var outs []graph.Outcome
	for i := 0; i < 3; i++ {
		outs = append(outs, journey(fmt.Sprintf("r%d", i), "", "T1", "T2", "T3")...)
	}
	src := &stubSource{
		trips:    []graph.Trip{trip("T1", 1000, 1000), trip("T2", 1000, 1000), trip("T3", 1000, 1000)},
		outcomes: outs,
	}
	s := newSelector(src)

	steps := s.RecommendedPath(context.Background(), "w1", src.trips, 100, nil, 0)
	require.Len(t, steps, 3)
	wantIDs := []string{"T1", "T2", "T3"}
	wantCum := []float64{150, 300, 500}
	wantProjected := []int64{250, 400, 600}
	for i, st := range steps {
		assert.Equal(t, wantIDs[i], st.TripID)
		assert.InDelta(t, wantCum[i], st.CumulativeValue, 1e-9)
		assert.Equal(t, wantProjected[i], st.ProjectedValue)
	}

	short := s.RecommendedPath(context.Background(), "w1", src.trips, 100, nil, 2)
	assert.Len(t, short, 2)

	// T2 depleted: the plan stops before it
	c := s.cache
	require.NoError(t, c.MarkTripDepleted("w1", "T2"))
	stopped := s.RecommendedPath(context.Background(), "w1", src.trips, 100, nil, 0)
	require.Len(t, stopped, 1)
	assert.Equal(t, "T1", stopped[0].TripID)
}

func TestRecommendedPath_NoHistory(t *testing.T) {
	available := []graph.Trip{trip("A", 500, 1000), trip("B", 2000, 1000)}
	s := newSelector(&stubSource{trips: available})

	steps := s.RecommendedPath(context.Background(), "w1", available, 200, nil, 5)
	require.Len(t, steps, 1)
	assert.Equal(t, "B", steps[0].TripID)
	assert.Zero(t, steps[0].ExpectedValue)
	assert.Equal(t, int64(200), steps[0].ProjectedValue)
}

func TestPositionBonus(t *testing.T) {
	assert.Equal(t, 1.0, positionBonus(0, 4))
	assert.Equal(t, 0.25, positionBonus(3, 4))
	assert.Equal(t, 0.0, positionBonus(0, 0))
}

func step(agent, tripID string, minute int, before, change int64) graph.Outcome {
	after := before + change
	if after < 0 {
		after = 0
	}
	return graph.Outcome{
		ID:          fmt.Sprintf("%s-%d", agent, minute),
		TripID:      tripID,
		AgentID:     agent,
		CreatedAt:   t0.Add(time.Duration(minute) * time.Minute),
		ValueBefore: before,
		ValueAfter:  after,
		ValueChange: after - before,
		Died:        before > 0 && after == 0,
	}
}

func TestSelectTrip_TrackRecordOverSingleSample(t *testing.T) {
	var outs []graph.Outcome
	// A: 8 survivals at +50 that go on to proven journeys, 2 deaths
	for i := 0; i < 8; i++ {
		agent := fmt.Sprintf("good%d", i)
		outs = append(outs,
			step(agent, "A", 0, 100, 50),
			step(agent, "C", 1, 150, 200),
			step(agent, "E", 2, 350, 200),
		)
	}
	for i := 0; i < 2; i++ {
		outs = append(outs, step(fmt.Sprintf("dead%d", i), "A", 0, 100, -100))
	}
	// B: one lucky survival
	outs = append(outs, step("lucky", "B", 0, 100, 500))

	available := []graph.Trip{trip("A", 500, 1000), trip("B", 2000, 1000)}
	src := &stubSource{
		trips:    append(available, trip("C", 1000, 1000), trip("E", 1000, 1000)),
		outcomes: outs,
	}
	s := newSelector(src)

	res := s.SelectTrip(context.Background(), "w1", available, 100, nil)
	require.NotNil(t, res)
	assert.Equal(t, "A", res.Trip.ID)
	assert.Equal(t, TierExactMatch, res.Tier)

	err := s.cache.View("w1", func(g *graph.TripGraph) {
		a := g.Node("A").Stats
		assert.Equal(t, 10, a.Count)
		assert.InDelta(t, 0.8, a.SurvivalRate, 1e-9)
		assert.Equal(t, 1, g.Node("B").Stats.Count)
	})
	require.NoError(t, err)
}
