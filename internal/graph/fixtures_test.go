package graph

import (
	"fmt"
	"time"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func i64(v int64) *int64 { return &v }

// hop is one trip taken on a walk, with the value change it produced.
type hop struct {
	trip   string
	change int64
	items  []string // held on entrance
}

// walk returns the outcomes of agent taking hops in order, starting with
// value start. Timestamps are one minute apart beginning at minute offset.
// A hop that takes the value to zero or below is a death.
func walk(agent string, start int64, offset int, hops ...hop) []Outcome {
	var outs []Outcome
	v := start
	for i, h := range hops {
		after := v + h.change
		if after < 0 {
			after = 0
		}
		var inv []Item
		for _, name := range h.items {
			inv = append(inv, Item{ID: name + "-" + agent, Name: name, Value: 10})
		}
		outs = append(outs, Outcome{
			ID:          fmt.Sprintf("%s-%02d", agent, i),
			TripID:      h.trip,
			AgentID:     agent,
			AgentName:   "Rat " + agent,
			CreatedAt:   t0.Add(time.Duration(offset+i) * time.Minute),
			ValueBefore: v,
			ValueAfter:  after,
			ValueChange: after - v,
			Inventory:   inv,
			Died:        v > 0 && after == 0,
		})
		v = after
	}
	return outs
}

// single is one outcome on trip with the given entry value and change.
func single(id, trip string, before, change int64) Outcome {
	return walk(id, before, 0, hop{trip: trip, change: change})[0]
}

func concat(groups ...[]Outcome) []Outcome {
	var out []Outcome
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func trips(ids ...string) []Trip {
	out := make([]Trip, len(ids))
	for i, id := range ids {
		out[i] = Trip{ID: id, WorldID: "w1", Prompt: "Trip " + id, Balance: 1000, CreationCost: 1000}
	}
	return out
}
