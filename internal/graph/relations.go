package graph

import "sort"

const (
	relationMinFrequency = 0.05
	relationLimit        = 10
)

// RelatedTrip is a trip commonly visited right before or right after a node.
type RelatedTrip struct {
	TripID    string  `json:"trip_id" yaml:"trip_id"`
	Count     int     `json:"count" yaml:"count"`
	Frequency float64 `json:"frequency" yaml:"frequency"`
	// AvgValueChange is the conditional impact: the node's value change when
	// preceded by TripID, or TripID's value change when it follows the node.
	AvgValueChange float64 `json:"avg_value_change" yaml:"avg_value_change"`
}

// timelines maps agent id to that agent's outcomes sorted by time.
type timelines map[string][]Outcome

func buildTimelines(outcomes []Outcome) timelines {
	t := make(timelines)
	for _, o := range outcomes {
		if o.AgentID == "" || o.CreatedAt.IsZero() {
			continue
		}
		t[o.AgentID] = append(t[o.AgentID], o)
	}
	for agent := range t {
		sortByTime(t[agent])
	}
	return t
}

// sortByTime orders outcomes by CreatedAt, ties broken by ID.
func sortByTime(outs []Outcome) {
	sort.SliceStable(outs, func(i, j int) bool {
		if !outs[i].CreatedAt.Equal(outs[j].CreatedAt) {
			return outs[i].CreatedAt.Before(outs[j].CreatedAt)
		}
		return outs[i].ID < outs[j].ID
	})
}

func computeRelations(tripID string, tl timelines) (preds, succs []RelatedTrip) {
	type tally struct {
		count int
		sum   float64
	}
	before := make(map[string]*tally)
	after := make(map[string]*tally)
	occurrences := 0

	bump := func(m map[string]*tally, id string, change int64) {
		t := m[id]
		if t == nil {
			t = &tally{}
			m[id] = t
		}
		t.count++
		t.sum += float64(change)
	}

	for _, outs := range tl {
		for i, o := range outs {
			if o.TripID != tripID {
				continue
			}
			occurrences++
			if i > 0 {
				bump(before, outs[i-1].TripID, o.ValueChange)
			}
			if i+1 < len(outs) && o.Survived() {
				bump(after, outs[i+1].TripID, outs[i+1].ValueChange)
			}
		}
	}
	if occurrences == 0 {
		return nil, nil
	}

	rank := func(m map[string]*tally) []RelatedTrip {
		var out []RelatedTrip
		for id, t := range m {
			freq := rate(t.count, occurrences)
			if freq <= relationMinFrequency {
				continue
			}
			out = append(out, RelatedTrip{
				TripID:         id,
				Count:          t.count,
				Frequency:      freq,
				AvgValueChange: t.sum / float64(t.count),
			})
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Frequency != out[j].Frequency {
				return out[i].Frequency > out[j].Frequency
			}
			return out[i].TripID < out[j].TripID
		})
		if len(out) > relationLimit {
			out = out[:relationLimit]
		}
		return out
	}
	return rank(before), rank(after)
}
