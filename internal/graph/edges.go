package graph

import "sort"

const (
	minEdgeCount          = 2
	minBeneficialSamples  = 3
	maxBeneficialPerEdge  = 3
	defaultBeneficialGain = 50
)

// BeneficialItem is an item whose presence on a transition correlates with a better result.
type BeneficialItem struct {
	Item         string  `json:"item" yaml:"item"`
	Delta        float64 `json:"delta" yaml:"delta"`
	CountWith    int     `json:"count_with" yaml:"count_with"`
	CountWithout int     `json:"count_without" yaml:"count_without"`
}

// TripEdge is an observed transition between two trips.
type TripEdge struct {
	From            string           `json:"from" yaml:"from"`
	To              string           `json:"to" yaml:"to"`
	Count           int              `json:"count" yaml:"count"`
	SurvivalRate    float64          `json:"survival_rate" yaml:"survival_rate"`
	AvgValueGained  float64          `json:"avg_value_gained" yaml:"avg_value_gained"`
	BeneficialItems []BeneficialItem `json:"beneficial_items,omitempty" yaml:"beneficial_items,omitempty"`
}

type transition struct {
	from, to string
}

// BuildEdges derives edges from consecutive survived steps of every journey.
// Pairs seen fewer than twice are dropped. minDelta is the value-change gap an
// item must open to count as beneficial; <= 0 uses the default of 50.
func BuildEdges(journeys []RatJourney, minDelta float64) map[string][]TripEdge {
	if minDelta <= 0 {
		minDelta = defaultBeneficialGain
	}
	samples := make(map[transition][]JourneyStep)
	var order []transition
	for _, j := range journeys {
		for i := 0; i+1 < len(j.Steps); i++ {
			if !j.Steps[i].Survived {
				break
			}
			t := transition{from: j.Steps[i].TripID, to: j.Steps[i+1].TripID}
			if _, ok := samples[t]; !ok {
				order = append(order, t)
			}
			samples[t] = append(samples[t], j.Steps[i+1])
		}
	}

	edges := make(map[string][]TripEdge)
	for _, t := range order {
		dest := samples[t]
		if len(dest) < minEdgeCount {
			continue
		}
		survived := 0
		var gain int64
		for _, s := range dest {
			if s.Survived {
				survived++
			}
			gain += s.ValueChange
		}
		edges[t.from] = append(edges[t.from], TripEdge{
			From:            t.from,
			To:              t.to,
			Count:           len(dest),
			SurvivalRate:    rate(survived, len(dest)),
			AvgValueGained:  float64(gain) / float64(len(dest)),
			BeneficialItems: beneficialItems(dest, minDelta),
		})
	}
	for from := range edges {
		sortEdges(edges[from])
	}
	return edges
}

func sortEdges(edges []TripEdge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Count != edges[j].Count {
			return edges[i].Count > edges[j].Count
		}
		return edges[i].To < edges[j].To
	})
}

func beneficialItems(dest []JourneyStep, minDelta float64) []BeneficialItem {
	names := make(map[string]bool)
	for _, s := range dest {
		for _, n := range s.ItemsOnEntrance {
			if n != "" {
				names[n] = true
			}
		}
	}

	var items []BeneficialItem
	for name := range names {
		var withSum, withoutSum int64
		var with, without int
		for _, s := range dest {
			if containsString(s.ItemsOnEntrance, name) {
				with++
				withSum += s.ValueChange
			} else {
				without++
				withoutSum += s.ValueChange
			}
		}
		if with < minBeneficialSamples || without < minBeneficialSamples {
			continue
		}
		delta := float64(withSum)/float64(with) - float64(withoutSum)/float64(without)
		if delta < minDelta {
			continue
		}
		items = append(items, BeneficialItem{Item: name, Delta: delta, CountWith: with, CountWithout: without})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Delta != items[j].Delta {
			return items[i].Delta > items[j].Delta
		}
		return items[i].Item < items[j].Item
	})
	if len(items) > maxBeneficialPerEdge {
		items = items[:maxBeneficialPerEdge]
	}
	return items
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
