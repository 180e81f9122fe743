package graph

import "sort"

const (
	minInfluenceSamples   = 2
	maxCoGained           = 3
	awardMinFrequency     = 0.05
	awardSuccessThreshold = 0.7
)

// ItemInfluence compares outcomes of agents holding an item against those without it.
type ItemInfluence struct {
	Item                  string   `json:"item" yaml:"item"`
	CountWith             int      `json:"count_with" yaml:"count_with"`
	CountWithout          int      `json:"count_without" yaml:"count_without"`
	AvgValueChangeWith    float64  `json:"avg_value_change_with" yaml:"avg_value_change_with"`
	AvgValueChangeWithout float64  `json:"avg_value_change_without" yaml:"avg_value_change_without"`
	SurvivalRateWith      float64  `json:"survival_rate_with" yaml:"survival_rate_with"`
	SurvivalRateWithout   float64  `json:"survival_rate_without" yaml:"survival_rate_without"`
	InfluenceScore        float64  `json:"influence_score" yaml:"influence_score"`
	CoGained              []string `json:"co_gained,omitempty" yaml:"co_gained,omitempty"`
}

// ItemAward is an item a trip tends to grant.
type ItemAward struct {
	Item                 string  `json:"item" yaml:"item"`
	Count                int     `json:"count" yaml:"count"`
	Frequency            float64 `json:"frequency" yaml:"frequency"`
	AvgValue             float64 `json:"avg_value" yaml:"avg_value"`
	ConditionalOnSuccess bool    `json:"conditional_on_success" yaml:"conditional_on_success"`
}

// InfluenceScore blends the economic and the survival difference into one
// ranking scalar: value delta + 100 x survival-rate delta.
func InfluenceScore(avgWith, avgWithout, survWith, survWithout float64) float64 {
	return (avgWith - avgWithout) + 100*(survWith-survWithout)
}

func computeItemInfluences(outcomes []Outcome) []ItemInfluence {
	seen := make(map[string]bool)
	var names []string
	for _, o := range outcomes {
		for _, it := range o.Inventory {
			if it.Name == "" || seen[it.Name] {
				continue
			}
			seen[it.Name] = true
			names = append(names, it.Name)
		}
	}

	var influences []ItemInfluence
	for _, name := range names {
		var with, without []Outcome
		for _, o := range outcomes {
			if o.HasItem(name) {
				with = append(with, o)
			} else {
				without = append(without, o)
			}
		}
		if len(with) < minInfluenceSamples || len(without) < minInfluenceSamples {
			continue
		}
		mw := computeMetrics(with)
		mo := computeMetrics(without)
		influences = append(influences, ItemInfluence{
			Item:                  name,
			CountWith:             len(with),
			CountWithout:          len(without),
			AvgValueChangeWith:    mw.AvgValueChange,
			AvgValueChangeWithout: mo.AvgValueChange,
			SurvivalRateWith:      mw.SurvivalRate,
			SurvivalRateWithout:   mo.SurvivalRate,
			InfluenceScore:        InfluenceScore(mw.AvgValueChange, mo.AvgValueChange, mw.SurvivalRate, mo.SurvivalRate),
			CoGained:              topGained(with, name, maxCoGained),
		})
	}

	sort.Slice(influences, func(i, j int) bool {
		if influences[i].InfluenceScore != influences[j].InfluenceScore {
			return influences[i].InfluenceScore > influences[j].InfluenceScore
		}
		return influences[i].Item < influences[j].Item
	})
	return influences
}

// topGained returns the names most often gained across outcomes, excluding exclude.
func topGained(outcomes []Outcome, exclude string, limit int) []string {
	counts := make(map[string]int)
	for _, o := range outcomes {
		for name := range uniqueNames(o.Gained) {
			if name != exclude {
				counts[name]++
			}
		}
	}
	return topKeys(counts, limit)
}

func computeItemAwards(outcomes []Outcome) []ItemAward {
	type tally struct {
		count     int
		successes int
		valueSum  int64
	}
	tallies := make(map[string]*tally)
	for _, o := range outcomes {
		success := o.Survived() && o.ValueChange > 0
		for _, it := range o.Gained {
			if it.Name == "" {
				continue
			}
			t := tallies[it.Name]
			if t == nil {
				t = &tally{}
				tallies[it.Name] = t
			}
			t.count++
			t.valueSum += it.Value
			if success {
				t.successes++
			}
		}
	}

	total := len(outcomes)
	var awards []ItemAward
	for name, t := range tallies {
		freq := rate(t.count, total)
		if freq <= awardMinFrequency {
			continue
		}
		awards = append(awards, ItemAward{
			Item:                 name,
			Count:                t.count,
			Frequency:            freq,
			AvgValue:             float64(t.valueSum) / float64(t.count),
			ConditionalOnSuccess: rate(t.successes, t.count) > awardSuccessThreshold,
		})
	}
	sort.Slice(awards, func(i, j int) bool {
		if awards[i].Frequency != awards[j].Frequency {
			return awards[i].Frequency > awards[j].Frequency
		}
		return awards[i].Item < awards[j].Item
	})
	return awards
}

// topKeys returns up to limit keys ordered by count desc, then key asc.
func topKeys(counts map[string]int, limit int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}
