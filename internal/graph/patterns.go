package graph

import (
	"math"
	"sort"
	"strings"
)

const (
	// DefaultPatternLimit caps how many patterns are kept after ranking.
	DefaultPatternLimit = 50

	keyItemMinFrequency = 0.3
	entryWindowMin      = 3
	entryRangePadding   = 0.1
)

// KeyItem is an item held on entrance to a given pattern step in enough occurrences.
type KeyItem struct {
	Step      int     `json:"step" yaml:"step"`
	Item      string  `json:"item" yaml:"item"`
	Frequency float64 `json:"frequency" yaml:"frequency"`
}

// ValueRange is an inclusive agent value window.
type ValueRange struct {
	Min int64 `json:"min" yaml:"min"`
	Max int64 `json:"max" yaml:"max"`
}

// Contains reports whether v lies in the range.
func (r ValueRange) Contains(v int64) bool {
	return v >= r.Min && v <= r.Max
}

// PathPattern is a trip sequence repeated across several journeys.
type PathPattern struct {
	TripIDs        []string   `json:"trip_ids" yaml:"trip_ids"`
	Occurrences    int        `json:"occurrences" yaml:"occurrences"`
	AvgValueGain   float64    `json:"avg_value_gain" yaml:"avg_value_gain"`
	CompletionRate float64    `json:"completion_rate" yaml:"completion_rate"`
	KeyItems       []KeyItem  `json:"key_items,omitempty" yaml:"key_items,omitempty"`
	OptimalEntry   ValueRange `json:"optimal_entry" yaml:"optimal_entry"`
	Score          float64    `json:"score" yaml:"score"`
}

type occurrence struct {
	journey    int
	start      int
	entryValue int64
	gain       int64
	completed  bool
}

// ExtractPathPatterns mines contiguous trip sequences of length 2..maxLength
// that appear in at least minOccurrences distinct journeys, ranked by
// avg gain x completion rate x ln(occurrences+1) and capped at DefaultPatternLimit.
func ExtractPathPatterns(journeys []RatJourney, minOccurrences, maxLength int) []PathPattern {
	return extractPathPatterns(journeys, minOccurrences, maxLength, DefaultPatternLimit)
}

func extractPathPatterns(journeys []RatJourney, minOccurrences, maxLength, limit int) []PathPattern {
	if maxLength < 2 {
		return nil
	}
	if minOccurrences < 1 {
		minOccurrences = 1
	}

	groups := make(map[string][]occurrence)
	for ji := range journeys {
		steps := journeys[ji].Steps
		seen := make(map[string]bool)
		for start := 0; start < len(steps); start++ {
			var gain int64
			completed := true
			ids := make([]string, 0, maxLength)
			for length := 1; length <= maxLength && start+length <= len(steps); length++ {
				step := steps[start+length-1]
				ids = append(ids, step.TripID)
				gain += step.ValueChange
				if !step.Survived {
					completed = false
				}
				if length < 2 {
					continue
				}
				key := strings.Join(ids, "\x1f")
				if seen[key] {
					continue
				}
				seen[key] = true
				groups[key] = append(groups[key], occurrence{
					journey:    ji,
					start:      start,
					entryValue: steps[start].ValueBefore,
					gain:       gain,
					completed:  completed,
				})
			}
		}
	}

	var patterns []PathPattern
	for key, occs := range groups {
		if len(occs) < minOccurrences {
			continue
		}
		ids := strings.Split(key, "\x1f")
		patterns = append(patterns, summarizePattern(ids, occs, journeys))
	}

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Score != patterns[j].Score {
			return patterns[i].Score > patterns[j].Score
		}
		if patterns[i].Occurrences != patterns[j].Occurrences {
			return patterns[i].Occurrences > patterns[j].Occurrences
		}
		return strings.Join(patterns[i].TripIDs, ",") < strings.Join(patterns[j].TripIDs, ",")
	})
	if limit > 0 && len(patterns) > limit {
		patterns = patterns[:limit]
	}
	return patterns
}

func summarizePattern(ids []string, occs []occurrence, journeys []RatJourney) PathPattern {
	n := len(occs)
	var gainSum int64
	completed := 0
	for _, o := range occs {
		gainSum += o.gain
		if o.completed {
			completed++
		}
	}
	avgGain := float64(gainSum) / float64(n)
	completion := rate(completed, n)

	return PathPattern{
		TripIDs:        ids,
		Occurrences:    n,
		AvgValueGain:   avgGain,
		CompletionRate: completion,
		KeyItems:       keyItems(len(ids), occs, journeys),
		OptimalEntry:   optimalEntryRange(occs),
		Score:          avgGain * completion * math.Log(float64(n)+1),
	}
}

func keyItems(length int, occs []occurrence, journeys []RatJourney) []KeyItem {
	var items []KeyItem
	for s := 0; s < length; s++ {
		counts := make(map[string]int)
		for _, o := range occs {
			steps := journeys[o.journey].Steps
			if o.start+s >= len(steps) {
				continue
			}
			held := make(map[string]bool)
			for _, name := range steps[o.start+s].ItemsOnEntrance {
				if name != "" && !held[name] {
					held[name] = true
					counts[name]++
				}
			}
		}
		for name, c := range counts {
			freq := rate(c, len(occs))
			if freq >= keyItemMinFrequency {
				items = append(items, KeyItem{Step: s, Item: name, Frequency: freq})
			}
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Step != items[j].Step {
			return items[i].Step < items[j].Step
		}
		if items[i].Frequency != items[j].Frequency {
			return items[i].Frequency > items[j].Frequency
		}
		return items[i].Item < items[j].Item
	})
	return items
}

// optimalEntryRange slides a window of max(3, n/3) occurrences over the
// entry-value ordering and pads the best-earning window by 10%.
func optimalEntryRange(occs []occurrence) ValueRange {
	sorted := append([]occurrence(nil), occs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].entryValue < sorted[j].entryValue })

	n := len(sorted)
	w := n / 3
	if w < entryWindowMin {
		w = entryWindowMin
	}
	if w > n {
		w = n
	}

	bestStart := 0
	bestAvg := math.Inf(-1)
	for start := 0; start+w <= n; start++ {
		var sum int64
		for _, o := range sorted[start : start+w] {
			sum += o.gain
		}
		avg := float64(sum) / float64(w)
		if avg > bestAvg {
			bestAvg = avg
			bestStart = start
		}
	}

	lo := float64(sorted[bestStart].entryValue)
	hi := float64(sorted[bestStart+w-1].entryValue)
	return ValueRange{
		Min: int64(math.Floor(lo * (1 - entryRangePadding))),
		Max: int64(math.Ceil(hi * (1 + entryRangePadding))),
	}
}
