package graph

import (
	"math"
	"sort"
)

// neutralSurvivalRate is reported for nodes with no history, so that an
// unknown trip never looks like certain death.
const neutralSurvivalRate = 0.5

// Metrics is the aggregate outcome shape shared by a node and each of its value buckets.
type Metrics struct {
	Count             int     `json:"count" yaml:"count"`
	Survivals         int     `json:"survivals" yaml:"survivals"`
	Deaths            int     `json:"deaths" yaml:"deaths"`
	AvgValueChange    float64 `json:"avg_value_change" yaml:"avg_value_change"`
	MedianValueChange float64 `json:"median_value_change" yaml:"median_value_change"`
	StdDevValueChange float64 `json:"stddev_value_change" yaml:"stddev_value_change"`
	SurvivalRate      float64 `json:"survival_rate" yaml:"survival_rate"`
	AvgGainOnSurvival float64 `json:"avg_gain_on_survival" yaml:"avg_gain_on_survival"`
	// AvgLossOnDeath is a positive magnitude.
	AvgLossOnDeath float64 `json:"avg_loss_on_death" yaml:"avg_loss_on_death"`
}

// TripStatistics aggregates every outcome observed on one trip.
type TripStatistics struct {
	Metrics        `yaml:",inline"`
	ByBucket       map[ValueBucket]Metrics `json:"by_bucket" yaml:"by_bucket"`
	ItemInfluences []ItemInfluence         `json:"item_influences" yaml:"item_influences"`
	ItemAwards     []ItemAward             `json:"item_awards" yaml:"item_awards"`
	Predecessors   []RelatedTrip           `json:"predecessors" yaml:"predecessors"`
	Successors     []RelatedTrip           `json:"successors" yaml:"successors"`
	// Stale is set once incremental updates have left median and stddev behind.
	Stale bool `json:"stale" yaml:"stale"`
}

// NeutralStatistics is the default for a trip with no history.
func NeutralStatistics() TripStatistics {
	return TripStatistics{
		Metrics:  Metrics{SurvivalRate: neutralSurvivalRate},
		ByBucket: map[ValueBucket]Metrics{},
	}
}

// CalculateStatistics computes full statistics for one trip. nodeOutcomes are
// the outcomes recorded on tripID; allOutcomes is the whole world history and
// feeds predecessor/successor mining.
func CalculateStatistics(tripID string, nodeOutcomes, allOutcomes []Outcome, buckets BucketScheme) TripStatistics {
	return calculateStatistics(tripID, nodeOutcomes, buildTimelines(allOutcomes), buckets)
}

func calculateStatistics(tripID string, nodeOutcomes []Outcome, timelines timelines, buckets BucketScheme) TripStatistics {
	if len(nodeOutcomes) == 0 {
		return NeutralStatistics()
	}

	stats := TripStatistics{
		Metrics:  computeMetrics(nodeOutcomes),
		ByBucket: make(map[ValueBucket]Metrics),
	}

	byBucket := make(map[ValueBucket][]Outcome)
	for _, o := range nodeOutcomes {
		b := buckets.BucketFor(o.ValueBefore)
		byBucket[b] = append(byBucket[b], o)
	}
	for b, outs := range byBucket {
		stats.ByBucket[b] = computeMetrics(outs)
	}

	stats.ItemInfluences = computeItemInfluences(nodeOutcomes)
	stats.ItemAwards = computeItemAwards(nodeOutcomes)
	stats.Predecessors, stats.Successors = computeRelations(tripID, timelines)
	return stats
}

// UpdateWithOutcome folds one new outcome into stats in O(1). Averages,
// counts and survival rates stay exact; median and stddev are left as they
// were until the next full rebuild.
func UpdateWithOutcome(stats *TripStatistics, o Outcome, buckets BucketScheme) {
	stats.Metrics.add(o)
	if stats.ByBucket == nil {
		stats.ByBucket = make(map[ValueBucket]Metrics)
	}
	b := buckets.BucketFor(o.ValueBefore)
	m := stats.ByBucket[b]
	m.add(o)
	stats.ByBucket[b] = m
	stats.Stale = true
}

func (m *Metrics) add(o Outcome) {
	change := float64(o.ValueChange)
	m.AvgValueChange = runningMean(m.AvgValueChange, m.Count, change)
	if m.Count == 0 {
		m.MedianValueChange = change
	}
	m.Count++
	if o.Died {
		m.AvgLossOnDeath = runningMean(m.AvgLossOnDeath, m.Deaths, -change)
		m.Deaths++
	} else {
		m.AvgGainOnSurvival = runningMean(m.AvgGainOnSurvival, m.Survivals, change)
		m.Survivals++
	}
	m.SurvivalRate = float64(m.Survivals) / float64(m.Count)
}

func runningMean(mean float64, n int, x float64) float64 {
	return (mean*float64(n) + x) / float64(n+1)
}

func computeMetrics(outcomes []Outcome) Metrics {
	if len(outcomes) == 0 {
		return Metrics{SurvivalRate: neutralSurvivalRate}
	}
	changes := make([]float64, len(outcomes))
	var m Metrics
	var gainSum, lossSum float64
	for i, o := range outcomes {
		c := float64(o.ValueChange)
		changes[i] = c
		if o.Died {
			m.Deaths++
			lossSum += -c
		} else {
			m.Survivals++
			gainSum += c
		}
	}
	m.Count = len(outcomes)
	m.AvgValueChange = mean(changes)
	m.MedianValueChange = median(changes)
	m.StdDevValueChange = stddev(changes, m.AvgValueChange)
	m.SurvivalRate = float64(m.Survivals) / float64(m.Count)
	if m.Survivals > 0 {
		m.AvgGainOnSurvival = gainSum / float64(m.Survivals)
	}
	if m.Deaths > 0 {
		m.AvgLossOnDeath = lossSum / float64(m.Deaths)
	}
	return m
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// stddev is the population standard deviation.
func stddev(xs []float64, mu float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sq float64
	for _, x := range xs {
		d := x - mu
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)))
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
