package graph

import (
	"log/slog"
	"sort"
	"time"
)

// JourneyStep is one trip within a journey.
type JourneyStep struct {
	TripID          string    `json:"trip_id" yaml:"trip_id"`
	OutcomeID       string    `json:"outcome_id" yaml:"outcome_id"`
	At              time.Time `json:"at" yaml:"at"`
	ValueBefore     int64     `json:"value_before" yaml:"value_before"`
	ValueAfter      int64     `json:"value_after" yaml:"value_after"`
	ValueChange     int64     `json:"value_change" yaml:"value_change"`
	Survived        bool      `json:"survived" yaml:"survived"`
	ItemsOnEntrance []string  `json:"items_on_entrance,omitempty" yaml:"items_on_entrance,omitempty"`
	ItemsGained     []string  `json:"items_gained,omitempty" yaml:"items_gained,omitempty"`
	ItemsLost       []string  `json:"items_lost,omitempty" yaml:"items_lost,omitempty"`
}

// RatJourney is one agent's ordered history, ending at its first death.
type RatJourney struct {
	AgentID           string        `json:"agent_id" yaml:"agent_id"`
	AgentName         string        `json:"agent_name" yaml:"agent_name"`
	Steps             []JourneyStep `json:"steps" yaml:"steps"`
	TotalTrips        int           `json:"total_trips" yaml:"total_trips"`
	TotalValueGained  int64         `json:"total_value_gained" yaml:"total_value_gained"`
	StartValue        int64         `json:"start_value" yaml:"start_value"`
	FinalValue        int64         `json:"final_value" yaml:"final_value"`
	PeakValue         int64         `json:"peak_value" yaml:"peak_value"`
	PeakStep          int           `json:"peak_step" yaml:"peak_step"`
	Died              bool          `json:"died" yaml:"died"`
	UniqueItemsGained []string      `json:"unique_items_gained,omitempty" yaml:"unique_items_gained,omitempty"`
}

// TripIDs returns the ordered trip ids of the journey.
func (j *RatJourney) TripIDs() []string {
	ids := make([]string, len(j.Steps))
	for i, s := range j.Steps {
		ids[i] = s.TripID
	}
	return ids
}

// ReconstructJourneys groups outcomes by agent, orders each group by time and
// walks it forward. A death ends the journey; later records for the same agent
// are ignored. Records without a timestamp or agent are skipped.
func ReconstructJourneys(outcomes []Outcome, logger *slog.Logger) []RatJourney {
	if logger == nil {
		logger = slog.Default()
	}
	skipped := 0
	byAgent := make(map[string][]Outcome)
	for _, o := range outcomes {
		if o.AgentID == "" || o.TripID == "" || o.CreatedAt.IsZero() {
			skipped++
			continue
		}
		byAgent[o.AgentID] = append(byAgent[o.AgentID], o)
	}
	if skipped > 0 {
		logger.Warn("skipped malformed outcomes during journey reconstruction", "skipped", skipped)
	}

	agents := make([]string, 0, len(byAgent))
	for id := range byAgent {
		agents = append(agents, id)
	}
	sort.Strings(agents)

	journeys := make([]RatJourney, 0, len(agents))
	for _, agent := range agents {
		outs := byAgent[agent]
		sortByTime(outs)
		journeys = append(journeys, buildJourney(outs))
	}
	return journeys
}

func buildJourney(outs []Outcome) RatJourney {
	j := RatJourney{
		AgentID:    outs[0].AgentID,
		AgentName:  outs[0].AgentName,
		StartValue: outs[0].ValueBefore,
		PeakValue:  outs[0].ValueBefore,
	}
	gained := make(map[string]bool)
	for _, o := range outs {
		step := JourneyStep{
			TripID:          o.TripID,
			OutcomeID:       o.ID,
			At:              o.CreatedAt,
			ValueBefore:     o.ValueBefore,
			ValueAfter:      o.ValueAfter,
			ValueChange:     o.ValueChange,
			Survived:        o.Survived(),
			ItemsOnEntrance: itemNames(o.Inventory),
			ItemsGained:     itemNames(o.Gained),
			ItemsLost:       itemNames(o.Lost),
		}
		j.Steps = append(j.Steps, step)
		j.TotalValueGained += o.ValueChange
		if o.ValueAfter > j.PeakValue {
			j.PeakValue = o.ValueAfter
			j.PeakStep = len(j.Steps) - 1
		}
		for _, it := range o.Gained {
			if it.Name != "" && !gained[it.Name] {
				gained[it.Name] = true
				j.UniqueItemsGained = append(j.UniqueItemsGained, it.Name)
			}
		}
		if o.Died {
			j.Died = true
			break
		}
	}
	j.TotalTrips = len(j.Steps)
	j.FinalValue = j.Steps[len(j.Steps)-1].ValueAfter
	return j
}

// FilterSuccessfulJourneys keeps journeys meeting every threshold in c.
func FilterSuccessfulJourneys(journeys []RatJourney, c SuccessCriteria) []RatJourney {
	var out []RatJourney
	for _, j := range journeys {
		if j.TotalTrips < c.MinTrips {
			continue
		}
		if j.TotalValueGained < c.MinValueGained {
			continue
		}
		if j.PeakValue < c.MinPeakValue {
			continue
		}
		if c.MustSurvive && j.Died {
			continue
		}
		out = append(out, j)
	}
	return out
}

// RankByPeak sorts journeys by peak value descending, ties by agent id.
func RankByPeak(journeys []RatJourney) {
	sort.SliceStable(journeys, func(i, k int) bool {
		if journeys[i].PeakValue != journeys[k].PeakValue {
			return journeys[i].PeakValue > journeys[k].PeakValue
		}
		return journeys[i].AgentID < journeys[k].AgentID
	})
}
