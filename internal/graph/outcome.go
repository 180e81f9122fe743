package graph

import "time"

// Item is one inventory item. Items are compared by Name; IDs identify instances.
type Item struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Value int64  `json:"value" yaml:"value"`
}

// Outcome is one normalized historical record of an agent entering a trip.
type Outcome struct {
	ID            string    `json:"id"`
	TripID        string    `json:"trip_id"`
	AgentID       string    `json:"agent_id"`
	AgentName     string    `json:"agent_name"`
	CreatedAt     time.Time `json:"created_at"`
	ValueBefore   int64     `json:"value_before"`
	ValueAfter    int64     `json:"value_after"`
	ValueChange   int64     `json:"value_change"`
	BalanceBefore int64     `json:"balance_before"`
	BalanceAfter  int64     `json:"balance_after"`
	Inventory     []Item    `json:"inventory"`
	Gained        []Item    `json:"gained"`
	Lost          []Item    `json:"lost"`
	LostOnDeath   []Item    `json:"lost_on_death"`
	Died          bool      `json:"died"`
}

// Survived reports whether the agent lived through the trip.
func (o *Outcome) Survived() bool {
	return !o.Died
}

// HasItem reports whether the agent entered the trip holding an item with the given name.
func (o *Outcome) HasItem(name string) bool {
	for _, it := range o.Inventory {
		if it.Name == name {
			return true
		}
	}
	return false
}

// Trip is the live chain-state record of a trip.
type Trip struct {
	ID           string `json:"id" yaml:"id"`
	WorldID      string `json:"world_id" yaml:"world_id"`
	Prompt       string `json:"prompt" yaml:"prompt"`
	Balance      int64  `json:"balance" yaml:"balance"`
	CreationCost int64  `json:"creation_cost" yaml:"creation_cost"`
	VisitCount   int    `json:"visit_count" yaml:"visit_count"`
	KillCount    int    `json:"kill_count" yaml:"kill_count"`
	Owner        string `json:"owner" yaml:"owner"`
}

func itemNames(items []Item) []string {
	if len(items) == 0 {
		return nil
	}
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Name)
	}
	return names
}

func uniqueNames(items []Item) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		if it.Name != "" {
			set[it.Name] = true
		}
	}
	return set
}
