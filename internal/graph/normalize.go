package graph

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// RawItem is an item as delivered by the outcome store.
type RawItem struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Value *int64 `json:"value" yaml:"value"`
}

// RawItemChange is an item gain or loss as delivered by the outcome store.
type RawItemChange struct {
	Type  string `json:"type" yaml:"type"` // "gained" or "lost"
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Value *int64 `json:"value" yaml:"value"`
}

// RawOutcome is an outcome record before normalization. Numeric fields may be
// missing and item arrays may be absent.
type RawOutcome struct {
	ID                  string          `json:"id" yaml:"id"`
	TripID              string          `json:"trip_id" yaml:"trip_id"`
	RatID               string          `json:"rat_id" yaml:"rat_id"`
	RatName             string          `json:"rat_name" yaml:"rat_name"`
	CreatedAt           string          `json:"created_at" yaml:"created_at"`
	ValueChange         *int64          `json:"value_change" yaml:"value_change"`
	RatValueBefore      *int64          `json:"rat_value_before" yaml:"rat_value_before"`
	RatValueAfter       *int64          `json:"rat_value_after" yaml:"rat_value_after"`
	TripValueBefore     *int64          `json:"trip_value_before" yaml:"trip_value_before"`
	TripValueAfter      *int64          `json:"trip_value_after" yaml:"trip_value_after"`
	InventoryOnEntrance []RawItem       `json:"inventory_on_entrance" yaml:"inventory_on_entrance"`
	ItemChanges         []RawItemChange `json:"item_changes" yaml:"item_changes"`
	ItemsLostOnDeath    []RawItem       `json:"items_lost_on_death" yaml:"items_lost_on_death"`
}

var (
	ErrMissingTripID    = errors.New("outcome has no trip id")
	ErrMissingAgentID   = errors.New("outcome has no rat id")
	ErrMissingTimestamp = errors.New("outcome has no created_at")
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseTimestamp accepts RFC 3339 and the common SQL datetime layouts.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrMissingTimestamp
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Normalize converts a raw record into an Outcome, applying every default once.
func Normalize(raw RawOutcome) (Outcome, error) {
	if raw.TripID == "" {
		return Outcome{}, ErrMissingTripID
	}
	if raw.RatID == "" {
		return Outcome{}, ErrMissingAgentID
	}
	at, err := ParseTimestamp(raw.CreatedAt)
	if err != nil {
		return Outcome{}, fmt.Errorf("outcome %s: %w", raw.ID, err)
	}

	before := deref(raw.RatValueBefore)
	var after, change int64
	switch {
	case raw.RatValueAfter != nil:
		after = *raw.RatValueAfter
		change = after - before
		if raw.ValueChange != nil && raw.RatValueBefore == nil {
			before = after - *raw.ValueChange
			change = *raw.ValueChange
		}
	case raw.ValueChange != nil:
		change = *raw.ValueChange
		after = before + change
	default:
		after = before
	}
	if after < 0 {
		after = 0
		change = after - before
	}

	o := Outcome{
		ID:            raw.ID,
		TripID:        raw.TripID,
		AgentID:       raw.RatID,
		AgentName:     raw.RatName,
		CreatedAt:     at,
		ValueBefore:   before,
		ValueAfter:    after,
		ValueChange:   change,
		BalanceBefore: deref(raw.TripValueBefore),
		BalanceAfter:  deref(raw.TripValueAfter),
		Inventory:     convertItems(raw.InventoryOnEntrance),
		LostOnDeath:   convertItems(raw.ItemsLostOnDeath),
		Died:          before > 0 && after == 0,
	}
	o.Gained, o.Lost = splitChanges(raw.ItemChanges)
	return o, nil
}

// NormalizeAll normalizes a batch, skipping records that cannot be normalized.
// It returns the number of skipped records.
func NormalizeAll(raws []RawOutcome, logger *slog.Logger) ([]Outcome, int) {
	if logger == nil {
		logger = slog.Default()
	}
	out := make([]Outcome, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		o, err := Normalize(raw)
		if err != nil {
			skipped++
			logger.Warn("skipping outcome", "id", raw.ID, "error", err)
			continue
		}
		out = append(out, o)
	}
	return out, skipped
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func convertItems(raw []RawItem) []Item {
	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		items = append(items, Item{ID: r.ID, Name: r.Name, Value: deref(r.Value)})
	}
	return items
}

func splitChanges(changes []RawItemChange) (gained, lost []Item) {
	gained = []Item{}
	lost = []Item{}
	for _, c := range changes {
		it := Item{ID: c.ID, Name: c.Name, Value: deref(c.Value)}
		switch strings.ToLower(c.Type) {
		case "gained", "gain", "add":
			gained = append(gained, it)
		case "lost", "loss", "remove":
			lost = append(lost, it)
		}
	}
	return gained, lost
}
