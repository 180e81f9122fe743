package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"ratfun/tripgraph/internal/db"
)

// DBSource loads trips and outcomes from the SQLite outcome store
type DBSource struct {
	DB     *db.DB
	Logger *slog.Logger
}

// FetchTrips loads every trip of a world
func (s *DBSource) FetchTrips(ctx context.Context, worldID string) ([]Trip, error) {
	rows, err := s.DB.TripsForWorld(ctx, worldID)
	if err != nil {
		return nil, fmt.Errorf("loading trips: %w", err)
	}
	trips := make([]Trip, 0, len(rows))
	for _, r := range rows {
		trips = append(trips, TripFromRow(r))
	}
	return trips, nil
}

// FetchOutcomes loads and normalizes a world's outcome history. Rows that fail
// to decode or normalize are skipped and logged.
func (s *DBSource) FetchOutcomes(ctx context.Context, worldID string, tripIDs []string) ([]Outcome, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rows, err := s.DB.OutcomesForWorld(ctx, worldID, tripIDs)
	if err != nil {
		return nil, fmt.Errorf("loading outcomes: %w", err)
	}
	raws := make([]RawOutcome, 0, len(rows))
	for _, r := range rows {
		raw, err := RawFromRow(r)
		if err != nil {
			logger.Warn("skipping undecodable outcome", "id", r.ID, "error", err)
			continue
		}
		raws = append(raws, raw)
	}
	outcomes, _ := NormalizeAll(raws, logger)
	return outcomes, nil
}

// TripFromRow converts a store row into a Trip
func TripFromRow(r db.TripRow) Trip {
	return Trip{
		ID:           r.ID,
		WorldID:      r.WorldID,
		Prompt:       r.Prompt,
		Balance:      r.Balance,
		CreationCost: r.CreationCost,
		VisitCount:   r.VisitCount,
		KillCount:    r.KillCount,
		Owner:        r.Owner,
	}
}

// RowFromTrip converts a Trip into a store row
func RowFromTrip(t Trip) db.TripRow {
	return db.TripRow{
		ID:           t.ID,
		WorldID:      t.WorldID,
		Prompt:       t.Prompt,
		Balance:      t.Balance,
		CreationCost: t.CreationCost,
		VisitCount:   t.VisitCount,
		KillCount:    t.KillCount,
		Owner:        t.Owner,
	}
}

// RawFromRow decodes a store row into a RawOutcome
func RawFromRow(r db.OutcomeRow) (RawOutcome, error) {
	raw := RawOutcome{
		ID:              r.ID,
		TripID:          r.TripID,
		RatID:           r.RatID,
		RatName:         r.RatName,
		CreatedAt:       r.CreatedAt,
		ValueChange:     fromNull(r.ValueChange),
		RatValueBefore:  fromNull(r.RatValueBefore),
		RatValueAfter:   fromNull(r.RatValueAfter),
		TripValueBefore: fromNull(r.TripValueBefore),
		TripValueAfter:  fromNull(r.TripValueAfter),
	}
	if err := decodeJSON(r.InventoryJSON, &raw.InventoryOnEntrance); err != nil {
		return raw, fmt.Errorf("inventory: %w", err)
	}
	if err := decodeJSON(r.ItemChangesJSON, &raw.ItemChanges); err != nil {
		return raw, fmt.Errorf("item changes: %w", err)
	}
	if err := decodeJSON(r.ItemsLostJSON, &raw.ItemsLostOnDeath); err != nil {
		return raw, fmt.Errorf("items lost: %w", err)
	}
	return raw, nil
}

// RowFromRaw encodes a RawOutcome as a store row for worldID
func RowFromRaw(worldID string, raw RawOutcome) (db.OutcomeRow, error) {
	row := db.OutcomeRow{
		ID:              raw.ID,
		WorldID:         worldID,
		TripID:          raw.TripID,
		RatID:           raw.RatID,
		RatName:         raw.RatName,
		CreatedAt:       raw.CreatedAt,
		ValueChange:     toNull(raw.ValueChange),
		RatValueBefore:  toNull(raw.RatValueBefore),
		RatValueAfter:   toNull(raw.RatValueAfter),
		TripValueBefore: toNull(raw.TripValueBefore),
		TripValueAfter:  toNull(raw.TripValueAfter),
	}
	var err error
	if row.InventoryJSON, err = encodeJSON(raw.InventoryOnEntrance); err != nil {
		return row, err
	}
	if row.ItemChangesJSON, err = encodeJSON(raw.ItemChanges); err != nil {
		return row, err
	}
	if row.ItemsLostJSON, err = encodeJSON(raw.ItemsLostOnDeath); err != nil {
		return row, err
	}
	return row, nil
}

func fromNull(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func toNull(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func decodeJSON(s sql.NullString, dst any) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), dst)
}

func encodeJSON[T any](items []T) (sql.NullString, error) {
	if items == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
