package db

import (
	"context"
	"fmt"
	"time"
)

const tripColumns = `id, world_id, prompt, balance, creation_cost, visit_count, kill_count, owner, created_at`

// TripsForWorld returns all trips of a world, richest pool first
func (d *DB) TripsForWorld(ctx context.Context, worldID string) ([]TripRow, error) {
	var trips []TripRow
	err := d.conn.SelectContext(ctx, &trips, `
		SELECT `+tripColumns+`
		FROM trips WHERE world_id = ? ORDER BY balance DESC, id
	`, worldID)
	return trips, err
}

// GetTrip returns a single trip by ID, or an error if not found
func (d *DB) GetTrip(ctx context.Context, id string) (*TripRow, error) {
	var t TripRow
	if err := d.conn.GetContext(ctx, &t, `SELECT `+tripColumns+` FROM trips WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &t, nil
}

// SearchByIDPrefix finds trips whose ID starts with the given prefix.
func (d *DB) SearchByIDPrefix(ctx context.Context, worldID, prefix string, limit int) ([]TripRow, error) {
	var trips []TripRow
	err := d.conn.SelectContext(ctx, &trips, `
		SELECT `+tripColumns+`
		FROM trips WHERE world_id = ? AND id LIKE ? ORDER BY id LIMIT ?
	`, worldID, prefix+"%", limit)
	return trips, err
}

// UpsertTrip inserts a trip or refreshes its chain-state fields
func (d *DB) UpsertTrip(ctx context.Context, t TripRow) error {
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().UnixMilli()
	}
	_, err := d.conn.NamedExecContext(ctx, `
		INSERT INTO trips (`+tripColumns+`)
		VALUES (:id, :world_id, :prompt, :balance, :creation_cost, :visit_count, :kill_count, :owner, :created_at)
		ON CONFLICT(id) DO UPDATE SET
			prompt = excluded.prompt,
			balance = excluded.balance,
			creation_cost = excluded.creation_cost,
			visit_count = excluded.visit_count,
			kill_count = excluded.kill_count,
			owner = excluded.owner
	`, t)
	if err != nil {
		return fmt.Errorf("upserting trip %s: %w", t.ID, err)
	}
	return nil
}

// SetTripBalance updates a trip's pooled balance
func (d *DB) SetTripBalance(ctx context.Context, id string, balance int64) error {
	res, err := d.conn.ExecContext(ctx, `UPDATE trips SET balance = ? WHERE id = ?`, balance, id)
	if err != nil {
		return fmt.Errorf("updating balance of %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("trip not found: %s", id)
	}
	return nil
}
