package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const outcomeColumns = `id, world_id, trip_id, rat_id, rat_name, created_at,
	value_change, rat_value_before, rat_value_after, trip_value_before, trip_value_after,
	inventory_json, item_changes_json, items_lost_json`

// OutcomesForWorld returns the outcome history of a world, optionally
// restricted to tripIDs, in insertion order.
func (d *DB) OutcomesForWorld(ctx context.Context, worldID string, tripIDs []string) ([]OutcomeRow, error) {
	query := `SELECT ` + outcomeColumns + ` FROM outcomes WHERE world_id = ?`
	args := []any{worldID}
	if len(tripIDs) > 0 {
		q, inArgs, err := sqlx.In(query+` AND trip_id IN (?)`, worldID, tripIDs)
		if err != nil {
			return nil, fmt.Errorf("expanding trip filter: %w", err)
		}
		query, args = d.conn.Rebind(q), inArgs
	}
	query += ` ORDER BY created_at, id`

	var rows []OutcomeRow
	if err := d.conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}
	return rows, nil
}

// InsertOutcome stores one outcome and returns its ID. Rows without an ID get a fresh UUID.
func (d *DB) InsertOutcome(ctx context.Context, row OutcomeRow) (string, error) {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	_, err := d.conn.NamedExecContext(ctx, `
		INSERT INTO outcomes (`+outcomeColumns+`)
		VALUES (:id, :world_id, :trip_id, :rat_id, :rat_name, :created_at,
			:value_change, :rat_value_before, :rat_value_after, :trip_value_before, :trip_value_after,
			:inventory_json, :item_changes_json, :items_lost_json)
		ON CONFLICT(id) DO NOTHING
	`, row)
	if err != nil {
		return "", fmt.Errorf("inserting outcome: %w", err)
	}
	return row.ID, nil
}

// CountOutcomes returns the number of stored outcomes for a world
func (d *DB) CountOutcomes(ctx context.Context, worldID string) (int, error) {
	var n int
	err := d.conn.GetContext(ctx, &n, `SELECT COUNT(*) FROM outcomes WHERE world_id = ?`, worldID)
	return n, err
}
