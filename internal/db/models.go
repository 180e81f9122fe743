package db

import "database/sql"

// TripRow represents a row in the trips table
type TripRow struct {
	ID           string `db:"id" json:"id"`
	WorldID      string `db:"world_id" json:"world_id"`
	Prompt       string `db:"prompt" json:"prompt"`
	Balance      int64  `db:"balance" json:"balance"`
	CreationCost int64  `db:"creation_cost" json:"creation_cost"`
	VisitCount   int    `db:"visit_count" json:"visit_count"`
	KillCount    int    `db:"kill_count" json:"kill_count"`
	Owner        string `db:"owner" json:"owner"`
	CreatedAt    int64  `db:"created_at" json:"created_at"` // Unix millis
}

// OutcomeRow represents a row in the outcomes table. Numeric columns are
// nullable as delivered by the content service.
type OutcomeRow struct {
	ID              string         `db:"id"`
	WorldID         string         `db:"world_id"`
	TripID          string         `db:"trip_id"`
	RatID           string         `db:"rat_id"`
	RatName         string         `db:"rat_name"`
	CreatedAt       string         `db:"created_at"` // RFC 3339
	ValueChange     sql.NullInt64  `db:"value_change"`
	RatValueBefore  sql.NullInt64  `db:"rat_value_before"`
	RatValueAfter   sql.NullInt64  `db:"rat_value_after"`
	TripValueBefore sql.NullInt64  `db:"trip_value_before"`
	TripValueAfter  sql.NullInt64  `db:"trip_value_after"`
	InventoryJSON   sql.NullString `db:"inventory_json"`    // JSON array of items
	ItemChangesJSON sql.NullString `db:"item_changes_json"` // JSON array of {type,id,name,value}
	ItemsLostJSON   sql.NullString `db:"items_lost_json"`   // JSON array of items
}
