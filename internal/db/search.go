package db

import (
	"context"
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "of": true, "is": true,
	"it": true, "and": true, "or": true, "with": true, "from": true,
	"by": true, "this": true, "that": true, "as": true, "be": true,
}

// PromptKeywords preprocesses a natural language query into search terms.
// Splits on whitespace, removes stopwords and words < 3 chars, trims punctuation.
func PromptKeywords(query string) []string {
	words := strings.Fields(query)
	var filtered []string
	for _, w := range words {
		// Trim non-letter/digit chars from both ends
		trimmed := strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
		})
		if len(trimmed) < 3 {
			continue
		}
		if stopwords[strings.ToLower(trimmed)] {
			continue
		}
		filtered = append(filtered, strings.ToLower(trimmed))
	}
	return filtered
}

// SearchTrips finds trips of a world whose prompt contains any keyword of the
// query, best match (most keywords hit) first.
// Returns empty slice if the preprocessed query is empty.
func (d *DB) SearchTrips(ctx context.Context, worldID, query string, limit int) ([]TripRow, error) {
	keywords := PromptKeywords(query)
	if len(keywords) == 0 {
		return []TripRow{}, nil
	}

	var score, filter []string
	args := []any{worldID}
	for _, k := range keywords {
		filter = append(filter, `instr(lower(prompt), ?) > 0`)
		args = append(args, k)
	}
	for _, k := range keywords {
		score = append(score, `(instr(lower(prompt), ?) > 0)`)
		args = append(args, k)
	}
	args = append(args, limit)

	var trips []TripRow
	err := d.conn.SelectContext(ctx, &trips, `
		SELECT `+tripColumns+`
		FROM trips
		WHERE world_id = ? AND (`+strings.Join(filter, " OR ")+`)
		ORDER BY (`+strings.Join(score, " + ")+`) DESC, balance DESC
		LIMIT ?
	`, args...)
	return trips, err
}
