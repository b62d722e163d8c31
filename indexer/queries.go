package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// IndexedEvent is an event row joined with its block.
type IndexedEvent struct {
	Height     int64             `json:"height"`
	Time       time.Time         `json:"time"`
	Operation  string            `json:"operation"`
	Index      int               `json:"index"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Filter selects indexed events. Empty fields match everything.
type Filter struct {
	Type           string
	AttributeKey   string
	AttributeValue string
	FromHeight     int64
	Limit          int
}

const defaultLimit = 100

// Events returns events matching f ordered by height and position.
func (db *DB) Events(ctx context.Context, f Filter) ([]IndexedEvent, error) {
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = defaultLimit
	}

	var attrFilter []byte
	if f.AttributeKey != "" {
		bz, err := json.Marshal(map[string]string{f.AttributeKey: f.AttributeValue})
		if err != nil {
			return nil, err
		}
		attrFilter = bz
	}

	rows, err := db.QueryContext(ctx, `
		SELECT b.height, b.time, b.operation, e.event_index, e.event_type, e.attributes
		FROM merit_events e
		JOIN merit_blocks b ON b.height = e.block_height
		WHERE ($1 = '' OR e.event_type = $1)
		  AND ($2::jsonb IS NULL OR e.attributes @> $2::jsonb)
		  AND b.height >= $3
		ORDER BY b.height, e.event_index
		LIMIT $4
	`, f.Type, nullableJSON(attrFilter), f.FromHeight, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []IndexedEvent
	for rows.Next() {
		var (
			ev    IndexedEvent
			attrs []byte
		)
		if err := rows.Scan(&ev.Height, &ev.Time, &ev.Operation, &ev.Index, &ev.Type, &attrs); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if err := json.Unmarshal(attrs, &ev.Attributes); err != nil {
			return nil, fmt.Errorf("failed to decode attributes: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// OperationCounts returns the number of indexed blocks per operation.
func (db *DB) OperationCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT operation, COUNT(*) FROM merit_blocks GROUP BY operation`)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			op    string
			count int64
		)
		if err := rows.Scan(&op, &count); err != nil {
			return nil, err
		}
		counts[op] = count
	}
	return counts, rows.Err()
}

func nullableJSON(bz []byte) any {
	if bz == nil {
		return nil
	}
	return string(bz)
}
