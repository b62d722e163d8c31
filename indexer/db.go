// Package indexer mirrors committed merit transitions into PostgreSQL so that
// events can be searched by type and attribute.
package indexer

import (
	"context"
	"database/sql"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cosmossdk.io/log"
	_ "github.com/lib/pq"

	"github.com/paw-chain/merit/app"
)

//go:embed schema.sql
var schemaFile embed.FS

const lastIndexedHeightKey = "last_indexed_height"

// DB wraps the SQL database connection
type DB struct {
	*sql.DB
	logger log.Logger
}

// Config holds database configuration
type Config struct {
	URL            string
	MaxConnections int
	MaxIdle        int
	ConnMaxLife    time.Duration
}

// DefaultConfig returns pool settings suitable for a single ledger writer.
func DefaultConfig(url string) Config {
	return Config{
		URL:            url,
		MaxConnections: 10,
		MaxIdle:        5,
		ConnMaxLife:    time.Hour,
	}
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, logger log.Logger, cfg Config) (*DB, error) {
	if cfg.URL == "" {
		return nil, errors.New("database url is required")
	}
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(cfg.ConnMaxLife)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger = logger.With("module", "indexer")
	logger.Info("connected to index database")

	return &DB{DB: db, logger: logger}, nil
}

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	schema, err := schemaFile.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	db.logger.Info("index schema initialized")
	return nil
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Index stores a committed transition and its events in one transaction.
// Re-indexing a height replaces its events.
func (db *DB) Index(ctx context.Context, res app.Result) error {
	rows, err := eventRows(res)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO merit_blocks (height, time, operation, app_hash, event_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (height) DO UPDATE SET
			time = EXCLUDED.time,
			operation = EXCLUDED.operation,
			app_hash = EXCLUDED.app_hash,
			event_count = EXCLUDED.event_count
	`, res.Height, res.Time, res.Operation, hex.EncodeToString(res.AppHash), len(rows)); err != nil {
		return fmt.Errorf("failed to insert block %d: %w", res.Height, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM merit_events WHERE block_height = $1`, res.Height); err != nil {
		return fmt.Errorf("failed to clear events of block %d: %w", res.Height, err)
	}

	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO merit_events (block_height, event_index, event_type, attributes)
			VALUES ($1, $2, $3, $4)
		`, res.Height, row.Index, row.Type, string(row.Attributes)); err != nil {
			return fmt.Errorf("failed to insert event %d of block %d: %w", row.Index, res.Height, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO indexer_state (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = GREATEST(indexer_state.value, EXCLUDED.value), updated_at = NOW()
	`, lastIndexedHeightKey, res.Height); err != nil {
		return fmt.Errorf("failed to update indexer state: %w", err)
	}

	return tx.Commit()
}

// LastIndexedHeight returns the highest indexed height, or zero.
func (db *DB) LastIndexedHeight(ctx context.Context) (int64, error) {
	var height int64
	err := db.QueryRowContext(ctx, "SELECT value FROM indexer_state WHERE key = $1", lastIndexedHeightKey).Scan(&height)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return height, err
}

type eventRow struct {
	Index      int
	Type       string
	Attributes []byte
}

func eventRows(res app.Result) ([]eventRow, error) {
	rows := make([]eventRow, 0, len(res.Events))
	for i, ev := range res.Events {
		attrs := ev.Attributes
		if attrs == nil {
			attrs = map[string]string{}
		}
		bz, err := json.Marshal(attrs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode attributes of event %d: %w", i, err)
		}
		rows = append(rows, eventRow{Index: i, Type: ev.Type, Attributes: bz})
	}
	return rows, nil
}
