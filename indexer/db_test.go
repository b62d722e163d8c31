package indexer

import (
	"context"
	"os"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"

	"github.com/paw-chain/merit/app"
)

func TestEventRows(t *testing.T) {
	rows, err := eventRows(app.Result{
		Height: 4,
		Events: []app.Event{
			{Type: "staked", Attributes: map[string]string{"owner": "merit1abc", "amount": "100"}},
			{Type: "transfer"},
		},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 0, rows[0].Index)
	require.JSONEq(t, `{"owner":"merit1abc","amount":"100"}`, string(rows[0].Attributes))
	require.Equal(t, "transfer", rows[1].Type)
	require.Equal(t, "{}", string(rows[1].Attributes))
}

func TestOpenRequiresURL(t *testing.T) {
	_, err := Open(context.Background(), log.NewNopLogger(), Config{})
	require.ErrorContains(t, err, "database url is required")
}

// setupTestDB connects to the database named by MERIT_TEST_POSTGRES_DSN and
// resets the index tables.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("MERIT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MERIT_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	db, err := Open(ctx, log.NewNopLogger(), DefaultConfig(dsn))
	require.NoError(t, err)
	require.NoError(t, db.InitSchema(ctx))

	for _, table := range []string{"merit_events", "merit_blocks", "indexer_state"} {
		_, err := db.ExecContext(ctx, "TRUNCATE TABLE "+table+" CASCADE")
		require.NoError(t, err)
	}
	t.Cleanup(func() { require.NoError(t, db.Close()) })
	return db
}

func TestIndexAndQuery(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, db.Index(ctx, app.Result{
		Height: 2, Time: at, Operation: "stake_open", AppHash: []byte{0xab},
		Events: []app.Event{{Type: "staked", Attributes: map[string]string{"owner": "merit1a"}}},
	}))
	require.NoError(t, db.Index(ctx, app.Result{
		Height: 3, Time: at.Add(time.Hour), Operation: "stake_open", AppHash: []byte{0xcd},
		Events: []app.Event{{Type: "staked", Attributes: map[string]string{"owner": "merit1b"}}},
	}))

	height, err := db.LastIndexedHeight(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), height)

	events, err := db.Events(ctx, Filter{Type: "staked"})
	require.NoError(t, err)
	require.Len(t, events, 2)

	events, err = db.Events(ctx, Filter{AttributeKey: "owner", AttributeValue: "merit1b"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, int64(3), events[0].Height)

	// reindexing replaces rather than duplicates
	require.NoError(t, db.Index(ctx, app.Result{Height: 2, Time: at, Operation: "stake_open", AppHash: []byte{0xab}}))
	events, err = db.Events(ctx, Filter{Type: "staked"})
	require.NoError(t, err)
	require.Len(t, events, 1)

	counts, err := db.OperationCounts(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), counts["stake_open"])

	require.NoError(t, db.Ping(ctx))
}
