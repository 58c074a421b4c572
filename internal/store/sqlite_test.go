package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"grid_trader/internal/core"
	"grid_trader/pkg/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"), logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRunner() core.RunnerRecord {
	return core.RunnerRecord{
		UID:       "run-1",
		Pair:      "btc_jpy",
		User:      "tester",
		Exchange:  "bitbank",
		Status:    "running",
		StartedAt: time.Now(),
		Param:     map[string]any{"grid_num": 100},
	}
}

func TestRunnerRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateAndUseRunner(ctx, testRunner()))
	require.NoError(t, s.UpdateRunner(ctx, "run-1", map[string]any{
		"status":       "stopped",
		"latest_price": "4200000",
		"buy_count":    3,
	}))

	var status, latest string
	var buys int
	row := s.db.QueryRow("SELECT status, latest_price, buy_count FROM runners WHERE uid = ?", "run-1")
	require.NoError(t, row.Scan(&status, &latest, &buys))
	assert.Equal(t, "stopped", status)
	assert.Equal(t, "4200000", latest)
	assert.Equal(t, 3, buys)
}

func TestUpdateRunnerRejectsUnknownField(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateAndUseRunner(ctx, testRunner()))

	err := s.UpdateRunner(ctx, "run-1", map[string]any{"uid": "evil"})
	assert.Error(t, err)
}

func TestOrderLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateAndUseRunner(ctx, testRunner()))

	record := core.OrderRecord{
		OrderID:   101,
		Pair:      "btc_jpy",
		Side:      "buy",
		Price:     decimal.RequireFromString("4190000"),
		Amount:    decimal.RequireFromString("0.01"),
		Status:    "Created",
		OrderedAt: time.Now(),
	}
	require.NoError(t, s.CreateOrder(ctx, record))
	require.NoError(t, s.UpdateOrder(ctx, 101, map[string]any{"status": "Traded"}))

	var status, runnerUID string
	row := s.db.QueryRow("SELECT status, runner_uid FROM orders WHERE order_id = ?", int64(101))
	require.NoError(t, row.Scan(&status, &runnerUID))
	assert.Equal(t, "Traded", status)
	assert.Equal(t, "run-1", runnerUID)

	require.NoError(t, s.DeleteOrder(ctx, 101))
	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM orders").Scan(&n))
	assert.Equal(t, 0, n)
}

func TestDeleteMissingOrderIsNoop(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.DeleteOrder(context.Background(), 999))
}
