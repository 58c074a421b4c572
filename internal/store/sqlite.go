// Package store persists run and order records to SQLite. Writes are
// one-way: the engine never reads its state back, the tables exist for
// operators and post-run analysis.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"grid_trader/internal/core"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS runners (
	uid          TEXT PRIMARY KEY,
	pair         TEXT NOT NULL,
	user         TEXT,
	exchange     TEXT,
	status       TEXT NOT NULL,
	started_at   TIMESTAMP,
	stopped_at   TIMESTAMP,
	latest_price TEXT,
	buy_count    INTEGER NOT NULL DEFAULT 0,
	sell_count   INTEGER NOT NULL DEFAULT 0,
	synced_at    TIMESTAMP,
	param        TEXT
);
CREATE TABLE IF NOT EXISTS orders (
	order_id   INTEGER PRIMARY KEY,
	runner_uid TEXT NOT NULL,
	pair       TEXT NOT NULL,
	side       TEXT NOT NULL,
	price      TEXT NOT NULL,
	amount     TEXT NOT NULL,
	status     TEXT NOT NULL,
	ordered_at TIMESTAMP,
	FOREIGN KEY (runner_uid) REFERENCES runners(uid)
);
CREATE INDEX IF NOT EXISTS idx_orders_runner ON orders(runner_uid);
`

// runnerColumns and orderColumns whitelist the fields partial updates accept.
var runnerColumns = map[string]bool{
	"status":       true,
	"stopped_at":   true,
	"latest_price": true,
	"buy_count":    true,
	"sell_count":   true,
	"synced_at":    true,
}

var orderColumns = map[string]bool{
	"status": true,
	"price":  true,
	"amount": true,
}

// SQLiteStore implements core.IStateStore on a local SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger core.ILogger

	// runnerUID scopes order writes to the current run.
	runnerUID string
}

// NewSQLiteStore opens (or creates) the database at path in WAL mode.
func NewSQLiteStore(path string, logger core.ILogger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open state db: %w", err)
	}
	// One writer; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create state schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.WithField("component", "state_store"),
	}, nil
}

// CreateAndUseRunner inserts the run document and scopes subsequent order
// writes under it.
func (s *SQLiteStore) CreateAndUseRunner(ctx context.Context, runner core.RunnerRecord) error {
	paramJSON, err := json.Marshal(runner.Param)
	if err != nil {
		return fmt.Errorf("failed to encode runner param: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runners (uid, pair, user, exchange, status, started_at, param)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runner.UID, runner.Pair, runner.User, runner.Exchange,
		runner.Status, runner.StartedAt, string(paramJSON))
	if err != nil {
		return fmt.Errorf("failed to insert runner %s: %w", runner.UID, err)
	}

	s.runnerUID = runner.UID
	s.logger.Info("Runner created", "uid", runner.UID, "pair", runner.Pair)
	return nil
}

// UpdateRunner applies a partial update to a run document. Unknown fields
// are rejected rather than silently dropped.
func (s *SQLiteStore) UpdateRunner(ctx context.Context, runnerID string, fields map[string]any) error {
	set, args, err := buildSet(fields, runnerColumns)
	if err != nil {
		return fmt.Errorf("update runner %s: %w", runnerID, err)
	}
	args = append(args, runnerID)

	_, err = s.db.ExecContext(ctx,
		"UPDATE runners SET "+set+" WHERE uid = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to update runner %s: %w", runnerID, err)
	}
	return nil
}

// CreateOrder writes one order under the current run.
func (s *SQLiteStore) CreateOrder(ctx context.Context, order core.OrderRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO orders (order_id, runner_uid, pair, side, price, amount, status, ordered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		order.OrderID, s.runnerUID, order.Pair, order.Side,
		order.Price.String(), order.Amount.String(), order.Status, order.OrderedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order %d: %w", order.OrderID, err)
	}
	return nil
}

// UpdateOrder applies a partial update to one order record.
func (s *SQLiteStore) UpdateOrder(ctx context.Context, orderID int64, fields map[string]any) error {
	set, args, err := buildSet(fields, orderColumns)
	if err != nil {
		return fmt.Errorf("update order %d: %w", orderID, err)
	}
	args = append(args, orderID)

	_, err = s.db.ExecContext(ctx,
		"UPDATE orders SET "+set+" WHERE order_id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to update order %d: %w", orderID, err)
	}
	return nil
}

// DeleteOrder removes one order record.
func (s *SQLiteStore) DeleteOrder(ctx context.Context, orderID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM orders WHERE order_id = ?", orderID)
	if err != nil {
		return fmt.Errorf("failed to delete order %d: %w", orderID, err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// buildSet renders "col1 = ?, col2 = ?" with matching args, keys sorted so
// statements are stable.
func buildSet(fields map[string]any, allowed map[string]bool) (string, []any, error) {
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("no fields to update")
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		if !allowed[k] {
			return "", nil, fmt.Errorf("field %q is not updatable", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" = ?")
		args = append(args, fields[k])
	}
	return strings.Join(parts, ", "), args, nil
}
