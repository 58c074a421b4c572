package mock

import (
	"context"
	"sync"

	"grid_trader/internal/core"
)

// Notifier records every message it receives.
type Notifier struct {
	mu     sync.Mutex
	Infos  []string
	Errors []string
	Trades []string
}

func (n *Notifier) Info(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Infos = append(n.Infos, msg)
}

func (n *Notifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Errors = append(n.Errors, msg)
}

func (n *Notifier) Trade(side core.OrderSide, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Trades = append(n.Trades, string(side)+": "+msg)
}

// Store records persistence calls without storing anything durable.
type Store struct {
	Runners       []core.RunnerRecord
	RunnerUpdates []map[string]any
	OrdersCreated []core.OrderRecord
	OrdersUpdated []int64
	OrdersDeleted []int64
}

func (s *Store) CreateAndUseRunner(ctx context.Context, runner core.RunnerRecord) error {
	s.Runners = append(s.Runners, runner)
	return nil
}

func (s *Store) UpdateRunner(ctx context.Context, runnerID string, fields map[string]any) error {
	s.RunnerUpdates = append(s.RunnerUpdates, fields)
	return nil
}

func (s *Store) CreateOrder(ctx context.Context, order core.OrderRecord) error {
	s.OrdersCreated = append(s.OrdersCreated, order)
	return nil
}

func (s *Store) UpdateOrder(ctx context.Context, orderID int64, fields map[string]any) error {
	s.OrdersUpdated = append(s.OrdersUpdated, orderID)
	return nil
}

func (s *Store) DeleteOrder(ctx context.Context, orderID int64) error {
	s.OrdersDeleted = append(s.OrdersDeleted, orderID)
	return nil
}
