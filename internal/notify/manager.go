// Package notify fans run-level messages out to chat channels. Delivery is
// fire and forget; a dead webhook never stalls or fails the sync loop.
package notify

import (
	"context"
	"sync"
	"time"

	"grid_trader/internal/core"
	"grid_trader/pkg/concurrency"
)

type Kind string

const (
	KindInfo  Kind = "info"
	KindError Kind = "error"
	KindBuy   Kind = "buy"
	KindSell  Kind = "sell"
)

// Payload is one outbound message.
type Payload struct {
	Kind      Kind
	Message   string
	Timestamp time.Time
}

// Channel is one delivery target.
type Channel interface {
	Send(ctx context.Context, payload Payload) error
	Name() string
}

const sendTimeout = 10 * time.Second

// Manager implements core.INotifier over a set of channels, delivering
// through a worker pool so callers never block on chat APIs.
type Manager struct {
	channels []Channel
	pool     *concurrency.WorkerPool
	logger   core.ILogger
	mu       sync.RWMutex
}

// NewManager creates an empty manager; add channels before use.
func NewManager(logger core.ILogger) *Manager {
	return &Manager{
		logger: logger.WithField("component", "notify_manager"),
		pool: concurrency.NewWorkerPool(concurrency.PoolConfig{
			Name:        "notify",
			MaxWorkers:  4,
			MaxCapacity: 256,
			NonBlocking: true,
		}, logger),
	}
}

// AddChannel registers a delivery target.
func (m *Manager) AddChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
	m.logger.Info("Added notify channel", "name", ch.Name())
}

func (m *Manager) Info(msg string) {
	m.dispatch(Payload{Kind: KindInfo, Message: msg, Timestamp: time.Now()})
}

func (m *Manager) Error(msg string) {
	m.dispatch(Payload{Kind: KindError, Message: msg, Timestamp: time.Now()})
}

func (m *Manager) Trade(side core.OrderSide, msg string) {
	kind := KindBuy
	if side == core.Sell {
		kind = KindSell
	}
	m.dispatch(Payload{Kind: kind, Message: msg, Timestamp: time.Now()})
}

func (m *Manager) dispatch(payload Payload) {
	m.mu.RLock()
	channels := make([]Channel, len(m.channels))
	copy(channels, m.channels)
	m.mu.RUnlock()

	for _, ch := range channels {
		ch := ch
		err := m.pool.Submit(func() {
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()
			if err := ch.Send(ctx, payload); err != nil {
				m.logger.Error("Notify delivery failed",
					"channel", ch.Name(), "kind", string(payload.Kind), "error", err)
			}
		})
		if err != nil {
			m.logger.Warn("Notify queue full, dropping message",
				"channel", ch.Name(), "kind", string(payload.Kind))
		}
	}
}

// Close drains pending deliveries.
func (m *Manager) Close() {
	m.pool.StopAndWait()
}
