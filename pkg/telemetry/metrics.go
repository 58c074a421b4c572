package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricOrdersPlacedTotal    = "grid_trader_orders_placed_total"
	MetricOrdersFilledTotal    = "grid_trader_orders_filled_total"
	MetricOrdersCancelledTotal = "grid_trader_orders_cancelled_total"
	MetricOrdersActive         = "grid_trader_orders_active"
	MetricSyncLatency          = "grid_trader_sync_latency_seconds"
	MetricSyncErrorsTotal      = "grid_trader_sync_errors_total"
)

// MetricsHolder holds initialized instruments.
type MetricsHolder struct {
	OrdersPlacedTotal    metric.Int64Counter
	OrdersFilledTotal    metric.Int64Counter
	OrdersCancelledTotal metric.Int64Counter
	OrdersActive         metric.Int64ObservableGauge
	SyncLatency          metric.Float64Histogram
	SyncErrorsTotal      metric.Int64Counter

	mu              sync.RWMutex
	activeOrdersMap map[string]int64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the process-wide metrics holder. Instruments are
// created on the global meter provider, which is a noop until Setup installs
// a real one; Setup re-initializes them afterwards.
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			activeOrdersMap: make(map[string]int64),
		}
		_ = globalMetrics.InitMetrics(otel.Meter("grid_trader"))
	})
	return globalMetrics
}

// InitMetrics creates the instruments on the given meter.
func (h *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	if h.OrdersPlacedTotal, err = meter.Int64Counter(MetricOrdersPlacedTotal,
		metric.WithDescription("Total number of grid orders submitted to the exchange")); err != nil {
		return err
	}
	if h.OrdersFilledTotal, err = meter.Int64Counter(MetricOrdersFilledTotal,
		metric.WithDescription("Total number of grid orders reported filled")); err != nil {
		return err
	}
	if h.OrdersCancelledTotal, err = meter.Int64Counter(MetricOrdersCancelledTotal,
		metric.WithDescription("Total number of grid orders cancelled")); err != nil {
		return err
	}
	if h.SyncLatency, err = meter.Float64Histogram(MetricSyncLatency,
		metric.WithDescription("Latency of one sync-and-adjust cycle in seconds")); err != nil {
		return err
	}
	if h.SyncErrorsTotal, err = meter.Int64Counter(MetricSyncErrorsTotal,
		metric.WithDescription("Total number of sync cycles aborted by errors")); err != nil {
		return err
	}

	h.OrdersActive, err = meter.Int64ObservableGauge(MetricOrdersActive,
		metric.WithDescription("Number of currently resting grid orders"),
		metric.WithInt64Callback(func(_ context.Context, obs metric.Int64Observer) error {
			h.mu.RLock()
			defer h.mu.RUnlock()
			for pair, n := range h.activeOrdersMap {
				obs.Observe(n, metric.WithAttributes(attribute.String("pair", pair)))
			}
			return nil
		}))
	return err
}

// SetActiveOrders records the resting order count for a pair.
func (h *MetricsHolder) SetActiveOrders(pair string, n int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.activeOrdersMap[pair] = n
}
