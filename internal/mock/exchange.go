// Package mock provides an in-memory exchange for tests.
package mock

import (
	"context"
	"sync/atomic"
	"time"

	"grid_trader/internal/core"
	apperrors "grid_trader/pkg/errors"

	"github.com/shopspring/decimal"
)

// Exchange is a scriptable in-memory core.IExchange. Tests preload the
// snapshot and per-order statuses, and inspect the recorded calls afterwards.
type Exchange struct {
	ExchangeName string
	TradingPair  string
	MakerFee     decimal.Decimal
	MaxOrders    int
	Prec         core.Precision

	Snapshot core.PriceSnapshot
	Assets   core.AssetBalance

	// Statuses holds the records GetOrdersData returns, keyed by order id.
	Statuses map[int64]core.OrderData

	// Error hooks. CreateErrFor runs per order and wins over CreateErr.
	CreateErr    error
	CreateErrFor func(*core.Order) error
	CancelErr    error
	StatusErr    error
	PricesErr    error

	// CancelResultsFn overrides the batch cancel response when set.
	CancelResultsFn func(ids []int64) []core.CancelResult

	// Recorded calls.
	Created      []*core.Order
	CancelledIDs [][]int64

	nextID int64
}

// NewExchange returns a mock with sane defaults for a jpy pair.
func NewExchange() *Exchange {
	return &Exchange{
		ExchangeName: "mock",
		TradingPair:  "btc_jpy",
		MakerFee:     decimal.RequireFromString("-0.0002"),
		MaxOrders:    30,
		Prec:         core.Precision{Price: 4, Amount: 4},
		Statuses:     make(map[int64]core.OrderData),
	}
}

func (e *Exchange) Name() string              { return e.ExchangeName }
func (e *Exchange) Pair() string              { return e.TradingPair }
func (e *Exchange) Fee() decimal.Decimal      { return e.MakerFee }
func (e *Exchange) MaxOrderCount() int        { return e.MaxOrders }
func (e *Exchange) Precision() core.Precision { return e.Prec }

func (e *Exchange) GetLatestPrices(ctx context.Context) (*core.PriceSnapshot, error) {
	if e.PricesErr != nil {
		return nil, e.PricesErr
	}
	snap := e.Snapshot
	return &snap, nil
}

func (e *Exchange) GetAssets(ctx context.Context) (*core.AssetBalance, error) {
	assets := e.Assets
	return &assets, nil
}

func (e *Exchange) CreateOrder(ctx context.Context, order *core.Order) error {
	if e.CreateErrFor != nil {
		if err := e.CreateErrFor(order); err != nil {
			return err
		}
	}
	if e.CreateErr != nil {
		return e.CreateErr
	}
	order.ExchangeID = atomic.AddInt64(&e.nextID, 1)
	order.OrderedAt = time.Now()
	e.Created = append(e.Created, order)
	return nil
}

func (e *Exchange) CancelOrders(ctx context.Context, orderIDs []int64) ([]core.CancelResult, error) {
	e.CancelledIDs = append(e.CancelledIDs, orderIDs)
	if e.CancelErr != nil {
		return nil, e.CancelErr
	}
	if e.CancelResultsFn != nil {
		return e.CancelResultsFn(orderIDs), nil
	}
	results := make([]core.CancelResult, 0, len(orderIDs))
	for _, id := range orderIDs {
		results = append(results, core.CancelResult{OrderID: id, Status: "CANCELED_UNFILLED"})
	}
	return results, nil
}

func (e *Exchange) GetOrdersData(ctx context.Context, orderIDs []int64) ([]core.OrderData, error) {
	if e.StatusErr != nil {
		return nil, e.StatusErr
	}
	var out []core.OrderData
	for _, id := range orderIDs {
		if data, ok := e.Statuses[id]; ok {
			out = append(out, data)
		}
	}
	return out, nil
}

func (e *Exchange) IsOrderFullyFilled(data core.OrderData) bool {
	return data.Status == "FULLY_FILLED"
}

func (e *Exchange) IsOrderCancelled(data core.OrderData) bool {
	return data.Status == "CANCELED_UNFILLED" || data.Status == "CANCELED_PARTIALLY_FILLED"
}

func (e *Exchange) IsKnownError(err error) bool {
	return apperrors.Transient(err)
}

// Fill scripts a full fill for the given order id on the next status fetch.
func (e *Exchange) Fill(orderID int64, avgPrice decimal.Decimal) {
	e.Statuses[orderID] = core.OrderData{
		OrderID:      orderID,
		Status:       "FULLY_FILLED",
		AveragePrice: avgPrice,
		ExecutedAt:   time.Now(),
	}
}

// CancelExternally scripts an out-of-band cancellation for the order id.
func (e *Exchange) CancelExternally(orderID int64) {
	e.Statuses[orderID] = core.OrderData{OrderID: orderID, Status: "CANCELED_UNFILLED"}
}

// ClearStatuses resets the scripted statuses between sync cycles.
func (e *Exchange) ClearStatuses() {
	e.Statuses = make(map[int64]core.OrderData)
}
