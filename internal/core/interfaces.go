package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// IExchange is the capability set the grid engine requires from an exchange
// adapter. The adapter is responsible for snapping prices and amounts to the
// exchange's tick and lot rules; the engine delivers values already rounded
// to the configured precision.
//
// Adapters must be safe for sequential use from a single goroutine; they need
// not be concurrent-safe.
type IExchange interface {
	Name() string
	Pair() string
	Fee() decimal.Decimal
	MaxOrderCount() int
	Precision() Precision

	GetLatestPrices(ctx context.Context) (*PriceSnapshot, error)
	GetAssets(ctx context.Context) (*AssetBalance, error)

	// CreateOrder submits the order and fills in ExchangeID and OrderedAt on
	// success. Rejections surface as apperrors.ErrInvalidPrice or
	// apperrors.ErrExceedOrderLimit.
	CreateOrder(ctx context.Context, order *Order) error
	CancelOrders(ctx context.Context, orderIDs []int64) ([]CancelResult, error)
	GetOrdersData(ctx context.Context, orderIDs []int64) ([]OrderData, error)

	IsOrderFullyFilled(data OrderData) bool
	IsOrderCancelled(data OrderData) bool

	// IsKnownError reports whether the error is in the adapter's recoverable
	// set (network-level, transient auth, rate limit).
	IsKnownError(err error) bool
}

// INotifier is a fire-and-forget sink for run-level messages. Failures inside
// the notifier must never propagate into the sync loop.
type INotifier interface {
	Info(msg string)
	Error(msg string)
	Trade(side OrderSide, msg string)
}

// IStateStore persists bot and order records. Persistence is one-way: the
// engine never reads its state back from the store.
type IStateStore interface {
	CreateAndUseRunner(ctx context.Context, runner RunnerRecord) error
	UpdateRunner(ctx context.Context, runnerID string, fields map[string]any) error
	CreateOrder(ctx context.Context, order OrderRecord) error
	UpdateOrder(ctx context.Context, orderID int64, fields map[string]any) error
	DeleteOrder(ctx context.Context, orderID int64) error
}

// ILogger defines the interface for logging.
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
